package database

import (
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigflow/models"
)

func TestOpen_UnknownDriver(t *testing.T) {
	db, err := Open(Config{Driver: "oracle"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
	assert.Nil(t, db)
}

func TestOpen_SQLite(t *testing.T) {
	db, err := Open(Config{
		Driver:      DriverSQLite,
		SQLitePath:    filepath.Join(t.TempDir(), "gigflow.db"),
		AutoMigrate:   true,
		SlowThreshold: time.Second,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	assert.True(t, db.Migrator().HasTable(&models.Gig{}))
	assert.True(t, db.Migrator().HasTable(&models.Bid{}))
	assert.True(t, db.Migrator().HasIndex(&models.Bid{}, "idx_bids_gig_bidder"))

	// 唯一索引衝突要能被辨識出來
	gig := models.Gig{OwnerID: uuid.New(), Title: "t", Description: "d", Budget: 10}
	require.NoError(t, db.Create(&gig).Error)
	assert.Equal(t, models.GigOpen, gig.Status)

	// 時間欄位必須能讀回 time.Time
	var loaded models.Gig
	require.NoError(t, db.First(&loaded, "id = ?", gig.ID).Error)
	assert.Equal(t, gig.Title, loaded.Title)
	assert.False(t, loaded.CreatedAt.IsZero())
	assert.WithinDuration(t, gig.CreatedAt, loaded.CreatedAt, time.Second)

	bidder := uuid.New()
	first := models.Bid{GigID: gig.ID, BidderID: bidder, Message: "m", Price: 5}
	require.NoError(t, db.Create(&first).Error)
	second := models.Bid{GigID: gig.ID, BidderID: bidder, Message: "m2", Price: 6}
	err = db.Create(&second).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsTransient(err))
}

func TestMigrations_Embedded(t *testing.T) {
	entries, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	var ups, downs int
	for _, e := range entries {
		switch filepath.Ext(e[:len(e)-len(".sql")]) {
		case ".up":
			ups++
		case ".down":
			downs++
		}
	}
	assert.Positive(t, ups)
	assert.Equal(t, ups, downs, "every up migration needs a down migration")
}
