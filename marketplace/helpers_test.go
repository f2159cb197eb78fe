package marketplace

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gigflow/adapters/database"
	"gigflow/models"
)

// newTestDB 在暫存目錄建立 sqlite 資料庫
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(database.Config{
		Driver:      database.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "marketplace.db"),
		AutoMigrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedGig(t *testing.T, store Store, owner uuid.UUID) models.Gig {
	t.Helper()
	gig := models.Gig{
		OwnerID:     owner,
		Title:       gofakeit.JobTitle(),
		Description: gofakeit.Sentence(12),
		Budget:      uint64(gofakeit.IntRange(100, 5000)),
	}
	require.NoError(t, store.CreateGig(context.Background(), &gig))
	return gig
}

func seedBid(t *testing.T, store Store, gigID, bidder uuid.UUID) models.Bid {
	t.Helper()
	bid := models.Bid{
		GigID:    gigID,
		BidderID: bidder,
		Message:  gofakeit.Sentence(8),
		Price:    uint64(gofakeit.IntRange(50, 5000)),
	}
	require.NoError(t, store.CreateBid(context.Background(), &bid))
	return bid
}

// stubStore 包裝真正的 Store，可以替換 CommitHire 的行為
type stubStore struct {
	Store
	commitHire func(ctx context.Context, gigID, bidID uuid.UUID) (bool, error)
}

func (s *stubStore) CommitHire(ctx context.Context, gigID, bidID uuid.UUID) (bool, error) {
	if s.commitHire != nil {
		return s.commitHire(ctx, gigID, bidID)
	}
	return s.Store.CommitHire(ctx, gigID, bidID)
}
