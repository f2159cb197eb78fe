package api

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigflow/adapters/database"
)

func TestNewServer_UnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	server, err := NewServer(ServerConfig{
		DB: database.Config{
			Driver:      database.DriverSQLite,
			SQLitePath:  filepath.Join(t.TempDir(), "server.db"),
			AutoMigrate: true,
		},
		Redis: RedisConfig{Addr: addr},
	}, WithLogger(discardLogger))
	assert.ErrorContains(t, err, "Fail to connect to redis")
	assert.Nil(t, server)
}

func TestServer_CloseOwned(t *testing.T) {
	db, err := database.Open(database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "owned.db"),
	}, database.WithLogger(discardLogger))
	require.NoError(t, err)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	impl := &ServerImpl{
		logger:      discardLogger,
		db:          db,
		redisClient: client,
		ownsDB:      true,
		ownsRedis:   true,
	}
	impl.closeOwned()

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping())
	assert.ErrorIs(t, client.Ping(context.Background()).Err(), redis.ErrClosed)
}

func TestServer_CloseKeepsBorrowedConnections(t *testing.T) {
	env := newTestEnv(t)
	env.server.Close()

	// 由外部傳入的連線不會被關閉
	assert.NoError(t, env.client.Ping(context.Background()).Err())
	sqlDB, err := env.server.db.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())
}
