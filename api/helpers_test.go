package api

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"gigflow/adapters/database"
	"gigflow/marketplace"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	server     *ServerImpl
	router     *gin.Engine
	mr         *miniredis.Miniredis
	client     *redis.Client
	privateKey ed25519.PrivateKey
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	db, err := database.Open(database.Config{
		Driver:      database.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "api.db"),
		AutoMigrate: true,
	}, database.WithLogger(discardLogger))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	server, err := NewServer(ServerConfig{
		ID:    "test-node",
		Redis: RedisConfig{KeyPrefix: "gigflow:", StreamKeys: RedisStreamKeys{SSE: "gigflow:sse"}},
		Auth:  AuthConfig{PublicKey: publicKey},
		Hire: marketplace.RetryPolicy{
			MaxAttempts:    3,
			BaseDelay:      time.Millisecond,
			AttemptTimeout: time.Second,
		},
		SSE: SSEConfig{KeepAlive: 50 * time.Millisecond, PresenceTTL: time.Second},
	}, WithDB(db), WithRedisClient(client), WithLogger(discardLogger))
	require.NoError(t, err)
	server.Start()

	router := gin.New()
	server.RegisterHandlers(router)

	t.Cleanup(func() {
		server.Close()
		client.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return &testEnv{server: server, router: router, mr: mr, client: client, privateKey: privateKey}
}

// token 簽發測試用的 access token
func (env *testEnv) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, JWT{
		Username: "tester",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(env.privateKey)
	require.NoError(t, err)
	return signed
}

// do 送出請求，user 為 uuid.Nil 時不帶 token
func (env *testEnv) do(t *testing.T, method, path string, user uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+env.token(t, user))
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (env *testEnv) postGig(t *testing.T, owner uuid.UUID, title string) GigView {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/gigs", owner, PostGigRequest{Title: title, Description: "Build something", Budget: 500})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[GigView](t, w)
}

func (env *testEnv) postBid(t *testing.T, bidder, gigID uuid.UUID) BidView {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/bids", bidder, PostBidRequest{GigID: gigID, Message: "Hire me", Price: 300})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[BidView](t, w)
}
