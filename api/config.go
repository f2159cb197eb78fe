package api

import (
	"crypto/ed25519"
	"time"

	"gigflow/adapters/database"
	"gigflow/marketplace"
)

type ServerConfig struct {
	// 節點 ID，用於日誌與 SSE 連線 ID
	ID    string
	DB    database.Config
	Redis RedisConfig
	Auth  AuthConfig
	Hire  marketplace.RetryPolicy
	SSE   SSEConfig

	// 請求內容的大小上限
	MaxBodyBytes int64
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	StreamKeys RedisStreamKeys
	// stream 的約略長度上限
	StreamMaxLen int64
}

type RedisStreamKeys struct {
	SSE string
}

type AuthConfig struct {
	// 驗證 access token 的 Ed25519 公鑰，token 由外部的帳號服務簽發
	PublicKey ed25519.PublicKey
	// 存放 access token 的 cookie 名稱
	CookieName string
}

type SSEConfig struct {
	// 沒有事件時送出註解行的間隔，同時也是更新線上狀態的間隔
	KeepAlive time.Duration
	// 線上狀態的有效時間，應大於 KeepAlive
	PresenceTTL time.Duration
	// 每個連線的緩衝大小
	BufferSize int
}
