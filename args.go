package main

import (
	"crypto/ed25519"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"gigflow/adapters/database"
	"gigflow/api"
	"gigflow/marketplace"
)

func ParseArgs() (Args, error) {
	// 本機開發時從 .env 載入環境變數，檔案不存在時忽略
	_ = godotenv.Load()

	// server config
	pflag.String("server-url", "0.0.0.0:8080", "")
	pflag.String("server-id", "", "")
	pflag.String("log-level", "info", "debug|info|warn|error")
	pflag.String("log-format", "json", "json|text")

	// db config
	pflag.String("db-driver", database.DriverPostgres, "postgres|sqlite")
	pflag.String("db-user", "", "")
	pflag.String("db-password", "", "")
	pflag.String("db-host", "", "")
	pflag.Int("db-port", 5432, "")
	pflag.String("db-database", "", "")
	pflag.String("db-schema", "", "")
	pflag.String("db-sqlite-path", "gigflow.db", "")
	pflag.Bool("db-auto-migrate", true, "")
	pflag.Duration("db-slow-threshold", 200*time.Millisecond, "")

	// redis config
	pflag.String("redis-addr", "", "")
	pflag.String("redis-password", "", "")
	pflag.Int("redis-db", 15, "")
	pflag.String("redis-key-prefix", "gigflow:", "")

	// redis stream keys
	pflag.String("redis-stream-key-for-sse", "gigflow-shared-sse-stream", "")

	// auth config
	pflag.String("auth-public-key", "", "Ed25519 public key in PEM, or a path to the PEM file")
	pflag.String("auth-cookie-name", "access_token", "")

	// hire config
	defaultPolicy := marketplace.DefaultRetryPolicy()
	pflag.Int("hire-max-attempts", defaultPolicy.MaxAttempts, "")
	pflag.Duration("hire-base-delay", defaultPolicy.BaseDelay, "")
	pflag.Duration("hire-attempt-timeout", defaultPolicy.AttemptTimeout, "")

	// sse config
	pflag.Duration("sse-keep-alive", 30*time.Second, "")
	pflag.Duration("sse-presence-ttl", 90*time.Second, "")

	// bind pflag to viper
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("GIGFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	publicKey, err := loadPublicKey(viper.GetString("auth-public-key"))
	if err != nil {
		return Args{}, err
	}

	serverID := viper.GetString("server-id")
	if serverID == "" {
		serverID, _ = os.Hostname()
	}

	// initial arguments
	return Args{
		ServerURL: viper.GetString("server-url"),
		LogLevel:  viper.GetString("log-level"),
		LogFormat: viper.GetString("log-format"),
		ServerConfig: api.ServerConfig{
			ID: serverID,
			DB: database.Config{
				Driver:        viper.GetString("db-driver"),
				User:          viper.GetString("db-user"),
				Password:      viper.GetString("db-password"),
				Host:          viper.GetString("db-host"),
				Port:          viper.GetInt("db-port"),
				Database:      viper.GetString("db-database"),
				Schema:        viper.GetString("db-schema"),
				SQLitePath:    viper.GetString("db-sqlite-path"),
				AutoMigrate:   viper.GetBool("db-auto-migrate"),
				SlowThreshold: viper.GetDuration("db-slow-threshold"),
			},
			Redis: api.RedisConfig{
				Addr:      viper.GetString("redis-addr"),
				Password:  viper.GetString("redis-password"),
				DB:        viper.GetInt("redis-db"),
				KeyPrefix: viper.GetString("redis-key-prefix"),
				StreamKeys: api.RedisStreamKeys{
					SSE: viper.GetString("redis-stream-key-for-sse"),
				},
			},
			Auth: api.AuthConfig{
				PublicKey:  publicKey,
				CookieName: viper.GetString("auth-cookie-name"),
			},
			Hire: marketplace.RetryPolicy{
				MaxAttempts:    viper.GetInt("hire-max-attempts"),
				BaseDelay:      viper.GetDuration("hire-base-delay"),
				AttemptTimeout: viper.GetDuration("hire-attempt-timeout"),
			},
			SSE: api.SSEConfig{
				KeepAlive:   viper.GetDuration("sse-keep-alive"),
				PresenceTTL: viper.GetDuration("sse-presence-ttl"),
			},
		},
	}, nil
}

// loadPublicKey 接受 PEM 字串或 PEM 檔案路徑，空字串表示未設定
func loadPublicKey(value string) (ed25519.PublicKey, error) {
	if value == "" {
		return nil, nil
	}
	raw := []byte(value)
	if !strings.HasPrefix(strings.TrimSpace(value), "-----BEGIN") {
		data, err := os.ReadFile(value)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return api.ParseEd25519PublicKey(raw)
}

type Args struct {
	ServerURL    string
	LogLevel     string
	LogFormat    string
	ServerConfig api.ServerConfig
}

func (args Args) Validate() bool {
	config := args.ServerConfig
	if args.ServerURL == "" || len(config.Auth.PublicKey) == 0 || config.Redis.Addr == "" {
		return false
	}
	switch config.DB.Driver {
	case database.DriverPostgres:
		return config.DB.Host != "" && config.DB.Database != ""
	case database.DriverSQLite:
		return config.DB.SQLitePath != ""
	default:
		return false
	}
}

func (args Args) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(args.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	handlerOptions := &slog.HandlerOptions{Level: level}
	if args.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, handlerOptions))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, handlerOptions))
}
