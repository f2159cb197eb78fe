package database

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"gigflow/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const defaultSlowThreshold = 200 * time.Millisecond

var ErrUnknownDriver = errors.New("unknown database driver")

type Config struct {
	Driver     string
	User       string
	Password   string
	Host       string
	Port       int
	Database   string
	Schema     string
	SQLitePath string

	// AutoMigrate 啟動時是否自動套用 migration (postgres) 或 AutoMigrate (sqlite)
	AutoMigrate   bool
	// 超過此時間的查詢記錄為慢查詢，0 表示使用預設值
	SlowThreshold time.Duration
}

type options struct {
	logger *slog.Logger
}

type Option func(*options)

// WithLogger 設置日誌記錄器
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open 依照設定建立資料庫連線
//   - postgres: 正式環境使用，migration 由 golang-migrate 套用內嵌的 SQL 檔
//   - sqlite: 本機開發與測試使用，直接以 gorm AutoMigrate 建立資料表
func Open(config Config, opts ...Option) (*gorm.DB, error) {
	const op = "database.Open"
	o := options{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	slowThreshold := config.SlowThreshold
	if slowThreshold <= 0 {
		slowThreshold = defaultSlowThreshold
	}

	gormConfig := &gorm.Config{
		TranslateError: true,
		Logger: logger.New(slogWriter{o.logger.With(slog.String("caller", "gorm"))}, logger.Config{
			SlowThreshold:             slowThreshold,
			IgnoreRecordNotFoundError: true,
			LogLevel:                  logger.Warn,
		}),
	}

	var dialector gorm.Dialector
	switch config.Driver {
	case DriverPostgres, "":
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", config.User, config.Password, config.Host, config.Port, config.Database)
		if config.Schema != "" {
			dsn += "&search_path=" + config.Schema
			gormConfig.NamingStrategy = schema.NamingStrategy{
				TablePrefix: config.Schema + ".",
			}
		}
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		// _txlock=immediate 讓每個交易一開始就取得寫入鎖，避免 deferred 交易在升級鎖時互相卡死
		dialector = sqlite.Open(config.SQLitePath + "?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate&_foreign_keys=on")
	default:
		return nil, fmt.Errorf("[%s] %w: %s", op, ErrUnknownDriver, config.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to connect to database, err=%w", op, err)
	}

	if config.AutoMigrate {
		if err := Migrate(db, config.Driver); err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				sqlDB.Close()
			}
			return nil, fmt.Errorf("[%s] %w", op, err)
		}
	}
	return db, nil
}

// Migrate 依照 driver 選擇 migration 方式
func Migrate(db *gorm.DB, driver string) error {
	const op = "database.Migrate"
	if driver == DriverSQLite {
		if err := db.AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("[%s] Fail to auto migrate, err=%w", op, err)
		}
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("[%s] Fail to get sql.DB, err=%w", op, err)
	}
	return MigrateUp(sqlDB)
}

// slogWriter 將 gorm 的日誌轉接到 slog
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Printf(format string, args ...any) {
	w.logger.Warn(fmt.Sprintf(format, args...))
}
