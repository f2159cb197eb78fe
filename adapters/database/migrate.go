package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrations embed.FS

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("fail to open migration source, err=%w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("fail to create migration driver, err=%w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("fail to create migrate instance, err=%w", err)
	}
	return m, nil
}

// MigrateUp 套用所有尚未執行的 migration
func MigrateUp(db *sql.DB) error {
	const op = "database.MigrateUp"
	slog.Info("Migrating up", slog.String("op", op))
	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("[%s] %w", op, err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("[%s] Fail to migrate up, err=%w", op, err)
	}
	return nil
}
