package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" //nolint:blank-imports
	goose "github.com/pressly/goose/v3"

	"github.com/samandr77/microservices/ticketflow/migrations"
)

// Open opens (or creates) the session database at path. In-memory databases
// ("file:name?mode=memory&cache=shared") are supported for tests.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single writer keeps sqlite free of SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	_, err = db.ExecContext(ctx, `PRAGMA busy_timeout=5000`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return db, nil
}

func UpMigrations(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	_, err = provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("up migrations: %w", err)
	}

	return nil
}

// Connect opens the database and applies pending migrations.
func Connect(ctx context.Context, path string) (*sql.DB, error) {
	db, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}

	err = UpMigrations(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
