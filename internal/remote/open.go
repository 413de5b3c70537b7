package remote

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/bankguard/internal/common"
	"github.com/dmitrijs2005/bankguard/internal/remote/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Open connects to the bank database through the pgx stdlib driver and
// checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("open bank database: %w: empty DSN", common.ErrValidation)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, netErr("open bank database", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, netErr("ping bank database", err)
	}

	return db, nil
}

// RunMigrations applies the embedded schema, including the change-feed
// triggers.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return netErr("migrate bank database", err)
	}

	return nil
}
