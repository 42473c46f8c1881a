package db

import (
	"context"

	"github.com/geocoder89/dinehub/internal/db/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"
)

// Migrate applies the embedded schema migrations on top of the pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return oops.In("db").Wrapf(err, "set goose dialect")
	}

	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return oops.In("db").Code("migration_failed").Wrap(err)
	}

	return nil
}
