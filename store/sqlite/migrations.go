package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the bits store (SQLite).
var Migrations = migrate.NewGroup("bits")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_bits_resources",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bits_resources (
    name       TEXT PRIMARY KEY,
    revision   INTEGER NOT NULL DEFAULT 0,
    payload    TEXT NOT NULL DEFAULT '',
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bits_resources`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "index_bits_resources_updated_at",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_bits_resources_updated_at ON bits_resources (updated_at)`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP INDEX IF EXISTS idx_bits_resources_updated_at`)
				return err
			},
		},
	)
}
