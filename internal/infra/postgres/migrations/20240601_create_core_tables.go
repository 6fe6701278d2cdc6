package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_core_tables.sql
var createCoreTablesSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createCoreTablesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
				DROP TABLE IF EXISTS completion_bonus_awards;
				DROP TABLE IF EXISTS question_stats;
				DROP TABLE IF EXISTS user_answers;
				DROP TABLE IF EXISTS quiz_attempts;
				DROP TABLE IF EXISTS quizzes;`)
			return err
		},
	)
}
