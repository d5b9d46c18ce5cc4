package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_schema.sql
var createSchemaSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(createSchemaSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`
				DROP TABLE IF EXISTS user_quiz_scores;
				DROP TABLE IF EXISTS poll_mappings;
				DROP TABLE IF EXISTS quizzes;
				DROP TABLE IF EXISTS group_members;
				DROP TABLE IF EXISTS groups;
				DROP TABLE IF EXISTS users;
			`)
			return err
		},
	)
}
