// internal/database/migrate.go
package database

import (
	"embed"

	migrate "github.com/rubenv/sql-migrate"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationTable = "ledger_migrations"

func migrationSource() migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFiles,
		Root:       "migrations",
	}
}

// sqlMigrateDialect maps gorm dialector names onto sql-migrate dialects.
func sqlMigrateDialect(db *gorm.DB) string {
	if db.Dialector.Name() == "sqlite" {
		return "sqlite3"
	}
	return "postgres"
}

func applySQLMigrations(db *gorm.DB) (int, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return 0, err
	}

	ms := migrate.MigrationSet{TableName: migrationTable}
	return ms.Exec(sqlDB, sqlMigrateDialect(db), migrationSource(), migrate.Up)
}

// PendingMigrations returns the ids of SQL migrations not yet applied.
func PendingMigrations(db *gorm.DB) ([]string, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	ms := migrate.MigrationSet{TableName: migrationTable}
	planned, _, err := ms.PlanMigration(sqlDB, sqlMigrateDialect(db), migrationSource(), migrate.Up, 0)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(planned))
	for _, m := range planned {
		ids = append(ids, m.Id)
	}
	return ids, nil
}
