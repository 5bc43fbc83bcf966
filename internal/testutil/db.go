// Package testutil provides migrated ledger databases for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/estatechain/ledger-backend/internal/config"
	"github.com/estatechain/ledger-backend/internal/database"
)

// NewDB opens a fresh file-backed SQLite database with the full schema
// applied. It is closed when the test finishes.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "ledger.db"),
		LogLevel:   "silent",
	}

	db, err := database.Initialize(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	require.NoError(t, database.RunMigrations(db))
	return db
}
