package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/estatechain/ledger-backend/internal/config"
	"github.com/estatechain/ledger-backend/internal/database"
)

// PostgresEnvVar enables the Postgres-backed suites. The connection comes
// from the usual DB_* variables and should point at a scratch database.
const PostgresEnvVar = "LEDGER_TEST_POSTGRES"

func PostgresEnabled() bool {
	return os.Getenv(PostgresEnvVar) != ""
}

// NewPostgresDB connects to the scratch Postgres database, applies the
// schema and empties the ledger tables. Tests are skipped unless
// PostgresEnvVar is set.
func NewPostgresDB(t testing.TB) *gorm.DB {
	t.Helper()
	if !PostgresEnabled() {
		t.Skipf("%s not set", PostgresEnvVar)
	}

	cfg := config.DatabaseConfig{
		Driver:       config.DriverPostgres,
		Host:         envOr("DB_HOST", "localhost"),
		Port:         envOr("DB_PORT", "5432"),
		User:         envOr("DB_USER", "postgres"),
		Password:     os.Getenv("DB_PASSWORD"),
		Database:     envOr("DB_NAME", "property_ledger_test"),
		SSLMode:      envOr("DB_SSL_MODE", "disable"),
		MaxOpenConns: 16,
		MaxIdleConns: 16,
		MaxLifetime:  60,
		LogLevel:     "silent",
	}

	db, err := database.Initialize(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	require.NoError(t, database.RunMigrations(db))
	require.NoError(t, db.Exec("TRUNCATE audit_logs, settlements, sell_orders, investments, properties CASCADE").Error)
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
