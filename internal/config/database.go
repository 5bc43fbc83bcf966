// internal/config/database.go
package config

import (
	"fmt"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DSN returns the connection string for the configured driver.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return SQLiteDSN(d.SQLitePath)
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// SQLiteDSN applies the pragmas the ledger relies on: a busy timeout for
// writer contention, WAL journaling and foreign key enforcement.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate", path)
}
