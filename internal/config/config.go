// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	CORS        CORSConfig
	RateLimit   RateLimitConfig
	Log         LogConfig
	AWS         AWSConfig
	Blockchain  BlockchainConfig
	Ledger      LedgerConfig
	I18n        I18nConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Driver       string // postgres | sqlite
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	SQLitePath   string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey      string
	Issuer         string
	AccessTokenTTL int // in hours
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type LogConfig struct {
	Level  string
	Format string // json | text
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ReportBucket    string
	ReportPrefix    string
}

type BlockchainConfig struct {
	Network            string
	RPCURL             string
	ContractAddress    string
	Confirmations      int
	VerifySettlements  bool
	VerifyBatchSize    int
	RequestTimeoutSecs int
}

type LedgerConfig struct {
	AuditSchedule  string
	AuditRepair    bool
	VerifySchedule string
}

type I18nConfig struct {
	DefaultLocale string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", ""),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "property_ledger"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			SQLitePath:   getEnv("DB_SQLITE_PATH", "./data/ledger.db"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", defaultJWTSecret),
			Issuer:         getEnv("JWT_ISSUER", "property-ledger"),
			AccessTokenTTL: getEnvAsInt("JWT_ACCESS_TTL", 24),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 30),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", ""),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ReportBucket:    getEnv("AWS_REPORT_BUCKET", ""),
			ReportPrefix:    getEnv("AWS_REPORT_PREFIX", "ledger-audits"),
		},
		Blockchain: BlockchainConfig{
			Network:            getEnv("BLOCKCHAIN_NETWORK", "polygon"),
			RPCURL:             getEnv("BLOCKCHAIN_RPC_URL", ""),
			ContractAddress:    getEnv("BLOCKCHAIN_CONTRACT_ADDRESS", ""),
			Confirmations:      getEnvAsInt("BLOCKCHAIN_CONFIRMATIONS", 12),
			VerifySettlements:  getEnvAsBool("BLOCKCHAIN_VERIFY_SETTLEMENTS", false),
			VerifyBatchSize:    getEnvAsInt("BLOCKCHAIN_VERIFY_BATCH", 100),
			RequestTimeoutSecs: getEnvAsInt("BLOCKCHAIN_REQUEST_TIMEOUT", 10),
		},
		Ledger: LedgerConfig{
			AuditSchedule:  getEnv("LEDGER_AUDIT_SCHEDULE", "0 */15 * * * *"),
			AuditRepair:    getEnvAsBool("LEDGER_AUDIT_REPAIR", false),
			VerifySchedule: getEnv("LEDGER_VERIFY_SCHEDULE", "*/30 * * * * *"),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		},
	}

	if config.Log.Format == "" {
		config.Log.Format = "text"
		if config.IsProduction() {
			config.Log.Format = "json"
		}
	}

	return config, config.Validate()
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == defaultJWTSecret && c.IsProduction() {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Password == "" && c.IsProduction() {
			return fmt.Errorf("database password is required in production")
		}
	case DriverSQLite:
		if c.IsProduction() {
			return fmt.Errorf("sqlite driver is not supported in production")
		}
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("DB_SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Blockchain.VerifySettlements && c.Blockchain.RPCURL == "" {
		return fmt.Errorf("BLOCKCHAIN_RPC_URL is required when settlement verification is enabled")
	}
	if c.Blockchain.Confirmations < 0 {
		return fmt.Errorf("BLOCKCHAIN_CONFIRMATIONS must not be negative")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
