package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatechain/ledger-backend/internal/config"
	"github.com/estatechain/ledger-backend/internal/database"
	"github.com/estatechain/ledger-backend/internal/models"
	"github.com/estatechain/ledger-backend/internal/utils"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Database: config.DatabaseConfig{
			Driver:     config.DriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "ledger.db"),
			LogLevel:   "silent",
		},
		JWT: config.JWTConfig{
			SecretKey:      "cli-test-secret",
			Issuer:         "property-ledger",
			AccessTokenTTL: 24,
		},
		Log: config.LogConfig{Level: "error", Format: "text"},
	}
}

func execute(cfg *config.Config, args ...string) (string, error) {
	cmd := newRootCommand(&RootOptions{
		LoadConfig: func() (*config.Config, error) { return cfg, nil },
	})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "ledgerctl", cmd.Use)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("format"))

	for _, name := range []string{"migrate", "audit", "verify", "token"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(testConfig(t), "migrate", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConfigErrorsAreCommandErrors(t *testing.T) {
	cmd := newRootCommand(&RootOptions{
		LoadConfig: func() (*config.Config, error) { return nil, errors.New("bad env") },
	})
	cmd.SetArgs([]string{"migrate"})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "bad env")
}

func TestMigrate(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(cfg, "migrate", "--dry-run", "--format", "json")
	require.NoError(t, err)
	var planned migrateResult
	require.NoError(t, json.Unmarshal([]byte(out), &planned))
	assert.NotEmpty(t, planned.Pending)
	assert.False(t, planned.Applied)

	out, err = execute(cfg, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "migrations applied\n", out)

	out, err = execute(cfg, "migrate", "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, "no pending SQL migrations\n", out)
}

func TestAudit(t *testing.T) {
	cfg := testConfig(t)
	_, err := execute(cfg, "migrate")
	require.NoError(t, err)

	out, err := execute(cfg, "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "findings: 0, repaired: 0")

	db, err := database.Initialize(cfg.Database)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Property{
		Name:            "Drifted",
		Price:           decimal.NewFromInt(10),
		TotalTokens:     10,
		AvailableTokens: 4,
		Status:          models.PropertyStatusListed,
	}).Error)
	database.Close(db)

	out, err = execute(cfg, "audit")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "COUNTER_DRIFT")

	out, err = execute(cfg, "audit", "--repair", "--format", "json")
	require.NoError(t, err)
	var report struct {
		Repaired int `json:"repaired"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Repaired)

	_, err = execute(cfg, "audit")
	assert.NoError(t, err)
}

func TestAuditArchiveNeedsBucket(t *testing.T) {
	cfg := testConfig(t)
	_, err := execute(cfg, "migrate")
	require.NoError(t, err)

	_, err = execute(cfg, "audit", "--archive")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "AWS_REPORT_BUCKET")
}

func TestVerifyNeedsRPCURL(t *testing.T) {
	_, err := execute(testConfig(t), "verify")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestToken(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(cfg, "token", "--user", "ops-1", "--role", "admin", "--format", "json")
	require.NoError(t, err)

	var result tokenResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "ops-1", result.UserID)
	assert.Equal(t, 24, result.ExpiresIn)

	claims, err := utils.ValidateJWT(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "ops-1", claims.UserID)
	assert.Equal(t, utils.RoleAdmin, claims.Role)

	out, err = execute(cfg, "token", "--user", "user-42", "--ttl", "1")
	require.NoError(t, err)
	claims, err = utils.ValidateJWT(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, utils.RoleInvestor, claims.Role)
}

func TestTokenRejectsBadInput(t *testing.T) {
	cfg := testConfig(t)

	_, err := execute(cfg, "token", "--user", "ops-1", "--role", "root")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(cfg, "token", "--user", "ops-1", "--wallet", "0x123")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(cfg, "token")
	assert.Error(t, err)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := WrapExitError(ExitCommandError, "outer", errors.New("inner"))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "outer: inner", wrapped.Error())
	assert.Equal(t, "inner", errors.Unwrap(wrapped).Error())
}
