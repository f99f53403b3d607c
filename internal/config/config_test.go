package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "LOG_LEVEL", "CACHE_TTL", "PLAN_SOURCE", "MAX_RETRIES", "DEFAULT_WITHDRAWAL_POLICY"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, SourceSupabase, cfg.PlanSource)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, "proportional", cfg.DefaultWithdrawalPolicy)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("PLAN_SOURCE", SourcePostgres)
	t.Setenv("DATABASE_URL", "postgres://localhost/finplan")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg := Load()
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, SourcePostgres, cfg.PlanSource)
	assert.Equal(t, "postgres://localhost/finplan", cfg.DatabaseURL)
	assert.Equal(t, 3, cfg.MaxRetries, "unparsable values fall back to defaults")
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FINPLAN_TEST_A=from-file\nFINPLAN_TEST_B=\"quoted\"\n"), 0o644))

	t.Setenv("FINPLAN_TEST_A", "from-env")
	os.Unsetenv("FINPLAN_TEST_A")
	t.Setenv("FINPLAN_TEST_B", "")
	os.Unsetenv("FINPLAN_TEST_B")
	t.Setenv("FINPLAN_TEST_C", "kept")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("FINPLAN_TEST_A"))
	assert.Equal(t, "quoted", os.Getenv("FINPLAN_TEST_B"))
	assert.Equal(t, "kept", os.Getenv("FINPLAN_TEST_C"))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FINPLAN_TEST_D=from-file\n"), 0o644))
	t.Setenv("FINPLAN_TEST_D", "from-env")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-env", os.Getenv("FINPLAN_TEST_D"))
}
