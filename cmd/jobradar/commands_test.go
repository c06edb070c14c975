package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/server"
)

const testConfig = `{
	"schedule": {"interval_hours": 6, "enabled": true},
	"sources": [
		{"name": "acme", "type": "greenhouse", "params": {"board": "acme"}},
		{"name": "hn", "type": "hackernews", "enabled": false}
	]
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobradar.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs the root command in-process and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "REDIS_URL", "LOG_LEVEL", "JOBRADAR_ADDR", "JOBRADAR_INTERVAL_HOURS"} {
		t.Setenv(k, "")
	}

	// Flag values live in package variables and survive between runs.
	configPath, logLevel = defaultConfigPath(), ""
	sourcesTypes, migratePrint = false, false
	tokenSubject, tokenHours = "cli", 0
	queryJSON, queryLimit, queryIncludeHidden = false, 20, false

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestValidateConfig_Passed(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := execute(t, "validate-config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation passed")
	assert.Contains(t, out, "2 sources, 1 enabled")
}

func TestValidateConfig_MissingSourceParam(t *testing.T) {
	path := writeConfig(t, `{"sources": [{"name": "acme", "type": "greenhouse"}]}`)

	out, err := execute(t, "validate-config", "--config", path)
	require.Error(t, err)
	assert.Contains(t, out, "Validation failed")
	assert.Contains(t, out, `missing param "board"`)
}

func TestValidateConfig_DisabledSourceNotBuilt(t *testing.T) {
	path := writeConfig(t, `{"sources": [{"name": "acme", "type": "greenhouse", "enabled": false}]}`)

	out, err := execute(t, "validate-config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 sources, 0 enabled")
}

func TestValidateConfig_MissingFile(t *testing.T) {
	out, err := execute(t, "validate-config", "--config", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, out, "failed to read config file")
}

func TestSources_ListsConfigured(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := execute(t, "sources", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "SOURCES")
	assert.Contains(t, out, "acme")
	assert.Contains(t, out, "greenhouse")
	assert.Contains(t, out, "disabled")
	assert.NotContains(t, out, "(unknown)")
}

func TestSources_Types(t *testing.T) {
	out, err := execute(t, "sources", "--types")
	require.NoError(t, err)

	types := strings.Fields(out)
	assert.Contains(t, types, "greenhouse")
	assert.Contains(t, types, "hackernews")
	assert.Contains(t, types, "careerpage")
	assert.ElementsMatch(t, config.SourceTypes, types)
}

func TestSourceStatuses_UnknownType(t *testing.T) {
	cfg := &config.Config{Sources: []config.SourceConfig{
		{Name: "a", Type: "greenhouse"},
		{Name: "b", Type: "monster"},
	}}
	got := sourceStatuses(cfg, []string{"greenhouse"})
	require.Len(t, got, 2)
	assert.Equal(t, "greenhouse", got[0].Type)
	assert.True(t, got[0].Enabled)
	assert.Equal(t, "monster (unknown)", got[1].Type)
}

func TestMigrate_Print(t *testing.T) {
	out, err := execute(t, "migrate", "--print")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS postings")
}

func TestToken_SignsValidToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("JWT_EXPIRATION_HOURS", "")

	out, err := execute(t, "token", "--subject", "ops", "--hours", "2")
	require.NoError(t, err)

	auth, err := config.NewAuthConfig()
	require.NoError(t, err)
	claims, err := server.NewJWTService(auth).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
}

func TestToken_Errors(t *testing.T) {
	t.Run("no secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := execute(t, "token")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET is not set")
	})
	t.Run("short secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "short")
		_, err := execute(t, "token")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 16 characters")
	})
	t.Run("invalid hours", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "0123456789abcdef0123")
		_, err := execute(t, "token", "--hours=-3")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid token request")
	})
}

func TestQueryCommands_RequireDatabase(t *testing.T) {
	path := writeConfig(t, testConfig)

	for _, args := range [][]string{
		{"recent"},
		{"search", "golang"},
		{"top", "--min-score", "0.5"},
		{"stats"},
		{"show", "abc"},
	} {
		t.Run(args[0], func(t *testing.T) {
			_, err := execute(t, append(args, "--config", path)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "database_url is not configured")
		})
	}
}

func TestTop_RejectsScoreOutOfRange(t *testing.T) {
	path := writeConfig(t, testConfig)

	_, err := execute(t, "top", "--min-score", "1.5", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 0 and 1")
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("JOBRADAR_CONFIG", "")
	assert.Equal(t, config.DefaultPath, defaultConfigPath())

	t.Setenv("JOBRADAR_CONFIG", "/etc/jobradar.json")
	assert.Equal(t, "/etc/jobradar.json", defaultConfigPath())
}

func TestLoadApp_LogLevel(t *testing.T) {
	path := writeConfig(t, `{"log_level": "warn"}`)
	_, err := execute(t, "validate-config", "--config", path)
	require.NoError(t, err)

	configPath = path
	a, err := loadApp(&bytes.Buffer{}, false)
	require.NoError(t, err)
	assert.Equal(t, "warning", a.logger.GetLevel().String())

	logLevel = "debug"
	a, err = loadApp(&bytes.Buffer{}, true)
	require.NoError(t, err)
	assert.Equal(t, "debug", a.logger.GetLevel().String())
}
