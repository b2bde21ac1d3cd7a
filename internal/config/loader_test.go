package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/profilegate/profilegate/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
version: "1.0"
server:
  host: "127.0.0.1"
oauth:
  client_id: "client-id"
  client_secret: "client-secret"
  redirect_url: "http://localhost:3000/callback"
`

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, []string{DefaultScope}, cfg.OAuth.Scopes)
	assert.Equal(t, "US", cfg.Business.RegionCode)
	assert.Equal(t, "en", cfg.Business.LanguageCode)
	assert.Equal(t, 1000, cfg.API.RateLimit.RequestsPerMinute)
	assert.Equal(t, 100, cfg.API.RateLimit.Burst)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("version: [unclosed"))
	require.Error(t, err)

	var parseErr *apperrors.ErrConfigParse
	assert.True(t, stderrors.As(err, &parseErr))
}

func TestParseValidationFailure(t *testing.T) {
	_, err := Parse([]byte(`
version: "1.0"
server:
  host: "127.0.0.1"
oauth:
  client_id: ""
`))
	require.Error(t, err)

	var validationErr *apperrors.ErrConfigValidation
	assert.True(t, stderrors.As(err, &validationErr))
	assert.Contains(t, err.Error(), "client_id")
}

func TestAuditDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig + `
audit:
  enabled: true
`))
	require.NoError(t, err)

	assert.Equal(t, "./data/audit.db", cfg.Audit.DBPath)
	assert.Equal(t, 30, cfg.Audit.RetentionDays)
}

func TestTelegramValidation(t *testing.T) {
	_, err := Parse([]byte(minimalConfig + `
telegram:
  enabled: true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot_token")
}

func TestLoadMissingFile(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := loader.Load()
	require.Error(t, err)

	var notFound *apperrors.ErrConfigNotFound
	assert.True(t, stderrors.As(err, &notFound))
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("TEST_CLIENT_SECRET", "from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
version: "1.0"
server:
  host: "127.0.0.1"
oauth:
  client_id: "client-id"
  client_secret: "${TEST_CLIENT_SECRET}"
  redirect_url: "http://localhost:3000/callback"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	loader := NewLoader(path)
	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.OAuth.ClientSecret)
	assert.Equal(t, cfg, loader.Get())
}

func TestReloadInvokesOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalConfig), 0600))

	loader := NewLoader(path)
	_, err := loader.Load()
	require.NoError(t, err)

	var gotVersion string
	loader.SetOnChange(func(cfg *Config) {
		gotVersion = cfg.Version
	})

	updated := []byte(`
version: "2.0"
server:
  host: "127.0.0.1"
oauth:
  client_id: "client-id"
  client_secret: "client-secret"
  redirect_url: "http://localhost:3000/callback"
`)
	require.NoError(t, os.WriteFile(path, updated, 0600))

	cfg, err := loader.Reload()
	require.NoError(t, err)
	assert.Equal(t, "2.0", cfg.Version)
	assert.Equal(t, "2.0", gotVersion)
}
