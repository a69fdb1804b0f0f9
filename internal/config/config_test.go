package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var chromaEnvVars = []string{
	"CHROMA_CLIENT_TYPE", "CHROMA_HOST", "CHROMA_PORT", "CHROMA_SSL",
	"CHROMA_TENANT", "CHROMA_DATABASE", "CHROMA_API_KEY", "CHROMA_DATA_DIR",
	"CHROMA_DOTENV_PATH", "CHROMA_CUSTOM_AUTH_CREDENTIALS", "CHROMA_EMBEDDING_PROVIDER",
	"CHROMA_SERVER_TRANSPORT", "CHROMA_LOG_LEVEL",
}

// clearChromaEnv unsets every CHROMA_* variable for the duration of the test.
func clearChromaEnv(t *testing.T) {
	t.Helper()
	for _, key := range chromaEnvVars {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func requireValidationError(t *testing.T, err error, msg string) {
	t.Helper()
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %T", err)
	assert.Equal(t, msg, verr.Message)
}

func TestLoad_Defaults(t *testing.T) {
	clearChromaEnv(t)

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, ClientEphemeral, cfg.ClientType)
	assert.True(t, bool(cfg.SSL))
	assert.Equal(t, DefaultDotenvPath, cfg.DotenvPath)
	assert.Equal(t, "default", cfg.Embedding.Provider)
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout.Duration())
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	clearChromaEnv(t)
	t.Setenv("CHROMA_CLIENT_TYPE", "http")
	t.Setenv("CHROMA_HOST", "chroma.internal")
	t.Setenv("CHROMA_PORT", "9000")
	t.Setenv("CHROMA_SSL", "no")
	t.Setenv("CHROMA_EMBEDDING_PROVIDER", "tei")
	t.Setenv("CHROMA_LOG_LEVEL", "debug")

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, ClientHTTP, cfg.ClientType)
	assert.Equal(t, "chroma.internal", cfg.Host)
	assert.Equal(t, "9000", cfg.Port)
	assert.False(t, bool(cfg.SSL))
	assert.Equal(t, "tei", cfg.Embedding.Provider)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	clearChromaEnv(t)
	t.Setenv("CHROMA_CLIENT_TYPE", "http")
	t.Setenv("CHROMA_HOST", "env-host")
	t.Setenv("CHROMA_PORT", "8000")

	cfg, err := Load(LoadOptions{
		Flags: map[string]any{
			"host": "flag-host",
			"port": "8001",
			"ssl":  "false",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "flag-host", cfg.Host)
	assert.Equal(t, "8001", cfg.Port)
	assert.False(t, bool(cfg.SSL))
}

func TestLoad_OverridesWinOverFlags(t *testing.T) {
	clearChromaEnv(t)

	cfg, err := Load(LoadOptions{
		Flags:     map[string]any{"client_type": "http", "host": "flag-host"},
		Overrides: map[string]any{"host": "override-host"},
	})
	require.NoError(t, err)
	assert.Equal(t, "override-host", cfg.Host)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearChromaEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".chroma_env")
	content := "CHROMA_CLIENT_TYPE=http\nCHROMA_HOST=dotenv-host\nCHROMA_TENANT=\"dotenv-tenant\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CHROMA_HOST", "env-host")

	cfg, err := Load(LoadOptions{Flags: map[string]any{"dotenv_path": path}})
	require.NoError(t, err)

	assert.Equal(t, ClientHTTP, cfg.ClientType)
	assert.Equal(t, "env-host", cfg.Host)
	assert.Equal(t, "dotenv-tenant", cfg.Tenant)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearChromaEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `client_type: persistent
data_dir: /var/lib/chroma
embedding:
  provider: default
  dimension: 64
server:
  transport: http
  http_addr: 0.0.0.0:9999
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CHROMA_DATA_DIR", "/srv/chroma")

	cfg, err := Load(LoadOptions{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, ClientPersistent, cfg.ClientType)
	assert.Equal(t, "/srv/chroma", cfg.DataDir, "environment wins over file")
	assert.Equal(t, 64, cfg.Embedding.Dimension)
	assert.Equal(t, "http", cfg.Server.Transport)
	assert.Equal(t, "0.0.0.0:9999", cfg.Server.HTTPAddr)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearChromaEnv(t)
	_, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestLoad_InvalidSSL(t *testing.T) {
	clearChromaEnv(t)
	t.Setenv("CHROMA_SSL", "maybe")

	_, err := Load(LoadOptions{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestValidate_RequiredParameters(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(c *Config)
		msg  string
	}{
		{
			name: "http without host",
			cfg:  func(c *Config) { c.ClientType = ClientHTTP },
			msg:  "Host must be provided via --host flag or CHROMA_HOST environment variable when using HTTP client",
		},
		{
			name: "cloud without api key",
			cfg: func(c *Config) {
				c.ClientType = ClientCloud
				c.Tenant = "t"
				c.Database = "d"
			},
			msg: "API key must be provided via --api-key flag or CHROMA_API_KEY environment variable when using cloud client",
		},
		{
			name: "cloud without tenant",
			cfg: func(c *Config) {
				c.ClientType = ClientCloud
				c.APIKey = "key"
				c.Database = "d"
			},
			msg: "Tenant must be provided via --tenant flag or CHROMA_TENANT environment variable when using cloud client",
		},
		{
			name: "cloud without database",
			cfg: func(c *Config) {
				c.ClientType = ClientCloud
				c.APIKey = "key"
				c.Tenant = "t"
			},
			msg: "Database must be provided via --database flag or CHROMA_DATABASE environment variable when using cloud client",
		},
		{
			name: "persistent without data dir",
			cfg:  func(c *Config) { c.ClientType = ClientPersistent },
			msg:  "Data directory must be provided via --data-dir flag or CHROMA_DATA_DIR environment variable when using persistent client",
		},
		{
			name: "invalid client type",
			cfg:  func(c *Config) { c.ClientType = "invalid" },
			msg:  "Invalid client type 'invalid': must be one of http, cloud, persistent, ephemeral, qdrant",
		},
		{
			name: "invalid port",
			cfg: func(c *Config) {
				c.ClientType = ClientHTTP
				c.Host = "localhost"
				c.Port = "abc"
			},
			msg: `Invalid port "abc": not a number`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.cfg(cfg)
			cfg.Normalize()
			requireValidationError(t, cfg.Validate(), tt.msg)
		})
	}
}

func TestNormalize_CloudForcesHostAndSSL(t *testing.T) {
	cfg := Default()
	cfg.ClientType = "Cloud"
	cfg.Host = "somewhere-else"
	cfg.SSL = false

	cfg.Normalize()

	assert.Equal(t, ClientCloud, cfg.ClientType)
	assert.Equal(t, CloudHost, cfg.Host)
	assert.True(t, bool(cfg.SSL))
}

func TestNormalize_DefaultPorts(t *testing.T) {
	cfg := Default()
	cfg.ClientType = ClientHTTP
	cfg.Normalize()
	assert.Equal(t, "8000", cfg.Port)

	cfg = Default()
	cfg.ClientType = ClientQdrant
	cfg.Normalize()
	assert.Equal(t, "6334", cfg.Port)

	cfg = Default()
	cfg.Normalize()
	assert.Empty(t, cfg.Port)
}
