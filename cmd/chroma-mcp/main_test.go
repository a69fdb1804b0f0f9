package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/chroma-mcp/internal/config"
)

// isolateEnv points the dotenv lookup at an empty temp dir.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CHROMA_DOTENV_PATH", filepath.Join(t.TempDir(), "missing.env"))
	for _, key := range []string{
		"CHROMA_CLIENT_TYPE", "CHROMA_HOST", "CHROMA_PORT", "CHROMA_SSL", "CHROMA_TENANT",
		"CHROMA_DATABASE", "CHROMA_API_KEY", "CHROMA_DATA_DIR", "CHROMA_SERVER_TRANSPORT",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	isolateEnv(t)
	t.Setenv("CHROMA_CLIENT_TYPE", "http")
	t.Setenv("CHROMA_HOST", "env-host")

	root := newRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--host", "flag-host", "--ssl", "no"}))

	cfg, err := loadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, config.ClientHTTP, cfg.ClientType)
	assert.Equal(t, "flag-host", cfg.Host)
	assert.False(t, bool(cfg.SSL))
	assert.Equal(t, "8000", cfg.Port)
}

func TestLoadConfig_UnsetFlagsDoNotOverride(t *testing.T) {
	isolateEnv(t)
	t.Setenv("CHROMA_CLIENT_TYPE", "persistent")
	t.Setenv("CHROMA_DATA_DIR", "/tmp/chroma")

	root := newRootCmd()
	require.NoError(t, root.ParseFlags(nil))

	cfg, err := loadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, config.ClientPersistent, cfg.ClientType)
	assert.Equal(t, "/tmp/chroma", cfg.DataDir)
}

func TestLoadConfig_ValidationError(t *testing.T) {
	isolateEnv(t)

	root := newRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--client-type", "http"}))

	_, err := loadConfig(root)
	require.Error(t, err)
	assert.Equal(t,
		"Host must be provided via --host flag or CHROMA_HOST environment variable when using HTTP client",
		err.Error(),
	)
}

func TestServe_ConfigErrorIsFatal(t *testing.T) {
	isolateEnv(t)

	root := newRootCmd()
	root.SetArgs([]string{"--client-type", "cloud"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key must be provided")
}

func TestToolsCommand(t *testing.T) {
	isolateEnv(t)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"tools", "--log-level", "error"})
	require.NoError(t, root.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 11)
	assert.True(t, strings.HasPrefix(lines[0], "chroma_list_collections"))
}

func TestToolsCommand_Filters(t *testing.T) {
	isolateEnv(t)

	run := func(args ...string) []string {
		var out bytes.Buffer
		root := newRootCmd()
		root.SetOut(&out)
		root.SetArgs(append([]string{"tools", "--log-level", "error"}, args...))
		require.NoError(t, root.Execute())
		return strings.Split(strings.TrimSpace(out.String()), "\n")
	}

	names := run("--names")
	assert.Len(t, names, 11)
	assert.Equal(t, "chroma_list_collections", names[0])
	assert.Equal(t, "chroma_query_documents", names[10])

	assert.Equal(t, []string{
		"chroma_add_documents",
		"chroma_get_documents",
		"chroma_update_documents",
		"chroma_delete_documents",
		"chroma_query_documents",
	}, run("--category", "document", "--names"))

	assert.Equal(t, []string{"chroma_delete_collection"}, run("--category", "collection", "--search", "delete", "--names"))
	assert.Len(t, run("--category", "collection"), 6)
}

func TestCallCommand(t *testing.T) {
	isolateEnv(t)
	dataDir := t.TempDir()

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		root := newRootCmd()
		root.SetOut(&out)
		root.SetArgs(append([]string{"--client-type", "persistent", "--data-dir", dataDir, "--log-level", "error"}, args...))
		err := root.Execute()
		return strings.TrimSpace(out.String()), err
	}

	out, err := run("call", "chroma_create_collection", `{"collection_name": "notes"}`)
	require.NoError(t, err)
	assert.Equal(t, "Successfully created collection 'notes'", out)

	// A second process sees the persisted collection.
	out, err = run("call", "chroma_list_collections")
	require.NoError(t, err)
	assert.Equal(t, `["notes"]`, out)

	_, err = run("call", "chroma_delete_documents", `{"collection_name": "notes"}`)
	require.Error(t, err)
	assert.Equal(t, "Error executing tool chroma_delete_documents: No deletion criteria provided", err.Error())

	_, err = run("call", "chroma_create_collection", `{not json`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON arguments")
}
