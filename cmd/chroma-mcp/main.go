// Chroma-mcp serves Chroma collection and document tools over MCP.
//
// Usage:
//
//	# Serve on stdio with an in-memory store
//	chroma-mcp
//
//	# Serve a local Chroma over streamable HTTP
//	chroma-mcp --client-type http --host localhost --port 8000 --transport http
//
//	# Call one tool without an MCP client
//	chroma-mcp call chroma_list_collections '{"limit": 10}'
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/chroma-mcp/internal/config"
)

// Version information (set via ldflags during build)
var version = "dev"

var configFile string

// flagKeys maps CLI flags onto koanf config paths.
var flagKeys = map[string]string{
	"client-type":             "client_type",
	"host":                    "host",
	"port":                    "port",
	"ssl":                     "ssl",
	"tenant":                  "tenant",
	"database":                "database",
	"api-key":                 "api_key",
	"custom-auth-credentials": "custom_auth_credentials",
	"data-dir":                "data_dir",
	"dotenv-path":             "dotenv_path",
	"embedding-function":      "embedding.provider",
	"embedding-model":         "embedding.model",
	"transport":               "server.transport",
	"http-addr":               "server.http_addr",
	"log-level":               "log.level",
	"log-format":              "log.format",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chroma-mcp",
		Short: "MCP server for Chroma vector collections",
		Long: `chroma-mcp exposes Chroma collection and document operations as MCP tools.

The store is selected with --client-type (ephemeral, persistent, http, cloud, qdrant).
Settings resolve from flags, then CHROMA_* environment variables, then the
dotenv file (.chroma_env), then an optional YAML config file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runServe,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "YAML config file")
	pf.String("client-type", "", "store client type: ephemeral, persistent, http, cloud, qdrant")
	pf.String("host", "", "store host (http, qdrant)")
	pf.String("port", "", "store port")
	pf.String("ssl", "", "use TLS for http clients (true/false)")
	pf.String("tenant", "", "tenant (cloud)")
	pf.String("database", "", "database (cloud)")
	pf.String("api-key", "", "API key (cloud, qdrant)")
	pf.String("custom-auth-credentials", "", "basic auth credentials user:password (http)")
	pf.String("data-dir", "", "data directory (persistent)")
	pf.String("dotenv-path", "", "dotenv file to load")
	pf.String("embedding-function", "", "embedding provider: default, fastembed, tei")
	pf.String("embedding-model", "", "embedding model name")
	pf.String("transport", "", "MCP transport: stdio or http")
	pf.String("http-addr", "", "listen address for the http transport")
	pf.String("log-level", "", "log level")
	pf.String("log-format", "", "log format: json or console")

	root.AddCommand(newToolsCmd(), newCallCmd())
	return root
}

// loadConfig resolves configuration using only the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := make(map[string]any)
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f != nil && f.Changed {
			flags[key] = f.Value.String()
		}
	}
	cfg, err := config.Load(config.LoadOptions{ConfigFile: configFile, Flags: flags})
	if err != nil {
		var ve *config.ValidationError
		if errors.As(err, &ve) {
			return nil, ve
		}
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}
