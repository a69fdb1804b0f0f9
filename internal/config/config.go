// Package config resolves chroma-mcp configuration.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Client types accepted by the store factory.
const (
	ClientHTTP       = "http"
	ClientCloud      = "cloud"
	ClientPersistent = "persistent"
	ClientEphemeral  = "ephemeral"
	ClientQdrant     = "qdrant"
)

// CloudHost is the fixed host used by the cloud client type.
const CloudHost = "api.trychroma.com"

// DefaultDotenvPath is loaded when no dotenv path is configured.
const DefaultDotenvPath = ".chroma_env"

// Config is the resolved process configuration.
type Config struct {
	ClientType            string   `koanf:"client_type"`
	Host                  string   `koanf:"host"`
	Port                  string   `koanf:"port"`
	SSL                   Bool     `koanf:"ssl"`
	Tenant                string   `koanf:"tenant"`
	Database              string   `koanf:"database"`
	APIKey                Secret   `koanf:"api_key"`
	CustomAuthCredentials Secret   `koanf:"custom_auth_credentials"`
	DataDir               string   `koanf:"data_dir"`
	Compress              bool     `koanf:"compress"`
	DotenvPath            string   `koanf:"dotenv_path"`
	RequestTimeout        Duration `koanf:"request_timeout"`
	RateLimit             float64  `koanf:"rate_limit"`

	Embedding EmbeddingConfig `koanf:"embedding"`
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// EmbeddingConfig selects the embedding provider used for documents and queries.
type EmbeddingConfig struct {
	// Provider is one of "default", "fastembed", "tei".
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	CacheDir  string `koanf:"cache_dir"`
	Dimension int    `koanf:"dimension"`
}

// ServerConfig controls the MCP transport.
type ServerConfig struct {
	// Transport is "stdio" or "http".
	Transport       string   `koanf:"transport"`
	HTTPAddr        string   `koanf:"http_addr"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LogConfig is the subset of logging settings exposed through flags and env.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig is the subset of OpenTelemetry settings exposed through flags and env.
type TelemetryConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint"`
	Protocol string `koanf:"protocol"`
	Insecure bool   `koanf:"insecure"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		ClientType:     ClientEphemeral,
		SSL:            true,
		Compress:       true,
		DotenvPath:     DefaultDotenvPath,
		RequestTimeout: Duration(30 * time.Second),
		Embedding: EmbeddingConfig{
			Provider:  "default",
			Model:     "BAAI/bge-small-en-v1.5",
			BaseURL:   "http://localhost:8080",
			Dimension: 384,
		},
		Server: ServerConfig{
			Transport:       "stdio",
			HTTPAddr:        "127.0.0.1:8080",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Endpoint: "localhost:4317",
			Protocol: "grpc",
			Insecure: true,
		},
	}
}

// ValidationError is a fatal startup error. Its message is stable and shown verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Normalize applies the fixed settings implied by the client type.
func (c *Config) Normalize() {
	c.ClientType = strings.ToLower(strings.TrimSpace(c.ClientType))
	if c.ClientType == ClientCloud {
		c.Host = CloudHost
		c.SSL = true
	}
	if c.Port == "" {
		switch c.ClientType {
		case ClientHTTP:
			c.Port = "8000"
		case ClientQdrant:
			c.Port = "6334"
		}
	}
}

// Validate checks that every parameter required by the client type is present.
func (c *Config) Validate() error {
	switch c.ClientType {
	case ClientHTTP:
		if c.Host == "" {
			return invalid("Host must be provided via --host flag or CHROMA_HOST environment variable when using HTTP client")
		}
	case ClientCloud:
		if !c.APIKey.IsSet() {
			return invalid("API key must be provided via --api-key flag or CHROMA_API_KEY environment variable when using cloud client")
		}
		if c.Tenant == "" {
			return invalid("Tenant must be provided via --tenant flag or CHROMA_TENANT environment variable when using cloud client")
		}
		if c.Database == "" {
			return invalid("Database must be provided via --database flag or CHROMA_DATABASE environment variable when using cloud client")
		}
	case ClientPersistent:
		if c.DataDir == "" {
			return invalid("Data directory must be provided via --data-dir flag or CHROMA_DATA_DIR environment variable when using persistent client")
		}
	case ClientQdrant:
		if c.Host == "" {
			return invalid("Host must be provided via --host flag or CHROMA_HOST environment variable when using qdrant client")
		}
	case ClientEphemeral:
	default:
		return invalid("Invalid client type '%s': must be one of http, cloud, persistent, ephemeral, qdrant", c.ClientType)
	}

	if c.Port != "" {
		if _, err := c.PortNumber(); err != nil {
			return invalid("Invalid port %q: %v", c.Port, err)
		}
	}
	if c.RateLimit < 0 {
		return invalid("rate_limit must be >= 0, got %v", c.RateLimit)
	}

	switch c.Embedding.Provider {
	case "default", "fastembed", "tei":
	default:
		return invalid("Invalid embedding function '%s': must be one of default, fastembed, tei", c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return invalid("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}

	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return invalid("Invalid transport '%s': must be stdio or http", c.Server.Transport)
	}
	return nil
}

// PortNumber parses Port. An empty port returns 0.
func (c *Config) PortNumber() (int, error) {
	if c.Port == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(c.Port)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("out of range")
	}
	return n, nil
}
