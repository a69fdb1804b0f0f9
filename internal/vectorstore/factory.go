package vectorstore

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chroma-mcp/internal/config"
	"github.com/fyrsmithlabs/chroma-mcp/internal/logging"
)

// heartbeatTimeout bounds the connectivity check for remote backends.
const heartbeatTimeout = 10 * time.Second

// NewClient builds the store client selected by cfg.ClientType:
//   - "http": a self-hosted Chroma server at host:port
//   - "cloud": Chroma Cloud, with the API key sent as x-chroma-token
//   - "persistent": an embedded chromem database under DataDir
//   - "ephemeral": an embedded in-memory chromem database
//   - "qdrant": a Qdrant server over gRPC
//
// Remote clients are heartbeat-checked before being returned. The result is
// wrapped with Instrument.
func NewClient(ctx context.Context, cfg *config.Config, embedder Embedder, logger *logging.Logger) (Client, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("vectorstore")

	var (
		client Client
		err    error
	)
	switch cfg.ClientType {
	case config.ClientHTTP, config.ClientCloud:
		client, err = newChroma(cfg, embedder, logger)
	case config.ClientPersistent:
		client, err = NewChromemClient(ChromemConfig{Path: cfg.DataDir, Compress: cfg.Compress}, embedder, logger)
	case config.ClientEphemeral:
		client, err = NewChromemClient(ChromemConfig{}, embedder, logger)
	case config.ClientQdrant:
		client, err = newQdrant(ctx, cfg, embedder, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported client type: %s", ErrInvalidConfig, cfg.ClientType)
	}
	if err != nil {
		return nil, err
	}

	if cfg.ClientType == config.ClientHTTP || cfg.ClientType == config.ClientCloud {
		hctx, cancel := context.WithTimeout(ctx, heartbeatTimeout)
		defer cancel()
		if err := client.Heartbeat(hctx); err != nil {
			_ = client.Close()
			return nil, err
		}
	}

	logger.Info(ctx, "vector store ready",
		zap.String("client_type", cfg.ClientType),
		zap.String("host", cfg.Host),
	)
	return Instrument(client, cfg.ClientType), nil
}

func newChroma(cfg *config.Config, embedder Embedder, logger *logging.Logger) (*ChromaClient, error) {
	scheme := "http"
	if cfg.SSL {
		scheme = "https"
	}
	host := cfg.Host
	if cfg.Port != "" {
		host = net.JoinHostPort(cfg.Host, cfg.Port)
	}
	hc := ChromaConfig{
		BaseURL:   scheme + "://" + host,
		Tenant:    cfg.Tenant,
		Database:  cfg.Database,
		APIKey:    cfg.APIKey.Value(),
		BasicAuth: cfg.CustomAuthCredentials.Value(),
		Timeout:   cfg.RequestTimeout.Duration(),
		RateLimit: cfg.RateLimit,
	}
	return NewChromaClient(hc, embedder, logger)
}

func newQdrant(ctx context.Context, cfg *config.Config, embedder Embedder, logger *logging.Logger) (*QdrantClient, error) {
	port, err := cfg.PortNumber()
	if err != nil {
		return nil, fmt.Errorf("%w: port: %v", ErrInvalidConfig, err)
	}
	return NewQdrantClient(ctx, QdrantConfig{
		Host:   cfg.Host,
		Port:   port,
		UseTLS: bool(cfg.SSL),
		APIKey: cfg.APIKey.Value(),
	}, embedder, logger)
}
