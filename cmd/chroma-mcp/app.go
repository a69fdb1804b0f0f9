package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chroma-mcp/internal/config"
	"github.com/fyrsmithlabs/chroma-mcp/internal/embeddings"
	"github.com/fyrsmithlabs/chroma-mcp/internal/logging"
	chromamcp "github.com/fyrsmithlabs/chroma-mcp/internal/mcp"
	"github.com/fyrsmithlabs/chroma-mcp/internal/telemetry"
	"github.com/fyrsmithlabs/chroma-mcp/internal/vectorstore"
)

// app holds the process-wide components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	tel      *telemetry.Telemetry
	embedder embeddings.Provider
	store    *vectorstore.Handle
	registry *chromamcp.Registry
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, err
	}

	logCfg, err := logging.FromAppConfig(cfg.Log, tel.IsEnabled())
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	embedder, err := embeddings.NewProvider(cfg.Embedding, embeddings.NewMetrics(logger.Underlying()))
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	store := vectorstore.NewHandle(func(ctx context.Context) (vectorstore.Client, error) {
		return vectorstore.NewClient(ctx, cfg, embedder, logger)
	})

	a := &app{
		cfg:      cfg,
		logger:   logger,
		tel:      tel,
		embedder: embedder,
		store:    store,
	}
	a.registry = chromamcp.NewRegistry(store,
		chromamcp.WithLogger(logger),
		chromamcp.WithMetrics(chromamcp.NewMetrics(logger)),
		chromamcp.WithTracer(tel.Tracer("github.com/fyrsmithlabs/chroma-mcp/internal/mcp")),
	)

	logger.Debug(ctx, "components initialized",
		zap.String("client_type", cfg.ClientType),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Int("tools", a.registry.Count()),
	)
	return a, nil
}

// close releases the store client, the embedder and telemetry in that order.
func (a *app) close() {
	ctx := context.Background()
	if err := a.store.Reset(); err != nil {
		a.logger.Warn(ctx, "closing store client", zap.Error(err))
	}
	if err := a.embedder.Close(); err != nil {
		a.logger.Warn(ctx, "closing embedder", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.tel.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown", zap.Error(err))
	}
	_ = a.logger.Sync()
}
