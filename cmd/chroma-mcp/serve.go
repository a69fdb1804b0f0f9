package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/chroma-mcp/internal/http"
	chromamcp "github.com/fyrsmithlabs/chroma-mcp/internal/mcp"
)

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	// Build the client up front so an unreachable store fails startup.
	if _, err := a.store.Get(ctx); err != nil {
		return err
	}

	srv, err := chromamcp.NewServer(&chromamcp.Config{
		Name:    "chroma",
		Version: version,
		Logger:  a.logger,
	}, a.registry)
	if err != nil {
		return err
	}

	a.logger.Info(ctx, "chroma-mcp starting",
		zap.String("version", version),
		zap.String("client_type", cfg.ClientType),
		zap.String("transport", cfg.Server.Transport),
	)

	if cfg.Server.Transport == "http" {
		hs, err := httpserver.NewServer(srv, a.logger, &httpserver.Config{
			Addr:            cfg.Server.HTTPAddr,
			ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
		})
		if err != nil {
			return err
		}
		return hs.Run(ctx)
	}
	return srv.Run(ctx)
}
