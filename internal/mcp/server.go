package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chroma-mcp/internal/logging"
)

// Server exposes a Registry over the MCP protocol.
type Server struct {
	mcp      *mcp.Server
	registry *Registry
	logger   *logging.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "chroma-mcp")
	Name string

	// Version is the server version (default: "dev")
	Version string

	Logger *logging.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "chroma-mcp",
		Version: "dev",
		Logger:  logging.NewNop(),
	}
}

// NewServer registers every tool in registry with a new MCP server.
func NewServer(cfg *Config, registry *Registry) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Version == "" {
		cfg.Version = def.Version
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		registry: registry,
		logger:   cfg.Logger.Named("mcp"),
	}
	for _, tool := range registry.List() {
		s.mcp.AddTool(&mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}, s.handler(tool.Name))
	}
	return s, nil
}

// handler adapts Registry.CallTool to the SDK's raw tool handler. Tool
// failures are reported in-band with IsError set, never as protocol errors.
func (s *Server) handler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if raw := req.Params.Arguments; len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return errorResult(toToolError(name, invalidArgument("Invalid arguments: %v", err))), nil
			}
		}

		content, err := s.registry.CallTool(ctx, name, args)
		if err != nil {
			var te *ToolError
			if !errors.As(err, &te) {
				te = toToolError(name, err)
			}
			return errorResult(te), nil
		}

		out := make([]mcp.Content, len(content))
		for i, c := range content {
			out[i] = c
		}
		return &mcp.CallToolResult{Content: out}, nil
	}
}

func errorResult(te *ToolError) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: te.Error()}},
	}
}

// MCPServer returns the underlying SDK server, for mounting on other transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Registry returns the tool registry the server dispatches to.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Heartbeat checks that the store client can be built and reached.
func (s *Server) Heartbeat(ctx context.Context) error {
	if s.registry.store == nil {
		return fmt.Errorf("no store configured")
	}
	c, err := s.registry.store.Get(ctx)
	if err != nil {
		return err
	}
	return c.Heartbeat(ctx)
}

// Run serves on the stdio transport until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "starting MCP server on stdio transport", zap.Int("tools", s.registry.Count()))
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Close releases the store client, if one was created.
func (s *Server) Close() error {
	s.logger.Info(context.Background(), "closing MCP server")
	if s.registry.store == nil {
		return nil
	}
	if err := s.registry.store.Reset(); err != nil {
		return fmt.Errorf("closing store client: %w", err)
	}
	return nil
}
