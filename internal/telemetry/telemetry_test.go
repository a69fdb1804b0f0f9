package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/fyrsmithlabs/chroma-mcp/internal/config"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"disabled skips checks", func(c *Config) { c.Endpoint = "" }, false},
		{"enabled defaults", func(c *Config) { c.Enabled = true }, false},
		{"missing endpoint", func(c *Config) { c.Enabled = true; c.Endpoint = "" }, true},
		{"bad protocol", func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, true},
		{"http protocol", func(c *Config) { c.Enabled = true; c.Protocol = "http/protobuf"; c.Endpoint = "http://127.0.0.1:4318" }, false},
		{"insecure remote", func(c *Config) { c.Enabled = true; c.Endpoint = "otel.example.com:4317" }, true},
		{"secure remote", func(c *Config) { c.Enabled = true; c.Insecure = false; c.Endpoint = "otel.example.com:4317" }, false},
		{"sampling out of range", func(c *Config) { c.Enabled = true; c.SamplingRate = 1.5 }, true},
		{"zero export interval", func(c *Config) { c.Enabled = true; c.ExportInterval = 0 }, true},
		{"zero shutdown timeout", func(c *Config) { c.Enabled = true; c.ShutdownTimeout = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg := FromAppConfig(config.TelemetryConfig{
		Enabled:  true,
		Endpoint: "localhost:4318",
		Protocol: "http/protobuf",
		Insecure: true,
	}, "1.2.3")
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "localhost:4318", cfg.Endpoint)
	assert.Equal(t, "http/protobuf", cfg.Protocol)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, "chroma-mcp", cfg.ServiceName)
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "localhost:4318", stripScheme("http://localhost:4318"))
	assert.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	assert.Equal(t, "localhost:4317", stripScheme("localhost:4317"))
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)
	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Healthy)
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Protocol = "carrier-pigeon"
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}

func TestNilTelemetry(t *testing.T) {
	var tel *Telemetry
	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.True(t, tel.Health().Degraded)
	assert.False(t, tel.IsEnabled())
}

func TestShutdown_UsesConfiguredTimeout(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.ShutdownTimeout = config.Duration(time.Second)
	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.Health().Healthy)
}

func TestTestTelemetry_RecordsSpansAndMetrics(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	_, span := tt.Tracer("chroma-mcp").Start(ctx, "tool.chroma_list_collections")
	span.SetAttributes(attribute.String("tool.name", "chroma_list_collections"))
	span.End()

	tt.AssertSpanExists(t, "tool.chroma_list_collections")
	tt.AssertSpanAttribute(t, "tool.chroma_list_collections", "tool.name", "chroma_list_collections")

	counter, err := tt.Meter("chroma-mcp").Int64Counter("calls")
	require.NoError(t, err)
	counter.Add(ctx, 2)

	hist, err := tt.Meter("chroma-mcp").Float64Histogram("latency")
	require.NoError(t, err)
	hist.Record(ctx, 0.5)

	assert.Equal(t, int64(2), tt.CounterValue(t, "calls"))
	assert.Equal(t, uint64(1), tt.HistogramCount(t, "latency"))
}

func TestNew_EnabledInstallsLoggerProvider(t *testing.T) {
	for _, protocol := range []string{"grpc", "http/protobuf"} {
		t.Run(protocol, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Enabled = true
			cfg.Protocol = protocol
			cfg.ShutdownTimeout = config.Duration(200 * time.Millisecond)

			tel, err := New(context.Background(), cfg)
			require.NoError(t, err)
			assert.False(t, tel.Health().Degraded)
			assert.IsType(t, &sdklog.LoggerProvider{}, tel.LoggerProvider())

			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			_ = tel.Shutdown(ctx)
			assert.False(t, tel.Health().Healthy)
		})
	}
}
