package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "helm-sim", config.ServiceName)
	require.Empty(t, config.OTLPEndpoint)
	require.Positive(t, config.ExportInterval)
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, p.Tracer())
	require.NotNil(t, p.Meter())

	ctx := context.Background()
	p.RecordIntent(ctx, "approve", "applied")
	p.RecordVerification(ctx, "session", true)
	_, finish := p.TrackOperation(ctx, "test.operation")
	finish(errors.New("boom"))
	require.NoError(t, p.Shutdown(ctx))
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordIntent(ctx, "deny", "ignored")
	m.RecordAppend(ctx, "session")
	m.RecordVerification(ctx, "blocks", false)
	m.RecordBlock(ctx, "pipeline_execution")
	m.RecordFreeze(ctx)
	NoopMetrics().RecordFreeze(ctx)
}

func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestMetricsWithManualReader(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	p, err := New(ctx, DefaultConfig(), WithReader(reader))
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(ctx) }()

	p.RecordIntent(ctx, "approve", "applied")
	p.RecordIntent(ctx, "deny", "ignored")
	p.RecordAppend(ctx, "session")
	p.RecordVerification(ctx, "session", false)
	p.RecordBlock(ctx, "advisor_consensus")
	p.RecordFreeze(ctx)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Equal(t, int64(2), sumFor(t, rm, "helm_sim.intents"))
	require.Equal(t, int64(1), sumFor(t, rm, "helm_sim.ledger.appends"))
	require.Equal(t, int64(1), sumFor(t, rm, "helm_sim.ledger.verifications"))
	require.Equal(t, int64(1), sumFor(t, rm, "helm_sim.simulator.blocks"))
	require.Equal(t, int64(1), sumFor(t, rm, "helm_sim.session.freezes"))

	name, ok := rm.Resource.Set().Value(attribute.Key("service.name"))
	require.True(t, ok)
	require.Equal(t, "helm-sim", name.AsString())
	_, ok = rm.Resource.Set().Value(attribute.Key("telemetry.sdk.name"))
	require.True(t, ok, "default resource attributes are kept")
}

func TestNewProviderWithEndpoint(t *testing.T) {
	config := DefaultConfig()
	config.OTLPEndpoint = "127.0.0.1:4317"
	config.Insecure = true

	p, err := New(context.Background(), config)
	require.NoError(t, err)
	require.NotNil(t, p.Tracer())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, finish := p.TrackOperation(ctx, "test.endpoint")
	finish(nil)
	require.NoError(t, p.Shutdown(ctx))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.True(t, strings.HasPrefix(out, "{"))
	require.Contains(t, out, `"k":"v"`)

	buf.Reset()
	NewLogger("debug", "text", &buf).Debug("hello")
	require.Contains(t, buf.String(), "msg=hello")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
