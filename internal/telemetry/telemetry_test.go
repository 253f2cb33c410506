package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/pageflow/browser"
	"github.com/BaSui01/pageflow/config"
	"github.com/BaSui01/pageflow/testutil"
	"github.com/BaSui01/pageflow/testutil/fixtures"
	"github.com/BaSui01/pageflow/testutil/mocks"
)

// saveAndRestoreGlobalProviders snapshots the current global OTel providers
// and restores them via t.Cleanup so tests don't leak state.
func saveAndRestoreGlobalProviders(t *testing.T) {
	t.Helper()
	origTP := otel.GetTracerProvider()
	origMP := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(origTP)
		otel.SetMeterProvider(origMP)
	})
}

func TestInit_Disabled(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	p, err := Init(context.Background(), config.TelemetryConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Nil(t, p.tp, "TracerProvider should be nil when disabled")
	assert.Nil(t, p.mp, "MeterProvider should be nil when disabled")
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInit_Enabled(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	cfg := config.TelemetryConfig{
		Enabled:      true,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "pageflow-test",
		SampleRate:   0.5,
	}
	p, err := Init(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.True(t, p.Enabled())

	_, tpIsSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	_, mpIsSDK := otel.GetMeterProvider().(*sdkmetric.MeterProvider)
	assert.True(t, tpIsSDK, "global TracerProvider should be *sdktrace.TracerProvider")
	assert.True(t, mpIsSDK, "global MeterProvider should be *sdkmetric.MeterProvider")

	// 没有 collector，Shutdown 可能返回连接错误，只要求不 panic
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NotPanics(t, func() { _ = p.Shutdown(ctx) })
}

func TestProviders_Shutdown_Nil(t *testing.T) {
	var p *Providers
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.False(t, p.Enabled())
}

func TestInstall_RecordsFacadeSpansAndCounter(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	spans := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	res, err := newResource(context.Background(), "")
	require.NoError(t, err)
	p := Install(res, 1.0, sdktrace.WithSyncer(spans), reader)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	// Automation 在构造时从全局 provider 取 tracer 和 meter
	provider := mocks.NewMockProvider().
		WithPage(fixtures.ItemsURL, fixtures.ItemsPage(2, 2))
	cfg := browser.DefaultConfig()
	cfg.ArtifactDir = testutil.TempArtifactDir(t)
	a := browser.NewAutomation(provider, cfg)

	ctx := testutil.TestContext(t)
	_, err = a.ExtractStructured(ctx, fixtures.ItemsURL, fixtures.ItemLocators())
	require.NoError(t, err)
	_, err = a.ExtractHTML(ctx, "https://down.test")
	require.Error(t, err)

	got := spans.GetSpans()
	require.Len(t, got, 2)
	assert.Equal(t, "browser.extract_structured", got[0].Name)
	assert.Equal(t, "browser.extract_html", got[1].Name)
	assert.Contains(t, got[0].Attributes, attribute.String("url.full", fixtures.ItemsURL))
	assert.Equal(t, "NAVIGATION_FAILED", got[1].Status.Description)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "pageflow.browser.calls" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	assert.EqualValues(t, 2, total)
}

func TestBuildVersion(t *testing.T) {
	// 测试二进制中 ReadBuildInfo 通常返回 "(devel)"
	assert.Equal(t, "dev", buildVersion())
}
