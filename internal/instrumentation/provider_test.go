package instrumentation

import (
	"context"
	"testing"
	"time"
)

func newTestProvider(t *testing.T, metricsExporter, tracingExporter string) *Provider {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "outreach-test",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: metricsExporter,
		TracingExporter: tracingExporter,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{ServiceName: "outreach-test"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if provider.Enabled() {
		t.Error("expected provider to be disabled")
	}
	if provider.Metrics() == nil {
		t.Error("expected metrics to be non-nil even when disabled")
	}
	if provider.MetricsHandler() != nil {
		t.Error("expected no metrics handler when disabled")
	}
	if provider.Tracer("test") == nil {
		t.Error("expected a no-op tracer")
	}

	// recording on the no-op metrics must not panic
	provider.Metrics().RecordPollCycle(context.Background(), CycleNoReplies, 0, time.Second)

	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("expected no error on shutdown, got %v", err)
	}
}

func TestNewProvider_Prometheus(t *testing.T) {
	provider := newTestProvider(t, ExporterPrometheus, ExporterNone)

	if !provider.Enabled() {
		t.Error("expected provider to be enabled")
	}
	if provider.MetricsHandler() == nil {
		t.Error("expected a metrics handler for the prometheus exporter")
	}
	if provider.Tracer("test") == nil {
		t.Error("expected tracer to be non-nil")
	}
}

func TestNewProvider_Stdout(t *testing.T) {
	provider := newTestProvider(t, ExporterStdout, ExporterStdout)

	if provider.MetricsHandler() != nil {
		t.Error("expected no metrics handler for the stdout exporter")
	}
}

func TestNewProvider_Errors(t *testing.T) {
	tests := []struct {
		name    string
		metrics string
		tracing string
	}{
		{name: "invalid metrics exporter", metrics: "invalid", tracing: ExporterNone},
		{name: "invalid tracing exporter", metrics: ExporterPrometheus, tracing: "invalid"},
		{name: "otlp tracing without endpoint", metrics: ExporterPrometheus, tracing: ExporterOTLP},
		{name: "otlp metrics without endpoint", metrics: ExporterOTLP, tracing: ExporterNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), Config{
				ServiceName:     "outreach-test",
				Enabled:         true,
				MetricsExporter: tt.metrics,
				TracingExporter: tt.tracing,
			})
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}
