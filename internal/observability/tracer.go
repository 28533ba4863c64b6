// Package observability wires OpenTelemetry tracing around the Coherence
// Agent's orchestration loop: one span per phase (rectification, reflexion,
// injection) and one span per mandate the Sbire executor dispatches.
package observability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// ExporterType selects where finished spans are sent.
type ExporterType string

const (
	ExporterConsole ExporterType = "console"
	ExporterNone    ExporterType = "none"
)

// TracerConfig governs a PhaseTracer's exporter and resource attributes.
type TracerConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	ExporterType   ExporterType
}

// DefaultTracerConfig returns a config that exports nothing: tracing is
// opt-in until a deployment names a real exporter.
func DefaultTracerConfig() *TracerConfig {
	return &TracerConfig{
		ServiceName:    "memoire",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		ExporterType:   ExporterNone,
	}
}

// PhaseTracer wraps an otel trace.Tracer with the two span shapes the
// Coherence Agent needs: a phase span and a mandate span.
type PhaseTracer struct {
	config      *TracerConfig
	tracer      trace.Tracer
	provider    *sdktrace.TracerProvider
	initialized bool
}

// NewPhaseTracer builds a PhaseTracer. A nil config falls back to
// DefaultTracerConfig, which exports nothing. ExporterConsole writes spans
// to stdout via stdouttrace, matching the console exporter every otel
// deployment starts with before pointing at a real collector.
func NewPhaseTracer(config *TracerConfig) (*PhaseTracer, error) {
	if config == nil {
		config = DefaultTracerConfig()
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
		attribute.String("environment", config.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	var opts []sdktrace.TracerProviderOption
	opts = append(opts, sdktrace.WithResource(res))

	switch config.ExporterType {
	case ExporterConsole:
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("observability: build stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	case ExporterNone, "":
		// No span processor: spans are created and discarded. Keeps the
		// instrumentation points live without forcing an exporter on
		// every deployment.
	default:
		return nil, fmt.Errorf("observability: unknown exporter type %q", config.ExporterType)
	}

	provider := sdktrace.NewTracerProvider(opts...)

	return &PhaseTracer{
		config:      config,
		tracer:      provider.Tracer("memoire/coherence"),
		provider:    provider,
		initialized: true,
	}, nil
}

// Shutdown flushes and releases the underlying TracerProvider.
func (t *PhaseTracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// StartPhase opens a span covering one Coherence Agent phase
// (rectification, reflexion or injection) over one piece of content.
func (t *PhaseTracer) StartPhase(ctx context.Context, phase string, mode string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "coherence.phase",
		trace.WithAttributes(
			attribute.String("coherence.phase", phase),
			attribute.String("coherence.mode", string(mode)),
		),
	)
}

// EndPhase closes a phase span, recording how many findings it produced.
func (t *PhaseTracer) EndPhase(span trace.Span, findingCount int) {
	span.SetAttributes(attribute.Int("coherence.findings", findingCount))
	span.End()
}

// StartMandate opens a span covering one Sbire mandate dispatch.
func (t *PhaseTracer) StartMandate(ctx context.Context, mandateType string, iteration int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "sbire.mandate",
		trace.WithAttributes(
			attribute.String("sbire.mandate_type", mandateType),
			attribute.Int("sbire.iteration", iteration),
		),
	)
}

// EndMandate closes a mandate span, recording the hit count it returned.
func (t *PhaseTracer) EndMandate(span trace.Span, hitCount int) {
	span.SetAttributes(attribute.Int("sbire.hits", hitCount))
	span.End()
}

var (
	defaultTracer     *PhaseTracer
	defaultTracerOnce sync.Once
)

// GetTracer returns the process-wide PhaseTracer, built from
// DefaultTracerConfig on first use. Deployments that want spans exported
// call NewPhaseTracer themselves and pass the result in instead.
func GetTracer() *PhaseTracer {
	defaultTracerOnce.Do(func() {
		tracer, err := NewPhaseTracer(nil)
		if err != nil {
			// DefaultTracerConfig never errors in practice (ExporterNone
			// builds no exporter); fall back to the bare otel global
			// tracer rather than panicking if it ever does.
			defaultTracer = &PhaseTracer{tracer: otel.Tracer("memoire/coherence"), initialized: false}
			return
		}
		defaultTracer = tracer
	})
	return defaultTracer
}
