// Package observe provides the observability primitives for voicenav:
// OpenTelemetry metrics, tracing spans per voice interaction, context-aware
// structured logging and HTTP middleware for the status server.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus by [InitProvider]. A package-level [DefaultMetrics] instance is
// provided for convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all voicenav metrics.
const meterName = "github.com/MrWong99/voicenav"

// Pipeline stages used as the "stage" attribute of StageDuration.
const (
	StageWindow     = "window"
	StageCapture    = "capture"
	StageTranscribe = "transcribe"
	StageParse      = "parse"
	StageDispatch   = "dispatch"
	StageFeedback   = "feedback"
)

// Metrics holds every metric instrument of the application. All fields are
// safe for concurrent use.
type Metrics struct {
	// StageDuration tracks per-stage latency. Attribute: stage.
	StageDuration metric.Float64Histogram

	// TranscriptionConfidence tracks the confidence of command transcripts.
	TranscriptionConfidence metric.Float64Histogram

	// Interactions counts finished voice interactions. Attribute: outcome.
	Interactions metric.Int64Counter

	// WakeTriggers counts wake phrase detections.
	WakeTriggers metric.Int64Counter

	// FalseTriggers counts wake detections followed by no speech.
	FalseTriggers metric.Int64Counter

	// Commands counts dispatched commands. Attributes: intent, status.
	Commands metric.Int64Counter

	// DroppedCommands counts commands rejected because dispatch was busy.
	DroppedCommands metric.Int64Counter

	// LowConfidence counts transcripts rejected by the confidence policy.
	LowConfidence metric.Int64Counter

	// ProviderErrors counts provider failures. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// HTTPRequestDuration tracks status server latency. Attributes: method,
	// path, status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds, from a quick parse to a
// slow page load.
var latencyBuckets = []float64{
	0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

var confidenceBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("voicenav.stage.duration",
		metric.WithDescription("Latency of one pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionConfidence, err = m.Float64Histogram("voicenav.transcription.confidence",
		metric.WithDescription("Confidence reported for command transcripts."),
		metric.WithExplicitBucketBoundaries(confidenceBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Interactions, err = m.Int64Counter("voicenav.interactions",
		metric.WithDescription("Finished voice interactions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.WakeTriggers, err = m.Int64Counter("voicenav.wake.triggers",
		metric.WithDescription("Wake phrase detections."),
	); err != nil {
		return nil, err
	}
	if met.FalseTriggers, err = m.Int64Counter("voicenav.wake.false_triggers",
		metric.WithDescription("Wake detections followed by no speech."),
	); err != nil {
		return nil, err
	}
	if met.Commands, err = m.Int64Counter("voicenav.commands",
		metric.WithDescription("Dispatched commands by intent and status."),
	); err != nil {
		return nil, err
	}
	if met.DroppedCommands, err = m.Int64Counter("voicenav.commands.dropped",
		metric.WithDescription("Commands dropped because dispatch was busy."),
	); err != nil {
		return nil, err
	}
	if met.LowConfidence, err = m.Int64Counter("voicenav.transcription.low_confidence",
		metric.WithDescription("Transcripts rejected by the confidence policy."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voicenav.provider.errors",
		metric.WithDescription("Provider failures by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voicenav.http.request.duration",
		metric.WithDescription("Status server request latency."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] built on
// [otel.GetMeterProvider]. It panics if instrument creation fails, which does
// not happen with the global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStage records how long a pipeline stage took.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(Attr("stage", stage)))
}

// RecordInteraction counts one finished interaction.
func (m *Metrics) RecordInteraction(ctx context.Context, outcome string) {
	m.Interactions.Add(ctx, 1, metric.WithAttributes(Attr("outcome", outcome)))
}

// RecordCommand counts one dispatched command.
func (m *Metrics) RecordCommand(ctx context.Context, intent, status string) {
	m.Commands.Add(ctx, 1, metric.WithAttributes(
		Attr("intent", intent),
		Attr("status", status),
	))
}

// RecordProviderError counts one provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider),
		Attr("kind", kind),
	))
}
