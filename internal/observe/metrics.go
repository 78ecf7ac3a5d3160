// Package observe provides observability primitives for visage:
// OpenTelemetry metrics, tracing helpers, and HTTP middleware for the debug
// listener.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all visage metrics.
const meterName = "github.com/visagelabs/visage"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// Utterances counts recognized user utterances. Use with attribute:
	//   attribute.String("state", ...) — the classified conversational state.
	Utterances metric.Int64Counter

	// RecognitionEvents counts recognition lifecycle events. Use with
	// attribute: attribute.String("event", ...) — started, stopped,
	// start_failed, error.
	RecognitionEvents metric.Int64Counter

	// SilencePrompts counts "are you still there?" nudges.
	SilencePrompts metric.Int64Counter

	// ClipLoadFailures counts clip load failures. Use with attributes:
	//   attribute.String("state", ...), attribute.String("reason", ...)
	ClipLoadFailures metric.Int64Counter

	// FallbackResolutions counts states shown degraded through the
	// fallback chain. Use with attributes:
	//   attribute.String("state", ...), attribute.String("effective", ...)
	FallbackResolutions metric.Int64Counter

	// FallbackCycles counts fallback chain cycle detections. Any non-zero
	// value indicates a chain misconfiguration.
	FallbackCycles metric.Int64Counter

	// StatesShown counts effective-state changes. Use with attribute:
	//   attribute.String("state", ...)
	StatesShown metric.Int64Counter

	// SessionResets counts full conversation resets.
	SessionResets metric.Int64Counter

	// HTTPRequestDuration tracks debug endpoint latency. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Utterances, err = m.Int64Counter("visage.utterances",
		metric.WithDescription("Recognized user utterances by classified state."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionEvents, err = m.Int64Counter("visage.recognition.events",
		metric.WithDescription("Recognition lifecycle events by kind."),
	); err != nil {
		return nil, err
	}
	if met.SilencePrompts, err = m.Int64Counter("visage.silence_prompts",
		metric.WithDescription("Silence-timeout prompts spoken by the character."),
	); err != nil {
		return nil, err
	}
	if met.ClipLoadFailures, err = m.Int64Counter("visage.clip.load_failures",
		metric.WithDescription("Clip load failures by state and reason."),
	); err != nil {
		return nil, err
	}
	if met.FallbackResolutions, err = m.Int64Counter("visage.fallback.resolutions",
		metric.WithDescription("States shown degraded through the fallback chain."),
	); err != nil {
		return nil, err
	}
	if met.FallbackCycles, err = m.Int64Counter("visage.fallback.cycles",
		metric.WithDescription("Fallback chain cycle detections."),
	); err != nil {
		return nil, err
	}
	if met.StatesShown, err = m.Int64Counter("visage.states_shown",
		metric.WithDescription("Effective-state changes by state."),
	); err != nil {
		return nil, err
	}
	if met.SessionResets, err = m.Int64Counter("visage.session.resets",
		metric.WithDescription("Full conversation resets."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("visage.http.request.duration",
		metric.WithDescription("Debug endpoint latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUtterance records one classified utterance.
func (m *Metrics) RecordUtterance(ctx context.Context, state string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(attribute.String("state", state)),
	)
}

// RecordRecognition records one recognition lifecycle event.
func (m *Metrics) RecordRecognition(ctx context.Context, event string) {
	m.RecognitionEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("event", event)),
	)
}

// RecordSilencePrompt records one silence-timeout nudge.
func (m *Metrics) RecordSilencePrompt(ctx context.Context) {
	m.SilencePrompts.Add(ctx, 1)
}

// RecordClipLoadFailure records one clip load failure.
func (m *Metrics) RecordClipLoadFailure(ctx context.Context, state, reason string) {
	m.ClipLoadFailures.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("state", state),
			attribute.String("reason", reason),
		),
	)
}

// RecordFallbackResolution records one degraded state resolution.
func (m *Metrics) RecordFallbackResolution(ctx context.Context, state, effective string) {
	m.FallbackResolutions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("state", state),
			attribute.String("effective", effective),
		),
	)
}

// RecordFallbackCycle records one chain cycle detection.
func (m *Metrics) RecordFallbackCycle(ctx context.Context) {
	m.FallbackCycles.Add(ctx, 1)
}

// RecordStateShown records one effective-state change.
func (m *Metrics) RecordStateShown(ctx context.Context, state string) {
	m.StatesShown.Add(ctx, 1,
		metric.WithAttributes(attribute.String("state", state)),
	)
}

// RecordSessionReset records one full conversation reset.
func (m *Metrics) RecordSessionReset(ctx context.Context) {
	m.SessionResets.Add(ctx, 1)
}
