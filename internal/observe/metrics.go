// Package observe provides application-wide observability primitives for
// VoxScribe: OpenTelemetry metrics with a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. Everything recorded here is
// observational: pipeline behaviour never depends on a metric value.
package observe

import (
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all VoxScribe metrics.
const meterName = "github.com/voxscribe/voxscribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// TranscribeDuration tracks per-segment backend transcription latency.
	// Use with attribute.String("backend", ...).
	TranscribeDuration metric.Float64Histogram

	// Utterances counts speech segments emitted by the segmenter.
	Utterances metric.Int64Counter

	// TranscribeErrors counts per-segment backend failures (the segment is
	// skipped, the session continues). Use with attribute.String("backend", ...).
	TranscribeErrors metric.Int64Counter

	// DroppedFrames counts frames dropped under capture backpressure.
	DroppedFrames metric.Int64Counter

	// AudioSeconds accumulates the duration of transcribed audio.
	AudioSeconds metric.Float64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for batch-transcription latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscribeDuration, err = m.Float64Histogram("voxscribe.transcribe.duration",
		metric.WithDescription("Latency of per-segment transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("voxscribe.segmenter.utterances",
		metric.WithDescription("Speech segments emitted by the segmenter."),
	); err != nil {
		return nil, err
	}
	if met.TranscribeErrors, err = m.Int64Counter("voxscribe.transcribe.errors",
		metric.WithDescription("Per-segment transcription failures."),
	); err != nil {
		return nil, err
	}
	if met.DroppedFrames, err = m.Int64Counter("voxscribe.capture.dropped_frames",
		metric.WithDescription("Frames dropped under capture backpressure."),
	); err != nil {
		return nil, err
	}
	if met.AudioSeconds, err = m.Float64Counter("voxscribe.transcribe.audio_seconds",
		metric.WithDescription("Total duration of transcribed audio."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}
