package session

import (
	"sync"
	"time"
)

// Perf collects per-segment performance observations: audio duration versus
// processing latency, plus a failure counter for segments the backend could
// not transcribe. It is purely observational — the pipeline never consults it
// to alter behaviour — and its snapshot is persisted in the session metadata.
//
// Thread-safe for concurrent use.
type Perf struct {
	mu sync.Mutex

	segments      int64
	failures      int64
	droppedFrames int64
	audio         time.Duration
	processing    time.Duration
}

// NewPerf creates an empty performance monitor.
func NewPerf() *Perf {
	return &Perf{}
}

// Record adds one successfully transcribed segment's audio duration and
// processing latency to the running totals.
func (p *Perf) Record(audioDur, latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.segments++
	p.audio += audioDur
	p.processing += latency
}

// RecordFailure counts a segment that failed transcription and was skipped.
func (p *Perf) RecordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures++
}

// RecordDroppedFrames counts frames dropped under backpressure.
func (p *Perf) RecordDroppedFrames(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.droppedFrames += n
}

// PerfSnapshot is a point-in-time view of the aggregate statistics.
type PerfSnapshot struct {
	// Segments is the number of successfully transcribed segments.
	Segments int64

	// Failures is the number of segments skipped due to backend errors.
	Failures int64

	// DroppedFrames is the number of frames dropped under backpressure.
	DroppedFrames int64

	// Audio is the total duration of transcribed audio.
	Audio time.Duration

	// Processing is the total backend processing time.
	Processing time.Duration

	// RealTimeFactor is Processing ÷ Audio; below 1.0 means the backend
	// keeps up with real time. Zero when no audio was transcribed.
	RealTimeFactor float64
}

// AvgLatency returns the mean backend latency per segment, or zero when no
// segments were recorded.
func (s PerfSnapshot) AvgLatency() time.Duration {
	if s.Segments == 0 {
		return 0
	}
	return s.Processing / time.Duration(s.Segments)
}

// Snapshot returns a point-in-time view of the running totals.
func (p *Perf) Snapshot() PerfSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := PerfSnapshot{
		Segments:      p.segments,
		Failures:      p.failures,
		DroppedFrames: p.droppedFrames,
		Audio:         p.audio,
		Processing:    p.processing,
	}
	if p.audio > 0 {
		snap.RealTimeFactor = float64(p.processing) / float64(p.audio)
	}
	return snap
}
