// Package session accumulates transcription results into an ordered session
// transcript, tracks per-segment performance statistics, and renders and
// persists the final artifact.
//
// The [Recorder] is the single-writer collection point: the pipeline appends
// [Segment] values strictly in arrival order (which equals time order, since
// segments are produced sequentially) and calls Finalize exactly once at
// shutdown. The finalized [Transcript] is the sole persisted artifact,
// written by [Writer] as a timestamped text file with a metadata header, a
// detailed per-segment listing, and a continuous plain-text rendering.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/voxscribe/voxscribe/pkg/provider/stt"
)

// ErrAlreadyFinalized is returned by [Recorder.Finalize] on the second and
// subsequent calls. Finalizing twice is a lifecycle-discipline bug in the
// caller, not a recoverable condition.
var ErrAlreadyFinalized = errors.New("session: already finalized")

// Segment is one transcribed utterance in the session transcript. Immutable
// once created.
type Segment struct {
	// Start is the utterance's start offset relative to session start.
	Start time.Duration

	// End is the utterance's end offset relative to session start.
	End time.Duration

	// Text is the transcribed content.
	Text string

	// Confidence is the backend's confidence score (0.0–1.0).
	Confidence float64

	// Language is the detected language code.
	Language string

	// Latency is how long the backend took to process this segment.
	Latency time.Duration
}

// Metadata describes the session as a whole. StartedAt is set at session
// start; EndedAt and Perf are filled in exactly once, at Finalize.
type Metadata struct {
	// StartedAt is the wall-clock session start time.
	StartedAt time.Time

	// EndedAt is the wall-clock session end time. Set exactly once, at
	// graceful shutdown or cancellation.
	EndedAt time.Time

	// Backend describes the transcription backend configuration in use,
	// including the device the backend settled on.
	Backend stt.Info

	// VADEngine names the voice activity classifier ("webrtc", "energy",
	// empty in chunk mode).
	VADEngine string

	// VADAggressiveness is the configured aggressiveness level (0–3).
	VADAggressiveness int

	// SegmenterMode is "vad" or "chunk".
	SegmenterMode string

	// Perf holds the aggregate performance statistics at finalize time.
	Perf PerfSnapshot
}

// Transcript is the finalized session record: metadata plus the ordered
// segment sequence. Write-once at session end.
type Transcript struct {
	Metadata Metadata
	Segments []Segment
}

// Recorder accumulates segments for one session. Append preserves arrival
// order in O(1); Finalize seals the transcript. The segment list is written
// by exactly one goroutine, but the mutex also makes the lifecycle guard safe
// if Finalize races a late Append.
type Recorder struct {
	mu        sync.Mutex
	meta      Metadata
	segments  []Segment
	finalized bool
}

// NewRecorder starts a session record with the given metadata. Metadata.Perf
// and Metadata.EndedAt are ignored here; they are filled in at Finalize.
func NewRecorder(meta Metadata) *Recorder {
	if meta.StartedAt.IsZero() {
		meta.StartedAt = time.Now()
	}
	return &Recorder{meta: meta}
}

// Append adds a segment to the transcript. Appending after Finalize returns
// [ErrAlreadyFinalized].
func (r *Recorder) Append(seg Segment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return ErrAlreadyFinalized
	}
	r.segments = append(r.segments, seg)
	return nil
}

// Len returns the number of segments appended so far.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.segments)
}

// Finalize seals the session: sets the end time, attaches the performance
// snapshot, and returns the completed Transcript. A second call returns
// [ErrAlreadyFinalized]; the transcript produced by the first call is
// unaffected.
func (r *Recorder) Finalize(perf PerfSnapshot) (Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return Transcript{}, ErrAlreadyFinalized
	}
	r.finalized = true
	r.meta.EndedAt = time.Now()
	r.meta.Perf = perf

	segs := make([]Segment, len(r.segments))
	copy(segs, r.segments)
	return Transcript{Metadata: r.meta, Segments: segs}, nil
}
