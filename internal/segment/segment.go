// Package segment assembles classified audio frames into complete speech
// segments (utterances).
//
// The primary implementation is [Segmenter], a small state machine driven by
// per-frame speech/non-speech labels: it opens an utterance on the first
// speech frame, retains a bounded hangover of trailing silence so soft
// offsets are not truncated, and closes the utterance once the silence run
// exceeds a configured threshold. A pre-trigger ring buffer supplies leading
// padding the same way, so onsets are not clipped either.
//
// [Chunker] is the degraded fallback: it slices audio into uniform windows
// regardless of speech presence, trading segmentation quality for zero
// dependency on a classifier. Both implementations satisfy [Assembler] and
// emit the same [audio.Clip] shape, keeping the rest of the pipeline
// mode-agnostic.
package segment

import (
	"fmt"
	"time"

	"github.com/voxscribe/voxscribe/pkg/audio"
)

// Assembler turns a stream of labelled frames into complete utterances.
// Implementations are driven by a single goroutine; they need not be safe for
// concurrent use.
type Assembler interface {
	// Push feeds one frame with its speech label. When the frame completes
	// an utterance, Push returns the clip and true; otherwise ok is false.
	Push(frame audio.Frame, speech bool) (clip audio.Clip, ok bool)

	// Flush forces out any in-progress utterance that meets the minimum
	// duration; shorter partial buffers are discarded. Called on
	// cancellation so speech captured before shutdown is never lost.
	Flush() (clip audio.Clip, ok bool)
}

// Config holds the segmentation thresholds. All durations are rounded down
// to whole frames internally.
type Config struct {
	// SampleRate is the PCM sample rate in Hz of incoming frames.
	SampleRate int

	// Channels is the channel count of incoming frames.
	Channels int

	// FrameDuration is the fixed duration of each incoming frame.
	FrameDuration time.Duration

	// SilenceThreshold is the consecutive-silence duration that closes an
	// accumulating utterance.
	SilenceThreshold time.Duration

	// MinUtterance is the minimum emitted clip duration. Shorter
	// accumulations are discarded as noise blips, never emitted.
	MinUtterance time.Duration

	// Padding is the amount of silence retained on each utterance edge:
	// pre-trigger frames kept as leading padding and trailing hangover kept
	// after the last speech frame.
	Padding time.Duration

	// MaxUtterance bounds utterance length during continuous speech; when
	// exceeded the utterance is closed immediately. Zero disables the bound.
	MaxUtterance time.Duration
}

// Validate reports whether cfg holds a coherent set of values.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("segment: sample rate %d must be positive", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("segment: channel count %d must be positive", c.Channels)
	}
	if c.FrameDuration <= 0 {
		return fmt.Errorf("segment: frame duration %v must be positive", c.FrameDuration)
	}
	if c.SilenceThreshold < c.FrameDuration {
		return fmt.Errorf("segment: silence threshold %v shorter than one frame (%v)", c.SilenceThreshold, c.FrameDuration)
	}
	if c.MinUtterance < 0 || c.Padding < 0 || c.MaxUtterance < 0 {
		return fmt.Errorf("segment: negative duration in config")
	}
	return nil
}

// state enumerates the segmenter's per-utterance lifecycle.
type state int

const (
	// stateIdle: no active utterance; silence frames feed the pre-trigger
	// ring buffer and are otherwise discarded.
	stateIdle state = iota

	// stateAccumulating: an utterance is being built; silence frames join
	// the trailing hangover until the silence run crosses the threshold.
	stateAccumulating
)

// Compile-time assertion that Segmenter implements Assembler.
var _ Assembler = (*Segmenter)(nil)

// Segmenter is the VAD-driven utterance assembler. See the package comment
// for the state machine description.
type Segmenter struct {
	cfg Config

	state      state
	preRoll    *frameRing
	frames     []audio.Frame
	silenceRun time.Duration
}

// New creates a Segmenter with the given thresholds.
func New(cfg Config) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	preRollFrames := int(cfg.Padding / cfg.FrameDuration)
	return &Segmenter{
		cfg:     cfg,
		preRoll: newFrameRing(preRollFrames),
	}, nil
}

// Push feeds one labelled frame through the state machine.
func (s *Segmenter) Push(frame audio.Frame, speech bool) (audio.Clip, bool) {
	switch s.state {
	case stateIdle:
		if !speech {
			s.preRoll.add(frame)
			return audio.Clip{}, false
		}
		// Speech begins: the pre-trigger buffer becomes leading padding.
		s.frames = append(s.frames[:0], s.preRoll.drain()...)
		s.frames = append(s.frames, frame)
		s.silenceRun = 0
		s.state = stateAccumulating
		return audio.Clip{}, false

	case stateAccumulating:
		s.frames = append(s.frames, frame)
		if speech {
			s.silenceRun = 0
			if s.cfg.MaxUtterance > 0 && s.accumulated() >= s.cfg.MaxUtterance {
				return s.emit(0)
			}
			return audio.Clip{}, false
		}

		s.silenceRun += s.cfg.FrameDuration
		if s.silenceRun < s.cfg.SilenceThreshold {
			// Hangover: the utterance may resume if speech returns; the
			// silence frames already appended become natural padding.
			return audio.Clip{}, false
		}
		// Close, keeping only Padding worth of the trailing silence.
		return s.emit(s.silenceRun - s.cfg.Padding)
	}
	return audio.Clip{}, false
}

// Flush forces out the in-progress utterance if it meets the minimum
// duration. The trailing silence beyond the padding amount is trimmed the
// same way as on a normal close.
func (s *Segmenter) Flush() (audio.Clip, bool) {
	if s.state != stateAccumulating {
		return audio.Clip{}, false
	}
	trim := s.silenceRun - s.cfg.Padding
	if trim < 0 {
		trim = 0
	}
	return s.emit(trim)
}

// accumulated returns the duration currently buffered.
func (s *Segmenter) accumulated() time.Duration {
	return time.Duration(len(s.frames)) * s.cfg.FrameDuration
}

// emit closes the current utterance, dropping trimTail worth of frames from
// the end, and resets to idle. Utterances shorter than MinUtterance are
// discarded rather than emitted.
func (s *Segmenter) emit(trimTail time.Duration) (audio.Clip, bool) {
	frames := s.frames
	s.frames = nil
	s.silenceRun = 0
	s.state = stateIdle
	s.preRoll.clear()

	if drop := int(trimTail / s.cfg.FrameDuration); drop > 0 {
		if drop > len(frames) {
			drop = len(frames)
		}
		frames = frames[:len(frames)-drop]
	}
	if len(frames) == 0 {
		return audio.Clip{}, false
	}
	if time.Duration(len(frames))*s.cfg.FrameDuration < s.cfg.MinUtterance {
		return audio.Clip{}, false
	}

	var size int
	for _, f := range frames {
		size += len(f.Data)
	}
	pcm := make([]byte, 0, size)
	for _, f := range frames {
		pcm = append(pcm, f.Data...)
	}

	start := frames[0].Timestamp
	clip := audio.Clip{
		PCM:        pcm,
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
		Start:      start,
		End:        start + time.Duration(len(frames))*s.cfg.FrameDuration,
	}
	return clip, true
}

// frameRing is a small fixed-size ring buffer of the most recent frames,
// keyed by arrival order. It caps the memory held for leading padding.
type frameRing struct {
	buf   []audio.Frame
	head  int
	count int
}

// newFrameRing creates a ring holding up to n frames. n may be zero, in
// which case the ring stays empty.
func newFrameRing(n int) *frameRing {
	return &frameRing{buf: make([]audio.Frame, n)}
}

// add appends a frame, evicting the oldest when full.
func (r *frameRing) add(f audio.Frame) {
	if len(r.buf) == 0 {
		return
	}
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = f
		r.count++
		return
	}
	r.buf[r.head] = f
	r.head = (r.head + 1) % len(r.buf)
}

// drain returns the buffered frames in arrival order and empties the ring.
func (r *frameRing) drain() []audio.Frame {
	out := make([]audio.Frame, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	r.head = 0
	r.count = 0
	return out
}

// clear empties the ring without returning its contents.
func (r *frameRing) clear() {
	r.head = 0
	r.count = 0
}
