// Package energy provides a [vad.Engine] based on a root-mean-square energy
// gate. It has no external dependencies and no CGO requirement, making it the
// fallback classifier on platforms where the WebRTC detector cannot be built.
//
// An energy gate cannot distinguish speech from other loud sounds, so it
// trades precision for portability. The aggressiveness level raises the RMS
// threshold: level 0 accepts near-silence, level 3 requires clearly audible
// signal.
package energy

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"

	"github.com/voxscribe/voxscribe/pkg/provider/vad"
)

// Compile-time assertion that Engine implements vad.Engine.
var _ vad.Engine = (*Engine)(nil)

// rmsThresholds maps aggressiveness (0–3) to the RMS energy level (in 16-bit
// PCM units, max 32 767) above which a frame counts as speech. 300
// corresponds to near-silence on typical microphones.
var rmsThresholds = [4]float64{150, 300, 450, 600}

// Engine creates energy-gate VAD sessions. The zero value is ready to use.
type Engine struct{}

// New returns a new Engine.
func New() *Engine { return &Engine{} }

// NewSession creates an energy-gate session with the given configuration.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &session{cfg: cfg, threshold: rmsThresholds[cfg.Aggressiveness]}, nil
}

// session is a live energy-gate session. Classification is a pure function of
// frame content; the session holds only its immutable configuration.
type session struct {
	cfg       vad.Config
	threshold float64
	closed    bool
	once      sync.Once
}

// ProcessFrame returns true when the frame's RMS energy exceeds the threshold
// selected by the configured aggressiveness.
func (s *session) ProcessFrame(frame []byte) (bool, error) {
	if s.closed {
		return false, errors.New("energy: session is closed")
	}
	if len(frame) != s.cfg.FrameBytes() {
		return false, &vad.FrameFormatError{Got: len(frame), Want: s.cfg.FrameBytes()}
	}
	return computeRMS(frame) >= s.threshold, nil
}

// Close marks the session closed. Calling Close more than once is safe and
// returns nil.
func (s *session) Close() error {
	s.once.Do(func() { s.closed = true })
	return nil
}

// computeRMS returns the root-mean-square energy of a 16-bit signed
// little-endian PCM buffer. Returns 0 for buffers shorter than one sample.
// The result is expressed in the same units as PCM sample values (0–32 767).
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2 // number of 16-bit samples
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
