// Package webrtc provides a [vad.Engine] backed by the WebRTC voice activity
// detector (via the go-webrtcvad CGO bindings).
//
// The WebRTC VAD operates on 10, 20, or 30 ms frames of 16-bit mono PCM at
// 8, 16, 32, or 48 kHz and exposes four aggressiveness modes (0–3) that map
// directly onto [vad.Config.Aggressiveness].
package webrtc

import (
	"errors"
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/voxscribe/voxscribe/pkg/provider/vad"
)

// Compile-time assertion that Engine implements vad.Engine.
var _ vad.Engine = (*Engine)(nil)

// Engine creates WebRTC VAD sessions. The zero value is ready to use.
type Engine struct{}

// New returns a new Engine.
func New() *Engine { return &Engine{} }

// NewSession creates a WebRTC VAD session with the given configuration.
// Returns an error if the sample rate / frame size combination is not
// supported by the WebRTC detector or the aggressiveness is out of range.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !webrtcvad.ValidRateAndFrameLength(cfg.SampleRate, cfg.FrameBytes()/2) {
		return nil, fmt.Errorf("webrtc: unsupported rate/frame combination %dHz/%dms", cfg.SampleRate, cfg.FrameSizeMs)
	}

	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtc: create detector: %w", err)
	}
	if err := v.SetMode(cfg.Aggressiveness); err != nil {
		return nil, fmt.Errorf("webrtc: set mode %d: %w", cfg.Aggressiveness, err)
	}

	return &session{cfg: cfg, vad: v}, nil
}

// session is a live WebRTC VAD session. Not safe for concurrent use.
type session struct {
	cfg    vad.Config
	vad    *webrtcvad.VAD
	closed bool
	once   sync.Once
}

// ProcessFrame classifies one frame. The detector itself keeps no state
// between frames, so the result depends only on frame content and the
// configured aggressiveness.
func (s *session) ProcessFrame(frame []byte) (bool, error) {
	if s.closed {
		return false, errors.New("webrtc: session is closed")
	}
	if len(frame) != s.cfg.FrameBytes() {
		return false, &vad.FrameFormatError{Got: len(frame), Want: s.cfg.FrameBytes()}
	}
	active, err := s.vad.Process(s.cfg.SampleRate, frame)
	if err != nil {
		return false, fmt.Errorf("webrtc: process frame: %w", err)
	}
	return active, nil
}

// Close releases the detector. Calling Close more than once is safe and
// returns nil.
func (s *session) Close() error {
	s.once.Do(func() { s.closed = true })
	return nil
}
