// Package vad defines the Engine interface for Voice Activity Detection backends.
//
// A VAD engine wraps a frame-level speech detector (e.g., WebRTC VAD or a
// simple energy gate) and surfaces it as a per-stream session. A session
// classifies one fixed-duration PCM frame at a time as speech or non-speech;
// the segmenter uses the labels to assemble utterances.
//
// Classification is a pure function of frame content and the configured
// aggressiveness: sessions keep no adaptive state across calls, so changing
// aggressiveness between sessions takes effect immediately.
//
// VAD is synchronous: ProcessFrame returns immediately with a result, so it
// can sit in the hot capture path without adding latency of its own.
// Implementations must be safe for concurrent use across different
// sessions. A single SessionHandle should not be shared across goroutines
// unless the implementation explicitly documents thread safety for that type.
package vad

import "fmt"

// Aggressiveness bounds for [Config.Aggressiveness].
const (
	// AggressivenessQuality (0) favours recall: almost everything that could
	// be speech is labelled speech.
	AggressivenessQuality = 0

	// AggressivenessMax (3) favours precision: aggressive silence rejection,
	// best for noisy environments.
	AggressivenessMax = 3
)

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// PCM frames passed to ProcessFrame. Common values: 8000, 16000, 32000,
	// 48000.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds. Most
	// VAD models operate on fixed frame sizes (10, 20, or 30 ms).
	// ProcessFrame returns a *[FrameFormatError] if the supplied frame does
	// not match this size.
	FrameSizeMs int

	// Aggressiveness selects the operating point, 0–3. 0 favours
	// recall/quality, 3 favours precision/aggressive silence rejection.
	Aggressiveness int
}

// Validate reports whether cfg holds a coherent set of values.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("vad: sample rate %d must be positive", c.SampleRate)
	}
	if c.FrameSizeMs <= 0 {
		return fmt.Errorf("vad: frame size %dms must be positive", c.FrameSizeMs)
	}
	if c.Aggressiveness < AggressivenessQuality || c.Aggressiveness > AggressivenessMax {
		return fmt.Errorf("vad: aggressiveness %d out of range 0–3", c.Aggressiveness)
	}
	return nil
}

// FrameBytes returns the expected byte length of one 16-bit mono PCM frame
// under this configuration.
func (c Config) FrameBytes() int {
	return c.SampleRate * c.FrameSizeMs / 1000 * 2
}

// FrameFormatError reports a frame whose length does not match the agreed
// duration and sample rate. This is a configuration mismatch and therefore
// fatal at startup; it never occurs at runtime once the frame size is fixed.
type FrameFormatError struct {
	// Got is the byte length of the rejected frame.
	Got int

	// Want is the expected byte length per [Config.FrameBytes].
	Want int
}

// Error implements the error interface.
func (e *FrameFormatError) Error() string {
	return fmt.Sprintf("vad: frame length %dB does not match configured format (want %dB)", e.Got, e.Want)
}

// SessionHandle represents an active VAD session for a single audio stream.
// It is an interface so that test code can supply mock implementations
// without a live engine.
//
// A SessionHandle should not be shared between goroutines unless the
// implementation explicitly guarantees concurrent safety.
type SessionHandle interface {
	// ProcessFrame classifies a single audio frame and returns true when the
	// frame contains speech. The frame must be raw little-endian 16-bit mono
	// PCM at the SampleRate and FrameSizeMs configured when the session was
	// created. Returns a *[FrameFormatError] if the frame size is wrong, or
	// another error if the engine encounters an internal failure.
	//
	// This method is designed to be called synchronously in the audio
	// pipeline loop; it must not block.
	ProcessFrame(frame []byte) (bool, error)

	// Close releases all resources associated with the session. After Close,
	// ProcessFrame must return errors or be a no-op. Calling Close more than
	// once is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions. It is the top-level interface
// implemented by each VAD backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a new VAD session with the given configuration. The
	// session is immediately ready to accept audio frames.
	//
	// Returns an error if the configuration is invalid (unsupported sample
	// rate, frame size, or aggressiveness out of range) or if the engine
	// cannot allocate resources for the session.
	NewSession(cfg Config) (SessionHandle, error)
}
