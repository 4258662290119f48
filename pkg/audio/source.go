// Package audio defines the frame and clip types shared by every pipeline
// stage, the [FrameSource] abstraction over audio inputs, and PCM format
// conversion helpers.
//
// A FrameSource produces a strictly ordered stream of fixed-duration frames
// from some input — a raw PCM reader fed by a capture utility, a decoded WAV
// file, or a test double. Sources never drop or duplicate frames under normal
// operation; on overrun or device loss they fail loudly with a [CaptureError]
// so that downstream timing guarantees are never silently violated.
//
// This package lives under pkg/ because external code (alternative capture
// adapters) is expected to implement [FrameSource].
package audio

import (
	"context"
	"errors"
	"fmt"
)

// ErrStreamEnded is returned by [FrameSource.NextFrame] when the input is
// exhausted (end of file, closed pipe). It signals a graceful end of capture,
// not a failure; callers should flush and finalize the session.
var ErrStreamEnded = errors.New("audio: stream ended")

// CaptureError reports an unrecoverable input failure — the device
// disconnected, the pipe broke mid-frame, or the stream overran its buffer.
// It is fatal to the session: callers should flush whatever was captured and
// finalize.
type CaptureError struct {
	// Op names the failed operation (e.g., "read", "open").
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	return fmt.Sprintf("audio: capture %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CaptureError) Unwrap() error { return e.Err }

// FrameSource produces a continuous, ordered sequence of fixed-duration audio
// frames at a fixed sample rate.
//
// Implementations must preserve strict ordering (consecutive Seq values) and
// must not drop or duplicate frames. A source is consumed by exactly one
// goroutine; implementations need not be safe for concurrent NextFrame calls.
type FrameSource interface {
	// NextFrame blocks until a frame of the configured duration is available,
	// the ctx is cancelled, or the stream ends. It returns [ErrStreamEnded]
	// on graceful exhaustion, a *[CaptureError] on device failure, or
	// ctx.Err() on cancellation.
	NextFrame(ctx context.Context) (Frame, error)

	// Close releases the underlying input. Calling Close more than once is
	// safe and returns nil.
	Close() error
}
