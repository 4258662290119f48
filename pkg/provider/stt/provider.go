// Package stt defines the Transcriber interface for speech-to-text backends.
//
// A Transcriber converts one complete audio segment (an utterance assembled
// by the segmenter) into text with a confidence score and detected language.
// The pipeline depends only on this contract: backends are selected once at
// session start and are interchangeable without touching capture, VAD, or
// segmentation.
//
// Backends differ in their latency/accuracy/resource profile. The native
// whisper.cpp backend is accuracy-oriented: higher latency and memory
// footprint, suited to file transcription. The faster-whisper backend is
// speed-oriented: quantized execution with configurable numeric precision and
// GPU-preferred device selection. A failed call is always local to its
// segment — the caller logs it, counts it, and continues the session.
//
// Implementations must be safe for concurrent use, although the live pipeline
// only ever dispatches from a single goroutine.
package stt

import (
	"context"
	"fmt"

	"github.com/voxscribe/voxscribe/pkg/audio"
)

// Result is the outcome of transcribing one audio segment.
type Result struct {
	// Text is the transcribed speech content, whitespace-trimmed.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// backend does not report confidence.
	Confidence float64

	// Language is the detected (or configured) language code, e.g. "en".
	Language string
}

// Info describes a backend's resolved configuration for session metadata.
// The Device field reflects the one-time initialisation decision — when a
// GPU-preferred backend falls back to CPU, Device says so.
type Info struct {
	// Name identifies the backend implementation (e.g., "whisper-native",
	// "faster-whisper", "openai").
	Name string

	// Model is the model identifier or file path in use.
	Model string

	// Device is the execution device the backend settled on ("cpu", "cuda").
	Device string

	// ComputeType is the numeric precision in use ("int8", "float16",
	// "float32"). Empty for backends without a precision knob.
	ComputeType string
}

// TranscriptionError reports a per-segment transcription failure. It is never
// fatal to the session: the caller skips the segment, records the failure in
// the performance stats, and continues.
type TranscriptionError struct {
	// Backend names the implementation that failed.
	Backend string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("stt: %s: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TranscriptionError) Unwrap() error { return e.Err }

// Transcriber is the abstraction over any speech-to-text backend.
//
// Backend selection and configuration (model, precision, device) are provided
// once at construction and are immutable for the session's lifetime.
type Transcriber interface {
	// Transcribe converts one audio clip into text. It blocks until the
	// backend returns — calls are treated as atomic units and are never
	// cancelled mid-segment; ctx applies to the dispatch as a whole (network
	// timeout, process shutdown deadline).
	//
	// Returns a *[TranscriptionError] on decode or runtime failure. An empty
	// Result.Text with a nil error means the backend heard no words; the
	// caller may skip such segments without counting a failure.
	Transcribe(ctx context.Context, clip audio.Clip) (Result, error)

	// Info returns the backend's resolved configuration for inclusion in
	// session metadata.
	Info() Info

	// Close releases the backend's model or connection resources. Calling
	// Close more than once is safe and returns nil.
	Close() error
}
