// Package whisper provides the accuracy-oriented [stt.Transcriber] backed by
// the whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// The model is loaded once at startup and shared across all Transcribe calls;
// each call creates its own whisper context, so the backend is safe for
// concurrent use. Inference runs in full precision on CPU, trading latency
// and memory for the best available accuracy — the right profile for
// file-based, non-real-time transcription.
//
// Usage:
//
//	t, err := whisper.New("models/ggml-base.en.bin", whisper.WithLanguage("en"))
//	res, err := t.Transcribe(ctx, clip)
//	t.Close()
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voxscribe/voxscribe/pkg/audio"
	"github.com/voxscribe/voxscribe/pkg/provider/stt"
)

// backendName identifies this backend in errors and session metadata.
const backendName = "whisper-native"

// defaultLanguage is used when no language option is supplied. "auto" lets
// whisper.cpp detect the spoken language per segment.
const defaultLanguage = "auto"

// Compile-time assertion that Transcriber implements stt.Transcriber.
var _ stt.Transcriber = (*Transcriber)(nil)

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithLanguage sets the language code passed to whisper.cpp (e.g., "en",
// "de"). The special value "auto" enables per-segment language detection.
// Defaults to "auto".
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// Transcriber implements stt.Transcriber using the whisper.cpp Go bindings.
type Transcriber struct {
	model     whisperlib.Model
	modelPath string
	language  string
}

// New creates a Transcriber that loads the whisper.cpp model from the given
// file path. The model is loaded once and shared across all calls. The caller
// must call Close when the backend is no longer needed.
func New(modelPath string, opts ...Option) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	t := &Transcriber{
		model:     model,
		modelPath: modelPath,
		language:  defaultLanguage,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Transcribe runs whisper.cpp inference over the clip's PCM data using a
// fresh context. Each context is NOT thread-safe, but the model can be shared
// across goroutines. The confidence score is the mean token probability over
// all decoded tokens.
func (t *Transcriber) Transcribe(ctx context.Context, clip audio.Clip) (stt.Result, error) {
	if err := ctx.Err(); err != nil {
		return stt.Result{}, &stt.TranscriptionError{Backend: backendName, Err: err}
	}

	samples := pcmToFloat32Mono(clip.PCM, clip.Channels)

	wctx, err := t.model.NewContext()
	if err != nil {
		return stt.Result{}, &stt.TranscriptionError{Backend: backendName, Err: fmt.Errorf("create context: %w", err)}
	}

	if err := wctx.SetLanguage(t.language); err != nil {
		return stt.Result{}, &stt.TranscriptionError{Backend: backendName, Err: fmt.Errorf("set language %q: %w", t.language, err)}
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return stt.Result{}, &stt.TranscriptionError{Backend: backendName, Err: fmt.Errorf("process audio: %w", err)}
	}

	var (
		parts      []string
		probSum    float64
		tokenCount int
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Result{}, &stt.TranscriptionError{Backend: backendName, Err: fmt.Errorf("read segment: %w", err)}
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
		for _, tok := range segment.Tokens {
			probSum += float64(tok.P)
			tokenCount++
		}
	}

	res := stt.Result{
		Text:     strings.Join(parts, " "),
		Language: t.language,
	}
	if tokenCount > 0 {
		res.Confidence = probSum / float64(tokenCount)
	}
	if t.language == "auto" {
		res.Language = wctx.DetectedLanguage()
	}
	return res, nil
}

// Info returns the backend description for session metadata. whisper.cpp in
// this configuration always runs full precision on CPU.
func (t *Transcriber) Info() stt.Info {
	return stt.Info{
		Name:        backendName,
		Model:       t.modelPath,
		Device:      "cpu",
		ComputeType: "float32",
	}
}

// Close releases the whisper model. Calling Close more than once is safe and
// returns nil.
func (t *Transcriber) Close() error {
	if t.model != nil {
		err := t.model.Close()
		t.model = nil
		return err
	}
	return nil
}
