// Package openai provides an [stt.Transcriber] backed by the OpenAI audio
// transcription API (Whisper hosted by OpenAI).
//
// Unlike the local backends this one requires no model files or inference
// server — only an API key — at the cost of per-request network latency and
// sending audio off-machine. The API does not report a confidence score, so
// Result.Confidence is always zero.
package openai

import (
	"bytes"
	"context"
	"errors"
	"strings"

	openailib "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxscribe/voxscribe/pkg/audio"
	"github.com/voxscribe/voxscribe/pkg/provider/stt"
)

// backendName identifies this backend in errors and session metadata.
const backendName = "openai"

// defaultModel is the hosted transcription model used when none is configured.
const defaultModel = "whisper-1"

// Compile-time assertion that Transcriber implements stt.Transcriber.
var _ stt.Transcriber = (*Transcriber)(nil)

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithModel sets the hosted model identifier (e.g., "whisper-1",
// "gpt-4o-mini-transcribe"). Defaults to "whisper-1".
func WithModel(model string) Option {
	return func(t *Transcriber) { t.model = model }
}

// WithLanguage sets the ISO-639-1 language hint (e.g., "en"). An empty string
// lets the API auto-detect the language. Defaults to empty.
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// WithBaseURL overrides the API endpoint, for OpenAI-compatible gateways.
func WithBaseURL(u string) Option {
	return func(t *Transcriber) { t.baseURL = u }
}

// Transcriber implements stt.Transcriber against the OpenAI transcription API.
type Transcriber struct {
	client   openailib.Client
	model    string
	language string
	baseURL  string
}

// New creates a Transcriber using the given API key. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	t := &Transcriber{
		model: defaultModel,
	}
	for _, o := range opts {
		o(t)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if t.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(t.baseURL))
	}
	t.client = openailib.NewClient(reqOpts...)
	return t, nil
}

// Transcribe encodes the clip as WAV and submits it to the transcription API.
func (t *Transcriber) Transcribe(ctx context.Context, clip audio.Clip) (stt.Result, error) {
	wav := audio.EncodeWAV(clip.PCM, clip.SampleRate, clip.Channels)

	params := openailib.AudioTranscriptionNewParams{
		File:  openailib.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: openailib.AudioModel(t.model),
	}
	if t.language != "" {
		params.Language = openailib.String(t.language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Result{}, &stt.TranscriptionError{Backend: backendName, Err: err}
	}

	return stt.Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: t.language,
	}, nil
}

// Info returns the backend description for session metadata. Execution
// happens on OpenAI's side, so the device is reported as "api".
func (t *Transcriber) Info() stt.Info {
	return stt.Info{
		Name:   backendName,
		Model:  t.model,
		Device: "api",
	}
}

// Close is a no-op: the client holds no persistent connections that need
// explicit teardown. Calling Close more than once is safe and returns nil.
func (t *Transcriber) Close() error { return nil }
