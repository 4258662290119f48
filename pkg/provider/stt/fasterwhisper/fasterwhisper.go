// Package fasterwhisper provides the speed-oriented [stt.Transcriber] backed
// by a faster-whisper (CTranslate2) inference server.
//
// faster-whisper runs quantized Whisper models with configurable numeric
// precision — int8 for maximum throughput, float16 on GPU, float32 for
// reference accuracy — and is typically several times faster than the
// reference implementation. This client submits each utterance as a WAV
// upload to the server's /inference endpoint and forwards the configured
// model, device, and compute-type hints.
//
// Device selection happens exactly once, at construction: when the preferred
// device is "cuda", New probes the server with a short silent clip and falls
// back to CPU/int8 if GPU inference is unavailable. The fallback is silent to
// the caller aside from a logged notice; the resolved device is reported via
// [Transcriber.Info] so it lands in the session metadata. There is no
// per-call device branching.
//
// Usage:
//
//	t, err := fasterwhisper.New("http://localhost:8000",
//	    fasterwhisper.WithModel("base"),
//	    fasterwhisper.WithDevice("cuda"),
//	    fasterwhisper.WithComputeType("float16"),
//	)
//	res, err := t.Transcribe(ctx, clip)
package fasterwhisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/voxscribe/voxscribe/pkg/audio"
	"github.com/voxscribe/voxscribe/pkg/provider/stt"
)

// backendName identifies this backend in errors and session metadata.
const backendName = "faster-whisper"

const (
	defaultModel       = "base"
	defaultLanguage    = "" // empty lets the server auto-detect
	defaultDevice      = "cpu"
	defaultComputeType = "int8"

	// probeSampleRate and probeDuration size the silent clip used for the
	// one-time GPU probe at construction.
	probeSampleRate = 16000
	probeDuration   = 100 * time.Millisecond
)

// Compile-time assertion that Transcriber implements stt.Transcriber.
var _ stt.Transcriber = (*Transcriber)(nil)

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithModel sets the model identifier forwarded to the server (e.g., "base",
// "small", "large-v3"). Defaults to "base".
func WithModel(model string) Option {
	return func(t *Transcriber) { t.model = model }
}

// WithLanguage sets the language code sent to the server (e.g., "en", "de").
// An empty string lets the server auto-detect the language. Defaults to empty.
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// WithDevice sets the preferred execution device ("cpu" or "cuda"). When
// "cuda" is requested but the probe fails, the backend falls back to "cpu"
// with int8 precision. Defaults to "cpu".
func WithDevice(device string) Option {
	return func(t *Transcriber) { t.device = device }
}

// WithComputeType sets the numeric precision ("int8", "float16", "float32").
// Reduced-precision modes trade accuracy for throughput. Defaults to "int8".
func WithComputeType(ct string) Option {
	return func(t *Transcriber) { t.computeType = ct }
}

// WithHTTPClient overrides the HTTP client used for server requests. Useful
// in tests and for custom timeouts.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transcriber) { t.httpClient = c }
}

// Transcriber implements stt.Transcriber against a faster-whisper HTTP server.
type Transcriber struct {
	baseURL     string
	model       string
	language    string
	device      string
	computeType string
	httpClient  *http.Client
}

// New creates a Transcriber for the faster-whisper server at baseURL (e.g.,
// "http://localhost:8000"). baseURL must be non-empty. When the configured
// device is "cuda", New performs a one-time probe inference and downgrades to
// CPU/int8 if the probe fails — this is not an error.
func New(baseURL string, opts ...Option) (*Transcriber, error) {
	if baseURL == "" {
		return nil, errors.New("fasterwhisper: baseURL must not be empty")
	}
	t := &Transcriber{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       defaultModel,
		language:    defaultLanguage,
		device:      defaultDevice,
		computeType: defaultComputeType,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(t)
	}

	if t.device == "cuda" {
		t.probeGPU()
	}
	return t, nil
}

// probeGPU submits a short silent clip with the preferred device settings.
// On failure the backend downgrades to CPU/int8 for the whole session.
func (t *Transcriber) probeGPU() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	silent := make([]byte, 2*probeSampleRate*int(probeDuration)/int(time.Second))
	_, err := t.infer(ctx, silent, probeSampleRate, 1)
	if err != nil {
		slog.Info("fasterwhisper: GPU inference unavailable, falling back to CPU",
			"requestedDevice", t.device,
			"requestedComputeType", t.computeType,
			"error", err,
		)
		t.device = "cpu"
		t.computeType = "int8"
	}
}

// Transcribe encodes the clip as WAV and submits it to the server. The
// confidence score is exp(mean avg_logprob) over the returned segments, which
// maps the server's log-probabilities into [0, 1].
func (t *Transcriber) Transcribe(ctx context.Context, clip audio.Clip) (stt.Result, error) {
	out, err := t.infer(ctx, clip.PCM, clip.SampleRate, clip.Channels)
	if err != nil {
		return stt.Result{}, &stt.TranscriptionError{Backend: backendName, Err: err}
	}

	var (
		parts   []string
		lpSum   float64
		lpCount int
	)
	for _, seg := range out.Segments {
		text := strings.TrimSpace(seg.Text)
		if text != "" {
			parts = append(parts, text)
		}
		lpSum += seg.AvgLogprob
		lpCount++
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		text = strings.Join(parts, " ")
	}

	res := stt.Result{
		Text:     text,
		Language: out.Language,
	}
	if res.Language == "" {
		res.Language = t.language
	}
	if lpCount > 0 {
		res.Confidence = math.Exp(lpSum / float64(lpCount))
		if res.Confidence > 1 {
			res.Confidence = 1
		}
	}
	return res, nil
}

// inferResponse is the JSON body returned by the server's /inference endpoint.
type inferResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Text       string  `json:"text"`
		AvgLogprob float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// infer encodes pcm as a WAV file and POSTs it to the server's /inference
// endpoint as multipart/form-data, forwarding model/device/precision hints.
func (t *Transcriber) infer(ctx context.Context, pcm []byte, sampleRate, channels int) (*inferResponse, error) {
	wav := audio.EncodeWAV(pcm, sampleRate, channels)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("write wav data: %w", err)
	}

	fields := map[string]string{
		"model":        t.model,
		"device":       t.device,
		"compute_type": t.computeType,
	}
	if t.language != "" {
		fields["language"] = t.language
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write %s field: %w", k, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	endpoint := t.baseURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	out := &inferResponse{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("parse JSON response: %w", err)
	}
	return out, nil
}

// Info returns the backend description, including the device the backend
// settled on after the construction-time probe.
func (t *Transcriber) Info() stt.Info {
	return stt.Info{
		Name:        backendName,
		Model:       t.model,
		Device:      t.device,
		ComputeType: t.computeType,
	}
}

// Close is a no-op: the server owns the model lifetime. Calling Close more
// than once is safe and returns nil.
func (t *Transcriber) Close() error { return nil }
