// Package mock provides a test double for the stt.Transcriber interface.
//
// Script per-call results and errors, then inspect the recorded clips:
//
//	tr := &mock.Transcriber{
//	    Results: []stt.Result{{Text: "hello", Confidence: 0.9, Language: "en"}},
//	}
//	res, err := tr.Transcribe(ctx, clip)
package mock

import (
	"context"
	"sync"

	"github.com/voxscribe/voxscribe/pkg/audio"
	"github.com/voxscribe/voxscribe/pkg/provider/stt"
)

// Compile-time assertion that Transcriber implements stt.Transcriber.
var _ stt.Transcriber = (*Transcriber)(nil)

// TranscribeCall records a single invocation of Transcriber.Transcribe.
type TranscribeCall struct {
	// Clip is the clip passed to Transcribe. The PCM slice is not copied.
	Clip audio.Clip
}

// Transcriber is a mock implementation of stt.Transcriber. It returns the
// scripted Results in order; once exhausted it returns DefaultResult.
type Transcriber struct {
	mu sync.Mutex

	// Results are returned one per Transcribe call, in order.
	Results []stt.Result

	// DefaultResult is returned once Results is exhausted.
	DefaultResult stt.Result

	// TranscribeErr, if non-nil, is returned by every Transcribe call.
	TranscribeErr error

	// InfoResult is returned by Info. Defaults to a backend named "mock".
	InfoResult stt.Info

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	next int
}

// Transcribe records the call and returns the next scripted result.
func (t *Transcriber) Transcribe(_ context.Context, clip audio.Clip) (stt.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TranscribeCalls = append(t.TranscribeCalls, TranscribeCall{Clip: clip})
	if t.TranscribeErr != nil {
		return stt.Result{}, t.TranscribeErr
	}
	if t.next < len(t.Results) {
		res := t.Results[t.next]
		t.next++
		return res, nil
	}
	return t.DefaultResult, nil
}

// Info returns InfoResult, defaulting the backend name to "mock".
func (t *Transcriber) Info() stt.Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.InfoResult.Name == "" {
		return stt.Info{Name: "mock"}
	}
	return t.InfoResult
}

// Close records the call and returns CloseErr.
func (t *Transcriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.CloseCallCount++
	return t.CloseErr
}
