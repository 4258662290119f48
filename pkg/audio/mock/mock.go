// Package mock provides an in-memory mock implementation of the
// [audio.FrameSource] interface for use in unit tests.
//
// The mock is safe for concurrent use. It records every method call so that
// tests can assert on call counts, and it exposes exported fields that the
// test can set to control returned frames and errors.
//
// Typical usage:
//
//	src := &mock.Source{
//	    Frames:   []audio.Frame{f0, f1, f2},
//	    FinalErr: audio.ErrStreamEnded,
//	}
//	frame, err := src.NextFrame(ctx)
package mock

import (
	"context"
	"sync"

	"github.com/voxscribe/voxscribe/pkg/audio"
)

// Compile-time assertion that Source implements audio.FrameSource.
var _ audio.FrameSource = (*Source)(nil)

// Source is a mock implementation of [audio.FrameSource]. It returns the
// scripted Frames in order, then FinalErr (or [audio.ErrStreamEnded] when
// FinalErr is nil) on every subsequent call.
type Source struct {
	mu sync.Mutex

	// Frames are returned one per NextFrame call, in order.
	Frames []audio.Frame

	// FinalErr is returned once Frames is exhausted. Defaults to
	// [audio.ErrStreamEnded] if nil.
	FinalErr error

	// CloseErr, if non-nil, is returned by the first Close call.
	CloseErr error

	// NextFrameCallCount records how many times NextFrame was called.
	NextFrameCallCount int

	// CloseCallCount records how many times Close was called.
	CloseCallCount int

	next int
}

// NextFrame returns the next scripted frame, honouring ctx cancellation first.
func (s *Source) NextFrame(ctx context.Context) (audio.Frame, error) {
	if err := ctx.Err(); err != nil {
		return audio.Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NextFrameCallCount++
	if s.next < len(s.Frames) {
		f := s.Frames[s.next]
		s.next++
		return f, nil
	}
	if s.FinalErr != nil {
		return audio.Frame{}, s.FinalErr
	}
	return audio.Frame{}, audio.ErrStreamEnded
}

// Close records the call and returns CloseErr.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}
