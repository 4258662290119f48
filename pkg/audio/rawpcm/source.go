// Package rawpcm implements an [audio.FrameSource] that reads headerless
// 16-bit signed little-endian PCM from an io.Reader — typically stdin fed by
// a capture utility:
//
//	arecord -f S16_LE -r 16000 -c 1 -t raw | voxscribe -config live.yaml
//
// Device and driver setup stay outside the process; the pipe delivers a
// continuous byte stream that this package slices into fixed-duration frames.
package rawpcm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/voxscribe/voxscribe/pkg/audio"
)

// Compile-time assertion that Source implements audio.FrameSource.
var _ audio.FrameSource = (*Source)(nil)

// Source reads fixed-size frames from a raw PCM byte stream. A dedicated
// reader goroutine keeps pulling from the underlying reader into a bounded
// channel so that NextFrame can observe context cancellation even while the
// reader blocks.
type Source struct {
	format   audio.Format
	frameDur time.Duration

	frames chan audio.Frame
	errCh  chan error

	// termErr latches the reason the reader goroutine exited, so every
	// NextFrame call after the stream ends reports the same error.
	termErr error

	done    chan struct{}
	once    sync.Once
	closeFn func() error
}

// New creates a Source that slices r into frames of frameDuration in the
// given format. The reader goroutine starts immediately. If r implements
// io.Closer it is closed when the Source is closed.
func New(r io.Reader, format audio.Format, frameDuration time.Duration) (*Source, error) {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("rawpcm: invalid format %dHz/%dch", format.SampleRate, format.Channels)
	}
	if frameDuration <= 0 {
		return nil, fmt.Errorf("rawpcm: frame duration %v must be positive", frameDuration)
	}
	frameSamples := int(int64(format.SampleRate) * int64(frameDuration) / int64(time.Second))
	frameBytes := frameSamples * 2 * format.Channels
	if frameBytes <= 0 {
		return nil, fmt.Errorf("rawpcm: frame duration %v yields empty frames at %dHz", frameDuration, format.SampleRate)
	}

	s := &Source{
		format:   format,
		frameDur: frameDuration,
		frames:   make(chan audio.Frame, 64),
		errCh:    make(chan error, 1),
		done:     make(chan struct{}),
	}
	if c, ok := r.(io.Closer); ok {
		s.closeFn = c.Close
	}

	go s.readLoop(r, frameBytes)

	return s, nil
}

// readLoop pulls full frames from r until EOF, read error, or Close.
func (s *Source) readLoop(r io.Reader, frameBytes int) {
	defer close(s.frames)
	var seq uint64
	for {
		buf := make([]byte, frameBytes)
		_, err := io.ReadFull(r, buf)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			// A trailing partial frame is discarded; every delivered frame
			// has the full configured duration.
			s.errCh <- audio.ErrStreamEnded
			return
		default:
			s.errCh <- &audio.CaptureError{Op: "read", Err: err}
			return
		}

		frame := audio.Frame{
			Data:       buf,
			SampleRate: s.format.SampleRate,
			Channels:   s.format.Channels,
			Seq:        seq,
			Timestamp:  time.Duration(seq) * s.frameDur,
		}
		select {
		case s.frames <- frame:
			seq++
		case <-s.done:
			return
		}
	}
}

// NextFrame returns the next frame from the stream. It blocks until a frame
// is available, the stream ends ([audio.ErrStreamEnded]), the reader fails
// (*[audio.CaptureError]), or ctx is cancelled.
func (s *Source) NextFrame(ctx context.Context) (audio.Frame, error) {
	select {
	case <-ctx.Done():
		return audio.Frame{}, ctx.Err()
	case frame, ok := <-s.frames:
		if ok {
			return frame, nil
		}
		// Reader goroutine exited; report why, and keep reporting the same
		// reason on subsequent calls.
		if s.termErr == nil {
			select {
			case err := <-s.errCh:
				s.termErr = err
			default:
				s.termErr = audio.ErrStreamEnded
			}
		}
		return audio.Frame{}, s.termErr
	}
}

// Close stops the reader goroutine and closes the underlying reader if it is
// an io.Closer. Calling Close more than once is safe and returns nil.
func (s *Source) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if s.closeFn != nil {
			err = s.closeFn()
		}
	})
	return err
}
