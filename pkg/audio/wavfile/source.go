// Package wavfile implements an [audio.FrameSource] backed by a 16-bit PCM
// WAV file on disk.
//
// The file is decoded once at construction, converted to the pipeline's target
// format, and then sliced into fixed-duration frames. By default frames are
// delivered as fast as the consumer pulls them (file-transcription mode); with
// [WithRealtime] the source paces delivery to the audio clock, which is useful
// for exercising the live pipeline without a capture device.
//
// Probing and decoding of arbitrary container formats (MP3, Ogg, …) is out of
// scope; convert such inputs to WAV externally.
package wavfile

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/voxscribe/voxscribe/pkg/audio"
)

// Compile-time assertion that Source implements audio.FrameSource.
var _ audio.FrameSource = (*Source)(nil)

// Option is a functional option for configuring a Source.
type Option func(*Source)

// WithRealtime makes NextFrame pace frame delivery to the audio clock: the
// n-th frame is not returned before n×frameDuration has elapsed since the
// first call. Without this option frames are delivered as fast as they are
// pulled.
func WithRealtime() Option {
	return func(s *Source) { s.realtime = true }
}

// Source is a FrameSource that replays a WAV file as a frame stream.
// It is consumed by a single goroutine; NextFrame is not safe for concurrent
// use.
type Source struct {
	pcm        []byte
	format     audio.Format
	frameBytes int
	frameDur   time.Duration

	realtime bool
	started  time.Time

	pos  int
	seq  uint64
	once sync.Once
}

// New opens and decodes the WAV file at path, converts it to target, and
// returns a Source that slices it into frames of frameDuration. Returns a
// *[audio.CaptureError] if the file cannot be read or decoded.
func New(path string, target audio.Format, frameDuration time.Duration, opts ...Option) (*Source, error) {
	if frameDuration <= 0 {
		return nil, fmt.Errorf("wavfile: frame duration %v must be positive", frameDuration)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &audio.CaptureError{Op: "open", Err: err}
	}
	pcm, srcFormat, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, &audio.CaptureError{Op: "decode", Err: err}
	}

	conv := audio.FormatConverter{Target: target}
	pcm = conv.Convert(pcm, srcFormat)

	frameSamples := int(int64(target.SampleRate) * int64(frameDuration) / int64(time.Second))
	frameBytes := frameSamples * 2 * target.Channels
	if frameBytes <= 0 {
		return nil, fmt.Errorf("wavfile: frame duration %v yields empty frames at %dHz", frameDuration, target.SampleRate)
	}

	return &Source{
		pcm:        pcm,
		format:     target,
		frameBytes: frameBytes,
		frameDur:   frameDuration,
	}, nil
}

// NextFrame returns the next frame of the file, or [audio.ErrStreamEnded]
// once the file is exhausted. A trailing partial frame shorter than the
// configured duration is discarded, keeping every delivered frame
// VAD-compatible.
func (s *Source) NextFrame(ctx context.Context) (audio.Frame, error) {
	if err := ctx.Err(); err != nil {
		return audio.Frame{}, err
	}
	if s.pos+s.frameBytes > len(s.pcm) {
		return audio.Frame{}, audio.ErrStreamEnded
	}

	frame := audio.Frame{
		Data:       s.pcm[s.pos : s.pos+s.frameBytes],
		SampleRate: s.format.SampleRate,
		Channels:   s.format.Channels,
		Seq:        s.seq,
		Timestamp:  time.Duration(s.seq) * s.frameDur,
	}

	if s.realtime {
		if s.started.IsZero() {
			s.started = time.Now()
		}
		due := s.started.Add(time.Duration(s.seq) * s.frameDur)
		if wait := time.Until(due); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return audio.Frame{}, ctx.Err()
			case <-timer.C:
			}
		}
	}

	s.pos += s.frameBytes
	s.seq++
	return frame, nil
}

// Close releases the decoded audio. Calling Close more than once is safe and
// returns nil.
func (s *Source) Close() error {
	s.once.Do(func() { s.pcm = nil })
	return nil
}
