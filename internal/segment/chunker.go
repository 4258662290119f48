package segment

import (
	"fmt"
	"time"

	"github.com/voxscribe/voxscribe/pkg/audio"
)

// Compile-time assertion that Chunker implements Assembler.
var _ Assembler = (*Chunker)(nil)

// Chunker assembles utterances by fixed-duration windowing, ignoring speech
// labels entirely. Every window of audio becomes a clip, speech or not. This
// is the degraded fallback mode for environments where no classifier is
// available; the emitted clips have the same shape as the Segmenter's so the
// rest of the pipeline cannot tell the modes apart.
type Chunker struct {
	cfg   Config
	chunk time.Duration

	frames []audio.Frame
}

// NewChunker creates a Chunker that emits one clip per chunk of audio.
// cfg.SilenceThreshold, cfg.Padding, and cfg.MaxUtterance are unused in this
// mode; cfg.MinUtterance still guards the final partial window on Flush. The
// chunk duration must be at least cfg.MinUtterance so that full windows never
// fall below the minimum utterance duration.
func NewChunker(cfg Config, chunk time.Duration) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if chunk < cfg.FrameDuration {
		return nil, fmt.Errorf("segment: chunk duration %v shorter than one frame (%v)", chunk, cfg.FrameDuration)
	}
	if chunk < cfg.MinUtterance {
		return nil, fmt.Errorf("segment: chunk duration %v shorter than minimum utterance duration %v", chunk, cfg.MinUtterance)
	}
	return &Chunker{cfg: cfg, chunk: chunk}, nil
}

// Push appends the frame to the current window; the speech label is ignored.
// When the window reaches the chunk duration it is emitted.
func (c *Chunker) Push(frame audio.Frame, _ bool) (audio.Clip, bool) {
	c.frames = append(c.frames, frame)
	if time.Duration(len(c.frames))*c.cfg.FrameDuration >= c.chunk {
		return c.emit()
	}
	return audio.Clip{}, false
}

// Flush emits the current partial window if it meets the minimum utterance
// duration; shorter remainders are discarded.
func (c *Chunker) Flush() (audio.Clip, bool) {
	if time.Duration(len(c.frames))*c.cfg.FrameDuration < c.cfg.MinUtterance {
		c.frames = nil
		return audio.Clip{}, false
	}
	return c.emit()
}

// emit concatenates the buffered frames into a clip and resets the window.
func (c *Chunker) emit() (audio.Clip, bool) {
	frames := c.frames
	c.frames = nil
	if len(frames) == 0 {
		return audio.Clip{}, false
	}

	var size int
	for _, f := range frames {
		size += len(f.Data)
	}
	pcm := make([]byte, 0, size)
	for _, f := range frames {
		pcm = append(pcm, f.Data...)
	}

	start := frames[0].Timestamp
	return audio.Clip{
		PCM:        pcm,
		SampleRate: c.cfg.SampleRate,
		Channels:   c.cfg.Channels,
		Start:      start,
		End:        start + time.Duration(len(frames))*c.cfg.FrameDuration,
	}, true
}
