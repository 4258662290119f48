package segment_test

import (
	"testing"
	"time"

	"github.com/voxscribe/voxscribe/internal/segment"
	"github.com/voxscribe/voxscribe/pkg/audio"
)

const (
	testRate     = 16000
	testFrameDur = 30 * time.Millisecond
	// 16 kHz mono S16LE at 30 ms.
	testFrameBytes = 960
)

func testConfig() segment.Config {
	return segment.Config{
		SampleRate:       testRate,
		Channels:         1,
		FrameDuration:    testFrameDur,
		SilenceThreshold: 800 * time.Millisecond,
		MinUtterance:     300 * time.Millisecond,
		Padding:          300 * time.Millisecond,
		MaxUtterance:     30 * time.Second,
	}
}

// frame builds the i-th frame of the stream, with every PCM byte set to a
// marker derived from i so ordering is observable in emitted clips.
func frame(i int) audio.Frame {
	data := make([]byte, testFrameBytes)
	for j := range data {
		data[j] = byte(i)
	}
	return audio.Frame{
		Data:       data,
		SampleRate: testRate,
		Channels:   1,
		Seq:        uint64(i),
		Timestamp:  time.Duration(i) * testFrameDur,
	}
}

// feed pushes n frames with the given label starting at stream index start,
// collecting any emitted clips.
func feed(s segment.Assembler, start, n int, speech bool, clips *[]audio.Clip) int {
	for i := start; i < start+n; i++ {
		if clip, ok := s.Push(frame(i), speech); ok {
			*clips = append(*clips, clip)
		}
	}
	return start + n
}

func TestSegmenter_SilenceOnlyEmitsNothing(t *testing.T) {
	t.Parallel()
	s, err := segment.New(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	var clips []audio.Clip
	feed(s, 0, 200, false, &clips)
	if len(clips) != 0 {
		t.Fatalf("expected no clips from silence, got %d", len(clips))
	}
	if _, ok := s.Flush(); ok {
		t.Fatal("flush after silence should emit nothing")
	}
}

func TestSegmenter_SpeechBoundedBySilence(t *testing.T) {
	t.Parallel()
	s, err := segment.New(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	var clips []audio.Clip
	pos := feed(s, 0, 33, false, &clips) // 990 ms leading silence
	pos = feed(s, pos, 67, true, &clips) // 2010 ms speech
	feed(s, pos, 33, false, &clips)      // 990 ms trailing silence

	if len(clips) != 1 {
		t.Fatalf("expected exactly one clip, got %d", len(clips))
	}
	clip := clips[0]

	// The clip carries 300 ms of pre-trigger padding: it starts 10 frames
	// before the first speech frame (index 33), i.e. at frame 23.
	wantStart := 23 * testFrameDur
	if clip.Start != wantStart {
		t.Errorf("clip start = %v, want %v", clip.Start, wantStart)
	}

	// Leading padding (300 ms) + speech (2010 ms) + trailing padding (300 ms).
	wantDur := 2610 * time.Millisecond
	if got := clip.End - clip.Start; got != wantDur {
		t.Errorf("clip duration = %v, want %v", got, wantDur)
	}
	if got, want := len(clip.PCM), 87*testFrameBytes; got != want {
		t.Errorf("clip PCM size = %d, want %d", got, want)
	}

	// First byte of the clip comes from the first padding frame.
	if clip.PCM[0] != 23 {
		t.Errorf("clip PCM starts with frame marker %d, want 23", clip.PCM[0])
	}
}

func TestSegmenter_ContinuousSpeechFlush(t *testing.T) {
	t.Parallel()
	s, err := segment.New(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	var clips []audio.Clip
	feed(s, 0, 100, true, &clips) // 3 s of uninterrupted speech
	if len(clips) != 0 {
		t.Fatalf("no clip should close during continuous speech, got %d", len(clips))
	}

	clip, ok := s.Flush()
	if !ok {
		t.Fatal("flush should emit the in-progress utterance")
	}
	if got, want := clip.End-clip.Start, 3000*time.Millisecond; got != want {
		t.Errorf("flushed clip duration = %v, want %v", got, want)
	}
	if clip.Start != 0 {
		t.Errorf("flushed clip start = %v, want 0", clip.Start)
	}

	// Flushing twice must not emit again.
	if _, ok := s.Flush(); ok {
		t.Fatal("second flush should emit nothing")
	}
}

func TestSegmenter_ShortBlipDiscarded(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.MinUtterance = 500 * time.Millisecond
	s, err := segment.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var clips []audio.Clip
	pos := feed(s, 0, 2, true, &clips) // 60 ms blip
	feed(s, pos, 40, false, &clips)    // enough silence to close

	// 60 ms speech + 300 ms retained padding = 360 ms < 500 ms minimum.
	if len(clips) != 0 {
		t.Fatalf("short blip should be discarded, got %d clips", len(clips))
	}

	// The segmenter must be back in idle and able to build a real utterance.
	pos = 100
	pos = feed(s, pos, 40, true, &clips)
	feed(s, pos, 40, false, &clips)
	if len(clips) != 1 {
		t.Fatalf("expected one clip after recovery, got %d", len(clips))
	}
}

func TestSegmenter_MaxUtteranceForcesClose(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.MaxUtterance = 300 * time.Millisecond
	s, err := segment.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var clips []audio.Clip
	feed(s, 0, 40, true, &clips) // 1.2 s of continuous speech

	if len(clips) == 0 {
		t.Fatal("expected forced closes during continuous speech")
	}
	for i, clip := range clips {
		if got := clip.End - clip.Start; got != 300*time.Millisecond {
			t.Errorf("clip %d duration = %v, want 300ms", i, got)
		}
	}
}

func TestSegmenter_EmittedClipsDoNotOverlap(t *testing.T) {
	t.Parallel()
	s, err := segment.New(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	var clips []audio.Clip
	pos := 0
	for range 3 {
		pos = feed(s, pos, 40, true, &clips)
		pos = feed(s, pos, 40, false, &clips)
	}

	if len(clips) != 3 {
		t.Fatalf("expected 3 clips, got %d", len(clips))
	}
	for i := 1; i < len(clips); i++ {
		if clips[i].Start < clips[i-1].End {
			t.Errorf("clip %d starts at %v before clip %d ends at %v",
				i, clips[i].Start, i-1, clips[i-1].End)
		}
	}
}

func TestSegmenter_ZeroPadding(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Padding = 0
	s, err := segment.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var clips []audio.Clip
	pos := feed(s, 0, 20, false, &clips)
	pos = feed(s, pos, 40, true, &clips)
	feed(s, pos, 40, false, &clips)

	if len(clips) != 1 {
		t.Fatalf("expected one clip, got %d", len(clips))
	}
	clip := clips[0]
	if clip.Start != 20*testFrameDur {
		t.Errorf("clip start = %v, want first speech frame at %v", clip.Start, 20*testFrameDur)
	}
	if got, want := clip.End-clip.Start, 40*testFrameDur; got != want {
		t.Errorf("clip duration = %v, want speech only %v", got, want)
	}
}

func TestSegmenter_ConfigValidation(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		mutate func(*segment.Config)
	}{
		{"zero sample rate", func(c *segment.Config) { c.SampleRate = 0 }},
		{"zero channels", func(c *segment.Config) { c.Channels = 0 }},
		{"zero frame duration", func(c *segment.Config) { c.FrameDuration = 0 }},
		{"threshold below frame", func(c *segment.Config) { c.SilenceThreshold = time.Millisecond }},
		{"negative padding", func(c *segment.Config) { c.Padding = -time.Second }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			tc.mutate(&cfg)
			if _, err := segment.New(cfg); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestChunker_FixedWindows(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.MinUtterance = 60 * time.Millisecond
	c, err := segment.NewChunker(cfg, 90*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	var clips []audio.Clip
	feed(c, 0, 10, false, &clips) // labels are ignored in chunk mode

	if len(clips) != 3 {
		t.Fatalf("expected 3 full windows from 10 frames, got %d", len(clips))
	}
	for i, clip := range clips {
		if got := clip.End - clip.Start; got != 90*time.Millisecond {
			t.Errorf("window %d duration = %v, want 90ms", i, got)
		}
		if want := time.Duration(i*3) * testFrameDur; clip.Start != want {
			t.Errorf("window %d start = %v, want %v", i, clip.Start, want)
		}
	}
}

func TestChunker_FlushDiscardsShortRemainder(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.MinUtterance = 60 * time.Millisecond
	c, err := segment.NewChunker(cfg, 300*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	var clips []audio.Clip
	feed(c, 0, 1, false, &clips) // 30 ms remainder, below the minimum
	if _, ok := c.Flush(); ok {
		t.Fatal("flush should discard a remainder below the minimum")
	}

	feed(c, 1, 3, false, &clips) // 90 ms remainder
	clip, ok := c.Flush()
	if !ok {
		t.Fatal("flush should emit a remainder above the minimum")
	}
	if got := clip.End - clip.Start; got != 90*time.Millisecond {
		t.Errorf("flushed remainder duration = %v, want 90ms", got)
	}
}

func TestChunker_RejectsSubFrameWindow(t *testing.T) {
	t.Parallel()
	if _, err := segment.NewChunker(testConfig(), time.Millisecond); err == nil {
		t.Fatal("expected error for chunk shorter than one frame")
	}
}

func TestChunker_RejectsWindowBelowMinUtterance(t *testing.T) {
	t.Parallel()
	// testConfig has a 300 ms minimum utterance; a 90 ms window would emit
	// clips below it on every full window, not just on Flush.
	if _, err := segment.NewChunker(testConfig(), 90*time.Millisecond); err == nil {
		t.Fatal("expected error for chunk shorter than the minimum utterance")
	}
}
