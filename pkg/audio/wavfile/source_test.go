package wavfile_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/voxscribe/voxscribe/pkg/audio"
	"github.com/voxscribe/voxscribe/pkg/audio/wavfile"
)

// writeWAV creates a WAV file holding n silent 16 kHz mono samples.
func writeWAV(t *testing.T, samples int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	wav := audio.EncodeWAV(make([]byte, samples*2), 16000, 1)
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSource_FramesWholeFile(t *testing.T) {
	t.Parallel()
	// 100 ms of audio at 30 ms frames: 3 full frames, 10 ms remainder dropped.
	path := writeWAV(t, 1600)

	src, err := wavfile.New(path, audio.Format{SampleRate: 16000, Channels: 1}, 30*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	ctx := context.Background()
	for i := range 3 {
		frame, err := src.NextFrame(ctx)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if frame.Seq != uint64(i) {
			t.Errorf("frame %d seq = %d", i, frame.Seq)
		}
		if want := time.Duration(i) * 30 * time.Millisecond; frame.Timestamp != want {
			t.Errorf("frame %d timestamp = %v, want %v", i, frame.Timestamp, want)
		}
		if len(frame.Data) != 960 {
			t.Errorf("frame %d size = %d, want 960", i, len(frame.Data))
		}
	}

	if _, err := src.NextFrame(ctx); !errors.Is(err, audio.ErrStreamEnded) {
		t.Fatalf("after exhaustion err = %v, want ErrStreamEnded", err)
	}
}

func TestSource_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := wavfile.New(filepath.Join(t.TempDir(), "absent.wav"),
		audio.Format{SampleRate: 16000, Channels: 1}, 30*time.Millisecond)

	var capErr *audio.CaptureError
	if !errors.As(err, &capErr) {
		t.Fatalf("err = %v, want *audio.CaptureError", err)
	}
	if capErr.Op != "open" {
		t.Errorf("op = %q, want open", capErr.Op)
	}
}

func TestSource_CorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("definitely not audio data, padded out"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := wavfile.New(path, audio.Format{SampleRate: 16000, Channels: 1}, 30*time.Millisecond)
	var capErr *audio.CaptureError
	if !errors.As(err, &capErr) {
		t.Fatalf("err = %v, want *audio.CaptureError", err)
	}
	if capErr.Op != "decode" {
		t.Errorf("op = %q, want decode", capErr.Op)
	}
}

func TestSource_CancelledContext(t *testing.T) {
	t.Parallel()
	path := writeWAV(t, 1600)
	src, err := wavfile.New(path, audio.Format{SampleRate: 16000, Channels: 1}, 30*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.NextFrame(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSource_CloseTwice(t *testing.T) {
	t.Parallel()
	path := writeWAV(t, 480)
	src, err := wavfile.New(path, audio.Format{SampleRate: 16000, Channels: 1}, 30*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
}
