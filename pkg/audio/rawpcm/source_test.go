package rawpcm_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/voxscribe/voxscribe/pkg/audio"
	"github.com/voxscribe/voxscribe/pkg/audio/rawpcm"
)

var testFormat = audio.Format{SampleRate: 16000, Channels: 1}

func TestSource_SlicesStreamIntoFrames(t *testing.T) {
	t.Parallel()
	// 2.5 frames of PCM: two full frames, the remainder is discarded.
	src, err := rawpcm.New(bytes.NewReader(make([]byte, 960*2+480)), testFormat, 30*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	ctx := context.Background()
	for i := range 2 {
		frame, err := src.NextFrame(ctx)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if frame.Seq != uint64(i) {
			t.Errorf("frame %d seq = %d", i, frame.Seq)
		}
		if len(frame.Data) != 960 {
			t.Errorf("frame %d size = %d, want 960", i, len(frame.Data))
		}
		if want := time.Duration(i) * 30 * time.Millisecond; frame.Timestamp != want {
			t.Errorf("frame %d timestamp = %v, want %v", i, frame.Timestamp, want)
		}
	}

	if _, err := src.NextFrame(ctx); !errors.Is(err, audio.ErrStreamEnded) {
		t.Fatalf("after EOF err = %v, want ErrStreamEnded", err)
	}
}

// failReader returns some data and then a non-EOF error.
type failReader struct {
	data []byte
	err  error
}

func (r *failReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestSource_ReadErrorSurfacesAsCaptureError(t *testing.T) {
	t.Parallel()
	cause := errors.New("device unplugged")
	src, err := rawpcm.New(&failReader{data: make([]byte, 960), err: cause}, testFormat, 30*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	ctx := context.Background()
	if _, err := src.NextFrame(ctx); err != nil {
		t.Fatalf("first frame: %v", err)
	}

	_, err = src.NextFrame(ctx)
	var capErr *audio.CaptureError
	if !errors.As(err, &capErr) {
		t.Fatalf("err = %v, want *audio.CaptureError", err)
	}
	if capErr.Op != "read" {
		t.Errorf("op = %q, want read", capErr.Op)
	}
	if !errors.Is(err, cause) {
		t.Error("capture error should wrap the underlying cause")
	}

	// The terminal error is latched: repeat calls report the same failure
	// instead of degrading to ErrStreamEnded.
	if _, err := src.NextFrame(ctx); !errors.As(err, &capErr) {
		t.Fatalf("repeat err = %v, want *audio.CaptureError", err)
	}
}

func TestSource_CancelledContext(t *testing.T) {
	t.Parallel()
	// A reader that never returns keeps NextFrame waiting on the channel.
	pr, pw := io.Pipe()
	defer pw.Close()

	src, err := rawpcm.New(pr, testFormat, 30*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := src.NextFrame(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestSource_CloseClosesUnderlyingReader(t *testing.T) {
	t.Parallel()
	pr, pw := io.Pipe()
	defer pw.Close()

	src, err := rawpcm.New(pr, testFormat, 30*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
	// The pipe reader is now closed; writes must fail.
	if _, err := pw.Write([]byte{0}); err == nil {
		t.Error("write after Close should fail")
	}
	if err := src.Close(); err != nil {
		t.Fatal("second close should be a no-op, got", err)
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	t.Parallel()
	if _, err := rawpcm.New(bytes.NewReader(nil), audio.Format{}, 30*time.Millisecond); err == nil {
		t.Error("expected error for zero format")
	}
	if _, err := rawpcm.New(bytes.NewReader(nil), testFormat, 0); err == nil {
		t.Error("expected error for zero frame duration")
	}
}
