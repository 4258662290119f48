package audio_test

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/voxscribe/voxscribe/pkg/audio"
)

// samples packs int16 values into little-endian PCM bytes.
func samples(vals ...int16) []byte {
	out := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func TestFrameDuration(t *testing.T) {
	t.Parallel()
	f := audio.Frame{
		Data:       make([]byte, 960), // 480 samples
		SampleRate: 16000,
		Channels:   1,
	}
	if got := f.Duration(); got != 30*time.Millisecond {
		t.Errorf("duration = %v, want 30ms", got)
	}

	stereo := audio.Frame{
		Data:       make([]byte, 960),
		SampleRate: 16000,
		Channels:   2,
	}
	if got := stereo.Duration(); got != 15*time.Millisecond {
		t.Errorf("stereo duration = %v, want 15ms", got)
	}
}

func TestClipDuration(t *testing.T) {
	t.Parallel()
	c := audio.Clip{Start: time.Second, End: 3 * time.Second}
	if got := c.Duration(); got != 2*time.Second {
		t.Errorf("duration = %v, want 2s", got)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	t.Parallel()
	pcm := samples(0, 100, -100, 32767, -32768, 42)

	wav := audio.EncodeWAV(pcm, 16000, 1)
	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav size = %d, want %d", len(wav), 44+len(pcm))
	}

	got, format, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if format.SampleRate != 16000 || format.Channels != 1 {
		t.Errorf("format = %+v, want 16000Hz mono", format)
	}
	if !bytes.Equal(got, pcm) {
		t.Error("decoded PCM differs from input")
	}
}

func TestDecodeWAV_SkipsExtensionChunks(t *testing.T) {
	t.Parallel()
	pcm := samples(1, 2, 3, 4)
	wav := audio.EncodeWAV(pcm, 8000, 2)

	// Splice a LIST chunk between "fmt " and "data".
	list := append([]byte("LIST"), 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(list[4:], 4)
	list = append(list, []byte("INFO")...)

	spliced := append([]byte{}, wav[:36]...)
	spliced = append(spliced, list...)
	spliced = append(spliced, wav[36:]...)

	got, format, err := audio.DecodeWAV(spliced)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if format.SampleRate != 8000 || format.Channels != 2 {
		t.Errorf("format = %+v, want 8000Hz stereo", format)
	}
	if !bytes.Equal(got, pcm) {
		t.Error("decoded PCM differs from input")
	}
}

func TestDecodeWAV_Rejects(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		data []byte
	}{
		{"too short", []byte("RIFF")},
		{"not riff", bytes.Repeat([]byte{0}, 64)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, _, err := audio.DecodeWAV(tc.data); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}

func TestMonoToStereo(t *testing.T) {
	t.Parallel()
	got := audio.MonoToStereo(samples(7, -9))
	want := samples(7, 7, -9, -9)
	if !bytes.Equal(got, want) {
		t.Errorf("mono to stereo = %v, want %v", got, want)
	}
}

func TestStereoToMono(t *testing.T) {
	t.Parallel()
	got := audio.StereoToMono(samples(100, 200, -50, -150))
	want := samples(150, -100)
	if !bytes.Equal(got, want) {
		t.Errorf("stereo to mono = %v, want %v", got, want)
	}
}

func TestResampleMono16_Halves(t *testing.T) {
	t.Parallel()
	in := samples(0, 10, 20, 30, 40, 50, 60, 70)
	out := audio.ResampleMono16(in, 16000, 8000)
	if len(out) != len(in)/2 {
		t.Fatalf("resampled size = %d, want %d", len(out), len(in)/2)
	}
	// Every second sample survives when downsampling by exactly 2x.
	want := samples(0, 20, 40, 60)
	if !bytes.Equal(out, want) {
		t.Errorf("resampled = %v, want %v", out, want)
	}
}

func TestResampleMono16_SameRateUnchanged(t *testing.T) {
	t.Parallel()
	in := samples(1, 2, 3)
	if out := audio.ResampleMono16(in, 16000, 16000); !bytes.Equal(out, in) {
		t.Error("same-rate resample should return input unchanged")
	}
}

func TestFormatConverter(t *testing.T) {
	t.Parallel()
	conv := &audio.FormatConverter{Target: audio.Format{SampleRate: 16000, Channels: 1}}

	t.Run("matching format passes through", func(t *testing.T) {
		in := samples(5, 6, 7)
		out := conv.Convert(in, audio.Format{SampleRate: 16000, Channels: 1})
		if &out[0] != &in[0] {
			t.Error("matching format should return the same buffer")
		}
	})

	t.Run("stereo 48k becomes mono 16k", func(t *testing.T) {
		in := make([]byte, 48*4) // 1 ms of 48 kHz stereo
		out := conv.Convert(in, audio.Format{SampleRate: 48000, Channels: 2})
		if len(out) != 16*2 { // 1 ms of 16 kHz mono
			t.Errorf("converted size = %d, want %d", len(out), 16*2)
		}
	})

	t.Run("odd byte count dropped", func(t *testing.T) {
		if out := conv.Convert([]byte{1, 2, 3}, audio.Format{SampleRate: 16000, Channels: 1}); out != nil {
			t.Error("odd byte count should produce nil")
		}
	})
}
