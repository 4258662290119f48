package energy_test

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/voxscribe/voxscribe/pkg/provider/vad"
	"github.com/voxscribe/voxscribe/pkg/provider/vad/energy"
)

var testCfg = vad.Config{SampleRate: 16000, FrameSizeMs: 30, Aggressiveness: 1}

// toneFrame builds one 30 ms 16 kHz mono frame of a sine wave at the given
// peak amplitude. amplitude 0 produces digital silence.
func toneFrame(amplitude float64) []byte {
	const samples = 480
	frame := make([]byte, samples*2)
	for i := range samples {
		v := int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(v))
	}
	return frame
}

func TestSession_ClassifiesByEnergy(t *testing.T) {
	t.Parallel()
	sess, err := energy.New().NewSession(testCfg)
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	speech, err := sess.ProcessFrame(toneFrame(10000))
	if err != nil {
		t.Fatal(err)
	}
	if !speech {
		t.Error("loud tone should classify as speech")
	}

	speech, err = sess.ProcessFrame(toneFrame(0))
	if err != nil {
		t.Fatal(err)
	}
	if speech {
		t.Error("digital silence should classify as non-speech")
	}
}

func TestSession_AggressivenessRaisesThreshold(t *testing.T) {
	t.Parallel()
	eng := energy.New()

	// RMS of a sine at peak A is A/√2; amplitude 300 gives RMS ≈ 212,
	// above the level-0 threshold (150) and below the level-3 one (600).
	quiet := toneFrame(300)

	permissive, err := eng.NewSession(vad.Config{SampleRate: 16000, FrameSizeMs: 30, Aggressiveness: 0})
	if err != nil {
		t.Fatal(err)
	}
	strict, err := eng.NewSession(vad.Config{SampleRate: 16000, FrameSizeMs: 30, Aggressiveness: 3})
	if err != nil {
		t.Fatal(err)
	}

	if speech, _ := permissive.ProcessFrame(quiet); !speech {
		t.Error("level 0 should accept the quiet tone")
	}
	if speech, _ := strict.ProcessFrame(quiet); speech {
		t.Error("level 3 should reject the quiet tone")
	}
}

func TestSession_RejectsWrongFrameSize(t *testing.T) {
	t.Parallel()
	sess, err := energy.New().NewSession(testCfg)
	if err != nil {
		t.Fatal(err)
	}

	_, err = sess.ProcessFrame(make([]byte, 100))
	var fmtErr *vad.FrameFormatError
	if !errors.As(err, &fmtErr) {
		t.Fatalf("err = %v, want *vad.FrameFormatError", err)
	}
	if fmtErr.Got != 100 || fmtErr.Want != 960 {
		t.Errorf("got/want bytes = %d/%d, want 100/960", fmtErr.Got, fmtErr.Want)
	}
}

func TestSession_ClosedSessionErrors(t *testing.T) {
	t.Parallel()
	sess, err := energy.New().NewSession(testCfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sess.Close(); err != nil {
		t.Fatal("second close should return nil, got", err)
	}
	if _, err := sess.ProcessFrame(toneFrame(10000)); err == nil {
		t.Error("process after close should error")
	}
}

func TestNewSession_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	if _, err := energy.New().NewSession(vad.Config{}); err == nil {
		t.Error("expected error for zero config")
	}
}
