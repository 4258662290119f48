package fasterwhisper_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/voxscribe/voxscribe/pkg/audio"
	"github.com/voxscribe/voxscribe/pkg/provider/stt"
	"github.com/voxscribe/voxscribe/pkg/provider/stt/fasterwhisper"
)

func testClip() audio.Clip {
	return audio.Clip{
		PCM:        make([]byte, 960*10),
		SampleRate: 16000,
		Channels:   1,
		Start:      time.Second,
		End:        time.Second + 300*time.Millisecond,
	}
}

// inferenceServer fakes the faster-whisper HTTP server and records the last
// form values it received.
func inferenceServer(t *testing.T, status int, body any) (*httptest.Server, *map[string]string) {
	t.Helper()
	seen := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				seen[k] = v[0]
			}
		}
		if f, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file field: %v", err)
		} else {
			f.Close()
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestTranscribe_Success(t *testing.T) {
	t.Parallel()
	srv, seen := inferenceServer(t, http.StatusOK, map[string]any{
		"text":     " hello world ",
		"language": "en",
		"segments": []map[string]any{
			{"text": "hello world", "avg_logprob": -0.2},
		},
	})

	tr, err := fasterwhisper.New(srv.URL,
		fasterwhisper.WithModel("small"),
		fasterwhisper.WithLanguage("en"),
	)
	if err != nil {
		t.Fatal(err)
	}

	res, err := tr.Transcribe(context.Background(), testClip())
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Text != "hello world" {
		t.Errorf("text = %q, want %q", res.Text, "hello world")
	}
	if res.Language != "en" {
		t.Errorf("language = %q, want en", res.Language)
	}
	if want := math.Exp(-0.2); math.Abs(res.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", res.Confidence, want)
	}

	if (*seen)["model"] != "small" {
		t.Errorf("model field = %q, want small", (*seen)["model"])
	}
	if (*seen)["language"] != "en" {
		t.Errorf("language field = %q, want en", (*seen)["language"])
	}
	if (*seen)["device"] != "cpu" || (*seen)["compute_type"] != "int8" {
		t.Errorf("device/compute = %q/%q, want cpu/int8", (*seen)["device"], (*seen)["compute_type"])
	}
}

func TestTranscribe_ServerErrorWrapped(t *testing.T) {
	t.Parallel()
	srv, _ := inferenceServer(t, http.StatusInternalServerError, map[string]any{})

	tr, err := fasterwhisper.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	_, err = tr.Transcribe(context.Background(), testClip())
	var trErr *stt.TranscriptionError
	if !errors.As(err, &trErr) {
		t.Fatalf("err = %v, want *stt.TranscriptionError", err)
	}
	if trErr.Backend != "faster-whisper" {
		t.Errorf("backend = %q, want faster-whisper", trErr.Backend)
	}
}

func TestNew_GPUProbeFallsBackToCPU(t *testing.T) {
	t.Parallel()
	// The probe hits a dead server; the transcriber must settle on cpu/int8.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	tr, err := fasterwhisper.New(srv.URL,
		fasterwhisper.WithDevice("cuda"),
		fasterwhisper.WithComputeType("float16"),
		fasterwhisper.WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	if err != nil {
		t.Fatal(err)
	}

	info := tr.Info()
	if info.Device != "cpu" {
		t.Errorf("device = %q, want cpu after failed probe", info.Device)
	}
	if info.ComputeType != "int8" {
		t.Errorf("compute type = %q, want int8 after failed probe", info.ComputeType)
	}
}

func TestNew_GPUProbeKeepsCUDAWhenAvailable(t *testing.T) {
	t.Parallel()
	srv, _ := inferenceServer(t, http.StatusOK, map[string]any{"text": ""})

	tr, err := fasterwhisper.New(srv.URL,
		fasterwhisper.WithDevice("cuda"),
		fasterwhisper.WithComputeType("float16"),
	)
	if err != nil {
		t.Fatal(err)
	}

	info := tr.Info()
	if info.Device != "cuda" || info.ComputeType != "float16" {
		t.Errorf("device/compute = %q/%q, want cuda/float16", info.Device, info.ComputeType)
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	t.Parallel()
	if _, err := fasterwhisper.New(""); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

func TestInfo_Defaults(t *testing.T) {
	t.Parallel()
	tr, err := fasterwhisper.New("http://localhost:8000")
	if err != nil {
		t.Fatal(err)
	}
	info := tr.Info()
	if info.Name != "faster-whisper" {
		t.Errorf("name = %q", info.Name)
	}
	if info.Model != "base" || info.Device != "cpu" || info.ComputeType != "int8" {
		t.Errorf("defaults = %+v", info)
	}
}
