package app_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxscribe/voxscribe/internal/app"
	"github.com/voxscribe/voxscribe/internal/config"
	"github.com/voxscribe/voxscribe/internal/session"
	"github.com/voxscribe/voxscribe/pkg/audio"
	audiomock "github.com/voxscribe/voxscribe/pkg/audio/mock"
	"github.com/voxscribe/voxscribe/pkg/provider/stt"
	sttmock "github.com/voxscribe/voxscribe/pkg/provider/stt/mock"
	vadmock "github.com/voxscribe/voxscribe/pkg/provider/vad/mock"
)

// archiveRecorder is an Archiver that records saved transcripts.
type archiveRecorder struct {
	mu          sync.Mutex
	transcripts []session.Transcript
}

func (a *archiveRecorder) SaveTranscript(_ context.Context, t session.Transcript) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transcripts = append(a.transcripts, t)
	return nil
}

func (a *archiveRecorder) Ping(context.Context) error { return nil }
func (a *archiveRecorder) Close()                     {}

func testAppConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Backend.Name = "faster-whisper"
	cfg.Backend.BaseURL = "http://localhost:8000"
	cfg.Output.Dir = filepath.Join(t.TempDir(), "transcripts")
	// Close fast in tests: 300 ms of trailing silence ends an utterance.
	cfg.Segmenter.SilenceThresholdMs = 300
	cfg.Segmenter.MinUtteranceMs = 60
	cfg.Segmenter.PaddingMs = 60
	return cfg
}

func speechFrames(n int) []audio.Frame {
	frames := make([]audio.Frame, n)
	for i := range frames {
		frames[i] = audio.Frame{
			Data:       make([]byte, 960),
			SampleRate: 16000,
			Channels:   1,
			Seq:        uint64(i),
			Timestamp:  time.Duration(i) * 30 * time.Millisecond,
		}
	}
	return frames
}

func TestApp_RunProducesTranscriptAndArchives(t *testing.T) {
	t.Parallel()
	cfg := testAppConfig(t)

	vadSess := &vadmock.Session{DefaultLabel: false}
	vadSess.Labels = make([]bool, 0, 40)
	for i := range 40 {
		vadSess.Labels = append(vadSess.Labels, i >= 5 && i < 25)
	}

	backend := &sttmock.Transcriber{
		Results:    []stt.Result{{Text: "recorded speech", Confidence: 0.8, Language: "en"}},
		InfoResult: stt.Info{Name: "mock", Model: "tiny", Device: "cpu"},
	}
	archive := &archiveRecorder{}

	application, err := app.New(context.Background(), cfg, &app.Providers{
		Source:  &audiomock.Source{Frames: speechFrames(40)},
		VAD:     &vadmock.Engine{Session: vadSess},
		Backend: backend,
	}, app.WithArchive(archive))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	if err := application.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// Transcript file written.
	entries, err := os.ReadDir(cfg.Output.Dir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("output dir has %d files, want 1", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(cfg.Output.Dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "recorded speech") {
		t.Error("transcript file missing segment text")
	}

	// Session archived.
	if len(archive.transcripts) != 1 {
		t.Fatalf("archive holds %d transcripts, want 1", len(archive.transcripts))
	}
	archived := archive.transcripts[0]
	if len(archived.Segments) != 1 || archived.Segments[0].Text != "recorded speech" {
		t.Errorf("archived segments = %+v", archived.Segments)
	}
	if archived.Metadata.Backend.Name != "mock" {
		t.Errorf("archived backend = %q, want mock", archived.Metadata.Backend.Name)
	}

	if err := application.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestApp_ChunkModeNeedsNoVAD(t *testing.T) {
	t.Parallel()
	cfg := testAppConfig(t)
	cfg.Segmenter.Mode = config.SegmenterChunk
	cfg.Segmenter.ChunkMs = 300

	backend := &sttmock.Transcriber{DefaultResult: stt.Result{Text: "windowed"}}

	application, err := app.New(context.Background(), cfg, &app.Providers{
		Source:  &audiomock.Source{Frames: speechFrames(20)},
		Backend: backend,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if err := application.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// 20 frames at 300 ms windows = 2 full windows.
	if got := len(backend.TranscribeCalls); got != 2 {
		t.Errorf("backend called %d times, want 2", got)
	}
}

func TestApp_RequiresProviders(t *testing.T) {
	t.Parallel()
	cfg := testAppConfig(t)
	if _, err := app.New(context.Background(), cfg, &app.Providers{}); err == nil {
		t.Fatal("expected error for missing providers")
	}
}

func TestApp_VADModeRequiresEngine(t *testing.T) {
	t.Parallel()
	cfg := testAppConfig(t)

	application, err := app.New(context.Background(), cfg, &app.Providers{
		Source:  &audiomock.Source{},
		Backend: &sttmock.Transcriber{},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if err := application.Run(context.Background()); err == nil {
		t.Fatal("expected error when vad mode has no engine")
	}
}
