// Package app wires all VoxScribe subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the transcription session, and Shutdown tears
// everything down in order.
//
// For testing, inject test doubles via functional options (WithArchive,
// WithMetrics). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/voxscribe/voxscribe/internal/config"
	"github.com/voxscribe/voxscribe/internal/health"
	"github.com/voxscribe/voxscribe/internal/observe"
	"github.com/voxscribe/voxscribe/internal/pipeline"
	"github.com/voxscribe/voxscribe/internal/segment"
	"github.com/voxscribe/voxscribe/internal/session"
	"github.com/voxscribe/voxscribe/internal/store/postgres"
	"github.com/voxscribe/voxscribe/pkg/audio"
	"github.com/voxscribe/voxscribe/pkg/provider/stt"
	"github.com/voxscribe/voxscribe/pkg/provider/vad"
)

// Providers holds the pluggable pipeline components. Source and Backend are
// required; VAD may be nil when the segmenter runs in chunk mode. Populated
// by main.go from the config.
type Providers struct {
	Source  audio.FrameSource
	VAD     vad.Engine
	Backend stt.Transcriber
}

// Archiver is the durable session store consumed by the App. Satisfied by
// [postgres.Archive].
type Archiver interface {
	SaveTranscript(ctx context.Context, t session.Transcript) error
	Ping(ctx context.Context) error
	Close()
}

// App owns all subsystem lifetimes and orchestrates one transcription session.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics *observe.Metrics
	archive Archiver
	writer  session.Writer
	httpSrv *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithArchive injects a session archive instead of connecting from config.
func WithArchive(a Archiver) Option {
	return func(app *App) { app.archive = a }
}

// WithMetrics injects a metrics set instead of creating one from the global
// meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(app *App) { app.metrics = m }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go. New connects to the session archive when a DSN is
// configured and prepares the HTTP server when a listen address is set.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Source == nil || providers.Backend == nil {
		return nil, errors.New("app: source and backend providers are required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		writer:    session.Writer{Dir: cfg.Output.Dir},
	}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		m, err := observe.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return nil, fmt.Errorf("app: init metrics: %w", err)
		}
		a.metrics = m
	}

	if a.archive == nil && cfg.Session.PostgresDSN != "" {
		archive, err := postgres.NewArchive(ctx, cfg.Session.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("app: init archive: %w", err)
		}
		a.archive = archive
		a.closers = append(a.closers, func() error {
			archive.Close()
			return nil
		})
	}

	a.closers = append(a.closers,
		providers.Source.Close,
		providers.Backend.Close,
	)

	if cfg.Server.ListenAddr != "" {
		a.httpSrv = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           a.buildMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return a, nil
}

// buildMux assembles the HTTP surface: Prometheus metrics plus health probes.
func (a *App) buildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	var checkers []health.Checker
	if a.archive != nil {
		checkers = append(checkers, health.Checker{
			Name:  "archive",
			Check: a.archive.Ping,
		})
	}
	health.New(checkers...).Register(mux)
	return mux
}

// Run executes one transcription session and blocks until the source is
// exhausted or ctx is cancelled. The finalized transcript is always written
// to the output directory, and archived when an archive is configured, even
// when the session ended with a capture error.
func (a *App) Run(ctx context.Context) error {
	if a.httpSrv != nil {
		go func() {
			slog.Info("http server listening", "addr", a.httpSrv.Addr)
			if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "err", err)
			}
		}()
	}

	p, meta, err := a.buildPipeline()
	if err != nil {
		return err
	}

	slog.Info("session started",
		"backend", meta.Backend.Name,
		"model", meta.Backend.Model,
		"device", meta.Backend.Device,
		"segmenter", meta.SegmenterMode,
	)

	transcript, runErr := p.Run(ctx)

	if path, err := a.writer.Save(transcript); err != nil {
		slog.Error("failed to save transcript", "err", err)
	} else {
		slog.Info("session finished", "transcript", path, "segments", len(transcript.Segments))
	}

	if a.archive != nil {
		// Archival must complete even when ctx is already cancelled.
		archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := a.archive.SaveTranscript(archiveCtx, transcript); err != nil {
			slog.Error("failed to archive session", "err", err)
		}
	}

	return runErr
}

// buildPipeline assembles the per-session pipeline from config: VAD session,
// segmenter or chunker, recorder, and performance monitor.
func (a *App) buildPipeline() (*pipeline.Pipeline, session.Metadata, error) {
	cfg := a.cfg

	segCfg := segment.Config{
		SampleRate:       cfg.Capture.SampleRate,
		Channels:         cfg.Capture.Channels,
		FrameDuration:    time.Duration(cfg.Capture.FrameDurationMs) * time.Millisecond,
		SilenceThreshold: time.Duration(cfg.Segmenter.SilenceThresholdMs) * time.Millisecond,
		MinUtterance:     time.Duration(cfg.Segmenter.MinUtteranceMs) * time.Millisecond,
		Padding:          time.Duration(cfg.Segmenter.PaddingMs) * time.Millisecond,
		MaxUtterance:     time.Duration(cfg.Segmenter.MaxUtteranceMs) * time.Millisecond,
	}

	var (
		assembler  segment.Assembler
		vadSession vad.SessionHandle
		err        error
	)
	switch cfg.Segmenter.Mode {
	case config.SegmenterChunk:
		assembler, err = segment.NewChunker(segCfg, time.Duration(cfg.Segmenter.ChunkMs)*time.Millisecond)
		if err != nil {
			return nil, session.Metadata{}, fmt.Errorf("app: build chunker: %w", err)
		}
	default:
		assembler, err = segment.New(segCfg)
		if err != nil {
			return nil, session.Metadata{}, fmt.Errorf("app: build segmenter: %w", err)
		}
		if a.providers.VAD == nil {
			return nil, session.Metadata{}, errors.New("app: vad segmenter mode requires a vad engine")
		}
		vadSession, err = a.providers.VAD.NewSession(vad.Config{
			SampleRate:     cfg.Capture.SampleRate,
			FrameSizeMs:    cfg.Capture.FrameDurationMs,
			Aggressiveness: cfg.VAD.Aggressiveness,
		})
		if err != nil {
			return nil, session.Metadata{}, fmt.Errorf("app: open vad session: %w", err)
		}
		a.closers = append(a.closers, vadSession.Close)
	}

	meta := session.Metadata{
		Backend:       a.providers.Backend.Info(),
		SegmenterMode: string(cfg.Segmenter.Mode),
	}
	if vadSession != nil {
		meta.VADEngine = cfg.VAD.Engine
		meta.VADAggressiveness = cfg.VAD.Aggressiveness
	}

	p, err := pipeline.New(pipeline.Config{
		Source:       a.providers.Source,
		VAD:          vadSession,
		Assembler:    assembler,
		Backend:      a.providers.Backend,
		Recorder:     session.NewRecorder(meta),
		Perf:         session.NewPerf(),
		Metrics:      a.metrics,
		BufferFrames: cfg.Capture.BufferFrames,
	})
	if err != nil {
		return nil, session.Metadata{}, fmt.Errorf("app: build pipeline: %w", err)
	}
	return p, meta, nil
}

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.httpSrv != nil {
			if err := a.httpSrv.Shutdown(ctx); err != nil {
				slog.Warn("http server shutdown error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
