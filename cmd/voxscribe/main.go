// Command voxscribe is the main entry point for the VoxScribe live
// transcription service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voxscribe/voxscribe/internal/app"
	"github.com/voxscribe/voxscribe/internal/config"
	"github.com/voxscribe/voxscribe/internal/observe"
	"github.com/voxscribe/voxscribe/pkg/audio"
	"github.com/voxscribe/voxscribe/pkg/audio/rawpcm"
	"github.com/voxscribe/voxscribe/pkg/audio/wavfile"
	"github.com/voxscribe/voxscribe/pkg/provider/stt"
	"github.com/voxscribe/voxscribe/pkg/provider/stt/fasterwhisper"
	oaistt "github.com/voxscribe/voxscribe/pkg/provider/stt/openai"
	"github.com/voxscribe/voxscribe/pkg/provider/stt/whisper"
	"github.com/voxscribe/voxscribe/pkg/provider/vad/energy"
	"github.com/voxscribe/voxscribe/pkg/provider/vad/webrtc"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxscribe: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxscribe: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxscribe starting",
		"version", version,
		"config", *configPath,
		"source", cfg.Capture.Source,
		"backend", cfg.Backend.Name,
		"listen_addr", cfg.Server.ListenAddr,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxscribe",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	providers, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("session ready — press Ctrl+C to stop")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildProviders instantiates the frame source, VAD engine, and transcription
// backend selected in cfg.
func buildProviders(cfg *config.Config) (*app.Providers, error) {
	p := &app.Providers{}

	format := audio.Format{
		SampleRate: cfg.Capture.SampleRate,
		Channels:   cfg.Capture.Channels,
	}
	frameDur := time.Duration(cfg.Capture.FrameDurationMs) * time.Millisecond

	switch cfg.Capture.Source {
	case config.SourceWAV:
		var opts []wavfile.Option
		if cfg.Capture.Realtime {
			opts = append(opts, wavfile.WithRealtime())
		}
		src, err := wavfile.New(cfg.Capture.Path, format, frameDur, opts...)
		if err != nil {
			return nil, fmt.Errorf("open wav source: %w", err)
		}
		p.Source = src
	case config.SourceStdin:
		src, err := rawpcm.New(os.Stdin, format, frameDur)
		if err != nil {
			return nil, fmt.Errorf("open stdin source: %w", err)
		}
		p.Source = src
	default:
		return nil, fmt.Errorf("unknown capture source %q", cfg.Capture.Source)
	}

	switch cfg.VAD.Engine {
	case "webrtc":
		p.VAD = webrtc.New()
	case "energy":
		p.VAD = energy.New()
	default:
		return nil, fmt.Errorf("unknown vad engine %q", cfg.VAD.Engine)
	}

	backend, err := buildBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	p.Backend = backend

	return p, nil
}

// buildBackend instantiates the configured transcription backend.
func buildBackend(cfg config.BackendConfig) (stt.Transcriber, error) {
	switch cfg.Name {
	case "whisper-native":
		var opts []whisper.Option
		if cfg.Language != "" {
			opts = append(opts, whisper.WithLanguage(cfg.Language))
		}
		return whisper.New(cfg.ModelPath, opts...)

	case "faster-whisper":
		var opts []fasterwhisper.Option
		if cfg.Model != "" {
			opts = append(opts, fasterwhisper.WithModel(cfg.Model))
		}
		if cfg.Language != "" {
			opts = append(opts, fasterwhisper.WithLanguage(cfg.Language))
		}
		if cfg.Device != "" {
			opts = append(opts, fasterwhisper.WithDevice(cfg.Device))
		}
		if cfg.ComputeType != "" {
			opts = append(opts, fasterwhisper.WithComputeType(cfg.ComputeType))
		}
		return fasterwhisper.New(cfg.BaseURL, opts...)

	case "openai":
		var opts []oaistt.Option
		if cfg.Model != "" {
			opts = append(opts, oaistt.WithModel(cfg.Model))
		}
		if cfg.Language != "" {
			opts = append(opts, oaistt.WithLanguage(cfg.Language))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, oaistt.WithBaseURL(cfg.BaseURL))
		}
		return oaistt.New(cfg.APIKey, opts...)

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Name)
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
