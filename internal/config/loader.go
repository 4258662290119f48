package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and validates
// the result. Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Capture.Source == "" {
		cfg.Capture.Source = SourceStdin
	}
	if cfg.Capture.SampleRate == 0 {
		cfg.Capture.SampleRate = 16000
	}
	if cfg.Capture.Channels == 0 {
		cfg.Capture.Channels = 1
	}
	if cfg.Capture.FrameDurationMs == 0 {
		cfg.Capture.FrameDurationMs = 30
	}
	if cfg.Capture.BufferFrames == 0 {
		cfg.Capture.BufferFrames = 256
	}

	if cfg.VAD.Engine == "" {
		cfg.VAD.Engine = "webrtc"
	}

	if cfg.Segmenter.Mode == "" {
		cfg.Segmenter.Mode = SegmenterVAD
	}
	if cfg.Segmenter.SilenceThresholdMs == 0 {
		cfg.Segmenter.SilenceThresholdMs = 800
	}
	if cfg.Segmenter.MinUtteranceMs == 0 {
		cfg.Segmenter.MinUtteranceMs = 300
	}
	if cfg.Segmenter.PaddingMs == 0 {
		cfg.Segmenter.PaddingMs = 300
	}
	if cfg.Segmenter.MaxUtteranceMs == 0 {
		cfg.Segmenter.MaxUtteranceMs = 30000
	}
	if cfg.Segmenter.ChunkMs == 0 {
		cfg.Segmenter.ChunkMs = 5000
	}

	if cfg.Backend.Name == "" {
		cfg.Backend.Name = "faster-whisper"
	}
	if cfg.Backend.Device == "" {
		cfg.Backend.Device = "cpu"
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "transcripts"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Capture
	if !cfg.Capture.Source.IsValid() {
		errs = append(errs, fmt.Errorf("capture.source %q is invalid; valid values: wav, stdin", cfg.Capture.Source))
	}
	if cfg.Capture.Source == SourceWAV && cfg.Capture.Path == "" {
		errs = append(errs, errors.New("capture.path is required when capture.source is \"wav\""))
	}
	if cfg.Capture.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d must be positive", cfg.Capture.SampleRate))
	}
	if cfg.Capture.Channels != 1 && cfg.Capture.Channels != 2 {
		errs = append(errs, fmt.Errorf("capture.channels %d is invalid; valid values: 1, 2", cfg.Capture.Channels))
	}
	if cfg.Capture.FrameDurationMs <= 0 {
		errs = append(errs, fmt.Errorf("capture.frame_duration_ms %d must be positive", cfg.Capture.FrameDurationMs))
	}
	if cfg.Capture.BufferFrames < 0 {
		errs = append(errs, fmt.Errorf("capture.buffer_frames %d must not be negative", cfg.Capture.BufferFrames))
	}

	// VAD
	if !slices.Contains(ValidVADEngines, cfg.VAD.Engine) {
		errs = append(errs, fmt.Errorf("vad.engine %q is invalid; valid values: webrtc, energy", cfg.VAD.Engine))
	}
	if cfg.VAD.Aggressiveness < 0 || cfg.VAD.Aggressiveness > 3 {
		errs = append(errs, fmt.Errorf("vad.aggressiveness %d is out of range [0, 3]", cfg.VAD.Aggressiveness))
	}

	// Segmenter
	if !cfg.Segmenter.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("segmenter.mode %q is invalid; valid values: vad, chunk", cfg.Segmenter.Mode))
	}
	if cfg.Segmenter.SilenceThresholdMs <= 0 {
		errs = append(errs, fmt.Errorf("segmenter.silence_threshold_ms %d must be positive", cfg.Segmenter.SilenceThresholdMs))
	}
	if cfg.Segmenter.MinUtteranceMs < 0 {
		errs = append(errs, fmt.Errorf("segmenter.min_utterance_ms %d must not be negative", cfg.Segmenter.MinUtteranceMs))
	}
	if cfg.Segmenter.PaddingMs < 0 {
		errs = append(errs, fmt.Errorf("segmenter.padding_ms %d must not be negative", cfg.Segmenter.PaddingMs))
	}
	if cfg.Segmenter.MaxUtteranceMs < cfg.Segmenter.SilenceThresholdMs {
		errs = append(errs, fmt.Errorf("segmenter.max_utterance_ms %d must not be below segmenter.silence_threshold_ms %d",
			cfg.Segmenter.MaxUtteranceMs, cfg.Segmenter.SilenceThresholdMs))
	}
	if cfg.Segmenter.Mode == SegmenterChunk {
		if cfg.Segmenter.ChunkMs < cfg.Capture.FrameDurationMs {
			errs = append(errs, fmt.Errorf("segmenter.chunk_ms %d must not be below capture.frame_duration_ms %d",
				cfg.Segmenter.ChunkMs, cfg.Capture.FrameDurationMs))
		}
		if cfg.Segmenter.ChunkMs < cfg.Segmenter.MinUtteranceMs {
			errs = append(errs, fmt.Errorf("segmenter.chunk_ms %d must not be below segmenter.min_utterance_ms %d",
				cfg.Segmenter.ChunkMs, cfg.Segmenter.MinUtteranceMs))
		}
	}

	// Backend
	if !slices.Contains(ValidBackends, cfg.Backend.Name) {
		errs = append(errs, fmt.Errorf("backend.name %q is invalid; valid values: whisper-native, faster-whisper, openai", cfg.Backend.Name))
	}
	switch cfg.Backend.Name {
	case "whisper-native":
		if cfg.Backend.ModelPath == "" {
			errs = append(errs, errors.New("backend.model_path is required for the whisper-native backend"))
		}
	case "openai":
		if cfg.Backend.APIKey == "" {
			errs = append(errs, errors.New("backend.api_key is required for the openai backend"))
		}
	}
	if cfg.Backend.Device != "" && cfg.Backend.Device != "cpu" && cfg.Backend.Device != "cuda" {
		errs = append(errs, fmt.Errorf("backend.device %q is invalid; valid values: cpu, cuda", cfg.Backend.Device))
	}
	switch cfg.Backend.ComputeType {
	case "", "int8", "float16", "float32":
	default:
		errs = append(errs, fmt.Errorf("backend.compute_type %q is invalid; valid values: int8, float16, float32", cfg.Backend.ComputeType))
	}

	// Advisory warnings, not errors.
	if cfg.Session.PostgresDSN == "" {
		slog.Debug("session.postgres_dsn is empty; session archive disabled")
	}
	if cfg.Backend.Name == "openai" && cfg.Backend.Language == "" {
		slog.Debug("backend.language not set; the hosted backend will auto-detect per segment")
	}

	return errors.Join(errs...)
}
