// Package config provides the configuration schema and loader for the
// VoxScribe transcription service.
package config

// LogLevel controls log verbosity for the VoxScribe process.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SourceKind selects where the audio frame stream comes from.
type SourceKind string

const (
	// SourceWAV replays a WAV file as a frame stream.
	SourceWAV SourceKind = "wav"

	// SourceStdin reads headerless 16-bit PCM from standard input, e.g. piped
	// from `arecord -f S16_LE -r 16000 -c 1 -t raw`.
	SourceStdin SourceKind = "stdin"
)

// IsValid reports whether s is a recognised capture source.
func (s SourceKind) IsValid() bool {
	return s == SourceWAV || s == SourceStdin
}

// SegmenterMode selects how the frame stream is cut into utterances.
type SegmenterMode string

const (
	// SegmenterVAD cuts utterances at voice-activity boundaries.
	SegmenterVAD SegmenterMode = "vad"

	// SegmenterChunk cuts fixed-duration windows regardless of content.
	SegmenterChunk SegmenterMode = "chunk"
)

// IsValid reports whether m is a recognised segmenter mode.
func (m SegmenterMode) IsValid() bool {
	return m == SegmenterVAD || m == SegmenterChunk
}

// ValidVADEngines lists the recognised VAD engine names.
var ValidVADEngines = []string{"webrtc", "energy"}

// ValidBackends lists the recognised transcription backend names.
var ValidBackends = []string{"whisper-native", "faster-whisper", "openai"}

// Config is the root configuration structure for VoxScribe.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Capture   CaptureConfig   `yaml:"capture"`
	VAD       VADConfig       `yaml:"vad"`
	Segmenter SegmenterConfig `yaml:"segmenter"`
	Backend   BackendConfig   `yaml:"backend"`
	Output    OutputConfig    `yaml:"output"`
	Session   SessionConfig   `yaml:"session"`
}

// ServerConfig holds network and logging settings for the metrics/health server.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g., ":8080").
	// Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// CaptureConfig describes the audio frame source.
type CaptureConfig struct {
	// Source selects the capture implementation.
	Source SourceKind `yaml:"source"`

	// Path is the WAV file to replay when Source is "wav".
	Path string `yaml:"path"`

	// SampleRate is the target sample rate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the target channel count. Default: 1.
	Channels int `yaml:"channels"`

	// FrameDurationMs is the frame size in milliseconds. Default: 30.
	FrameDurationMs int `yaml:"frame_duration_ms"`

	// BufferFrames is the capture buffer capacity in frames. When the backend
	// falls behind, the oldest buffered frames are dropped. Default: 256.
	BufferFrames int `yaml:"buffer_frames"`

	// Realtime paces WAV replay at the audio's natural rate instead of
	// replaying as fast as possible.
	Realtime bool `yaml:"realtime"`
}

// VADConfig configures the voice activity detection engine.
type VADConfig struct {
	// Engine selects the classifier implementation ("webrtc" or "energy").
	// Default: "webrtc".
	Engine string `yaml:"engine"`

	// Aggressiveness tunes how strictly non-speech is filtered, from 0
	// (least aggressive, most permissive) to 3 (most aggressive). Default: 0.
	Aggressiveness int `yaml:"aggressiveness"`
}

// SegmenterConfig tunes utterance boundary detection.
type SegmenterConfig struct {
	// Mode selects VAD-driven or fixed-window segmentation. Default: "vad".
	Mode SegmenterMode `yaml:"mode"`

	// SilenceThresholdMs is the trailing silence that closes an utterance.
	// Default: 800.
	SilenceThresholdMs int `yaml:"silence_threshold_ms"`

	// MinUtteranceMs discards utterances shorter than this. Default: 300.
	MinUtteranceMs int `yaml:"min_utterance_ms"`

	// PaddingMs is the silence retained around each utterance. Default: 300.
	PaddingMs int `yaml:"padding_ms"`

	// MaxUtteranceMs force-closes an utterance that exceeds this duration.
	// Default: 30000.
	MaxUtteranceMs int `yaml:"max_utterance_ms"`

	// ChunkMs is the window size in chunk mode. Default: 5000.
	ChunkMs int `yaml:"chunk_ms"`
}

// BackendConfig selects and configures the transcription backend.
type BackendConfig struct {
	// Name selects the backend implementation ("whisper-native",
	// "faster-whisper", or "openai").
	Name string `yaml:"name"`

	// Model is the model identifier (e.g., "base", "whisper-1").
	Model string `yaml:"model"`

	// ModelPath is the ggml model file for the "whisper-native" backend.
	ModelPath string `yaml:"model_path"`

	// BaseURL overrides the backend's default endpoint.
	BaseURL string `yaml:"base_url"`

	// APIKey is the authentication key for hosted backends.
	APIKey string `yaml:"api_key"`

	// Language pins the transcription language; empty or "auto" lets the
	// backend detect it.
	Language string `yaml:"language"`

	// Device selects the compute device ("cpu" or "cuda") where supported.
	Device string `yaml:"device"`

	// ComputeType selects the model precision ("int8", "float16", "float32")
	// where supported.
	ComputeType string `yaml:"compute_type"`
}

// OutputConfig controls transcript persistence.
type OutputConfig struct {
	// Dir is the directory transcript files are written to. Default: "transcripts".
	Dir string `yaml:"dir"`
}

// SessionConfig holds optional session archival settings.
type SessionConfig struct {
	// PostgresDSN enables archiving finalized sessions to PostgreSQL.
	// Empty disables the archive.
	PostgresDSN string `yaml:"postgres_dsn"`
}
