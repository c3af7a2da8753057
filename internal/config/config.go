package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/petems/whisper-pipe/internal/asr"
	"github.com/petems/whisper-pipe/internal/audio"
	"github.com/petems/whisper-pipe/internal/pipeline"
	"github.com/petems/whisper-pipe/internal/vad"
)

const appName = "whisper-pipe"

type Config struct {
	LogLevel  string          `json:"log_level"`
	Audio     AudioConfig     `json:"audio"`
	Recording RecordingConfig `json:"recording"`
	VAD       VADConfig       `json:"vad"`
	Whisper   WhisperConfig   `json:"whisper"`
	OpenAI    OpenAIConfig    `json:"openai"`
	Pipeline  PipelineConfig  `json:"pipeline"`
	Kafka     KafkaConfig     `json:"kafka"`
	Metrics   MetricsConfig   `json:"metrics"`
}

type AudioConfig struct {
	Device     string  `json:"device"`      // "<name> (input|output)", empty for the default input
	SampleRate float64 `json:"sample_rate"` // 0 uses the device default
}

type RecordingConfig struct {
	SegmentDuration Duration `json:"segment_duration"`
	FrameDuration   Duration `json:"frame_duration"`
	SilenceTimeout  Duration `json:"silence_timeout"` // 0 disables early stop on silence
	OutputDir       string   `json:"output_dir"`
}

type VADConfig struct {
	Engine          string  `json:"engine"` // "energy", "silero", or "" to disable
	EnergyThreshold float64 `json:"energy_threshold"`
	SpeechThreshold float64 `json:"speech_threshold"`
	ModelPath       string  `json:"model_path"`
	RuntimeLibrary  string  `json:"runtime_library"`
}

type WhisperConfig struct {
	Engine    string `json:"engine"`   // "base.en", "small", "openai", etc.
	Language  string `json:"language"` // "auto", "en", etc.
	Threads   int    `json:"threads"`
	ModelsDir string `json:"models_dir"`
}

type OpenAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type PipelineConfig struct {
	Workers        int      `json:"workers"`
	QueueSize      int      `json:"queue_size"`
	Overflow       string   `json:"overflow"` // "block" or "drop-oldest"
	MinSpeechRatio float64  `json:"min_speech_ratio"`
	Timeout        Duration `json:"timeout"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled"`
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

type MetricsConfig struct {
	PushgatewayURL string `json:"pushgateway_url"`
	Job            string `json:"job"`
}

// Duration is a time.Duration stored as a Go duration string
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Device:     "",
			SampleRate: 0, // Device default
		},
		Recording: RecordingConfig{
			SegmentDuration: Duration(30 * time.Second),
			FrameDuration:   Duration(100 * time.Millisecond),
			SilenceTimeout:  0,
			OutputDir:       RecordingsPath(),
		},
		VAD: VADConfig{
			Engine:          string(vad.KindEnergy),
			EnergyThreshold: 0.01,
			SpeechThreshold: 0.5,
		},
		Whisper: WhisperConfig{
			Engine:    string(asr.BaseEn),
			Language:  "auto",
			Threads:   0, // Auto-detect
			ModelsDir: ModelsPath(),
		},
		Pipeline: PipelineConfig{
			Workers:   1,
			QueueSize: 16,
			Overflow:  string(pipeline.Block),
			Timeout:   Duration(5 * time.Minute),
		},
		Kafka: KafkaConfig{
			Enabled: false,
			Topic:   "whisper-pipe.transcriptions",
		},
		Metrics: MetricsConfig{
			Job: appName,
		},
	}
}

// Load reads the config from disk or returns defaults, then applies .env
// and environment overrides
func Load() (*Config, error) {
	path := configPath()
	if p := os.Getenv("WHISPER_PIPE_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit config file path
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	// Load existing config if it exists
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = envOrDefault("WHISPER_PIPE_LOG_LEVEL", c.LogLevel)

	c.Audio.Device = envOrDefault("WHISPER_PIPE_DEVICE", c.Audio.Device)

	c.Recording.SegmentDuration = Duration(envOrDefaultDuration("WHISPER_PIPE_SEGMENT_DURATION", c.Recording.SegmentDuration.Std()))
	c.Recording.SilenceTimeout = Duration(envOrDefaultDuration("WHISPER_PIPE_SILENCE_TIMEOUT", c.Recording.SilenceTimeout.Std()))
	c.Recording.OutputDir = envOrDefault("WHISPER_PIPE_OUTPUT_DIR", c.Recording.OutputDir)

	c.VAD.Engine = envOrDefault("WHISPER_PIPE_VAD", c.VAD.Engine)
	c.VAD.ModelPath = envOrDefault("WHISPER_PIPE_VAD_MODEL", c.VAD.ModelPath)
	c.VAD.RuntimeLibrary = envOrDefault("ONNXRUNTIME_LIB", c.VAD.RuntimeLibrary)

	c.Whisper.Engine = envOrDefault("WHISPER_PIPE_ENGINE", c.Whisper.Engine)
	c.Whisper.Language = envOrDefault("WHISPER_PIPE_LANGUAGE", c.Whisper.Language)
	c.Whisper.ModelsDir = envOrDefault("WHISPER_PIPE_MODELS_DIR", c.Whisper.ModelsDir)

	c.OpenAI.APIKey = envOrDefault("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.BaseURL = envOrDefault("OPENAI_BASE_URL", c.OpenAI.BaseURL)

	c.Pipeline.Workers = envOrDefaultInt("WHISPER_PIPE_WORKERS", c.Pipeline.Workers)
	c.Pipeline.QueueSize = envOrDefaultInt("WHISPER_PIPE_QUEUE_SIZE", c.Pipeline.QueueSize)
	c.Pipeline.Overflow = envOrDefault("WHISPER_PIPE_OVERFLOW", c.Pipeline.Overflow)

	c.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", c.Kafka.Enabled)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = splitList(brokers)
	}
	c.Kafka.Topic = envOrDefault("KAFKA_TOPIC", c.Kafka.Topic)

	c.Metrics.PushgatewayURL = envOrDefault("PUSHGATEWAY_URL", c.Metrics.PushgatewayURL)
}

// Validate checks the enumerated settings
func (c *Config) Validate() error {
	if c.Audio.Device != "" {
		if _, err := audio.ParseDeviceSpec(c.Audio.Device); err != nil {
			return fmt.Errorf("audio.device: %w", err)
		}
	}
	if c.Recording.SegmentDuration <= 0 {
		return fmt.Errorf("recording.segment_duration must be positive, got %s", c.Recording.SegmentDuration.Std())
	}
	if c.VAD.Engine != "" {
		if _, err := vad.ParseKind(c.VAD.Engine); err != nil {
			return fmt.Errorf("vad.engine: %w", err)
		}
	}
	engine, err := asr.ParseEngine(c.Whisper.Engine)
	if err != nil {
		return fmt.Errorf("whisper.engine: %w", err)
	}
	if engine.Remote() && c.OpenAI.APIKey == "" {
		return errors.New("openai.api_key (or OPENAI_API_KEY) is required for the openai engine")
	}
	if _, err := pipeline.ParseOverflowPolicy(c.Pipeline.Overflow); err != nil {
		return fmt.Errorf("pipeline.overflow: %w", err)
	}
	if c.Pipeline.MinSpeechRatio < 0 || c.Pipeline.MinSpeechRatio > 1 {
		return fmt.Errorf("pipeline.min_speech_ratio must be within [0, 1], got %v", c.Pipeline.MinSpeechRatio)
	}
	return nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	return c.SaveTo(configPath())
}

func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, appName, "config.json")
}

func dataPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/share"
		}
	}

	return filepath.Join(base, appName)
}

// ModelsPath returns the platform-specific models directory path
func ModelsPath() string {
	return filepath.Join(dataPath(), "models")
}

// RecordingsPath returns the platform-specific directory for captured segments
func RecordingsPath() string {
	return filepath.Join(dataPath(), "recordings")
}
