package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendDeepgram = "deepgram"
	BackendAzure    = "azure"
)

// Config stores runtime configuration for the dictation CLI and its engines.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Deepgram DeepgramConfig `yaml:"deepgram"`
	Azure    AzureConfig    `yaml:"azure"`
	Audio    AudioConfig    `yaml:"audio"`
	Session  SessionConfig  `yaml:"session"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type EngineConfig struct {
	Backend string `yaml:"backend"`
}

type DeepgramConfig struct {
	APIKey      string `yaml:"api_key"`
	APIBaseURL  string `yaml:"api_base_url"`
	Model       string `yaml:"model"`
	Language    string `yaml:"language"`
	SmartFormat bool   `yaml:"smart_format"`
}

type AzureConfig struct {
	SubscriptionKey string `yaml:"subscription_key"`
	Region          string `yaml:"region"`
	Language        string `yaml:"language"`
}

type AudioConfig struct {
	RecorderCommand string `yaml:"recorder_command"`
	InputFormat     string `yaml:"input_format"`
	InputDevice     string `yaml:"input_device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
}

type SessionConfig struct {
	ChunkSize      int           `yaml:"chunk_size"`
	StreamingGrace time.Duration `yaml:"streaming_grace"`
	StartTimeout   time.Duration `yaml:"start_timeout"`
	// GrammarPhrases, when non-empty, replaces the default dictation grammar.
	GrammarPhrases []string `yaml:"grammar_phrases"`
}

type LogConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	ReportCaller bool   `yaml:"report_caller"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() Config {
	return Config{
		Engine: EngineConfig{Backend: BackendDeepgram},
		Deepgram: DeepgramConfig{
			APIBaseURL:  "https://api.deepgram.com/v1",
			Model:       "nova-2",
			SmartFormat: true,
		},
		Azure: AzureConfig{Language: "en-US"},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      16000,
			Channels:        1,
		},
		Session: SessionConfig{
			ChunkSize:      4096,
			StreamingGrace: time.Second,
			StartTimeout:   10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load resolves configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence. An empty path falls
// back to DICTATION_CONFIG.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv("DICTATION_CONFIG"))
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	normalize(&cfg)

	switch cfg.Engine.Backend {
	case BackendDeepgram, BackendAzure:
	default:
		return Config{}, fmt.Errorf("unsupported engine backend %q", cfg.Engine.Backend)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %q does not exist", path)
		}
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	envString(&cfg.Engine.Backend, "DICTATION_ENGINE")

	envString(&cfg.Deepgram.APIKey, "DEEPGRAM_API_KEY")
	envString(&cfg.Deepgram.APIBaseURL, "DEEPGRAM_API_BASE")
	envString(&cfg.Deepgram.Model, "DEEPGRAM_MODEL")
	envString(&cfg.Deepgram.Language, "DEEPGRAM_LANGUAGE")
	envBool(&cfg.Deepgram.SmartFormat, "DEEPGRAM_SMART_FORMAT")

	envString(&cfg.Azure.SubscriptionKey, "AZURE_SPEECH_KEY")
	envString(&cfg.Azure.Region, "AZURE_SPEECH_REGION")
	envString(&cfg.Azure.Language, "AZURE_SPEECH_LANGUAGE")

	envString(&cfg.Audio.RecorderCommand, "DICTATION_FFMPEG_COMMAND")
	envString(&cfg.Audio.InputFormat, "DICTATION_AUDIO_INPUT_FORMAT")
	envString(&cfg.Audio.InputDevice, "DICTATION_AUDIO_INPUT_DEVICE")
	envInt(&cfg.Audio.SampleRate, "DICTATION_SAMPLE_RATE")
	envInt(&cfg.Audio.Channels, "DICTATION_CHANNELS")

	envInt(&cfg.Session.ChunkSize, "DICTATION_AUDIO_CHUNK_SIZE")
	envMillis(&cfg.Session.StreamingGrace, "DICTATION_STREAMING_GRACE_MS")
	envMillis(&cfg.Session.StartTimeout, "DICTATION_START_TIMEOUT_MS")
	if phrases := strings.TrimSpace(os.Getenv("DICTATION_GRAMMAR_PHRASES")); phrases != "" {
		cfg.Session.GrammarPhrases = splitList(phrases)
	}

	envString(&cfg.Log.Level, "DICTATION_LOG_LEVEL")
	envString(&cfg.Log.Format, "DICTATION_LOG_FORMAT")
	envString(&cfg.Metrics.Listen, "DICTATION_METRICS_LISTEN")
}

func normalize(cfg *Config) {
	defaults := Default()

	cfg.Engine.Backend = strings.ToLower(strings.TrimSpace(cfg.Engine.Backend))
	if cfg.Engine.Backend == "" {
		cfg.Engine.Backend = defaults.Engine.Backend
	}
	if cfg.Deepgram.APIBaseURL == "" {
		cfg.Deepgram.APIBaseURL = defaults.Deepgram.APIBaseURL
	}
	if cfg.Deepgram.Model == "" {
		cfg.Deepgram.Model = defaults.Deepgram.Model
	}
	if cfg.Azure.Language == "" {
		cfg.Azure.Language = defaults.Azure.Language
	}
	if cfg.Audio.RecorderCommand == "" {
		cfg.Audio.RecorderCommand = defaults.Audio.RecorderCommand
	}
	if cfg.Audio.InputDevice == "" {
		cfg.Audio.InputDevice = defaults.Audio.InputDevice
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = defaults.Audio.SampleRate
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = defaults.Audio.Channels
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = defaults.Session.ChunkSize
	}
	if cfg.Session.StreamingGrace < 0 {
		cfg.Session.StreamingGrace = defaults.Session.StreamingGrace
	}
	if cfg.Session.StartTimeout <= 0 {
		cfg.Session.StartTimeout = defaults.Session.StartTimeout
	}
	cfg.Session.GrammarPhrases = trimList(cfg.Session.GrammarPhrases)
}

func splitList(value string) []string {
	return trimList(strings.Split(value, ","))
}

func trimList(values []string) []string {
	var out []string
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envString(target *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*target = value
	}
}

func envInt(target *int, key string) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		*target = parsed
	}
}

func envBool(target *bool, key string) {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		*target = true
	case "0", "false", "no", "off":
		*target = false
	}
}

func envMillis(target *time.Duration, key string) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return
	}
	if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
		*target = time.Duration(parsed) * time.Millisecond
	}
}
