package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable, e.g. SPEAKCHECK_SCORING_URL.
const EnvPrefix = "SPEAKCHECK"

// Config stores runtime configuration.
type Config struct {
	Port    int `validate:"min=1,max=65535"`
	Scoring ScoringConfig
	Audio   AudioConfig
	Session SessionConfig
	Handoff HandoffConfig
	Archive ArchiveConfig
	Rules   RulesConfig
	Log     LogConfig
}

type ScoringConfig struct {
	BaseURL    string        `validate:"required,url"`
	PhrasePath string        `validate:"required,startswith=/"`
	PromptPath string        `validate:"required,startswith=/"`
	Timeout    time.Duration `validate:"min=1s"`
	Language   string        `validate:"required"`
}

type AudioConfig struct {
	RecorderCommand string `validate:"required"`
	InputFormat     string `validate:"required"`
	InputDevice     string `validate:"required"`
	SampleRate      int    `validate:"min=8000,max=192000"`
	Channels        int    `validate:"min=1,max=2"`
}

type SessionConfig struct {
	ChunkSize   int           `validate:"min=256"`
	MaxDuration time.Duration `validate:"min=1s"`
}

type HandoffConfig struct {
	Key      string        `validate:"required"`
	TTL      time.Duration `validate:"min=1s"`
	RedisURL string        `validate:"omitempty,url"`
}

type ArchiveConfig struct {
	Dir string
}

type RulesConfig struct {
	Path           string
	IterationLimit int `validate:"min=1"`
}

type LogConfig struct {
	Level string `validate:"oneof=trace debug info warn error"`
	File  string
}

var defaults = map[string]any{
	"port":                  8000,
	"scoring.url":           "http://localhost:5000",
	"scoring.phrase_path":   "/assess_phrase",
	"scoring.prompt_path":   "/assess_prompt",
	"scoring.timeout":       "60s",
	"scoring.language":      "en-US",
	"audio.ffmpeg":          "ffmpeg",
	"audio.input_format":    "pulse",
	"audio.input_device":    "default",
	"audio.sample_rate":     16000,
	"audio.channels":        1,
	"audio.chunk_size":      4096,
	"session.max_duration":  "65s",
	"handoff.key":           "lastResult",
	"handoff.ttl":           "6h",
	"handoff.redis_url":     "",
	"archive.dir":           "",
	"rules.path":            "",
	"rules.iteration_limit": 30,
	"log.level":             "info",
	"log.file":              "",
}

// Load resolves configuration from SPEAKCHECK_* environment variables, an optional
// file named by SPEAKCHECK_CONFIG, and defaults. Unparseable numbers fall back to defaults.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path := strings.TrimSpace(os.Getenv(EnvPrefix + "_CONFIG")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	cfg := Config{
		Port: positiveInt(v, "port"),
		Scoring: ScoringConfig{
			BaseURL:    trimmed(v, "scoring.url"),
			PhrasePath: trimmed(v, "scoring.phrase_path"),
			PromptPath: trimmed(v, "scoring.prompt_path"),
			Timeout:    positiveDuration(v, "scoring.timeout"),
			Language:   trimmed(v, "scoring.language"),
		},
		Audio: AudioConfig{
			RecorderCommand: trimmed(v, "audio.ffmpeg"),
			InputFormat:     trimmed(v, "audio.input_format"),
			InputDevice:     trimmed(v, "audio.input_device"),
			SampleRate:      positiveInt(v, "audio.sample_rate"),
			Channels:        positiveInt(v, "audio.channels"),
		},
		Session: SessionConfig{
			ChunkSize:   positiveInt(v, "audio.chunk_size"),
			MaxDuration: positiveDuration(v, "session.max_duration"),
		},
		Handoff: HandoffConfig{
			Key:      trimmed(v, "handoff.key"),
			TTL:      positiveDuration(v, "handoff.ttl"),
			RedisURL: trimmed(v, "handoff.redis_url"),
		},
		Archive: ArchiveConfig{
			Dir: trimmed(v, "archive.dir"),
		},
		Rules: RulesConfig{
			Path:           trimmed(v, "rules.path"),
			IterationLimit: positiveInt(v, "rules.iteration_limit"),
		},
		Log: LogConfig{
			Level: strings.ToLower(trimmed(v, "log.level")),
			File:  trimmed(v, "log.file"),
		},
	}

	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = defaults["audio.chunk_size"].(int)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func trimmed(v *viper.Viper, key string) string {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		if fallback, ok := defaults[key].(string); ok {
			return fallback
		}
	}
	return value
}

func positiveInt(v *viper.Viper, key string) int {
	if parsed := v.GetInt(key); parsed > 0 {
		return parsed
	}
	return defaults[key].(int)
}

func positiveDuration(v *viper.Viper, key string) time.Duration {
	if parsed := v.GetDuration(key); parsed > 0 {
		return parsed
	}
	fallback, _ := time.ParseDuration(defaults[key].(string))
	return fallback
}
