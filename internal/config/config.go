package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port       int
	BaseURL    string
	DataDir    string
	OutputsDir string

	Retention      time.Duration
	SweepInterval  time.Duration
	MaxSampled     int
	RebuildOnStart bool

	LogLevel string
	LogFile  string

	AnthropicAPIKey string
	AnthropicModel  string
	ReasonMaxTokens int

	DeepgramAPIKey   string
	DeepgramSTTModel string
	DeepgramTTSModel string
	ASRLanguage      string
	ASROverrideAudio string

	NatsURL     string
	NatsToken   string
	DatabaseURL string
	APIToken    string
}

func Load() Config {
	return Config{
		Port:       envInt("LOOKOUT_PORT", 5050),
		BaseURL:    envStr("LOOKOUT_BASE_URL", "http://localhost:5050"),
		DataDir:    envStr("LOOKOUT_DATA_DIR", "./data"),
		OutputsDir: envStr("LOOKOUT_OUTPUTS_DIR", "./static/outputs"),

		Retention:      envSeconds("RETENTION_SECONDS", 1800),
		SweepInterval:  envSeconds("SWEEP_INTERVAL_SECONDS", 60),
		MaxSampled:     envInt("MAX_SAMPLED_FRAMES", 3),
		RebuildOnStart: envBool("REBUILD_ON_START", false),

		LogLevel: envStr("LOG_LEVEL", "info"),
		LogFile:  envStr("LOG_FILE", ""),

		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("LOOKOUT_MODEL", "claude-sonnet-4-20250514"),
		ReasonMaxTokens: envInt("REASON_MAX_TOKENS", 256),

		DeepgramAPIKey:   envStr("DEEPGRAM_API_KEY", ""),
		DeepgramSTTModel: envStr("DEEPGRAM_STT_MODEL", "nova-2"),
		DeepgramTTSModel: envStr("DEEPGRAM_TTS_MODEL", "aura-asteria-en"),
		ASRLanguage:      envStr("ASR_LANGUAGE", "en-US"),
		ASROverrideAudio: envStr("ASR_OVERRIDE_AUDIO", ""),

		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		APIToken:    envStr("LOOKOUT_API_TOKEN", ""),
	}
}

// ParseLogLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envSeconds reads a positive number of seconds.
func envSeconds(key string, fallback int) time.Duration {
	n := envInt(key, fallback)
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
