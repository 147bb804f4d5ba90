// Package config resolves runtime configuration from environment variables.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the voice session daemon.
type Config struct {
	Deepgram DeepgramConfig
	Audio    AudioConfig
	Synth    SynthConfig
	Rules    RulesConfig
	Ledger   LedgerConfig
	Views    ViewsConfig
	Session  SessionConfig
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	ChunkSize       int
}

type SynthConfig struct {
	Command string
	Enabled bool
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

type LedgerConfig struct {
	Path string
}

type ViewsConfig struct {
	Path string
}

type SessionConfig struct {
	RestartDelay time.Duration
	RecentLimit  int
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	configDir := filepath.Join(home, ".config", "voicedesk")
	dataDir := filepath.Join(home, ".local", "share", "voicedesk")

	rulesPath := strings.TrimSpace(os.Getenv("VOICEDESK_RULES_FILE"))
	if rulesPath == "" {
		rulesPath = filepath.Join(configDir, "transcript.rules")
	}

	cfg := Config{
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("VOICEDESK_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("VOICEDESK_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("VOICEDESK_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("VOICEDESK_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("VOICEDESK_CHANNELS", 1),
			ChunkSize:       envOrDefaultInt("VOICEDESK_AUDIO_CHUNK_SIZE", 4096),
		},
		Synth: SynthConfig{
			Command: envOrDefault("VOICEDESK_TTS_COMMAND", "espeak-ng"),
			Enabled: envOrDefaultBool("VOICEDESK_TTS_ENABLED", true),
		},
		Rules: RulesConfig{
			Path:           rulesPath,
			IterationLimit: envOrDefaultInt("VOICEDESK_RULE_ITERATION_LIMIT", 30),
		},
		Ledger: LedgerConfig{
			Path: envOrDefault("VOICEDESK_LEDGER_PATH", filepath.Join(dataDir, "ledger.db")),
		},
		Views: ViewsConfig{
			Path: strings.TrimSpace(os.Getenv("VOICEDESK_VIEWS_FILE")),
		},
		Session: SessionConfig{
			RestartDelay: time.Duration(envOrDefaultInt("VOICEDESK_RESTART_DELAY_MS", 2000)) * time.Millisecond,
			RecentLimit:  envOrDefaultInt("VOICEDESK_RECENT_LIMIT", 5),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Session.RestartDelay <= 0 {
		cfg.Session.RestartDelay = 2 * time.Second
	}
	if cfg.Session.RecentLimit <= 0 {
		cfg.Session.RecentLimit = 5
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
