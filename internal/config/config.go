package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Mode selects between the live collaborator and its in-process mock.
type Mode string

const (
	ModeLive Mode = "live"
	ModeMock Mode = "mock"
)

// Config stores runtime configuration for the client.
type Config struct {
	Backend BackendConfig
	User    UserConfig
	Voice   VoiceConfig
	Results ResultsConfig
	Avatar  AvatarConfig
	Log     LogConfig
	Metrics MetricsConfig
	Mock    MockConfig
}

type BackendConfig struct {
	BaseURL        string
	Mode           Mode
	RequestTimeout time.Duration
	PersistTimeout time.Duration
}

type UserConfig struct {
	ID   string
	Name string
}

type VoiceConfig struct {
	Mode       Mode
	GatewayURL string
}

type ResultsConfig struct {
	PollAttempts int
	PollInterval time.Duration
}

type AvatarConfig struct {
	APIKey     string
	APIBaseURL string
	ReplicaID  string
	PersonaID  string
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Addr string
}

type MockConfig struct {
	IntakeAddr string
	Latency    time.Duration
}

// Load resolves configuration from an optional .env file, environment
// variables and defaults. Variables already set in the environment win over
// the .env file.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Backend: BackendConfig{
			BaseURL:        strings.TrimRight(envOrDefault("MINERVA_BACKEND_URL", "http://localhost:5000"), "/"),
			Mode:           envOrDefaultMode("OLIVIA_INTAKE_MODE", ModeLive),
			RequestTimeout: time.Duration(envOrDefaultInt("OLIVIA_HTTP_TIMEOUT_MS", 15000)) * time.Millisecond,
			PersistTimeout: time.Duration(envOrDefaultInt("OLIVIA_PERSIST_TIMEOUT_MS", 10000)) * time.Millisecond,
		},
		User: UserConfig{
			ID:   envOrDefault("DEFAULT_USER_ID", "user_001"),
			Name: envOrDefault("DEFAULT_USER_NAME", "John Doe"),
		},
		Voice: VoiceConfig{
			Mode:       envOrDefaultMode("OLIVIA_VOICE_MODE", ModeLive),
			GatewayURL: envOrDefault("VOICE_GATEWAY_URL", "wss://api.retellai.com/web-call"),
		},
		Results: ResultsConfig{
			PollAttempts: envOrDefaultInt("OLIVIA_POLL_ATTEMPTS", 30),
			PollInterval: time.Duration(envOrDefaultInt("OLIVIA_POLL_INTERVAL_MS", 2000)) * time.Millisecond,
		},
		Avatar: AvatarConfig{
			APIKey:     strings.TrimSpace(os.Getenv("TAVUS_API_KEY")),
			APIBaseURL: envOrDefault("TAVUS_API_BASE", "https://tavusapi.com/v2"),
			ReplicaID:  envOrDefault("TAVUS_REPLICA_ID", "rfe12d8b9597"),
			PersonaID:  envOrDefault("TAVUS_PERSONA_ID", "p4e7a065501a"),
		},
		Log: LogConfig{
			Level:  envOrDefault("LOG_LEVEL", "info"),
			Format: envOrDefault("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Addr: strings.TrimSpace(os.Getenv("METRICS_ADDR")),
		},
		Mock: MockConfig{
			IntakeAddr: envOrDefault("MOCK_INTAKE_ADDR", ":5000"),
			Latency:    time.Duration(envOrDefaultInt("OLIVIA_MOCK_LATENCY_MS", 1500)) * time.Millisecond,
		},
	}

	if cfg.Backend.RequestTimeout <= 0 {
		cfg.Backend.RequestTimeout = 15 * time.Second
	}
	if cfg.Backend.PersistTimeout <= 0 {
		cfg.Backend.PersistTimeout = 10 * time.Second
	}
	if cfg.Results.PollAttempts <= 0 {
		cfg.Results.PollAttempts = 30
	}
	if cfg.Mock.Latency < 0 {
		cfg.Mock.Latency = 0
	}
	if cfg.Results.PollInterval <= 0 {
		cfg.Results.PollInterval = 2 * time.Second
	}

	return cfg, nil
}

func loadEnvFile() error {
	path := strings.TrimSpace(os.Getenv("OLIVIA_ENV_FILE"))
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("env file %q does not exist", path)
		}
		return fmt.Errorf("failed to load env file %q: %w", path, err)
	}
	return nil
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

func envOrDefaultMode(key string, fallback Mode) Mode {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "mock", "dev", "development":
		return ModeMock
	case "live", "prod", "production":
		return ModeLive
	default:
		return fallback
	}
}
