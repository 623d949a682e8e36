package config

import (
	"encoding/json"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Bot       BotConfig       `json:"bot"`
	Detection DetectionConfig `json:"detection"`
	Database  DatabaseConfig  `json:"database"`
	Network   NetworkConfig   `json:"network"`
	Logging   LoggingConfig   `json:"logging"`
}

type BotConfig struct {
	Token    string `json:"token"`
	ClientID string `json:"client_id"`
}

type DetectionConfig struct {
	Enabled          bool  `json:"enabled"`
	SweepIntervalSec int   `json:"sweep_interval_sec"`
	CacheMaxAgeMs    int64 `json:"cache_max_age_ms"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type NetworkConfig struct {
	HTTPPoolSize int    `json:"http_pool_size"`
	WorkerCount  int    `json:"worker_count"`
	APIBaseURL   string `json:"api_base_url"`
}

type LoggingConfig struct {
	Level string `json:"level"`
	Path  string `json:"path"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	// .env is optional; real env vars win either way
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	GlobalConfig = &cfg
	return &cfg, nil
}

func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		cfg = DefaultConfig()
		_ = godotenv.Load()
		applyEnvOverrides(cfg)
		GlobalConfig = cfg
	}
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		cfg.Bot.Token = token
	}
	if clientID := os.Getenv("CLIENT_ID"); clientID != "" {
		cfg.Bot.ClientID = clientID
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Detection.SweepIntervalSec <= 0 {
		cfg.Detection.SweepIntervalSec = def.Detection.SweepIntervalSec
	}
	if cfg.Detection.CacheMaxAgeMs <= 0 {
		cfg.Detection.CacheMaxAgeMs = def.Detection.CacheMaxAgeMs
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = def.Database.Path
	}
	if cfg.Network.HTTPPoolSize <= 0 {
		cfg.Network.HTTPPoolSize = def.Network.HTTPPoolSize
	}
	if cfg.Network.WorkerCount <= 0 {
		cfg.Network.WorkerCount = def.Network.WorkerCount
	}
	if cfg.Network.APIBaseURL == "" {
		cfg.Network.APIBaseURL = def.Network.APIBaseURL
	}
	if cfg.Logging.Path == "" {
		cfg.Logging.Path = def.Logging.Path
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
}

func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{},
		Detection: DetectionConfig{
			Enabled:          true,
			SweepIntervalSec: 60,
			CacheMaxAgeMs:    60000,
		},
		Database: DatabaseConfig{
			Path: "theoprotect.db",
		},
		Network: NetworkConfig{
			HTTPPoolSize: 4,
			WorkerCount:  4,
			APIBaseURL:   "https://discord.com/api/v10",
		},
		Logging: LoggingConfig{
			Level: "info",
			Path:  "theoprotect.log",
		},
	}
}

func Get() *Config {
	if GlobalConfig == nil {
		return DefaultConfig()
	}
	return GlobalConfig
}
