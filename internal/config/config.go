// Package config loads server configuration from an optional YAML file with
// environment variable overrides. Environment always wins so deployments can
// keep secrets out of the file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	Providers struct {
		GroqAPIKey       string `yaml:"groq_api_key"`
		GeminiAPIKey     string `yaml:"gemini_api_key"`
		DeepgramAPIKey   string `yaml:"deepgram_api_key"`
		ElevenLabsAPIKey string `yaml:"elevenlabs_api_key"`
		AWSRegion        string `yaml:"aws_region"`
	} `yaml:"providers"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads the YAML file at path when it exists, applies environment
// overrides, then fills defaults. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	override(&cfg.Server.Addr, "LYREBIRD_ADDR")
	override(&cfg.Database.DSN, "LYREBIRD_DB_DSN")
	override(&cfg.Auth.JWTSecret, "JWT_SECRET")
	override(&cfg.Providers.GroqAPIKey, "GROQ_API_KEY")
	override(&cfg.Providers.GeminiAPIKey, "GEMINI_API_KEY")
	override(&cfg.Providers.DeepgramAPIKey, "DEEPGRAM_API_KEY")
	override(&cfg.Providers.ElevenLabsAPIKey, "ELEVENLABS_API_KEY")
	override(&cfg.Providers.AWSRegion, "AWS_REGION")
	override(&cfg.Log.Level, "LYREBIRD_LOG_LEVEL")

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "lyrebird.db"
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "super-secret-key-change-me"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	return cfg, nil
}

func override(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}
