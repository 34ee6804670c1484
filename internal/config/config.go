package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration for the shiftwatch server
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
	Storage  StorageConfig  `toml:"storage"`
	LLM      LLMConfig      `toml:"llm"`
	Analysis AnalysisConfig `toml:"analysis"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// StorageConfig represents SQLite storage configuration
type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

// LLMConfig represents the language model backend configuration
type LLMConfig struct {
	// BaseURL points at any OpenAI-compatible endpoint. For a local Ollama
	// instance use "http://localhost:11434/v1".
	BaseURL        string  `toml:"base_url"`
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// AnalysisConfig represents analysis pipeline configuration
type AnalysisConfig struct {
	MaxTokens               int    `toml:"max_tokens"`
	TranscriptSampleSize    int    `toml:"transcript_sample_size"`
	MaxConcurrentBackend    int64  `toml:"max_concurrent_backend_calls"`
	PromptTemplateDir       string `toml:"prompt_template_dir"` // empty = embedded defaults
	HighRiskFatigueScore    int    `toml:"high_risk_fatigue_score"`
	ReportQueryLimitMax     int    `toml:"report_query_limit_max"`
	ReportQueryLimitDefault int    `toml:"report_query_limit_default"`
}

// Load loads the configuration from the given TOML file
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Environment overrides the API key so it never has to live in the file
	if key := os.Getenv("SHIFTWATCH_LLM_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			DBPath: "shiftwatch.db",
		},
		LLM: LLMConfig{
			BaseURL:        "http://localhost:11434/v1",
			Model:          "llama3.2:3b",
			Temperature:    0.2,
			TimeoutSeconds: 120,
		},
		Analysis: AnalysisConfig{
			MaxTokens:               2048,
			TranscriptSampleSize:    10,
			MaxConcurrentBackend:    4,
			HighRiskFatigueScore:    70,
			ReportQueryLimitMax:     200,
			ReportQueryLimitDefault: 50,
		},
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model must be set")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm timeout must be positive, got %d", c.LLM.TimeoutSeconds)
	}
	if c.Analysis.MaxTokens <= 0 {
		return fmt.Errorf("analysis max_tokens must be positive, got %d", c.Analysis.MaxTokens)
	}
	if c.Analysis.TranscriptSampleSize <= 0 {
		return fmt.Errorf("transcript_sample_size must be positive, got %d", c.Analysis.TranscriptSampleSize)
	}
	if c.Analysis.MaxConcurrentBackend <= 0 {
		return fmt.Errorf("max_concurrent_backend_calls must be positive, got %d", c.Analysis.MaxConcurrentBackend)
	}
	return nil
}

// LLMTimeout returns the per-call backend timeout as a duration
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}
