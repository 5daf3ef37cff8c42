package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	OpenAI        OpenAIConfig        `json:"openai"`
	Summarization SummarizationConfig `json:"summarization"`
	Telegram      TelegramConfig      `json:"telegram"`
	JWTSecret     string              `json:"jwt_secret"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslmode"`
}

type OpenAIConfig struct {
	APIKey          string `json:"api_key"`
	Model           string `json:"model"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
	MaxRetries      int    `json:"max_retries"`
	MaxOutputTokens int    `json:"max_output_tokens"`
}

// SummarizationConfig controls the buffering pipeline. Threshold is both
// the message count that triggers a job and the batch size bound per job.
type SummarizationConfig struct {
	Threshold           int `json:"threshold"`
	WorkerPollSeconds   int `json:"worker_poll_seconds"`
	ReapIntervalSeconds int `json:"reap_interval_seconds"`
	StaleAfterMinutes   int `json:"stale_after_minutes"`
	MaxAttempts         int `json:"max_attempts"`
}

type TelegramConfig struct {
	BotToken string `json:"bot_token"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	// Add config paths
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Check for user config directory
	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".chatsum"))
	}

	// Set defaults
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "chatsum")
	viper.SetDefault("database.database", "chatsum")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.timeout_seconds", 30)
	viper.SetDefault("openai.max_retries", 2)
	viper.SetDefault("openai.max_output_tokens", 400)
	viper.SetDefault("summarization.threshold", 10)
	viper.SetDefault("summarization.worker_poll_seconds", 5)
	viper.SetDefault("summarization.reap_interval_seconds", 60)
	viper.SetDefault("summarization.stale_after_minutes", 10)
	viper.SetDefault("summarization.max_attempts", 3)

	// Read config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cfg := defaultConfig()
			loadEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Load environment variables
	loadEnvOverrides(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 3000,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "chatsum",
			Password: "",
			Database: "chatsum",
			SSLMode:  "disable",
		},
		OpenAI: OpenAIConfig{
			Model:           "gpt-4o-mini",
			TimeoutSeconds:  30,
			MaxRetries:      2,
			MaxOutputTokens: 400,
		},
		Summarization: SummarizationConfig{
			Threshold:           10,
			WorkerPollSeconds:   5,
			ReapIntervalSeconds: 60,
			StaleAfterMinutes:   10,
			MaxAttempts:         3,
		},
	}
}

func loadEnvOverrides(cfg *Config) {
	if host := os.Getenv("CHATSUM_DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := os.Getenv("CHATSUM_DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Database.Port = p
		}
	}
	if user := os.Getenv("CHATSUM_DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if password := os.Getenv("CHATSUM_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if database := os.Getenv("CHATSUM_DB_NAME"); database != "" {
		cfg.Database.Database = database
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.OpenAI.APIKey = apiKey
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.OpenAI.Model = model
	}
	if threshold := os.Getenv("CHATSUM_THRESHOLD"); threshold != "" {
		if t, err := strconv.Atoi(threshold); err == nil && t > 0 {
			cfg.Summarization.Threshold = t
		}
	}
	if secret := os.Getenv("CHATSUM_JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Telegram.BotToken = token
	}
}
