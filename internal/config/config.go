package config

import (
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server  ServerConfig
	OpenAI  OpenAIConfig
	Dataset DatasetConfig
}

type ServerConfig struct {
	Port         string        `envconfig:"SERVER_PORT" default:"8000"`
	Host         string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"120s"`
}

type OpenAIConfig struct {
	Provider       string  `envconfig:"OPENAI_PROVIDER" default:"openai"`
	APIKey         string  `envconfig:"OPENAI_API_KEY" required:"true"`
	APIEndpoint    string  `envconfig:"OPENAI_ENDPOINT" default:"https://api.openai.com/v1"`
	Model          string  `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	EmbeddingModel string  `envconfig:"OPENAI_EMBEDDING_MODEL" default:"text-embedding-3-small"`
	APIVersion     string  `envconfig:"OPENAI_API_VERSION" default:"2023-05-15"`
	MaxTokens      int64   `envconfig:"OPENAI_MAX_TOKENS" default:"4000"`
	Temperature    float64 `envconfig:"OPENAI_TEMPERATURE" default:"0.1"`
}

type DatasetConfig struct {
	// Path to the sales dataset (.csv or .json) ingested at startup.
	Path  string `envconfig:"DATASET_PATH" default:"data/sales_data.csv"`
	Table string `envconfig:"DATASET_TABLE" default:"sales_data"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("configuration loaded successfully")
	return &cfg, nil
}
