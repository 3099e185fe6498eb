package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port int `env:"PORT" envDefault:"8080"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Telegram struct {
		BotToken      string `env:"BOT_TOKEN,required"`
		WebhookSecret string `env:"WEBHOOK_SECRET,required"`
		Debug         bool   `env:"TELEGRAM_DEBUG" envDefault:"false"`
	}

	Ledger struct {
		NodeURL string        `env:"LEDGER_NODE_URL,required"`
		Timeout time.Duration `env:"LEDGER_TIMEOUT" envDefault:"8s"`
	}

	DefaultLanguage string `env:"DEFAULT_LANGUAGE" envDefault:"en"`
}

func Load() (*Config, error) {
	// A missing .env file is fine, variables may be set directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
