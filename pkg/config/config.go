package config

import (
	"errors"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	API             API
	Logger          Logger
	Kafka           Kafka
	SessionDBPath   string        `env:"SESSION_DB_PATH" envDefault:"ticketflow.db"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"30s"`
}

type API struct {
	BaseURL      string        `env:"API_BASE_URL"`
	Timeout      time.Duration `env:"API_TIMEOUT" envDefault:"5s"`
	RetryMax     int           `env:"API_RETRY_MAX" envDefault:"3"`
	RetryWaitMin time.Duration `env:"API_RETRY_WAIT_MIN" envDefault:"200ms"`
	RetryWaitMax time.Duration `env:"API_RETRY_WAIT_MAX" envDefault:"2s"`
}

type Logger struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// Kafka publishing is disabled when Brokers is empty.
type Kafka struct {
	Brokers       []string `env:"KAFKA_BROKERS" envDefault:"" envSeparator:","`
	ActivityTopic string   `env:"KAFKA_ACTIVITY_TOPIC" envDefault:"ticket-activity"`
}

func (k Kafka) Enabled() bool {
	for _, b := range k.Brokers {
		if b != "" {
			return true
		}
	}

	return false
}

func New(envPath string) (Config, error) {
	err := godotenv.Load(envPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}

	c, err := env.ParseAsWithOptions[Config](env.Options{
		RequiredIfNoDef: true,
	})
	if err != nil {
		return Config{}, err
	}

	return c, nil
}
