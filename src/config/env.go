package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment override (FEED_API_KEY, ...)
const EnvPrefix = "FEED"

// -----------------------------------------------------------------------------

// brokerEnv holds the broker settings that may come from the environment
type brokerEnv struct {
	APIKey      string `envconfig:"API_KEY"`
	Username    string `envconfig:"USERNAME"`
	Password    string `envconfig:"PASSWORD"`
	Environment string `envconfig:"ENVIRONMENT"`
}

// -----------------------------------------------------------------------------

// ApplyEnvironment loads .env (if present) and overlays non-empty FEED_* variables
func (c *Config) ApplyEnvironment() error {
	// .env is optional; production injects real environment variables
	_ = godotenv.Load()

	var env brokerEnv
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}

	if env.APIKey != "" {
		c.Broker.APIKey = env.APIKey
	}
	if env.Username != "" {
		c.Broker.Username = env.Username
	}
	if env.Password != "" {
		c.Broker.Password = env.Password
	}
	if env.Environment != "" {
		c.Broker.Environment = strings.ToUpper(env.Environment)
	}
	return nil
}
