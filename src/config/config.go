package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"feed-observer/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config from a YAML file, overlaid with credentials from the environment
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}

	// 3. Overlay credentials from the environment (or .env)
	if err := config.ApplyEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	config.ApplyDefaults()

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills optional settings left empty in the YAML
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	c.Broker.Environment = strings.ToUpper(c.Broker.Environment)
	if c.Broker.Environment == "" {
		c.Broker.Environment = string(models.EnvironmentDemo)
	}
	if c.Broker.ReconnectDelaySeconds <= 0 {
		c.Broker.ReconnectDelaySeconds = 1
	}
	if c.Network.RequestTimeout <= 0 {
		c.Network.RequestTimeout = 10
	}
	if c.Network.UserAgent == "" {
		c.Network.UserAgent = "feed-observer"
	}
	if c.Streaming.HistorySize <= 0 {
		c.Streaming.HistorySize = 512
	}
	if c.Streaming.VolumeWindowSeconds <= 0 {
		c.Streaming.VolumeWindowSeconds = 60
	}
	if c.Monitor.IntervalSeconds <= 0 {
		c.Monitor.IntervalSeconds = 5
	}
	if c.Monitor.SilenceSeconds <= 0 {
		c.Monitor.SilenceSeconds = 60
	}
	if c.Monitor.ChannelTimeoutSeconds <= 0 {
		c.Monitor.ChannelTimeoutSeconds = 30
	}
	if c.Monitor.ReloginBaseDelaySeconds <= 0 {
		c.Monitor.ReloginBaseDelaySeconds = 5
	}
	if c.Monitor.ReloginMaxDelaySeconds <= 0 {
		c.Monitor.ReloginMaxDelaySeconds = 300
	}
	if c.Display.BroadcastIntervalMs <= 0 {
		c.Display.BroadcastIntervalMs = 1000
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}
	if c.Storage.DataRetentionDays <= 0 {
		c.Storage.DataRetentionDays = 7
	}
	if c.Storage.BatchSize <= 0 {
		c.Storage.BatchSize = 500
	}
	if c.Storage.FlushIntervalMs <= 0 {
		c.Storage.FlushIntervalMs = 1000
	}
	if c.Publisher.ClientID == "" {
		c.Publisher.ClientID = c.Name
	}
	if c.Publisher.ConnectTimeoutSeconds <= 0 {
		c.Publisher.ConnectTimeoutSeconds = 5
	}
	if c.Publisher.QueueSize <= 0 {
		c.Publisher.QueueSize = 4096
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d (must be between 1025 and 65535)", c.GrpcPort)
	}

	// Validate Broker configuration
	switch models.MEnvironment(c.Broker.Environment) {
	case models.EnvironmentDemo:
		if c.Broker.DemoURL == "" {
			return fmt.Errorf("broker demo_url cannot be empty for the DEMO environment")
		}
	case models.EnvironmentLive:
		if c.Broker.LiveURL == "" {
			return fmt.Errorf("broker live_url cannot be empty for the LIVE environment")
		}
	default:
		return fmt.Errorf("unknown broker environment '%s' (expected DEMO or LIVE)", c.Broker.Environment)
	}
	if c.Broker.ReconnectAttempts < 0 {
		return fmt.Errorf("reconnect attempts cannot be negative")
	}

	// Validate Network configuration
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	// Validate Streaming configuration
	if c.Streaming.RetentionSeconds < 0 {
		return fmt.Errorf("retention seconds cannot be negative")
	}

	// Validate Storage configuration
	if c.Storage.Enabled {
		switch c.Storage.DBType {
		case "sqlite":
			if c.Storage.DBPath == "" {
				return fmt.Errorf("database path cannot be empty for sqlite")
			}
		case "postgres":
			if c.Storage.DBConnectionString == "" {
				return fmt.Errorf("database connection string cannot be empty for postgres")
			}
		default:
			return fmt.Errorf("unsupported database type '%s'", c.Storage.DBType)
		}
	}

	// Validate Publisher configuration
	if c.Publisher.Enabled {
		if len(c.Publisher.Servers) == 0 {
			return fmt.Errorf("publisher requires at least one NATS server")
		}
		if c.Publisher.JetStream.Enabled && c.Publisher.JetStream.StreamName == "" {
			return fmt.Errorf("jetstream stream name cannot be empty")
		}
	}

	// Validate Instruments
	if len(c.Instruments) == 0 {
		return fmt.Errorf("at least one instrument must be configured")
	}
	seen := make(map[string]struct{}, len(c.Instruments))
	for i, inst := range c.Instruments {
		if inst.Epic == "" {
			return fmt.Errorf("instrument %d must have an epic", i)
		}
		if _, dup := seen[inst.Epic]; dup {
			return fmt.Errorf("instrument '%s' is configured twice", inst.Epic)
		}
		seen[inst.Epic] = struct{}{}
		if inst.Precision < 0 || inst.Precision > 10 {
			return fmt.Errorf("instrument '%s' has invalid precision %d", inst.Epic, inst.Precision)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0600, the file may carry credentials)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}

// -----------------------------------------------------------------------------
// Derived values
// -----------------------------------------------------------------------------

// BaseURL returns the REST endpoint of the configured environment
func (c *Config) BaseURL() string {
	if models.MEnvironment(c.Broker.Environment) == models.EnvironmentLive {
		return c.Broker.LiveURL
	}
	return c.Broker.DemoURL
}

// Credentials returns the broker credentials
func (c *Config) Credentials() models.MCredentials {
	return models.MCredentials{
		APIKey:   c.Broker.APIKey,
		Username: c.Broker.Username,
		Password: c.Broker.Password,
	}
}

// Retention returns the time horizon of the in-memory history (0 disables it)
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Streaming.RetentionSeconds) * time.Second
}

// VolumeWindow returns the trailing tick volume window
func (c *Config) VolumeWindow() time.Duration {
	return time.Duration(c.Streaming.VolumeWindowSeconds) * time.Second
}

// BroadcastInterval returns the websocket push period
func (c *Config) BroadcastInterval() time.Duration {
	return time.Duration(c.Display.BroadcastIntervalMs) * time.Millisecond
}
