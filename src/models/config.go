package models

// MConfig Structure
type MConfig struct {
	Name        string           `yaml:"name"`
	Host        string           `yaml:"host"`
	Port        int              `yaml:"port"`
	LogLevel    string           `yaml:"log_level"`
	GrpcHost    string           `yaml:"grpc_host"`
	GrpcPort    int              `yaml:"grpc_port"`
	Broker      MBrokerConfig    `yaml:"broker"`
	Network     MNetworkConfig   `yaml:"network"`
	Streaming   MStreamingConfig `yaml:"streaming"`
	Monitor     MMonitorConfig   `yaml:"monitor"`
	Display     MDisplayConfig   `yaml:"display"`
	Storage     MStorageConfig   `yaml:"storage"`
	Publisher   MPublisherConfig `yaml:"publisher"`
	Instruments []MInstrument    `yaml:"instruments"`
}

type MBrokerConfig struct {
	Environment           string `yaml:"environment"` // DEMO or LIVE
	APIKey                string `yaml:"api_key"`
	Username              string `yaml:"username"`
	Password              string `yaml:"password"`
	DemoURL               string `yaml:"demo_url"`
	LiveURL               string `yaml:"live_url"`
	StreamingURL          string `yaml:"streaming_url"` // overrides the endpoint returned at login
	ReconnectAttempts     int    `yaml:"reconnect_attempts"`
	ReconnectDelaySeconds int    `yaml:"reconnect_delay_seconds"`
}

type MNetworkConfig struct {
	RequestTimeout int      `yaml:"timeout"`
	MaxRetries     int      `yaml:"retries"`
	UserAgent      string   `yaml:"user_agent"`
	Proxies        []string `yaml:"proxies"` // rotated on transport failures
}

type MStreamingConfig struct {
	HistorySize         int `yaml:"history_size"`
	RetentionSeconds    int `yaml:"retention_seconds"` // 0 disables the time horizon
	VolumeWindowSeconds int `yaml:"volume_window_seconds"`
}

type MMonitorConfig struct {
	IntervalSeconds         int `yaml:"interval_seconds"`
	SilenceSeconds          int `yaml:"silence_seconds"`
	ChannelTimeoutSeconds   int `yaml:"channel_timeout_seconds"`
	ReloginBaseDelaySeconds int `yaml:"relogin_base_delay_seconds"`
	ReloginMaxDelaySeconds  int `yaml:"relogin_max_delay_seconds"`
}

type MDisplayConfig struct {
	BroadcastIntervalMs int `yaml:"broadcast_interval_ms"`
}

type MStorageConfig struct {
	Enabled            bool   `yaml:"enabled"`
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	DataRetentionDays  int    `yaml:"data_retention_days"`
	BatchSize          int    `yaml:"batch_size"`
	FlushIntervalMs    int    `yaml:"flush_interval_ms"`
}

type MPublisherConfig struct {
	Enabled               bool             `yaml:"enabled"`
	Servers               []string         `yaml:"servers"`
	ClientID              string           `yaml:"client_id"`
	SubjectPrefix         string           `yaml:"subject_prefix"`
	ConnectTimeoutSeconds int              `yaml:"connect_timeout_seconds"`
	MaxReconnects         int              `yaml:"max_reconnects"`
	QueueSize             int              `yaml:"queue_size"`
	JetStream             MJetStreamConfig `yaml:"jetstream"`
}

type MJetStreamConfig struct {
	Enabled     bool     `yaml:"enabled"`
	StreamName  string   `yaml:"stream_name"`
	Subjects    []string `yaml:"subjects"`
	MaxAgeHours int      `yaml:"max_age_hours"`
}
