package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	RunID       string `yaml:"run_id"`
	Mode        string `yaml:"mode"` // live | backtest
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Pipeline struct {
		MessagingInterval   time.Duration `yaml:"messaging_interval"`
		PersistenceInterval time.Duration `yaml:"persistence_interval"`
		IdleSleep           time.Duration `yaml:"idle_sleep"`
		ChartSampleInterval time.Duration `yaml:"chart_sample_interval"`
	} `yaml:"pipeline"`
	Persistence struct {
		Backend string `yaml:"backend"` // file | clickhouse
		Dir     string `yaml:"dir"`
	} `yaml:"persistence"`
	Messaging struct {
		Backend    string `yaml:"backend"` // kafka | webhook | log
		Topic      string `yaml:"topic"`
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"messaging"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			Topic      string        `yaml:"topic"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Feed struct {
		URL            string        `yaml:"url"`
		APIKey         string        `yaml:"api_key"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"feed"`
	Cache struct {
		Backend string        `yaml:"backend"` // memory | redis
		TTL     time.Duration `yaml:"ttl"`
		Redis   struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("RUN_ID"); v != "" {
		c.RunID = v
	}
	if v := os.Getenv("MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Feed.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := os.Getenv("PERSISTENCE_BACKEND"); v != "" {
		c.Persistence.Backend = v
	}
	if v := os.Getenv("MESSAGING_BACKEND"); v != "" {
		c.Messaging.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Messaging.Topic = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "backtest"
	}
	if c.Pipeline.MessagingInterval <= 0 {
		c.Pipeline.MessagingInterval = 2 * time.Second
	}
	if c.Pipeline.PersistenceInterval <= 0 {
		c.Pipeline.PersistenceInterval = 60 * time.Second
	}
	if c.Pipeline.IdleSleep <= 0 {
		c.Pipeline.IdleSleep = 50 * time.Millisecond
	}
	if c.Pipeline.ChartSampleInterval <= 0 {
		c.Pipeline.ChartSampleInterval = time.Second
	}
	if c.Persistence.Backend == "" {
		c.Persistence.Backend = "file"
	}
	if c.Persistence.Dir == "" {
		c.Persistence.Dir = "data"
	}
	if c.Messaging.Backend == "" {
		c.Messaging.Backend = "log"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 15 * time.Second
	}
}

// IsLive reports whether the run is live rather than backtest. Only the
// chart extension's sampling policy depends on this.
func (c *Config) IsLive() bool { return c.Mode == "live" }

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if c.Mode != "live" && c.Mode != "backtest" {
		return fmt.Errorf("mode must be 'live' or 'backtest', got '%s'", c.Mode)
	}
	switch c.Persistence.Backend {
	case "file", "clickhouse":
	default:
		return fmt.Errorf("persistence.backend must be 'file' or 'clickhouse', got '%s'", c.Persistence.Backend)
	}
	switch c.Messaging.Backend {
	case "kafka", "webhook", "log":
	default:
		return fmt.Errorf("messaging.backend must be 'kafka', 'webhook' or 'log', got '%s'", c.Messaging.Backend)
	}
	if c.Messaging.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required for kafka messaging backend")
	}
	if c.Messaging.Backend == "kafka" && c.Messaging.Topic == "" {
		return fmt.Errorf("messaging.topic required for kafka messaging backend")
	}
	if c.Messaging.Backend == "webhook" && c.Messaging.WebhookURL == "" {
		return fmt.Errorf("messaging.webhook_url required for webhook messaging backend")
	}
	if c.Persistence.Backend == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host required for clickhouse persistence backend")
	}
	return nil
}
