package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every application setting. Values loaded from YAML can be
// overridden through environment variables for deployment secrets.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Ledger struct {
		// Path of the SQLite ledger; empty means in-memory only.
		Path string `yaml:"path"`
	} `yaml:"ledger"`

	Sequencer struct {
		InboxSize       int `yaml:"inbox_size"`
		BlockIntervalMS int `yaml:"block_interval_ms"`
	} `yaml:"sequencer"`

	Solver struct {
		MaxIterations int `yaml:"max_iterations"`
	} `yaml:"solver"`

	Gateway struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"gateway"`

	Outbox struct {
		Enabled bool   `yaml:"enabled"`
		Dir     string `yaml:"dir"`
	} `yaml:"outbox"`

	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`

	Market struct {
		// Token symbol -> ledger token id, e.g. {USDT: 1, ETH: 2}.
		Tokens map[string]uint64 `yaml:"tokens"`
		// Fixed-point scale of base units.
		Decimals int32 `yaml:"decimals"`
	} `yaml:"market"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Sequencer.InboxSize <= 0 {
		return fmt.Errorf("sequencer inbox size must be positive")
	}
	if c.Sequencer.BlockIntervalMS <= 0 {
		return fmt.Errorf("block interval must be positive")
	}
	if c.Solver.MaxIterations <= 0 {
		return fmt.Errorf("solver iteration cap must be positive")
	}
	if c.Gateway.ListenAddr == "" {
		return fmt.Errorf("gateway listen address is required")
	}
	if len(c.Market.Tokens) == 0 {
		return fmt.Errorf("at least one market token is required")
	}
	if c.Market.Decimals < 0 || c.Market.Decimals > 18 {
		return fmt.Errorf("market decimals out of range: %d", c.Market.Decimals)
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
		if !c.Outbox.Enabled {
			return fmt.Errorf("kafka publishing requires the outbox")
		}
	}
	if c.Outbox.Enabled && c.Outbox.Dir == "" {
		return fmt.Errorf("outbox dir is required when the outbox is enabled")
	}
	return nil
}

// overrideWithEnv replaces settings from environment variables when present.
func overrideWithEnv(cfg *Config) {
	if path := os.Getenv("BEATEX_LEDGER_PATH"); path != "" {
		cfg.Ledger.Path = path
	}
	if addr := os.Getenv("BEATEX_GATEWAY_ADDR"); addr != "" {
		cfg.Gateway.ListenAddr = addr
	}
	if brokers := os.Getenv("BEATEX_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if topic := os.Getenv("BEATEX_KAFKA_TOPIC"); topic != "" {
		cfg.Kafka.Topic = topic
	}
	if level := os.Getenv("BEATEX_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
