package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level      string `yaml:"level" default:"info"`
		Format     string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output     string `yaml:"output" default:"stdout"`
		TimeFormat string `yaml:"time_format"`
	} `yaml:"log"`
	Pipeline struct {
		WindowYears int `yaml:"window_years" default:"5" validate:"min=1"`
		Workers     int `yaml:"workers" default:"1" validate:"min=1"`
		// MetadataTTL is how long dimension metadata stays fresh before a
		// refetch (the 7-day rule).
		MetadataTTL time.Duration `yaml:"metadata_ttl" default:"168h"`
	} `yaml:"pipeline"`
	Source struct {
		BaseURL   string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
		UserAgent string        `yaml:"user_agent" default:"Mozilla/5.0 (compatible; equityschema/1.0)"`
		Timeout   time.Duration `yaml:"timeout" default:"15s"`
		Retry     struct {
			MaxAttempts int           `yaml:"max_attempts" default:"3" validate:"min=1"`
			BackoffMin  time.Duration `yaml:"backoff_min" default:"500ms"`
			BackoffMax  time.Duration `yaml:"backoff_max" default:"8s"`
		} `yaml:"retry"`
		RateLimit struct {
			Capacity     float64 `yaml:"capacity" default:"5"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"2"`
		} `yaml:"rate_limit"`
	} `yaml:"source"`
	Universe struct {
		StocksFile    string `yaml:"stocks_file" default:"data/stocks.csv"`
		ETFsFile      string `yaml:"etfs_file" default:"data/etfs.csv"`
		OverridesFile string `yaml:"overrides_file" default:"data/overrides.yaml"`
	} `yaml:"universe"`
	Store struct {
		Backend string `yaml:"backend" default:"files" validate:"oneof=files clickhouse"`
		Dir     string `yaml:"dir" default:"data/stocks"`
	} `yaml:"store"`
	ClickHouse struct {
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"equityschema"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"clickhouse"`
	Audit struct {
		Kafka struct {
			Enabled bool     `yaml:"enabled"`
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic" default:"equityschema.run_audit"`
		} `yaml:"kafka"`
	} `yaml:"audit"`
	Metrics struct {
		Enabled     bool   `yaml:"enabled"`
		PushGateway string `yaml:"push_gateway"`
		Job         string `yaml:"job" default:"equityschema"`
	} `yaml:"metrics"`
}

// Load reads and parses a YAML configuration file, applies defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

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

	if v := os.Getenv("EQUITYSCHEMA_SOURCE_URL"); v != "" {
		c.Source.BaseURL = v
	}
	if v := os.Getenv("EQUITYSCHEMA_STORE_DIR"); v != "" {
		c.Store.Dir = v
	}
	if v := os.Getenv("EQUITYSCHEMA_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("EQUITYSCHEMA_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Audit.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Store.Backend == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when store.backend is 'clickhouse'")
	}
	if c.Audit.Kafka.Enabled && len(c.Audit.Kafka.Brokers) == 0 {
		return fmt.Errorf("audit.kafka.brokers cannot be empty when audit.kafka.enabled is true")
	}
	if c.Source.Retry.BackoffMin > c.Source.Retry.BackoffMax {
		return fmt.Errorf("source.retry.backoff_min must not exceed backoff_max")
	}
	return nil
}
