// Package config loads process configuration for the conference commands.
//
// Values come from three layers, later layers winning: built-in defaults, an
// optional YAML file named by CONFIG_FILE, and environment variables. Outside
// production a .env file in the working directory is loaded into the
// environment first.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jacentio/conference/notify"
	"github.com/jacentio/conference/store"
)

// Config holds all configuration for the application.
type Config struct {
	Environment string `yaml:"environment"`

	AWS struct {
		Region          string `yaml:"region"`
		Profile         string `yaml:"profile"`
		AccessKeyID     string `yaml:"access_key_id"`
		SecretAccessKey string `yaml:"secret_access_key"`
	} `yaml:"aws"`

	DynamoDB struct {
		Endpoint    string `yaml:"endpoint"`
		Table       string `yaml:"table"`
		KindIndex   string `yaml:"kind_index"`
		NumShards   int    `yaml:"num_shards"`
		MaxAttempts int    `yaml:"max_attempts"`
	} `yaml:"dynamodb"`

	Redis struct {
		Addr   string `yaml:"addr"`
		Prefix string `yaml:"prefix"`
	} `yaml:"redis"`

	JWTSecret string `yaml:"jwt_secret"`

	// MetricsAddr, if set, is where long-running commands serve /metrics.
	MetricsAddr string `yaml:"metrics_addr"`

	Mail struct {
		Provider    string `yaml:"provider"`
		FromAddress string `yaml:"from_address"`
		FromName    string `yaml:"from_name"`
		QueueSize   int    `yaml:"queue_size"`
	} `yaml:"mail"`

	// AnnouncementInterval is how often cmd/announcer recomputes the
	// nearly-sold-out announcement.
	AnnouncementInterval time.Duration `yaml:"announcement_interval"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	cfg := &Config{Environment: "development"}
	sc := store.DefaultConfig()
	cfg.DynamoDB.Table = sc.Table
	cfg.DynamoDB.KindIndex = sc.KindIndex
	cfg.DynamoDB.NumShards = sc.NumShards
	cfg.DynamoDB.MaxAttempts = sc.MaxAttempts
	cfg.Redis.Prefix = "conference:"
	cfg.Mail.Provider = "noop"
	cfg.Mail.FromName = "Conference Central"
	cfg.Mail.QueueSize = 100
	cfg.AnnouncementInterval = time.Minute
	return cfg
}

// Load loads configuration from CONFIG_FILE and environment variables.
// It attempts to load from .env file if not in production.
func Load() (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// In production the environment is authoritative and .env may not exist.
	if env != "production" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			slog.Warn(".env file couldn't be loaded", "error", err)
		}
	}

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.Environment = env
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.AWS.Region, "AWS_REGION")
	setString(&c.AWS.Profile, "AWS_PROFILE")
	setString(&c.AWS.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&c.AWS.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")

	setString(&c.DynamoDB.Endpoint, "DYNAMODB_ENDPOINT")
	setString(&c.DynamoDB.Table, "DYNAMODB_TABLE")
	setString(&c.DynamoDB.KindIndex, "DYNAMODB_KIND_INDEX")
	if err := setInt(&c.DynamoDB.NumShards, "DYNAMODB_NUM_SHARDS"); err != nil {
		return err
	}
	if err := setInt(&c.DynamoDB.MaxAttempts, "DYNAMODB_MAX_ATTEMPTS"); err != nil {
		return err
	}

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Prefix, "REDIS_PREFIX")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.MetricsAddr, "METRICS_ADDR")

	setString(&c.Mail.Provider, "EMAIL_PROVIDER")
	setString(&c.Mail.FromAddress, "EMAIL_FROM_ADDRESS")
	setString(&c.Mail.FromName, "EMAIL_FROM_NAME")
	if err := setInt(&c.Mail.QueueSize, "EMAIL_QUEUE_SIZE"); err != nil {
		return err
	}

	if s := os.Getenv("ANNOUNCEMENT_INTERVAL"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("ANNOUNCEMENT_INTERVAL: %w", err)
		}
		c.AnnouncementInterval = d
	}
	return nil
}

func setString(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func setInt(dst *int, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

// IsProduction reports whether the process runs with GO_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Store returns the entity store configuration. The observer is left for
// the caller to attach.
func (c *Config) Store() store.Config {
	sc := store.DefaultConfig()
	sc.Table = c.DynamoDB.Table
	sc.KindIndex = c.DynamoDB.KindIndex
	sc.NumShards = c.DynamoDB.NumShards
	sc.MaxAttempts = c.DynamoDB.MaxAttempts
	sc.Validate()
	return sc
}

// Client returns the options for store.NewClient.
func (c *Config) Client() store.ClientOptions {
	return store.ClientOptions{
		Region:          c.AWS.Region,
		Profile:         c.AWS.Profile,
		Endpoint:        c.DynamoDB.Endpoint,
		AccessKeyID:     c.AWS.AccessKeyID,
		SecretAccessKey: c.AWS.SecretAccessKey,
	}
}

// Mailer returns the options for notify.NewMailer.
func (c *Config) Mailer() notify.MailerConfig {
	return notify.MailerConfig{
		Provider:        c.Mail.Provider,
		FromAddress:     c.Mail.FromAddress,
		FromName:        c.Mail.FromName,
		Region:          c.AWS.Region,
		AccessKeyID:     c.AWS.AccessKeyID,
		SecretAccessKey: c.AWS.SecretAccessKey,
	}
}
