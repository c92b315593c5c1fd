package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Platform backends.
const (
	PlatformSimulator = "simulator"
	PlatformRedis     = "redis"
)

// DefaultActivationCode is served by the static activation-code provider.
const DefaultActivationCode = "LPA:1$smdp.io$57-262E95-176EZGS"

// Config is the full service configuration.
type Config struct {
	Server       Server       `yaml:"server"`
	Platform     Platform     `yaml:"platform"`
	Redis        RedisConfig  `yaml:"redis"`
	Kafka        KafkaConfig  `yaml:"kafka"`
	Provisioning Provisioning `yaml:"provisioning"`
	Log          Log          `yaml:"log"`
	Events       Events       `yaml:"events"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr string `yaml:"addr"`
}

// Platform selects the eUICC backend.
type Platform struct {
	Kind string `yaml:"kind"`
}

// RedisConfig configures the Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	KeyPrefix    string        `yaml:"key_prefix"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// KafkaConfig configures the event publisher. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Provisioning tunes the download state machine.
type Provisioning struct {
	CallbackTimeout     time.Duration `yaml:"callback_timeout"`
	SwitchAfterDownload bool          `yaml:"switch_after_download"`
	ActivationCode      string        `yaml:"activation_code"`
}

// Log configures the slog handler.
type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Events configures the polling feed.
type Events struct {
	FeedCapacity int `yaml:"feed_capacity"`
}

// DefaultConfig returns every default.
func DefaultConfig() Config {
	return Config{
		Server:   Server{Addr: ":8080"},
		Platform: Platform{Kind: PlatformSimulator},
		Redis: RedisConfig{
			KeyPrefix:    "esims",
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{Topic: "esims.events"},
		Provisioning: Provisioning{
			CallbackTimeout:     5 * time.Minute,
			SwitchAfterDownload: true,
			ActivationCode:      DefaultActivationCode,
		},
		Log:    Log{Level: "info"},
		Events: Events{FeedCapacity: 1024},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by ESIMS_CONFIG, and environment overrides, in that order.
func Load() (Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("ESIMS_CONFIG"); path != "" {
		// #nosec G304
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to unmarshal yaml: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// FromEnv builds a Config from defaults and environment variables only.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Platform.Kind {
	case PlatformSimulator:
	case PlatformRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis platform")
		}
	default:
		return fmt.Errorf("unknown platform %q", c.Platform.Kind)
	}
	if c.Provisioning.CallbackTimeout <= 0 {
		return fmt.Errorf("callback timeout must be positive")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required when brokers are set")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("ESIMS_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("ESIMS_PLATFORM"); v != "" {
		cfg.Platform.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("REDIS_KEY_PREFIX"); v != "" {
		cfg.Redis.KeyPrefix = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("KAFKA_EVENTS_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("PROVISIONING_CALLBACK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PROVISIONING_CALLBACK_TIMEOUT: %w", err)
		}
		cfg.Provisioning.CallbackTimeout = d
	}
	if v := os.Getenv("PROVISIONING_SWITCH_AFTER_DOWNLOAD"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PROVISIONING_SWITCH_AFTER_DOWNLOAD: %w", err)
		}
		cfg.Provisioning.SwitchAfterDownload = b
	}
	if v := os.Getenv("ACTIVATION_CODE"); v != "" {
		cfg.Provisioning.ActivationCode = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_JSON"); v != "" {
		cfg.Log.JSON = v == "true" || v == "1"
	}
	if v := os.Getenv("EVENT_FEED_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("EVENT_FEED_CAPACITY: %w", err)
		}
		cfg.Events.FeedCapacity = n
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
