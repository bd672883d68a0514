package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Training  TrainingConfig  `mapstructure:"training"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	PredictPerMin   int `mapstructure:"predict_per_min"`
	BatchPerMin     int `mapstructure:"batch_per_min"`
	BurstMultiplier int `mapstructure:"burst_multiplier"`
}

type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

type TrainingConfig struct {
	TickMs        int `mapstructure:"tick_ms"`
	StaleAfterMin int `mapstructure:"stale_after_min"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from config.yaml (if present), a .env file, and
// environment variables prefixed LEADSCORE_. Environment wins over file.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEADSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8090")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.data_dir", "./data")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("rate_limit.predict_per_min", 120)
	v.SetDefault("rate_limit.batch_per_min", 20)
	v.SetDefault("rate_limit.burst_multiplier", 2)

	v.SetDefault("cache.ttl_seconds", 300)

	v.SetDefault("training.tick_ms", 500)
	v.SetDefault("training.stale_after_min", 60)

	v.SetDefault("logging.level", "info")
}

func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if cfg.Database.DataDir == "" {
		return fmt.Errorf("database.data_dir is required")
	}
	if cfg.RateLimit.PredictPerMin <= 0 {
		return fmt.Errorf("rate_limit.predict_per_min must be positive")
	}
	if cfg.RateLimit.BatchPerMin <= 0 {
		return fmt.Errorf("rate_limit.batch_per_min must be positive")
	}
	if cfg.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be positive")
	}
	if cfg.Training.TickMs <= 0 {
		return fmt.Errorf("training.tick_ms must be positive")
	}
	return nil
}

// CacheTTL returns the cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// TrainingTick returns the simulated training step interval.
func (c *Config) TrainingTick() time.Duration {
	return time.Duration(c.Training.TickMs) * time.Millisecond
}

// StaleJobAge returns how old a running job may be before the janitor fails it.
func (c *Config) StaleJobAge() time.Duration {
	return time.Duration(c.Training.StaleAfterMin) * time.Minute
}
