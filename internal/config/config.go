package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Redis    RedisConfig
	Realtime RealtimeConfig
	Media    MediaConfig
	Rate     RateConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	URL          string `mapstructure:"url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type RealtimeConfig struct {
	PublishWorkers int      `mapstructure:"publish_workers"`
	PublishQueue   int      `mapstructure:"publish_queue"`
	SendBuffer     int      `mapstructure:"send_buffer"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type MediaConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	CloudName  string `mapstructure:"cloud_name"`
	APISecret  string `mapstructure:"api_secret"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

type RateConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// EnvOverrides are deploy-time settings that must win over the config file,
// secrets above all.
type EnvOverrides struct {
	DatabasePassword string `envconfig:"DB_PASSWORD"`
	JWTSecret        string `envconfig:"JWT_SECRET"`
	RedisURL         string `envconfig:"REDIS_URL"`
	MediaAPISecret   string `envconfig:"MEDIA_API_SECRET"`
}

func (c MediaConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var overrides EnvOverrides
	if err := envconfig.Process("clubapi", &overrides); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	config.applyOverrides(overrides)

	return &config, nil
}

func (c *Config) applyOverrides(o EnvOverrides) {
	if o.DatabasePassword != "" {
		c.Database.Password = o.DatabasePassword
	}
	if o.JWTSecret != "" {
		c.JWT.Secret = o.JWTSecret
	}
	if o.RedisURL != "" {
		c.Redis.URL = o.RedisURL
	}
	if o.MediaAPISecret != "" {
		c.Media.APISecret = o.MediaAPISecret
	}
}
