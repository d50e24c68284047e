package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Webhooks WebhooksConfig `mapstructure:"webhooks"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type WebhooksConfig struct {
	// DeliveryTimeout bounds the outbound POST to a subscriber endpoint.
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	// MaxResponseBody caps how much of the subscriber response is retained
	// on the delivery record, in bytes.
	MaxResponseBody int `mapstructure:"max_response_body"`
}

type SweeperConfig struct {
	// Schedule is a cron expression for periodic sweeps. Empty means the
	// sweeper binary runs a single sweep and exits.
	Schedule  string `mapstructure:"schedule"`
	BatchSize int    `mapstructure:"batch_size"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("webhooks.delivery_timeout", 10*time.Second)
	viper.SetDefault("webhooks.user_agent", "Courierly-Webhooks/1.0")
	viper.SetDefault("webhooks.max_response_body", 1000)
	viper.SetDefault("sweeper.batch_size", 100)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
