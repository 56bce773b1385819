package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Gateways GatewaysConfig `mapstructure:"gateways"`
	Cron     CronConfig     `mapstructure:"cron"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the pgx pool
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// GatewayConfig configures one virtual POS endpoint
type GatewayConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	MerchantID string        `mapstructure:"merchant_id"`
	APIKey     string        `mapstructure:"api_key"`
	SecretKey  string        `mapstructure:"secret_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// GatewaysConfig holds both processors plus routing defaults
type GatewaysConfig struct {
	Primary       string        `mapstructure:"primary"`
	TurkiyeFinans GatewayConfig `mapstructure:"turkiye_finans"`
	Albaraka      GatewayConfig `mapstructure:"albaraka"`
	BinCacheTTL   time.Duration `mapstructure:"bin_cache_ttl"`
}

// CronConfig configures the internal maintenance endpoints
type CronConfig struct {
	Secret          string        `mapstructure:"secret"`
	ChargeBatchSize int           `mapstructure:"charge_batch_size"`
	StalePendingAge time.Duration `mapstructure:"stale_pending_age"`
}

// LoggerConfig selects the logger profile
type LoggerConfig struct {
	Development bool `mapstructure:"development"`
}

// Load reads configuration from config.yaml and the environment. Environment
// variables use the DONATION_ prefix with underscores, e.g.
// DONATION_DATABASE_URL overrides database.url.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("DONATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; env vars and defaults carry production
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is required")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 20*time.Second)

	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", time.Hour)

	v.SetDefault("gateways.primary", "turkiye_finans")
	v.SetDefault("gateways.bin_cache_ttl", 5*time.Minute)
	v.SetDefault("gateways.turkiye_finans.timeout", 30*time.Second)
	v.SetDefault("gateways.albaraka.timeout", 30*time.Second)

	v.SetDefault("cron.charge_batch_size", 100)
	v.SetDefault("cron.stale_pending_age", time.Hour)

	v.SetDefault("logger.development", false)
}
