package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type AppConfig struct {
	ServiceName    string     `mapstructure:"service_name"`
	Env            string     `mapstructure:"env"`
	LogLevel       string     `mapstructure:"log_level"`
	MetricsPath    string     `mapstructure:"metrics_path"`
	AllowedOrigins []string   `mapstructure:"allowed_origins"`
	HTTP           HTTPConfig `mapstructure:"http"`
}

type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

type RateLimitRedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	Redis       RateLimitRedisConfig
}

type UploadConfig struct {
	Dir     string
	MaxSize int64
}

type Config struct {
	App             AppConfig
	AccessSecret    string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
	DB              DBConfig
	RateLimit       RateLimitConfig
	Upload          UploadConfig
}

func Load() (*Config, error) {
	appCfg, err := loadApp(os.Getenv("GREED_CONFIG"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App:             *appCfg,
		AccessSecret:    envString("GREED_JWT_SECRET", ""),
		RefreshSecret:   envString("GREED_JWT_REFRESH_SECRET", ""),
		AccessTokenTTL:  envDuration("GREED_ACCESS_TOKEN_TTL", 30*time.Minute),
		RefreshTokenTTL: envDuration("GREED_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		BcryptCost:      envInt("GREED_BCRYPT_COST", 12),
		DB: DBConfig{
			Host:     envString("POSTGRES_HOST", "localhost"),
			Port:     envInt("POSTGRES_PORT", 5432),
			Name:     envString("POSTGRES_DB", "greed_advisor"),
			User:     envString("POSTGRES_USER", "greed"),
			Password: envString("POSTGRES_PASSWORD", "greed"),
			SSLMode:  envString("POSTGRES_SSLMODE", "disable"),
		},
		RateLimit: RateLimitConfig{
			MaxRequests: envInt("GREED_RATE_LIMIT_MAX", 100),
			Window:      envDuration("GREED_RATE_LIMIT_WINDOW", 15*time.Minute),
			Redis: RateLimitRedisConfig{
				Addr:     envString("GREED_RATE_LIMIT_REDIS_ADDR", ""),
				Password: envString("GREED_RATE_LIMIT_REDIS_PASSWORD", ""),
				DB:       envInt("GREED_RATE_LIMIT_REDIS_DB", 0),
				Prefix:   envString("GREED_RATE_LIMIT_REDIS_PREFIX", "greed:auth:rl:"),
			},
		},
		Upload: UploadConfig{
			Dir:     envString("GREED_UPLOAD_DIR", "uploads/profile-pictures"),
			MaxSize: int64(envInt("GREED_UPLOAD_MAX_SIZE", 5*1024*1024)),
		},
	}

	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("GREED_JWT_SECRET must be set")
	}
	if cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("GREED_JWT_REFRESH_SECRET must be set")
	}

	return cfg, nil
}

func loadApp(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("GREED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		path = "config.yaml"
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "greed-advisor")
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_path", "/metrics")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "5s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.idle_timeout", "60s")
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
