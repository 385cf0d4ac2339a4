package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort      string `mapstructure:"APP_PORT"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`
	Env          string `mapstructure:"ENV"`
	JWTSecret    string `mapstructure:"JWT_SECRET"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisAlertDB  int    `mapstructure:"REDIS_ALERT_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Push notifications. Empty disables the push channel.
	FirebaseCredentialsPath string `mapstructure:"FIREBASE_CREDENTIALS_PATH"`

	// Booking engine.
	AdapterTimeout      time.Duration `mapstructure:"ADAPTER_TIMEOUT"`
	RetryBaseDelay      time.Duration `mapstructure:"RETRY_BASE_DELAY"`
	DiscoveryWindowDays int           `mapstructure:"DISCOVERY_WINDOW_DAYS"`
	SlotCacheTTL        time.Duration `mapstructure:"SLOT_CACHE_TTL"`
	PersistTimeout      time.Duration `mapstructure:"PERSIST_TIMEOUT"`

	// Monitoring.
	MonitorDefaultInterval time.Duration `mapstructure:"MONITOR_DEFAULT_INTERVAL"`
	MonitorMaxBackoff      time.Duration `mapstructure:"MONITOR_MAX_BACKOFF"`
	AlertDedupeTTL         time.Duration `mapstructure:"ALERT_DEDUPE_TTL"`

	Adapters []AdapterConfig `mapstructure:"-"`
}

// AdapterConfig describes one booking backend as declared under the
// "adapters" key of config.yaml.
type AdapterConfig struct {
	ID                 string           `mapstructure:"id"`
	Name               string           `mapstructure:"name"`
	Kind               string           `mapstructure:"kind"`
	BaseURL            string           `mapstructure:"baseUrl"`
	APIKey             string           `mapstructure:"apiKey"`
	Reliability        float64          `mapstructure:"reliability"`
	AvgLatency         time.Duration    `mapstructure:"avgLatency"`
	Timeout            time.Duration    `mapstructure:"timeout"`
	RateLimitPerMinute int              `mapstructure:"rateLimitPerMinute"`
	UserAgent          string           `mapstructure:"userAgent"`
	Enabled            bool             `mapstructure:"enabled"`
	LegalConfirmation  bool             `mapstructure:"legalConfirmation"`
	MaxUrgency         string           `mapstructure:"maxUrgency"`
	Pricing            PricingConfig    `mapstructure:"pricing"`
	Coverage           []CoverageConfig `mapstructure:"coverage"`
}

type PricingConfig struct {
	Setup          float64 `mapstructure:"setup"`
	Monthly        float64 `mapstructure:"monthly"`
	PerTransaction float64 `mapstructure:"perTransaction"`
}

type CoverageConfig struct {
	Country   string   `mapstructure:"country"`
	VisaTypes []string `mapstructure:"visaTypes"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "visaflow")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_ALERT_DB", 1)
	viper.SetDefault("REDIS_QUEUE_DB", 2)
	viper.SetDefault("FIREBASE_CREDENTIALS_PATH", "")
	viper.SetDefault("ADAPTER_TIMEOUT", 15*time.Second)
	viper.SetDefault("RETRY_BASE_DELAY", 500*time.Millisecond)
	viper.SetDefault("DISCOVERY_WINDOW_DAYS", 90)
	viper.SetDefault("SLOT_CACHE_TTL", time.Minute)
	viper.SetDefault("PERSIST_TIMEOUT", 3*time.Second)
	viper.SetDefault("MONITOR_DEFAULT_INTERVAL", 10*time.Minute)
	viper.SetDefault("MONITOR_MAX_BACKOFF", 5*time.Minute)
	viper.SetDefault("ALERT_DEDUPE_TTL", 24*time.Hour)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := viper.UnmarshalKey("adapters", &AppConfig.Adapters); err != nil {
		log.Fatalf("Failed to load adapter definitions: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
