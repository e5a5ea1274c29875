package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type Config struct {
	ServerPort      string        `mapstructure:"SERVER_PORT"`
	GinMode         string        `mapstructure:"GIN_MODE"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	LogPretty       bool          `mapstructure:"LOG_PRETTY"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	StorageDriver  string `mapstructure:"STORAGE_DRIVER"`
	MongoURI       string `mapstructure:"MONGO_URI"`
	MongoPublicURL string `mapstructure:"MONGO_PUBLIC_URL"`
	MongoURL       string `mapstructure:"MONGO_URL"`
	MongoDatabase  string `mapstructure:"MONGO_DATABASE"`

	JWTSecret    string        `mapstructure:"JWT_SECRET"`
	JWTExpiresIn time.Duration `mapstructure:"JWT_EXPIRES_IN"`
	AdminEmails  []string      `mapstructure:"ADMIN_EMAILS"`
	CorsOrigins  []string      `mapstructure:"CORS_ORIGINS"`

	RedisAddr      string        `mapstructure:"REDIS_ADDR"`
	CacheTTL       time.Duration `mapstructure:"CACHE_TTL"`
	IdempotencyTTL time.Duration `mapstructure:"IDEMPOTENCY_TTL"`

	KafkaBrokers []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string   `mapstructure:"KAFKA_TOPIC"`

	StrictOrderTransitions bool `mapstructure:"ORDERS_STRICT_TRANSITIONS"`
}

var defaults = map[string]any{
	"SERVER_PORT":               "8080",
	"GIN_MODE":                  "release",
	"LOG_LEVEL":                 "info",
	"LOG_PRETTY":                false,
	"SHUTDOWN_TIMEOUT":          "15s",
	"STORAGE_DRIVER":            DriverMongo,
	"MONGO_URI":                 "",
	"MONGO_PUBLIC_URL":          "",
	"MONGO_URL":                 "",
	"MONGO_DATABASE":            "justmatcha",
	"JWT_SECRET":                "",
	"JWT_EXPIRES_IN":            "24h",
	"ADMIN_EMAILS":              []string{},
	"CORS_ORIGINS":              []string{"http://localhost:5173"},
	"REDIS_ADDR":                "",
	"CACHE_TTL":                 "30s",
	"IDEMPOTENCY_TTL":           "24h",
	"KAFKA_BROKERS":             []string{},
	"KAFKA_TOPIC":               "storefront.orders",
	"ORDERS_STRICT_TRANSITIONS": false,
}

// Load reads defaults, then the optional config file, then the environment.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cf := &Config{}
	if err := v.Unmarshal(cf); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cf.AdminEmails = normalizeList(cf.AdminEmails, true)
	cf.CorsOrigins = normalizeList(cf.CorsOrigins, false)
	cf.KafkaBrokers = normalizeList(cf.KafkaBrokers, false)

	if err := cf.Validate(); err != nil {
		return nil, err
	}
	return cf, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTExpiresIn <= 0 {
		return errors.New("JWT_EXPIRES_IN must be positive")
	}
	switch c.StorageDriver {
	case DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	return nil
}

// MongoConnectionURI picks the first configured URI, falling back to a local server.
func (c *Config) MongoConnectionURI() string {
	for _, uri := range []string{c.MongoURI, c.MongoPublicURL, c.MongoURL} {
		if uri != "" {
			return uri
		}
	}
	return "mongodb://localhost:27017"
}

func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}

func normalizeList(in []string, lower bool) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if lower {
			s = strings.ToLower(s)
		}
		out = append(out, s)
	}
	return out
}
