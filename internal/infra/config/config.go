package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Mongo     MongoSettings     `mapstructure:"mongo"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Session   SessionSettings   `mapstructure:"session"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Identity  IdentitySettings  `mapstructure:"identity"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MongoSettings configures the document database connection.
type MongoSettings struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RedisSettings configures the shared counter store connection and TLS.
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
}

// KafkaSettings configures the session event producer. An empty broker list
// selects the logging stub publisher.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// SessionSettings configures lifecycle timeouts and abuse heuristics.
type SessionSettings struct {
	AbsoluteTimeout            time.Duration `mapstructure:"absolute_timeout"`
	IdleTimeout                time.Duration `mapstructure:"idle_timeout"`
	MaxConcurrentSessions      int           `mapstructure:"max_concurrent_sessions"`
	SuspiciousRequestThreshold float64       `mapstructure:"suspicious_request_threshold"`
	StoreTimeout               time.Duration `mapstructure:"store_timeout"`
	CleanupInterval            time.Duration `mapstructure:"cleanup_interval"`
	CleanupRetention           time.Duration `mapstructure:"cleanup_retention"`
}

// RateLimitSettings configures fixed-window quotas. Limits apply per
// (client IP, endpoint) pair; endpoints never share a budget.
type RateLimitSettings struct {
	Window          time.Duration `mapstructure:"window"`
	DefaultLimit    int           `mapstructure:"default_limit"`
	LoginLimit      int           `mapstructure:"login_limit"`
	StoreTimeout    time.Duration `mapstructure:"store_timeout"`
	FallbackMaxKeys int           `mapstructure:"fallback_max_keys"`
}

// IdentitySettings configures verification of the upstream identity
// provider's tokens presented at login.
type IdentitySettings struct {
	TokenSecret string `mapstructure:"token_secret"`
	Issuer      string `mapstructure:"issuer"`
}

type TelemetrySettings struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTOAUTHOR")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"mongo.uri",
		"mongo.database",
		"mongo.connect_timeout",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"kafka.brokers",
		"kafka.topic_prefix",
		"session.absolute_timeout",
		"session.idle_timeout",
		"session.max_concurrent_sessions",
		"session.suspicious_request_threshold",
		"session.store_timeout",
		"session.cleanup_interval",
		"session.cleanup_retention",
		"rate_limit.window",
		"rate_limit.default_limit",
		"rate_limit.login_limit",
		"rate_limit.store_timeout",
		"rate_limit.fallback_max_keys",
		"identity.token_secret",
		"identity.issuer",
		"telemetry.tracing_enabled",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "auto-author-api")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "auto_author")
	v.SetDefault("mongo.connect_timeout", "5s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "authoring")

	v.SetDefault("session.absolute_timeout", "12h")
	v.SetDefault("session.idle_timeout", "30m")
	v.SetDefault("session.max_concurrent_sessions", 5)
	v.SetDefault("session.suspicious_request_threshold", 100.0)
	v.SetDefault("session.store_timeout", "3s")
	v.SetDefault("session.cleanup_interval", "1h")
	v.SetDefault("session.cleanup_retention", "24h")

	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("rate_limit.default_limit", 120)
	v.SetDefault("rate_limit.login_limit", 10)
	v.SetDefault("rate_limit.store_timeout", "500ms")
	v.SetDefault("rate_limit.fallback_max_keys", 10000)

	v.SetDefault("identity.token_secret", "")
	v.SetDefault("identity.issuer", "auto-author-idp")

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "auto-author-api")
	v.SetDefault("telemetry.sampling_rate", 1.0)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}
