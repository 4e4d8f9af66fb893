package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "DIRECTORY"

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	PolicyBackendPostgres = "postgres"
	PolicyBackendCasbin   = "casbin"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	Storage   StorageSettings   `mapstructure:"storage"`
	Policy    PolicySettings    `mapstructure:"policy"`
	Directory DirectorySettings `mapstructure:"directory"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and key namespaces.
type RedisSettings struct {
	Enabled             bool   `mapstructure:"enabled"`
	Host                string `mapstructure:"host"`
	Port                int    `mapstructure:"port"`
	DB                  int    `mapstructure:"db"`
	Password            string `mapstructure:"password"`
	TLSEnabled          bool   `mapstructure:"tls_enabled"`
	RateLimitPrefix     string `mapstructure:"rate_limit_prefix"`
	AccessRequestPrefix string `mapstructure:"access_request_prefix"`
}

// KafkaSettings configures the event producer. No brokers disables publishing.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// RateLimitSettings configures the sliding window and per-endpoint attempts.
type RateLimitSettings struct {
	WindowDuration      time.Duration `mapstructure:"window_duration"`
	InviteMaxAttempts   int           `mapstructure:"invite_max_attempts"`
	AcceptMaxAttempts   int           `mapstructure:"accept_max_attempts"`
	RegisterMaxAttempts int           `mapstructure:"register_max_attempts"`
}

// Argon2Settings configures Argon2id password hashing parameters.
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type JWTSettings struct {
	KeyDirectory string `mapstructure:"key_directory"`
	Issuer       string `mapstructure:"issuer"`
	Audience     string `mapstructure:"audience"`
}

type TelemetrySettings struct {
	MetricsEnabled bool    `mapstructure:"metrics_enabled"`
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

type StorageSettings struct {
	Driver string `mapstructure:"driver"`
}

type PolicySettings struct {
	Backend string `mapstructure:"backend"`
}

// DirectorySettings tunes the directory service itself.
type DirectorySettings struct {
	InvitationTTL  time.Duration `mapstructure:"invitation_ttl"`
	InviteLinkBase string        `mapstructure:"invite_link_base"`
	ListPageSize   int           `mapstructure:"list_page_size"`
	OwnerRole      string        `mapstructure:"owner_role"`
	ManagingRoles  []string      `mapstructure:"managing_roles"`
}

var envKeys = []string{
	"app.name",
	"app.env",
	"app.host",
	"app.port",
	"app.allowed_origins",
	"postgres.host",
	"postgres.port",
	"postgres.user",
	"postgres.password",
	"postgres.database",
	"postgres.ssl_mode",
	"postgres.max_conns",
	"postgres.min_conns",
	"postgres.max_conn_lifetime",
	"postgres.max_conn_idle_time",
	"postgres.health_check_period",
	"redis.enabled",
	"redis.host",
	"redis.port",
	"redis.db",
	"redis.password",
	"redis.tls_enabled",
	"redis.rate_limit_prefix",
	"redis.access_request_prefix",
	"kafka.brokers",
	"kafka.topic_prefix",
	"kafka.async",
	"jwt.key_directory",
	"jwt.issuer",
	"jwt.audience",
	"telemetry.metrics_enabled",
	"telemetry.tracing_enabled",
	"telemetry.otlp_endpoint",
	"telemetry.service_name",
	"telemetry.sampling_rate",
	"rate_limit.window_duration",
	"rate_limit.invite_max_attempts",
	"rate_limit.accept_max_attempts",
	"rate_limit.register_max_attempts",
	"argon2.memory",
	"argon2.iterations",
	"argon2.parallelism",
	"argon2.salt_length",
	"argon2.key_length",
	"storage.driver",
	"policy.backend",
	"directory.invitation_ttl",
	"directory.invite_link_base",
	"directory.list_page_size",
	"directory.owner_role",
	"directory.managing_roles",
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if err := bindEnvs(v, envKeys); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *AppConfig) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("config: unsupported storage driver %q", c.Storage.Driver)
	}

	switch c.Policy.Backend {
	case PolicyBackendPostgres, PolicyBackendCasbin:
	default:
		return fmt.Errorf("config: unsupported policy backend %q", c.Policy.Backend)
	}
	if c.Policy.Backend == PolicyBackendPostgres && c.Storage.Driver != StorageDriverPostgres {
		return fmt.Errorf("config: policy backend %q requires the postgres storage driver", c.Policy.Backend)
	}

	if c.Directory.InvitationTTL <= 0 {
		return fmt.Errorf("config: directory.invitation_ttl must be positive")
	}
	if c.Directory.ListPageSize <= 0 {
		return fmt.Errorf("config: directory.list_page_size must be positive")
	}
	if strings.TrimSpace(c.Directory.InviteLinkBase) == "" {
		return fmt.Errorf("config: directory.invite_link_base is required")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("config: rate_limit.window_duration must be positive")
	}
	return nil
}

// DSN builds a libpq style connection string.
func (s PostgresSettings) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Database, s.SSLMode,
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "workspace-directory")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "directory")
	v.SetDefault("postgres.password", "directory_password")
	v.SetDefault("postgres.database", "directory")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.rate_limit_prefix", "directory:rate_limit")
	v.SetDefault("redis.access_request_prefix", "directory:access_requests")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "directory")
	v.SetDefault("kafka.async", true)

	v.SetDefault("jwt.key_directory", "./secrets")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.audience", "")

	v.SetDefault("telemetry.metrics_enabled", true)
	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "workspace-directory")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.invite_max_attempts", 20)
	v.SetDefault("rate_limit.accept_max_attempts", 5)
	v.SetDefault("rate_limit.register_max_attempts", 3)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("storage.driver", StorageDriverPostgres)
	v.SetDefault("policy.backend", PolicyBackendPostgres)

	v.SetDefault("directory.invitation_ttl", "24h")
	v.SetDefault("directory.invite_link_base", "http://localhost:3000/auth/join")
	v.SetDefault("directory.list_page_size", 100)
	v.SetDefault("directory.owner_role", "workspace_owner")
	v.SetDefault("directory.managing_roles", []string{"workspace_owner", "tenant_admin", "tenant_manager"})
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
