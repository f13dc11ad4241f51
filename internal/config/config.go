package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type Argon2Config struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

type SecurityConfig struct {
	JWTSecret         string
	JWTTTL            time.Duration
	SessionTTL        time.Duration
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	ResetTokenTTL     time.Duration
	MFAIssuer         string
	BlacklistBackend  string
	SweepSchedule     string
	BackupCodeCost    int
	Argon2            Argon2Config
}

type RateLimitConfig struct {
	LoginPerSecond float64
	LoginBurst     int
}

type AlertsConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type ArchiveConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	PageSize  int
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Security         SecurityConfig
	RateLimit        RateLimitConfig
	Alerts           AlertsConfig
	Archive          ArchiveConfig
	AllowCORSOrigins []string
}

const (
	BlacklistMemory = "memory"
	BlacklistRedis  = "redis"
)

func Load() (*AppConfig, error) {
	// a missing .env is the normal case outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("STOREADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	if c.Security.JWTSecret == "" {
		return errors.New("security.jwtsecret is required")
	}
	if c.Environment == "production" && len(c.Security.JWTSecret) < 32 {
		return errors.New("security.jwtsecret must be at least 32 bytes in production")
	}
	switch c.Security.BlacklistBackend {
	case BlacklistMemory, BlacklistRedis:
	default:
		return fmt.Errorf("security.blacklistbackend %q is not supported", c.Security.BlacklistBackend)
	}
	if c.Security.MaxFailedAttempts <= 0 {
		return errors.New("security.maxfailedattempts must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.dsn", "postgres://postgres@localhost:5432/storeadmin?sslmode=disable")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.jwtttl", "24h")
	v.SetDefault("security.sessionttl", "24h")
	v.SetDefault("security.maxfailedattempts", 5)
	v.SetDefault("security.lockoutduration", "30m")
	v.SetDefault("security.resettokenttl", "1h")
	v.SetDefault("security.mfaissuer", "Store Admin")
	v.SetDefault("security.blacklistbackend", BlacklistMemory)
	v.SetDefault("security.sweepschedule", "0 0 * * * *") // hourly
	v.SetDefault("security.backupcodecost", 10)
	v.SetDefault("security.argon2.time", 3)
	v.SetDefault("security.argon2.memory", 64*1024)
	v.SetDefault("security.argon2.threads", 2)

	v.SetDefault("allowcorsorigins", "")

	v.SetDefault("ratelimit.loginpersecond", 1)
	v.SetDefault("ratelimit.loginburst", 10)

	v.SetDefault("alerts.stream", "security:alerts")
	v.SetDefault("alerts.group", "security-alerts")
	v.SetDefault("alerts.consumer", "alerts-worker-1")
	v.SetDefault("alerts.claiminterval", "1m")

	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.accesskey", "")
	v.SetDefault("archive.secretkey", "")
	v.SetDefault("archive.bucket", "storeadmin-security-logs")
	v.SetDefault("archive.usessl", false)
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.pagesize", 500)
}
