// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Sync backends.
const (
	SyncLocal = "local"
	SyncRedis = "redis"
	SyncNATS  = "nats"
)

// Config is everything the server and historian read from the environment.
type Config struct {
	Port     string `env:"PORT"      envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`
	SyncBackend  string `env:"SYNC_BACKEND"  envDefault:"local"`

	// DatabaseURL wins over the discrete POSTGRES_* settings when set.
	DatabaseURL      string `env:"DATABASE_URL"`
	PostgresUser     string `env:"POSTGRES_USER"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresHost     string `env:"PG_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"PG_PORT"     envDefault:"5432"`
	PostgresDatabase string `env:"PG_DATABASE" envDefault:"playtogether"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"playtogether.db"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB   int    `env:"REDIS_DB"   envDefault:"0"`
	NATSURL   string `env:"NATS_URL"   envDefault:"nats://localhost:4222"`

	HistoryEnabled     bool   `env:"HISTORY_ENABLED"      envDefault:"false"`
	HistorianQueueName string `env:"HISTORIAN_QUEUE_NAME" envDefault:"playtogether_moves"`
	HistorianBatchSize int    `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	HistorianFlushMs   int    `env:"HISTORIAN_FLUSH_MS"   envDefault:"500"`

	WaitingSessionTTL time.Duration `env:"WAITING_SESSION_TTL" envDefault:"30m"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL"      envDefault:"1m"`

	// TokenExpireTime is parsed by auth.ParseTTL; "never" disables expiry.
	TokenExpireTime string   `env:"TOKEN_EXPIRE_TIME" envDefault:"never"`
	AllowedOrigins  []string `env:"ALLOWED_ORIGINS"   envDefault:"*" envSeparator:","`

	// Raw ed25519 key files. When unset a key pair is generated at startup and tokens do not
	// survive a restart.
	JWTPrivateKeyPath string `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPublicKeyPath  string `env:"JWT_PUBLIC_KEY_PATH"`

	Personalization Personalization
}

// Personalization is the copy shown on the landing page.
type Personalization struct {
	HonoreeName string `env:"HONOREE_NAME" envDefault:"My Love" json:"honoree_name"`
	PartnerName string `env:"PARTNER_NAME" envDefault:"Me"      json:"partner_name"`
	Greeting    string `env:"GREETING"     envDefault:"Happy Valentine's Day" json:"greeting"`
}

// Load reads the configuration from the process environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown backends and nonsensical durations.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory, StorePostgres, StoreSQLite:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.SyncBackend {
	case SyncLocal, SyncRedis, SyncNATS:
	default:
		return fmt.Errorf("unknown SYNC_BACKEND %q", c.SyncBackend)
	}
	if c.WaitingSessionTTL < 0 || c.SweepInterval < 0 {
		return fmt.Errorf("WAITING_SESSION_TTL and SWEEP_INTERVAL must not be negative")
	}
	if c.HistorianBatchSize <= 0 {
		return fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive")
	}
	if (c.JWTPrivateKeyPath == "") != (c.JWTPublicKeyPath == "") {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH must be set together")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// PostgresURL returns DATABASE_URL, or a URL composed from the discrete settings.
func (c Config) PostgresURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   c.PostgresHost + ":" + c.PostgresPort,
		Path:   "/" + c.PostgresDatabase,
	}
	if c.PostgresUser != "" {
		u.User = url.UserPassword(c.PostgresUser, c.PostgresPassword)
	}
	return u.String()
}

// NeedsRedis reports whether any component is configured to talk to Redis.
func (c Config) NeedsRedis() bool {
	return c.SyncBackend == SyncRedis || c.HistoryEnabled
}

// Logger builds the process logger at the configured level.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

// OriginPatterns returns the websocket origin patterns, trimmed of blanks.
func (c Config) OriginPatterns() []string {
	out := make([]string, 0, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
