package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Gin run modes mirrored here to keep this package free of the gin import.
const (
	ModeDebug   = "debug"
	ModeRelease = "release"
	ModeTest    = "test"
)

// Session backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	Mode    string        `mapstructure:"mode"`
	Port    string        `mapstructure:"port"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Log     LogConfig     `mapstructure:"log"`
	DB      DBConfig      `mapstructure:"db"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Session SessionConfig `mapstructure:"session"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Google  GoogleConfig  `mapstructure:"google"`
}

type HTTPConfig struct {
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

type SessionConfig struct {
	Name            string        `mapstructure:"name"`
	Secret          string        `mapstructure:"secret"`
	Backend         string        `mapstructure:"backend"`
	MaxAge          time.Duration `mapstructure:"max_age"`
	Secure          bool          `mapstructure:"secure"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`

	// Ephemeral is set when Secret was generated at startup.
	Ephemeral bool `mapstructure:"-"`
}

type RedisConfig struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

// GoogleConfig holds OAuth client credentials. The endpoint URLs default to
// Google's and are only overridden for local testing.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	CallbackURL  string `mapstructure:"callback_url"`
	AuthURL      string `mapstructure:"auth_url"`
	TokenURL     string `mapstructure:"token_url"`
	UserInfoURL  string `mapstructure:"userinfo_url"`
}

// Enabled reports whether Google sign-in has credentials configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

var defaults = map[string]any{
	"mode":                     ModeDebug,
	"port":                     "5000",
	"http.read_header_timeout": 10 * time.Second,
	"http.write_timeout":       10 * time.Second,
	"http.idle_timeout":        60 * time.Second,
	"http.shutdown_timeout":    10 * time.Second,
	"log.level":                "info",
	"log.format":               "console",
	"db.path":                  "secrets.db",
	"auth.bcrypt_cost":         10,
	"session.name":             "secrets_session",
	"session.secret":           "",
	"session.backend":          BackendSQLite,
	"session.max_age":          24 * time.Hour,
	"session.secure":           false,
	"session.cleanup_interval": 10 * time.Minute,
	"redis.url":                "redis://127.0.0.1:6379/0",
	"redis.prefix":             "session:",
	"google.client_id":         "",
	"google.client_secret":     "",
	"google.callback_url":      "http://localhost:5000/auth/google/secrets",
	"google.auth_url":          "",
	"google.token_url":         "",
	"google.userinfo_url":      "",
}

// Load reads configs/<name>.yml from the given directories, applies
// environment overrides (session.secret -> SESSION_SECRET) and validates the
// result. A .env file in the working directory is loaded first if present.
func Load(name string, paths ...string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings. Outside release mode a missing session
// secret is replaced by a random one; sessions then do not survive restarts.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeDebug, ModeRelease, ModeTest:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}

	switch c.Session.Backend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown session.backend %q", c.Session.Backend)
	}

	if c.Session.MaxAge <= 0 {
		return errors.New("session.max_age must be positive")
	}

	if c.Session.Secret == "" {
		if c.Mode == ModeRelease {
			return errors.New("SESSION_SECRET is required in release mode")
		}
		secret, err := randomSecret()
		if err != nil {
			return fmt.Errorf("generate session secret: %w", err)
		}
		c.Session.Secret = secret
		c.Session.Ephemeral = true
	}

	if c.Mode == ModeRelease && !c.Session.Secure {
		return errors.New("session.secure must be enabled in release mode")
	}
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
