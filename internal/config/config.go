package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Access store backends.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreStatic   = "static"
)

type Config struct {
	AppPort string `mapstructure:"app_port"`
	BaseURL string `mapstructure:"base_url"`

	Log      LogConfig      `mapstructure:"log"`
	Session  SessionConfig  `mapstructure:"session"`
	Google   GoogleConfig   `mapstructure:"google"`
	Keycloak KeycloakConfig `mapstructure:"keycloak"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`

	Access     AccessConfig     `mapstructure:"access"`
	Generation GenerationConfig `mapstructure:"generation"`
	APIKey     APIKeyConfig     `mapstructure:"apikey"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SessionConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
}

type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

// KeycloakConfig is optional; the provider is registered only when Issuer is set.
type KeycloakConfig struct {
	Issuer        string `mapstructure:"issuer"`
	ClientID      string `mapstructure:"client_id"`
	RedirectURL   string `mapstructure:"redirect_url"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// AccessConfig selects where authorization records live and how unknown
// identities are treated.
type AccessConfig struct {
	Store         string        `mapstructure:"store"`
	AutoRegister  bool          `mapstructure:"auto_register"`
	AllowedEmails []string      `mapstructure:"allowed_emails"`
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
	CacheSize     int           `mapstructure:"cache_size"`
}

type GenerationConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type APIKeyConfig struct {
	// Secret is a hex encoded 32 byte key used to seal stored API keys.
	Secret string `mapstructure:"secret"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_port", "8080")
	v.SetDefault("base_url", "http://localhost:8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.secure_cookie", true)

	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.redirect_url", "")

	v.SetDefault("keycloak.issuer", "")
	v.SetDefault("keycloak.client_id", "")
	v.SetDefault("keycloak.redirect_url", "")
	v.SetDefault("keycloak.public_base_url", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.dsn", "")

	v.SetDefault("access.store", StorePostgres)
	v.SetDefault("access.auto_register", true)
	v.SetDefault("access.allowed_emails", []string{})
	v.SetDefault("access.lookup_timeout", 5*time.Second)
	v.SetDefault("access.cache_size", 1024)

	v.SetDefault("generation.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("generation.model", "gemini-2.0-flash")
	v.SetDefault("generation.timeout", 60*time.Second)
	v.SetDefault("generation.max_retries", 2)

	v.SetDefault("apikey.secret", "")
}

// Load reads configuration from COPYCRAFT_* environment variables and, when
// configFile is not empty, from a YAML file. Environment wins over the file.
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COPYCRAFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	// env lists arrive as a single comma separated string
	cfg.Access.AllowedEmails = splitList(cfg.Access.AllowedEmails)

	return cfg, nil
}

// ValidateServe checks the fields required to run the HTTP server.
func (c Config) ValidateServe() error {
	var errs []error

	if c.AppPort == "" {
		errs = append(errs, errors.New("app_port is required"))
	}
	if c.Google.ClientID == "" || c.Google.ClientSecret == "" || c.Google.RedirectURL == "" {
		errs = append(errs, errors.New("google.client_id, google.client_secret and google.redirect_url are required"))
	}
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	if c.APIKey.Secret == "" {
		errs = append(errs, errors.New("apikey.secret is required"))
	}

	return errors.Join(append(errs, c.ValidateAccess())...)
}

// ValidateAccess checks the fields required by the selected access store.
func (c Config) ValidateAccess() error {
	switch c.Access.Store {
	case StorePostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres access store")
		}
	case StoreRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis access store")
		}
	case StoreStatic:
		if len(c.Access.AllowedEmails) == 0 {
			return errors.New("access.allowed_emails is required for the static access store")
		}
	default:
		return fmt.Errorf("unknown access.store %q", c.Access.Store)
	}
	return nil
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
