// Package config loads the server settings from flags, environment
// variables and an optional plain config file.
//
// Environment variables mirror flag names: --bot-token is BOT_TOKEN,
// --jwt-secret is JWT_SECRET, --database-url is DATABASE_URL and so on.
package config

import (
	"flag"
	"net"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	auth "github.com/goliatone/go-miniapp-auth"
	"github.com/peterbourgon/ff/v3"
)

const (
	DefaultPort           = 8080
	DefaultDatabaseURL    = "./data/app.db"
	DefaultInitDataMaxAge = 24 * time.Hour
	DefaultUploadDir      = "uploads"
)

// Config holds runtime settings. Secrets are excluded from JSON so the
// config can be dumped safely.
type Config struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	DatabaseURL     string        `json:"database_url"`
	BotToken        string        `json:"-"`
	JWTSecret       string        `json:"-"`
	JWTSecretPrev   string        `json:"-"`
	InitDataMaxAge  time.Duration `json:"init_data_max_age"`
	Issuer          string        `json:"issuer,omitempty"`
	Audience        string        `json:"audience,omitempty"`
	CookieName      string        `json:"cookie_name"`
	CookieSecure    bool          `json:"cookie_secure"`
	ContextKey      string        `json:"context_key"`
	TokenLookup     string        `json:"token_lookup,omitempty"`
	AuthScheme      string        `json:"auth_scheme"`
	UploadDir       string        `json:"upload_dir"`
	LogLevel        string        `json:"log_level"`
	LogPretty       bool          `json:"log_pretty"`
}

// RegisterFlags binds every setting to fs and returns the target Config
func RegisterFlags(fs *flag.FlagSet) *Config {
	c := &Config{}
	fs.StringVar(&c.Host, "host", "", "interface to listen on")
	fs.IntVar(&c.Port, "port", DefaultPort, "port to listen on")
	fs.StringVar(&c.DatabaseURL, "database-url", DefaultDatabaseURL, "sqlite database path or DSN")
	fs.StringVar(&c.BotToken, "bot-token", "", "bot token used to verify mini-app init data")
	fs.StringVar(&c.JWTSecret, "jwt-secret", "", "secret used to sign session tokens")
	fs.StringVar(&c.JWTSecretPrev, "jwt-secret-previous", "", "retired session secret still accepted on validation")
	fs.DurationVar(&c.InitDataMaxAge, "init-data-max-age", DefaultInitDataMaxAge, "max age of init data auth_date, 0 disables the check")
	fs.StringVar(&c.Issuer, "issuer", "", "session token issuer")
	fs.StringVar(&c.Audience, "audience", "", "comma separated session token audience")
	fs.StringVar(&c.CookieName, "cookie-name", "auth", "session cookie name")
	fs.BoolVar(&c.CookieSecure, "cookie-secure", false, "mark the session cookie Secure")
	fs.StringVar(&c.ContextKey, "context-key", "user", "request local key for session claims")
	fs.StringVar(&c.TokenLookup, "token-lookup", "", "token extractors, defaults to header:Authorization,cookie:<cookie-name>")
	fs.StringVar(&c.AuthScheme, "auth-scheme", "Bearer", "Authorization header scheme")
	fs.StringVar(&c.UploadDir, "upload-dir", DefaultUploadDir, "directory for uploaded import files")
	fs.StringVar(&c.LogLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	fs.BoolVar(&c.LogPretty, "log-pretty", false, "human readable console logs")
	return c
}

// Options returns the ff options used to resolve flags
func Options() []ff.Option {
	return []ff.Option{
		ff.WithEnvVarNoPrefix(),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithAllowMissingConfigFile(true),
	}
}

// Load parses args and the environment into a validated Config
func Load(name string, args []string) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c := RegisterFlags(fs)
	fs.String("config", "", "config file (optional)")

	if err := ff.Parse(fs, args, Options()...); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.DatabaseURL, validation.Required),
		validation.Field(&c.BotToken, validation.Required),
		validation.Field(&c.JWTSecret, validation.Required),
		validation.Field(&c.InitDataMaxAge, validation.Min(time.Duration(0))),
		validation.Field(&c.CookieName, validation.Required),
		validation.Field(&c.LogLevel, validation.In("trace", "debug", "info", "warn", "error")),
	)
}

// Addr returns host:port
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) GetBotToken() string {
	return c.BotToken
}

func (c *Config) GetInitDataMaxAge() time.Duration {
	return c.InitDataMaxAge
}

func (c *Config) GetSigningKey() string {
	return c.JWTSecret
}

func (c *Config) GetContextKey() string {
	return c.ContextKey
}

// GetTokenExpiration returns the fixed session horizon
func (c *Config) GetTokenExpiration() time.Duration {
	return auth.DefaultSessionTTL
}

// GetPreviousSigningKey returns the retired session secret, if any
func (c *Config) GetPreviousSigningKey() string {
	return c.JWTSecretPrev
}

func (c *Config) GetTokenLookup() string {
	return c.TokenLookup
}

func (c *Config) GetAuthScheme() string {
	return c.AuthScheme
}

func (c *Config) GetCookieName() string {
	return c.CookieName
}

func (c *Config) GetIssuer() string {
	return c.Issuer
}

func (c *Config) GetAudience() []string {
	if strings.TrimSpace(c.Audience) == "" {
		return nil
	}
	out := []string{}
	for _, aud := range strings.Split(c.Audience, ",") {
		if aud = strings.TrimSpace(aud); aud != "" {
			out = append(out, aud)
		}
	}
	return out
}
