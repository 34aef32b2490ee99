package auth

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes bound into a session token
type Identity interface {
	ID() string
	Name() string
}

// Config holds auth options
type Config interface {
	GetBotToken() string
	GetInitDataMaxAge() time.Duration
	GetSigningKey() string
	GetContextKey() string
	GetTokenExpiration() time.Duration
	GetTokenLookup() string
	GetAuthScheme() string
	GetCookieName() string
	GetIssuer() string
	GetAudience() []string
}

// UserStore is the persistence surface the handshake needs
type UserStore interface {
	InsertIfAbsent(ctx context.Context, record *User) (*User, error)
	GetByExternalID(ctx context.Context, externalID string) (*User, error)
}

// ZerologLogger adapts a zerolog.Logger to Logger
type ZerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger wraps l
func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{l: l}
}

func (z *ZerologLogger) Debug(format string, args ...any) {
	z.l.Debug().Msgf(format, args...)
}

func (z *ZerologLogger) Info(format string, args ...any) {
	z.l.Info().Msgf(format, args...)
}

func (z *ZerologLogger) Warn(format string, args ...any) {
	z.l.Warn().Msgf(format, args...)
}

func (z *ZerologLogger) Error(format string, args ...any) {
	z.l.Error().Msgf(format, args...)
}

var defaultZerolog = zerolog.New(os.Stdout).With().
	Timestamp().
	Str("component", "auth").
	Logger()

// DefaultLogger returns the package stdout logger
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Debug(format string, args ...any) {
	defaultZerolog.Debug().Msgf(format, args...)
}

func (d defLogger) Info(format string, args ...any) {
	defaultZerolog.Info().Msgf(format, args...)
}

func (d defLogger) Warn(format string, args ...any) {
	defaultZerolog.Warn().Msgf(format, args...)
}

func (d defLogger) Error(format string, args ...any) {
	defaultZerolog.Error().Msgf(format, args...)
}
