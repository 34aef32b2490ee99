package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-miniapp-auth/middleware/jwtware"
)

// Guard gates protected calls on a valid session token taken from the
// Authorization header or, failing that, the session cookie.
type Guard struct {
	validator   TokenValidator
	contextKey  string
	tokenLookup string
	authScheme  string
	logger      Logger
}

// GuardOption configures a Guard
type GuardOption func(*Guard)

// WithGuardContextKey sets the fiber Locals key for claims
func WithGuardContextKey(key string) GuardOption {
	return func(g *Guard) {
		if key != "" {
			g.contextKey = key
		}
	}
}

// WithGuardTokenLookup overrides the extractor list
func WithGuardTokenLookup(lookup string) GuardOption {
	return func(g *Guard) {
		if lookup != "" {
			g.tokenLookup = lookup
		}
	}
}

// WithGuardAuthScheme overrides the header scheme, Bearer by default
func WithGuardAuthScheme(scheme string) GuardOption {
	return func(g *Guard) {
		if scheme != "" {
			g.authScheme = scheme
		}
	}
}

// WithGuardLogger sets the logger
func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGuard returns a guard validating tokens with validator
func NewGuard(validator TokenValidator, opts ...GuardOption) *Guard {
	g := &Guard{
		validator:   validator,
		contextKey:  DefaultContextKey,
		tokenLookup: TokenLookup(DefaultCookieName),
		authScheme:  "Bearer",
		logger:      defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// NewGuardFromConfig builds a Guard from Config
func NewGuardFromConfig(validator TokenValidator, cfg Config, logger Logger) *Guard {
	lookup := cfg.GetTokenLookup()
	if lookup == "" {
		lookup = TokenLookup(cfg.GetCookieName())
	}
	return NewGuard(validator,
		WithGuardContextKey(cfg.GetContextKey()),
		WithGuardTokenLookup(lookup),
		WithGuardAuthScheme(cfg.GetAuthScheme()),
		WithGuardLogger(logger),
	)
}

// TokenLookup returns the default extractor list for cookieName
func TokenLookup(cookieName string) string {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return "header:" + fiber.HeaderAuthorization + ",cookie:" + cookieName
}

// Authenticate extracts and validates the credential carried by c. It
// returns ErrMissingCredential or ErrInvalidCredential on failure and does
// not touch the user store.
func (g *Guard) Authenticate(c *fiber.Ctx) (AuthClaims, error) {
	raw, err := jwtware.ExtractRawToken(c, jwtware.GetExtractors(g.tokenLookup, g.authScheme))
	if err != nil {
		return nil, ErrMissingCredential
	}
	return g.validate(raw)
}

func (g *Guard) validate(raw string) (AuthClaims, error) {
	claims, err := g.validator.Validate(raw)
	if err != nil {
		if errors.Is(err, ErrInvalidCredential) || errors.Is(err, ErrMissingCredential) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	return claims, nil
}

// Middleware returns the fiber handler that rejects unauthenticated calls
// and stores the claims in Locals and in the request context.
func (g *Guard) Middleware() fiber.Handler {
	return jwtware.New(jwtware.Config{
		ContextKey:  g.contextKey,
		TokenLookup: g.tokenLookup,
		AuthScheme:  g.authScheme,
		TokenValidator: jwtware.TokenValidatorFunc(func(raw string) (jwtware.AuthClaims, error) {
			claims, err := g.validate(raw)
			if err != nil {
				return nil, err
			}
			return claims, nil
		}),
		ErrorHandler: g.errorHandler,
		ContextEnricher: func(ctx context.Context, claims jwtware.AuthClaims) context.Context {
			if ac, ok := claims.(AuthClaims); ok {
				return WithClaimsContext(ctx, ac)
			}
			return ctx
		},
	})
}

func (g *Guard) errorHandler(c *fiber.Ctx, err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		err = ErrMissingCredential
	}

	if !errors.Is(err, ErrMissingCredential) && !errors.Is(err, ErrInvalidCredential) {
		err = fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	g.logger.Debug("guard rejected %s %s: %v", c.Method(), c.Path(), err)

	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: TextCode(err)})
}
