package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultSessionTTL is the fixed session horizon
const DefaultSessionTTL = 7 * 24 * time.Hour

// TokenService issues and validates session tokens
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithTokenClock overrides time.Now for both issue and validation
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithIssuer sets iss on issued tokens and requires it on validation
func WithIssuer(issuer string) TokenServiceOption {
	return func(ts *TokenService) {
		ts.issuer = issuer
	}
}

// WithAudience sets aud on issued tokens and requires it on validation
func WithAudience(audience ...string) TokenServiceOption {
	return func(ts *TokenService) {
		ts.audience = append(jwt.ClaimStrings(nil), audience...)
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a new TokenService. A zero ttl uses DefaultSessionTTL.
func NewTokenService(signingKey []byte, ttl time.Duration, opts ...TokenServiceOption) *TokenService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	ts := &TokenService{
		signingKey: signingKey,
		ttl:        ttl,
		logger:     defLogger{},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

// NewTokenServiceFromConfig builds a TokenService from Config
func NewTokenServiceFromConfig(cfg Config, logger Logger) *TokenService {
	return NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		WithIssuer(cfg.GetIssuer()),
		WithAudience(cfg.GetAudience()...),
		WithTokenLogger(logger),
	)
}

// TTL returns the session horizon
func (ts *TokenService) TTL() time.Duration {
	return ts.ttl
}

// Generate signs a session token for identity issued now, with a random jti
func (ts *TokenService) Generate(identity Identity) (string, error) {
	claims, err := ts.newClaims(identity, ts.now())
	if err != nil {
		return "", err
	}
	claims.ID = uuid.NewString()
	return ts.SignClaims(claims)
}

// Issue signs a session token for identity at issuedAt. It is deterministic
// for identical inputs.
func (ts *TokenService) Issue(identity Identity, issuedAt time.Time) (string, error) {
	claims, err := ts.newClaims(identity, issuedAt)
	if err != nil {
		return "", err
	}
	return ts.SignClaims(claims)
}

func (ts *TokenService) newClaims(identity Identity, issuedAt time.Time) (*SessionClaims, error) {
	if identity == nil || identity.ID() == "" {
		return nil, goerrors.New("identity is required", goerrors.CategoryBadInput)
	}

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	return &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ts.ttl)),
		},
		UID:         identity.ID(),
		DisplayName: identity.Name(),
	}, nil
}

// SignClaims signs claims with HS256
func (ts *TokenService) SignClaims(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryBadInput)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signedString, nil
}

// Validate parses and validates a token string. Every failure wraps
// ErrInvalidCredential.
func (ts *TokenService) Validate(tokenString string) (AuthClaims, error) {
	claims, err := ts.ValidateSession(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateSession is Validate returning the concrete claims type
func (ts *TokenService) ValidateSession(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, ErrMissingCredential
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		ts.logger.Debug("session token rejected: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.UserID() == "" {
		ts.logger.Error("session token could not be decoded")
		return nil, ErrInvalidCredential
	}

	return claims, nil
}
