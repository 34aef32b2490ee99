package auth

import (
	"context"
	"time"
)

// LoginResult is returned by a successful handshake
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *User
	Identity  *VerifiedIdentity
}

// Auther runs the mini-app handshake: verify the launch payload, upsert
// the user and issue a session token.
type Auther struct {
	verifier     *InitDataVerifier
	resolver     *IdentityResolver
	tokenService *TokenService
	validator    TokenValidator
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator wires an Auther from configuration. The bot token and
// the session signing key are independent settings.
func NewAuthenticator(store UserStore, cfg Config) *Auther {
	logger := Logger(defLogger{})
	return &Auther{
		verifier: NewInitDataVerifier(
			cfg.GetBotToken(),
			WithMaxAge(cfg.GetInitDataMaxAge()),
			WithVerifierLogger(logger),
		),
		resolver:     NewIdentityResolver(store, logger),
		tokenService: NewTokenServiceFromConfig(cfg, logger),
		logger:       logger,
		activitySink: noopActivitySink{},
	}
}

// NewAutherWith builds an Auther from already configured parts
func NewAutherWith(verifier *InitDataVerifier, resolver *IdentityResolver, tokens *TokenService) *Auther {
	return &Auther{
		verifier:     verifier,
		resolver:     resolver,
		tokenService: tokens,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger == nil {
		return s
	}
	s.logger = logger
	s.verifier.logger = logger
	s.resolver.logger = logger
	s.tokenService.logger = logger
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenValidator sets a custom validator, e.g. a MultiTokenValidator
// accepting a retired key.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.validator = validator
	return s
}

// TokenService returns the TokenService instance used by this Auther
func (s *Auther) TokenService() *TokenService {
	return s.tokenService
}

// TokenValidator returns the validator the guard should use
func (s *Auther) TokenValidator() TokenValidator {
	if s.validator != nil {
		return s.validator
	}
	return s.tokenService
}

// Login verifies initData, upserts the user and returns a session token.
func (s *Auther) Login(ctx context.Context, initData string) (*LoginResult, error) {
	data, err := s.verifier.Verify(initData)
	if err != nil {
		s.logger.Info("login rejected: %v", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, "", map[string]any{
			"reason": TextCode(err),
		})
		return nil, err
	}

	user, identity, err := s.resolver.Resolve(ctx, data)
	if err != nil {
		userID := ""
		if identity != nil {
			userID = identity.ExternalID
		}
		s.logger.Info("login identity resolution failed: %v", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, userID, map[string]any{
			"reason": TextCode(err),
		})
		return nil, err
	}

	token, err := s.tokenService.Generate(identity)
	if err != nil {
		s.logger.Error("login token signing failed: %v", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, identity.ExternalID, map[string]any{
			"reason": TextCodeInternal,
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, identity.ExternalID, map[string]any{
		"user_id": user.ID.String(),
	})

	return &LoginResult{
		Token:     token,
		ExpiresAt: s.tokenService.now().Add(s.tokenService.TTL()),
		User:      user,
		Identity:  identity,
	}, nil
}

// SessionFromToken validates raw and returns its claims
func (s *Auther) SessionFromToken(raw string) (AuthClaims, error) {
	claims, err := s.TokenValidator().Validate(raw)
	if err != nil {
		s.logger.Debug("SessionFromToken validation failed: %v", err)
		return nil, err
	}
	return claims, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}
