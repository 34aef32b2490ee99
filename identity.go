package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// VerifiedIdentity is the user asserted by a verified payload. It is only
// built from fields that passed InitDataVerifier.
type VerifiedIdentity struct {
	ExternalID   string `json:"id"`
	DisplayName  string `json:"name"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

var _ Identity = (*VerifiedIdentity)(nil)

// ID returns the external identifier
func (v *VerifiedIdentity) ID() string {
	return v.ExternalID
}

// Name returns the display name
func (v *VerifiedIdentity) Name() string {
	return v.DisplayName
}

// userClaim mirrors the JSON object carried in the user field. id is kept
// raw so it can be checked as an integer literal without a float round trip.
type userClaim struct {
	ID           json.RawMessage `json:"id"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	Username     string          `json:"username"`
	LanguageCode string          `json:"language_code"`
	IsPremium    bool            `json:"is_premium"`
	PhotoURL     string          `json:"photo_url"`
}

type identityClaim struct {
	ID           string
	Username     string
	LanguageCode string
}

func (c identityClaim) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required, is.Int),
		validation.Field(&c.Username, validation.Length(0, 64)),
		validation.Field(&c.LanguageCode, validation.Length(0, 35)),
	)
}

// ParseIdentity extracts the identity from verified fields. Any missing
// or mistyped required attribute yields ErrMalformedIdentityClaim.
func ParseIdentity(fields map[string]string) (*VerifiedIdentity, error) {
	raw, ok := fields[FieldUser]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: missing %s field", ErrMalformedIdentityClaim, FieldUser)
	}

	var uc userClaim
	if err := json.Unmarshal([]byte(raw), &uc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedIdentityClaim, err)
	}

	claim := identityClaim{
		ID:           string(bytes.TrimSpace(uc.ID)),
		Username:     uc.Username,
		LanguageCode: uc.LanguageCode,
	}
	if err := claim.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedIdentityClaim, err)
	}

	return &VerifiedIdentity{
		ExternalID:   strings.TrimPrefix(claim.ID, "+"),
		DisplayName:  displayName(uc),
		FirstName:    uc.FirstName,
		LastName:     uc.LastName,
		Username:     uc.Username,
		LanguageCode: uc.LanguageCode,
		IsPremium:    uc.IsPremium,
		PhotoURL:     uc.PhotoURL,
	}, nil
}

func displayName(uc userClaim) string {
	name := strings.TrimSpace(uc.FirstName + " " + uc.LastName)
	if name == "" {
		name = uc.Username
	}
	return name
}

// IdentityResolver turns verified payloads into persisted users
type IdentityResolver struct {
	store  UserStore
	logger Logger
}

// NewIdentityResolver returns a resolver backed by store
func NewIdentityResolver(store UserStore, logger Logger) *IdentityResolver {
	if logger == nil {
		logger = defLogger{}
	}
	return &IdentityResolver{
		store:  store,
		logger: logger,
	}
}

// Resolve parses the identity carried by data and inserts the user if it
// does not exist yet. A row that already exists is returned untouched.
func (r *IdentityResolver) Resolve(ctx context.Context, data *InitData) (*User, *VerifiedIdentity, error) {
	if data == nil {
		return nil, nil, ErrUnableToParseData
	}

	identity, err := ParseIdentity(data.Fields)
	if err != nil {
		r.logger.Debug("identity claim rejected: %v", err)
		return nil, nil, err
	}

	user, err := r.store.InsertIfAbsent(ctx, NewUserFromIdentity(identity))
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, identity, err
		}
		r.logger.Error("user upsert failed for %s: %v", identity.ExternalID, err)
		return nil, identity, fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}

	return user, identity, nil
}
