package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"
)

// WebAppDataKey is the constant HMAC key used to derive the per bot secret
const WebAppDataKey = "WebAppData"

// DefaultClockSkew tolerated for auth_date values set in the future
const DefaultClockSkew = time.Minute

// InitDataVerifier checks launch payloads against a bot token.
type InitDataVerifier struct {
	secretKey []byte
	maxAge    time.Duration
	skew      time.Duration
	now       func() time.Time
	logger    Logger
}

// VerifierOption configures an InitDataVerifier
type VerifierOption func(*InitDataVerifier)

// WithMaxAge rejects payloads whose auth_date is older than maxAge.
// Zero disables the freshness check.
func WithMaxAge(maxAge time.Duration) VerifierOption {
	return func(v *InitDataVerifier) {
		v.maxAge = maxAge
	}
}

// WithVerifierClock overrides time.Now
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *InitDataVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithVerifierLogger sets the logger
func WithVerifierLogger(logger Logger) VerifierOption {
	return func(v *InitDataVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewInitDataVerifier derives the signing key from botToken once.
func NewInitDataVerifier(botToken string, opts ...VerifierOption) *InitDataVerifier {
	v := &InitDataVerifier{
		secretKey: DeriveSecretKey(botToken),
		skew:      DefaultClockSkew,
		now:       time.Now,
		logger:    defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// DeriveSecretKey returns HMAC-SHA256(key="WebAppData", msg=botToken)
func DeriveSecretKey(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte(WebAppDataKey))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

// SignDataCheckString returns the hex encoded HMAC of the canonical string
// under the derived secret key.
func SignDataCheckString(secretKey []byte, dataCheck string) string {
	mac := hmac.New(sha256.New, secretKey)
	mac.Write([]byte(dataCheck))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify parses and verifies raw. On success the returned InitData holds
// exactly the signed fields.
func (v *InitDataVerifier) Verify(raw string) (*InitData, error) {
	data, err := ParseInitData(raw)
	if err != nil {
		v.logger.Debug("init data parse failed: %v", err)
		return nil, err
	}

	if err := v.VerifyFields(data.DataCheckString(), data.Hash); err != nil {
		return nil, err
	}

	if err := v.checkFreshness(data); err != nil {
		return nil, err
	}

	return data, nil
}

// VerifyFields compares the expected signature of dataCheck with claimedHex
// in constant time.
func (v *InitDataVerifier) VerifyFields(dataCheck, claimedHex string) error {
	expected := SignDataCheckString(v.secretKey, dataCheck)
	if !hmac.Equal([]byte(expected), []byte(claimedHex)) {
		v.logger.Debug("init data signature mismatch")
		return ErrSignatureMismatch
	}
	return nil
}

func (v *InitDataVerifier) checkFreshness(data *InitData) error {
	if v.maxAge <= 0 {
		return nil
	}

	issued, ok := data.AuthDate()
	if !ok {
		return fmt.Errorf("%w: missing or invalid %s", ErrPayloadExpired, FieldAuthDate)
	}

	now := v.now()
	if now.Sub(issued) > v.maxAge {
		return fmt.Errorf("%w: issued %s", ErrPayloadExpired, issued.UTC().Format(time.RFC3339))
	}

	if issued.Sub(now) > v.skew {
		return fmt.Errorf("%w: issued in the future", ErrPayloadExpired)
	}

	return nil
}

// SignInitData is the inverse of Verify: it computes the hash over fields
// and returns the URL encoded payload.
func SignInitData(botToken string, fields map[string]string) string {
	values := url.Values{}
	for k, val := range fields {
		if k == FieldHash {
			continue
		}
		values.Set(k, val)
	}

	hash := SignDataCheckString(DeriveSecretKey(botToken), DataCheckString(fields))
	values.Set(FieldHash, hash)

	return values.Encode()
}
