package auth

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes returned to HTTP clients. They are part of the public contract.
const (
	TextCodeInitDataRequired = "initData required"
	TextCodeAuthFailed       = "auth_failed"
	TextCodeStoreUnavailable = "store_unavailable"
	TextCodeUnauthorized     = "unauthorized"
	TextCodeInvalidToken     = "invalid_token"
	TextCodeInternal         = "internal_error"
)

// ErrMalformedPayload is returned when initData can not be parsed or has no hash
var ErrMalformedPayload = goerrors.New("malformed init data payload", goerrors.CategoryBadInput).
	WithTextCode(TextCodeAuthFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrSignatureMismatch is returned when the computed hash does not match the claimed one
var ErrSignatureMismatch = goerrors.New("init data signature mismatch", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrPayloadExpired is returned when auth_date is outside the accepted window
var ErrPayloadExpired = goerrors.New("init data payload expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrMalformedIdentityClaim is returned when verified fields lack a usable user object
var ErrMalformedIdentityClaim = goerrors.New("malformed identity claim", goerrors.CategoryValidation).
	WithTextCode(TextCodeAuthFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrStoreUnavailable is returned when the user upsert could not complete
var ErrStoreUnavailable = goerrors.New("user store unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeStoreUnavailable).
	WithCode(http.StatusServiceUnavailable)

// ErrMissingCredential no token was presented to a protected call
var ErrMissingCredential = goerrors.New("missing credential", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredential token present but bad signature, algorithm or expiry
var ErrInvalidCredential = goerrors.New("invalid or expired credential", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToParseData parse error
var ErrUnableToParseData = goerrors.New("unable to parse data", goerrors.CategoryInternal).
	WithTextCode(TextCodeInternal).
	WithCode(http.StatusInternalServerError)

// TextCode returns the text code carried by the outermost structured error
// in err's chain. Plain errors map to TextCodeInternal.
func TextCode(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode != "" {
		return richErr.TextCode
	}
	return TextCodeInternal
}

// StatusCode returns the HTTP status carried by err, 500 when it has none.
// Both credential failures share 401, only the text code differs.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code != 0 {
		return richErr.Code
	}
	return http.StatusInternalServerError
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}
