package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// DefaultCookieName is the session cookie name
const DefaultCookieName = "auth"

// DefaultLoginRoute is the handshake endpoint
const DefaultLoginRoute = "/api/auth/telegram"

// LoginRequest is the handshake request body
type LoginRequest struct {
	InitData string `json:"initData" form:"initData"`
}

// LoginResponse is returned on a successful handshake
type LoginResponse struct {
	OK    bool   `json:"ok"`
	Token string `json:"token"`
}

// ErrorResponse carries a stable text code and nothing else
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionResponse describes the caller of a protected route
type SessionResponse struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// HTTPAuthenticator exposes the handshake and the guard over fiber
type HTTPAuthenticator struct {
	auther       *Auther
	guard        *Guard
	cookieName   string
	cookieSecure bool
	contextKey   string
	Logger       Logger
}

// HTTPOption configures an HTTPAuthenticator
type HTTPOption func(*HTTPAuthenticator)

// WithCookieName overrides the session cookie name
func WithCookieName(name string) HTTPOption {
	return func(a *HTTPAuthenticator) {
		if name != "" {
			a.cookieName = name
		}
	}
}

// WithSecureCookie marks the session cookie Secure
func WithSecureCookie(secure bool) HTTPOption {
	return func(a *HTTPAuthenticator) {
		a.cookieSecure = secure
	}
}

// WithHTTPLogger sets the logger
func WithHTTPLogger(logger Logger) HTTPOption {
	return func(a *HTTPAuthenticator) {
		if logger != nil {
			a.Logger = logger
		}
	}
}

func NewHTTPAuthenticator(auther *Auther, guard *Guard, opts ...HTTPOption) *HTTPAuthenticator {
	a := &HTTPAuthenticator{
		auther:     auther,
		guard:      guard,
		cookieName: DefaultCookieName,
		contextKey: guard.contextKey,
		Logger:     defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// ProtectedRoute returns the guard middleware
func (a *HTTPAuthenticator) ProtectedRoute() fiber.Handler {
	return a.guard.Middleware()
}

// Login handles the handshake: 400 without initData, 401 when
// verification fails, 200 with the token and the session cookie otherwise.
func (a *HTTPAuthenticator) Login(c *fiber.Ctx) error {
	req := LoginRequest{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			a.Logger.Debug("login body parse failed: %v", err)
		}
	}

	if strings.TrimSpace(req.InitData) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: TextCodeInitDataRequired})
	}

	result, err := a.auther.Login(c.UserContext(), req.InitData)
	if err != nil {
		return c.Status(StatusCode(err)).JSON(ErrorResponse{Error: TextCode(err)})
	}

	a.setCookieToken(c, result.Token)

	return c.JSON(LoginResponse{
		OK:    true,
		Token: result.Token,
	})
}

// Me returns the claims of the authenticated caller
func (a *HTTPAuthenticator) Me(c *fiber.Ctx) error {
	claims, ok := GetFiberClaims(c, a.contextKey)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: TextCodeUnauthorized})
	}
	return c.JSON(SessionResponse{
		UID:       claims.UserID(),
		Name:      claims.Name(),
		IssuedAt:  claims.IssuedAt().Unix(),
		ExpiresAt: claims.Expires().Unix(),
	})
}

// RegisterRoutes mounts the handshake and the session introspection route
func (a *HTTPAuthenticator) RegisterRoutes(r fiber.Router) {
	r.Post(DefaultLoginRoute, a.Login)
	r.Get("/api/me", a.ProtectedRoute(), a.Me)
}

// setCookieToken writes a browser session cookie: no Expires, the token
// carries its own exp which the guard enforces.
func (a *HTTPAuthenticator) setCookieToken(c *fiber.Ctx, val string) {
	c.Cookie(&fiber.Cookie{
		Name:     a.cookieName,
		Value:    val,
		Path:     "/",
		HTTPOnly: true,
		Secure:   a.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
