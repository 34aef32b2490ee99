package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-miniapp-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	app    *fiber.App
	repo   auth.RepositoryManager
	auther *auth.Auther
	events *eventRecorder
}

type eventRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *eventRecorder) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []auth.ActivityEventType{}
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func newTestServer(t *testing.T, cfg *testConfig) *testServer {
	t.Helper()

	repo := setupRepository(t)
	events := &eventRecorder{}
	logger := newQuietLogger()

	auther := auth.NewAuthenticator(repo.Users(), cfg).
		WithLogger(logger).
		WithActivitySink(events)

	guard := auth.NewGuardFromConfig(auther.TokenValidator(), cfg, logger)
	httpAuth := auth.NewHTTPAuthenticator(auther, guard, auth.WithHTTPLogger(logger))

	app := fiber.New()
	httpAuth.RegisterRoutes(app)

	return &testServer{
		app:    app,
		repo:   repo,
		auther: auther,
		events: events,
	}
}

func (s *testServer) login(t *testing.T, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, auth.DefaultLoginRoute, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req)
}

func (s *testServer) do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := s.app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func loginBody(t *testing.T, initData string) string {
	t.Helper()
	b, err := json.Marshal(auth.LoginRequest{InitData: initData})
	require.NoError(t, err)
	return string(b)
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == auth.DefaultCookieName {
			return c
		}
	}
	return nil
}

func TestLogin_MissingInitData(t *testing.T) {
	srv := newTestServer(t, newTestConfig())

	for _, body := range []string{`{}`, `{"initData":""}`, ``} {
		resp, out := srv.login(t, body)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, map[string]any{"error": "initData required"}, out)
		assert.Nil(t, sessionCookie(resp))
	}
}

func TestLogin_Success(t *testing.T) {
	srv := newTestServer(t, newTestConfig())
	payload := signedPayload(testBotToken, `{"id":42,"first_name":"Ana"}`, time.Now())

	resp, out := srv.login(t, loginBody(t, payload))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["ok"])

	token, ok := out["token"].(string)
	require.True(t, ok)

	claims, err := srv.auther.SessionFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID())
	assert.Equal(t, "Ana", claims.Name())
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.Expires(), time.Minute)

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.Equal(t, token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.True(t, cookie.Expires.IsZero())
	assert.Zero(t, cookie.MaxAge)

	user, err := srv.repo.Users().GetByExternalID(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)

	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventLoginSuccess}, srv.events.types())
}

func TestLogin_FormEncoded(t *testing.T) {
	srv := newTestServer(t, newTestConfig())
	payload := signedPayload(testBotToken, `{"id":5,"first_name":"Form"}`, time.Now())

	form := url.Values{}
	form.Set("initData", payload)
	req := httptest.NewRequest(http.MethodPost, auth.DefaultLoginRoute, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, out := srv.do(t, req)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["ok"])
}

func TestLogin_BadSignatureCreatesNoRow(t *testing.T) {
	srv := newTestServer(t, newTestConfig())
	payload := signedPayload("wrong-bot", `{"id":42,"first_name":"Ana"}`, time.Now())

	resp, out := srv.login(t, loginBody(t, payload))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": "auth_failed"}, out)
	assert.Nil(t, sessionCookie(resp))

	count, err := srv.repo.Users().Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventLoginFailure}, srv.events.types())
}

func TestLogin_MalformedPayloads(t *testing.T) {
	srv := newTestServer(t, newTestConfig())

	cases := map[string]string{
		"no hash":         "user=%7B%22id%22%3A1%7D&auth_date=1",
		"not a query":     "%%%",
		"missing user":    auth.SignInitData(testBotToken, map[string]string{"auth_date": "1700000000"}),
		"string user id":  signedPayload(testBotToken, `{"id":"42"}`, time.Now()),
		"user not object": signedPayload(testBotToken, `nope`, time.Now()),
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			resp, out := srv.login(t, loginBody(t, payload))
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, map[string]any{"error": "auth_failed"}, out)
		})
	}

	count, err := srv.repo.Users().Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestLogin_StalePayload(t *testing.T) {
	cfg := newTestConfig()
	cfg.maxAge = time.Hour
	srv := newTestServer(t, cfg)

	payload := signedPayload(testBotToken, `{"id":42,"first_name":"Ana"}`, time.Now().Add(-2*time.Hour))
	resp, out := srv.login(t, loginBody(t, payload))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "auth_failed", out["error"])
}

func TestLogin_RepeatedLoginKeepsFirstRow(t *testing.T) {
	srv := newTestServer(t, newTestConfig())

	for _, name := range []string{"Ana", "Renamed"} {
		payload := signedPayload(testBotToken, `{"id":42,"first_name":"`+name+`"}`, time.Now())
		resp, _ := srv.login(t, loginBody(t, payload))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	count, err := srv.repo.Users().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	user, err := srv.repo.Users().GetByExternalID(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)
}

func TestGuard_Me(t *testing.T) {
	srv := newTestServer(t, newTestConfig())
	payload := signedPayload(testBotToken, `{"id":42,"first_name":"Ana"}`, time.Now())

	resp, out := srv.login(t, loginBody(t, payload))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	token := out["token"].(string)

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, out := srv.do(t, req)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "42", out["uid"])
		assert.Equal(t, "Ana", out["name"])
	})

	t.Run("cookie fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: token})
		resp, out := srv.do(t, req)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "42", out["uid"])
	})

	t.Run("missing credential", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		resp, out := srv.do(t, req)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, map[string]any{"error": "unauthorized"}, out)
	})

	t.Run("invalid credential", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+token+"x")
		resp, out := srv.do(t, req)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, map[string]any{"error": "invalid_token"}, out)
	})

	t.Run("invalid cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: "garbage"})
		resp, out := srv.do(t, req)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "invalid_token", out["error"])
	})
}

func TestGuard_ExpiredToken(t *testing.T) {
	srv := newTestServer(t, newTestConfig())

	ts := auth.NewTokenService([]byte(testJWTSecret), time.Hour)
	expired, err := ts.Issue(identity{id: "42", name: "Ana"}, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	resp, out := srv.do(t, req)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": "invalid_token"}, out)
}

func TestGuard_ForeignKey(t *testing.T) {
	srv := newTestServer(t, newTestConfig())

	forged, err := auth.NewTokenService([]byte("attacker"), 0).Generate(identity{id: "1", name: "Eve"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: forged})
	resp, out := srv.do(t, req)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_token", out["error"])
}

func TestGuard_Authenticate(t *testing.T) {
	ts := auth.NewTokenService([]byte(testJWTSecret), 0, auth.WithTokenLogger(newQuietLogger()))
	guard := auth.NewGuard(ts, auth.WithGuardLogger(newQuietLogger()))

	token, err := ts.Generate(identity{id: "42", name: "Ana"})
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/check", func(c *fiber.Ctx) error {
		claims, err := guard.Authenticate(c)
		if err != nil {
			return c.Status(auth.StatusCode(err)).SendString(auth.TextCode(err))
		}
		return c.SendString(claims.UserID())
	})

	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
		body   string
	}{
		{
			name:   "header",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			status: fiber.StatusOK,
			body:   "42",
		},
		{
			name:   "cookie",
			setup:  func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "auth", Value: token}) },
			status: fiber.StatusOK,
			body:   "42",
		},
		{
			name:   "basic scheme falls through to missing",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Basic "+token) },
			status: fiber.StatusUnauthorized,
			body:   "unauthorized",
		},
		{
			name:   "none",
			setup:  func(*http.Request) {},
			status: fiber.StatusUnauthorized,
			body:   "unauthorized",
		},
		{
			name:   "bad",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			status: fiber.StatusUnauthorized,
			body:   "invalid_token",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/check", nil)
			tc.setup(req)
			resp, err := app.Test(req)
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.body, string(body))
		})
	}
}

func TestGuard_MiddlewareEnrichesContext(t *testing.T) {
	ts := auth.NewTokenService([]byte(testJWTSecret), 0)
	guard := auth.NewGuard(ts, auth.WithGuardLogger(newQuietLogger()))

	token, err := ts.Generate(identity{id: "42", name: "Ana"})
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/ctx", guard.Middleware(), func(c *fiber.Ctx) error {
		claims, ok := auth.GetClaims(c.UserContext())
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(claims.Name())
	})

	req := httptest.NewRequest(http.MethodGet, "/ctx", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ana", string(body))
}

func TestHTTPAuthenticator_CustomCookie(t *testing.T) {
	cfg := newTestConfig()
	cfg.cookieName = "session"

	repo := setupRepository(t)
	auther := auth.NewAuthenticator(repo.Users(), cfg).WithLogger(newQuietLogger())
	guard := auth.NewGuardFromConfig(auther.TokenValidator(), cfg, newQuietLogger())
	httpAuth := auth.NewHTTPAuthenticator(auther, guard,
		auth.WithCookieName("session"),
		auth.WithSecureCookie(true),
	)

	app := fiber.New()
	httpAuth.RegisterRoutes(app)

	payload := signedPayload(testBotToken, `{"id":42,"first_name":"Ana"}`, time.Now())
	req := httptest.NewRequest(http.MethodPost, auth.DefaultLoginRoute, strings.NewReader(loginBody(t, payload)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.Secure)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: cookie.Value})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
