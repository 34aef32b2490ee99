package auth_test

import (
	"context"
	"database/sql"
	"io/fs"
	"sort"
	"strconv"
	"testing"
	"time"

	auth "github.com/goliatone/go-miniapp-auth"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	testBotToken  = "123456:bot-token"
	testJWTSecret = "session-secret"
)

type testConfig struct {
	botToken   string
	signingKey string
	ttl        time.Duration
	maxAge     time.Duration
	cookieName string
	issuer     string
	audience   []string
}

func newTestConfig() *testConfig {
	return &testConfig{
		botToken:   testBotToken,
		signingKey: testJWTSecret,
		ttl:        auth.DefaultSessionTTL,
		cookieName: auth.DefaultCookieName,
	}
}

func (c *testConfig) GetBotToken() string               { return c.botToken }
func (c *testConfig) GetInitDataMaxAge() time.Duration  { return c.maxAge }
func (c *testConfig) GetSigningKey() string             { return c.signingKey }
func (c *testConfig) GetContextKey() string             { return auth.DefaultContextKey }
func (c *testConfig) GetTokenExpiration() time.Duration { return c.ttl }
func (c *testConfig) GetTokenLookup() string            { return "" }
func (c *testConfig) GetAuthScheme() string             { return "Bearer" }
func (c *testConfig) GetCookieName() string             { return c.cookieName }
func (c *testConfig) GetIssuer() string                 { return c.issuer }
func (c *testConfig) GetAudience() []string             { return c.audience }

var _ auth.Config = (*testConfig)(nil)

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

func newQuietLogger() *MockLogger {
	l := new(MockLogger)
	l.On("Debug", mock.Anything, mock.Anything).Maybe()
	l.On("Info", mock.Anything, mock.Anything).Maybe()
	l.On("Warn", mock.Anything, mock.Anything).Maybe()
	l.On("Error", mock.Anything, mock.Anything).Maybe()
	return l
}

func setupRepository(t *testing.T) auth.RepositoryManager {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	repo := auth.NewRepositoryManager(db)
	require.NoError(t, repo.Validate())
	applyMigrations(t, db, auth.GetMigrationsFS())

	return repo
}

// applyMigrations runs every up migration in fsys in file name order
func applyMigrations(t *testing.T, db *bun.DB, fsys fs.FS) {
	t.Helper()

	files, err := fs.Glob(fsys, "data/sql/migrations/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	sort.Strings(files)

	for _, name := range files {
		stmt, err := fs.ReadFile(fsys, name)
		require.NoError(t, err)
		_, err = db.ExecContext(context.Background(), string(stmt))
		require.NoError(t, err, name)
	}
}

func signedPayload(botToken, user string, authDate time.Time) string {
	return auth.SignInitData(botToken, map[string]string{
		auth.FieldUser:     user,
		auth.FieldAuthDate: strconv.FormatInt(authDate.Unix(), 10),
	})
}

type identity struct {
	id   string
	name string
}

func (i identity) ID() string   { return i.id }
func (i identity) Name() string { return i.name }
