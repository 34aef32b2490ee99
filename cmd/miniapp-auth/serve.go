package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	auth "github.com/goliatone/go-miniapp-auth"
	"github.com/goliatone/go-miniapp-auth/config"
	"github.com/goliatone/go-miniapp-auth/workspace"
	"github.com/goliatone/go-print"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *ffcli.Command {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg := config.RegisterFlags(fs)
	fs.String("config", "", "config file (optional)")

	return &ffcli.Command{
		Name:       "serve",
		ShortUsage: "miniapp-auth serve [flags]",
		ShortHelp:  "run the HTTP server",
		FlagSet:    fs,
		Options:    config.Options(),
		Exec: func(ctx context.Context, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)
	logger.Debug().Msgf("config: %s", print.MaybePrettyJSON(cfg))

	client, err := openDB(cfg.DatabaseURL, logger.GetLevel() <= zerolog.DebugLevel)
	if err != nil {
		return err
	}
	defer client.DB().Close()

	if err := migrate(ctx, client); err != nil {
		return err
	}

	app, err := newApp(cfg, client.DB(), logger)
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr()).Msg("listening")
		errc <- app.Listen(cfg.Addr())
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	logger := log.Logger
	if cfg.LogPretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(level)
}

// newApp mounts every route on a new fiber app. The schema must already
// be migrated.
func newApp(cfg *config.Config, db *bun.DB, zl zerolog.Logger) (*fiber.App, error) {
	logger := auth.NewZerologLogger(zl)

	repo := auth.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		return nil, err
	}

	store := workspace.NewStore(db)

	auther := auth.NewAuthenticator(repo.Users(), cfg).
		WithLogger(logger).
		WithActivitySink(auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
			zl.Info().
				Str("event", string(event.EventType)).
				Str("uid", event.UserID).
				Interface("metadata", event.Metadata).
				Msg("activity")
			return nil
		}))

	if prev := cfg.GetPreviousSigningKey(); prev != "" {
		auther.WithTokenValidator(auth.NewMultiTokenValidator(
			auther.TokenService(),
			auth.NewTokenService([]byte(prev), cfg.GetTokenExpiration(),
				auth.WithIssuer(cfg.GetIssuer()),
				auth.WithAudience(cfg.GetAudience()...),
				auth.WithTokenLogger(logger),
			),
		))
	}

	guard := auth.NewGuardFromConfig(auther.TokenValidator(), cfg, logger)
	httpAuth := auth.NewHTTPAuthenticator(auther, guard,
		auth.WithCookieName(cfg.CookieName),
		auth.WithSecureCookie(cfg.CookieSecure),
		auth.WithHTTPLogger(logger),
	)

	app := fiber.New(fiber.Config{
		AppName:               "miniapp-auth",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	// reflect any origin; a literal entry keeps the credentialed config
	// off the wildcard
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost",
		AllowOriginsFunc: func(string) bool { return true },
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	httpAuth.RegisterRoutes(app)

	workspace.NewController(store,
		workspace.WithUploadDir(cfg.UploadDir),
		workspace.WithContextKey(cfg.ContextKey),
		workspace.WithLogger(logger),
	).RegisterRoutes(app, httpAuth.ProtectedRoute())

	return app, nil
}
