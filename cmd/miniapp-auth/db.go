package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	auth "github.com/goliatone/go-miniapp-auth"
	"github.com/goliatone/go-miniapp-auth/workspace"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	migrationsDir    = "data/sql/migrations"
	dbPingTimeout    = 5 * time.Second
	dbOtelIdentifier = "miniapp-auth"
)

func init() {
	persistence.RegisterModel((*auth.User)(nil))
	persistence.RegisterModel((*workspace.Client)(nil))
	persistence.RegisterModel((*workspace.Task)(nil))
}

// dbConfig feeds the persistence client
type dbConfig struct {
	dsn   string
	debug bool
}

func (c dbConfig) GetDebug() bool                { return c.debug }
func (c dbConfig) GetDriver() string             { return sqliteshim.ShimName }
func (c dbConfig) GetServer() string             { return c.dsn }
func (c dbConfig) GetPingTimeout() time.Duration { return dbPingTimeout }
func (c dbConfig) GetOtelIdentifier() string     { return dbOtelIdentifier }

// openDB opens the sqlite database at dsn, creating the parent directory
// of plain file paths, and registers the users and workspace migrations.
func openDB(dsn string, debug bool) (*persistence.Client, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite serializes writers
	sqldb.SetMaxOpenConns(1)

	client, err := persistence.New(dbConfig{dsn: dsn, debug: debug}, sqldb, sqlitedialect.New())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, source := range []fs.FS{auth.GetMigrationsFS(), workspace.GetMigrationsFS()} {
		migrations, err := fs.Sub(source, migrationsDir)
		if err != nil {
			return nil, err
		}
		client.RegisterDialectMigrations(
			migrations,
			persistence.WithDialectSourceLabel(migrationsDir),
		)
	}

	return client, nil
}

// migrate applies pending migrations
func migrate(ctx context.Context, client *persistence.Client) error {
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
