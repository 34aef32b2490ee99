package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Users interface {
	repository.Repository[*User]
	UserStore

	InsertIfAbsentTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	GetByExternalIDTx(ctx context.Context, tx bun.IDB, externalID string) (*User, error)
	Count(ctx context.Context) (int, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users     = (*users)(nil)
	_ UserStore = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "tg_id"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) InsertIfAbsent(ctx context.Context, record *User) (*User, error) {
	return a.InsertIfAbsentTx(ctx, a.db, record)
}

// InsertIfAbsentTx inserts record unless a row with the same tg_id exists.
// The unique index arbitrates concurrent logins; the stored row is returned
// in both cases.
func (a *users) InsertIfAbsentTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	if record == nil || strings.TrimSpace(record.ExternalID) == "" {
		return nil, ErrUnableToParseData
	}

	prepareUserDefaults(record)

	_, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (tg_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return a.GetByExternalIDTx(ctx, tx, record.ExternalID)
}

func (a *users) GetByExternalID(ctx context.Context, externalID string) (*User, error) {
	return a.GetByExternalIDTx(ctx, a.db, externalID)
}

func (a *users) GetByExternalIDTx(ctx context.Context, tx bun.IDB, externalID string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.tg_id = ?", strings.TrimSpace(externalID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (a *users) Count(ctx context.Context) (int, error) {
	return a.db.NewSelect().Model((*User)(nil)).Count(ctx)
}

// IsUserNotFound reports whether err is a missing row error
func IsUserNotFound(err error) bool {
	return repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows)
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.CreatedAt == nil {
		now := time.Now().UTC()
		record.CreatedAt = &now
	}
}
