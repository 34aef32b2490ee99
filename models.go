package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model. ExternalID is the chat platform user id and is
// unique; the first successful login creates the row and later logins do
// not overwrite it.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ExternalID    string     `bun:"tg_id,notnull,unique" json:"tg_id,omitempty"`
	Name          string     `bun:"name" json:"name,omitempty"`
	Username      string     `bun:"username,nullzero" json:"username,omitempty"`
	LanguageCode  string     `bun:"language_code,nullzero" json:"language_code,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at,omitempty"`
}

// NewUserFromIdentity builds the row to insert for a verified identity
func NewUserFromIdentity(identity *VerifiedIdentity) *User {
	if identity == nil {
		return nil
	}
	return &User{
		ExternalID:   identity.ExternalID,
		Name:         identity.DisplayName,
		Username:     identity.Username,
		LanguageCode: identity.LanguageCode,
	}
}
