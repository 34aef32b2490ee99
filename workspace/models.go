package workspace

import (
	"bytes"
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/uptrace/bun"
)

// Client is a CRM pipeline entry
type Client struct {
	bun.BaseModel `bun:"table:clients,alias:cl"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id"`
	Name          string     `bun:"name" json:"name"`
	Stage         string     `bun:"stage" json:"stage"`
	Owner         string     `bun:"owner" json:"owner"`
	Value         string     `bun:"value" json:"value"`
	CreatedBy     string     `bun:"created_by" json:"created_by,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Task is a to-do item
type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:tk"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	Title         string `bun:"title" json:"title"`
	Tag           string `bun:"tag" json:"tag"`
	Due           string `bun:"due" json:"due"`
	Status        string `bun:"status" json:"status"`
	CreatedBy     string `bun:"created_by" json:"created_by,omitempty"`
}

// Amount is a deal value sent either as a JSON string or a JSON number.
// Numbers keep their literal text.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

// ClientPayload is the create client request body
type ClientPayload struct {
	Name  string `json:"name"`
	Stage string `json:"stage"`
	Owner string `json:"owner"`
	Value Amount `json:"value"`
}

func (p ClientPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&p.Stage, validation.Length(0, 64)),
		validation.Field(&p.Owner, validation.Length(0, 255)),
		validation.Field(&p.Value, validation.Length(0, 64)),
	)
}

// TaskPayload is the create task request body
type TaskPayload struct {
	Title  string `json:"title"`
	Tag    string `json:"tag"`
	Due    string `json:"due"`
	Status string `json:"status"`
}

func (p TaskPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&p.Tag, validation.Length(0, 64)),
		validation.Field(&p.Due, validation.Length(0, 64)),
		validation.Field(&p.Status, validation.Length(0, 64)),
	)
}

// Quote is a portfolio placeholder row
type Quote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
}

// NewsItem is a feed placeholder row
type NewsItem struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Source string `json:"source"`
	TS     int64  `json:"ts"`
}
