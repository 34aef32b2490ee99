package workspace

import (
	"context"

	"github.com/uptrace/bun"
)

const (
	clientsLimit = 100
	tasksLimit   = 200
)

// Store persists workspace rows
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListClients(ctx context.Context) ([]Client, error) {
	records := []Client{}
	err := s.db.NewSelect().
		Model(&records).
		Order("id DESC").
		Limit(clientsLimit).
		Scan(ctx)
	return records, err
}

func (s *Store) CreateClient(ctx context.Context, record *Client) (int64, error) {
	if _, err := s.db.NewInsert().Model(record).Returning("id").Exec(ctx); err != nil {
		return 0, err
	}
	return record.ID, nil
}

func (s *Store) ListTasks(ctx context.Context) ([]Task, error) {
	records := []Task{}
	err := s.db.NewSelect().
		Model(&records).
		Order("id DESC").
		Limit(tasksLimit).
		Scan(ctx)
	return records, err
}

func (s *Store) CreateTask(ctx context.Context, record *Task) (int64, error) {
	if _, err := s.db.NewInsert().Model(record).Returning("id").Exec(ctx); err != nil {
		return 0, err
	}
	return record.ID, nil
}
