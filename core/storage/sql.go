package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQL stores values in the dialogues table created by the database migrations.
// It works with both the sqlite and postgres drivers.
type SQL struct {
	db *sqlx.DB

	getQuery    string
	upsertQuery string
	deleteQuery string
}

// NewSQL wraps an open, migrated database handle. Close closes the handle.
func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{
		db:       db,
		getQuery: db.Rebind(`SELECT state FROM dialogues WHERE conversation_id = ?`),
		upsertQuery: db.Rebind(`INSERT INTO dialogues (conversation_id, state, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (conversation_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`),
		deleteQuery: db.Rebind(`DELETE FROM dialogues WHERE conversation_id = ?`),
	}
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.GetContext(ctx, &value, s.getQuery, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select dialogue: %w", err)
	}
	return value, nil
}

func (s *SQL) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.upsertQuery, key, value); err != nil {
		return fmt.Errorf("upsert dialogue: %w", err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.deleteQuery, key); err != nil {
		return fmt.Errorf("delete dialogue: %w", err)
	}
	return nil
}

func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQL) Close() error {
	return s.db.Close()
}
