// Package postgres implements persistence.Store on a JSONB documents table.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fittrack/internal/persistence"
)

//go:embed schema.sql
var schema string

// Store provides Postgres-backed document persistence.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the documents table when it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}

// Read implements persistence.Store.
func (s *Store) Read(ctx context.Context, collection, id string) (persistence.Document, error) {
	const query = `SELECT fields FROM documents WHERE collection=$1 AND doc_id=$2`

	var raw []byte
	if err := s.pool.QueryRow(ctx, query, collection, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return persistence.Document{}, persistence.ErrNotFound
		}
		return persistence.Document{}, err
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return persistence.Document{}, err
	}
	return persistence.Document{ID: id, Fields: fields}, nil
}

// Write implements persistence.Store. Merge writes read and rewrite the row inside one transaction.
func (s *Store) Write(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	var base map[string]any
	if merge {
		// Create the row first so concurrent merges into a missing document
		// serialize on its lock instead of both starting from empty.
		const seed = `INSERT INTO documents (collection, doc_id) VALUES ($1,$2)
        ON CONFLICT (collection, doc_id) DO NOTHING`
		if _, err = tx.Exec(ctx, seed, collection, id); err != nil {
			return err
		}
		base, err = lockFields(ctx, tx, collection, id)
		if err != nil {
			return err
		}
	}

	next, err := persistence.ApplyMerge(base, fields)
	if err != nil {
		return err
	}
	body, err := json.Marshal(next)
	if err != nil {
		return err
	}

	const upsert = `INSERT INTO documents (collection, doc_id, fields) VALUES ($1,$2,$3)
        ON CONFLICT (collection, doc_id) DO UPDATE SET fields = EXCLUDED.fields, updated_at = NOW()`
	if _, err = tx.Exec(ctx, upsert, collection, id, body); err != nil {
		return err
	}

	err = tx.Commit(ctx)
	return err
}

// Insert implements persistence.Store.
func (s *Store) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	doc, err := persistence.ApplyMerge(nil, fields)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	const stmt = `INSERT INTO documents (collection, doc_id, fields) VALUES ($1,$2,$3)`
	if _, err := s.pool.Exec(ctx, stmt, collection, id, body); err != nil {
		return "", err
	}
	return id, nil
}

// QueryByField implements persistence.Store using JSONB containment. Results are ordered by creation time.
func (s *Store) QueryByField(ctx context.Context, collection, field string, value any) ([]persistence.Document, error) {
	filter, err := persistence.ExpandPaths(map[string]any{field: value})
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(filter)
	if err != nil {
		return nil, err
	}

	const query = `SELECT doc_id, fields FROM documents
        WHERE collection=$1 AND fields @> $2::jsonb
        ORDER BY created_at, doc_id`

	rows, err := s.pool.Query(ctx, query, collection, body)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]persistence.Document, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		results = append(results, persistence.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func lockFields(ctx context.Context, tx pgx.Tx, collection, id string) (map[string]any, error) {
	const query = `SELECT fields FROM documents WHERE collection=$1 AND doc_id=$2 FOR UPDATE`

	var raw []byte
	if err := tx.QueryRow(ctx, query, collection, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return decodeFields(raw)
}

func decodeFields(raw []byte) (map[string]any, error) {
	fields := make(map[string]any)
	if len(raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode document fields: %w", err)
	}
	return fields, nil
}
