package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// SQLite implements Store on the shared ledger database. Vectors are stored
// as packed little-endian float32 blobs and searched with a brute-force
// cosine scan, which is plenty for a personal vault.
type SQLite struct {
	conn *sql.DB
}

var _ Store = (*SQLite)(nil)

// NewSQLite creates a vector store over an already-migrated connection.
func NewSQLite(conn *sql.DB) *SQLite {
	return &SQLite{conn: conn}
}

// Upsert inserts or overwrites the vector for id.
func (s *SQLite) Upsert(ctx context.Context, id string, vec []float32, meta Metadata) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("vector: marshal metadata: %w", err)
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO vectors (id, embedding, model, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			embedding  = excluded.embedding,
			model      = excluded.model,
			metadata   = excluded.metadata,
			updated_at = excluded.updated_at
	`, id, Pack(vec), meta.Model, string(metaJSON), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("vector: upsert %s: %w", id, err)
	}
	return nil
}

// Delete removes the vector for id. Missing ids are not an error.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, id); err != nil {
		return fmt.Errorf("vector: delete %s: %w", id, err)
	}
	return nil
}

// Has reports whether a vector exists for id.
func (s *SQLite) Has(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.conn.QueryRowContext(ctx, `SELECT 1 FROM vectors WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("vector: has %s: %w", id, err)
	}
	return true, nil
}

// Search returns the k vectors most similar to vec by cosine similarity.
func (s *SQLite) Search(ctx context.Context, vec []float32, k int) ([]Match, error) {
	if k <= 0 {
		k = 10
	}
	rows, err := s.conn.QueryContext(ctx, `SELECT id, embedding, metadata FROM vectors`)
	if err != nil {
		return nil, fmt.Errorf("vector: search: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var id string
		var blob []byte
		var metaJSON string
		if err := rows.Scan(&id, &blob, &metaJSON); err != nil {
			return nil, err
		}
		var meta Metadata
		_ = json.Unmarshal([]byte(metaJSON), &meta)
		out = append(out, Match{ID: id, Score: Cosine(vec, Unpack(blob)), Metadata: meta})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
