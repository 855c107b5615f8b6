package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/models"
)

// AdvanceParams carries the state recorded after a successful embedding.
type AdvanceParams struct {
	OwnerID      string
	RelativePath string
	ContentHash  string
	ModifiedAt   time.Time
	EmbeddedAt   time.Time
	ModelVersion string
	VectorRef    string
}

// GetTrackedFile returns the sync ledger row for (owner, path), or
// apperr.ErrNotFound.
func (db *DB) GetTrackedFile(ctx context.Context, owner, relPath string) (*models.TrackedFile, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT owner_id, relative_path, content_hash, last_modified_at,
		       last_embedded_at, embedding_model_version, vector_ref, degraded
		FROM tracked_files WHERE owner_id = ? AND relative_path = ?
	`, owner, relPath)
	return scanTracked(row)
}

func scanTracked(row *sql.Row) (*models.TrackedFile, error) {
	var tf models.TrackedFile
	var modified int64
	var embedded sql.NullInt64
	var degraded int
	err := row.Scan(&tf.OwnerID, &tf.RelativePath, &tf.ContentHash, &modified,
		&embedded, &tf.EmbeddingModelVersion, &tf.VectorRef, &degraded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: scan tracked file: %w", err)
	}
	tf.LastModifiedAt = time.Unix(0, modified)
	if embedded.Valid {
		t := time.Unix(0, embedded.Int64)
		tf.LastEmbeddedAt = &t
	}
	tf.Degraded = degraded != 0
	return &tf, nil
}

// AdvanceEmbedded records a successful embedding. The row is created on
// first embedding of a path. last_embedded_at is monotonic per path: an
// update carrying an older timestamp than the committed one is rejected
// with apperr.ErrStale so the caller re-reads current state instead of
// overwriting it.
func (db *DB) AdvanceEmbedded(ctx context.Context, p AdvanceParams) error {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO tracked_files
			(owner_id, relative_path, content_hash, last_modified_at,
			 last_embedded_at, embedding_model_version, vector_ref, degraded)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(owner_id, relative_path) DO UPDATE SET
			content_hash            = excluded.content_hash,
			last_modified_at        = excluded.last_modified_at,
			last_embedded_at        = excluded.last_embedded_at,
			embedding_model_version = excluded.embedding_model_version,
			vector_ref              = excluded.vector_ref,
			degraded                = 0
		WHERE tracked_files.last_embedded_at IS NULL
		   OR tracked_files.last_embedded_at <= excluded.last_embedded_at
	`, p.OwnerID, p.RelativePath, p.ContentHash, p.ModifiedAt.UnixNano(),
		p.EmbeddedAt.UnixNano(), p.ModelVersion, p.VectorRef)
	if err != nil {
		return fmt.Errorf("ledger: advance embedded %s: %w", p.RelativePath, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: advance embedded rows: %w", err)
	}
	if n == 0 {
		return apperr.ErrStale
	}
	return nil
}

// MarkDegraded flags a path whose embedding could not be refreshed. The
// existing hash and embedding state are left untouched so the ledger still
// describes the last content that actually reached the vector store.
func (db *DB) MarkDegraded(ctx context.Context, owner, relPath string, modifiedAt time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO tracked_files (owner_id, relative_path, last_modified_at, degraded)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(owner_id, relative_path) DO UPDATE SET
			last_modified_at = excluded.last_modified_at,
			degraded         = 1
	`, owner, relPath, modifiedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("ledger: mark degraded %s: %w", relPath, err)
	}
	return nil
}

// ListTracked returns all sync ledger rows for an owner.
func (db *DB) ListTracked(ctx context.Context, owner string) ([]models.TrackedFile, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT owner_id, relative_path, content_hash, last_modified_at,
		       last_embedded_at, embedding_model_version, vector_ref, degraded
		FROM tracked_files WHERE owner_id = ? ORDER BY relative_path
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("ledger: list tracked: %w", err)
	}
	defer rows.Close()

	var out []models.TrackedFile
	for rows.Next() {
		var tf models.TrackedFile
		var modified int64
		var embedded sql.NullInt64
		var degraded int
		if err := rows.Scan(&tf.OwnerID, &tf.RelativePath, &tf.ContentHash, &modified,
			&embedded, &tf.EmbeddingModelVersion, &tf.VectorRef, &degraded); err != nil {
			return nil, err
		}
		tf.LastModifiedAt = time.Unix(0, modified)
		if embedded.Valid {
			t := time.Unix(0, embedded.Int64)
			tf.LastEmbeddedAt = &t
		}
		tf.Degraded = degraded != 0
		out = append(out, tf)
	}
	return out, rows.Err()
}

// AllHashes returns relative_path -> content_hash for an owner. Used by the
// startup reconcile pass.
func (db *DB) AllHashes(ctx context.Context, owner string) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT relative_path, content_hash FROM tracked_files WHERE owner_id = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("ledger: all hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var p, h string
		if err := rows.Scan(&p, &h); err != nil {
			return nil, err
		}
		out[p] = h
	}
	return out, rows.Err()
}

// DeleteTrackedTx removes a sync ledger row inside an entity-deletion
// transaction. Tracked files are never reaped by the engine itself.
func (db *DB) DeleteTrackedTx(tx *sql.Tx, owner, relPath string) error {
	_, err := tx.Exec(`DELETE FROM tracked_files WHERE owner_id = ? AND relative_path = ?`, owner, relPath)
	if err != nil {
		return fmt.Errorf("ledger: delete tracked %s: %w", relPath, err)
	}
	return nil
}
