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

// GetNote returns the note bound to id, or apperr.ErrNotFound.
func (db *DB) GetNote(ctx context.Context, id string) (*models.Note, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, owner_id, relative_path, title, created_at, updated_at
		FROM notes WHERE id = ?
	`, id)
	return scanNote(row)
}

// GetNoteByPath returns the note bound to a vault path, or apperr.ErrNotFound.
func (db *DB) GetNoteByPath(ctx context.Context, owner, relPath string) (*models.Note, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, owner_id, relative_path, title, created_at, updated_at
		FROM notes WHERE owner_id = ? AND relative_path = ?
	`, owner, relPath)
	return scanNote(row)
}

func scanNote(row *sql.Row) (*models.Note, error) {
	var n models.Note
	var created, updated int64
	err := row.Scan(&n.ID, &n.OwnerID, &n.RelativePath, &n.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: scan note: %w", err)
	}
	n.CreatedAt = time.Unix(0, created)
	n.UpdatedAt = time.Unix(0, updated)
	return &n, nil
}

// InsertNoteTx creates a note binding inside a transaction. A duplicate id
// or path surfaces as apperr.ErrAlreadyExists.
func (db *DB) InsertNoteTx(tx *sql.Tx, n models.Note) error {
	_, err := tx.Exec(`
		INSERT INTO notes (id, owner_id, relative_path, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ID, n.OwnerID, n.RelativePath, n.Title, n.CreatedAt.UnixNano(), n.UpdatedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("ledger: insert note: %w", err)
	}
	return nil
}

// BindNote adopts a disk-created file: it binds id to the path unless the
// id is already bound elsewhere, in which case apperr.ErrConflict is
// returned and the caller treats the file as a data error.
func (db *DB) BindNote(ctx context.Context, n models.Note) error {
	existing, err := db.GetNote(ctx, n.ID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if existing != nil {
		if existing.RelativePath != n.RelativePath {
			return apperr.ErrConflict
		}
		return nil
	}
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		err := db.InsertNoteTx(tx, n)
		if errors.Is(err, apperr.ErrAlreadyExists) {
			// Raced with another binder; the re-read below decides.
			return nil
		}
		return err
	})
}

// UpdateNoteTitle refreshes the denormalized title after an edit.
func (db *DB) UpdateNoteTitle(ctx context.Context, id, title string, updatedAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE notes SET title = ?, updated_at = ? WHERE id = ?`,
		title, updatedAt.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("ledger: update note title: %w", err)
	}
	return nil
}

// DeleteNoteTx removes a note binding inside an entity-deletion transaction.
func (db *DB) DeleteNoteTx(tx *sql.Tx, id string) error {
	_, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ledger: delete note: %w", err)
	}
	return nil
}

// ListNotes returns all notes for an owner ordered by path.
func (db *DB) ListNotes(ctx context.Context, owner string) ([]models.Note, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, owner_id, relative_path, title, created_at, updated_at
		FROM notes WHERE owner_id = ? ORDER BY relative_path
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("ledger: list notes: %w", err)
	}
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		var n models.Note
		var created, updated int64
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.RelativePath, &n.Title, &created, &updated); err != nil {
			return nil, err
		}
		n.CreatedAt = time.Unix(0, created)
		n.UpdatedAt = time.Unix(0, updated)
		out = append(out, n)
	}
	return out, rows.Err()
}

// NoteTitles returns id -> (path, title) for a set of note ids. Used to
// enrich search hits without N queries.
func (db *DB) NoteTitles(ctx context.Context, ids []string) (map[string]models.Note, error) {
	out := make(map[string]models.Note, len(ids))
	for _, id := range ids {
		n, err := db.GetNote(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = *n
	}
	return out, nil
}
