package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/starford/laguz/internal/models"
)

// InsertReminderTx creates a reminder row inside a transaction, so the
// idempotency guard can commit the reminder and its key record atomically.
func (db *DB) InsertReminderTx(tx *sql.Tx, r models.Reminder) error {
	var noteID any
	if r.NoteID != "" {
		noteID = r.NoteID
	}
	_, err := tx.Exec(`
		INSERT INTO reminders (id, owner_id, note_id, message, due_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.OwnerID, noteID, r.Message, r.DueAt.UnixNano(), r.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("ledger: insert reminder: %w", err)
	}
	return nil
}

// ListReminders returns all reminders for an owner ordered by due time.
func (db *DB) ListReminders(ctx context.Context, owner string) ([]models.Reminder, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, owner_id, note_id, message, due_at, created_at
		FROM reminders WHERE owner_id = ? ORDER BY due_at
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("ledger: list reminders: %w", err)
	}
	defer rows.Close()

	var out []models.Reminder
	for rows.Next() {
		var r models.Reminder
		var noteID sql.NullString
		var due, created int64
		if err := rows.Scan(&r.ID, &r.OwnerID, &noteID, &r.Message, &due, &created); err != nil {
			return nil, err
		}
		r.NoteID = noteID.String
		r.DueAt = time.Unix(0, due)
		r.CreatedAt = time.Unix(0, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountReminders returns the number of reminders for an owner.
func (db *DB) CountReminders(ctx context.Context, owner string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reminders WHERE owner_id = ?`, owner).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ledger: count reminders: %w", err)
	}
	return n, nil
}
