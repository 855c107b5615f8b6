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

// GetIdempotencyRecord returns the record for (owner, endpoint, key), or
// apperr.ErrNotFound. Expired records are treated as absent.
func (db *DB) GetIdempotencyRecord(ctx context.Context, owner, endpoint, key string, now time.Time) (*models.IdempotencyRecord, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT owner_id, endpoint, idempotency_key, request_fingerprint,
		       response_status, response_body, created_at, expires_at
		FROM idempotency_records
		WHERE owner_id = ? AND endpoint = ? AND idempotency_key = ? AND expires_at > ?
	`, owner, endpoint, key, now.Unix())

	var rec models.IdempotencyRecord
	var created, expires int64
	err := row.Scan(&rec.OwnerID, &rec.Endpoint, &rec.Key, &rec.RequestFingerprint,
		&rec.ResponseStatus, &rec.ResponseBody, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: scan idempotency record: %w", err)
	}
	rec.CreatedAt = time.Unix(created, 0)
	rec.ExpiresAt = time.Unix(expires, 0)
	return &rec, nil
}

// InsertIdempotencyRecordTx persists a record inside the same transaction
// as the guarded operation's own writes. An expired row under the same key
// is cleared first so the key becomes reusable after its TTL even when the
// sweep lags. A live duplicate surfaces as apperr.ErrAlreadyExists, which
// the guard resolves by re-reading the winner's record.
func (db *DB) InsertIdempotencyRecordTx(tx *sql.Tx, rec models.IdempotencyRecord) error {
	_, err := tx.Exec(`
		DELETE FROM idempotency_records
		WHERE owner_id = ? AND endpoint = ? AND idempotency_key = ? AND expires_at <= ?
	`, rec.OwnerID, rec.Endpoint, rec.Key, rec.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("ledger: clear expired idempotency key: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO idempotency_records
			(owner_id, endpoint, idempotency_key, request_fingerprint,
			 response_status, response_body, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.OwnerID, rec.Endpoint, rec.Key, rec.RequestFingerprint,
		rec.ResponseStatus, rec.ResponseBody, rec.CreatedAt.Unix(), rec.ExpiresAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("ledger: insert idempotency record: %w", err)
	}
	return nil
}

// SweepExpiredIdempotency deletes records whose TTL has passed and returns
// how many were removed.
func (db *DB) SweepExpiredIdempotency(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM idempotency_records WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("ledger: sweep idempotency: %w", err)
	}
	return res.RowsAffected()
}
