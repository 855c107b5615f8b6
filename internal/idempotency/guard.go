// Package idempotency makes mutating operations safely retryable: a
// request replayed with the same key and body returns the recorded
// response instead of re-executing side effects.
package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/checksum"
	"github.com/starford/laguz/internal/ledger"
	"github.com/starford/laguz/internal/models"
)

// Operation is the guarded mutation. It runs inside a transaction shared
// with the key record so either both commit or neither does, and returns
// the response to cache.
type Operation func(tx *sql.Tx) (status int, body []byte, err error)

// Result is what the caller sends back to the client.
type Result struct {
	Status int
	Body   []byte
	// Replayed is true when the response came from the ledger rather than
	// a fresh execution.
	Replayed bool
}

// Guard wraps mutating operations with the keyed exactly-once contract.
type Guard struct {
	db     *ledger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewGuard creates a guard whose records expire after ttl.
func NewGuard(db *ledger.DB, ttl time.Duration, logger *slog.Logger) *Guard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Guard{db: db, ttl: ttl, logger: logger}
}

// Execute runs op under the idempotency contract for (owner, endpoint,
// key, body):
//
//   - empty key: no dedup requested, op runs in its own transaction;
//   - known key, same body: the recorded response is returned, op does
//     not run;
//   - known key, different body: apperr.ErrKeyReuse, op does not run;
//   - unknown key: op runs, and its response is recorded in the same
//     transaction as its side effects.
//
// Two concurrent first requests race on the unique key constraint; the
// loser's transaction rolls back and the winner's record is returned.
func (g *Guard) Execute(ctx context.Context, owner, endpoint, key string, body []byte, op Operation) (Result, error) {
	if key == "" {
		var res Result
		err := g.db.WithTx(ctx, func(tx *sql.Tx) error {
			status, respBody, opErr := op(tx)
			if opErr != nil {
				return opErr
			}
			res = Result{Status: status, Body: respBody}
			return nil
		})
		return res, err
	}

	fingerprint := checksum.Fingerprint(body)
	now := time.Now()

	if res, ok, err := g.replay(ctx, owner, endpoint, key, fingerprint, now); err != nil || ok {
		return res, err
	}

	var res Result
	err := g.db.WithTx(ctx, func(tx *sql.Tx) error {
		status, respBody, opErr := op(tx)
		if opErr != nil {
			return opErr
		}
		res = Result{Status: status, Body: respBody}
		return g.db.InsertIdempotencyRecordTx(tx, models.IdempotencyRecord{
			OwnerID:            owner,
			Endpoint:           endpoint,
			Key:                key,
			RequestFingerprint: fingerprint,
			ResponseStatus:     status,
			ResponseBody:       respBody,
			CreatedAt:          now,
			ExpiresAt:          now.Add(g.ttl),
		})
	})
	if errors.Is(err, apperr.ErrAlreadyExists) {
		// Lost the race against a concurrent request with the same key.
		// Our side effects rolled back; serve the winner's record.
		g.logger.Debug("idempotency: lost insert race, replaying winner",
			slog.String("endpoint", endpoint), slog.String("key", key))
		res, ok, rerr := g.replay(ctx, owner, endpoint, key, fingerprint, now)
		if rerr != nil {
			return Result{}, rerr
		}
		if !ok {
			// Winner vanished between insert and read; treat as transient.
			return Result{}, apperr.ErrConflict
		}
		return res, nil
	}
	return res, err
}

// replay returns the recorded response if a live record exists. A live
// record with a different fingerprint is key reuse, a client error.
func (g *Guard) replay(ctx context.Context, owner, endpoint, key, fingerprint string, now time.Time) (Result, bool, error) {
	rec, err := g.db.GetIdempotencyRecord(ctx, owner, endpoint, key, now)
	if errors.Is(err, apperr.ErrNotFound) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, err
	}
	if rec.RequestFingerprint != fingerprint {
		g.logger.Warn("idempotency: key reused with different payload",
			slog.String("endpoint", endpoint), slog.String("key", key))
		return Result{}, false, apperr.ErrKeyReuse
	}
	return Result{Status: rec.ResponseStatus, Body: rec.ResponseBody, Replayed: true}, true, nil
}
