package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/checksum"
	"github.com/starford/laguz/internal/ledger"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/parser"
	"github.com/starford/laguz/internal/storage"
)

// DirtyChecker decides whether a settled path needs re-embedding by
// comparing its current content hash against the sync ledger.
type DirtyChecker struct {
	store  storage.Provider
	db     *ledger.DB
	owner  string
	logger *slog.Logger
}

// NewDirtyChecker creates a checker for one owner's vault.
func NewDirtyChecker(store storage.Provider, db *ledger.DB, owner string, logger *slog.Logger) *DirtyChecker {
	return &DirtyChecker{store: store, db: db, owner: owner, logger: logger}
}

// Check reads and hashes the file at relPath. It returns the bound note id
// and true when the content differs from the ledger and carries a usable
// identifier. Read errors, a vanished file included, are returned so the
// caller can retry within the same cycle; data errors (missing or
// conflicting id) are logged and reported as not-dirty, since they need an
// edit, not a retry.
func (c *DirtyChecker) Check(ctx context.Context, relPath string) (string, bool, error) {
	data, err := c.store.Read(relPath)
	if err != nil {
		return "", false, err
	}

	hash := checksum.Sum(data)
	tf, err := c.db.GetTrackedFile(ctx, c.owner, relPath)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return "", false, err
	}
	// Unchanged content is a no-op, guarding against spurious notifications
	// and redundant saves. A degraded row is the exception: a touch is the
	// operator's way of retriggering it.
	if tf != nil && tf.LastEmbeddedAt != nil && tf.ContentHash == hash && !tf.Degraded {
		c.logger.Debug("checker: content unchanged", slog.String("path", relPath))
		return "", false, nil
	}

	res, err := parser.Parse(data)
	if err != nil {
		c.logger.Warn("checker: unparseable file",
			slog.String("path", relPath), slog.String("error", err.Error()))
		return "", false, nil
	}
	if res.ID == "" {
		c.logger.Warn("checker: no identifier in front-matter, not embeddable",
			slog.String("path", relPath))
		return "", false, nil
	}

	now := time.Now()
	err = c.db.BindNote(ctx, models.Note{
		ID: res.ID, OwnerID: c.owner, RelativePath: relPath,
		Title: res.Title, CreatedAt: now, UpdatedAt: now,
	})
	if errors.Is(err, apperr.ErrConflict) {
		c.logger.Warn("checker: identifier already bound to a different path",
			slog.String("path", relPath), slog.String("id", res.ID))
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if err := c.db.UpdateNoteTitle(ctx, res.ID, res.Title, now); err != nil {
		c.logger.Warn("checker: title refresh failed",
			slog.String("id", res.ID), slog.String("error", err.Error()))
	}

	return res.ID, true, nil
}
