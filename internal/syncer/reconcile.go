package syncer

import (
	"context"
	"log/slog"

	"github.com/starford/laguz/internal/ledger"
	"github.com/starford/laguz/internal/storage"
)

// Reconcile diffs the vault against the sync ledger at startup and
// schedules a check for every file whose hash differs or that the ledger
// has never seen. It covers edits made while the process was down and any
// checks the previous shutdown discarded. Ledger rows without a file on
// disk are reported but left alone; removal belongs to entity deletion.
func Reconcile(ctx context.Context, store storage.Provider, db *ledger.DB,
	owner string, enqueue func(path string), logger *slog.Logger) error {

	metas, err := store.List("")
	if err != nil {
		return err
	}
	known, err := db.AllHashes(ctx, owner)
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	var scheduled int
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if known[m.Path] == m.Checksum {
			continue
		}
		enqueue(m.Path)
		scheduled++
	}

	for p := range known {
		if _, ok := disk[p]; !ok {
			logger.Info("reconcile: tracked file missing on disk",
				slog.String("path", p))
		}
	}

	logger.Info("reconcile: completed",
		slog.Int("on_disk", len(metas)),
		slog.Int("scheduled", scheduled))
	return nil
}
