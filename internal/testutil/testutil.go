// Package testutil provides shared test helpers for setting up vaults and
// ledgers.
package testutil

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/laguz/internal/ledger"
	"github.com/starford/laguz/internal/storage"
)

// TestLedger creates a temporary migrated SQLite ledger that is cleaned up
// with the test.
func TestLedger(t *testing.T) *ledger.DB {
	t.Helper()
	f, err := os.CreateTemp("", "laguz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := ledger.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with an FS provider
// tracking .md files.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir, ".md")
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestLogger returns a quiet structured logger for tests.
func TestLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
