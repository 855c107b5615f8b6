package syncer

import "sync"

// Health is the watcher's liveness signal. A lost notification channel
// means the vault silently drifts out of sync, so the failure is surfaced
// here and reported by the readiness endpoint instead of being swallowed.
type Health struct {
	mu    sync.Mutex
	ready bool
	err   error
}

// Set records a failure. A nil err clears the signal and marks the
// watcher ready.
func (h *Health) Set(err error) {
	h.mu.Lock()
	h.err = err
	if err == nil {
		h.ready = true
	}
	h.mu.Unlock()
}

// Ready reports whether the watcher has come up at least once.
func (h *Health) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// Err returns the current failure, or nil when healthy.
func (h *Health) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}
