package syncer

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces bursts of touches to the same path into a single
// deferred check, fired one window after the last touch. Distinct paths
// are independent.
type Debouncer struct {
	window time.Duration
	fire   func(path string)
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingCheck
	stopped bool
}

type pendingCheck struct {
	timer    *time.Timer
	deadline time.Time
}

// NewDebouncer creates a debouncer that calls fire once per settled path.
func NewDebouncer(window time.Duration, fire func(path string), logger *slog.Logger) *Debouncer {
	return &Debouncer{
		window:  window,
		fire:    fire,
		logger:  logger,
		pending: make(map[string]*pendingCheck),
	}
}

// Touch registers a change to path. A touch while a check for the same
// path is already pending resets the pending check's due time rather than
// scheduling a second one.
func (d *Debouncer) Touch(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if p, ok := d.pending[path]; ok {
		p.deadline = time.Now().Add(d.window)
		p.timer.Reset(d.window)
		return
	}
	d.pending[path] = &pendingCheck{
		timer:    time.AfterFunc(d.window, func() { d.expire(path) }),
		deadline: time.Now().Add(d.window),
	}
}

// Cancel discards any pending check for path.
func (d *Debouncer) Cancel(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[path]; ok {
		p.timer.Stop()
		delete(d.pending, path)
	}
}

// Pending returns the number of paths with a scheduled check.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop discards all pending checks. The startup reconcile pass picks up
// anything dropped here on the next run.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	discarded := len(d.pending)
	for path, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, path)
	}
	if discarded > 0 {
		d.logger.Info("debounce: discarded pending checks on shutdown", slog.Int("count", discarded))
	}
}

// expire runs when a path's timer fires. A touch may have reset the
// deadline while this call was in flight; in that case the reset timer
// fires again later and this invocation does nothing.
func (d *Debouncer) expire(path string) {
	d.mu.Lock()
	p, ok := d.pending[path]
	if !ok || d.stopped {
		d.mu.Unlock()
		return
	}
	if time.Until(p.deadline) > time.Millisecond {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	d.mu.Unlock()

	d.logger.Debug("debounce: window elapsed", slog.String("path", path))
	d.fire(path)
}
