package syncer

import (
	"sync"
	"testing"
	"time"

	"github.com/starford/laguz/internal/testutil"
)

type fireRecorder struct {
	mu    sync.Mutex
	fires map[string][]time.Time
}

func newFireRecorder() *fireRecorder {
	return &fireRecorder{fires: make(map[string][]time.Time)}
}

func (r *fireRecorder) fire(path string) {
	r.mu.Lock()
	r.fires[path] = append(r.fires[path], time.Now())
	r.mu.Unlock()
}

func (r *fireRecorder) count(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fires[path])
}

func (r *fireRecorder) firstFire(path string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.fires[path]) == 0 {
		return time.Time{}, false
	}
	return r.fires[path][0], true
}

func TestDebounce_CoalescesBurst(t *testing.T) {
	rec := newFireRecorder()
	d := NewDebouncer(150*time.Millisecond, rec.fire, testutil.TestLogger(t))
	defer d.Stop()

	var lastTouch time.Time
	for i := 0; i < 5; i++ {
		d.Touch("a.md")
		lastTouch = time.Now()
		time.Sleep(20 * time.Millisecond)
	}

	testutil.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return rec.count("a.md") >= 1
	}, "debounced check never fired")

	// Settle, then confirm the burst produced exactly one check,
	// scheduled one window after the last touch.
	time.Sleep(300 * time.Millisecond)
	if got := rec.count("a.md"); got != 1 {
		t.Errorf("burst produced %d checks, want 1", got)
	}
	fired, _ := rec.firstFire("a.md")
	if elapsed := fired.Sub(lastTouch); elapsed < 100*time.Millisecond {
		t.Errorf("check fired %v after last touch, before the window elapsed", elapsed)
	}
}

func TestDebounce_DistinctPathsIndependent(t *testing.T) {
	rec := newFireRecorder()
	d := NewDebouncer(80*time.Millisecond, rec.fire, testutil.TestLogger(t))
	defer d.Stop()

	d.Touch("a.md")
	d.Touch("b.md")

	testutil.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return rec.count("a.md") == 1 && rec.count("b.md") == 1
	}, "each touched path should fire once")

	// Touching one path again does not disturb the other.
	d.Touch("a.md")
	time.Sleep(200 * time.Millisecond)
	if rec.count("b.md") != 1 {
		t.Errorf("b.md fired %d times, want 1", rec.count("b.md"))
	}
	if rec.count("a.md") != 2 {
		t.Errorf("a.md fired %d times, want 2", rec.count("a.md"))
	}
}

func TestDebounce_TouchResetsWindow(t *testing.T) {
	rec := newFireRecorder()
	d := NewDebouncer(120*time.Millisecond, rec.fire, testutil.TestLogger(t))
	defer d.Stop()

	d.Touch("a.md")
	time.Sleep(80 * time.Millisecond)
	d.Touch("a.md") // resets the pending window

	time.Sleep(80 * time.Millisecond)
	if rec.count("a.md") != 0 {
		t.Error("check fired before the reset window elapsed")
	}

	testutil.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return rec.count("a.md") == 1
	}, "reset check never fired")
}

func TestDebounce_Cancel(t *testing.T) {
	rec := newFireRecorder()
	d := NewDebouncer(60*time.Millisecond, rec.fire, testutil.TestLogger(t))
	defer d.Stop()

	d.Touch("a.md")
	d.Cancel("a.md")
	time.Sleep(150 * time.Millisecond)
	if rec.count("a.md") != 0 {
		t.Error("cancelled check still fired")
	}
	if d.Pending() != 0 {
		t.Errorf("pending = %d after cancel", d.Pending())
	}
}

func TestDebounce_StopDiscardsPending(t *testing.T) {
	rec := newFireRecorder()
	d := NewDebouncer(60*time.Millisecond, rec.fire, testutil.TestLogger(t))

	d.Touch("a.md")
	d.Touch("b.md")
	d.Stop()

	time.Sleep(150 * time.Millisecond)
	if rec.count("a.md")+rec.count("b.md") != 0 {
		t.Error("checks fired after Stop")
	}

	// Touches after Stop are ignored.
	d.Touch("c.md")
	if d.Pending() != 0 {
		t.Error("touch accepted after Stop")
	}
}
