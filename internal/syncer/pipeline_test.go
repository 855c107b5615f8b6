package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/starford/laguz/internal/checksum"
	"github.com/starford/laguz/internal/embedding"
	"github.com/starford/laguz/internal/ledger"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/parser"
	"github.com/starford/laguz/internal/storage"
	"github.com/starford/laguz/internal/testutil"
	"github.com/starford/laguz/internal/vector"
)

// vaultTexts resolves canonical text straight from the vault, the same
// bytes the checker hashed.
type vaultTexts struct {
	store *storage.FS
	db    *ledger.DB
}

func (v *vaultTexts) CanonicalText(ctx context.Context, noteID string) (*models.CanonicalText, error) {
	n, err := v.db.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	data, err := v.store.Read(n.RelativePath)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return &models.CanonicalText{
		NoteID: noteID,
		Path:   n.RelativePath,
		Title:  res.Title,
		Body:   res.Body,
		Hash:   checksum.Sum(data),
	}, nil
}

// flakyStore fails the first failures upserts, then behaves.
type flakyStore struct {
	mu       sync.Mutex
	failures int
	upserts  int
	stored   map[string][]float32
}

func newFlakyStore(failures int) *flakyStore {
	return &flakyStore{failures: failures, stored: make(map[string][]float32)}
}

func (s *flakyStore) Upsert(_ context.Context, id string, vec []float32, _ vector.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.upserts <= s.failures {
		return errors.New("store unavailable")
	}
	s.stored[id] = vec
	return nil
}

func (s *flakyStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stored, id)
	return nil
}

func (s *flakyStore) Search(context.Context, []float32, int) ([]vector.Match, error) {
	return nil, nil
}

func (s *flakyStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

func (s *flakyStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.stored[id]
	return ok
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) record(kind, path, _ string) {
	e.mu.Lock()
	e.events = append(e.events, kind+":"+path)
	e.mu.Unlock()
}

func (e *eventLog) has(ev string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, got := range e.events {
		if got == ev {
			return true
		}
	}
	return false
}

type pipelineFixture struct {
	store    *storage.FS
	db       *ledger.DB
	vectors  *flakyStore
	events   *eventLog
	pipeline *Pipeline
}

func newPipelineFixture(t *testing.T, vectorFailures, maxAttempts int) *pipelineFixture {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestLedger(t)
	vectors := newFlakyStore(vectorFailures)
	events := &eventLog{}
	checker := NewDirtyChecker(store, db, testOwner, testutil.TestLogger(t))
	texts := &vaultTexts{store: store, db: db}

	p := NewPipeline(db, vectors, embedding.NewLocal(32), texts, checker, events.record,
		PipelineConfig{
			Owner:       testOwner,
			Workers:     2,
			MaxAttempts: maxAttempts,
			BaseBackoff: 5 * time.Millisecond,
			OpTimeout:   5 * time.Second,
		}, testutil.TestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	t.Cleanup(func() {
		p.Stop()
		cancel()
	})
	return &pipelineFixture{store: store, db: db, vectors: vectors, events: events, pipeline: p}
}

func TestPipeline_CheckEmbedsDirtyFile(t *testing.T) {
	f := newPipelineFixture(t, 0, 3)
	if err := f.store.Write("alpha.md", parser.Compose("note-1", "Alpha", "hello world")); err != nil {
		t.Fatal(err)
	}

	f.pipeline.EnqueueCheck("alpha.md")

	testutil.Eventually(t, 3*time.Second, 10*time.Millisecond, func() bool {
		return f.events.has("embedded:alpha.md")
	}, "file never embedded")

	if !f.vectors.has("note-1") {
		t.Error("vector missing after embed")
	}
	tf, err := f.db.GetTrackedFile(context.Background(), testOwner, "alpha.md")
	if err != nil {
		t.Fatal(err)
	}
	if tf.LastEmbeddedAt == nil || tf.Degraded {
		t.Errorf("tracked row not advanced: %+v", tf)
	}
	if tf.EmbeddingModelVersion != "local-hash-v1" {
		t.Errorf("model version = %q", tf.EmbeddingModelVersion)
	}
}

func TestPipeline_TransientFailureRetriesThenSucceeds(t *testing.T) {
	f := newPipelineFixture(t, 2, 5)
	if err := f.store.Write("alpha.md", parser.Compose("note-1", "Alpha", "retry me")); err != nil {
		t.Fatal(err)
	}

	f.pipeline.EnqueueCheck("alpha.md")

	testutil.Eventually(t, 3*time.Second, 10*time.Millisecond, func() bool {
		return f.events.has("embedded:alpha.md")
	}, "file never embedded despite retries")

	if got := f.vectors.upsertCount(); got != 3 {
		t.Errorf("upsert attempts = %d, want 3", got)
	}
	if f.events.has("degraded:alpha.md") {
		t.Error("degraded emitted for a recoverable failure")
	}
}

func TestPipeline_ExhaustedRetriesMarkDegraded(t *testing.T) {
	f := newPipelineFixture(t, 100, 3)
	if err := f.store.Write("alpha.md", parser.Compose("note-1", "Alpha", "doomed")); err != nil {
		t.Fatal(err)
	}

	f.pipeline.EnqueueCheck("alpha.md")

	testutil.Eventually(t, 3*time.Second, 10*time.Millisecond, func() bool {
		return f.events.has("degraded:alpha.md")
	}, "degraded never emitted")

	// Failed upserts must not advance the ledger: the row exists for the
	// degraded flag but carries no embedded state to lie about.
	tf, err := f.db.GetTrackedFile(context.Background(), testOwner, "alpha.md")
	if err != nil {
		t.Fatal(err)
	}
	if !tf.Degraded {
		t.Error("tracked row not degraded")
	}
	if tf.LastEmbeddedAt != nil {
		t.Error("ledger advanced despite every upsert failing")
	}
}

func TestPipeline_SecondCheckOnUnchangedFileIsNoOp(t *testing.T) {
	f := newPipelineFixture(t, 0, 3)
	if err := f.store.Write("alpha.md", parser.Compose("note-1", "Alpha", "stable")); err != nil {
		t.Fatal(err)
	}

	f.pipeline.EnqueueCheck("alpha.md")
	testutil.Eventually(t, 3*time.Second, 10*time.Millisecond, func() bool {
		return f.events.has("embedded:alpha.md")
	}, "file never embedded")

	f.pipeline.EnqueueCheck("alpha.md")
	time.Sleep(200 * time.Millisecond)
	if got := f.vectors.upsertCount(); got != 1 {
		t.Errorf("upserts = %d after re-check of unchanged file, want 1", got)
	}
}

func TestPipeline_FileRestoredBeforeRetryIsEmbedded(t *testing.T) {
	_, store := testutil.TestVault(t)
	db := testutil.TestLedger(t)
	vectors := newFlakyStore(0)
	events := &eventLog{}
	checker := NewDirtyChecker(store, db, testOwner, testutil.TestLogger(t))

	// A long backoff so the file can be put in place between the first
	// read, which misses it, and the re-read.
	p := NewPipeline(db, vectors, embedding.NewLocal(32), &vaultTexts{store: store, db: db}, checker, events.record,
		PipelineConfig{
			Owner:       testOwner,
			Workers:     1,
			MaxAttempts: 3,
			BaseBackoff: 300 * time.Millisecond,
			OpTimeout:   5 * time.Second,
		}, testutil.TestLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	t.Cleanup(func() {
		p.Stop()
		cancel()
	})

	p.EnqueueCheck("alpha.md")
	time.Sleep(50 * time.Millisecond)
	if err := store.Write("alpha.md", parser.Compose("note-1", "Alpha", "atomic save window")); err != nil {
		t.Fatal(err)
	}

	testutil.Eventually(t, 3*time.Second, 10*time.Millisecond, func() bool {
		return events.has("embedded:alpha.md")
	}, "file restored within the cycle never embedded")
}

func TestPipeline_CheckVanishedFileIsDropped(t *testing.T) {
	f := newPipelineFixture(t, 0, 3)

	f.pipeline.EnqueueCheck("gone.md")
	time.Sleep(200 * time.Millisecond)

	if got := f.vectors.upsertCount(); got != 0 {
		t.Errorf("upserts = %d for a deleted file, want 0", got)
	}
	if f.events.has("degraded:gone.md") {
		t.Error("deleted file marked degraded")
	}
}

func TestPipeline_PathLocksReleasedAfterJobs(t *testing.T) {
	f := newPipelineFixture(t, 0, 3)
	paths := []string{"a.md", "b.md", "c.md"}
	for _, path := range paths {
		if err := f.store.Write(path, parser.Compose("note-"+path, "N", "body")); err != nil {
			t.Fatal(err)
		}
		f.pipeline.EnqueueCheck(path)
	}

	testutil.Eventually(t, 3*time.Second, 10*time.Millisecond, func() bool {
		for _, path := range paths {
			if !f.events.has("embedded:" + path) {
				return false
			}
		}
		return true
	}, "not all files embedded")

	testutil.Eventually(t, time.Second, 10*time.Millisecond, func() bool {
		f.pipeline.mu.Lock()
		defer f.pipeline.mu.Unlock()
		return len(f.pipeline.locks) == 0
	}, "lock map kept entries for drained paths")
}

func TestPipeline_EnqueueEntityUnknownIDDropsJob(t *testing.T) {
	f := newPipelineFixture(t, 0, 3)

	f.pipeline.EnqueueEntity("ghost", "ghost.md")
	time.Sleep(200 * time.Millisecond)

	if got := f.vectors.upsertCount(); got != 0 {
		t.Errorf("upserts = %d for a missing entity, want 0", got)
	}
	if f.events.has("degraded:ghost.md") {
		t.Error("missing entity marked degraded instead of dropped")
	}
}
