package syncer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/embedding"
	"github.com/starford/laguz/internal/ledger"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/vector"
)

// TextSource resolves an entity id to its canonical embeddable text. The
// note service implements this.
type TextSource interface {
	CanonicalText(ctx context.Context, noteID string) (*models.CanonicalText, error)
}

// Events receives sync lifecycle notifications: "embedded" or "degraded".
type Events func(kind, path, noteID string)

// errPermanent marks failures that retrying cannot fix.
var errPermanent = errors.New("permanent")

// PipelineConfig bounds the pipeline's concurrency and retry behavior.
type PipelineConfig struct {
	Owner       string
	Workers     int
	QueueSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	OpTimeout   time.Duration
}

// Pipeline runs dirty checks and embeddings on a bounded worker pool.
// Work for different paths runs concurrently; work for the same path is
// serialized by a per-path lock. For every job the vector upsert completes
// before the ledger advances, so a crash between the two leaves the ledger
// stale-but-consistent and the next check re-embeds.
type Pipeline struct {
	db       *ledger.DB
	vectors  vector.Store
	embedder embedding.Embedder
	texts    TextSource
	checker  *DirtyChecker
	logger   *slog.Logger
	events   Events
	cfg      PipelineConfig

	tasks chan task
	quit  chan struct{}
	wg    sync.WaitGroup

	mu    sync.Mutex
	locks map[string]*pathLock
}

type task func(ctx context.Context)

// pathLock serializes jobs for one path. refs counts holders and waiters,
// guarded by Pipeline.mu.
type pathLock struct {
	mu   sync.Mutex
	refs int
}

// NewPipeline wires the pipeline. events may be nil.
func NewPipeline(db *ledger.DB, vectors vector.Store, embedder embedding.Embedder,
	texts TextSource, checker *DirtyChecker, events Events,
	cfg PipelineConfig, logger *slog.Logger) *Pipeline {

	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 30 * time.Second
	}
	return &Pipeline{
		db:       db,
		vectors:  vectors,
		embedder: embedder,
		texts:    texts,
		checker:  checker,
		logger:   logger,
		events:   events,
		cfg:      cfg,
		tasks:    make(chan task, cfg.QueueSize),
		quit:     make(chan struct{}),
		locks:    make(map[string]*pathLock),
	}
}

// Start launches the worker pool.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-p.quit:
					return
				case <-ctx.Done():
					return
				case t := <-p.tasks:
					t(ctx)
				}
			}
		}()
	}
	p.logger.Info("pipeline: started", slog.Int("workers", p.cfg.Workers))
}

// Stop lets in-flight jobs finish and discards anything still queued.
func (p *Pipeline) Stop() {
	close(p.quit)
	p.wg.Wait()
	p.logger.Info("pipeline: stopped")
}

// EnqueueCheck schedules a dirty check for a settled path. Called by the
// debouncer and the startup reconcile.
func (p *Pipeline) EnqueueCheck(relPath string) {
	p.submit(func(ctx context.Context) {
		lk := p.acquirePath(relPath)
		defer p.releasePath(relPath, lk)
		p.runCheck(ctx, relPath)
	})
}

// EnqueueEntity schedules an embedding for an entity the caller already
// knows is dirty (API-driven writes bypass the watcher).
func (p *Pipeline) EnqueueEntity(noteID, relPath string) {
	p.submit(func(ctx context.Context) {
		lk := p.acquirePath(relPath)
		defer p.releasePath(relPath, lk)
		p.embedEntity(ctx, noteID, relPath)
	})
}

func (p *Pipeline) submit(t task) {
	select {
	case <-p.quit:
		p.logger.Warn("pipeline: dropped job after shutdown")
	case p.tasks <- t:
	}
}

// acquirePath serializes work on one path. Entries are refcounted so the
// map does not grow with every path ever touched.
func (p *Pipeline) acquirePath(relPath string) *pathLock {
	p.mu.Lock()
	lk, ok := p.locks[relPath]
	if !ok {
		lk = &pathLock{}
		p.locks[relPath] = lk
	}
	lk.refs++
	p.mu.Unlock()

	lk.mu.Lock()
	return lk
}

func (p *Pipeline) releasePath(relPath string, lk *pathLock) {
	lk.mu.Unlock()

	p.mu.Lock()
	lk.refs--
	if lk.refs == 0 {
		delete(p.locks, relPath)
	}
	p.mu.Unlock()
}

// runCheck performs the dirty check and, when dirty, embeds in the same
// task so a path never has a check and an embedding in flight at once.
// A failed read gets one more chance within the cycle before giving up.
func (p *Pipeline) runCheck(ctx context.Context, relPath string) {
	noteID, dirty, err := p.checker.Check(ctx, relPath)
	if err != nil {
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.BaseBackoff):
		}
		noteID, dirty, err = p.checker.Check(ctx, relPath)
	}
	if errors.Is(err, os.ErrNotExist) {
		// Still gone after the re-read: a genuine delete, not an
		// editor's atomic-save window. Nothing to do.
		p.logger.Info("pipeline: file vanished before check", slog.String("path", relPath))
		return
	}
	if err != nil {
		p.logger.Warn("pipeline: dirty check failed",
			slog.String("path", relPath), slog.String("error", err.Error()))
		return
	}
	if !dirty {
		return
	}
	p.embedEntity(ctx, noteID, relPath)
}

// embedEntity drives one entity through embed, vector upsert, and ledger
// advance, with bounded exponential backoff on transient failures. When
// the budget is exhausted the entity is marked degraded, not dropped
// silently.
func (p *Pipeline) embedEntity(ctx context.Context, noteID, relPath string) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		err := p.embedOnce(ctx, noteID, relPath)
		switch {
		case err == nil:
			p.logger.Info("pipeline: embedded",
				slog.String("path", relPath), slog.String("id", noteID))
			p.emit("embedded", relPath, noteID)
			return
		case errors.Is(err, errPermanent):
			return
		case errors.Is(err, apperr.ErrStale):
			// A newer embedding landed first. Current state is already
			// correct or a fresh check is queued behind us; do not
			// overwrite it.
			p.logger.Debug("pipeline: ledger ahead of this job",
				slog.String("path", relPath))
			return
		case ctx.Err() != nil:
			return
		}

		lastErr = err
		p.logger.Warn("pipeline: attempt failed",
			slog.String("path", relPath),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.backoff(attempt)):
		}
	}

	p.logger.Error("pipeline: retries exhausted, marking degraded",
		slog.String("path", relPath),
		slog.String("id", noteID),
		slog.String("error", lastErr.Error()))
	if err := p.db.MarkDegraded(ctx, p.cfg.Owner, relPath, time.Now()); err != nil {
		p.logger.Error("pipeline: degraded mark failed",
			slog.String("path", relPath), slog.String("error", err.Error()))
	}
	p.emit("degraded", relPath, noteID)
}

func (p *Pipeline) embedOnce(ctx context.Context, noteID, relPath string) error {
	opCtx, cancel := context.WithTimeout(ctx, p.cfg.OpTimeout)
	defer cancel()

	ct, err := p.texts.CanonicalText(opCtx, noteID)
	if errors.Is(err, apperr.ErrNotFound) {
		p.logger.Warn("pipeline: entity gone, dropping job",
			slog.String("id", noteID), slog.String("path", relPath))
		return errPermanent
	}
	if err != nil {
		return err
	}

	vec, err := p.embedder.Embed(opCtx, ct.Title+"\n\n"+ct.Body)
	if err != nil {
		return err
	}

	// Vector first, ledger second. If the upsert fails the ledger still
	// points at the previous consistent state and the job is retried.
	if err := p.vectors.Upsert(opCtx, noteID, vec, vector.Metadata{
		Path:  ct.Path,
		Title: ct.Title,
		Model: p.embedder.ModelName(),
	}); err != nil {
		return err
	}

	return p.db.AdvanceEmbedded(opCtx, ledger.AdvanceParams{
		OwnerID:      p.cfg.Owner,
		RelativePath: ct.Path,
		ContentHash:  ct.Hash,
		ModifiedAt:   time.Now(),
		EmbeddedAt:   time.Now(),
		ModelVersion: p.embedder.ModelName(),
		VectorRef:    noteID,
	})
}

func (p *Pipeline) backoff(attempt int) time.Duration {
	d := p.cfg.BaseBackoff << (attempt - 1)
	if d > time.Minute {
		d = time.Minute
	}
	return d
}

func (p *Pipeline) emit(kind, path, noteID string) {
	if p.events != nil {
		p.events(kind, path, noteID)
	}
}
