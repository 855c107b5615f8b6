// Package search answers semantic queries over embedded notes.
package search

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/embedding"
	"github.com/starford/laguz/internal/ledger"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/vector"
)

// DefaultLimit caps searches that do not ask for a specific result count.
const DefaultLimit = 10

// Searcher embeds a query with the same model the pipeline uses and ranks
// stored vectors against it.
type Searcher struct {
	embedder embedding.Embedder
	vectors  vector.Store
	db       *ledger.DB
	owner    string
	logger   *slog.Logger
}

// NewSearcher wires a searcher for one owner's vault.
func NewSearcher(embedder embedding.Embedder, vectors vector.Store, db *ledger.DB, owner string, logger *slog.Logger) *Searcher {
	return &Searcher{embedder: embedder, vectors: vectors, db: db, owner: owner, logger: logger}
}

// Search returns up to k notes ranked by similarity to the query. Hits
// whose source file is currently degraded are flagged rather than hidden:
// the stored vector may lag the file on disk.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]models.SearchHit, error) {
	if k <= 0 {
		k = DefaultLimit
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := s.vectors.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}

	hits := make([]models.SearchHit, 0, len(matches))
	for _, m := range matches {
		hit := models.SearchHit{
			NoteID: m.ID,
			Path:   m.Metadata.Path,
			Title:  m.Metadata.Title,
			Score:  m.Score,
		}
		tf, err := s.db.GetTrackedFile(ctx, s.owner, m.Metadata.Path)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			// Vector without a ledger row; keep the hit, nothing to flag.
		case err != nil:
			return nil, err
		default:
			hit.Degraded = tf.Degraded
		}
		hits = append(hits, hit)
	}
	s.logger.Debug("search: completed",
		slog.Int("hits", len(hits)), slog.Int("limit", k))
	return hits, nil
}
