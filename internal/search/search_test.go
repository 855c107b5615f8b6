package search

import (
	"context"
	"testing"
	"time"

	"github.com/starford/laguz/internal/embedding"
	"github.com/starford/laguz/internal/ledger"
	"github.com/starford/laguz/internal/testutil"
	"github.com/starford/laguz/internal/vector"
)

const testOwner = "owner-1"

func seedNote(t *testing.T, db *ledger.DB, store vector.Store, emb embedding.Embedder, id, path, title, body string) {
	t.Helper()
	ctx := context.Background()
	vec, err := emb.Embed(ctx, title+"\n\n"+body)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(ctx, id, vec, vector.Metadata{Path: path, Title: title, Model: emb.ModelName()}); err != nil {
		t.Fatal(err)
	}
	if err := db.AdvanceEmbedded(ctx, ledger.AdvanceParams{
		OwnerID:      testOwner,
		RelativePath: path,
		ContentHash:  "hash-" + id,
		ModifiedAt:   time.Now(),
		EmbeddedAt:   time.Now(),
		ModelVersion: emb.ModelName(),
		VectorRef:    id,
	}); err != nil {
		t.Fatal(err)
	}
}

func TestSearch_RanksByRelevance(t *testing.T) {
	db := testutil.TestLedger(t)
	store := vector.NewSQLite(db.Conn())
	emb := embedding.NewLocal(64)
	s := NewSearcher(emb, store, db, testOwner, testutil.TestLogger(t))

	seedNote(t, db, store, emb, "n1", "cooking.md", "Pasta", "boil salted water and cook the pasta")
	seedNote(t, db, store, emb, "n2", "infra.md", "Deploys", "roll the deploy forward and watch the dashboards")

	hits, err := s.Search(context.Background(), "cook pasta in salted water", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].NoteID != "n1" {
		t.Errorf("top hit = %s, want n1", hits[0].NoteID)
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("scores not descending: %f then %f", hits[0].Score, hits[1].Score)
	}
	if hits[0].Path != "cooking.md" || hits[0].Title != "Pasta" {
		t.Errorf("metadata not carried: %+v", hits[0])
	}
}

func TestSearch_FlagsDegradedHits(t *testing.T) {
	db := testutil.TestLedger(t)
	store := vector.NewSQLite(db.Conn())
	emb := embedding.NewLocal(64)
	s := NewSearcher(emb, store, db, testOwner, testutil.TestLogger(t))

	seedNote(t, db, store, emb, "n1", "stale.md", "Stale", "this embedding lags the file")
	if err := db.MarkDegraded(context.Background(), testOwner, "stale.md", time.Now()); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(context.Background(), "stale embedding", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if !hits[0].Degraded {
		t.Error("degraded hit not flagged")
	}
}

func TestSearch_DefaultLimit(t *testing.T) {
	db := testutil.TestLedger(t)
	store := vector.NewSQLite(db.Conn())
	emb := embedding.NewLocal(64)
	s := NewSearcher(emb, store, db, testOwner, testutil.TestLogger(t))

	hits, err := s.Search(context.Background(), "anything", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("empty store returned %d hits", len(hits))
	}
}
