package vector

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/starford/laguz/internal/ledger"
)

func testStore(t *testing.T) *SQLite {
	t.Helper()
	f, err := os.CreateTemp("", "laguz-vector-test-*.db")
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
	return NewSQLite(db.Conn())
}

func TestPackUnpack(t *testing.T) {
	in := []float32{0.1, -2.5, 3.75, 0}
	out := Unpack(Pack(in))
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %v != %v", i, in[i], out[i])
		}
	}
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0}
	if got := Cosine(a, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors: %v, want 1", got)
	}
	if got := Cosine(a, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors: %v, want 0", got)
	}
	if got := Cosine(a, []float32{0, 0}); got != 0 {
		t.Errorf("zero vector: %v, want 0", got)
	}
	if got := Cosine(a, []float32{1, 0, 0}); got != 0 {
		t.Errorf("mismatched lengths: %v, want 0", got)
	}
}

func TestUpsertOverwrites(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, "n1", []float32{1, 0}, Metadata{Path: "a.md"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, "n1", []float32{0, 1}, Metadata{Path: "a.md"}); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(ctx, []float32{0, 1}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("re-upsert duplicated the row: %d hits", len(hits))
	}
	if math.Abs(hits[0].Score-1) > 1e-6 {
		t.Errorf("overwrite did not take: score %v", hits[0].Score)
	}
}

func TestSearchOrdersByScore(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	vecs := map[string][]float32{
		"close":   {0.9, 0.1},
		"closer":  {1, 0},
		"far":     {0, 1},
		"nowhere": {-1, 0},
	}
	for id, v := range vecs {
		if err := s.Upsert(ctx, id, v, Metadata{Path: id + ".md"}); err != nil {
			t.Fatal(err)
		}
	}

	hits, err := s.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].ID != "closer" || hits[1].ID != "close" {
		t.Errorf("order = %s, %s", hits[0].ID, hits[1].ID)
	}
	if hits[0].Metadata.Path != "closer.md" {
		t.Errorf("metadata lost: %+v", hits[0].Metadata)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, "n1", []float32{1}, Metadata{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "n1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "n1"); err != nil {
		t.Errorf("second delete should be a no-op: %v", err)
	}
	ok, err := s.Has(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("vector survived delete")
	}
}
