package embedding

import (
	"context"
	"math"
	"testing"
)

func TestLocal_Deterministic(t *testing.T) {
	e := NewLocal(64)
	a, err := e.Embed(context.Background(), "the quick brown fox")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(context.Background(), "the quick brown fox")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("identical text produced different vectors at %d", i)
		}
	}
}

func TestLocal_Normalized(t *testing.T) {
	e := NewLocal(64)
	v, err := e.Embed(context.Background(), "some text to embed")
	if err != nil {
		t.Fatal(err)
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-6 {
		t.Errorf("norm = %v, want 1", norm)
	}
}

func TestLocal_EmptyText(t *testing.T) {
	e := NewLocal(16)
	v, err := e.Embed(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 16 {
		t.Errorf("len = %d, want 16", len(v))
	}
	for _, x := range v {
		if x != 0 {
			t.Error("empty text should embed to the zero vector")
			break
		}
	}
}

func TestLocal_DifferentTextDiffers(t *testing.T) {
	e := NewLocal(256)
	a, _ := e.Embed(context.Background(), "grocery list milk eggs")
	b, _ := e.Embed(context.Background(), "quarterly revenue projections")
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("unrelated text embedded identically")
	}
}
