package parser

import (
	"strings"
	"testing"
)

func TestParse_FrontmatterID(t *testing.T) {
	data := []byte("---\nid: 01JF8ZX2K3\ntitle: Groceries\n---\n# Groceries\n\nmilk, eggs\n")
	res, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "01JF8ZX2K3" {
		t.Errorf("id = %q, want 01JF8ZX2K3", res.ID)
	}
	if res.Title != "Groceries" {
		t.Errorf("title = %q, want Groceries", res.Title)
	}
	if !strings.Contains(res.Body, "milk, eggs") {
		t.Errorf("body lost content: %q", res.Body)
	}
}

func TestParse_NumericID(t *testing.T) {
	res, err := Parse([]byte("---\nid: 42\n---\nbody\n"))
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "42" {
		t.Errorf("numeric id = %q, want 42", res.ID)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	res, err := Parse([]byte("# Just a heading\n\ntext\n"))
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "" {
		t.Errorf("expected empty id, got %q", res.ID)
	}
	if res.Title != "Just a heading" {
		t.Errorf("title = %q, want heading fallback", res.Title)
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	data := []byte("---\nid: [unclosed\n---\nbody\n")
	res, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "" {
		t.Errorf("malformed front-matter should yield no id, got %q", res.ID)
	}
	if res.Body == "" {
		t.Error("malformed front-matter should fall back to raw body")
	}
}

func TestParse_UnclosedFrontmatter(t *testing.T) {
	res, err := Parse([]byte("---\nid: abc\nno closing delimiter"))
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "" {
		t.Errorf("unclosed front-matter should yield no id, got %q", res.ID)
	}
}

func TestParseIdentifier_NonScalar(t *testing.T) {
	fm := map[string]interface{}{"id": []interface{}{"a", "b"}}
	if got := ParseIdentifier(fm); got != "" {
		t.Errorf("list id should be rejected, got %q", got)
	}
}

func TestCompose_RoundTrip(t *testing.T) {
	data := Compose("01JF8ZX2K3", "Groceries", "milk, eggs")
	res, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "01JF8ZX2K3" || res.Title != "Groceries" {
		t.Errorf("round trip lost header: id=%q title=%q", res.ID, res.Title)
	}
	if strings.TrimSpace(res.Body) != "milk, eggs" {
		t.Errorf("round trip lost body: %q", res.Body)
	}
}
