package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testFS(t *testing.T) (*FS, string) {
	t.Helper()
	dir := t.TempDir()
	f, err := NewFS(dir, ".md")
	if err != nil {
		t.Fatal(err)
	}
	return f, dir
}

func TestWriteReadRoundTrip(t *testing.T) {
	f, _ := testFS(t)
	if err := f.Write("notes/a.md", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	data, err := f.Read("notes/a.md")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("read back %q, want hello", data)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	f, dir := testFS(t)
	if err := f.Write("a.md", []byte("x")); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "a.md" {
			t.Errorf("unexpected leftover file: %s", e.Name())
		}
	}
}

func TestSafePathRejectsTraversal(t *testing.T) {
	f, _ := testFS(t)
	if _, err := f.Read("../outside.md"); err == nil {
		t.Error("expected traversal to be rejected")
	}
	if err := f.Write("/etc/evil.md", []byte("x")); err == nil {
		t.Error("expected absolute path to be rejected")
	}
}

func TestRel(t *testing.T) {
	f, dir := testFS(t)
	rel, err := f.Rel(filepath.Join(dir, "sub", "x.md"))
	if err != nil {
		t.Fatal(err)
	}
	if rel != filepath.Join("sub", "x.md") {
		t.Errorf("rel = %q", rel)
	}

	if _, err := f.Rel(filepath.Join(dir, "..", "other", "x.md")); err == nil {
		t.Error("expected path outside root to be rejected")
	}
}

func TestListFiltersTrackedExtension(t *testing.T) {
	f, _ := testFS(t)
	if err := f.Write("a.md", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := f.Write("b.txt", []byte("b")); err != nil {
		t.Fatal(err)
	}
	metas, err := f.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 1 || metas[0].Path != "a.md" {
		t.Errorf("list = %+v, want only a.md", metas)
	}
	if metas[0].Checksum == "" {
		t.Error("list should include checksums")
	}
}

func TestReadMissingFile(t *testing.T) {
	f, _ := testFS(t)
	_, err := f.Read("missing.md")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("want os.ErrNotExist in chain, got %v", err)
	}
}
