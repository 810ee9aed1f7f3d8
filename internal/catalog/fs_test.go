package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"shrinkray/internal/services"
)

func writeFixture(t *testing.T, root, name string, size int) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestListCandidatesFiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "b/second.mov", 100)
	writeFixture(t, root, "a/first.mp4", 100)
	writeFixture(t, root, "notes.txt", 100)
	writeFixture(t, root, "tiny.mov", 5)

	cat := NewFS(root)
	got, err := cat.ListCandidates(context.Background(), Filter{MinSizeBytes: 50})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Title != "first" || got[1].Title != "second" {
		t.Fatalf("order wrong: %q then %q", got[0].Title, got[1].Title)
	}
	if got[0].SizeBytes != 100 {
		t.Fatalf("SizeBytes = %d", got[0].SizeBytes)
	}
}

func TestListCandidatesCustomExtensions(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "clip.webm", 10)
	writeFixture(t, root, "clip.mov", 10)

	got, err := NewFS(root).ListCandidates(context.Background(), Filter{Extensions: []string{".webm"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || filepath.Ext(got[0].Ref) != ".webm" {
		t.Fatalf("unexpected candidates: %+v", got)
	}
}

func TestExportStagesCopy(t *testing.T) {
	root := t.TempDir()
	src := writeFixture(t, root, "clip.mov", 64)
	dest := t.TempDir()

	staged, err := NewFS(root).Export(context.Background(), Descriptor{Ref: src}, dest)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(staged) != dest {
		t.Fatalf("staged outside dest dir: %s", staged)
	}
	info, err := os.Stat(staged)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 64 {
		t.Fatalf("staged size = %d", info.Size())
	}
}

func TestExportMissingSourceIsNotAvailable(t *testing.T) {
	_, err := NewFS(t.TempDir()).Export(context.Background(), Descriptor{Ref: "/gone.mov"}, t.TempDir())
	if !errors.Is(err, services.ErrNotAvailable) {
		t.Fatalf("expected ErrNotAvailable, got %v", err)
	}
}
