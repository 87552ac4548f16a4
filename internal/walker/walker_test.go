package walker

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fieldline/bulkpush/internal/logging"
	"github.com/fieldline/bulkpush/internal/models"
)

func makeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

func collect(t *testing.T, w *Walker) []string {
	t.Helper()
	var paths []string
	err := w.Walk(context.Background(), func(job models.UploadJob) error {
		paths = append(paths, job.Path)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	return paths
}

func TestWalkDeterministicOrder(t *testing.T) {
	root := makeTree(t, map[string]string{
		"b.txt":       "b",
		"a.txt":       "a",
		"sub/c.txt":   "c",
		"sub/a/d.txt": "d",
	})
	w, err := New(root, nil, logging.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	first := collect(t, w)
	want := []string{"a.txt", "b.txt", "sub/a/d.txt", "sub/c.txt"}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("order = %v, want %v", first, want)
	}

	// A second walk over the same tree yields the same sequence.
	second := collect(t, w)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("walk not restartable: %v vs %v", first, second)
	}
}

func TestWalkNeverYieldsExcluded(t *testing.T) {
	root := makeTree(t, map[string]string{
		"keep.txt":           "x",
		"skip.log":           "x",
		"build/out.bin":      "x",
		"build/deep/gen.txt": "x",
		"src/skip.log":       "x",
		"src/main.txt":       "x",
	})
	w, err := New(root, []string{"*.log", "build/**"}, logging.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	got := collect(t, w)
	want := []string{"keep.txt", "src/main.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("paths = %v, want %v", got, want)
	}
	for _, p := range got {
		if w.Excluded(p) {
			t.Errorf("walk yielded excluded path %q", p)
		}
	}
}

func TestExcludedPatterns(t *testing.T) {
	w := &Walker{exclude: []string{"**/node_modules/**", "*.tmp", "docs/**/draft.md"}}

	tests := []struct {
		path string
		want bool
	}{
		{"a/node_modules/pkg/index.js", true},
		{"node_modules/x", true},
		{"scratch.tmp", true},
		{"sub/dir/scratch.tmp", true},
		{"docs/v1/sub/draft.md", true},
		{"other/v1/draft.md", false},
		{"src/main.txt", false},
	}
	for _, tt := range tests {
		if got := w.Excluded(tt.path); got != tt.want {
			t.Errorf("Excluded(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestCount(t *testing.T) {
	root := makeTree(t, map[string]string{
		"a.txt":     "12345",
		"sub/b.txt": "123",
	})
	w, err := New(root, nil, logging.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	files, bytes, err := w.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if files != 2 || bytes != 8 {
		t.Errorf("count = %d files / %d bytes, want 2 / 8", files, bytes)
	}
}

func TestNewRejectsMissingRoot(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "nope"), nil, logging.NewLogger(io.Discard)); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestWalkContextCancel(t *testing.T) {
	root := makeTree(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	w, err := New(root, nil, logging.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = w.Walk(ctx, func(models.UploadJob) error {
		t.Fatal("callback ran after cancellation")
		return nil
	})
	if err == nil {
		t.Fatal("expected context error")
	}
}
