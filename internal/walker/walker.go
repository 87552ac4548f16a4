// Package walker enumerates the local tree into upload jobs.
//
// Enumeration is deterministic (lexical directory order), so a restarted
// run visits files in the same sequence and the idempotent writes turn
// already-transferred files into cheap skips.
package walker

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fieldline/bulkpush/internal/logging"
	"github.com/fieldline/bulkpush/internal/models"
)

// Walker produces UploadJobs for every regular file under a root,
// minus the excluded ones.
type Walker struct {
	root    string
	exclude []string
	log     *logging.Logger
}

// New creates a walker over root. The root must exist and be a
// directory. Exclude patterns are glob-style with ** support and are
// matched against the repository-relative path and the base name.
func New(root string, exclude []string, log *logging.Logger) (*Walker, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %q is not a directory", root)
	}

	return &Walker{
		root:    abs,
		exclude: exclude,
		log:     log,
	}, nil
}

// Root returns the absolute root path.
func (w *Walker) Root() string { return w.root }

// Walk calls fn for every includable file in lexical order. A non-nil
// error from fn or a cancelled context stops the walk. Directories
// matching an exclude pattern are pruned without descending.
func (w *Walker) Walk(ctx context.Context, fn func(models.UploadJob) error) error {
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are logged and skipped, not fatal.
			w.log.Warn().Str("path", path).Err(err).Msg("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return fmt.Errorf("failed to relativize %q: %w", path, err)
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if w.Excluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			w.log.Debug().Str("path", rel).Msg("skipping non-regular file")
			return nil
		}

		info, err := d.Info()
		if err != nil {
			w.log.Warn().Str("path", rel).Err(err).Msg("skipping unstattable file")
			return nil
		}

		return fn(models.UploadJob{
			Path:      rel,
			LocalPath: path,
			Size:      info.Size(),
		})
	})
}

// Count walks the tree without producing jobs and returns the total
// file count and byte size, for progress totals.
func (w *Walker) Count(ctx context.Context) (int, int64, error) {
	files := 0
	var bytes int64
	err := w.Walk(ctx, func(job models.UploadJob) error {
		files++
		bytes += job.Size
		return nil
	})
	return files, bytes, err
}

// Excluded reports whether a repository-relative path matches any
// exclude pattern. Patterns match the full path or the base name.
func (w *Walker) Excluded(rel string) bool {
	base := filepath.Base(rel)
	for _, pattern := range w.exclude {
		pattern = filepath.ToSlash(pattern)
		if matchPattern(rel, pattern) {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// matchPattern matches a slash-separated path against a glob pattern,
// with ** for multi-directory matching.
func matchPattern(path, pattern string) bool {
	if strings.Contains(pattern, "**") {
		return matchDoubleStar(path, pattern)
	}
	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	return matched
}

// matchDoubleStar handles the ** cases:
//   - "**/foo.txt" matches "foo.txt", "a/foo.txt", "a/b/foo.txt"
//   - "build/**" matches "build" and anything under it
//   - "a/**/b.txt" matches with any number of directories between
func matchDoubleStar(path, pattern string) bool {
	if strings.HasPrefix(pattern, "**/") {
		suffix := pattern[3:]
		parts := strings.Split(path, "/")
		for i := range parts {
			if matchPattern(strings.Join(parts[i:], "/"), suffix) {
				return true
			}
		}
		return false
	}

	if strings.HasSuffix(pattern, "/**") {
		prefix := pattern[:len(pattern)-3]
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
		parts := strings.Split(path, "/")
		for i := 1; i <= len(parts); i++ {
			if matched, _ := filepath.Match(prefix, strings.Join(parts[:i], "/")); matched {
				return true
			}
		}
		return false
	}

	if idx := strings.Index(pattern, "/**/"); idx != -1 {
		prefix := pattern[:idx]
		suffix := pattern[idx+4:]
		parts := strings.Split(path, "/")
		for i := 1; i < len(parts); i++ {
			if matched, _ := filepath.Match(prefix, strings.Join(parts[:i], "/")); matched {
				for j := i; j <= len(parts); j++ {
					if matchPattern(strings.Join(parts[j:], "/"), suffix) {
						return true
					}
				}
			}
		}
		return false
	}

	if pattern == "**" {
		return true
	}

	matched, _ := filepath.Match(strings.ReplaceAll(pattern, "**", "*"), path)
	return matched
}
