package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Aman-CERP/lexindex/internal/gitignore"
)

// Crawler discovers indexable files under a set of roots.
type Crawler struct {
	opts       Options
	dirDeny    map[string]struct{}
	pathParts  []string
	extensions map[string]struct{}

	mu      sync.Mutex
	ignores map[string]*gitignore.Matcher
}

// New creates a Crawler. It fails only on malformed exclude globs.
func New(opts Options) (*Crawler, error) {
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = DefaultMaxRecords
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	for _, g := range opts.ExcludeGlobs {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("invalid exclude glob %q", g)
		}
	}

	c := &Crawler{
		opts:       opts,
		dirDeny:    make(map[string]struct{}, len(opts.ExcludeDirs)),
		extensions: make(map[string]struct{}),
		ignores:    make(map[string]*gitignore.Matcher),
	}
	for _, d := range opts.ExcludeDirs {
		c.dirDeny[d] = struct{}{}
	}
	for _, p := range opts.ExcludePathParts {
		if p != "" {
			c.pathParts = append(c.pathParts, strings.ToLower(p))
		}
	}
	for _, e := range DocumentExtensions {
		c.extensions[e] = struct{}{}
	}
	if opts.EnableOCR {
		for _, e := range ImageExtensions {
			c.extensions[e] = struct{}{}
		}
	}
	return c, nil
}

// Admits reports whether a file with this path would be crawled,
// ignoring size. The watcher uses it to filter events.
func (c *Crawler) Admits(root Root, path string) bool {
	if _, ok := c.extensions[strings.ToLower(filepath.Ext(path))]; !ok {
		return false
	}
	if c.excludedPath(path) {
		return false
	}
	for dir := filepath.Dir(path); len(dir) > len(root.Path); dir = filepath.Dir(dir) {
		if c.ExcludedDirName(filepath.Base(dir)) {
			return false
		}
	}
	return !c.excludedGlob(root.Path, path) && !c.ignored(root.Path, path, false)
}

// ExcludedDirName reports whether a directory with this name is pruned.
func (c *Crawler) ExcludedDirName(name string) bool {
	_, ok := c.dirDeny[name]
	return ok
}

// ExcludedDir reports whether the directory at path is pruned.
func (c *Crawler) ExcludedDir(root Root, path string) bool {
	return c.ExcludedDirName(filepath.Base(path)) || c.excludedPath(path) ||
		c.excludedGlob(root.Path, path) || c.ignored(root.Path, path, true)
}

// Crawl walks roots in order and returns at most MaxRecords records.
// Order follows the traversal and is not sorted. A cancelled context
// stops the walk and returns what was collected so far.
func (c *Crawler) Crawl(ctx context.Context, roots []Root) []FileRecord {
	var records []FileRecord

	for _, root := range roots {
		if len(records) >= c.opts.MaxRecords {
			break
		}
		info, err := os.Stat(root.Path)
		if err != nil || !info.IsDir() {
			slog.Warn("skipping root", slog.String("path", root.Path), slog.String("source", root.Source))
			continue
		}
		c.loadIgnore(root.Path)
		records = c.walk(ctx, root, records)
	}

	if len(records) >= c.opts.MaxRecords {
		slog.Warn("crawl stopped at record limit", slog.Int("limit", c.opts.MaxRecords))
	}
	return records
}

// walk uses an explicit stack so tree depth never limits the crawl.
func (c *Crawler) walk(ctx context.Context, root Root, records []FileRecord) []FileRecord {
	stack := []string{filepath.Clean(root.Path)}

	for len(stack) > 0 {
		if ctx.Err() != nil || len(records) >= c.opts.MaxRecords {
			return records
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			slog.Debug("cannot read directory", slog.String("path", dir), slog.String("error", err.Error()))
			continue
		}

		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())

			if entry.IsDir() {
				if c.ExcludedDir(root, full) {
					continue
				}
				stack = append(stack, full)
				continue
			}
			// Symlinks and other non-regular entries are not followed.
			if !entry.Type().IsRegular() {
				continue
			}

			if _, ok := c.extensions[strings.ToLower(filepath.Ext(full))]; !ok {
				continue
			}
			if c.excludedPath(full) || c.excludedGlob(root.Path, full) || c.ignored(root.Path, full, false) {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.Size() > c.opts.MaxFileSize {
				slog.Debug("skipping oversized file",
					slog.String("path", full),
					slog.Int64("size", info.Size()),
					slog.Int64("limit", c.opts.MaxFileSize))
				continue
			}

			records = append(records, FileRecord{
				Path:    full,
				Source:  NormalizeSource(root.Source),
				MtimeMs: MtimeMs(info.ModTime()),
				Size:    info.Size(),
			})
			if len(records) >= c.opts.MaxRecords {
				return records
			}
		}
	}
	return records
}

func (c *Crawler) excludedPath(path string) bool {
	if len(c.pathParts) == 0 {
		return false
	}
	lower := strings.ToLower(path)
	for _, p := range c.pathParts {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func (c *Crawler) excludedGlob(rootPath, path string) bool {
	if len(c.opts.ExcludeGlobs) == 0 {
		return false
	}
	rel, err := filepath.Rel(rootPath, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, g := range c.opts.ExcludeGlobs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

// loadIgnore rereads the root's ignore file so edits apply on the next crawl.
func (c *Crawler) loadIgnore(rootPath string) *gitignore.Matcher {
	if c.opts.IgnoreFile == "" {
		return nil
	}
	m, err := gitignore.Load(filepath.Join(rootPath, c.opts.IgnoreFile))
	if err != nil {
		slog.Warn("ignore file unreadable",
			slog.String("root", rootPath),
			slog.String("error", err.Error()))
		m = &gitignore.Matcher{}
	} else if m.Len() > 0 {
		slog.Debug("ignore rules loaded", slog.String("root", rootPath), slog.Int("rules", m.Len()))
	}

	c.mu.Lock()
	c.ignores[rootPath] = m
	c.mu.Unlock()
	return m
}

func (c *Crawler) ignored(rootPath, path string, isDir bool) bool {
	if c.opts.IgnoreFile == "" {
		return false
	}
	c.mu.Lock()
	m, ok := c.ignores[rootPath]
	c.mu.Unlock()
	if !ok {
		m = c.loadIgnore(rootPath)
	}
	if m.Len() == 0 {
		return false
	}
	rel, err := filepath.Rel(rootPath, path)
	if err != nil {
		return false
	}
	return m.Match(rel, isDir)
}
