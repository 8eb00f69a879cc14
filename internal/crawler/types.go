// Package crawler walks document roots and yields the files lexindex can
// index. The walk is iterative, bounded, and never fails because of a
// single unreadable entry.
package crawler

import (
	"path/filepath"
	"strings"
	"time"
)

// Root is a directory to crawl and the source tag for its documents.
type Root struct {
	Path   string
	Source string
}

// NormalizeSource returns the stored form of a source tag. Search filters
// are lowercased, so tags are too.
func NormalizeSource(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FileRecord identifies one crawled file.
type FileRecord struct {
	// Path is absolute and unique across roots.
	Path    string
	Source  string
	MtimeMs float64
	Size    int64
}

// Ext returns the lowercased extension including the dot.
func (r FileRecord) Ext() string {
	return strings.ToLower(filepath.Ext(r.Path))
}

// ModTime returns MtimeMs as a time.Time.
func (r FileRecord) ModTime() time.Time {
	return time.UnixMilli(int64(r.MtimeMs))
}

// MtimeMs converts a modification time to fractional milliseconds.
func MtimeMs(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e6
}

// DocumentExtensions are always admitted.
var DocumentExtensions = []string{".txt", ".md", ".markdown", ".pdf", ".docx", ".doc"}

// ImageExtensions are admitted only when OCR is enabled.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".tif", ".tiff"}

// Defaults.
const (
	DefaultMaxRecords  = 20000
	DefaultMaxFileSize = 25 * 1024 * 1024
	DefaultIgnoreFile  = ".lexindexignore"
)

// Options configures a Crawler.
type Options struct {
	// MaxRecords bounds the number of records one crawl returns.
	MaxRecords int
	// MaxFileSize skips larger files (bytes).
	MaxFileSize int64
	// ExcludeDirs are exact directory names pruned before descending.
	ExcludeDirs []string
	// ExcludePathParts are case-insensitive substrings of the full path.
	ExcludePathParts []string
	// ExcludeGlobs are doublestar patterns over root-relative slash paths.
	ExcludeGlobs []string
	// IgnoreFile names a gitignore-syntax file read from each root's top
	// directory. Empty disables it.
	IgnoreFile string
	// EnableOCR admits image files.
	EnableOCR bool
}
