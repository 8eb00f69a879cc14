// Package watcher watches the document roots and turns bursts of file
// changes into a single debounced reindex.
//
// fsnotify is used where the platform supports it; otherwise the roots are
// re-crawled on an interval and compared against the previous snapshot.
// Directories the crawler prunes are never watched, and file events are
// filtered through the crawler's admission rules so edits to unrelated
// files do not trigger work.
package watcher
