// Package gitignore matches root-relative paths against rules written in
// gitignore syntax: blank lines and # comments, ! negation, a trailing /
// for directories only, and a leading or inner / anchoring the rule to
// the root. Unanchored rules match at any depth.
//
// As in git, a path under an ignored directory stays ignored even when a
// later rule negates the path itself.
package gitignore

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

type rule struct {
	glob    string
	negate  bool
	dirOnly bool
}

// Matcher is an immutable rule set, safe for concurrent use.
type Matcher struct {
	rules []rule
}

// Parse compiles rules from file content. Malformed rules are skipped.
func Parse(content string) *Matcher {
	m := &Matcher{}
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		if r, ok := compile(sc.Text()); ok {
			m.rules = append(m.rules, r)
		}
	}
	return m
}

// Load reads rules from path. A missing file yields an empty Matcher.
func Load(path string) (*Matcher, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Matcher{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ignore file: %w", err)
	}
	return Parse(string(data)), nil
}

func compile(line string) (rule, bool) {
	line = strings.TrimRight(line, "\r")
	// "\ " keeps one trailing space.
	if strings.HasSuffix(line, `\ `) {
		line = line[:len(line)-2] + " "
	} else {
		line = strings.TrimRight(line, " \t")
	}
	line = strings.TrimLeft(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	var r rule
	switch {
	case strings.HasPrefix(line, `\#`), strings.HasPrefix(line, `\!`):
		line = line[1:]
	case strings.HasPrefix(line, "!"):
		r.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	anchored := strings.Contains(line, "/")
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return rule{}, false
	}
	if !anchored && !strings.HasPrefix(line, "**/") {
		line = "**/" + line
	}
	if !doublestar.ValidatePattern(line) {
		return rule{}, false
	}
	r.glob = line
	return r, true
}

// Len returns the number of compiled rules.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rules)
}

// Match reports whether rel, relative to the ignore file's directory, is
// ignored. isDir says whether rel itself is a directory.
func (m *Matcher) Match(rel string, isDir bool) bool {
	if m.Len() == 0 {
		return false
	}
	rel = strings.TrimPrefix(path.Clean(filepath.ToSlash(rel)), "./")
	if rel == "." || rel == "" || rel == ".." || strings.HasPrefix(rel, "../") {
		return false
	}

	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if m.matchOne(strings.Join(parts[:i], "/"), true) {
			return true
		}
	}
	return m.matchOne(rel, isDir)
}

// matchOne applies every rule to p alone; the last matching rule wins.
func (m *Matcher) matchOne(p string, isDir bool) bool {
	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		if ok, _ := doublestar.Match(r.glob, p); ok {
			ignored = !r.negate
		}
	}
	return ignored
}
