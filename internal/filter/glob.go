package filter

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/felixonmars/watchexec/internal/event"
)

// Glob filters filesystem change events against watch and ignore patterns.
// Non-filesystem events always pass. When a project root is set, kept events
// are rewritten with a root-relative path for display; the decision itself is
// always made on the full path.
type Glob struct {
	root           string
	watchPatterns  []glob.Glob
	ignorePatterns []glob.Glob
	mu             sync.RWMutex
}

// NewGlob creates a glob filterer. root may be empty to disable rewriting.
func NewGlob(root string) *Glob {
	return &Glob{root: root}
}

// SetWatchPatterns compiles the watch patterns. With no watch patterns every
// path is considered watched.
func (g *Glob) SetWatchPatterns(patterns []string) error {
	compiled, err := compile(patterns)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.watchPatterns = compiled
	g.mu.Unlock()
	return nil
}

// SetIgnorePatterns compiles the ignore patterns.
func (g *Glob) SetIgnorePatterns(patterns []string) error {
	compiled, err := compile(patterns)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.ignorePatterns = compiled
	g.mu.Unlock()
	return nil
}

func compile(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}
		pattern = filepath.ToSlash(pattern)
		gl, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, gl)
	}
	return compiled, nil
}

// Apply implements Filterer.
func (g *Glob) Apply(ev event.Event) (event.Event, bool, error) {
	if ev.Type != event.TypeFileChange {
		return ev, true, nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	path := filepath.ToSlash(ev.Path)
	if matchAny(g.ignorePatterns, path) {
		return ev, false, nil
	}
	if len(g.watchPatterns) > 0 && !matchAny(g.watchPatterns, path) {
		return ev, false, nil
	}

	if g.root != "" {
		if rel, err := filepath.Rel(g.root, ev.Path); err == nil && !strings.HasPrefix(rel, "..") {
			ev.Path = rel
		}
	}
	return ev, true, nil
}

func matchAny(patterns []glob.Glob, path string) bool {
	for _, pattern := range patterns {
		if pattern.Match(path) {
			return true
		}
		if pattern.Match(filepath.Base(path)) {
			return true
		}
	}
	return false
}
