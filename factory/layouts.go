/*
Package factory provides the built-in default layouts of the overlay.

PURPOSE:
  A grade without a user-saved layout falls back to a factory default, if
  one is registered. Defaults are plain layout documents, so a school can
  ship its own calibration for a template image without code changes.

JSON SCHEMA (one file per grade, named layout_grade_<g>.json):
  {
    "grade_s0_c0_p1": {"left": "212px", "top": "64px", "width": "30px", "height": "20px"},
    "overlay_obs_p1": {"left": "50px", "top": "600px", "width": "400px", "height": "25px"}
  }

KEY FEATURES:
  - Validates every rect (CSS lengths only)
  - Lookup returns a copy; callers may mutate it freely
  - Grades without a default simply miss; no positions are applied

USAGE:
  registry := factory.NewRegistry()
  if _, err := registry.LoadDir("./layouts"); err != nil {
      log.Fatal(err)
  }
  layout, ok := registry.Lookup(4)

SEE ALSO:
  - layout/engine.go: Falls back to the registry on load
  - boletin/document.go: Layout and Rect types
*/
package factory

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"github.com/warp/report-engine/boletin"
)

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds default layouts keyed by grade.
type Registry struct {
	mu      sync.RWMutex
	layouts map[boletin.Grade]boletin.Layout
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{layouts: make(map[boletin.Grade]boletin.Layout)}
}

// Register sets the default layout of a grade, replacing any previous one.
func (r *Registry) Register(grade boletin.Grade, layout boletin.Layout) error {
	if !grade.Valid() {
		return fmt.Errorf("%w: %d", boletin.ErrInvalidGrade, grade)
	}
	for id, rect := range layout {
		if !rect.Valid() {
			return fmt.Errorf("%w: field %q has a malformed rect", boletin.ErrInvalidLayout, id)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.layouts[grade] = layout.Clone()
	return nil
}

// Lookup returns a copy of a grade's default layout.
func (r *Registry) Lookup(grade boletin.Grade) (boletin.Layout, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.layouts[grade]
	if !ok {
		return nil, false
	}
	return l.Clone(), true
}

// Grades returns the grades with a registered default.
func (r *Registry) Grades() []boletin.Grade {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]boletin.Grade, 0, len(r.layouts))
	for g := boletin.MinGrade; g <= boletin.MaxGrade; g++ {
		if _, ok := r.layouts[g]; ok {
			out = append(out, g)
		}
	}
	return out
}

// =============================================================================
// LOADING
// =============================================================================

// ParseLayout decodes one default layout document.
func (r *Registry) ParseLayout(grade boletin.Grade, jsonStr string) error {
	layout, err := boletin.ParseLayout([]byte(jsonStr))
	if err != nil {
		return fmt.Errorf("failed to parse default layout for grade %d: %w", grade, err)
	}
	return r.Register(grade, layout)
}

var layoutFile = regexp.MustCompile(`^layout_grade_(\d+)\.json$`)

// LoadDir registers every layout_grade_<g>.json file in dir. A missing
// directory is not an error. It returns the number of layouts loaded.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read layout defaults: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := layoutFile.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return loaded, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		if err := r.ParseLayout(boletin.Grade(n), string(raw)); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}
