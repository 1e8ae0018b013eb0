/*
Package overlay renders the current student onto positioned fields laid over
the report-card template.

PURPOSE:
  The Canvas is a key -> field view-model map. Rendering reconciles against
  it: an existing field only has its value and style patched, so a position
  the user dragged it to survives every re-render. Missing fields are created
  at their computed default geometry.

FIELD IDS (stable; also the layout and undo/redo keys):
  grade_s{i}_c{j}_{p1..p4|rp1..rp4|final}   competency cells
  grade_s{i}_{final|recovery|final_rec|special_rec}  subject cells
  overlay_obs_{p1..p4}                      observations
  overlay_att_{p1..p4}_{pres|abs}           attendance
  overlay_att_total_perc[_abs]              attendance totals
  status_prom, status_postponed, status_repeater, final_condition

SEE ALSO:
  - overlay/render.go: Field geometry per tier
  - layout/engine.go: Moves fields through the Surface methods
*/
package overlay

import (
	"sort"
	"sync"

	"github.com/warp/report-engine/boletin"
)

// FieldKind classifies a field for styling.
type FieldKind string

const (
	KindGrade      FieldKind = "grade"
	KindObs        FieldKind = "obs"
	KindAttendance FieldKind = "attendance"
	KindStatus     FieldKind = "status"
	KindText       FieldKind = "text"
)

// Style is the visual state of a field.
type Style struct {
	FontSize   int    `json:"fontSize"`
	Align      string `json:"align"`
	Bold       bool   `json:"bold"`
	Border     string `json:"border"`
	Background string `json:"background"`
}

// Field is one positioned overlay element.
type Field struct {
	ID    string       `json:"id"`
	Page  int          `json:"page"`
	Kind  FieldKind    `json:"kind"`
	Value string       `json:"value"`
	Rect  boletin.Rect `json:"rect"`
	Style Style        `json:"style"`
}

// FieldSpec describes a field to ensure. Default is used only on creation.
type FieldSpec struct {
	ID       string
	Page     int
	Kind     FieldKind
	Value    string
	Default  boletin.Rect
	Align    string
	Bold     bool
	FontSize int
}

// Canvas holds every overlay field by id.
type Canvas struct {
	mu          sync.RWMutex
	fields      map[string]*Field
	overlayMode bool
}

// NewCanvas creates an empty canvas. overlayMode selects transparent
// (print) styling.
func NewCanvas(overlayMode bool) *Canvas {
	return &Canvas{fields: make(map[string]*Field), overlayMode: overlayMode}
}

// Ensure creates the field at its default geometry when absent, otherwise
// patches value and style in place. It reports whether the field was
// created.
func (c *Canvas) Ensure(spec FieldSpec) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.fields[spec.ID]
	if !ok {
		f = &Field{ID: spec.ID, Kind: spec.Kind, Rect: spec.Default}
		c.fields[spec.ID] = f
	}
	f.Page = spec.Page
	f.Kind = spec.Kind
	f.Value = spec.Value
	f.Style.Align = spec.Align
	f.Style.Bold = spec.Bold
	f.Style.FontSize = spec.FontSize
	c.applyModeLocked(f)
	return !ok
}

// Remove deletes a field. It reports whether it existed.
func (c *Canvas) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.fields[id]; !ok {
		return false
	}
	delete(c.fields, id)
	return true
}

// Get returns a copy of a field.
func (c *Canvas) Get(id string) (Field, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.fields[id]
	if !ok {
		return Field{}, false
	}
	return *f, true
}

// IDs returns every field id, sorted.
func (c *Canvas) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.fields))
	for id := range c.fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Fields returns copies of every field, sorted by id.
func (c *Canvas) Fields() []Field {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Field, 0, len(c.fields))
	for _, f := range c.fields {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of fields.
func (c *Canvas) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.fields)
}

// OverlayMode reports the current visual mode.
func (c *Canvas) OverlayMode() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overlayMode
}

// SetOverlayMode restyles every existing field without recreating it.
func (c *Canvas) SetOverlayMode(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overlayMode = on
	for _, f := range c.fields {
		c.applyModeLocked(f)
	}
}

// Borders are invisible in overlay (print) mode and gray otherwise; the
// background is always transparent.
func (c *Canvas) applyModeLocked(f *Field) {
	f.Style.Background = "transparent"
	if c.overlayMode {
		f.Style.Border = "transparent"
		return
	}
	f.Style.Border = "#d1d5db"
}

// =============================================================================
// SURFACE (used by the layout engine)
// =============================================================================

// Rect returns a field's placement.
func (c *Canvas) Rect(id string) (boletin.Rect, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.fields[id]
	if !ok {
		return boletin.Rect{}, false
	}
	return f.Rect, true
}

// Layout returns the placement of every field.
func (c *Canvas) Layout() boletin.Layout {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(boletin.Layout, len(c.fields))
	for id, f := range c.fields {
		out[id] = f.Rect
	}
	return out
}

// SetRect moves or resizes a field. Empty sides of r keep their current
// value. It reports whether the field exists.
func (c *Canvas) SetRect(id string, r boletin.Rect) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.fields[id]
	if !ok {
		return false
	}
	if r.Left != "" {
		f.Rect.Left = r.Left
	}
	if r.Top != "" {
		f.Rect.Top = r.Top
	}
	if r.Width != "" {
		f.Rect.Width = r.Width
	}
	if r.Height != "" {
		f.Rect.Height = r.Height
	}
	return true
}
