/*
Package layout lets a user drag and resize overlay fields in edit mode and
persists their positions per grade.

PURPOSE:
  The Engine turns pointer and key events into field moves on a Surface,
  keeps an undo/redo history of whole-layout snapshots, and saves the
  layout of the current grade through a debounced writer.

STATE MACHINE:
  Idle -> Dragging -> Idle
  PointerDown enters Dragging only in edit mode, on a known field, outside
  the field's bottom-right resize hot-zone. PointerMove offsets the field by
  the pointer delta from the drag start. PointerUp schedules a save.

HISTORY:
  Before every drag (or explicit resize) the current layout is pushed onto
  the undo stack, unless it equals the top entry. The stack holds at most
  HistoryLimit entries, oldest dropped first. Any push clears redo.
  Loading a different grade clears both stacks.

PERSISTENCE:
  One layout per grade, shared by every section and student. A grade with
  no saved layout falls back to the factory registry; with neither, fields
  stay at their computed defaults.

SEE ALSO:
  - overlay/canvas.go: The Surface implementation
  - factory/layouts.go: Default layouts
*/
package layout

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/report-engine/boletin"
	"github.com/warp/report-engine/factory"
)

// Defaults.
const (
	DefaultHistoryLimit = 50
	DefaultSaveDelay    = 500 * time.Millisecond
	// ResizeHotZone is the size of the bottom-right corner that belongs to
	// the resize handle rather than to dragging.
	ResizeHotZone = 20.0
)

// Surface is the set of positioned fields the engine moves.
type Surface interface {
	IDs() []string
	Rect(id string) (boletin.Rect, bool)
	SetRect(id string, r boletin.Rect) bool
}

// Pointer is a pointer event in canvas coordinates. Target is the field
// under the pointer ("" for none).
type Pointer struct {
	X, Y   float64
	Target string
}

// Key is a keyboard event.
type Key struct {
	Key  string
	Ctrl bool
	Meta bool
}

type drag struct {
	id                  string
	startX, startY      float64
	startLeft, startTop float64
}

// Engine is the layout interaction manager.
type Engine struct {
	surface  Surface
	store    boletin.LayoutStore
	defaults *factory.Registry
	log      *zap.Logger

	historyLimit int
	saveDelay    time.Duration
	saver        *boletin.Debouncer

	mu       sync.Mutex
	grade    boletin.Grade
	loaded   bool
	editMode bool
	dragging *drag
	undo     []string
	redo     []string

	// pending is the layout captured when the save was scheduled; it is
	// written under pendingGrade.
	pending      string
	pendingGrade boletin.Grade
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithDefaults sets the factory registry used when a grade has no layout.
func WithDefaults(r *factory.Registry) Option {
	return func(e *Engine) { e.defaults = r }
}

// WithHistoryLimit caps the undo stack.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.historyLimit = n
		}
	}
}

// WithSaveDelay sets the debounce window of layout saves.
func WithSaveDelay(d time.Duration) Option {
	return func(e *Engine) { e.saveDelay = d }
}

// New creates an engine over surface, persisting to store.
func New(surface Surface, store boletin.LayoutStore, opts ...Option) *Engine {
	e := &Engine{
		surface:      surface,
		store:        store,
		log:          zap.NewNop(),
		historyLimit: DefaultHistoryLimit,
		saveDelay:    DefaultSaveDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.defaults == nil {
		e.defaults = factory.NewRegistry()
	}
	e.saver = boletin.NewDebouncer(e.saveDelay, func() {
		if err := e.writePending(context.Background()); err != nil {
			e.log.Error("failed to save layout", zap.Error(err))
		}
	})
	return e
}

// =============================================================================
// STORE OBSERVATION
// =============================================================================

// Attach follows the store: edit mode mirrors settings.isEditMode and a
// grade change reloads that grade's layout.
func (e *Engine) Attach(src boletin.Observable) (detach func()) {
	return src.Subscribe(func(st boletin.SectionState) {
		e.SetEditMode(st.Settings.IsEditMode)

		e.mu.Lock()
		changed := !e.loaded || e.grade != st.Grade
		e.mu.Unlock()
		if changed {
			if err := e.Load(context.Background(), st.Grade); err != nil {
				e.log.Warn("failed to load layout", zap.Int("grade", int(st.Grade)), zap.Error(err))
			}
		}
	})
}

// SetEditMode enables or disables dragging. Leaving edit mode ends a drag.
func (e *Engine) SetEditMode(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.editMode = on
	if !on {
		e.dragging = nil
	}
}

// EditMode reports whether dragging is enabled.
func (e *Engine) EditMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editMode
}

// Grade returns the grade whose layout is live.
func (e *Engine) Grade() boletin.Grade {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grade
}

// =============================================================================
// POINTER EVENTS
// =============================================================================

// PointerDown starts a drag. It reports whether the event was consumed.
func (e *Engine) PointerDown(p Pointer) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.editMode || p.Target == "" {
		return false
	}
	r, ok := e.surface.Rect(p.Target)
	if !ok {
		return false
	}
	left, top := length(r.Left), length(r.Top)
	right, bottom := left+length(r.Width), top+length(r.Height)
	if p.X > right-ResizeHotZone && p.Y > bottom-ResizeHotZone {
		return false
	}

	e.pushHistoryLocked()
	e.dragging = &drag{id: p.Target, startX: p.X, startY: p.Y, startLeft: left, startTop: top}
	return true
}

// PointerMove offsets the dragged field by the delta from the drag start.
func (e *Engine) PointerMove(p Pointer) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.editMode || e.dragging == nil {
		return false
	}
	d := e.dragging
	e.surface.SetRect(d.id, boletin.Rect{
		Left: pxf(d.startLeft + p.X - d.startX),
		Top:  pxf(d.startTop + p.Y - d.startY),
	})
	return true
}

// PointerUp ends a drag and schedules a save.
func (e *Engine) PointerUp(Pointer) bool {
	e.mu.Lock()
	if !e.editMode || e.dragging == nil {
		e.mu.Unlock()
		return false
	}
	e.dragging = nil
	e.scheduleSaveLocked()
	e.mu.Unlock()
	return true
}

// Dragging returns the id of the field being dragged.
func (e *Engine) Dragging() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dragging == nil {
		return "", false
	}
	return e.dragging.id, true
}

// SetRect explicitly moves or resizes a field as one undoable action.
func (e *Engine) SetRect(id string, r boletin.Rect) bool {
	if !r.Valid() {
		return false
	}
	e.mu.Lock()
	if _, ok := e.surface.Rect(id); !ok {
		e.mu.Unlock()
		return false
	}
	e.pushHistoryLocked()
	e.surface.SetRect(id, r)
	e.scheduleSaveLocked()
	e.mu.Unlock()
	return true
}

// =============================================================================
// HISTORY
// =============================================================================

func (e *Engine) pushHistoryLocked() {
	current := e.captureLocked().Encode()
	if n := len(e.undo); n > 0 && e.undo[n-1] == current {
		return
	}
	e.undo = append(e.undo, current)
	if len(e.undo) > e.historyLimit {
		e.undo = append([]string{}, e.undo[len(e.undo)-e.historyLimit:]...)
	}
	e.redo = nil
}

// Undo restores the previous layout. It reports false when there is none.
func (e *Engine) Undo() bool {
	e.mu.Lock()
	n := len(e.undo)
	if n == 0 {
		e.mu.Unlock()
		return false
	}
	prev := e.undo[n-1]
	e.undo = e.undo[:n-1]
	e.redo = append(e.redo, e.captureLocked().Encode())
	e.applyEncodedLocked(prev)
	e.scheduleSaveLocked()
	e.mu.Unlock()
	return true
}

// Redo re-applies an undone layout. It reports false when there is none.
func (e *Engine) Redo() bool {
	e.mu.Lock()
	n := len(e.redo)
	if n == 0 {
		e.mu.Unlock()
		return false
	}
	next := e.redo[n-1]
	e.redo = e.redo[:n-1]
	e.undo = append(e.undo, e.captureLocked().Encode())
	e.applyEncodedLocked(next)
	e.scheduleSaveLocked()
	e.mu.Unlock()
	return true
}

// HistoryLen returns the sizes of the undo and redo stacks.
func (e *Engine) HistoryLen() (undo, redo int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.undo), len(e.redo)
}

// HandleKey maps ctrl/meta+z to Undo and ctrl/meta+y to Redo. It reports
// whether the key was handled, i.e. the default action must be suppressed.
func (e *Engine) HandleKey(k Key) bool {
	if !k.Ctrl && !k.Meta {
		return false
	}
	switch strings.ToLower(k.Key) {
	case "z":
		e.Undo()
		return true
	case "y":
		e.Redo()
		return true
	}
	return false
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// Capture returns the placement of every field.
func (e *Engine) Capture() boletin.Layout {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.captureLocked()
}

func (e *Engine) captureLocked() boletin.Layout {
	out := boletin.Layout{}
	for _, id := range e.surface.IDs() {
		if r, ok := e.surface.Rect(id); ok {
			out[id] = r
		}
	}
	return out
}

// Apply moves every field named in l. Unknown ids are ignored.
func (e *Engine) Apply(l boletin.Layout) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applyLocked(l)
}

func (e *Engine) applyLocked(l boletin.Layout) {
	for id, r := range l {
		e.surface.SetRect(id, r)
	}
}

func (e *Engine) applyEncodedLocked(encoded string) {
	l, err := boletin.ParseLayout([]byte(encoded))
	if err != nil {
		e.log.Warn("history entry unreadable", zap.Error(err))
		return
	}
	e.applyLocked(l)
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Load switches to grade and applies its saved layout, or the factory
// default. A pending save of the previous grade is written first.
func (e *Engine) Load(ctx context.Context, grade boletin.Grade) error {
	if err := e.Flush(ctx); err != nil {
		e.log.Warn("failed to save layout before switching grade", zap.Error(err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded || e.grade != grade {
		e.undo, e.redo = nil, nil
	}
	e.grade = grade
	e.loaded = true
	e.dragging = nil

	raw, err := e.store.LoadLayout(ctx, grade)
	if err != nil {
		return err
	}
	if raw != nil {
		l, err := boletin.ParseLayout(raw)
		if err == nil {
			e.applyLocked(l)
			return nil
		}
		e.log.Warn("saved layout corrupt, using defaults",
			zap.Error(&boletin.CorruptDocumentError{Kind: "layout", Key: grade.String(), Err: err}))
	}
	if l, ok := e.defaults.Lookup(grade); ok {
		e.log.Debug("using factory layout", zap.Int("grade", int(grade)))
		e.applyLocked(l)
	}
	return nil
}

// ResetPositions moves every field back to base, then onto the grade's
// factory layout where one exists, and saves at once. The reset can be
// undone.
func (e *Engine) ResetPositions(ctx context.Context, base boletin.Layout) error {
	e.mu.Lock()
	e.pushHistoryLocked()
	e.dragging = nil
	e.applyLocked(base)
	if l, ok := e.defaults.Lookup(e.grade); ok {
		e.applyLocked(l)
	}
	e.saver.Cancel()
	e.pending = ""
	e.mu.Unlock()

	return e.Save(ctx)
}

// Save writes the current layout under the live grade.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	if !e.loaded {
		e.mu.Unlock()
		return nil
	}
	grade := e.grade
	encoded := e.captureLocked().Encode()
	e.mu.Unlock()

	return e.store.SaveLayout(ctx, grade, []byte(encoded))
}

func (e *Engine) scheduleSaveLocked() {
	if !e.loaded {
		return
	}
	e.pending = e.captureLocked().Encode()
	e.pendingGrade = e.grade
	e.saver.Schedule()
}

func (e *Engine) writePending(ctx context.Context) error {
	e.mu.Lock()
	raw, grade := e.pending, e.pendingGrade
	e.pending = ""
	e.mu.Unlock()

	if raw == "" {
		return nil
	}
	return e.store.SaveLayout(ctx, grade, []byte(raw))
}

// Flush writes a pending debounced save now.
func (e *Engine) Flush(ctx context.Context) error {
	if !e.saver.Pending() {
		return nil
	}
	e.saver.Cancel()
	return e.writePending(ctx)
}

// Close flushes and stops the debounced writer.
func (e *Engine) Close(ctx context.Context) error {
	err := e.Flush(ctx)
	e.saver.Stop()
	return err
}

// =============================================================================
// CSS LENGTHS
// =============================================================================

// length reads a pixel length ("42px", "42"); anything else reads as 0.
func length(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "px"), 64)
	if err != nil {
		return 0
	}
	return f
}

func pxf(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64) + "px"
}
