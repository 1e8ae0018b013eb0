package layout_test

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/report-engine/boletin"
	"github.com/warp/report-engine/boletin/store"
	"github.com/warp/report-engine/factory"
	"github.com/warp/report-engine/layout"
	"github.com/warp/report-engine/overlay"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newCanvas() *overlay.Canvas {
	c := overlay.NewCanvas(false)
	c.Ensure(overlay.FieldSpec{ID: "a", Default: boletin.Rect{Left: "100px", Top: "100px", Width: "50px", Height: "20px"}})
	c.Ensure(overlay.FieldSpec{ID: "b", Default: boletin.Rect{Left: "300px", Top: "100px", Width: "50px", Height: "20px"}})
	return c
}

func newEngine(t *testing.T, c *overlay.Canvas, mem *store.Memory, opts ...layout.Option) *layout.Engine {
	t.Helper()
	opts = append([]layout.Option{layout.WithSaveDelay(time.Hour)}, opts...)
	e := layout.New(c, mem, opts...)
	t.Cleanup(func() { e.Close(context.Background()) })
	return e
}

// drag moves a field by (dx, dy) grabbing it one pixel inside its corner.
func drag(t *testing.T, e *layout.Engine, c *overlay.Canvas, id string, dx, dy float64) {
	t.Helper()
	r, ok := c.Rect(id)
	require.True(t, ok)
	x, y := px(t, r.Left)+1, px(t, r.Top)+1

	require.True(t, e.PointerDown(layout.Pointer{X: x, Y: y, Target: id}))
	require.True(t, e.PointerMove(layout.Pointer{X: x + dx, Y: y + dy}))
	require.True(t, e.PointerUp(layout.Pointer{X: x + dx, Y: y + dy}))
}

func px(t *testing.T, s string) float64 {
	t.Helper()
	f, err := strconv.ParseFloat(strings.TrimSuffix(s, "px"), 64)
	require.NoError(t, err)
	return f
}

func savedLayout(t *testing.T, mem *store.Memory, g boletin.Grade) boletin.Layout {
	t.Helper()
	raw, err := mem.LoadLayout(context.Background(), g)
	require.NoError(t, err)
	if raw == nil {
		return nil
	}
	l, err := boletin.ParseLayout(raw)
	require.NoError(t, err)
	return l
}

// =============================================================================
// POINTER EVENTS
// =============================================================================

func TestEngine_Drag_MovesByPointerDelta(t *testing.T) {
	// GIVEN: Edit mode and a field at (100, 100)
	// WHEN: It is dragged by (+30, +20)
	// THEN: It sits at (130, 120) and keeps its size

	c := newCanvas()
	e := newEngine(t, c, store.NewMemory())
	e.SetEditMode(true)

	drag(t, e, c, "a", 30, 20)

	r, _ := c.Rect("a")
	assert.Equal(t, "130px", r.Left)
	assert.Equal(t, "120px", r.Top)
	assert.Equal(t, "50px", r.Width)
	assert.Equal(t, "20px", r.Height)
	_, dragging := e.Dragging()
	assert.False(t, dragging)
}

func TestEngine_PointerDown_RequiresEditMode(t *testing.T) {
	c := newCanvas()
	e := newEngine(t, c, store.NewMemory())

	assert.False(t, e.PointerDown(layout.Pointer{X: 101, Y: 101, Target: "a"}))
	assert.False(t, e.PointerMove(layout.Pointer{X: 200, Y: 200}))

	r, _ := c.Rect("a")
	assert.Equal(t, "100px", r.Left)
}

func TestEngine_PointerDown_IgnoresUnknownTargets(t *testing.T) {
	c := newCanvas()
	e := newEngine(t, c, store.NewMemory())
	e.SetEditMode(true)

	assert.False(t, e.PointerDown(layout.Pointer{X: 101, Y: 101}))
	assert.False(t, e.PointerDown(layout.Pointer{X: 101, Y: 101, Target: "missing"}))
}

func TestEngine_PointerDown_ResizeZoneDoesNotDrag(t *testing.T) {
	// GIVEN: A 50x20 field at (100, 100), so its corner is (150, 120)
	// WHEN: The pointer goes down within 20px of that corner
	// THEN: No drag starts and nothing is pushed to history

	c := newCanvas()
	e := newEngine(t, c, store.NewMemory())
	e.SetEditMode(true)

	assert.False(t, e.PointerDown(layout.Pointer{X: 145, Y: 115, Target: "a"}))

	undo, _ := e.HistoryLen()
	assert.Zero(t, undo)
	_, dragging := e.Dragging()
	assert.False(t, dragging)
}

func TestEngine_LeavingEditMode_EndsDrag(t *testing.T) {
	c := newCanvas()
	e := newEngine(t, c, store.NewMemory())
	e.SetEditMode(true)
	require.True(t, e.PointerDown(layout.Pointer{X: 101, Y: 101, Target: "a"}))

	e.SetEditMode(false)

	assert.False(t, e.PointerMove(layout.Pointer{X: 200, Y: 200}))
	assert.False(t, e.PointerUp(layout.Pointer{}))
}

// =============================================================================
// HISTORY
// =============================================================================

func TestEngine_UndoRedo_AreInverse(t *testing.T) {
	// GIVEN: N drags
	// WHEN: N undos follow
	// THEN: The layout is back to the start; N redos restore the end

	c := newCanvas()
	e := newEngine(t, c, store.NewMemory())
	e.SetEditMode(true)
	start := e.Capture()

	const n = 5
	for i := 0; i < n; i++ {
		id := "a"
		if i%2 == 1 {
			id = "b"
		}
		drag(t, e, c, id, float64(10+i), float64(5*i+1))
	}
	end := e.Capture()

	for i := 0; i < n; i++ {
		require.True(t, e.Undo())
	}
	assert.Equal(t, start, e.Capture())
	assert.False(t, e.Undo())

	for i := 0; i < n; i++ {
		require.True(t, e.Redo())
	}
	assert.Equal(t, end, e.Capture())
	assert.False(t, e.Redo())
}

func TestEngine_History_DeduplicatesIdenticalSnapshots(t *testing.T) {
	// GIVEN: Two clicks without movement
	// WHEN: History is inspected
	// THEN: Only one snapshot was pushed

	c := newCanvas()
	e := newEngine(t, c, store.NewMemory())
	e.SetEditMode(true)

	for i := 0; i < 2; i++ {
		require.True(t, e.PointerDown(layout.Pointer{X: 101, Y: 101, Target: "a"}))
		require.True(t, e.PointerUp(layout.Pointer{X: 101, Y: 101}))
	}

	undo, _ := e.HistoryLen()
	assert.Equal(t, 1, undo)
}

func TestEngine_History_CappedOldestDropped(t *testing.T) {
	c := newCanvas()
	e := newEngine(t, c, store.NewMemory(), layout.WithHistoryLimit(3))
	e.SetEditMode(true)

	for i := 0; i < 5; i++ {
		drag(t, e, c, "a", 10, 0)
	}

	undo, _ := e.HistoryLen()
	assert.Equal(t, 3, undo)

	for i := 0; i < 3; i++ {
		require.True(t, e.Undo())
	}
	assert.False(t, e.Undo())
	r, _ := c.Rect("a")
	assert.Equal(t, "120px", r.Left, "the two oldest snapshots were dropped")
}

func TestEngine_NewAction_ClearsRedo(t *testing.T) {
	c := newCanvas()
	e := newEngine(t, c, store.NewMemory())
	e.SetEditMode(true)

	drag(t, e, c, "a", 10, 0)
	require.True(t, e.Undo())
	_, redo := e.HistoryLen()
	require.Equal(t, 1, redo)

	drag(t, e, c, "b", 0, 10)

	_, redo = e.HistoryLen()
	assert.Zero(t, redo)
}

func TestEngine_SetRect_IsUndoable(t *testing.T) {
	c := newCanvas()
	e := newEngine(t, c, store.NewMemory())

	require.True(t, e.SetRect("a", boletin.Rect{Width: "80px", Height: "30px"}))
	r, _ := c.Rect("a")
	assert.Equal(t, "80px", r.Width)
	assert.Equal(t, "100px", r.Left)

	require.True(t, e.Undo())
	r, _ = c.Rect("a")
	assert.Equal(t, "50px", r.Width)

	assert.False(t, e.SetRect("a", boletin.Rect{Width: "wide"}))
	assert.False(t, e.SetRect("missing", boletin.Rect{Width: "10px"}))
}

func TestEngine_HandleKey(t *testing.T) {
	c := newCanvas()
	e := newEngine(t, c, store.NewMemory())
	e.SetEditMode(true)
	drag(t, e, c, "a", 10, 0)

	assert.False(t, e.HandleKey(layout.Key{Key: "z"}))
	assert.False(t, e.HandleKey(layout.Key{Key: "x", Ctrl: true}))

	assert.True(t, e.HandleKey(layout.Key{Key: "z", Ctrl: true}))
	r, _ := c.Rect("a")
	assert.Equal(t, "100px", r.Left)

	assert.True(t, e.HandleKey(layout.Key{Key: "Y", Meta: true}))
	r, _ = c.Rect("a")
	assert.Equal(t, "110px", r.Left)
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestEngine_Load_FallsBackToFactoryDefault(t *testing.T) {
	// GIVEN: A factory default for grade 4 and nothing saved
	// WHEN: Grade 4 loads
	// THEN: The default is applied; sides it omits are kept

	reg := factory.NewRegistry()
	require.NoError(t, reg.Register(4, boletin.Layout{"a": {Left: "12px", Top: "34px"}}))
	c := newCanvas()
	e := newEngine(t, c, store.NewMemory(), layout.WithDefaults(reg))

	require.NoError(t, e.Load(context.Background(), 4))

	r, _ := c.Rect("a")
	assert.Equal(t, boletin.Rect{Left: "12px", Top: "34px", Width: "50px", Height: "20px"}, r)
	assert.Equal(t, boletin.Grade(4), e.Grade())
}

func TestEngine_ResetPositions(t *testing.T) {
	// GIVEN: A dragged field and a factory default for field "b"
	// WHEN: Positions are reset to the computed base
	// THEN: "a" returns to the base, "b" takes the factory spot, the result
	//       is saved at once and the reset can be undone
	ctx := context.Background()
	mem := store.NewMemory()
	reg := factory.NewRegistry()
	require.NoError(t, reg.Register(1, boletin.Layout{"b": {Left: "5px", Top: "6px"}}))
	c := newCanvas()
	base := c.Layout()
	e := newEngine(t, c, mem, layout.WithDefaults(reg))
	require.NoError(t, e.Load(ctx, 1))
	e.SetEditMode(true)
	drag(t, e, c, "a", 40, 40)

	require.NoError(t, e.ResetPositions(ctx, base))

	a, _ := c.Rect("a")
	b, _ := c.Rect("b")
	assert.Equal(t, base["a"], a)
	assert.Equal(t, "5px", b.Left)
	assert.Equal(t, "5px", savedLayout(t, mem, 1)["b"].Left)
	require.True(t, e.Undo())
	a, _ = c.Rect("a")
	assert.Equal(t, "140px", a.Left)
}

func TestEngine_Load_SavedLayoutWins(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.SaveLayout(ctx, 4, []byte(`{"a":{"left":"7px","top":"8px","width":"50px","height":"20px"}}`)))
	reg := factory.NewRegistry()
	require.NoError(t, reg.Register(4, boletin.Layout{"a": {Left: "12px", Top: "34px"}}))
	c := newCanvas()
	e := newEngine(t, c, mem, layout.WithDefaults(reg))

	require.NoError(t, e.Load(ctx, 4))

	r, _ := c.Rect("a")
	assert.Equal(t, "7px", r.Left)
}

func TestEngine_Load_CorruptSavedLayout_UsesDefault(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.SaveLayout(ctx, 4, []byte(`{not json`)))
	reg := factory.NewRegistry()
	require.NoError(t, reg.Register(4, boletin.Layout{"a": {Left: "12px"}}))
	c := newCanvas()
	e := newEngine(t, c, mem, layout.WithDefaults(reg))

	require.NoError(t, e.Load(ctx, 4))

	r, _ := c.Rect("a")
	assert.Equal(t, "12px", r.Left)
}

func TestEngine_Drag_SavesUnderCurrentGrade(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	c := newCanvas()
	e := newEngine(t, c, mem)
	require.NoError(t, e.Load(ctx, 2))
	e.SetEditMode(true)

	drag(t, e, c, "a", 25, 0)
	assert.Nil(t, savedLayout(t, mem, 2), "save is debounced")

	require.NoError(t, e.Flush(ctx))

	saved := savedLayout(t, mem, 2)
	assert.Equal(t, "125px", saved["a"].Left)
	assert.Equal(t, "300px", saved["b"].Left)
}

func TestEngine_GradeSwitch_PendingSaveKeepsItsGrade(t *testing.T) {
	// GIVEN: An unsaved drag under grade 2
	// WHEN: Grade 5 loads
	// THEN: The drag is written under grade 2, nothing under grade 5

	ctx := context.Background()
	mem := store.NewMemory()
	c := newCanvas()
	e := newEngine(t, c, mem)
	require.NoError(t, e.Load(ctx, 2))
	e.SetEditMode(true)
	drag(t, e, c, "a", 25, 0)

	require.NoError(t, e.Load(ctx, 5))

	assert.Equal(t, "125px", savedLayout(t, mem, 2)["a"].Left)
	assert.Nil(t, savedLayout(t, mem, 5))
}

func TestEngine_GradeSwitch_ClearsHistory(t *testing.T) {
	// GIVEN: A drag under grade 1, then an undo leaving one redo entry
	// WHEN: Grade 2 loads
	// THEN: Both stacks are empty, so undo cannot bring back grade 1 positions

	ctx := context.Background()
	mem := store.NewMemory()
	c := newCanvas()
	e := newEngine(t, c, mem)
	require.NoError(t, e.Load(ctx, 1))
	e.SetEditMode(true)
	drag(t, e, c, "a", 40, 0)
	drag(t, e, c, "b", 0, 30)
	require.True(t, e.Undo())
	undo, redo := e.HistoryLen()
	require.Equal(t, 1, undo)
	require.Equal(t, 1, redo)

	require.NoError(t, e.Load(ctx, 2))

	undo, redo = e.HistoryLen()
	assert.Equal(t, 0, undo)
	assert.Equal(t, 0, redo)
	assert.False(t, e.Undo())
	assert.False(t, e.Redo())
}

func TestEngine_ReloadSameGrade_KeepsHistory(t *testing.T) {
	// GIVEN: A drag under grade 3
	// WHEN: Grade 3 loads again
	// THEN: The drag can still be undone

	ctx := context.Background()
	c := newCanvas()
	e := newEngine(t, c, store.NewMemory())
	require.NoError(t, e.Load(ctx, 3))
	e.SetEditMode(true)
	drag(t, e, c, "a", 10, 10)

	require.NoError(t, e.Load(ctx, 3))

	assert.True(t, e.Undo())
}

func TestEngine_DebouncedSave_Fires(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	c := newCanvas()
	e := layout.New(c, mem, layout.WithSaveDelay(10*time.Millisecond))
	defer e.Close(ctx)
	require.NoError(t, e.Load(ctx, 1))
	e.SetEditMode(true)

	drag(t, e, c, "b", 0, 40)

	assert.Eventually(t, func() bool {
		raw, _ := mem.LoadLayout(ctx, 1)
		return raw != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "140px", savedLayout(t, mem, 1)["b"].Top)
}

// =============================================================================
// STORE OBSERVATION
// =============================================================================

func TestEngine_Attach_FollowsEditModeAndGrade(t *testing.T) {
	// GIVEN: An engine attached to a state feed
	// WHEN: States arrive with edit mode and grade changes
	// THEN: Edit mode mirrors settings and each new grade loads its layout

	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.SaveLayout(ctx, 3, []byte(`{"a":{"left":"1px","top":"2px","width":"50px","height":"20px"}}`)))
	c := newCanvas()
	e := newEngine(t, c, mem)

	var feed boletin.Topic[boletin.SectionState]
	detach := e.Attach(&feed)
	defer detach()

	st := boletin.DefaultState(boletin.SchoolData{})
	st.Settings.IsEditMode = true
	feed.Publish(st)

	assert.True(t, e.EditMode())
	assert.Equal(t, boletin.Grade(1), e.Grade())

	st.Grade = 3
	st.Settings.IsEditMode = false
	feed.Publish(st)

	assert.False(t, e.EditMode())
	assert.Equal(t, boletin.Grade(3), e.Grade())
	r, _ := c.Rect("a")
	assert.Equal(t, "1px", r.Left)
}
