package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/report-engine/app"
	"github.com/warp/report-engine/boletin"
	"github.com/warp/report-engine/boletin/store"
	"github.com/warp/report-engine/cloud"
	"github.com/warp/report-engine/config"
	"github.com/warp/report-engine/layout"
	"github.com/warp/report-engine/overlay"
	"github.com/warp/report-engine/state"
)

func testConfig() config.Config {
	return config.Config{
		Port:             8080,
		DBPath:           ":memory:",
		SaveDelay:        time.Hour,
		LayoutSaveDelay:  time.Hour,
		HistoryLimit:     50,
		Tiers:            boletin.DefaultTierPolicy(),
		AutoSaveDelay:    10 * time.Millisecond,
		ImportLockWindow: time.Minute,
	}
}

func newApp(t *testing.T, mem *store.Memory, opts ...app.Option) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), mem, testConfig(), nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func enableEditMode(a *app.App) {
	on := true
	a.Store.UpdateSettings(state.SettingsPatch{IsEditMode: &on})
}

func dragBy(a *app.App, id string, dx, dy float64) {
	a.Layout.PointerDown(layout.Pointer{X: 0, Y: 0, Target: id})
	a.Layout.PointerMove(layout.Pointer{X: dx, Y: dy, Target: id})
	a.Layout.PointerUp(layout.Pointer{X: dx, Y: dy, Target: id})
}

type pageSink struct {
	mu    sync.Mutex
	names []string
}

func (s *pageSink) WritePage(_ context.Context, name string, _ overlay.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	return nil
}

func TestNew_RendersAndLoadsLayout(t *testing.T) {
	// GIVEN: Empty storage
	// WHEN: The app starts
	// THEN: The overlay is drawn for grade 1 and the engine follows grade 1

	a := newApp(t, store.NewMemory())

	assert.Positive(t, a.Canvas.Len())
	_, ok := a.Canvas.Get("overlay_obs_p1")
	assert.True(t, ok)
	assert.Equal(t, boletin.Grade(1), a.Layout.Grade())
	assert.Nil(t, a.Syncer, "no cloud configured")
	assert.Equal(t, boletin.TierBasic, a.Grid().Tier)
}

func TestApp_GradeChangeFollowsThrough(t *testing.T) {
	ctx := context.Background()
	a := newApp(t, store.NewMemory())

	require.NoError(t, a.Store.SetGrade(ctx, 5))

	assert.Equal(t, boletin.Grade(5), a.Layout.Grade())
	assert.Equal(t, boletin.TierAdvanced, a.Grid().Tier)
	_, ok := a.Canvas.Get("status_prom")
	assert.True(t, ok)
}

func TestApp_DraggedLayoutSurvivesRestart(t *testing.T) {
	// GIVEN: A field dragged in edit mode
	// WHEN: The app closes and a new one opens over the same storage
	// THEN: The field is where it was dropped

	ctx := context.Background()
	mem := store.NewMemory()
	a, err := app.New(ctx, mem, testConfig(), nil)
	require.NoError(t, err)
	enableEditMode(a)
	dragBy(a, "overlay_obs_p1", 10, 20)
	moved, _ := a.Canvas.Rect("overlay_obs_p1")
	require.NoError(t, a.Close(ctx))

	b := newApp(t, mem)
	got, _ := b.Canvas.Rect("overlay_obs_p1")

	assert.Equal(t, moved, got)
	assert.Equal(t, "60px", got.Left)
	assert.Equal(t, "620px", got.Top)
}

func TestApp_ResetPositions(t *testing.T) {
	ctx := context.Background()
	a := newApp(t, store.NewMemory())
	before, _ := a.Canvas.Rect("overlay_obs_p1")
	enableEditMode(a)
	dragBy(a, "overlay_obs_p1", 100, 100)

	require.NoError(t, a.ResetPositions(ctx))

	after, _ := a.Canvas.Rect("overlay_obs_p1")
	assert.Equal(t, before, after)
	assert.True(t, a.Layout.Undo(), "reset is undoable")
}

func TestApp_CloudAutoSave(t *testing.T) {
	// GIVEN: An app with a cloud client
	// WHEN: A student is added
	// THEN: The change is pushed once the auto-save delay elapses

	client := cloud.NewMemoryClient()
	a := newApp(t, store.NewMemory(), app.WithCloudClient(client))
	require.NotNil(t, a.Syncer)

	require.NoError(t, a.Store.AddStudent("Ana"))

	assert.Eventually(t, func() bool { return client.Saves() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestApp_ImportRosterAndExport(t *testing.T) {
	ctx := context.Background()
	a := newApp(t, store.NewMemory())

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "Nombre"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "Ana"))
	require.NoError(t, f.SetCellValue(sheet, "A3", "Beto"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	n, err := a.ImportRoster(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sink := &pageSink{}
	written, err := a.Export(ctx, sink)

	require.NoError(t, err)
	assert.Equal(t, 3, written)
	assert.Equal(t, []string{boletin.DefaultStudentName, "Ana", "Beto"}, sink.names)
}

func TestApp_FactoryReset(t *testing.T) {
	// GIVEN: Several sections and students
	// WHEN: The app is reset
	// THEN: One fresh section with the placeholder student remains

	ctx := context.Background()
	a := newApp(t, store.NewMemory())
	require.NoError(t, a.Store.AddStudent("Ana"))
	_, err := a.Store.CreateSection(ctx, "B", 4, "")
	require.NoError(t, err)

	require.NoError(t, a.FactoryReset(ctx))

	assert.Equal(t, 1, a.Index.Len())
	assert.Equal(t, []string{boletin.DefaultStudentName}, a.Store.Students())
	assert.Equal(t, boletin.Grade(1), a.Store.Grade())
}
