package overlay_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/report-engine/boletin"
	"github.com/warp/report-engine/boletin/store"
	"github.com/warp/report-engine/overlay"
	"github.com/warp/report-engine/section"
	"github.com/warp/report-engine/state"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func stateFor(g boletin.Grade) boletin.SectionState {
	st := boletin.DefaultState(boletin.SchoolData{})
	st.Grade = g
	st.Subjects = boletin.SubjectsForGrade(g)
	return st
}

func rectOf(t *testing.T, c *overlay.Canvas, id string) boletin.Rect {
	t.Helper()
	r, ok := c.Rect(id)
	require.True(t, ok, "field %s missing", id)
	return r
}

func newStore(t *testing.T) *state.Store {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	s := state.New(mem, section.Open(ctx, mem), state.WithSaveDelay(time.Hour))
	require.NoError(t, s.Init(ctx))
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

// =============================================================================
// GEOMETRY
// =============================================================================

func TestRender_BasicTier_Geometry(t *testing.T) {
	// GIVEN: A grade 1 state
	// WHEN: It renders
	// THEN: Cells follow the basic grid: 200,60 origin, 40px columns, 30px rows

	c := overlay.NewCanvas(true)
	r := overlay.NewRenderer(c)

	r.Render(stateFor(1))

	assert.Equal(t, boletin.Rect{Left: "200px", Top: "60px", Width: "30px", Height: "20px"}, rectOf(t, c, "grade_s0_c0_p1"))
	assert.Equal(t, "360px", rectOf(t, c, "grade_s0_c0_final").Left)
	assert.Equal(t, "400px", rectOf(t, c, "grade_s0_c1_p1").Left)
	assert.Equal(t, "800px", rectOf(t, c, "grade_s0_final").Left)
	assert.Equal(t, "840px", rectOf(t, c, "grade_s0_recovery").Left)
	assert.Equal(t, "90px", rectOf(t, c, "grade_s1_c0_p1").Top)

	_, ok := c.Get("grade_s0_c0_rp1")
	assert.False(t, ok, "basic tier has no recovery periods")
}

func TestRender_AdvancedTier_Geometry(t *testing.T) {
	// GIVEN: A grade 4 state
	// WHEN: It renders
	// THEN: P/RP pairs come first, competency finals after all 24 period cells

	c := overlay.NewCanvas(true)
	r := overlay.NewRenderer(c)

	r.Render(stateFor(4))

	assert.Equal(t, boletin.Rect{Left: "140px", Top: "120px", Width: "26px", Height: "20px"}, rectOf(t, c, "grade_s0_c0_p1"))
	assert.Equal(t, "166px", rectOf(t, c, "grade_s0_c0_rp1").Left)
	assert.Equal(t, "764px", rectOf(t, c, "grade_s0_c0_final").Left)
	assert.Equal(t, "842px", rectOf(t, c, "grade_s0_final").Left)
	assert.Equal(t, "868px", rectOf(t, c, "grade_s0_final_rec").Left)
	assert.Equal(t, "894px", rectOf(t, c, "grade_s0_special_rec").Left)
	assert.Equal(t, "145px", rectOf(t, c, "grade_s1_c0_p1").Top)

	_, ok := c.Get("grade_s0_recovery")
	assert.False(t, ok)
}

func TestRender_GradeFieldCount(t *testing.T) {
	for _, tc := range []struct {
		grade      boletin.Grade
		perSubject int
	}{
		{grade: 1, perSubject: 3*5 + 2},
		{grade: 5, perSubject: 3*8 + 3 + 3},
	} {
		c := overlay.NewCanvas(true)
		overlay.NewRenderer(c).Render(stateFor(tc.grade))

		n := 0
		for _, f := range c.Fields() {
			if f.Kind == overlay.KindGrade {
				n++
			}
		}
		assert.Equal(t, tc.perSubject*len(boletin.SubjectNames(tc.grade)), n, "grade %d", tc.grade)
	}
}

func TestRender_CommonFields(t *testing.T) {
	c := overlay.NewCanvas(true)
	r := overlay.NewRenderer(c)
	st := stateFor(1)
	st.Observations["p2"] = "Muy bien"
	st.Attendance[boletin.PeriodTotal] = boletin.Attendance{Perc: "95"}

	r.Render(st)

	obs, ok := c.Get("overlay_obs_p2")
	require.True(t, ok)
	assert.Equal(t, "Muy bien", obs.Value)
	assert.Equal(t, boletin.Rect{Left: "50px", Top: "630px", Width: "400px", Height: "25px"}, obs.Rect)
	assert.Equal(t, 2, obs.Page)

	assert.Equal(t, boletin.Rect{Left: "640px", Top: "625px", Width: "35px", Height: "20px"}, rectOf(t, c, "overlay_att_p2_abs"))

	total, _ := c.Get("overlay_att_total_perc")
	assert.Equal(t, "95", total.Value)
	assert.Equal(t, boletin.Rect{Left: "680px", Top: "700px", Width: "40px", Height: "20px"}, total.Rect)
	assert.Equal(t, "720px", rectOf(t, c, "overlay_att_total_perc_abs").Left)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestRender_PatchesValuesKeepsPositions(t *testing.T) {
	// GIVEN: A rendered field the user moved
	// WHEN: Its value changes and the state re-renders
	// THEN: The value is updated and the moved position survives

	c := overlay.NewCanvas(true)
	r := overlay.NewRenderer(c)
	st := stateFor(2)
	r.Render(st)
	require.True(t, c.SetRect("grade_s0_c0_p1", boletin.Rect{Left: "5px", Top: "6px"}))

	st.Subjects[0].Competencies[0].P1 = "88"
	r.Render(st)

	f, _ := c.Get("grade_s0_c0_p1")
	assert.Equal(t, "88", f.Value)
	assert.Equal(t, "5px", f.Rect.Left)
	assert.Equal(t, "6px", f.Rect.Top)
}

func TestRender_SameTierGradeChange_KeepsPositions(t *testing.T) {
	c := overlay.NewCanvas(true)
	r := overlay.NewRenderer(c)
	r.Render(stateFor(1))
	require.True(t, c.SetRect("overlay_obs_p1", boletin.Rect{Left: "9px"}))

	r.Render(stateFor(2))

	assert.Equal(t, "9px", rectOf(t, c, "overlay_obs_p1").Left)
}

func TestRender_TierChange_RecreatesAtNewDefaults(t *testing.T) {
	// GIVEN: Basic-tier fields, one of them moved
	// WHEN: The grade moves to the advanced tier
	// THEN: Grade and common overlays come back at the advanced defaults

	c := overlay.NewCanvas(true)
	r := overlay.NewRenderer(c)
	r.Render(stateFor(1))
	require.True(t, c.SetRect("grade_s0_c0_p1", boletin.Rect{Left: "5px"}))

	r.Render(stateFor(4))

	assert.Equal(t, "140px", rectOf(t, c, "grade_s0_c0_p1").Left)
	assert.Equal(t, "350px", rectOf(t, c, "overlay_obs_p1").Top)
}

func TestRender_PrunesCellsOfRemovedSubjects(t *testing.T) {
	c := overlay.NewCanvas(true)
	r := overlay.NewRenderer(c)
	st := stateFor(1)
	r.Render(st)

	st.Subjects = st.Subjects[:1]
	r.Render(st)

	_, ok := c.Get("grade_s1_c0_p1")
	assert.False(t, ok)
	_, ok = c.Get("grade_s0_c0_p1")
	assert.True(t, ok)
}

func TestRender_StatusFields_OnlyFromStatusGrade(t *testing.T) {
	// GIVEN: The default policy (status from grade 3)
	// WHEN: Grades 4 then 1 render
	// THEN: Status fields appear on page 1, then are removed

	c := overlay.NewCanvas(true)
	r := overlay.NewRenderer(c)
	st := stateFor(4)
	st.StudentStatus.Promoted = "X"
	st.FinalCondition = "Promovido"

	r.Render(st)

	prom, ok := c.Get("status_prom")
	require.True(t, ok)
	assert.Equal(t, "X", prom.Value)
	assert.Equal(t, 1, prom.Page)
	assert.Equal(t, boletin.Rect{Left: "140px", Top: "480px", Width: "30px", Height: "20px"}, prom.Rect)
	cond, _ := c.Get("final_condition")
	assert.Equal(t, "Promovido", cond.Value)

	r.Render(stateFor(1))

	for _, id := range overlay.StatusFieldIDs {
		_, ok := c.Get(id)
		assert.False(t, ok, id)
	}
}

func TestRender_CustomTierPolicy(t *testing.T) {
	c := overlay.NewCanvas(true)
	r := overlay.NewRenderer(c, overlay.WithTierPolicy(boletin.TierPolicy{AdvancedFrom: 4, StatusFrom: 4}))

	r.Render(stateFor(3))

	_, ok := c.Get("grade_s0_recovery")
	assert.True(t, ok, "grade 3 renders basic")
	_, ok = c.Get("status_prom")
	assert.False(t, ok)
}

func TestRender_Styles(t *testing.T) {
	c := overlay.NewCanvas(true)
	r := overlay.NewRenderer(c)
	st := stateFor(1)
	st.Settings.FontSize = 11
	st.Settings.AlignP2G = "right"

	r.Render(st)

	p1, _ := c.Get("grade_s0_c0_p1")
	assert.Equal(t, 11, p1.Style.FontSize)
	assert.Equal(t, "right", p1.Style.Align)
	assert.False(t, p1.Style.Bold)
	final, _ := c.Get("grade_s0_final")
	assert.True(t, final.Style.Bold)
}

func TestRender_OverlayModeRestylesInPlace(t *testing.T) {
	// GIVEN: Fields rendered in overlay (print) mode
	// WHEN: Overlay mode is switched off
	// THEN: Borders become visible; positions are untouched

	c := overlay.NewCanvas(true)
	r := overlay.NewRenderer(c)
	st := stateFor(1)
	r.Render(st)
	require.True(t, c.SetRect("grade_s0_final", boletin.Rect{Left: "1px"}))
	f, _ := c.Get("grade_s0_final")
	assert.Equal(t, "transparent", f.Style.Border)

	st.Settings.IsOverlayMode = false
	r.Render(st)

	f, _ = c.Get("grade_s0_final")
	assert.Equal(t, "#d1d5db", f.Style.Border)
	assert.Equal(t, "transparent", f.Style.Background)
	assert.Equal(t, "1px", f.Rect.Left)
	assert.False(t, c.OverlayMode())
}

func TestRenderer_Attach_RendersOnStoreChange(t *testing.T) {
	s := newStore(t)
	c := overlay.NewCanvas(true)
	r := overlay.NewRenderer(c)
	detach := r.Attach(s)
	defer detach()

	require.True(t, s.UpdateObservation("p1", "Excelente"))

	f, ok := c.Get("overlay_obs_p1")
	require.True(t, ok)
	assert.Equal(t, "Excelente", f.Value)
}

// =============================================================================
// EXPORT
// =============================================================================

func TestFileName(t *testing.T) {
	info := boletin.StudentInfo{Nombres: "Ana María", Apellidos: "Pérez", Order: "7"}

	assert.Equal(t, "Ana", overlay.FileName(overlay.NameDefault, "Ana (1)", info))
	assert.Equal(t, "Pérez Ana María", overlay.FileName(overlay.NameLastname, "Ana", info))
	assert.Equal(t, "7 - Ana María Pérez", overlay.FileName(overlay.NameOrder, "Ana", info))
	assert.Equal(t, "Ana", overlay.FileName(overlay.NameLastname, "Ana", boletin.StudentInfo{Nombres: "Ana"}))
	assert.Equal(t, "7 - Ana", overlay.FileName(overlay.NameOrder, "Ana", boletin.StudentInfo{Order: "7"}))
	assert.Equal(t, "a-b-c", overlay.FileName(overlay.NameDefault, "a/b:c", info))
	assert.Equal(t, "SinNombre", overlay.FileName(overlay.NameDefault, "(x)", info))
}

type recordingSink struct {
	names []string
	pages []overlay.Page
	after func(n int)
}

func (s *recordingSink) WritePage(_ context.Context, name string, page overlay.Page) error {
	s.names = append(s.names, name)
	s.pages = append(s.pages, page)
	if s.after != nil {
		s.after(len(s.names))
	}
	return nil
}

func TestBatchExport_RendersEveryStudentAndRestoresCurrent(t *testing.T) {
	// GIVEN: Two students, the first one current
	// WHEN: The section is exported with the lastname format
	// THEN: One page per student in list order, and the current student is back

	s := newStore(t)
	require.NoError(t, s.AddStudent("Ana"))
	require.True(t, s.UpdateStudentInfo("nombres", "Ana"))
	require.True(t, s.UpdateStudentInfo("apellidos", "Pérez"))
	require.True(t, s.UpdateObservation("p1", "Bien"))
	s.LoadStudent(boletin.DefaultStudentName, true)
	format := overlay.NameLastname
	s.UpdateSettings(state.SettingsPatch{PDFNameFormat: &format})

	c := overlay.NewCanvas(true)
	r := overlay.NewRenderer(c)
	sink := &recordingSink{}

	n, err := overlay.BatchExport(context.Background(), s, r, sink, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{boletin.DefaultStudentName, "Pérez Ana"}, sink.names)
	assert.Equal(t, "Ana", sink.pages[1].Student)

	var obs string
	for _, f := range sink.pages[1].Fields {
		if f.ID == "overlay_obs_p1" {
			obs = f.Value
		}
	}
	assert.Equal(t, "Bien", obs)
	assert.Equal(t, boletin.DefaultStudentName, s.CurrentStudent())
}

func TestBatchExport_Cancelled(t *testing.T) {
	// GIVEN: Three students and a context cancelled after the first page
	// WHEN: The export runs
	// THEN: It stops with ErrExportCancelled and restores the current student

	s := newStore(t)
	require.NoError(t, s.AddStudent("Ana"))
	require.NoError(t, s.AddStudent("Beto"))
	s.LoadStudent("Beto", true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recordingSink{after: func(int) { cancel() }}

	n, err := overlay.BatchExport(ctx, s, overlay.NewRenderer(overlay.NewCanvas(true)), sink, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, boletin.ErrExportCancelled))
	assert.Equal(t, 1, n)
	assert.Equal(t, "Beto", s.CurrentStudent())
}
