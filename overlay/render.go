package overlay

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/warp/report-engine/boletin"
)

// =============================================================================
// GEOMETRY
// =============================================================================

// gridGeometry is the default placement of one tier's grade table.
type gridGeometry struct {
	startX, startY int
	rowH, colW     int
	cellW, cellH   int
}

var (
	basicGrid    = gridGeometry{startX: 200, startY: 60, rowH: 30, colW: 40, cellW: 30, cellH: 20}
	advancedGrid = gridGeometry{startX: 140, startY: 120, rowH: 25, colW: 26, cellW: 26, cellH: 20}
)

// Common overlay anchors.
const (
	obsTopAdvanced = 350
	obsTopBasic    = 600
	obsLeft        = 50
	attLeft        = 600
	statusTop      = 450
)

func px(n int) string { return fmt.Sprintf("%dpx", n) }

func rect(top, left, width, height int) boletin.Rect {
	return boletin.Rect{Left: px(left), Top: px(top), Width: px(width), Height: px(height)}
}

// StatusFieldIDs are the page-1 fields shown only for status grades.
var StatusFieldIDs = []string{"status_prom", "status_postponed", "status_repeater", "final_condition"}

// =============================================================================
// RENDERER
// =============================================================================

// Renderer reconciles the canvas against a section state.
type Renderer struct {
	canvas *Canvas
	policy boletin.TierPolicy
	log    *zap.Logger

	mu       sync.Mutex
	lastTier boletin.Tier
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithTierPolicy sets the grade boundaries.
func WithTierPolicy(p boletin.TierPolicy) Option {
	return func(r *Renderer) { r.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) { r.log = l }
}

// NewRenderer creates a renderer drawing onto canvas.
func NewRenderer(canvas *Canvas, opts ...Option) *Renderer {
	r := &Renderer{canvas: canvas, policy: boletin.DefaultTierPolicy(), log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Canvas returns the canvas drawn onto.
func (r *Renderer) Canvas() *Canvas {
	return r.canvas
}

// Policy returns the tier policy in use.
func (r *Renderer) Policy() boletin.TierPolicy {
	return r.policy
}

// Attach re-renders on every store change.
func (r *Renderer) Attach(src boletin.Observable) (detach func()) {
	return src.Subscribe(r.Render)
}

// Render ensures every field of the state's tier exists with the current
// values. Grade and common fields created under another tier are dropped
// first so they come back at the new tier's defaults. Grade cells beyond
// the current subject list are pruned.
func (r *Renderer) Render(st boletin.SectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tier := r.policy.TierFor(st.Grade)
	if r.lastTier != "" && r.lastTier != tier {
		for _, id := range r.canvas.IDs() {
			if strings.HasPrefix(id, "grade_") || strings.HasPrefix(id, "overlay_") {
				r.canvas.Remove(id)
			}
		}
		r.log.Debug("overlay tier changed", zap.String("from", string(r.lastTier)), zap.String("to", string(tier)))
	}
	r.lastTier = tier

	set := st.Settings
	gradeStyle := func(spec FieldSpec) FieldSpec {
		spec.Page = 2
		spec.Kind = KindGrade
		spec.Align = set.AlignP2G
		spec.Bold = spec.Bold || set.BoldP2G
		spec.FontSize = set.FontSize
		return spec
	}

	keep := make(map[string]bool)
	ensure := func(spec FieldSpec) {
		keep[spec.ID] = true
		r.canvas.Ensure(spec)
	}

	if tier == boletin.TierAdvanced {
		r.renderAdvanced(st.Subjects, func(s FieldSpec) { ensure(gradeStyle(s)) })
	} else {
		r.renderBasic(st.Subjects, func(s FieldSpec) { ensure(gradeStyle(s)) })
	}

	for _, id := range r.canvas.IDs() {
		if strings.HasPrefix(id, "grade_") && !keep[id] {
			r.canvas.Remove(id)
		}
	}

	r.renderCommon(st, tier == boletin.TierAdvanced)
	r.renderStatus(st)
	r.canvas.SetOverlayMode(set.IsOverlayMode)
}

func (r *Renderer) renderAdvanced(subjects []boletin.Subject, ensure func(FieldSpec)) {
	g := advancedGrid
	for si, sub := range subjects {
		top := g.startY + si*g.rowH
		left := g.startX
		cell := func(id string, value boletin.Mark, bold bool) {
			ensure(FieldSpec{ID: id, Value: value.String(), Default: rect(top, left, g.cellW, g.cellH), Bold: bold})
			left += g.colW
		}

		for ci, comp := range sub.Competencies {
			for p := 1; p <= 4; p++ {
				v, _ := comp.Get(fmt.Sprintf("p%d", p))
				cell(fmt.Sprintf("grade_s%d_c%d_p%d", si, ci, p), v, false)
				rv, _ := comp.Get(fmt.Sprintf("rp%d", p))
				cell(fmt.Sprintf("grade_s%d_c%d_rp%d", si, ci, p), rv, false)
			}
		}
		for ci, comp := range sub.Competencies {
			cell(fmt.Sprintf("grade_s%d_c%d_final", si, ci), comp.Final, true)
		}
		cell(fmt.Sprintf("grade_s%d_final", si), sub.Final, true)
		cell(fmt.Sprintf("grade_s%d_final_rec", si), sub.FinalRecovery, true)
		cell(fmt.Sprintf("grade_s%d_special_rec", si), sub.SpecialRecovery, true)
	}
}

func (r *Renderer) renderBasic(subjects []boletin.Subject, ensure func(FieldSpec)) {
	g := basicGrid
	for si, sub := range subjects {
		top := g.startY + si*g.rowH
		left := g.startX
		cell := func(id string, value boletin.Mark, bold bool) {
			ensure(FieldSpec{ID: id, Value: value.String(), Default: rect(top, left, g.cellW, g.cellH), Bold: bold})
			left += g.colW
		}

		for ci, comp := range sub.Competencies {
			for p, v := range comp.PeriodMarks() {
				cell(fmt.Sprintf("grade_s%d_c%d_p%d", si, ci, p+1), v, false)
			}
			cell(fmt.Sprintf("grade_s%d_c%d_final", si, ci), comp.Final, true)
		}
		cell(fmt.Sprintf("grade_s%d_final", si), sub.Final, true)
		cell(fmt.Sprintf("grade_s%d_recovery", si), sub.Recovery, true)
	}
}

// renderCommon draws observations and attendance.
func (r *Renderer) renderCommon(st boletin.SectionState, advanced bool) {
	set := st.Settings
	obsTop := obsTopBasic
	if advanced {
		obsTop = obsTopAdvanced
	}
	style := func(spec FieldSpec) {
		spec.Page = 2
		spec.Align = set.AlignP2O
		spec.Bold = set.BoldP2O
		spec.FontSize = set.FontSize
		r.canvas.Ensure(spec)
	}

	for i, p := range boletin.Periods {
		style(FieldSpec{
			ID:      "overlay_obs_" + p,
			Kind:    KindObs,
			Value:   st.Observations[p],
			Default: rect(obsTop+i*30, obsLeft, 400, 25),
		})
	}

	for i, p := range boletin.Periods {
		att := st.Attendance[p]
		for f, metric := range []string{"pres", "abs"} {
			v, _ := att.Get(metric)
			style(FieldSpec{
				ID:      fmt.Sprintf("overlay_att_%s_%s", p, metric),
				Kind:    KindAttendance,
				Value:   v.String(),
				Default: rect(obsTop+i*25, attLeft+f*40, 35, 20),
			})
		}
	}

	totalTop := obsTop + 4*25
	total := st.Attendance[boletin.PeriodTotal]
	style(FieldSpec{
		ID:      "overlay_att_total_perc",
		Kind:    KindAttendance,
		Value:   total.Perc.String(),
		Default: rect(totalTop, attLeft+80, 40, 20),
	})
	style(FieldSpec{
		ID:      "overlay_att_total_perc_abs",
		Kind:    KindAttendance,
		Value:   total.PercAbs.String(),
		Default: rect(totalTop, attLeft+120, 40, 20),
	})
}

// renderStatus draws the page-1 status fields, or removes them for grades
// that do not use them.
func (r *Renderer) renderStatus(st boletin.SectionState) {
	if !r.policy.ShowsStatus(st.Grade) {
		for _, id := range StatusFieldIDs {
			r.canvas.Remove(id)
		}
		return
	}

	set := st.Settings
	style := func(spec FieldSpec) {
		spec.Page = 1
		spec.Align = set.AlignP1
		spec.Bold = set.BoldP1
		spec.FontSize = set.FontSize
		r.canvas.Ensure(spec)
	}
	status := st.StudentStatus
	style(FieldSpec{ID: "status_prom", Kind: KindStatus, Value: status.Promoted, Default: rect(statusTop+30, 140, 30, 20)})
	style(FieldSpec{ID: "status_postponed", Kind: KindStatus, Value: status.Postponed, Default: rect(statusTop+30, 290, 30, 20)})
	style(FieldSpec{ID: "status_repeater", Kind: KindStatus, Value: status.Repeater, Default: rect(statusTop+30, 440, 30, 20)})
	style(FieldSpec{ID: "final_condition", Kind: KindText, Value: st.FinalCondition, Default: rect(statusTop+100, 50, 500, 40)})
}
