/*
Package grid builds the tabular entry form of the current student.

PURPOSE:
  Render turns a section state into a Table view-model: two header rows
  and one row per subject whose cells are bound to (subject, competency,
  field). Editing a cell maps directly to state.Store.UpdateGrade with the
  cell's coordinates.

TIERS (shared TierPolicy with the overlay):
  basic:    P1..P4 per competency | C1 C2 C3 finals | final | recovery
  advanced: P1 RP1 .. P4 RP4 per competency | C1 C2 C3 finals |
            final | final_recovery | special_recovery

Subject-level cells carry CompetencyIndex -1.
*/
package grid

import (
	"fmt"

	"github.com/warp/report-engine/boletin"
)

// Competency group labels, in competency order.
var competencyLabels = []string{
	"Competencia Comunicativa (C1)",
	"C. Pensamiento Lógico (C2)",
	"C. Ética y Ciudadana (C3)",
}

// HeaderGroup is one cell of the top header row.
type HeaderGroup struct {
	Label string `json:"label"`
	Span  int    `json:"span"`
}

// Column is one cell of the second header row.
type Column struct {
	Label string `json:"label"`
	Field string `json:"field"`
	// Recovery marks RP columns, which the form highlights.
	Recovery bool `json:"recovery,omitempty"`
}

// Cell is one editable input.
type Cell struct {
	SubjectIndex    int    `json:"sIndex"`
	CompetencyIndex int    `json:"cIndex"`
	Field           string `json:"field"`
	Value           string `json:"value"`
	Numeric         bool   `json:"numeric"`
}

// Row is one subject.
type Row struct {
	Subject string `json:"subject"`
	Cells   []Cell `json:"cells"`
	// Averages holds the rounded P1..P4 mean of each competency ("" when
	// no period is numeric).
	Averages []string `json:"averages"`
}

// Table is the whole entry form.
type Table struct {
	Tier    boletin.Tier  `json:"tier"`
	Groups  []HeaderGroup `json:"groups"`
	Columns []Column      `json:"columns"`
	Rows    []Row         `json:"rows"`
}

// Render builds the entry form of st under the default tier policy.
func Render(st boletin.SectionState) Table {
	return RenderWithPolicy(st, boletin.DefaultTierPolicy())
}

// RenderWithPolicy builds the entry form of st.
func RenderWithPolicy(st boletin.SectionState, policy boletin.TierPolicy) Table {
	tier := policy.TierFor(st.Grade)
	advanced := tier == boletin.TierAdvanced

	t := Table{Tier: tier, Rows: make([]Row, 0, len(st.Subjects))}
	t.Groups, t.Columns = headers(advanced)

	for si, sub := range st.Subjects {
		row := Row{Subject: sub.Name, Averages: make([]string, len(sub.Competencies))}
		add := func(ci int, field string, v boletin.Mark, numeric bool) {
			row.Cells = append(row.Cells, Cell{
				SubjectIndex:    si,
				CompetencyIndex: ci,
				Field:           field,
				Value:           v.String(),
				Numeric:         numeric,
			})
		}

		for ci, comp := range sub.Competencies {
			for p := 1; p <= 4; p++ {
				field := fmt.Sprintf("p%d", p)
				v, _ := comp.Get(field)
				add(ci, field, v, true)
				if advanced {
					rfield := fmt.Sprintf("rp%d", p)
					rv, _ := comp.Get(rfield)
					add(ci, rfield, rv, true)
				}
			}
			row.Averages[ci] = boletin.AverageText(comp.PeriodMarks())
		}
		for ci, comp := range sub.Competencies {
			add(ci, "final", comp.Final, advanced)
		}

		add(-1, "final", sub.Final, advanced)
		if advanced {
			add(-1, "final_recovery", sub.FinalRecovery, true)
			add(-1, "special_recovery", sub.SpecialRecovery, true)
		} else {
			add(-1, "recovery", sub.Recovery, false)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func headers(advanced bool) ([]HeaderGroup, []Column) {
	perComp := 4
	if advanced {
		perComp = 8
	}

	groups := []HeaderGroup{{Label: "Asignatura", Span: 1}}
	for _, label := range competencyLabels {
		groups = append(groups, HeaderGroup{Label: label, Span: perComp})
	}
	groups = append(groups, HeaderGroup{Label: "Finales Comp.", Span: 3})

	var cols []Column
	for range competencyLabels {
		for p := 1; p <= 4; p++ {
			cols = append(cols, Column{Label: fmt.Sprintf("P%d", p), Field: fmt.Sprintf("p%d", p)})
			if advanced {
				cols = append(cols, Column{Label: fmt.Sprintf("RP%d", p), Field: fmt.Sprintf("rp%d", p), Recovery: true})
			}
		}
	}
	for _, c := range boletin.CompetencyNames {
		cols = append(cols, Column{Label: c, Field: "final"})
	}

	if advanced {
		groups = append(groups,
			HeaderGroup{Label: "C.F.", Span: 1},
			HeaderGroup{Label: "R.F.", Span: 1},
			HeaderGroup{Label: "R.E.", Span: 1},
		)
		cols = append(cols,
			Column{Label: "C.F", Field: "final"},
			Column{Label: "R.F", Field: "final_recovery", Recovery: true},
			Column{Label: "R.E", Field: "special_recovery", Recovery: true},
		)
		return groups, cols
	}

	groups = append(groups,
		HeaderGroup{Label: "Calif. Final", Span: 1},
		HeaderGroup{Label: "Recup.", Span: 1},
	)
	cols = append(cols,
		Column{Label: "Prom", Field: "final"},
		Column{Label: "Nota", Field: "recovery"},
	)
	return groups, cols
}
