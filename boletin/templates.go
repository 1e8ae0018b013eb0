package boletin

// =============================================================================
// SUBJECT TEMPLATES
// =============================================================================

var lowerPrimary = []string{
	"Lengua Española",
	"Matemática",
	"Ciencias Sociales",
	"Ciencias de la Naturaleza",
	"Educación Física",
	"Formación Integral, Humana y Religiosa",
	"Educación Artística",
}

var upperPrimary = []string{
	"Lengua Española",
	"Matemática",
	"Ciencias Sociales",
	"Ciencias de la Naturaleza",
	"Lenguas Extranjeras (Inglés)",
	"Educación Física",
	"Formación Integral, Humana y Religiosa",
	"Educación Artística",
}

// CompetencyNames are fixed for every grade and tier.
var CompetencyNames = []string{"C1", "C2", "C3"}

// SubjectNames returns the subject template of a grade. Unknown grades use
// grade 1's template.
func SubjectNames(g Grade) []string {
	var names []string
	switch g {
	case 4, 5, 6:
		names = upperPrimary
	default:
		names = lowerPrimary
	}
	return append([]string(nil), names...)
}

// SubjectsForGrade builds empty subjects for a grade, each with exactly
// three competencies named C1, C2, C3.
func SubjectsForGrade(g Grade) []Subject {
	names := SubjectNames(g)
	out := make([]Subject, len(names))
	for i, name := range names {
		comps := make([]Competency, len(CompetencyNames))
		for j, c := range CompetencyNames {
			comps[j] = Competency{Name: c}
		}
		out[i] = Subject{Name: name, Competencies: comps}
	}
	return out
}

// =============================================================================
// TIERS
// =============================================================================

// Tier is the overlay/grid layout variant selected by grade.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierAdvanced Tier = "advanced"
)

// TierPolicy holds the grade boundaries shared by every renderer.
//
// Grade 3 uses the lower-primary subject list but renders with the
// advanced tier under the default policy. Whether grade 3 belongs to the
// advanced tier is a product decision; change AdvancedFrom to move it.
type TierPolicy struct {
	// AdvancedFrom is the first grade rendered with the advanced tier.
	AdvancedFrom Grade
	// StatusFrom is the first grade that shows the page-1 status fields.
	// Grades below it form the "simple" tier.
	StatusFrom Grade
}

// DefaultTierPolicy returns the boundaries used by the browser editor.
func DefaultTierPolicy() TierPolicy {
	return TierPolicy{AdvancedFrom: 3, StatusFrom: 3}
}

// TierFor returns the layout tier of a grade.
func (p TierPolicy) TierFor(g Grade) Tier {
	if g.OrDefault() >= p.AdvancedFrom {
		return TierAdvanced
	}
	return TierBasic
}

// ShowsStatus reports whether page-1 status fields apply to a grade.
func (p TierPolicy) ShowsStatus(g Grade) bool {
	return g.OrDefault() >= p.StatusFrom
}
