/*
Package boletin provides the core report-card data model.

PURPOSE:
  This package contains the types every other package speaks: sections,
  the per-section state that is persisted as one document, students'
  subjects/competencies, attendance and the trash bin. It also owns the
  grade templates, the tier boundary and the small shared utilities
  (averaging, debouncing, publish/subscribe).

KEY CONCEPTS IN THIS FILE (types.go):
  - Grade: school grade 1..6, selects templates and layout tiers
  - Mark: free-text grade cell, tolerant of legacy JSON numbers
  - SectionState: the working copy + roster of one section
  - StudentRecord: snapshot of one student inside the roster
  - TrashItem: soft-deleted student

DESIGN PRINCIPLES:
  1. Value semantics: every composite type has Clone(); the working copy,
     roster records, trash items and published snapshots never share
     slices or maps.
  2. Tolerance: grade values are free text; non-numeric or empty values
     are accepted everywhere.
  3. JSON keys mirror the documents already stored by browsers, so
     existing backups keep loading.

SEE ALSO:
  - templates.go: Subject templates per grade and tier policy
  - document.go: Persisted state document and full backup shapes
  - store.go: Storage interfaces
*/
package boletin

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// =============================================================================
// GRADE
// =============================================================================

// Grade is a school grade. Valid values are 1..6.
type Grade int

const (
	MinGrade Grade = 1
	MaxGrade Grade = 6
)

// Valid reports whether g is a supported grade.
func (g Grade) Valid() bool { return g >= MinGrade && g <= MaxGrade }

// OrDefault returns g, or grade 1 when g is invalid.
func (g Grade) OrDefault() Grade {
	if g.Valid() {
		return g
	}
	return MinGrade
}

func (g Grade) String() string { return strconv.Itoa(int(g)) }

// ParseGrade parses "1".."6". Anything else returns false.
func ParseGrade(s string) (Grade, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	g := Grade(n)
	return g, g.Valid()
}

// UnmarshalJSON accepts numbers and numeric strings; older documents store
// the grade as "1". Unparseable values decode as 0 and are normalised later.
func (g *Grade) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*g = 0
		return nil
	}
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		*g = 0
		return nil
	}
	*g = Grade(int(f))
	return nil
}

// =============================================================================
// MARK - Free-text grade cell
// =============================================================================

// Mark is a free-text value expected to hold a small integer.
type Mark string

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (m *Mark) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*m = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Mark(s)
	default:
		*m = Mark(data)
	}
	return nil
}

func (m Mark) String() string { return string(m) }

// =============================================================================
// PERIODS
// =============================================================================

// Period keys. Observations use the four grading terms; attendance also
// carries the annual total.
const (
	PeriodTotal = "total"
)

var (
	Periods           = []string{"p1", "p2", "p3", "p4"}
	AttendancePeriods = []string{"p1", "p2", "p3", "p4", PeriodTotal}
)

// =============================================================================
// COMPETENCY / SUBJECT
// =============================================================================

// Competency is one of the three fixed sub-skills graded per subject.
type Competency struct {
	Name     string `json:"name"`
	P1       Mark   `json:"p1"`
	RP1      Mark   `json:"rp1"`
	P2       Mark   `json:"p2"`
	RP2      Mark   `json:"rp2"`
	P3       Mark   `json:"p3"`
	RP3      Mark   `json:"rp3"`
	P4       Mark   `json:"p4"`
	RP4      Mark   `json:"rp4"`
	Final    Mark   `json:"final"`
	Recovery Mark   `json:"recovery"`
}

func (c *Competency) field(name string) *Mark {
	switch name {
	case "p1":
		return &c.P1
	case "rp1":
		return &c.RP1
	case "p2":
		return &c.P2
	case "rp2":
		return &c.RP2
	case "p3":
		return &c.P3
	case "rp3":
		return &c.RP3
	case "p4":
		return &c.P4
	case "rp4":
		return &c.RP4
	case "final":
		return &c.Final
	case "recovery":
		return &c.Recovery
	}
	return nil
}

// Get returns the value of a grade field by its JSON name.
func (c Competency) Get(field string) (Mark, bool) {
	p := c.field(field)
	if p == nil {
		return "", false
	}
	return *p, true
}

// Set writes a grade field by its JSON name. Unknown fields are ignored.
func (c *Competency) Set(field string, value Mark) bool {
	p := c.field(field)
	if p == nil {
		return false
	}
	*p = value
	return true
}

// PeriodMarks returns p1..p4 in order.
func (c Competency) PeriodMarks() []Mark {
	return []Mark{c.P1, c.P2, c.P3, c.P4}
}

// Subject is one row of the report card.
type Subject struct {
	Name            string       `json:"name"`
	Final           Mark         `json:"final"`
	Recovery        Mark         `json:"recovery"`
	FinalRecovery   Mark         `json:"final_recovery"`
	SpecialRecovery Mark         `json:"special_recovery"`
	Competencies    []Competency `json:"competencies"`
}

func (s *Subject) field(name string) *Mark {
	switch name {
	case "final":
		return &s.Final
	case "recovery":
		return &s.Recovery
	case "final_recovery":
		return &s.FinalRecovery
	case "special_recovery":
		return &s.SpecialRecovery
	}
	return nil
}

// Get returns a subject-level field by its JSON name.
func (s Subject) Get(field string) (Mark, bool) {
	p := s.field(field)
	if p == nil {
		return "", false
	}
	return *p, true
}

// Set writes a subject-level field. Unknown fields are ignored.
func (s *Subject) Set(field string, value Mark) bool {
	p := s.field(field)
	if p == nil {
		return false
	}
	*p = value
	return true
}

// Clone returns a deep copy.
func (s Subject) Clone() Subject {
	out := s
	out.Competencies = append([]Competency(nil), s.Competencies...)
	return out
}

// CloneSubjects deep-copies a subject list. A nil list stays nil.
func CloneSubjects(in []Subject) []Subject {
	if in == nil {
		return nil
	}
	out := make([]Subject, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

// =============================================================================
// ATTENDANCE / STATUS / INFO
// =============================================================================

// Attendance holds days present/absent and percentages for one period.
type Attendance struct {
	Pres    Mark `json:"pres"`
	Abs     Mark `json:"abs"`
	Perc    Mark `json:"perc"`
	PercAbs Mark `json:"perc_abs"`
}

func (a *Attendance) field(name string) *Mark {
	switch name {
	case "pres":
		return &a.Pres
	case "abs":
		return &a.Abs
	case "perc":
		return &a.Perc
	case "perc_abs":
		return &a.PercAbs
	}
	return nil
}

// Get returns a metric by its JSON name.
func (a Attendance) Get(field string) (Mark, bool) {
	p := a.field(field)
	if p == nil {
		return "", false
	}
	return *p, true
}

// Set writes a metric by its JSON name.
func (a *Attendance) Set(field string, value Mark) bool {
	p := a.field(field)
	if p == nil {
		return false
	}
	*p = value
	return true
}

// StudentStatus holds the end-of-year flags.
type StudentStatus struct {
	Promoted  string `json:"promoted"`
	Postponed string `json:"postponed"`
	Repeater  string `json:"repeater"`
}

// Set writes a flag by its JSON name.
func (s *StudentStatus) Set(field, value string) bool {
	switch field {
	case "promoted":
		s.Promoted = value
	case "postponed":
		s.Postponed = value
	case "repeater":
		s.Repeater = value
	default:
		return false
	}
	return true
}

// StudentInfo is the per-student profile.
type StudentInfo struct {
	Nombres    string `json:"nombres"`
	Apellidos  string `json:"apellidos"`
	ID         Mark   `json:"id"`
	Order      Mark   `json:"order"`
	ObsGeneral string `json:"obsGeneral"`
}

// Set writes a profile field by its JSON name.
func (s *StudentInfo) Set(field, value string) bool {
	switch field {
	case "nombres":
		s.Nombres = value
	case "apellidos":
		s.Apellidos = value
	case "id":
		s.ID = Mark(value)
	case "order":
		s.Order = Mark(value)
	case "obsGeneral":
		s.ObsGeneral = value
	default:
		return false
	}
	return true
}

// SchoolData is institutional metadata shown on page 1.
type SchoolData struct {
	Centro    string `json:"centro"`
	Codigo    string `json:"codigo"`
	Tanda     string `json:"tanda"`
	Telefono  string `json:"telefono"`
	Regional  string `json:"regional"`
	Distrito  string `json:"distrito"`
	Provincia string `json:"provincia"`
	Municipio string `json:"municipio"`
	Section   string `json:"section"`
}

// Set writes a field by its JSON name.
func (s *SchoolData) Set(field, value string) bool {
	switch field {
	case "centro":
		s.Centro = value
	case "codigo":
		s.Codigo = value
	case "tanda":
		s.Tanda = value
	case "telefono":
		s.Telefono = value
	case "regional":
		s.Regional = value
	case "distrito":
		s.Distrito = value
	case "provincia":
		s.Provincia = value
	case "municipio":
		s.Municipio = value
	case "section":
		s.Section = value
	default:
		return false
	}
	return true
}

// Settings are display and layout preferences of a section.
type Settings struct {
	IsOverlayMode bool   `json:"isOverlayMode"`
	IsEditMode    bool   `json:"isEditMode"`
	FontSize      int    `json:"fontSize"`
	AlignP1       string `json:"alignP1"`
	AlignP2G      string `json:"alignP2G"`
	AlignP2O      string `json:"alignP2O"`
	BoldP1        bool   `json:"boldP1"`
	BoldP2G       bool   `json:"boldP2G"`
	BoldP2O       bool   `json:"boldP2O"`
	PDFNameFormat string `json:"pdfNameFormat"`
}

// DefaultSettings returns the settings of a freshly created section.
func DefaultSettings() Settings {
	return Settings{
		IsOverlayMode: true,
		FontSize:      14,
		AlignP1:       "left",
		AlignP2G:      "center",
		AlignP2O:      "left",
		PDFNameFormat: "default",
	}
}

// =============================================================================
// STUDENT RECORD / TRASH
// =============================================================================

// StudentRecord is the snapshot of one student stored in the roster.
type StudentRecord struct {
	Subjects       []Subject             `json:"subjects"`
	Attendance     map[string]Attendance `json:"attendance"`
	Observations   map[string]string     `json:"observations"`
	StudentStatus  StudentStatus         `json:"studentStatus"`
	FinalCondition string                `json:"finalCondition"`
	StudentInfo    StudentInfo           `json:"studentInfo"`
	Grade          Grade                 `json:"grade"`
}

// Clone returns a deep copy.
func (r StudentRecord) Clone() StudentRecord {
	out := r
	out.Subjects = CloneSubjects(r.Subjects)
	out.Attendance = cloneAttendance(r.Attendance)
	out.Observations = cloneStrings(r.Observations)
	return out
}

// Blank reports whether nothing was ever entered for the student.
func (r StudentRecord) Blank() bool {
	for _, sub := range r.Subjects {
		if sub.Final != "" || sub.Recovery != "" || sub.FinalRecovery != "" || sub.SpecialRecovery != "" {
			return false
		}
		for _, c := range sub.Competencies {
			if c != (Competency{Name: c.Name}) {
				return false
			}
		}
	}
	for _, a := range r.Attendance {
		if a != (Attendance{}) {
			return false
		}
	}
	for _, o := range r.Observations {
		if o != "" {
			return false
		}
	}
	return r.StudentStatus == StudentStatus{} &&
		r.FinalCondition == "" &&
		r.StudentInfo == StudentInfo{}
}

// TrashItem is a soft-deleted student. DeletedAt (epoch ms) is its key.
type TrashItem struct {
	DeletedAt       int64         `json:"deletedAt"`
	Name            string        `json:"name"`
	OriginalData    StudentRecord `json:"originalData"`
	OriginalSection string        `json:"originalSection"`
}

// Clone returns a deep copy.
func (t TrashItem) Clone() TrashItem {
	out := t
	out.OriginalData = t.OriginalData.Clone()
	return out
}

// =============================================================================
// SECTION / SECTION STATE
// =============================================================================

// Section is one class/grade/shift grouping.
type Section struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Grade     Grade  `json:"grade"`
	Shift     string `json:"shift"`
	CreatedAt int64  `json:"createdAt"`
}

// SectionState is the unit of persistence: one per section.
//
// Subjects, Attendance, Observations, StudentStatus, FinalCondition and
// StudentInfo are the working copy of CurrentStudent and must be flushed
// into Roster before the current student or section changes.
type SectionState struct {
	Grade          Grade                    `json:"grade"`
	Subjects       []Subject                `json:"subjects"`
	Settings       Settings                 `json:"settings"`
	Observations   map[string]string        `json:"observations"`
	Attendance     map[string]Attendance    `json:"attendance"`
	StudentStatus  StudentStatus            `json:"studentStatus"`
	FinalCondition string                   `json:"finalCondition"`
	Roster         map[string]StudentRecord `json:"roster"`
	StudentList    []string                 `json:"studentList"`
	CurrentStudent string                   `json:"currentStudent"`
	SchoolData     SchoolData               `json:"schoolData"`
	StudentInfo    StudentInfo              `json:"studentInfo"`
	TrashBin       []TrashItem              `json:"trashBin"`
}

// Clone returns a deep copy.
func (s SectionState) Clone() SectionState {
	out := s
	out.Subjects = CloneSubjects(s.Subjects)
	out.Observations = cloneStrings(s.Observations)
	out.Attendance = cloneAttendance(s.Attendance)
	if s.StudentList != nil {
		out.StudentList = append([]string{}, s.StudentList...)
	}
	if s.Roster != nil {
		out.Roster = make(map[string]StudentRecord, len(s.Roster))
		for k, v := range s.Roster {
			out.Roster[k] = v.Clone()
		}
	}
	if s.TrashBin != nil {
		out.TrashBin = make([]TrashItem, len(s.TrashBin))
		for i, t := range s.TrashBin {
			out.TrashBin[i] = t.Clone()
		}
	}
	return out
}

// Record snapshots the working copy as a roster record.
func (s SectionState) Record() StudentRecord {
	return StudentRecord{
		Subjects:       CloneSubjects(s.Subjects),
		Attendance:     cloneAttendance(s.Attendance),
		Observations:   cloneStrings(s.Observations),
		StudentStatus:  s.StudentStatus,
		FinalCondition: s.FinalCondition,
		StudentInfo:    s.StudentInfo,
		Grade:          s.Grade,
	}
}

// HasStudent reports whether name is in the student list.
func (s SectionState) HasStudent(name string) bool {
	for _, n := range s.StudentList {
		if n == name {
			return true
		}
	}
	return false
}

// EmptyAttendance returns p1..p4 and total buckets with empty values.
func EmptyAttendance() map[string]Attendance {
	out := make(map[string]Attendance, len(AttendancePeriods))
	for _, p := range AttendancePeriods {
		out[p] = Attendance{}
	}
	return out
}

// EmptyObservations returns p1..p4 with empty text.
func EmptyObservations() map[string]string {
	out := make(map[string]string, len(Periods))
	for _, p := range Periods {
		out[p] = ""
	}
	return out
}

// DefaultState returns the reset state of a section. School defaults seed
// centro, codigo, regional and distrito.
func DefaultState(defaults SchoolData) SectionState {
	return SectionState{
		Grade:          MinGrade,
		Subjects:       []Subject{},
		Settings:       DefaultSettings(),
		Observations:   EmptyObservations(),
		Attendance:     EmptyAttendance(),
		Roster:         map[string]StudentRecord{},
		StudentList:    []string{},
		CurrentStudent: DefaultStudentName,
		SchoolData: SchoolData{
			Centro:   defaults.Centro,
			Codigo:   defaults.Codigo,
			Regional: defaults.Regional,
			Distrito: defaults.Distrito,
		},
		TrashBin: []TrashItem{},
	}
}

// DefaultStudentName is the student created for an empty roster.
const DefaultStudentName = "Estudiante 1"

// Normalize repairs a decoded state field by field so that older or partial
// documents never leave nil maps or missing buckets behind.
func (s *SectionState) Normalize() {
	s.Grade = s.Grade.OrDefault()
	if s.Subjects == nil {
		s.Subjects = []Subject{}
	}
	if s.Observations == nil {
		s.Observations = EmptyObservations()
	}
	if s.Attendance == nil {
		s.Attendance = EmptyAttendance()
	}
	for _, p := range AttendancePeriods {
		if _, ok := s.Attendance[p]; !ok {
			s.Attendance[p] = Attendance{}
		}
	}
	if s.Roster == nil {
		s.Roster = map[string]StudentRecord{}
	}
	if s.StudentList == nil {
		s.StudentList = []string{}
	}
	if s.TrashBin == nil {
		s.TrashBin = []TrashItem{}
	}
	if s.Settings.FontSize == 0 {
		s.Settings.FontSize = DefaultSettings().FontSize
	}
}

func cloneStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneAttendance(in map[string]Attendance) map[string]Attendance {
	if in == nil {
		return nil
	}
	out := make(map[string]Attendance, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
