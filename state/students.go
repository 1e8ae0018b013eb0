package state

import (
	"fmt"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/warp/report-engine/boletin"
	"github.com/warp/report-engine/importer"
)

// =============================================================================
// ROSTER
// =============================================================================

// SaveCurrentStudent flushes the working copy into the roster and schedules
// a write.
func (s *Store) SaveCurrentStudent() {
	s.mu.Lock()
	s.saveCurrentStudentLocked()
	s.mu.Unlock()
	s.saver.Schedule()
}

func (s *Store) saveCurrentStudentLocked() {
	st := &s.state
	if st.CurrentStudent == "" {
		return
	}
	if st.Roster == nil {
		st.Roster = map[string]boletin.StudentRecord{}
	}
	st.Roster[st.CurrentStudent] = st.Record()
	if !st.HasStudent(st.CurrentStudent) {
		st.StudentList = append(st.StudentList, st.CurrentStudent)
	}
}

// LoadStudent makes name the current student. With saveCurrent the working
// copy is flushed first. A name not in the roster becomes a new student
// with empty data for the current grade, persisted immediately.
func (s *Store) LoadStudent(name string, saveCurrent bool) {
	s.mu.Lock()
	if saveCurrent {
		s.saveCurrentStudentLocked()
	}
	s.loadStudentLocked(name)
	snap := s.state.Clone()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) loadStudentLocked(name string) {
	st := &s.state
	st.CurrentStudent = name

	rec, ok := st.Roster[name]
	if !ok {
		s.resetWorkingCopyLocked()
		s.saveCurrentStudentLocked()
		return
	}

	if rec.Grade.Valid() {
		st.Grade = rec.Grade
	}
	st.Subjects = boletin.CloneSubjects(rec.Subjects)
	if st.Subjects == nil {
		st.Subjects = boletin.SubjectsForGrade(st.Grade)
	}
	st.Attendance = rec.Clone().Attendance
	if st.Attendance == nil {
		st.Attendance = boletin.EmptyAttendance()
	}
	if _, ok := st.Attendance[boletin.PeriodTotal]; !ok {
		st.Attendance[boletin.PeriodTotal] = boletin.Attendance{}
	}
	st.Observations = rec.Clone().Observations
	if st.Observations == nil {
		st.Observations = boletin.EmptyObservations()
	}
	st.StudentStatus = rec.StudentStatus
	st.FinalCondition = rec.FinalCondition
	st.StudentInfo = rec.StudentInfo
}

func (s *Store) resetWorkingCopyLocked() {
	st := &s.state
	st.Subjects = boletin.SubjectsForGrade(st.Grade)
	st.Attendance = boletin.EmptyAttendance()
	st.Observations = boletin.EmptyObservations()
	st.StudentStatus = boletin.StudentStatus{}
	st.FinalCondition = ""
	st.StudentInfo = boletin.StudentInfo{}
}

// Students returns the navigation order.
func (s *Store) Students() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.state.StudentList...)
}

// CurrentStudent returns the current student's name.
func (s *Store) CurrentStudent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentStudent
}

// AddStudent creates a new student and makes it current.
func (s *Store) AddStudent(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return boletin.ErrInvalidStudentName
	}
	s.mu.Lock()
	exists := s.state.HasStudent(name)
	s.mu.Unlock()
	if exists {
		return fmt.Errorf("%w: %s", boletin.ErrStudentExists, name)
	}
	s.LoadStudent(name, true)
	return nil
}

// DeleteStudent removes a student permanently and loads the first remaining
// one (or a fresh default student).
func (s *Store) DeleteStudent(name string) error {
	s.mu.Lock()
	st := &s.state
	_, inRoster := st.Roster[name]
	if !inRoster && !st.HasStudent(name) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", boletin.ErrStudentNotFound, name)
	}
	delete(st.Roster, name)
	st.StudentList = without(st.StudentList, name)
	next := boletin.DefaultStudentName
	if len(st.StudentList) > 0 {
		next = st.StudentList[0]
	}
	s.loadStudentLocked(next)
	snap := s.state.Clone()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// DeleteAllStudents clears the roster and starts over with the default
// student. Callers confirm before invoking it.
func (s *Store) DeleteAllStudents() {
	s.mu.Lock()
	s.state.StudentList = []string{}
	s.state.Roster = map[string]boletin.StudentRecord{}
	s.loadStudentLocked(boletin.DefaultStudentName)
	snap := s.state.Clone()
	s.mu.Unlock()

	s.notify(snap)
}

// SetRoster replaces the roster and loads the first student of list.
func (s *Store) SetRoster(list []string, roster map[string]boletin.StudentRecord) {
	s.mu.Lock()
	s.state.StudentList = append([]string{}, list...)
	s.state.Roster = make(map[string]boletin.StudentRecord, len(roster))
	for k, v := range roster {
		s.state.Roster[k] = v.Clone()
	}
	if len(list) > 0 {
		s.loadStudentLocked(list[0])
	}
	snap := s.state.Clone()
	s.mu.Unlock()

	s.notify(snap)
}

// Navigate moves dir steps through the student list, clamped to its ends.
// It reports whether the current student changed.
func (s *Store) Navigate(dir int) bool {
	s.mu.Lock()
	list := s.state.StudentList
	idx := indexOf(list, s.state.CurrentStudent)
	if len(list) <= 1 || idx == -1 {
		s.mu.Unlock()
		return false
	}
	next := idx + dir
	if next < 0 {
		next = 0
	}
	if next >= len(list) {
		next = len(list) - 1
	}
	if next == idx {
		s.mu.Unlock()
		return false
	}
	name := list[next]
	s.mu.Unlock()

	s.LoadStudent(name, true)
	return true
}

// ImportRoster adds every unknown name as an empty student at the current
// grade, keeping the current student. The profile's nombres and apellidos
// come from importer.ParseName. It returns the number added.
func (s *Store) ImportRoster(names []string) int {
	added := 0
	s.mutate(true, func(st *boletin.SectionState) bool {
		for _, raw := range names {
			name := strings.TrimSpace(raw)
			if name == "" || st.HasStudent(name) {
				continue
			}
			if _, ok := st.Roster[name]; ok {
				continue
			}
			nombres, apellidos := importer.ParseName(name)
			st.Roster[name] = boletin.StudentRecord{
				Subjects:     boletin.SubjectsForGrade(st.Grade),
				Attendance:   boletin.EmptyAttendance(),
				Observations: boletin.EmptyObservations(),
				StudentInfo:  boletin.StudentInfo{Nombres: nombres, Apellidos: apellidos},
				Grade:        st.Grade,
			}
			st.StudentList = append(st.StudentList, name)
			added++
		}
		return added > 0
	})
	return added
}

// sortNames orders names the way a Spanish reader expects
// ("Álvaro" before "Beatriz").
func sortNames(names []string) {
	collate.New(language.Spanish).SortStrings(names)
}

func without(list []string, name string) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

func indexOf(list []string, name string) int {
	for i, n := range list {
		if n == name {
			return i
		}
	}
	return -1
}
