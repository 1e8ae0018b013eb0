package state

import (
	"fmt"

	"github.com/warp/report-engine/boletin"
)

// =============================================================================
// TRASH - Soft delete of students
// =============================================================================

// Trash returns the trash bin.
func (s *Store) Trash() []boletin.TrashItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]boletin.TrashItem, len(s.state.TrashBin))
	for i, t := range s.state.TrashBin {
		out[i] = t.Clone()
	}
	return out
}

// MoveToTrash moves a student's record to the trash bin. When the student
// was current, the first remaining student is loaded (or none when the
// list is empty). It reports false when the student has no record.
func (s *Store) MoveToTrash(name string) bool {
	s.mu.Lock()
	st := &s.state
	if st.CurrentStudent == name {
		s.saveCurrentStudentLocked()
	}
	rec, ok := st.Roster[name]
	if !ok {
		s.mu.Unlock()
		return false
	}

	sectionName := st.SchoolData.Section
	if sectionName == "" {
		if meta, ok := s.index.Current(); ok {
			sectionName = meta.Name
		}
	}
	st.TrashBin = append(st.TrashBin, boletin.TrashItem{
		DeletedAt:       s.nextTrashKeyLocked(),
		Name:            name,
		OriginalData:    rec.Clone(),
		OriginalSection: sectionName,
	})
	delete(st.Roster, name)
	st.StudentList = without(st.StudentList, name)

	if st.CurrentStudent == name {
		if len(st.StudentList) > 0 {
			s.loadStudentLocked(st.StudentList[0])
		} else {
			st.CurrentStudent = ""
			s.resetWorkingCopyLocked()
		}
	}
	s.saveCurrentStudentLocked()
	snap := s.state.Clone()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// nextTrashKeyLocked returns the current time in ms, bumped past any
// existing key so that deletions within the same millisecond stay unique.
func (s *Store) nextTrashKeyLocked() int64 {
	ts := s.now().UnixMilli()
	for _, t := range s.state.TrashBin {
		if t.DeletedAt >= ts {
			ts = t.DeletedAt + 1
		}
	}
	return ts
}

// RestoreFromTrash restores a trashed student into the current section.
// A name collision appends " (1)", " (2)", ... The student list is
// re-sorted alphabetically. When no student is current the restored one is
// loaded. It returns the restored name.
func (s *Store) RestoreFromTrash(deletedAt int64) (string, bool) {
	s.mu.Lock()
	st := &s.state
	idx := -1
	for i, t := range st.TrashBin {
		if t.DeletedAt == deletedAt {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return "", false
	}
	item := st.TrashBin[idx]

	name := item.Name
	for n := 1; st.HasStudent(name) || hasRecord(st, name); n++ {
		name = fmt.Sprintf("%s (%d)", item.Name, n)
	}

	if st.Roster == nil {
		st.Roster = map[string]boletin.StudentRecord{}
	}
	st.Roster[name] = item.OriginalData.Clone()
	st.StudentList = append(st.StudentList, name)
	sortNames(st.StudentList)
	st.TrashBin = append(st.TrashBin[:idx:idx], st.TrashBin[idx+1:]...)

	if st.CurrentStudent == "" {
		s.loadStudentLocked(name)
	}
	s.saveCurrentStudentLocked()
	snap := s.state.Clone()
	s.mu.Unlock()

	s.notify(snap)
	return name, true
}

// EmptyTrash permanently deletes every trashed student.
func (s *Store) EmptyTrash() {
	s.mutate(true, func(st *boletin.SectionState) bool {
		st.TrashBin = []boletin.TrashItem{}
		return true
	})
}

func hasRecord(st *boletin.SectionState, name string) bool {
	_, ok := st.Roster[name]
	return ok
}
