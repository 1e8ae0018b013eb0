/*
Package state provides the AppStore: the observable, section-scoped state
container of the report-card editor.

PURPOSE:
  Holds the state of the current section (working copy of the current
  student + roster + trash), applies every mutation, notifies subscribers
  synchronously and persists through a debounced writer.

STATE MACHINE (per section):
  Empty -> Loaded -> Dirty (debounced) -> Persisted
  Every mutation re-enters Dirty; the debounce timer collapses it back to
  Persisted. Switching sections forces an immediate flush first.

WORKING COPY:
  Subjects, Attendance, Observations, StudentStatus, FinalCondition and
  StudentInfo belong to CurrentStudent. Every mutator flushes them into
  Roster[CurrentStudent] so no edit is lost to a later switch.

NOTIFICATION:
  Listeners receive a deep copy of the state after the mutation, before the
  mutating call returns. Listeners run outside the store lock and may call
  back into the store.

CONCURRENCY:
  One mutex guards the state. The debounced writer runs on a timer
  goroutine and takes the same mutex, so state and target section id are
  always read together.

SEE ALSO:
  - persist.go: Document read/write, Init, section switching
  - students.go: Roster navigation and CRUD
  - trash.go: Soft delete
  - backup.go: Full backup export/import and legacy migration
*/
package state

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/report-engine/boletin"
	"github.com/warp/report-engine/section"
)

// Default timings.
const (
	DefaultSaveDelay = time.Second
	// importLeadTime pushes a legacy import's timestamp ahead so it wins a
	// newest-wins comparison against a recent cloud copy.
	importLeadTime = 10 * time.Second
)

// Names used for synthesized sections.
const (
	DefaultSectionName  = "Sección A"
	RecoveredSectionName = "Recuperado"
	ImportedSectionName = "Imported (V1)"
)

// Listener receives a copy of the state after every change.
type Listener = func(boletin.SectionState)

// Store is the AppStore.
type Store struct {
	storage boletin.Storage
	index   *section.Index
	log     *zap.Logger
	now     func() time.Time

	saveDelay time.Duration
	saver     *boletin.Debouncer

	mu    sync.Mutex
	state boletin.SectionState

	changes  boletin.Topic[boletin.SectionState]
	restored boletin.Topic[struct{}]
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock overrides time.Now (timestamps, trash keys).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSaveDelay sets the debounce window of persistence writes.
func WithSaveDelay(d time.Duration) Option {
	return func(s *Store) { s.saveDelay = d }
}

// New creates a store over storage and the section index. Call Init before
// use.
func New(storage boletin.Storage, index *section.Index, opts ...Option) *Store {
	s := &Store{
		storage:   storage,
		index:     index,
		log:       zap.NewNop(),
		now:       time.Now,
		saveDelay: DefaultSaveDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = boletin.DefaultState(boletin.SchoolData{})
	s.saver = boletin.NewDebouncer(s.saveDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.persistLocked(context.Background())
	})
	return s
}

// Sections returns the section index.
func (s *Store) Sections() *section.Index {
	return s.index
}

// State returns a deep copy of the current state.
func (s *Store) State() boletin.SectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Grade returns the working grade.
func (s *Store) Grade() boletin.Grade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Grade
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers a change listener and returns its unsubscribe handle.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	return s.changes.Subscribe(fn)
}

// OnSettingsRestored registers a listener for backup imports that restored
// process-wide preferences.
func (s *Store) OnSettingsRestored(fn func()) (unsubscribe func()) {
	return s.restored.Subscribe(func(struct{}) { fn() })
}

// publish delivers a snapshot to listeners without scheduling a write; used
// when the state was just read from storage.
func (s *Store) publish(snap boletin.SectionState) {
	s.changes.Publish(snap)
}

// notify delivers a snapshot and schedules the debounced write.
func (s *Store) notify(snap boletin.SectionState) {
	s.changes.Publish(snap)
	s.saver.Schedule()
}

// mutate runs fn under the lock. When fn reports a change, the working copy
// is flushed into the roster (if flush) and listeners are notified.
func (s *Store) mutate(flush bool, fn func(st *boletin.SectionState) bool) bool {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return false
	}
	if flush {
		s.saveCurrentStudentLocked()
	}
	snap := s.state.Clone()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// =============================================================================
// WORKING COPY MUTATIONS
// =============================================================================

// UpdateGrade writes a grade cell. competencyIndex >= 0 targets a
// competency field (p1..p4, rp1..rp4, final, recovery); a negative index
// targets a subject-level field (final, recovery, final_recovery,
// special_recovery). Out-of-range indices and unknown fields are no-ops.
func (s *Store) UpdateGrade(subjectIndex, competencyIndex int, field, value string) bool {
	return s.mutate(true, func(st *boletin.SectionState) bool {
		if subjectIndex < 0 || subjectIndex >= len(st.Subjects) {
			return false
		}
		sub := &st.Subjects[subjectIndex]
		if competencyIndex >= 0 {
			if competencyIndex >= len(sub.Competencies) {
				return false
			}
			return sub.Competencies[competencyIndex].Set(field, boletin.Mark(value))
		}
		return sub.Set(field, boletin.Mark(value))
	})
}

// UpdateObservation writes the observation of period p1..p4.
func (s *Store) UpdateObservation(period, value string) bool {
	if !isPeriod(period, boletin.Periods) {
		return false
	}
	return s.mutate(true, func(st *boletin.SectionState) bool {
		if st.Observations == nil {
			st.Observations = boletin.EmptyObservations()
		}
		st.Observations[period] = value
		return true
	})
}

// UpdateAttendance writes one attendance metric of period p1..p4 or total.
func (s *Store) UpdateAttendance(period, field, value string) bool {
	if !isPeriod(period, boletin.AttendancePeriods) {
		return false
	}
	return s.mutate(true, func(st *boletin.SectionState) bool {
		if st.Attendance == nil {
			st.Attendance = boletin.EmptyAttendance()
		}
		att := st.Attendance[period]
		if !att.Set(field, boletin.Mark(value)) {
			return false
		}
		st.Attendance[period] = att
		return true
	})
}

// UpdateStudentStatus writes promoted, postponed or repeater.
func (s *Store) UpdateStudentStatus(field, value string) bool {
	return s.mutate(true, func(st *boletin.SectionState) bool {
		return st.StudentStatus.Set(field, value)
	})
}

// UpdateFinalCondition writes the final condition text.
func (s *Store) UpdateFinalCondition(value string) bool {
	return s.mutate(true, func(st *boletin.SectionState) bool {
		st.FinalCondition = value
		return true
	})
}

// UpdateStudentInfo writes a profile field.
func (s *Store) UpdateStudentInfo(field, value string) bool {
	return s.mutate(true, func(st *boletin.SectionState) bool {
		return st.StudentInfo.Set(field, value)
	})
}

// UpdateSchoolData writes institutional metadata. "tanda" is mirrored into
// the current section's shift.
func (s *Store) UpdateSchoolData(ctx context.Context, field, value string) (bool, error) {
	if !s.mutate(true, func(st *boletin.SectionState) bool {
		return st.SchoolData.Set(field, value)
	}) {
		return false, nil
	}
	if field == "tanda" {
		if id := s.index.CurrentID(); id != "" {
			err := s.index.Update(ctx, id, func(sec *boletin.Section) { sec.Shift = value })
			if err != nil {
				return true, err
			}
		}
	}
	return true, nil
}

// SettingsPatch is a partial settings update; nil fields are left alone.
type SettingsPatch struct {
	IsOverlayMode *bool   `json:"isOverlayMode,omitempty"`
	IsEditMode    *bool   `json:"isEditMode,omitempty"`
	FontSize      *int    `json:"fontSize,omitempty"`
	AlignP1       *string `json:"alignP1,omitempty"`
	AlignP2G      *string `json:"alignP2G,omitempty"`
	AlignP2O      *string `json:"alignP2O,omitempty"`
	BoldP1        *bool   `json:"boldP1,omitempty"`
	BoldP2G       *bool   `json:"boldP2G,omitempty"`
	BoldP2O       *bool   `json:"boldP2O,omitempty"`
	PDFNameFormat *string `json:"pdfNameFormat,omitempty"`
}

func (p SettingsPatch) apply(s *boletin.Settings) {
	if p.IsOverlayMode != nil {
		s.IsOverlayMode = *p.IsOverlayMode
	}
	if p.IsEditMode != nil {
		s.IsEditMode = *p.IsEditMode
	}
	if p.FontSize != nil {
		s.FontSize = *p.FontSize
	}
	if p.AlignP1 != nil {
		s.AlignP1 = *p.AlignP1
	}
	if p.AlignP2G != nil {
		s.AlignP2G = *p.AlignP2G
	}
	if p.AlignP2O != nil {
		s.AlignP2O = *p.AlignP2O
	}
	if p.BoldP1 != nil {
		s.BoldP1 = *p.BoldP1
	}
	if p.BoldP2G != nil {
		s.BoldP2G = *p.BoldP2G
	}
	if p.BoldP2O != nil {
		s.BoldP2O = *p.BoldP2O
	}
	if p.PDFNameFormat != nil {
		s.PDFNameFormat = *p.PDFNameFormat
	}
}

// UpdateSettings merges a settings patch.
func (s *Store) UpdateSettings(patch SettingsPatch) {
	s.mutate(false, func(st *boletin.SectionState) bool {
		patch.apply(&st.Settings)
		return true
	})
}

// SetGrade changes the working grade. Subjects are regenerated from the
// grade template, unless the current student's saved record is already at
// that grade, in which case its subjects are restored. Other students'
// records are not touched.
func (s *Store) SetGrade(ctx context.Context, g boletin.Grade) error {
	if !g.Valid() {
		return boletin.ErrInvalidGrade
	}
	changed := s.mutate(false, func(st *boletin.SectionState) bool {
		if st.Grade == g {
			return false
		}
		st.Grade = g
		if rec, ok := st.Roster[st.CurrentStudent]; ok && rec.Grade == g && len(rec.Subjects) > 0 {
			st.Subjects = boletin.CloneSubjects(rec.Subjects)
		} else {
			st.Subjects = boletin.SubjectsForGrade(g)
		}
		return true
	})
	if !changed {
		return nil
	}
	if id := s.index.CurrentID(); id != "" {
		return s.index.Update(ctx, id, func(sec *boletin.Section) { sec.Grade = g })
	}
	return nil
}

func isPeriod(p string, allowed []string) bool {
	for _, a := range allowed {
		if a == p {
			return true
		}
	}
	return false
}
