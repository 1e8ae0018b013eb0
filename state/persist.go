package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/warp/report-engine/boletin"
)

// =============================================================================
// INITIALIZATION
// =============================================================================

// Init prepares the store: it migrates a pre-section deployment if one is
// found, guarantees at least one section, then loads the current section.
func (s *Store) Init(ctx context.Context) error {
	if s.index.Len() == 0 {
		if err := s.migrateLegacy(ctx); err != nil && !errors.Is(err, boletin.ErrNoLegacyData) {
			s.log.Warn("legacy migration skipped", zap.Error(err))
		}
	}

	if s.index.Len() == 0 {
		sec, err := s.index.Create(ctx, DefaultSectionName, boletin.MinGrade, "Matutina")
		if err != nil {
			return err
		}
		if err := s.index.SetCurrent(ctx, sec.ID); err != nil {
			return err
		}
	} else if _, ok := s.index.Current(); !ok {
		if err := s.index.SetCurrent(ctx, s.index.Sections()[0].ID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.saver.Cancel()
	s.loadCurrentLocked(ctx, true)
	snap := s.state.Clone()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// schoolDefaults reads the process-wide school defaults preference.
func (s *Store) schoolDefaults(ctx context.Context) boletin.SchoolData {
	var out boletin.SchoolData
	raw, ok, err := s.storage.GetPreference(ctx, boletin.PrefSchoolDefaults)
	if err != nil || !ok || raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.log.Debug("school defaults unreadable", zap.Error(err))
	}
	return out
}

// loadCurrentLocked resets the state and loads the current section's
// document. A section without a usable document starts with the grade
// template and a default student, written immediately. With mirror, the
// section metadata (grade, shift, name) is copied into the state.
func (s *Store) loadCurrentLocked(ctx context.Context, mirror bool) {
	s.state = boletin.DefaultState(s.schoolDefaults(ctx))
	meta, hasMeta := s.index.Current()

	if !s.loadLocked(ctx) {
		if hasMeta {
			s.state.Grade = meta.Grade.OrDefault()
		}
		s.state.Subjects = boletin.SubjectsForGrade(s.state.Grade)
		s.saveCurrentStudentLocked()
		s.persistLocked(ctx)
	}

	if mirror && hasMeta {
		s.state.Grade = meta.Grade.OrDefault()
		s.state.SchoolData.Tanda = meta.Shift
		s.state.SchoolData.Section = meta.Name
	}
}

// loadLocked merges the current section's document onto the state. A
// missing or unreadable document reports false; corruption is logged.
func (s *Store) loadLocked(ctx context.Context) bool {
	id := s.index.CurrentID()
	if id == "" {
		return false
	}
	raw, err := s.storage.LoadDocument(ctx, id)
	if err != nil {
		s.log.Warn("section document unreadable", zap.String("section", id), zap.Error(err))
		return false
	}
	if raw == nil {
		return false
	}

	doc, err := boletin.ParseStateDocument(raw)
	if err != nil {
		s.log.Warn("section document corrupt, starting fresh",
			zap.Error(&boletin.CorruptDocumentError{Kind: "section", Key: id, Err: err}))
		return false
	}
	if doc.Version > boletin.DocumentVersion {
		s.log.Warn("section document from a newer version",
			zap.String("section", id), zap.Int("version", doc.Version))
	}

	st, ok, err := doc.DecodeState(s.state)
	if err != nil {
		s.log.Warn("section state corrupt, starting fresh",
			zap.Error(&boletin.CorruptDocumentError{Kind: "section", Key: id, Err: err}))
		return false
	}
	if !ok {
		return false
	}
	s.state = st
	return true
}

// persistLocked writes the state to the current section. Failures are
// logged; the next write retries.
func (s *Store) persistLocked(ctx context.Context) {
	if err := s.writeLocked(ctx); err != nil {
		s.log.Error("failed to save section", zap.Error(err))
	}
}

func (s *Store) writeLocked(ctx context.Context) error {
	id := s.index.CurrentID()
	if id == "" {
		return nil
	}
	doc, err := boletin.NewStateDocument(s.state, s.now().UnixMilli())
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode section document: %w", err)
	}
	return s.storage.SaveDocument(ctx, id, raw)
}

// Flush writes a pending debounced save now.
func (s *Store) Flush(ctx context.Context) error {
	if !s.saver.Pending() {
		return nil
	}
	s.saver.Cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(ctx)
}

// Close flushes and stops the debounced writer.
func (s *Store) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.saver.Stop()
	return err
}

// =============================================================================
// SECTIONS
// =============================================================================

// SwitchSection saves the current section, then loads id. A section that
// has never been saved starts with its own grade template.
func (s *Store) SwitchSection(ctx context.Context, id string) error {
	if _, ok := s.index.Get(id); !ok {
		return fmt.Errorf("%w: %s", boletin.ErrSectionNotFound, id)
	}

	s.mu.Lock()
	s.saver.Cancel()
	s.persistLocked(ctx)
	if err := s.index.SetCurrent(ctx, id); err != nil {
		s.mu.Unlock()
		return err
	}
	s.loadCurrentLocked(ctx, false)
	snap := s.state.Clone()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// CreateSection adds a section and switches to it.
func (s *Store) CreateSection(ctx context.Context, name string, grade boletin.Grade, shift string) (boletin.Section, error) {
	sec, err := s.index.Create(ctx, name, grade, shift)
	if err != nil {
		return sec, err
	}
	return sec, s.SwitchSection(ctx, sec.ID)
}

// DeleteSection removes a section and its document. Deleting the current
// section loads the one the index moved to; pending edits of the deleted
// section are discarded.
func (s *Store) DeleteSection(ctx context.Context, id string) error {
	s.mu.Lock()
	wasCurrent := s.index.CurrentID() == id
	if wasCurrent {
		s.saver.Cancel()
	}
	if err := s.index.Delete(ctx, id); err != nil {
		s.mu.Unlock()
		return err
	}
	if wasCurrent {
		s.loadCurrentLocked(ctx, false)
	}
	snap := s.state.Clone()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// ClearSection erases the current section's document and starts it over.
func (s *Store) ClearSection(ctx context.Context) error {
	s.mu.Lock()
	s.saver.Cancel()
	if id := s.index.CurrentID(); id != "" {
		if err := s.storage.DeleteDocument(ctx, id); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.loadCurrentLocked(ctx, true)
	snap := s.state.Clone()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}
