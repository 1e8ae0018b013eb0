package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/warp/report-engine/boletin"
)

// =============================================================================
// FULL BACKUP
// =============================================================================

// backupPrefs maps backup settings to preference keys.
func backupPrefs(b *boletin.BackupSettings) []struct {
	key string
	val **string
} {
	return []struct {
		key string
		val **string
	}{
		{boletin.PrefTheme, &b.Theme},
		{boletin.PrefSchoolDefaults, &b.SchoolDefaults},
		{boletin.PrefCommentBank, &b.CommentBank},
		{boletin.PrefObsSettings, &b.ObsSettings},
	}
}

// ExportFullBackup collects every section's persisted document plus the
// process-wide preferences. Pending edits are written first. Unreadable
// documents are skipped.
func (s *Store) ExportFullBackup(ctx context.Context) (boletin.Backup, error) {
	if err := s.Flush(ctx); err != nil {
		return boletin.Backup{}, err
	}

	backup := boletin.Backup{
		Version:   boletin.DocumentVersion,
		Timestamp: s.now().UnixMilli(),
		Sections:  s.index.Sections(),
		Data:      map[string]boletin.StateDocument{},
		Settings:  &boletin.BackupSettings{},
	}

	for _, sec := range backup.Sections {
		raw, err := s.storage.LoadDocument(ctx, sec.ID)
		if err != nil {
			return boletin.Backup{}, err
		}
		if raw == nil {
			continue
		}
		doc, err := boletin.ParseStateDocument(raw)
		if err != nil {
			s.log.Warn("skipping corrupt section in backup",
				zap.Error(&boletin.CorruptDocumentError{Kind: "section", Key: sec.ID, Err: err}))
			continue
		}
		backup.Data[sec.ID] = doc
	}

	for _, p := range backupPrefs(backup.Settings) {
		v, ok, err := s.storage.GetPreference(ctx, p.key)
		if err != nil {
			return boletin.Backup{}, err
		}
		if ok {
			val := v
			*p.val = &val
		}
	}
	return backup, nil
}

// HasStudents reports whether any section holds at least one student.
func (s *Store) HasStudents(ctx context.Context) (bool, error) {
	b, err := s.ExportFullBackup(ctx)
	if err != nil {
		return false, err
	}
	return b.StudentCount() > 0, nil
}

// ImportFullBackup replaces local data with a backup. Both the
// multi-section format and the legacy single-state format are accepted.
func (s *Store) ImportFullBackup(ctx context.Context, raw []byte) error {
	shape, err := boletin.DetectBackupShape(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", boletin.ErrInvalidBackup, err)
	}
	switch shape {
	case boletin.ShapeCurrent:
		return s.importCurrent(ctx, raw)
	case boletin.ShapeLegacy:
		return s.importLegacy(ctx, raw)
	default:
		return boletin.ErrInvalidBackup
	}
}

func (s *Store) importCurrent(ctx context.Context, raw []byte) error {
	var backup boletin.Backup
	if err := json.Unmarshal(raw, &backup); err != nil {
		return fmt.Errorf("%w: %v", boletin.ErrInvalidBackup, err)
	}
	if len(backup.Sections) == 0 {
		return fmt.Errorf("%w: no sections", boletin.ErrInvalidBackup)
	}
	for i, sec := range backup.Sections {
		if sec.ID == "" {
			return fmt.Errorf("%w: section %d has no id", boletin.ErrInvalidBackup, i)
		}
	}

	s.mu.Lock()
	s.saver.Cancel()

	if err := s.index.Replace(ctx, backup.Sections); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", boletin.ErrImportFailed, err)
	}
	for id, doc := range backup.Data {
		encoded, err := json.Marshal(doc)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("%w: %v", boletin.ErrImportFailed, err)
		}
		if err := s.storage.SaveDocument(ctx, id, encoded); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("%w: %v", boletin.ErrImportFailed, err)
		}
	}

	restored := false
	if backup.Settings != nil {
		for _, p := range backupPrefs(backup.Settings) {
			if *p.val == nil {
				continue
			}
			if err := s.storage.SetPreference(ctx, p.key, **p.val); err != nil {
				s.mu.Unlock()
				return fmt.Errorf("%w: %v", boletin.ErrImportFailed, err)
			}
			restored = true
		}
	}

	target := backup.Sections[0].ID
	if _, ok := s.index.Get(s.index.CurrentID()); ok {
		target = s.index.CurrentID()
	}
	if err := s.index.SetCurrent(ctx, target); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", boletin.ErrImportFailed, err)
	}
	s.loadCurrentLocked(ctx, false)
	snap := s.state.Clone()
	s.mu.Unlock()

	s.publish(snap)
	if restored {
		s.restored.Publish(struct{}{})
	}
	return nil
}

// importLegacy folds a single-state (v1) backup into the current section,
// renamed "Imported (V1)". Its timestamp is set slightly in the future and
// an import lock is recorded so the next sync pushes instead of pulling.
func (s *Store) importLegacy(ctx context.Context, raw []byte) error {
	payload, grade, err := legacyPayload(raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.saver.Cancel()

	id := s.index.CurrentID()
	if _, ok := s.index.Get(id); ok {
		err = s.index.Update(ctx, id, func(sec *boletin.Section) {
			sec.Name = ImportedSectionName
			if grade.Valid() {
				sec.Grade = grade
			}
		})
	} else {
		var sec boletin.Section
		sec, err = s.index.Create(ctx, ImportedSectionName, grade.OrDefault(), "")
		if err == nil {
			id = sec.ID
			err = s.index.SetCurrent(ctx, id)
		}
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", boletin.ErrImportFailed, err)
	}

	now := s.now()
	doc := boletin.StateDocument{
		Version:   boletin.DocumentVersion,
		Timestamp: now.Add(importLeadTime).UnixMilli(),
		State:     payload,
	}
	encoded, err := json.Marshal(doc)
	if err == nil {
		err = s.storage.SaveDocument(ctx, id, encoded)
	}
	if err == nil {
		err = s.storage.SetPreference(ctx, boletin.PrefImportLock, fmt.Sprint(now.UnixMilli()))
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", boletin.ErrImportFailed, err)
	}

	s.loadCurrentLocked(ctx, true)
	snap := s.state.Clone()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// legacyPayload validates a v1 state and rebuilds its student list from the
// roster keys when the list is missing.
func legacyPayload(raw []byte) (json.RawMessage, boletin.Grade, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", boletin.ErrMigrationFailed, err)
	}

	var legacy boletin.SectionState
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", boletin.ErrMigrationFailed, err)
	}

	if len(legacy.StudentList) == 0 && len(legacy.Roster) > 0 {
		names := make([]string, 0, len(legacy.Roster))
		for name := range legacy.Roster {
			names = append(names, name)
		}
		sort.Strings(names)
		list, err := json.Marshal(names)
		if err != nil {
			return nil, 0, err
		}
		top["studentList"] = list
	}

	payload, err := json.Marshal(top)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", boletin.ErrMigrationFailed, err)
	}
	return payload, legacy.Grade, nil
}

// =============================================================================
// LEGACY MIGRATION
// =============================================================================

// PerformLegacyMigration moves a single-state deployment's data into a new
// section named "Recuperado" and makes it current. Invalid legacy data
// aborts without writing anything.
func (s *Store) PerformLegacyMigration(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.saver.Cancel()
	if err := s.migrateLegacy(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	s.loadCurrentLocked(ctx, true)
	snap := s.state.Clone()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

func (s *Store) migrateLegacy(ctx context.Context) error {
	raw, ok, err := s.storage.GetPreference(ctx, boletin.PrefLegacyData)
	if err != nil {
		return err
	}
	if !ok || raw == "" {
		return boletin.ErrNoLegacyData
	}

	payload, grade, err := legacyPayload([]byte(raw))
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(boletin.StateDocument{
		Version:   boletin.DocumentVersion,
		Timestamp: s.now().UnixMilli(),
		State:     payload,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", boletin.ErrMigrationFailed, err)
	}

	sec, err := s.index.Create(ctx, RecoveredSectionName, grade.OrDefault(), "")
	if err != nil {
		return errors.Join(boletin.ErrMigrationFailed, err)
	}
	if err := s.storage.SaveDocument(ctx, sec.ID, encoded); err != nil {
		return errors.Join(boletin.ErrMigrationFailed, err)
	}
	if err := s.index.SetCurrent(ctx, sec.ID); err != nil {
		return errors.Join(boletin.ErrMigrationFailed, err)
	}
	s.log.Info("legacy data migrated", zap.String("section", sec.ID))
	return nil
}
