/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements boletin.Storage using SQLite. The browser editor kept the same
  data in localStorage keys; each key family becomes a table here.

INTERFACES IMPLEMENTED:
  boletin.SectionStore:    Section index + current section pointer
  boletin.DocumentStore:   Per-section state documents
  boletin.LayoutStore:     Per-grade layout documents
  boletin.PreferenceStore: Preference strings

KEY TABLES:
  sections:         Section index, ordered by position
  section_documents: Raw {version, timestamp, state} JSON per section
  layouts:          Raw layout JSON per grade
  preferences:      Key/value strings (also holds the current section id)

RAW DOCUMENTS:
  Documents are stored as TEXT exactly as given. The store never parses
  them; corrupt content is the state layer's concern.

CONCURRENCY:
  Uses sync.RWMutex plus a single open connection, which also keeps
  ":memory:" databases alive across calls.

USAGE:
  store, err := sqlite.New("./data/boletin.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - boletin/store.go: Interface definitions
  - boletin/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/report-engine/boletin"
)

const currentSectionKey = "current_section_id"

// Store implements boletin.Storage using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ boletin.Storage = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Section index (order matters: it is the tab order)
	CREATE TABLE IF NOT EXISTS sections (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		grade INTEGER NOT NULL DEFAULT 1,
		shift TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sections_position
		ON sections(position);

	-- One state document per section
	CREATE TABLE IF NOT EXISTS section_documents (
		section_id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One layout document per grade, shared by every section
	CREATE TABLE IF NOT EXISTS layouts (
		grade INTEGER PRIMARY KEY,
		document TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Preference strings
	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SECTION INDEX (boletin.SectionStore interface)
// =============================================================================

// LoadSections returns the index in its stored order.
func (s *Store) LoadSections(ctx context.Context) ([]boletin.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, grade, shift, created_at
		FROM sections
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	sections := []boletin.Section{}
	for rows.Next() {
		var sec boletin.Section
		var grade int
		if err := rows.Scan(&sec.ID, &sec.Name, &grade, &sec.Shift, &sec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sec.Grade = boletin.Grade(grade)
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// SaveSections replaces the whole index atomically.
func (s *Store) SaveSections(ctx context.Context, sections []boletin.Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM sections"); err != nil {
		return fmt.Errorf("failed to clear sections: %w", err)
	}

	for i, sec := range sections {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sections (id, name, grade, shift, created_at, position)
			VALUES (?, ?, ?, ?, ?, ?)
		`, sec.ID, sec.Name, int(sec.Grade), sec.Shift, sec.CreatedAt, i)
		if err != nil {
			return fmt.Errorf("failed to save section %s: %w", sec.ID, err)
		}
	}

	return tx.Commit()
}

// CurrentSectionID returns "" when unset.
func (s *Store) CurrentSectionID(ctx context.Context) (string, error) {
	id, _, err := s.GetPreference(ctx, currentSectionKey)
	return id, err
}

func (s *Store) SetCurrentSectionID(ctx context.Context, id string) error {
	return s.SetPreference(ctx, currentSectionKey, id)
}

// =============================================================================
// STATE DOCUMENTS (boletin.DocumentStore interface)
// =============================================================================

// LoadDocument returns nil when the section has no document.
func (s *Store) LoadDocument(ctx context.Context, sectionID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx,
		"SELECT document FROM section_documents WHERE section_id = ?", sectionID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", sectionID, err)
	}
	return []byte(doc), nil
}

func (s *Store) SaveDocument(ctx context.Context, sectionID string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO section_documents (section_id, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(section_id) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at
	`, sectionID, string(raw), now())
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", sectionID, err)
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, sectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM section_documents WHERE section_id = ?", sectionID)
	return err
}

// =============================================================================
// LAYOUTS (boletin.LayoutStore interface)
// =============================================================================

func (s *Store) LoadLayout(ctx context.Context, grade boletin.Grade) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx,
		"SELECT document FROM layouts WHERE grade = ?", int(grade),
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load layout for grade %d: %w", grade, err)
	}
	return []byte(doc), nil
}

func (s *Store) SaveLayout(ctx context.Context, grade boletin.Grade, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO layouts (grade, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(grade) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at
	`, int(grade), string(raw), now())
	if err != nil {
		return fmt.Errorf("failed to save layout for grade %d: %w", grade, err)
	}
	return nil
}

// =============================================================================
// PREFERENCES (boletin.PreferenceStore interface)
// =============================================================================

func (s *Store) GetPreference(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM preferences WHERE key = ?", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load preference %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, now())
	if err != nil {
		return fmt.Errorf("failed to save preference %s: %w", key, err)
	}
	return nil
}

func (s *Store) DeletePreference(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM preferences WHERE key = ?", key)
	return err
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"sections", "section_documents", "layouts", "preferences"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
