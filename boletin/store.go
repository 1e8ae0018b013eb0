/*
store.go - Persistence interfaces for sections, state documents and layouts

PURPOSE:
  Defines the interface between the report-card engine and its storage.
  The browser editor kept everything in localStorage; here the same keys
  become typed stores so SQLite and in-memory backends are interchangeable.

KEY INTERFACES:
  SectionStore:    Section index + the current section pointer
  DocumentStore:   One raw state document per section
  LayoutStore:     One raw layout document per grade
  PreferenceStore: Process-wide preference strings (theme, comment bank...)
  Storage:         All of the above

RAW DOCUMENTS:
  State and layout documents are stored as raw bytes. Decoding happens in
  the state and layout packages so that a corrupt document can be detected,
  logged and treated as absent instead of failing the read.

ABSENCE:
  Loading something that was never written returns (nil, nil) or
  ("", false, nil). Errors are reserved for backend failures.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - boletin/store/memory.go: In-memory for testing

SEE ALSO:
  - state/persist.go: Reads and writes state documents
  - layout/engine.go: Reads and writes layout documents
*/
package boletin

import "context"

// Preference keys.
const (
	PrefTheme          = "theme"
	PrefSchoolDefaults = "school_defaults"
	PrefCommentBank    = "comment_bank"
	PrefObsSettings    = "obs_settings"
	PrefImportLock     = "import_lock"
	PrefLegacyData     = "legacy_v1_data"
	PrefCloudID        = "cloud_id"
)

// SectionStore persists the section index and the current section id.
type SectionStore interface {
	// LoadSections returns the index in its stored order.
	LoadSections(ctx context.Context) ([]Section, error)

	// SaveSections replaces the whole index.
	SaveSections(ctx context.Context, sections []Section) error

	// CurrentSectionID returns "" when unset.
	CurrentSectionID(ctx context.Context) (string, error)

	SetCurrentSectionID(ctx context.Context, id string) error
}

// DocumentStore persists one state document per section.
type DocumentStore interface {
	LoadDocument(ctx context.Context, sectionID string) ([]byte, error)
	SaveDocument(ctx context.Context, sectionID string, raw []byte) error
	DeleteDocument(ctx context.Context, sectionID string) error
}

// LayoutStore persists one layout document per grade.
type LayoutStore interface {
	LoadLayout(ctx context.Context, grade Grade) ([]byte, error)
	SaveLayout(ctx context.Context, grade Grade, raw []byte) error
}

// PreferenceStore persists process-wide preference strings.
type PreferenceStore interface {
	GetPreference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error
	DeletePreference(ctx context.Context, key string) error
}

// Storage is everything the engine persists.
type Storage interface {
	SectionStore
	DocumentStore
	LayoutStore
	PreferenceStore
}
