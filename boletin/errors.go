/*
errors.go - Centralized error types for the report-card engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Packages wrap these errors with context using fmt.Errorf("...: %w").

ERROR CATEGORIES:
  1. Storage corruption - recovered locally, only logged (CorruptDocumentError)
  2. Migration failure  - legacy import could not be parsed, nothing written
  3. Validation failure - unknown names/indices; store operations report
                          these as falsy results, the API maps them to 4xx
  4. Collaborator failure - cloud/spreadsheet errors, local state untouched

SEE ALSO:
  - state/store.go: Produces most of these errors
  - api/handlers.go: Maps errors to HTTP status codes
*/
package boletin

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrSectionNotFound is returned when a referenced section doesn't exist.
	ErrSectionNotFound = errors.New("section not found")

	// ErrLastSection is returned when deleting the only remaining section.
	ErrLastSection = errors.New("cannot delete the last section")

	// ErrStudentNotFound is returned when a referenced student isn't in the roster.
	ErrStudentNotFound = errors.New("student not found")

	// ErrStudentExists is returned when adding a student whose name is taken.
	ErrStudentExists = errors.New("student already exists")

	// ErrInvalidStudentName is returned for empty student names.
	ErrInvalidStudentName = errors.New("invalid student name")

	// ErrTrashItemNotFound is returned when restoring an unknown trash entry.
	ErrTrashItemNotFound = errors.New("trash item not found")

	// ErrInvalidGrade is returned for grades outside 1..6.
	ErrInvalidGrade = errors.New("invalid grade")

	// ErrMigrationFailed is returned when a legacy document cannot be parsed.
	ErrMigrationFailed = errors.New("legacy migration failed")

	// ErrNoLegacyData is returned when no legacy document is available.
	ErrNoLegacyData = errors.New("no legacy data found")

	// ErrInvalidBackup is returned when a backup has neither shape.
	ErrInvalidBackup = errors.New("invalid backup document")

	// ErrImportFailed is returned when writing an imported backup fails.
	ErrImportFailed = errors.New("backup import failed")

	// ErrExportCancelled is returned when a batch export is cancelled
	// between students.
	ErrExportCancelled = errors.New("export cancelled")

	// ErrInvalidLayout is returned for malformed layout documents.
	ErrInvalidLayout = errors.New("invalid layout document")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// CorruptDocumentError describes a persisted document that failed to decode.
// It is logged and treated as absence, never surfaced as a hard failure.
type CorruptDocumentError struct {
	Kind string // "section", "layout", "sections_index"
	Key  string
	Err  error
}

func (e *CorruptDocumentError) Error() string {
	return fmt.Sprintf("corrupt %s document %q: %v", e.Kind, e.Key, e.Err)
}

func (e *CorruptDocumentError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSectionNotFound) ||
		errors.Is(err, ErrStudentNotFound) ||
		errors.Is(err, ErrTrashItemNotFound) ||
		errors.Is(err, ErrNoLegacyData)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidGrade) ||
		errors.Is(err, ErrInvalidStudentName) ||
		errors.Is(err, ErrInvalidBackup) ||
		errors.Is(err, ErrMigrationFailed) ||
		errors.Is(err, ErrInvalidLayout)
}

// IsConflict returns true if the error is a uniqueness or invariant conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrStudentExists) ||
		errors.Is(err, ErrLastSection)
}
