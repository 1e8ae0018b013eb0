package boletin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
)

// DocumentVersion is the schema version of state documents and backups.
const DocumentVersion = 2

// =============================================================================
// STATE DOCUMENT
// =============================================================================

// StateDocument is the persisted form of one section:
// {version, timestamp, state}.
type StateDocument struct {
	Version   int             `json:"version"`
	Timestamp int64           `json:"timestamp"`
	State     json.RawMessage `json:"state"`
}

// NewStateDocument wraps a state with the current version.
func NewStateDocument(state SectionState, timestamp int64) (StateDocument, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return StateDocument{}, fmt.Errorf("failed to encode state: %w", err)
	}
	return StateDocument{Version: DocumentVersion, Timestamp: timestamp, State: raw}, nil
}

// DecodeState merges the document's state onto base. Keys absent from the
// document keep base's values; the result is normalised. A document with
// no state returns false.
func (d StateDocument) DecodeState(base SectionState) (SectionState, bool, error) {
	trimmed := bytes.TrimSpace(d.State)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return base, false, nil
	}
	out := base.Clone()
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return base, false, err
	}
	out.Normalize()
	return out, true, nil
}

// ParseStateDocument decodes raw persisted bytes.
func ParseStateDocument(raw []byte) (StateDocument, error) {
	var doc StateDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return StateDocument{}, err
	}
	return doc, nil
}

// =============================================================================
// FULL BACKUP
// =============================================================================

// BackupSettings are process-wide preference strings carried verbatim.
// Nil means the preference was never set.
type BackupSettings struct {
	Theme          *string `json:"theme"`
	SchoolDefaults *string `json:"schoolDefaults"`
	CommentBank    *string `json:"commentBank"`
	ObsSettings    *string `json:"obsSettings"`
}

// Backup is the multi-section full backup document.
type Backup struct {
	Version   int                      `json:"version"`
	Timestamp int64                    `json:"timestamp"`
	Sections  []Section                `json:"sections"`
	Data      map[string]StateDocument `json:"data"`
	Settings  *BackupSettings          `json:"settings,omitempty"`
}

// StudentCount counts students across every section document.
func (b Backup) StudentCount() int {
	n := 0
	for _, doc := range b.Data {
		var head struct {
			StudentList []string `json:"studentList"`
		}
		if len(doc.State) == 0 || json.Unmarshal(doc.State, &head) != nil {
			continue
		}
		n += len(head.StudentList)
	}
	return n
}

// HasEnteredData reports whether any section holds a student a user
// actually entered. The untouched placeholder student of a fresh section
// does not count.
func (b Backup) HasEnteredData() bool {
	for _, doc := range b.Data {
		var head struct {
			StudentList []string                 `json:"studentList"`
			Roster      map[string]StudentRecord `json:"roster"`
		}
		if len(doc.State) == 0 || json.Unmarshal(doc.State, &head) != nil {
			continue
		}
		for _, name := range head.StudentList {
			if name != DefaultStudentName || !head.Roster[name].Blank() {
				return true
			}
		}
	}
	return false
}

// LastModified is the newest section document timestamp, or the backup's
// own timestamp when it carries no documents. Sync compares backups by it.
func (b Backup) LastModified() int64 {
	var ts int64
	for _, doc := range b.Data {
		if doc.Timestamp > ts {
			ts = doc.Timestamp
		}
	}
	if ts == 0 {
		return b.Timestamp
	}
	return ts
}

// BackupShape classifies an incoming backup.
type BackupShape int

const (
	ShapeUnknown BackupShape = iota
	ShapeCurrent
	ShapeLegacy
)

// DetectBackupShape inspects top-level keys: a current backup has
// "sections"; a legacy (v1) one lacks it but has "studentList" or "roster".
func DetectBackupShape(raw []byte) (BackupShape, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return ShapeUnknown, err
	}
	if isPresent(top["sections"]) {
		return ShapeCurrent, nil
	}
	if isPresent(top["studentList"]) || isPresent(top["roster"]) {
		return ShapeLegacy, nil
	}
	return ShapeUnknown, nil
}

func isPresent(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && !bytes.Equal(v, []byte("null"))
}

// =============================================================================
// LAYOUT DOCUMENT
// =============================================================================

// Rect is the absolute placement of one overlay field, as CSS lengths.
type Rect struct {
	Left   string `json:"left"`
	Top    string `json:"top"`
	Width  string `json:"width"`
	Height string `json:"height"`
}

var cssLength = regexp.MustCompile(`^-?\d+(\.\d+)?(px|mm|cm|in|pt|%)?$`)

// Valid reports whether every non-empty side is a CSS length.
func (r Rect) Valid() bool {
	for _, v := range []string{r.Left, r.Top, r.Width, r.Height} {
		if v != "" && !cssLength.MatchString(v) {
			return false
		}
	}
	return true
}

// Layout maps overlay field ids to their placement. One layout exists per
// grade.
type Layout map[string]Rect

// Clone returns a copy.
func (l Layout) Clone() Layout {
	if l == nil {
		return nil
	}
	out := make(Layout, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// IDs returns the field ids in sorted order.
func (l Layout) IDs() []string {
	ids := make([]string, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Encode serialises the layout. Keys are sorted, so equal layouts encode to
// equal strings.
func (l Layout) Encode() string {
	if l == nil {
		l = Layout{}
	}
	raw, _ := json.Marshal(map[string]Rect(l))
	return string(raw)
}

// ParseLayout decodes a layout document and validates every rect.
func ParseLayout(raw []byte) (Layout, error) {
	var l Layout
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	for id, r := range l {
		if !r.Valid() {
			return nil, fmt.Errorf("%w: field %q has a malformed rect", ErrInvalidLayout, id)
		}
	}
	if l == nil {
		l = Layout{}
	}
	return l, nil
}
