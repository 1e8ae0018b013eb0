/*
Package section provides the registry of sections.

PURPOSE:
  A section is one class (name + grade + shift). Sections are peers;
  exactly one is current at any time. The index owns creation, deletion
  and selection, and persists itself after every change.

INVARIANTS:
  - The last remaining section cannot be deleted.
  - Deleting a section also deletes its state document.
  - Deleting the current section moves the pointer to the first remaining one.

SEE ALSO:
  - state/store.go: Switches the AppStore between sections
  - boletin/store.go: SectionStore and DocumentStore
*/
package section

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/report-engine/boletin"
)

// Defaults used when Create receives empty values.
const (
	DefaultName  = "Nueva Sección"
	DefaultShift = "Matutina"
)

// Storage is what the index persists to.
type Storage interface {
	boletin.SectionStore
	boletin.DocumentStore
}

// Index is the in-memory section registry backed by Storage.
type Index struct {
	store Storage
	log   *zap.Logger
	now   func() time.Time
	newID func() string

	mu        sync.RWMutex
	sections  []boletin.Section
	currentID string
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Index) { i.log = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(i *Index) { i.now = now }
}

// WithIDGenerator overrides section id generation.
func WithIDGenerator(fn func() string) Option {
	return func(i *Index) { i.newID = fn }
}

// Open loads the index from storage. A failed load starts with an empty
// index; it is logged, not returned.
func Open(ctx context.Context, store Storage, opts ...Option) *Index {
	idx := &Index{
		store: store,
		log:   zap.NewNop(),
		now:   time.Now,
		newID: func() string { return "sec_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.Reload(ctx)
	return idx
}

// Reload re-reads the index and current pointer from storage.
func (i *Index) Reload(ctx context.Context) {
	sections, err := i.store.LoadSections(ctx)
	if err != nil {
		i.log.Warn("section index unreadable, starting empty", zap.Error(err))
		sections = nil
	}
	currentID, err := i.store.CurrentSectionID(ctx)
	if err != nil {
		i.log.Warn("current section id unreadable", zap.Error(err))
		currentID = ""
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.sections = append([]boletin.Section{}, sections...)
	i.currentID = currentID
}

// Sections returns a copy of the index in order.
func (i *Index) Sections() []boletin.Section {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]boletin.Section{}, i.sections...)
}

// Len returns the number of sections.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.sections)
}

// CurrentID returns the current section id ("" when none).
func (i *Index) CurrentID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.currentID
}

// Current returns the current section.
func (i *Index) Current() (boletin.Section, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.findLocked(i.currentID)
}

// Get returns a section by id.
func (i *Index) Get(id string) (boletin.Section, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.findLocked(id)
}

func (i *Index) findLocked(id string) (boletin.Section, bool) {
	for _, s := range i.sections {
		if s.ID == id {
			return s, true
		}
	}
	return boletin.Section{}, false
}

// Create appends a new section and persists the index. It does not change
// the current section.
func (i *Index) Create(ctx context.Context, name string, grade boletin.Grade, shift string) (boletin.Section, error) {
	if name == "" {
		name = DefaultName
	}
	if shift == "" {
		shift = DefaultShift
	}
	sec := boletin.Section{
		ID:        i.newID(),
		Name:      name,
		Grade:     grade.OrDefault(),
		Shift:     shift,
		CreatedAt: i.now().UnixMilli(),
	}

	i.mu.Lock()
	i.sections = append(i.sections, sec)
	snapshot := append([]boletin.Section{}, i.sections...)
	i.mu.Unlock()

	if err := i.store.SaveSections(ctx, snapshot); err != nil {
		return sec, fmt.Errorf("failed to save section index: %w", err)
	}
	return sec, nil
}

// Delete removes a section and its state document.
func (i *Index) Delete(ctx context.Context, id string) error {
	i.mu.Lock()
	if _, ok := i.findLocked(id); !ok {
		i.mu.Unlock()
		return fmt.Errorf("%w: %s", boletin.ErrSectionNotFound, id)
	}
	if len(i.sections) <= 1 {
		i.mu.Unlock()
		return boletin.ErrLastSection
	}
	kept := make([]boletin.Section, 0, len(i.sections)-1)
	for _, s := range i.sections {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	i.sections = kept
	currentChanged := false
	if i.currentID == id {
		i.currentID = kept[0].ID
		currentChanged = true
	}
	snapshot := append([]boletin.Section{}, kept...)
	currentID := i.currentID
	i.mu.Unlock()

	if err := i.store.SaveSections(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to save section index: %w", err)
	}
	if err := i.store.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete section data: %w", err)
	}
	if currentChanged {
		if err := i.store.SetCurrentSectionID(ctx, currentID); err != nil {
			return fmt.Errorf("failed to save current section: %w", err)
		}
	}
	return nil
}

// SetCurrent moves the current pointer. The id is not checked against the
// index; callers switching sections pass known ids.
func (i *Index) SetCurrent(ctx context.Context, id string) error {
	i.mu.Lock()
	i.currentID = id
	i.mu.Unlock()

	if err := i.store.SetCurrentSectionID(ctx, id); err != nil {
		return fmt.Errorf("failed to save current section: %w", err)
	}
	return nil
}

// Update applies fn to a section's metadata and persists the index.
func (i *Index) Update(ctx context.Context, id string, fn func(*boletin.Section)) error {
	i.mu.Lock()
	found := false
	for k := range i.sections {
		if i.sections[k].ID == id {
			fn(&i.sections[k])
			found = true
			break
		}
	}
	snapshot := append([]boletin.Section{}, i.sections...)
	i.mu.Unlock()

	if !found {
		return fmt.Errorf("%w: %s", boletin.ErrSectionNotFound, id)
	}
	if err := i.store.SaveSections(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to save section index: %w", err)
	}
	return nil
}

// Replace overwrites the whole index (backup import).
func (i *Index) Replace(ctx context.Context, sections []boletin.Section) error {
	if err := i.store.SaveSections(ctx, sections); err != nil {
		return fmt.Errorf("failed to save section index: %w", err)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sections = append([]boletin.Section{}, sections...)
	return nil
}
