// Package store provides Storage implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/report-engine/boletin"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	sections  []boletin.Section
	currentID string
	documents map[string][]byte
	layouts   map[boletin.Grade][]byte
	prefs     map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		documents: make(map[string][]byte),
		layouts:   make(map[boletin.Grade][]byte),
		prefs:     make(map[string]string),
	}
}

var _ boletin.Storage = (*Memory)(nil)

// LoadSections returns a copy of the index.
func (m *Memory) LoadSections(_ context.Context) ([]boletin.Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]boletin.Section{}, m.sections...), nil
}

// SaveSections replaces the index.
func (m *Memory) SaveSections(_ context.Context, sections []boletin.Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sections = append([]boletin.Section{}, sections...)
	return nil
}

func (m *Memory) CurrentSectionID(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentID, nil
}

func (m *Memory) SetCurrentSectionID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentID = id
	return nil
}

// LoadDocument returns nil when the section has no document.
func (m *Memory) LoadDocument(_ context.Context, sectionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneBytes(m.documents[sectionID]), nil
}

func (m *Memory) SaveDocument(_ context.Context, sectionID string, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[sectionID] = cloneBytes(raw)
	return nil
}

func (m *Memory) DeleteDocument(_ context.Context, sectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, sectionID)
	return nil
}

func (m *Memory) LoadLayout(_ context.Context, grade boletin.Grade) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneBytes(m.layouts[grade]), nil
}

func (m *Memory) SaveLayout(_ context.Context, grade boletin.Grade, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layouts[grade] = cloneBytes(raw)
	return nil
}

func (m *Memory) GetPreference(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.prefs[key]
	return v, ok, nil
}

func (m *Memory) SetPreference(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[key] = value
	return nil
}

func (m *Memory) DeletePreference(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.prefs, key)
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sections = nil
	m.currentID = ""
	m.documents = make(map[string][]byte)
	m.layouts = make(map[boletin.Grade][]byte)
	m.prefs = make(map[string]string)
	return nil
}
