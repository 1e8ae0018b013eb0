/*
Package cloud is the boundary to the remote backup service.

PURPOSE:
  The engine is local-first: every edit lands in local storage and the
  cloud only ever receives or supplies whole backups. This package owns
  the collaborator contract (Client), the newest-wins policy (Decide) and
  the process that applies it (Syncer, Scheduler).

CONTRACT:
  Save(backup, mode) -> id       mode snapshot also keeps a history copy
  Load()             -> data | empty

SYNC POLICY (Decide):
  1. Local has no student and the cloud has data -> pull
  2. Cloud empty (or unreadable)                 -> push
  3. Import lock active                          -> push
  4. Local newer                                 -> push
  5. Cloud newer                                 -> pull
  6. Equal                                       -> nothing

SEE ALSO:
  - syncer.go: Status machine and auto-save
  - scheduler.go: Periodic sync
  - cloud/firestore: Firestore-backed Client
*/
package cloud

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ClientVersion tags every document written to the cloud.
const ClientVersion = "v2"

// ErrUnavailable is returned when the collaborator cannot be reached.
var ErrUnavailable = errors.New("cloud unavailable")

// ErrBackupTooLarge is returned when a backup exceeds what the collaborator
// can store in one document. Nothing is written.
var ErrBackupTooLarge = errors.New("backup too large for cloud storage")

// SaveMode selects how a save is recorded remotely.
type SaveMode string

const (
	// SaveAuto overwrites the latest copy only.
	SaveAuto SaveMode = "auto"
	// SaveSnapshot also keeps a point-in-time copy.
	SaveSnapshot SaveMode = "snapshot"
)

// LoadResult is the remote copy. Empty is true when nothing was ever saved.
type LoadResult struct {
	Data  []byte
	Empty bool
}

// Client is the remote backup collaborator.
type Client interface {
	Save(ctx context.Context, backup []byte, mode SaveMode) (id string, err error)
	Load(ctx context.Context) (LoadResult, error)
}

// =============================================================================
// DECISION
// =============================================================================

// Decision is the outcome of comparing local and remote copies.
type Decision string

const (
	DecisionNone Decision = "none"
	DecisionPush Decision = "push"
	DecisionPull Decision = "pull"
)

// Local describes the local copy.
type Local struct {
	Timestamp   int64
	HasStudents bool
	// Locked is set while a recent legacy import must not be overwritten.
	Locked bool
}

// Remote describes the remote copy.
type Remote struct {
	Timestamp int64
	Empty     bool
}

// Decide applies the newest-wins policy.
func Decide(local Local, remote Remote) Decision {
	switch {
	case !local.HasStudents && !remote.Empty:
		return DecisionPull
	case remote.Empty:
		return DecisionPush
	case local.Locked:
		return DecisionPush
	case local.Timestamp > remote.Timestamp:
		return DecisionPush
	case remote.Timestamp > local.Timestamp:
		return DecisionPull
	default:
		return DecisionNone
	}
}

// =============================================================================
// MEMORY CLIENT
// =============================================================================

// MemoryClient is an in-process Client for tests and offline use.
type MemoryClient struct {
	mu        sync.Mutex
	data      []byte
	snapshots [][]byte
	saves     int
	loads     int

	// SaveErr and LoadErr, when set, are returned by the next calls.
	SaveErr error
	LoadErr error
}

// NewMemoryClient creates an empty client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

// Save stores a copy of backup.
func (m *MemoryClient) Save(_ context.Context, backup []byte, mode SaveMode) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return "", m.SaveErr
	}
	m.saves++
	m.data = append([]byte(nil), backup...)
	if mode == SaveSnapshot {
		m.snapshots = append(m.snapshots, append([]byte(nil), backup...))
		return fmt.Sprintf("mem-snapshot-%d", len(m.snapshots)), nil
	}
	return "mem-latest", nil
}

// Load returns the latest copy.
func (m *MemoryClient) Load(context.Context) (LoadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LoadErr != nil {
		return LoadResult{}, m.LoadErr
	}
	m.loads++
	if len(m.data) == 0 {
		return LoadResult{Empty: true}, nil
	}
	return LoadResult{Data: append([]byte(nil), m.data...)}, nil
}

// Put replaces the stored copy without counting a save.
func (m *MemoryClient) Put(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
}

// Data returns the stored copy.
func (m *MemoryClient) Data() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// Snapshots returns how many snapshot copies were kept.
func (m *MemoryClient) Snapshots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

// Saves returns how many saves succeeded.
func (m *MemoryClient) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Loads returns how many loads reached the client.
func (m *MemoryClient) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}
