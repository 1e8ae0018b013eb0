package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/warp/report-engine/boletin"
)

// Defaults.
const (
	DefaultAutoSaveDelay = 5 * time.Second
	DefaultLockWindow    = 5 * time.Minute
	DefaultRemoteTTL     = 30 * time.Second

	remoteKey = "remote"
)

// Status is the pending indicator shown while a round-trip is in flight.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSaving  Status = "saving"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Report is a snapshot of the syncer.
type Report struct {
	Status   Status    `json:"status"`
	Decision Decision  `json:"decision,omitempty"`
	LastSync time.Time `json:"lastSync,omitempty"`
	LastID   string    `json:"lastId,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Backups is the local side of a sync. state.Store implements it.
type Backups interface {
	ExportFullBackup(ctx context.Context) (boletin.Backup, error)
	ImportFullBackup(ctx context.Context, raw []byte) error
}

// Syncer reconciles the local store with a Client.
//
// Collaborator failures are returned and reported through the status; the
// local store is never modified on failure.
type Syncer struct {
	client  Client
	local   Backups
	prefs   boletin.PreferenceStore
	log     *zap.Logger
	now     func() time.Time
	window  time.Duration
	delay   time.Duration
	remote  *cache.Cache
	autoRun *boletin.Debouncer

	// run serialises round-trips.
	run sync.Mutex

	mu     sync.Mutex
	report Report
	topic  boletin.Topic[Report]
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) SyncerOption {
	return func(s *Syncer) { s.log = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) SyncerOption {
	return func(s *Syncer) { s.now = now }
}

// WithLockWindow sets how long an import lock suppresses pulls.
func WithLockWindow(d time.Duration) SyncerOption {
	return func(s *Syncer) { s.window = d }
}

// WithAutoSaveDelay sets the quiet period before an automatic push.
func WithAutoSaveDelay(d time.Duration) SyncerOption {
	return func(s *Syncer) { s.delay = d }
}

// WithRemoteTTL sets how long a loaded remote copy is reused.
func WithRemoteTTL(d time.Duration) SyncerOption {
	return func(s *Syncer) { s.remote = cache.New(d, 2*d) }
}

// NewSyncer creates a syncer.
func NewSyncer(client Client, local Backups, prefs boletin.PreferenceStore, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		client: client,
		local:  local,
		prefs:  prefs,
		log:    zap.NewNop(),
		now:    time.Now,
		window: DefaultLockWindow,
		delay:  DefaultAutoSaveDelay,
		report: Report{Status: StatusIdle},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.remote == nil {
		s.remote = cache.New(DefaultRemoteTTL, 2*DefaultRemoteTTL)
	}
	s.autoRun = boletin.NewDebouncer(s.delay, func() {
		if _, err := s.Push(context.Background(), SaveAuto); err != nil {
			s.log.Error("auto-save failed", zap.Error(err))
		}
	})
	return s
}

// Report returns the current status.
func (s *Syncer) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// OnStatus subscribes to status changes.
func (s *Syncer) OnStatus(fn func(Report)) (unsubscribe func()) {
	return s.topic.Subscribe(fn)
}

func (s *Syncer) setStatus(st Status, update func(r *Report)) {
	s.mu.Lock()
	s.report.Status = st
	if update != nil {
		update(&s.report)
	}
	r := s.report
	s.mu.Unlock()
	s.topic.Publish(r)
}

func (s *Syncer) fail(err error) error {
	s.setStatus(StatusError, func(r *Report) { r.Error = err.Error() })
	return err
}

// =============================================================================
// SYNC
// =============================================================================

// Sync loads the remote copy, decides a direction and applies it.
func (s *Syncer) Sync(ctx context.Context) (Decision, error) {
	s.run.Lock()
	defer s.run.Unlock()

	s.setStatus(StatusSyncing, func(r *Report) { r.Error = "" })

	remote, err := s.load(ctx)
	if err != nil {
		s.log.Error("cloud load failed", zap.Error(err))
		return DecisionNone, s.fail(err)
	}

	backup, err := s.local.ExportFullBackup(ctx)
	if err != nil {
		return DecisionNone, s.fail(fmt.Errorf("export local backup: %w", err))
	}
	locked, err := s.lockActive(ctx)
	if err != nil {
		return DecisionNone, s.fail(err)
	}

	rts, rempty := remoteStamp(remote)
	decision := Decide(
		Local{Timestamp: backup.LastModified(), HasStudents: backup.HasEnteredData(), Locked: locked},
		Remote{Timestamp: rts, Empty: rempty},
	)
	s.log.Info("cloud sync",
		zap.String("decision", string(decision)),
		zap.Int64("local", backup.LastModified()),
		zap.Int64("remote", rts),
		zap.Bool("locked", locked),
	)

	switch decision {
	case DecisionPush:
		if _, err := s.pushLocked(ctx, backup, SaveAuto); err != nil {
			return decision, err
		}
	case DecisionPull:
		if err := s.local.ImportFullBackup(ctx, remote.Data); err != nil {
			s.log.Error("applying cloud backup failed", zap.Error(err))
			return decision, s.fail(err)
		}
		// The import notifies the store; that is not a local edit.
		s.autoRun.Cancel()
	}

	s.setStatus(StatusSuccess, func(r *Report) {
		r.Decision = decision
		r.LastSync = s.now()
	})
	return decision, nil
}

// Push uploads the local backup regardless of timestamps.
func (s *Syncer) Push(ctx context.Context, mode SaveMode) (string, error) {
	s.run.Lock()
	defer s.run.Unlock()

	backup, err := s.local.ExportFullBackup(ctx)
	if err != nil {
		return "", s.fail(fmt.Errorf("export local backup: %w", err))
	}
	id, err := s.pushLocked(ctx, backup, mode)
	if err != nil {
		return "", err
	}
	s.setStatus(StatusSuccess, func(r *Report) {
		r.Decision = DecisionPush
		r.LastSync = s.now()
	})
	return id, nil
}

func (s *Syncer) pushLocked(ctx context.Context, backup boletin.Backup, mode SaveMode) (string, error) {
	s.setStatus(StatusSaving, nil)

	raw, err := json.Marshal(backup)
	if err != nil {
		return "", s.fail(err)
	}
	id, err := s.client.Save(ctx, raw, mode)
	s.remote.Delete(remoteKey)
	if err != nil {
		s.log.Error("cloud save failed", zap.String("mode", string(mode)), zap.Error(err))
		return "", s.fail(err)
	}

	// The cloud now holds the imported data; the lock has served.
	if err := s.prefs.DeletePreference(ctx, boletin.PrefImportLock); err != nil {
		s.log.Warn("clearing import lock failed", zap.Error(err))
	}
	if id != "" {
		if err := s.prefs.SetPreference(ctx, boletin.PrefCloudID, id); err != nil {
			s.log.Warn("recording cloud id failed", zap.Error(err))
		}
	}
	s.mu.Lock()
	s.report.LastID = id
	s.mu.Unlock()
	return id, nil
}

// load returns the remote copy, reusing a recent one.
func (s *Syncer) load(ctx context.Context) (LoadResult, error) {
	if v, ok := s.remote.Get(remoteKey); ok {
		return v.(LoadResult), nil
	}
	res, err := s.client.Load(ctx)
	if err != nil {
		return LoadResult{}, err
	}
	s.remote.Set(remoteKey, res, cache.DefaultExpiration)
	return res, nil
}

// Invalidate drops the memoised remote copy.
func (s *Syncer) Invalidate() {
	s.remote.Delete(remoteKey)
}

// lockActive reports whether an import lock is within its window. Expired
// locks are removed.
func (s *Syncer) lockActive(ctx context.Context) (bool, error) {
	v, ok, err := s.prefs.GetPreference(ctx, boletin.PrefImportLock)
	if err != nil || !ok {
		return false, err
	}
	ms, perr := strconv.ParseInt(v, 10, 64)
	if perr == nil && s.now().Sub(time.UnixMilli(ms)) < s.window {
		return true, nil
	}
	if err := s.prefs.DeletePreference(ctx, boletin.PrefImportLock); err != nil {
		return false, err
	}
	return false, nil
}

// remoteStamp reads the comparison timestamp of a remote copy. Data that is
// not a backup counts as empty.
func remoteStamp(res LoadResult) (int64, bool) {
	if res.Empty || len(res.Data) == 0 {
		return 0, true
	}
	shape, err := boletin.DetectBackupShape(res.Data)
	if err != nil || shape == boletin.ShapeUnknown {
		return 0, true
	}
	var b boletin.Backup
	if err := json.Unmarshal(res.Data, &b); err != nil {
		return 0, true
	}
	return b.LastModified(), false
}

// =============================================================================
// AUTO-SAVE
// =============================================================================

// ScheduleSave arms the auto-save. Bursts of edits collapse into one push.
func (s *Syncer) ScheduleSave() {
	s.autoRun.Schedule()
}

// CancelSave drops an armed auto-save.
func (s *Syncer) CancelSave() {
	s.autoRun.Cancel()
}

// SavePending reports whether an auto-save is armed.
func (s *Syncer) SavePending() bool {
	return s.autoRun.Pending()
}

// Close runs a pending auto-save and stops scheduling new ones.
func (s *Syncer) Close() {
	s.autoRun.Flush()
	s.autoRun.Stop()
}
