/*
Package app builds the application context.

PURPOSE:
  Every component is constructed once here and handed to whoever needs
  it. Nothing in the engine is a package-level singleton.

WIRING ORDER:
  1. Section index over storage
  2. AppStore over storage + index
  3. Overlay canvas + renderer, subscribed first so fields exist
  4. Layout engine, subscribed second so it positions existing fields
  5. Store.Init, which publishes once: the renderer draws and the engine
     loads the current grade's layout
  6. Optional cloud syncer (auto-save on every later change) + scheduler

SEE ALSO:
  - cmd/server/main.go: Builds storage and config, then calls New
  - api/handlers.go: Drives the App over HTTP
*/
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/warp/report-engine/boletin"
	"github.com/warp/report-engine/cloud"
	"github.com/warp/report-engine/cloud/firestore"
	"github.com/warp/report-engine/config"
	"github.com/warp/report-engine/factory"
	"github.com/warp/report-engine/grid"
	"github.com/warp/report-engine/importer"
	"github.com/warp/report-engine/layout"
	"github.com/warp/report-engine/overlay"
	"github.com/warp/report-engine/section"
	"github.com/warp/report-engine/state"
)

// App is the application context.
type App struct {
	Storage   boletin.Storage
	Index     *section.Index
	Store     *state.Store
	Canvas    *overlay.Canvas
	Renderer  *overlay.Renderer
	Layout    *layout.Engine
	Defaults  *factory.Registry
	Syncer    *cloud.Syncer
	Scheduler *cloud.Scheduler
	Policy    boletin.TierPolicy

	log    *zap.Logger
	client cloud.Client
	closer io.Closer
	detach []func()
}

// Option configures New.
type Option func(*App)

// WithCloudClient uses client instead of connecting to Firestore.
func WithCloudClient(client cloud.Client) Option {
	return func(a *App) { a.client = client }
}

// New wires every component over storage and runs the first load.
func New(ctx context.Context, storage boletin.Storage, cfg config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Storage: storage, Policy: cfg.Tiers, log: log}
	for _, opt := range opts {
		opt(a)
	}

	a.Defaults = factory.NewRegistry()
	if cfg.LayoutsDir != "" {
		n, err := a.Defaults.LoadDir(cfg.LayoutsDir)
		if err != nil {
			return nil, fmt.Errorf("load factory layouts: %w", err)
		}
		log.Info("factory layouts loaded", zap.Int("count", n), zap.String("dir", cfg.LayoutsDir))
	}

	a.Index = section.Open(ctx, storage, section.WithLogger(log.Named("sections")))
	a.Store = state.New(storage, a.Index,
		state.WithLogger(log.Named("state")),
		state.WithSaveDelay(cfg.SaveDelay),
	)

	a.Canvas = overlay.NewCanvas(true)
	a.Renderer = overlay.NewRenderer(a.Canvas,
		overlay.WithTierPolicy(cfg.Tiers),
		overlay.WithLogger(log.Named("overlay")),
	)
	a.Layout = layout.New(a.Canvas, storage,
		layout.WithLogger(log.Named("layout")),
		layout.WithDefaults(a.Defaults),
		layout.WithHistoryLimit(cfg.HistoryLimit),
		layout.WithSaveDelay(cfg.LayoutSaveDelay),
	)
	a.detach = append(a.detach, a.Renderer.Attach(a.Store), a.Layout.Attach(a.Store))

	if err := a.Store.Init(ctx); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	if err := a.startCloud(ctx, cfg); err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) startCloud(ctx context.Context, cfg config.Config) error {
	if a.client == nil && cfg.CloudEnabled() {
		fs, err := firestore.New(ctx, cfg.CloudCredentials, cfg.CloudOwner)
		if err != nil {
			return fmt.Errorf("connect cloud: %w", err)
		}
		a.client, a.closer = fs, fs
	}
	if a.client == nil {
		a.log.Info("cloud sync disabled")
		return nil
	}

	a.Syncer = cloud.NewSyncer(a.client, a.Store, a.Storage,
		cloud.WithLogger(a.log.Named("cloud")),
		cloud.WithAutoSaveDelay(cfg.AutoSaveDelay),
		cloud.WithLockWindow(cfg.ImportLockWindow),
	)
	a.detach = append(a.detach, a.Store.Subscribe(func(boletin.SectionState) {
		a.Syncer.ScheduleSave()
	}))

	a.Scheduler = cloud.NewScheduler(a.Syncer, a.log.Named("scheduler"))
	a.Scheduler.CheckInterval = cfg.SyncInterval
	a.Scheduler.Enabled = cfg.SyncInterval > 0
	a.Scheduler.Start()
	return nil
}

// Grid renders the tabular entry form of the current student.
func (a *App) Grid() grid.Table {
	return grid.RenderWithPolicy(a.Store.State(), a.Policy)
}

// Export renders every student of the current section into sink.
func (a *App) Export(ctx context.Context, sink overlay.Sink) (int, error) {
	return overlay.BatchExport(ctx, a.Store, a.Renderer, sink, a.log.Named("export"))
}

// ImportRoster reads names from a workbook and adds the unknown ones.
func (a *App) ImportRoster(r io.Reader) (int, error) {
	names, err := importer.ReadRoster(r)
	if err != nil {
		return 0, err
	}
	return a.Store.ImportRoster(names), nil
}

// ResetPositions puts every overlay field of the current grade back at
// its computed default (or factory) position.
func (a *App) ResetPositions(ctx context.Context) error {
	scratch := overlay.NewCanvas(a.Canvas.OverlayMode())
	overlay.NewRenderer(scratch, overlay.WithTierPolicy(a.Policy)).Render(a.Store.State())
	return a.Layout.ResetPositions(ctx, scratch.Layout())
}

// FactoryReset wipes all local data and starts over with one empty
// section. The cloud copy is left alone; an armed auto-save is dropped so
// the empty state is not pushed over it.
func (a *App) FactoryReset(ctx context.Context) error {
	type resetter interface {
		Reset(ctx context.Context) error
	}
	r, ok := a.Storage.(resetter)
	if !ok {
		return errors.New("storage does not support reset")
	}
	if a.Syncer != nil {
		a.Syncer.CancelSave()
	}
	if err := a.Layout.Flush(ctx); err != nil {
		return err
	}
	if err := a.Store.Flush(ctx); err != nil {
		return err
	}
	if err := r.Reset(ctx); err != nil {
		return err
	}

	a.Index.Reload(ctx)
	if err := a.Store.Init(ctx); err != nil {
		return fmt.Errorf("reinitialize store: %w", err)
	}
	if err := a.ResetPositions(ctx); err != nil {
		return err
	}
	if a.Syncer != nil {
		a.Syncer.CancelSave()
		a.Syncer.Invalidate()
	}
	a.log.Warn("factory reset")
	return nil
}

// Close flushes pending writes and stops background work.
func (a *App) Close(ctx context.Context) error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Syncer != nil {
		a.Syncer.Close()
	}
	var errs []error
	if a.Layout != nil {
		errs = append(errs, a.Layout.Close(ctx))
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close(ctx))
	}
	for _, d := range a.detach {
		d()
	}
	a.detach = nil
	if a.closer != nil {
		errs = append(errs, a.closer.Close())
	}
	return errors.Join(errs...)
}
