package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rowjay/docbackup/internal/backup"
	"github.com/rowjay/docbackup/internal/config"
	"github.com/rowjay/docbackup/internal/datastore"
	"github.com/rowjay/docbackup/internal/dump"
	"github.com/rowjay/docbackup/internal/metrics"
	"github.com/rowjay/docbackup/internal/notify"
)

// App wires the backup manager to a datastore and reports every operation
// to the notifier and metrics.
type App struct {
	Cfg      *config.Config
	Manager  *backup.Manager
	Store    datastore.Datastore
	Log      zerolog.Logger
	Notifier notify.Notifier
	Metrics  *metrics.Metrics

	mu        sync.Mutex
	openStore func() (*datastore.Badger, error)
	badger    *datastore.Badger
}

func New(cfg *config.Config, manager *backup.Manager, store datastore.Datastore, log zerolog.Logger, notifier notify.Notifier, m *metrics.Metrics) *App {
	return &App{Cfg: cfg, Manager: manager, Store: store, Log: log, Notifier: notifier, Metrics: m}
}

// Open validates cfg and builds an App backed by the Badger datastore at
// cfg.Datastore.Path. The datastore is opened on first use, so commands that
// only touch the backup root never take its directory lock. The returned
// close function releases the datastore if it was opened.
func Open(cfg *config.Config, log zerolog.Logger) (*App, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	manager, err := backup.NewManager(cfg.ManagerConfig(), log)
	if err != nil {
		return nil, nil, err
	}
	a := New(cfg, manager, nil, log, notify.FromConfig(cfg.Notifications), metrics.New())
	a.openStore = func() (*datastore.Badger, error) {
		return datastore.OpenBadger(cfg.Datastore.Path, log)
	}
	return a, a.closeStore, nil
}

// openDatastore returns the configured datastore, opening it if needed.
func (a *App) openDatastore() (datastore.Datastore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Store != nil {
		return a.Store, nil
	}
	if a.openStore == nil {
		return nil, errors.New("no datastore configured")
	}
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	a.badger = store
	a.Store = store
	return store, nil
}

func (a *App) closeStore() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.badger == nil {
		return nil
	}
	err := a.badger.Close()
	a.badger = nil
	a.Store = nil
	return err
}

func (a *App) Backup(ctx context.Context, name string) (*backup.Manifest, error) {
	start := time.Now()
	var manifest *backup.Manifest
	store, err := a.openDatastore()
	if err == nil {
		manifest, err = a.Manager.CreateBackup(ctx, store, name)
	}

	event := notify.Event{Type: "backup", Backup: name}
	var opErr *backup.OpError
	switch {
	case manifest != nil:
		event.Backup = manifest.Name
		event.Collections = len(manifest.Collections)
		event.Documents = manifest.TotalDocuments
		event.Size = manifest.TotalSize
		a.Metrics.RecordBackup(manifest.TotalDocuments, manifest.TotalSize)
	case errors.As(err, &opErr):
		event.Backup = opErr.Backup
	}
	a.finish(event, start, err)
	return manifest, err
}

func (a *App) Restore(ctx context.Context, name string, collections []string) (int, error) {
	start := time.Now()
	n := 0
	store, err := a.openDatastore()
	if err == nil {
		n, err = a.Manager.Restore(ctx, store, name, collections...)
	}
	a.finish(notify.Event{Type: "restore", Backup: name, Documents: n}, start, err)
	return n, err
}

func (a *App) List(ctx context.Context) ([]backup.Summary, error) {
	list, err := a.Manager.ListBackups(ctx)
	if err != nil {
		return nil, err
	}
	a.Metrics.SetBackupCount(len(list))
	return list, nil
}

func (a *App) Verify(ctx context.Context, name string, deep bool) backup.VerifyResult {
	start := time.Now()
	res := a.Manager.VerifyBackup(ctx, name, deep)
	a.Metrics.Observe("verify", start, res.Err)
	a.writeMetrics()
	return res
}

func (a *App) Prune(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := a.Manager.PruneExpired(ctx)
	a.Metrics.RecordPruned(n)
	a.finish(notify.Event{Type: "prune", Pruned: n}, start, err)
	return n, err
}

func (a *App) Delete(ctx context.Context, name string) error {
	start := time.Now()
	err := a.Manager.DeleteBackup(ctx, name)
	a.finish(notify.Event{Type: "delete", Backup: name}, start, err)
	return err
}

// ScheduledBackup is the unattended job: a default-named backup followed by
// retention pruning. Pruning is skipped when the backup fails.
func (a *App) ScheduledBackup(ctx context.Context) error {
	if _, err := a.Backup(ctx, ""); err != nil {
		return err
	}
	if _, err := a.Prune(ctx); err != nil {
		return fmt.Errorf("prune after scheduled backup: %w", err)
	}
	return nil
}

// MongoDump writes a mongodump of the configured database to outDir.
func (a *App) MongoDump(ctx context.Context, outDir string) error {
	start := time.Now()
	err := dump.NewMongo(a.Cfg.Mongo, a.Log).Dump(ctx, outDir)
	a.Metrics.Observe("mongodump", start, err)
	a.writeMetrics()
	return err
}

// MongoRestore loads a mongodump directory back into MongoDB.
func (a *App) MongoRestore(ctx context.Context, dir string) error {
	start := time.Now()
	err := dump.NewMongo(a.Cfg.Mongo, a.Log).Restore(ctx, dir)
	a.Metrics.Observe("mongorestore", start, err)
	a.writeMetrics()
	return err
}

func (a *App) finish(event notify.Event, start time.Time, opErr error) {
	end := time.Now()
	a.Metrics.Observe(event.Type, start, opErr)
	a.writeMetrics()
	if a.Notifier == nil {
		return
	}
	event.Status = notify.StatusSuccess
	event.Message = fmt.Sprintf("%s succeeded", event.Type)
	if opErr != nil {
		event.Status = notify.StatusFailure
		event.Message = fmt.Sprintf("%s failed", event.Type)
		event.Error = opErr.Error()
	}
	event.StartedAt = start
	event.EndedAt = end
	event.Duration = end.Sub(start).String()
	if err := a.Notifier.Notify(context.Background(), event); err != nil {
		a.Log.Warn().Err(err).Str("event", event.Type).Msg("notification failed")
	}
}

func (a *App) writeMetrics() {
	if a.Cfg == nil || a.Metrics == nil {
		return
	}
	if err := a.Metrics.WriteTextfile(a.Cfg.Metrics.Textfile); err != nil {
		a.Log.Warn().Err(err).Str("path", a.Cfg.Metrics.Textfile).Msg("failed to write metrics textfile")
	}
}
