package manifest

import (
	"context"
	"time"

	"github.com/zjrosen/componentry/internal/log"
	"github.com/zjrosen/componentry/internal/pubsub"
)

// Report is published for every reload attempt.
type Report struct {
	Path    string
	Changes *Changes
	Err     error
}

// Reloader loads, builds and installs a manifest each time its watcher
// fires and publishes the outcome.
type Reloader struct {
	path      string
	factories *FactoryTable
	installer *Installer
	watcher   *Watcher
	broker    *pubsub.Broker[Report]
}

// NewReloader returns a reloader for the manifest at cfg.Path. factories may
// be nil; see Build.
func NewReloader(cfg WatcherConfig, factories *FactoryTable, installer *Installer) (*Reloader, error) {
	w, err := NewWatcher(cfg)
	if err != nil {
		return nil, err
	}
	return &Reloader{
		path:      cfg.Path,
		factories: factories,
		installer: installer,
		watcher:   w,
		broker:    pubsub.NewBroker[Report](),
	}, nil
}

// Subscribe returns a channel of reload reports.
func (r *Reloader) Subscribe(ctx context.Context) <-chan pubsub.Event[Report] {
	return r.broker.Subscribe(ctx)
}

// Reload applies the manifest once.
func (r *Reloader) Reload(ctx context.Context) Report {
	report := Report{Path: r.path}

	m, err := Load(r.path)
	if err != nil {
		report.Err = err
		r.publish(report)
		return report
	}

	ds, err := Build(m, r.factories)
	if err != nil {
		report.Err = err
		r.publish(report)
		return report
	}

	report.Changes, report.Err = r.installer.Install(ctx, ds)
	r.publish(report)
	return report
}

func (r *Reloader) publish(report Report) {
	if report.Err != nil {
		log.ErrorErr(log.CatManifest, "manifest reload failed", report.Err, "path", report.Path)
		r.broker.Publish(pubsub.ManifestFailedEvent, report)
		return
	}
	r.broker.Publish(pubsub.ManifestAppliedEvent, report)
}

// Run applies the manifest, then reapplies it on every change until ctx is
// done. The first load's error is returned; later failures are only
// published, leaving the last good installation in place.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.broker.Close()
	defer func() { _ = r.watcher.Stop() }()

	if first := r.Reload(ctx); first.Err != nil && first.Changes == nil {
		return first.Err
	}

	changes, err := r.watcher.Start()
	if err != nil {
		return err
	}

	log.Info(log.CatWatcher, "watching manifest", "path", r.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			start := time.Now()
			report := r.Reload(ctx)
			log.Debug(log.CatWatcher, "manifest reloaded", "path", r.path, "took", time.Since(start), "ok", report.Err == nil)
		}
	}
}
