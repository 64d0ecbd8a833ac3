package manifest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/componentry/internal/component"
	"github.com/zjrosen/componentry/internal/log"
	"github.com/zjrosen/componentry/internal/tracing"
)

// Target is the part of a component manager the installer writes to.
type Target interface {
	Register(ctx context.Context, d *component.Descriptor, instance any) error
	Unregister(ctx context.Context, role component.Role, hint string) error
}

// Installer applies descriptor sets to a Target, touching only the keys
// that changed since the previous Install. Keys it did not install are
// never removed.
type Installer struct {
	target Target
	tracer trace.Tracer

	mu        sync.Mutex
	installed []*component.Descriptor
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithInstallTracer records a span per Install.
func WithInstallTracer(tracer trace.Tracer) InstallerOption {
	return func(i *Installer) { i.tracer = tracer }
}

// NewInstaller returns an installer writing to target.
func NewInstaller(target Target, opts ...InstallerOption) *Installer {
	i := &Installer{target: target, tracer: tracing.NoopTracer()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install makes the installed set equal to descriptors. Removals run first,
// then registrations in descriptor order. A failed step is reported and
// skipped; the returned Changes list only what was applied.
func (i *Installer) Install(ctx context.Context, descriptors []*component.Descriptor) (changes *Changes, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	planned := Diff(i.installed, descriptors)
	changes = &Changes{Batch: uuid.NewString(), Unchanged: planned.Unchanged}

	ctx, span := tracing.Start(ctx, i.tracer, tracing.SpanManifestInstall,
		attribute.Int("manifest.added", len(planned.Added)),
		attribute.Int("manifest.replaced", len(planned.Replaced)),
		attribute.Int("manifest.removed", len(planned.Removed)),
	)
	defer func() { tracing.Finish(span, err) }()

	byKey := make(map[component.Key]*component.Descriptor, len(descriptors))
	for _, d := range descriptors {
		byKey[d.Key()] = d
	}
	current := make(map[component.Key]*component.Descriptor, len(i.installed))
	for _, d := range i.installed {
		current[d.Key()] = d
	}

	var errs []error
	for _, key := range planned.Removed {
		if uerr := i.target.Unregister(ctx, key.Role, key.Hint); uerr != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, uerr))
			continue
		}
		delete(current, key)
		changes.Removed = append(changes.Removed, key)
	}

	replaced := make(map[component.Key]bool, len(planned.Replaced))
	for _, key := range planned.Replaced {
		replaced[key] = true
	}
	for _, d := range descriptors {
		key := d.Key()
		_, had := current[key]
		if had && !replaced[key] {
			continue
		}
		if rerr := i.target.Register(ctx, d, nil); rerr != nil {
			errs = append(errs, fmt.Errorf("install %s: %w", key, rerr))
			continue
		}
		current[key] = byKey[key]
		if had {
			changes.Replaced = append(changes.Replaced, key)
		} else {
			changes.Added = append(changes.Added, key)
		}
	}

	// Keep the previous order for survivors so later diffs stay stable.
	next := make([]*component.Descriptor, 0, len(current))
	for _, d := range descriptors {
		if cur, ok := current[d.Key()]; ok {
			next = append(next, cur)
			delete(current, d.Key())
		}
	}
	for _, d := range i.installed {
		if cur, ok := current[d.Key()]; ok {
			next = append(next, cur)
		}
	}
	i.installed = next

	err = errors.Join(errs...)
	log.Info(log.CatManifest, "manifest installed",
		"batch", changes.Batch,
		"changes", changes.String(),
		"errors", len(errs))
	return changes, err
}

// Uninstall removes everything the installer registered.
func (i *Installer) Uninstall(ctx context.Context) (*Changes, error) {
	return i.Install(ctx, nil)
}

// Installed returns the keys currently installed, in install order.
func (i *Installer) Installed() []component.Key {
	i.mu.Lock()
	defer i.mu.Unlock()
	keys := make([]component.Key, len(i.installed))
	for n, d := range i.installed {
		keys[n] = d.Key()
	}
	return keys
}
