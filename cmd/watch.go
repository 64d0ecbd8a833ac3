package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/componentry/internal/component"
	"github.com/zjrosen/componentry/internal/component/manager"
	"github.com/zjrosen/componentry/internal/log"
	"github.com/zjrosen/componentry/internal/manifest"
	"github.com/zjrosen/componentry/internal/observation"
	"github.com/zjrosen/componentry/internal/observation/event"
	"github.com/zjrosen/componentry/internal/pubsub"
	"github.com/zjrosen/componentry/internal/tracing"
)

var watchCmd = &cobra.Command{
	Use:   "watch [manifest]",
	Short: "Install a manifest into a live manager and follow its changes",
	Long: `Install a manifest into a component manager and reinstall it whenever
the file changes. Descriptor additions and removals are printed as the
manager announces them on the observation bus, followed by a summary of
each reload. Stops on interrupt.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runWatch(ctx, cmd.OutOrStdout(), manifestPath(args))
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(ctx context.Context, out io.Writer, path string) error {
	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.ErrorErr(log.CatTrace, "tracing shutdown failed", err)
		}
	}()

	mgr := manager.New(
		manager.WithStrict(cfg.Registry.Strict),
		manager.WithTracer(provider.Tracer()),
	)
	defer func() { _ = mgr.Dispose(context.Background()) }()

	bus := observation.NewManager(
		observation.WithDispatchPolicy(cfg.Observation.DispatchPolicy()),
		observation.WithTracer(provider.Tracer()),
	)
	if err := bus.Initialize(ctx, mgr); err != nil {
		return err
	}

	printer := &linePrinter{w: out}
	if err := bus.AddEventListener(observation.NewListenerFunc("watch-printer",
		printer.onDescriptorEvent,
		component.DescriptorAddedEvent{},
		component.DescriptorRemovedEvent{},
	)); err != nil {
		return err
	}

	reloader, err := manifest.NewReloader(
		manifest.WatcherConfig{Path: path, Debounce: cfg.Manifest.Debounce},
		nil,
		manifest.NewInstaller(mgr, manifest.WithInstallTracer(provider.Tracer())),
	)
	if err != nil {
		return err
	}

	reports := reloader.Subscribe(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			ev, ok := pubsub.Next(ctx, reports)
			if !ok {
				return
			}
			printer.report(ev)
		}
	}()

	err = reloader.Run(ctx)
	<-done
	return err
}

// linePrinter serialises output from the bus and the report loop.
type linePrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *linePrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.w, format, args...)
}

func (p *linePrinter) onDescriptorEvent(_ context.Context, e event.Event, _, data any) error {
	impl := ""
	if d, ok := data.(*component.Descriptor); ok {
		impl = " " + d.Implementation
	}
	switch ev := e.(type) {
	case component.DescriptorAddedEvent:
		p.printf("+ %s%s\n", component.NewKey(ev.Role, ev.Hint), impl)
	case component.DescriptorRemovedEvent:
		p.printf("- %s%s\n", component.NewKey(ev.Role, ev.Hint), impl)
	}
	return nil
}

func (p *linePrinter) report(ev pubsub.Event[manifest.Report]) {
	ts := ev.Timestamp.Format(time.TimeOnly)
	switch ev.Type {
	case pubsub.ManifestAppliedEvent:
		p.printf("[%s] %s applied %s\n", ts, ev.Payload.Path, ev.Payload.Changes)
	case pubsub.ManifestFailedEvent:
		if ev.Payload.Changes != nil {
			p.printf("[%s] %s partially applied %s: %v\n", ts, ev.Payload.Path, ev.Payload.Changes, ev.Payload.Err)
			return
		}
		p.printf("[%s] %s rejected: %v\n", ts, ev.Payload.Path, ev.Payload.Err)
	}
}
