package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/componentry/internal/component"
	"github.com/zjrosen/componentry/internal/component/manager"
	"github.com/zjrosen/componentry/internal/manifest"
)

var validateCmd = &cobra.Command{
	Use:   "validate [manifest]",
	Short: "Check a manifest without constructing anything",
	Long: `Parse a manifest, build its descriptors, register them into an empty
component manager and check that every single dependency resolves and that
the dependency graph has no cycles.

Defaults to manifest.path from the config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := manifestPath(args)
		descriptors, err := loadDescriptors(path)
		if err != nil {
			return err
		}

		mgr := manager.New(manager.WithStrict(cfg.Registry.Strict))
		if _, err := manifest.NewInstaller(mgr).Install(contextOrBackground(cmd), descriptors); err != nil {
			return err
		}
		if err := mgr.Verify(); err != nil {
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d descriptors)\n", path, len(descriptors))
		return err
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func manifestPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Manifest.Path
}

// loadDescriptors loads and builds a manifest without factories; the
// commands here only inspect descriptors.
func loadDescriptors(path string) ([]*component.Descriptor, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	return manifest.Build(m, nil)
}

func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
