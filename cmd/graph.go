package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/componentry/internal/component"
	"github.com/zjrosen/componentry/internal/manifest"
)

var graphRole string

var graphCmd = &cobra.Command{
	Use:   "graph [manifest]",
	Short: "Print the descriptors a manifest produces",
	Long: `Print every descriptor a manifest produces, sorted by role and hint,
with its implementation, instantiation strategy and dependency edges.

Examples:
  componentry graph components.yaml
  componentry graph --role Listener`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		descriptors, err := loadDescriptors(manifestPath(args))
		if err != nil {
			return err
		}
		if graphRole != "" {
			descriptors = filterRole(descriptors, component.Role(graphRole))
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), manifest.Render(descriptors))
		return err
	},
}

func init() {
	graphCmd.Flags().StringVarP(&graphRole, "role", "r", "", "only show descriptors of this role")
	rootCmd.AddCommand(graphCmd)
}

func filterRole(ds []*component.Descriptor, role component.Role) []*component.Descriptor {
	var out []*component.Descriptor
	for _, d := range ds {
		if d.Role == role {
			out = append(out, d)
		}
	}
	return out
}
