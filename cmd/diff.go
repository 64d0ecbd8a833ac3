package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/zjrosen/componentry/internal/manifest"
)

var diffCmd = &cobra.Command{
	Use:   "diff <old> <new>",
	Short: "Compare the descriptors of two manifests",
	Long: `Render the descriptors of two manifests and print a line diff followed
by the registrations an install of <new> over <old> would add, replace and
remove.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		before, err := loadDescriptors(args[0])
		if err != nil {
			return err
		}
		after, err := loadDescriptors(args[1])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if err := writeLineDiff(out, manifest.Render(before), manifest.Render(after)); err != nil {
			return err
		}

		changes := manifest.Diff(before, after)
		_, err = fmt.Fprintf(out, "\n%s\n", changes)
		return err
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

// writeLineDiff prints a and b as a unified-style line diff without hunks.
func writeLineDiff(w io.Writer, a, b string) error {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			if _, err := io.WriteString(w, prefix+strings.TrimSuffix(line, "\n")+"\n"); err != nil {
				return err
			}
		}
	}
	return nil
}
