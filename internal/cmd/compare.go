package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adamancini/updraft/internal/output"
)

func newCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare A B",
		Short: "Compare two version strings",
		Long: `Compare orders two version strings the way update checks do.

Examples:
  updraft compare 1.0 1.0.1        # 1.0 < 1.0.1
  updraft compare 2.1.0 2.1.0b4    # 2.1.0 > 2.1.0b4
  updraft compare -o json 1.5 1.5  # {"a": "1.5", "b": "1.5", "result": 0}`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			writer, err := newWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return writer.Write(output.NewComparison(args[0], args[1]))
		},
	}
}
