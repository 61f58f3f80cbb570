package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/adamancini/updraft/internal/update"
)

// VersionInfo describes the running updraft binary.
type VersionInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Date      string `json:"date" yaml:"date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("updraft version %s (commit %s, built %s, %s, %s)",
		v.Version, v.Commit, v.Date, v.GoVersion, v.Platform)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the updraft version along with the commit and build date.

Examples:
  updraft version           # Human readable
  updraft version -o json   # Machine readable`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			writer, err := newWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return writer.Write(VersionInfo{
				Version:   buildVersion,
				Commit:    buildCommit,
				Date:      buildDate,
				GoVersion: runtime.Version(),
				Platform:  update.Detect().String(),
			})
		},
	}
}
