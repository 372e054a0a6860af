package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// VersionInfo is the build metadata stamped into the binary.
type VersionInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info VersionInfo) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display zeev version and build information.

Use --short to print only the version number, e.g. for scripts.`,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			if short {
				_, _ = fmt.Fprintln(out, info.Version)
				return
			}
			_, _ = fmt.Fprintf(out, "zeev v%s\n", info.Version)
			_, _ = fmt.Fprintf(out, "  commit: %s\n", orUnknown(info.GitCommit))
			_, _ = fmt.Fprintf(out, "  built:  %s\n", orUnknown(info.BuildDate))
			_, _ = fmt.Fprintf(out, "  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			_, _ = fmt.Fprintln(out, "Front-end build orchestrator built with Go and esbuild")
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
