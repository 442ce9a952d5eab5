package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/jazzedu/chapterscribe/cmd.version=..."
var (
	version = "dev"
	commit  = ""
	date    = ""
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print version and build information",
	Example: `  chapterscribe version`,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		rev, built := commit, date
		if info, ok := debug.ReadBuildInfo(); ok && rev == "" {
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					rev = s.Value
				case "vcs.time":
					if built == "" {
						built = s.Value
					}
				}
			}
		}
		if len(rev) > 12 {
			rev = rev[:12]
		}
		if rev == "" {
			rev = "unknown"
		}
		if built == "" {
			built = "unknown"
		}
		fmt.Printf("chapterscribe %s\n  commit: %s\n  built:  %s\n  go:     %s %s/%s\n",
			version, rev, built, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
