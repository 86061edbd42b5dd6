package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := a.stdout
			if a.configPath != "" {
				_, _ = fmt.Fprintf(w, "config: %s\n", a.configPath)
			}
			info, ok := debug.ReadBuildInfo()
			if !ok {
				_, _ = fmt.Fprintln(w, "parallel-ytdl: version info not available")
				return
			}
			_, _ = fmt.Fprintf(w, "parallel-ytdl: %s\n", info.Main.Version)
			_, _ = fmt.Fprintf(w, "go:     %s\n", info.GoVersion)
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					_, _ = fmt.Fprintf(w, "commit: %s\n", s.Value)
				case "vcs.time":
					_, _ = fmt.Fprintf(w, "date:   %s\n", s.Value)
				case "vcs.modified":
					_, _ = fmt.Fprintf(w, "dirty:  %s\n", s.Value)
				}
			}
		},
	}
}
