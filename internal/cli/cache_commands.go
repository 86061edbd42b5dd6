package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"parallel-ytdl/internal/cache"
)

type forgetResult struct {
	Path    string `json:"path"`
	Removed int    `json:"removed"`
}

func (a *app) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "inspect or edit the fingerprint cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "show record counts of the cache file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := cache.ReadStats(a.cfg.Cache.Path)
			if err != nil {
				return err
			}
			if a.flags.json {
				return printJSON(a.stdout, st)
			}
			if !st.Exists {
				_, _ = fmt.Fprintf(a.stdout, "cache %s does not exist yet\n", st.Path)
				return nil
			}
			_, _ = fmt.Fprintf(a.stdout, "cache: %s\n", st.Path)
			_, _ = fmt.Fprintf(a.stdout, "records: %d (%d unique)\n", st.Records, st.Unique)
			_, _ = fmt.Fprintf(a.stdout, "bytes: %d\n", st.Bytes)
			if st.PartialBytes > 0 {
				_, _ = fmt.Fprintln(a.stdout, warnStyle.Render(fmt.Sprintf("partial trailing record: %d bytes (dropped by the next append)", st.PartialBytes)))
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "forget URL...",
		Short: "remove URLs from the cache so the next run downloads them again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.commandContext(cmd.Context(), "cache forget")
			lock, err := cache.AcquireLock(a.cfg.Cache.Path, a.runID)
			if err != nil {
				return err
			}
			defer func() {
				_ = lock.Release()
			}()
			removed, err := cache.Forget(args, a.cfg.Cache.Path)
			if err != nil {
				return err
			}
			slog.InfoContext(ctx, "cache records removed", "path", a.cfg.Cache.Path, "removed", removed)
			if a.flags.json {
				return printJSON(a.stdout, forgetResult{Path: a.cfg.Cache.Path, Removed: removed})
			}
			_, _ = fmt.Fprintf(a.stdout, "removed %d of %d URLs from %s\n", removed, len(args), a.cfg.Cache.Path)
			return nil
		},
	})
	return cmd
}
