package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"parallel-ytdl/internal/dispatch"
)

func (a *app) doctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "check the downloader, the job list and the cache before a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res := dispatch.Doctor(dispatch.DoctorOptions{
				Executable: a.cfg.Executable,
				ListPath:   a.cfg.List,
				UseCache:   a.cfg.Cache.IsEnabled(),
				CachePath:  a.cfg.Cache.Path,
			})
			if a.flags.json {
				if err := printJSON(a.stdout, res); err != nil {
					return err
				}
			} else {
				for _, c := range res.Checks {
					status := okStyle.Render("ok")
					switch {
					case !c.OK && c.Advisory:
						status = warnStyle.Render("missing")
					case !c.OK:
						status = errorStyle.Render("fail")
					}
					_, _ = fmt.Fprintf(a.stdout, "%s: %s (%s)\n", c.Name, status, c.Message)
				}
			}
			if !res.OK {
				return errors.New("doctor checks failed")
			}
			if !a.flags.json {
				_, _ = fmt.Fprintln(a.stdout, "doctor: all checks passed")
			}
			return nil
		},
	}
}
