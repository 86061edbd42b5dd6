package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"parallel-ytdl/internal/dashboard"
	"parallel-ytdl/internal/dispatch"
)

func (a *app) runDownload(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(a.commandContext(cmd.Context(), "download"))
	defer cancel()

	opts := dispatch.Options{
		RunID:          a.runID,
		Executable:     a.cfg.Executable,
		DownloadPreset: a.cfg.DownloadPreset,
		ExtraFlags:     append(slices.Clone(a.cfg.ExtraArgs), args...),
		OutputPreset:   a.cfg.OutputPreset,
		URLs:           a.flags.urls,
		ListPath:       a.cfg.List,
		UseCache:       a.cfg.Cache.IsEnabled(),
		CachePath:      a.cfg.Cache.Path,
		CacheMode:      a.cfg.Cache.ParsedMode(),
		Workers:        a.cfg.Workers,
		JobTimeout:     a.cfg.JobTimeout,
		Stderr:         a.stderr,
	}

	var dash *dashboard.Dashboard
	// the dashboard owns the terminal; Failed with: diagnostics are printed after it stops
	var diag bytes.Buffer
	if a.cfg.Dashboard && !a.flags.json {
		if isTTY(a.stdout) {
			var in io.Reader
			if isTTY(a.stdin) {
				in = a.stdin
			}
			dash = dashboard.Start(in, a.stdout, cancel)
			opts.Observer = dash
			opts.BeforeRun = dash.Plan
			opts.Stderr = &diag
		} else {
			slog.WarnContext(ctx, "dashboard disabled: stdout is not a terminal")
		}
	}
	if opts.Observer == nil {
		opts.Observer = dashboard.NewLogObserver(ctx, slog.Default())
	}

	res, runErr := dispatch.Run(ctx, opts)
	if dash != nil {
		if err := dash.Stop(); err != nil {
			slog.WarnContext(ctx, "dashboard failed", "error", err)
		}
		_, _ = io.Copy(a.stderr, &diag)
	}
	if runErr != nil {
		if res.Attempted > 0 {
			_ = a.printResult(res)
		}
		return runErr
	}
	if err := a.printResult(res); err != nil {
		return err
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", res.Failed, res.Attempted)
	}
	return nil
}

func (a *app) printResult(res dispatch.Result) error {
	if a.flags.json {
		return printJSON(a.stdout, res)
	}
	w := a.stdout
	if res.ListEmpty {
		_, _ = fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("warning: %s has no URLs", a.cfg.List)))
	}
	status := okStyle.Render(res.Summary())
	if res.Failed > 0 {
		status = errorStyle.Render(res.Summary())
	}
	_, _ = fmt.Fprintf(w, "%s %s\n", titleStyle.Render("parallel-ytdl:"), status)
	_, _ = fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("  jobs %d | already done %d | attempted %d | completed %d | failed %d | warnings %d | workers %d",
		res.Total, res.AlreadyDone, res.Attempted, res.Completed, res.Failed, res.Warnings, res.Workers)))
	if a.cfg.Cache.IsEnabled() {
		_, _ = fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("  cache %s (%s, %d records written)",
			a.cfg.Cache.Path, a.cfg.Cache.ParsedMode(), res.CacheWrites)))
	}
	return nil
}
