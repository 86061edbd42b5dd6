// Package cli wires the parallel-ytdl commands: the root command downloads
// a job list, the rest inspect the environment and the fingerprint cache.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"parallel-ytdl/internal/config"
	"parallel-ytdl/internal/log"
)

type rootFlags struct {
	config    string
	verbose   bool
	json      bool
	logFormat string

	exec           string
	list           string
	cachePath      string
	cacheMode      string
	useCache       bool
	noCache        bool
	urls           []string
	downloadPreset string
	outputPreset   string
	workers        int
	jobTimeout     time.Duration
	dashboard      bool
}

type app struct {
	flags rootFlags

	cfg        config.Config
	configPath string
	runID      string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// Run executes the command line with the process streams. SIGINT and SIGTERM
// cancel the run; finished downloads are still recorded.
func Run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Execute(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCommand() *cobra.Command {
	def := config.Default()
	root := &cobra.Command{
		Use:   "parallel-ytdl [flags] [-- downloader args...]",
		Short: "Download a list of URLs with yt-dlp, several at a time",
		Long: "parallel-ytdl reads one URL per line from a list file, skips URLs that a previous\n" +
			"run already downloaded and runs yt-dlp (or youtube-dl) on the rest in parallel.\n" +
			"Arguments after -- are passed to every downloader invocation.",
		Args:              downloaderArgs,
		PersistentPreRunE: a.init,
		RunE:              a.runDownload,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.config, "config", "", "config file (default "+config.DefaultFileName+" in the working directory or the user config dir)")
	pf.BoolVar(&a.flags.verbose, "verbose", false, "debug logging, including downloader output")
	pf.BoolVar(&a.flags.json, "json", false, "print JSON output")
	pf.StringVar(&a.flags.logFormat, "log-format", def.LogFormat, "log format: json|text")
	pf.StringVar(&a.flags.exec, "exec", "", "downloader executable name or path (default yt-dlp, then youtube-dl)")
	pf.StringVar(&a.flags.list, "list", def.List, "file with one URL per line")
	pf.StringVar(&a.flags.cachePath, "cache-path", def.Cache.Path, "fingerprint cache file")
	pf.StringVar(&a.flags.cacheMode, "cache-mode", def.Cache.Mode, "cache write mode: append|rewrite")

	f := root.Flags()
	f.BoolVar(&a.flags.useCache, "cache", true, "skip URLs recorded in the cache and record new downloads")
	f.BoolVar(&a.flags.noCache, "no-cache", false, "ignore the cache for this run")
	f.StringArrayVar(&a.flags.urls, "url", nil, "URL to download instead of the list file (repeatable)")
	f.StringVar(&a.flags.downloadPreset, "download-preset", "", "download preset: audio")
	f.StringVar(&a.flags.outputPreset, "output-preset", "", "rename downloads: author-title")
	f.IntVar(&a.flags.workers, "workers", 0, "max parallel downloads (0 = number of CPUs)")
	f.DurationVar(&a.flags.jobTimeout, "job-timeout", 0, "kill a download after this long (0 = never)")
	f.BoolVar(&a.flags.dashboard, "dashboard", false, "live terminal dashboard (add -- --progress for per-download percentages)")

	root.AddCommand(a.doctorCommand())
	root.AddCommand(a.cacheCommand())
	root.AddCommand(a.configCommand())
	root.AddCommand(a.versionCommand())
	return root
}

func downloaderArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 || cmd.ArgsLenAtDash() == 0 {
		return nil
	}
	if cmd.ArgsLenAtDash() < 0 {
		return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
	}
	return fmt.Errorf("unexpected argument %q (downloader arguments go after --)", args[0])
}

// init resolves configuration with precedence flags > environment > config
// file > defaults and installs the process logger.
func (a *app) init(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}

	userDir := ""
	if d, err := os.UserConfigDir(); err == nil {
		userDir = filepath.Join(d, "parallel-ytdl")
	}
	cfg, path, err := config.Resolve(a.flags.config, userDir)
	if err != nil {
		return err
	}
	cfg, err = config.ApplyEnv(cfg, nil)
	if err != nil {
		return err
	}
	cfg, err = config.Normalize(a.applyFlags(cmd, cfg))
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.configPath = path
	a.runID = uuid.NewString()

	slog.SetDefault(log.New(a.stderr, cfg.Verbose, cfg.LogFormat))
	slog.Debug("config resolved", "path", path, "config", cfg)
	return nil
}

func (a *app) applyFlags(cmd *cobra.Command, cfg config.Config) config.Config {
	fl := cmd.Flags()
	if fl.Changed("verbose") {
		cfg.Verbose = a.flags.verbose
	}
	if fl.Changed("log-format") {
		cfg.LogFormat = a.flags.logFormat
	}
	if fl.Changed("exec") {
		cfg.Executable = a.flags.exec
	}
	if fl.Changed("list") {
		cfg.List = a.flags.list
	}
	if fl.Changed("cache-path") {
		cfg.Cache.Path = a.flags.cachePath
	}
	if fl.Changed("cache-mode") {
		cfg.Cache.Mode = a.flags.cacheMode
	}
	if fl.Changed("cache") {
		cfg.Cache.Enabled = boolPtr(a.flags.useCache)
	}
	if fl.Changed("no-cache") && a.flags.noCache {
		cfg.Cache.Enabled = boolPtr(false)
	}
	if fl.Changed("download-preset") {
		cfg.DownloadPreset = a.flags.downloadPreset
	}
	if fl.Changed("output-preset") {
		cfg.OutputPreset = a.flags.outputPreset
	}
	if fl.Changed("workers") {
		cfg.Workers = a.flags.workers
	}
	if fl.Changed("job-timeout") {
		cfg.JobTimeout = a.flags.jobTimeout
	}
	if fl.Changed("dashboard") {
		cfg.Dashboard = a.flags.dashboard
	}
	return cfg
}

// commandContext tags log records with the command name and the run id.
func (a *app) commandContext(ctx context.Context, name string) context.Context {
	return log.ContextAttrs(ctx, slog.Group("parallel-ytdl",
		slog.String("cmd", name),
		slog.String("run_id", a.runID),
		slog.Int("pid", os.Getpid()),
	))
}
