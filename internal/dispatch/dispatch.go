// Package dispatch drives one download run: it resolves the job source,
// filters already-downloaded jobs through the fingerprint cache, runs the
// worker pool and persists what completed.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"parallel-ytdl/internal/cache"
	"parallel-ytdl/internal/model"
	"parallel-ytdl/internal/naming"
	"parallel-ytdl/internal/pool"
	"parallel-ytdl/internal/ytdlp"
)

type Options struct {
	RunID string
	// Executable is a downloader name or path; empty picks yt-dlp or youtube-dl.
	Executable     string
	DownloadPreset string
	ExtraFlags     []string
	OutputPreset   string
	// URLs overrides ListPath when non-empty.
	URLs       []string
	ListPath   string
	UseCache   bool
	CachePath  string
	CacheMode  cache.Mode
	Workers    int
	JobTimeout time.Duration
	Observer   pool.Observer
	Stderr     io.Writer
	// BeforeRun is called with the resolved pool size right before the pool
	// starts; it is not called when there is nothing to do.
	BeforeRun func(workers, jobs int)
}

type Result struct {
	RunID       string `json:"run_id"`
	Executable  string `json:"executable"`
	Total       int    `json:"total"`
	AlreadyDone int    `json:"already_done"`
	Attempted   int    `json:"attempted"`
	Completed   int    `json:"completed"`
	Failed      int    `json:"failed"`
	Warnings    int    `json:"warnings"`
	Workers     int    `json:"workers"`
	UpToDate    bool   `json:"up_to_date"`
	ListEmpty   bool   `json:"list_empty,omitempty"`
	CacheWrites int    `json:"cache_writes"`
}

func (r Result) Summary() string {
	switch {
	case r.UpToDate:
		return "up to date"
	case r.Failed == 0:
		return "completed successfully"
	default:
		return fmt.Sprintf("%d of %d failed", r.Failed, r.Attempted)
	}
}

func Run(ctx context.Context, opts Options) (Result, error) {
	exe, err := ytdlp.FindExecutable(opts.Executable)
	if err != nil {
		return Result{}, err
	}
	presetFlags, err := ytdlp.DownloadPreset(opts.DownloadPreset)
	if err != nil {
		return Result{}, err
	}
	formatter, err := naming.Select(opts.OutputPreset)
	if err != nil {
		return Result{}, err
	}

	res := Result{RunID: opts.RunID, Executable: exe}
	urls, err := jobSource(opts)
	if err != nil {
		return Result{}, err
	}
	if len(urls) == 0 {
		res.ListEmpty = true
		slog.WarnContext(ctx, "job list is empty", "list", opts.ListPath)
	}
	res.Total = len(urls)

	var pending []model.Job
	var done []model.Fingerprint
	if opts.UseCache {
		if strings.TrimSpace(opts.CachePath) == "" {
			return Result{}, errors.New("cache path is required when caching is enabled")
		}
		lock, err := cache.AcquireLock(opts.CachePath, opts.RunID)
		if err != nil {
			return Result{}, err
		}
		defer func() {
			_ = lock.Release()
		}()
		pending, done, err = cache.Diff(urls, opts.CachePath, opts.CacheMode)
		if err != nil {
			return Result{}, err
		}
	} else {
		pending = uniqueJobs(urls)
	}
	res.AlreadyDone = res.Total - len(pending)
	res.Attempted = len(pending)
	slog.DebugContext(ctx, "jobs resolved", "total", res.Total, "pending", len(pending), "already_done", res.AlreadyDone)

	completed := pool.NewCompleted(done)
	var dispatchErr error
	if len(pending) == 0 {
		res.UpToDate = true
	} else {
		p := pool.New(pool.Options{
			Executable:  exe,
			PresetFlags: presetFlags,
			ExtraFlags:  opts.ExtraFlags,
			Formatter:   formatter,
			Workers:     opts.Workers,
			JobTimeout:  opts.JobTimeout,
			Stderr:      opts.Stderr,
			Observer:    opts.Observer,
		})
		res.Workers = pool.Size(len(pending), opts.Workers)
		if opts.BeforeRun != nil {
			opts.BeforeRun(res.Workers, len(pending))
		}
		stats, err := p.Dispatch(ctx, pending, completed)
		dispatchErr = err
		res.Completed = stats.Succeeded
		res.Warnings = stats.Warnings
		res.Failed = res.Attempted - res.Completed
	}

	if opts.UseCache {
		n, err := persist(completed.Snapshot(), len(done), opts)
		if err != nil {
			return res, errors.Join(dispatchErr, err)
		}
		res.CacheWrites = n
	}
	if dispatchErr != nil {
		return res, dispatchErr
	}
	slog.InfoContext(ctx, "dispatch finished",
		"attempted", res.Attempted,
		"completed", res.Completed,
		"failed", res.Failed,
		"already_done", res.AlreadyDone,
	)
	return res, nil
}

// persist writes the run's fingerprints and returns the number of records
// written. An append with nothing new leaves the store untouched.
func persist(fps []model.Fingerprint, seeded int, opts Options) (int, error) {
	if opts.CacheMode != cache.ModeRewrite && len(fps)-seeded == 0 {
		return 0, nil
	}
	if err := cache.Persist(fps, opts.CacheMode, opts.CachePath); err != nil {
		return 0, fmt.Errorf("persist cache: %w", err)
	}
	return len(fps), nil
}

func jobSource(opts Options) ([]string, error) {
	if len(opts.URLs) > 0 {
		urls := make([]string, 0, len(opts.URLs))
		for _, u := range opts.URLs {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		return urls, nil
	}
	if strings.TrimSpace(opts.ListPath) == "" {
		return nil, errors.New("no job source: pass URLs or a list file")
	}
	return ReadList(opts.ListPath)
}

func uniqueJobs(urls []string) []model.Job {
	jobs := make([]model.Job, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		jobs = append(jobs, model.NewJob(u))
	}
	return jobs
}
