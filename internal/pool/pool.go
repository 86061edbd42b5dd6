package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"parallel-ytdl/internal/log"
	"parallel-ytdl/internal/model"
	"parallel-ytdl/internal/naming"
	"parallel-ytdl/internal/queue"
	"parallel-ytdl/internal/ytdlp"
)

// Observer receives job events from every worker, possibly concurrently.
type Observer interface {
	Observe(model.Event)
}

type ObserverFunc func(model.Event)

func (f ObserverFunc) Observe(e model.Event) { f(e) }

type Options struct {
	Executable  string
	PresetFlags []string
	ExtraFlags  []string
	Formatter   naming.Formatter
	// Workers caps the pool size; zero uses runtime.NumCPU.
	Workers    int
	JobTimeout time.Duration
	// Stderr receives per-job diagnostics; defaults to os.Stderr.
	Stderr   io.Writer
	Observer Observer
}

type Stats struct {
	Workers   int
	Attempted int
	Succeeded int
	Failed    int
	Warnings  int
}

type Pool struct {
	opts Options

	diagMu sync.Mutex

	succeeded atomic.Int64
	failed    atomic.Int64
	warnings  atomic.Int64
}

func New(opts Options) *Pool {
	if opts.Formatter == nil {
		opts.Formatter = naming.NoOp{}
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Pool{opts: opts}
}

// Size returns min(jobs, limit), where a non-positive limit means the number
// of CPUs. It is zero only when there are no jobs.
func Size(jobs, limit int) int {
	if jobs <= 0 {
		return 0
	}
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	return max(1, min(jobs, limit))
}

// Dispatch runs every job through the downloader and returns once each one has
// either succeeded or failed. Fingerprints of succeeded jobs are appended to
// completed. A cancelled ctx stops the run early; completed keeps whatever
// finished before that.
func (p *Pool) Dispatch(ctx context.Context, jobs []model.Job, completed *Completed) (Stats, error) {
	size := Size(len(jobs), p.opts.Workers)
	if size == 0 {
		return Stats{}, nil
	}

	q := queue.New(size)
	g, gctx := errgroup.WithContext(ctx)
	for w := 1; w <= size; w++ {
		g.Go(func() error {
			return p.work(gctx, w, q, completed)
		})
	}

	slog.DebugContext(ctx, "pool started", "workers", size, "jobs", len(jobs))
	runErr := p.fill(ctx, q, jobs)
	if runErr == nil {
		runErr = q.Join(ctx)
	}
	if runErr != nil {
		slog.DebugContext(ctx, "pool interrupted", "unfinished", q.Unfinished(), "queued", q.Len())
	}
	q.Close()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	slog.DebugContext(ctx, "pool finished", "fingerprints", completed.Len())

	stats := Stats{
		Workers:   size,
		Attempted: int(p.succeeded.Load() + p.failed.Load()),
		Succeeded: int(p.succeeded.Load()),
		Failed:    int(p.failed.Load()),
		Warnings:  int(p.warnings.Load()),
	}
	if runErr != nil {
		return stats, fmt.Errorf("dispatch interrupted: %w", runErr)
	}
	return stats, nil
}

func (p *Pool) fill(ctx context.Context, q *queue.Queue, jobs []model.Job) error {
	for _, job := range jobs {
		if err := q.Put(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) work(ctx context.Context, workerID int, q *queue.Queue, completed *Completed) error {
	ctx = log.ContextAttrs(ctx, slog.Int("worker", workerID))
	for {
		job, ok := q.Get(ctx)
		if !ok {
			return nil
		}
		if ctx.Err() != nil {
			q.TaskDone()
			return nil
		}
		p.process(ctx, workerID, job, completed)
		q.TaskDone()
	}
}

func (p *Pool) process(ctx context.Context, workerID int, job model.Job, completed *Completed) {
	start := time.Now()
	if err := model.TransitionJobStatus(&job, model.StatusInFlight); err != nil {
		p.fail(ctx, workerID, job, start, "", err)
		return
	}
	p.emit(model.Event{Worker: workerID, Kind: model.EventStarted, Job: job})
	slog.DebugContext(ctx, "job started", "url", job.URL)

	inv := ytdlp.NewInvocation(p.opts.Executable, p.opts.PresetFlags, p.opts.ExtraFlags, p.opts.Formatter.RequiredFlags(), job.URL)
	res, err := ytdlp.Run(ctx, inv, ytdlp.RunOptions{
		Timeout:  p.opts.JobTimeout,
		Progress: p.outputHandler(ctx, workerID, job),
	})
	switch {
	case err != nil:
		p.fail(ctx, workerID, job, start, inv.String(), joinDiag(res.Stderr, err.Error()))
		return
	case res.Failed():
		diag := res.Stderr
		if diag == "" {
			diag = fmt.Sprintf("exit status %d", res.ExitCode)
		}
		p.fail(ctx, workerID, job, start, inv.String(), errors.New(diag))
		return
	}

	path := res.ArtifactPath()
	if strings.TrimSpace(path) == "" {
		p.fail(ctx, workerID, job, start, inv.String(), errors.New("downloader exited successfully but printed no artifact path"))
		return
	}

	if err := p.opts.Formatter.Apply(path); err != nil {
		if !naming.IsWarning(err) {
			p.fail(ctx, workerID, job, start, inv.String(), err)
			return
		}
		p.warnings.Add(1)
		p.diagnostic("warning: %s\n", err)
		p.emit(model.Event{Worker: workerID, Kind: model.EventWarning, Job: job, Path: path, Err: err})
	}

	_ = model.TransitionJobStatus(&job, model.StatusSucceeded)
	completed.Append(job.Fingerprint)
	p.succeeded.Add(1)
	elapsed := time.Since(start)
	slog.DebugContext(ctx, "job succeeded", "url", job.URL, "path", path, "elapsed", elapsed)
	p.emit(model.Event{Worker: workerID, Kind: model.EventSucceeded, Job: job, Path: path, Elapsed: elapsed})
}

func (p *Pool) fail(ctx context.Context, workerID int, job model.Job, start time.Time, cmdline string, cause error) {
	if job.Status == model.StatusInFlight {
		_ = model.TransitionJobStatus(&job, model.StatusFailed)
	}
	p.failed.Add(1)
	if cmdline == "" {
		cmdline = job.URL
	}
	p.diagnostic("Failed with: %s\n%s\n", cmdline, strings.TrimRight(cause.Error(), "\n"))
	elapsed := time.Since(start)
	slog.DebugContext(ctx, "job failed", "url", job.URL, "elapsed", elapsed)
	p.emit(model.Event{Worker: workerID, Kind: model.EventFailed, Job: job, Err: cause, Elapsed: elapsed})
}

// diagnostic writes one message to Stderr without interleaving across workers.
func (p *Pool) diagnostic(format string, args ...any) {
	p.diagMu.Lock()
	defer p.diagMu.Unlock()
	_, _ = fmt.Fprintf(p.opts.Stderr, format, args...)
}

func (p *Pool) emit(e model.Event) {
	if p.opts.Observer != nil {
		p.opts.Observer.Observe(e)
	}
}

// outputHandler forwards downloader output to the debug log and turns
// "[download]" lines from either stream into progress events, one per whole
// percent. The downloader only writes them when run with --progress.
func (p *Pool) outputHandler(ctx context.Context, workerID int, job model.Job) func(ytdlp.OutputStream, string) {
	debug := slog.Default().Enabled(ctx, slog.LevelDebug)
	if !debug && p.opts.Observer == nil {
		return nil
	}
	var last atomic.Int64
	last.Store(-1)
	return func(stream ytdlp.OutputStream, line string) {
		if debug {
			slog.DebugContext(ctx, "downloader output", "stream", string(stream), "line", line)
		}
		if p.opts.Observer == nil {
			return
		}
		prog, ok := ytdlp.ParseProgress(line)
		if !ok || last.Swap(int64(prog.Percent)) == int64(prog.Percent) {
			return
		}
		p.emit(model.Event{
			Worker:  workerID,
			Kind:    model.EventProgress,
			Job:     job,
			Percent: prog.Percent,
			Speed:   prog.Speed,
			ETA:     prog.ETA,
		})
	}
}

func joinDiag(stderr, msg string) error {
	stderr = strings.TrimRight(stderr, "\n")
	if stderr == "" {
		return errors.New(msg)
	}
	return errors.New(stderr + "\n" + msg)
}
