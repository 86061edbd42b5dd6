package dashboard

import (
	"context"
	"log/slog"

	"parallel-ytdl/internal/model"
)

// LogObserver reports job events as structured log records. It is the
// non-interactive counterpart of Dashboard.
type LogObserver struct {
	ctx    context.Context
	logger *slog.Logger
}

func NewLogObserver(ctx context.Context, logger *slog.Logger) LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return LogObserver{ctx: ctx, logger: logger}
}

func (o LogObserver) Observe(e model.Event) {
	attrs := []any{"worker", e.Worker, "url", e.Job.URL}
	switch e.Kind {
	case model.EventStarted:
		o.logger.DebugContext(o.ctx, "job started", attrs...)
	case model.EventProgress:
	case model.EventSucceeded:
		o.logger.InfoContext(o.ctx, "job succeeded", append(attrs, "path", e.Path, "elapsed", e.Elapsed)...)
	case model.EventFailed:
		o.logger.WarnContext(o.ctx, "job failed", append(attrs, "elapsed", e.Elapsed)...)
	case model.EventWarning:
		o.logger.WarnContext(o.ctx, "job warning", append(attrs, "path", e.Path, "error", e.Err)...)
	}
}
