package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

// PrintFilepathFlags makes the downloader print the final artifact path after
// any post-processing move.
var PrintFilepathFlags = []string{"--print", "after_move:filepath"}

type RunOptions struct {
	// Timeout kills the process after the given duration; zero means no limit.
	Timeout time.Duration
	// Progress receives every output line of both streams as it arrives.
	Progress func(stream OutputStream, line string)
}

type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Failed reports the downloader's failure contract: anything on stderr or a
// non-zero exit status.
func (r Result) Failed() bool {
	return len(r.Stderr) != 0 || r.ExitCode != 0
}

// ArtifactPath returns the first stdout line that is not downloader status
// output. With --progress the downloader writes "[download]" lines to stdout
// ahead of the printed path.
func (r Result) ArtifactPath() string {
	for _, line := range strings.FieldsFunc(r.Stdout, func(c rune) bool { return c == '\n' || c == '\r' }) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "[download]") {
			continue
		}
		return line
	}
	return ""
}

type DependencyReport struct {
	YTDLPFound     bool   `json:"yt_dlp_found"`
	YTDLPPath      string `json:"yt_dlp_path,omitempty"`
	YoutubeDLFound bool   `json:"youtube_dl_found"`
	YoutubeDLPath  string `json:"youtube_dl_path,omitempty"`
	FFmpegFound    bool   `json:"ffmpeg_found"`
	FFmpegPath     string `json:"ffmpeg_path,omitempty"`
}

func DependencyStatus() DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath("yt-dlp"); err == nil {
		report.YTDLPFound = true
		report.YTDLPPath = path
	}
	if path, err := exec.LookPath("youtube-dl"); err == nil {
		report.YoutubeDLFound = true
		report.YoutubeDLPath = path
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	return report
}

// FindExecutable resolves the downloader binary. An explicit name or path is
// looked up as given; otherwise yt-dlp is preferred over youtube-dl.
func FindExecutable(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name != "" {
		path, err := exec.LookPath(name)
		if err != nil {
			return "", fmt.Errorf("downloader %q was not found or is not executable", name)
		}
		return path, nil
	}
	for _, candidate := range []string{"yt-dlp", "youtube-dl"} {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", errors.New("cannot find downloader binary (install yt-dlp or youtube-dl, or pass --exec)")
}

// DownloadPreset returns the downloader flags for a named preset.
func DownloadPreset(name string) ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return nil, nil
	case "audio":
		return []string{"--format", "ba", "--audio-format", "mp3", "-x"}, nil
	default:
		return nil, fmt.Errorf("invalid download preset %q (expected audio)", strings.TrimSpace(name))
	}
}

// Invocation is the full command line for one job.
type Invocation struct {
	Executable string
	Args       []string
}

// NewInvocation concatenates the argument groups in the order the downloader
// expects them, ending with the job URL.
func NewInvocation(executable string, preset, extra, formatterFlags []string, url string) Invocation {
	args := make([]string, 0, len(preset)+len(extra)+len(formatterFlags)+len(PrintFilepathFlags)+1)
	args = append(args, preset...)
	args = append(args, extra...)
	args = append(args, formatterFlags...)
	args = append(args, PrintFilepathFlags...)
	args = append(args, url)
	return Invocation{Executable: executable, Args: args}
}

func (i Invocation) Command() []string {
	return append([]string{i.Executable}, i.Args...)
}

func (i Invocation) String() string {
	return strings.Join(i.Command(), " ")
}

// waitDelay bounds how long Wait keeps reading output after the process was
// killed or exited while a descendant still holds its stdout or stderr.
const waitDelay = 2 * time.Second

// Run executes the invocation and captures both streams completely. The error
// is non-nil only when the process could not be run to completion; downloader
// failures are reported through the Result. Cancelling ctx or hitting the
// timeout kills the downloader together with any process it started.
func Run(ctx context.Context, inv Invocation, opts RunOptions) (Result, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, inv.Executable, inv.Args...)
	killProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	stdout := newLineWriter(StreamStdout, opts.Progress)
	stderr := newLineWriter(StreamStderr, opts.Progress)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start %s: %w", inv.Executable, err)
	}
	waitErr := cmd.Wait()
	stdout.flush()
	stderr.flush()

	res := Result{
		Stdout: stdout.raw.String(),
		Stderr: stderr.raw.String(),
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) && opts.Timeout > 0 {
			return res, fmt.Errorf("%s timed out after %s", inv.Executable, opts.Timeout)
		}
		return res, fmt.Errorf("%s interrupted: %w", inv.Executable, ctxErr)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(waitErr, &exitErr):
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		case errors.Is(waitErr, exec.ErrWaitDelay):
			// exited cleanly but a descendant kept the output open
			return res, nil
		}
		return res, fmt.Errorf("wait %s: %w", inv.Executable, waitErr)
	}
	return res, nil
}

// lineWriter keeps the raw bytes of one stream and hands every complete line,
// split on \n or \r, to the progress callback. exec writes to it from a
// single goroutine per stream.
type lineWriter struct {
	stream   OutputStream
	progress func(OutputStream, string)
	raw      bytes.Buffer
	pending  []byte
}

func newLineWriter(stream OutputStream, progress func(OutputStream, string)) *lineWriter {
	return &lineWriter{stream: stream, progress: progress}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.raw.Write(p)
	if w.progress == nil {
		return len(p), nil
	}
	w.pending = append(w.pending, p...)
	for {
		adv, tok, _ := splitByNewlineOrCR(w.pending, false)
		if adv == 0 {
			break
		}
		if tok != nil {
			w.progress(w.stream, string(tok))
		}
		w.pending = w.pending[adv:]
	}
	if len(w.pending) > maxPendingLine {
		w.progress(w.stream, string(w.pending))
		w.pending = w.pending[:0]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if w.progress != nil && len(w.pending) > 0 {
		w.progress(w.stream, string(w.pending))
	}
	w.pending = nil
}

const maxPendingLine = 1024 * 1024

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
