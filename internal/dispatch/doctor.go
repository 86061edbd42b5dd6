package dispatch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"parallel-ytdl/internal/cache"
	"parallel-ytdl/internal/ytdlp"
)

type DoctorOptions struct {
	Executable string
	ListPath   string
	UseCache   bool
	CachePath  string
}

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	// Advisory checks are reported but do not fail the result.
	Advisory bool `json:"advisory,omitempty"`
}

// Doctor checks that a run with opts could start: the downloader resolves,
// the job list is readable and the cache location is writable and unlocked.
func Doctor(opts DoctorOptions) DoctorResult {
	checks := make([]DoctorCheck, 0, 6)

	dep := ytdlp.DependencyStatus()
	checks = append(checks, DoctorCheck{
		Name:     "dependency:yt-dlp",
		OK:       dep.YTDLPFound,
		Message:  dependencyMessage(dep.YTDLPFound, dep.YTDLPPath, "yt-dlp"),
		Advisory: true,
	})
	checks = append(checks, DoctorCheck{
		Name:     "dependency:youtube-dl",
		OK:       dep.YoutubeDLFound,
		Message:  dependencyMessage(dep.YoutubeDLFound, dep.YoutubeDLPath, "youtube-dl"),
		Advisory: true,
	})
	checks = append(checks, DoctorCheck{
		Name:     "dependency:ffmpeg",
		OK:       dep.FFmpegFound,
		Message:  dependencyMessage(dep.FFmpegFound, dep.FFmpegPath, "ffmpeg"),
		Advisory: true,
	})

	exe, err := ytdlp.FindExecutable(opts.Executable)
	if err != nil {
		checks = append(checks, DoctorCheck{Name: "downloader", Message: err.Error()})
	} else {
		checks = append(checks, DoctorCheck{Name: "downloader", OK: true, Message: "using " + exe})
	}

	checks = append(checks, listCheck(opts.ListPath))
	if opts.UseCache {
		checks = append(checks, cacheCheck(opts.CachePath))
	}

	ok := true
	for _, c := range checks {
		if !c.OK && !c.Advisory {
			ok = false
			break
		}
	}
	return DoctorResult{OK: ok, Checks: checks}
}

func listCheck(path string) DoctorCheck {
	c := DoctorCheck{Name: "list"}
	urls, err := ReadList(path)
	if err != nil {
		c.Message = err.Error()
		return c
	}
	c.OK = true
	if len(urls) == 0 {
		c.Message = path + " has no URLs"
		return c
	}
	c.Message = fmt.Sprintf("%s has %d URLs", path, len(urls))
	return c
}

func cacheCheck(path string) DoctorCheck {
	c := DoctorCheck{Name: "cache"}
	if strings.TrimSpace(path) == "" {
		c.Message = "empty cache path"
		return c
	}
	if ok, msg := ensureWritableDir(filepath.Dir(path)); !ok {
		c.Message = msg
		return c
	}
	if _, err := os.Stat(cache.LockPath(path)); err == nil {
		c.Message = "locked by another run (" + cache.LockPath(path) + ")"
		return c
	} else if !errors.Is(err, os.ErrNotExist) {
		c.Message = err.Error()
		return c
	}
	st, err := cache.ReadStats(path)
	if err != nil {
		c.Message = err.Error()
		return c
	}
	c.OK = true
	switch {
	case !st.Exists:
		c.Message = path + " will be created"
	case st.PartialBytes > 0:
		c.Message = fmt.Sprintf("%s has %d records and a %d byte partial tail", path, st.Records, st.PartialBytes)
	default:
		c.Message = fmt.Sprintf("%s has %d records", path, st.Records)
	}
	return c
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		path = "."
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "parallel-ytdl-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
