package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"parallel-ytdl/internal/cache"
	"parallel-ytdl/internal/model"
)

// installFakeDownloader puts a yt-dlp script on PATH that records each URL it
// is given and fails for URLs containing "fail".
func installFakeDownloader(t *testing.T) (callsLog string) {
	t.Helper()
	tmp := t.TempDir()
	fakeBin := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(fakeBin, 0o755); err != nil {
		t.Fatal(err)
	}
	callsLog = filepath.Join(tmp, "calls.log")
	outDir := filepath.Join(tmp, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}

	ytScript := fmt.Sprintf(`#!/usr/bin/env bash
set -euo pipefail
url="${@: -1}"
echo "$url" >> %q
case "$url" in
  *fail*) echo "ERROR: unable to download $url" >&2; exit 1 ;;
esac
echo "%s/${url: -11}.webm"
`, callsLog, outDir)
	if err := os.WriteFile(filepath.Join(fakeBin, "yt-dlp"), []byte(ytScript), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", fakeBin+":"+os.Getenv("PATH"))
	return callsLog
}

func calls(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	return strings.Fields(string(data))
}

func writeList(t *testing.T, urls ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(urls, "\n")+"\n"), 0o644))
	return path
}

var sampleURLs = []string{
	"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	"https://www.youtube.com/watch?v=9bZkp7q19f0",
	"https://www.youtube.com/watch?v=kJQP7kiw5Fk",
	"https://www.youtube.com/watch?v=JGwWNGJdvx8",
}

func TestHarnessRunTwiceIsIdempotent(t *testing.T) {
	for _, mode := range []cache.Mode{cache.ModeAppend, cache.ModeRewrite} {
		t.Run(string(mode), func(t *testing.T) {
			callsLog := installFakeDownloader(t)
			cachePath := filepath.Join(t.TempDir(), "done.cache")
			opts := Options{
				ListPath:  writeList(t, sampleURLs...),
				UseCache:  true,
				CachePath: cachePath,
				CacheMode: mode,
				Workers:   2,
				Stderr:    &bytes.Buffer{},
			}

			first, err := Run(t.Context(), opts)
			require.NoError(t, err)
			require.Equal(t, 4, first.Attempted)
			require.Equal(t, 4, first.Completed)
			require.Equal(t, "completed successfully", first.Summary())
			require.Len(t, calls(t, callsLog), 4)

			second, err := Run(t.Context(), opts)
			require.NoError(t, err)
			require.True(t, second.UpToDate)
			require.Equal(t, 4, second.AlreadyDone)
			require.Equal(t, "up to date", second.Summary())
			require.Len(t, calls(t, callsLog), 4, "second run must not invoke the downloader")

			raw, err := os.ReadFile(cachePath)
			require.NoError(t, err)
			require.Len(t, raw, 4*model.FingerprintSize)
		})
	}
}

func TestHarnessFailuresAreNotCached(t *testing.T) {
	callsLog := installFakeDownloader(t)
	cachePath := filepath.Join(t.TempDir(), "done.cache")
	urls := append([]string{"https://youtu.be/fail0000001", "https://youtu.be/fail0000002"}, sampleURLs...)

	var stderr bytes.Buffer
	opts := Options{
		URLs:      urls,
		UseCache:  true,
		CachePath: cachePath,
		Stderr:    &stderr,
	}
	res, err := Run(t.Context(), opts)
	require.NoError(t, err)
	require.Equal(t, 6, res.Attempted)
	require.Equal(t, 4, res.Completed)
	require.Equal(t, 2, res.Failed)
	require.Equal(t, "2 of 6 failed", res.Summary())
	require.Equal(t, 2, strings.Count(stderr.String(), "Failed with: "))

	set, err := cache.Load(cachePath)
	require.NoError(t, err)
	require.Len(t, set, 4)

	res, err = Run(t.Context(), opts)
	require.NoError(t, err)
	require.Equal(t, 2, res.Attempted)
	require.Equal(t, 4, res.AlreadyDone)
	require.Len(t, calls(t, callsLog), 8)
}

func TestHarnessRewriteKeepsPreviouslyDone(t *testing.T) {
	installFakeDownloader(t)
	cachePath := filepath.Join(t.TempDir(), "done.cache")
	opts := Options{
		URLs:      sampleURLs[:2],
		UseCache:  true,
		CachePath: cachePath,
		CacheMode: cache.ModeRewrite,
		Stderr:    &bytes.Buffer{},
	}
	_, err := Run(t.Context(), opts)
	require.NoError(t, err)

	opts.URLs = sampleURLs
	res, err := Run(t.Context(), opts)
	require.NoError(t, err)
	require.Equal(t, 2, res.AlreadyDone)
	require.Equal(t, 2, res.Completed)
	require.Equal(t, 4, res.CacheWrites)

	set, err := cache.Load(cachePath)
	require.NoError(t, err)
	require.Len(t, set, 4)
}

func TestHarnessWithoutCacheRunsEverything(t *testing.T) {
	callsLog := installFakeDownloader(t)
	opts := Options{URLs: sampleURLs[:2], Stderr: &bytes.Buffer{}}

	for range 2 {
		res, err := Run(t.Context(), opts)
		require.NoError(t, err)
		require.Equal(t, 2, res.Completed)
	}
	require.Len(t, calls(t, callsLog), 4)
}

func TestHarnessExplicitURLsOverrideList(t *testing.T) {
	callsLog := installFakeDownloader(t)
	res, err := Run(t.Context(), Options{
		URLs:     sampleURLs[:1],
		ListPath: writeList(t, sampleURLs...),
		Stderr:   &bytes.Buffer{},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	require.Equal(t, []string{sampleURLs[0]}, calls(t, callsLog))
}

func TestRunMissingListIsFatal(t *testing.T) {
	installFakeDownloader(t)
	_, err := Run(t.Context(), Options{ListPath: filepath.Join(t.TempDir(), "missing.txt")})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunEmptyListIsUpToDate(t *testing.T) {
	installFakeDownloader(t)
	path := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	res, err := Run(t.Context(), Options{ListPath: path})
	require.NoError(t, err)
	require.True(t, res.ListEmpty)
	require.True(t, res.UpToDate)
}

func TestRunMissingExecutableIsFatal(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := Run(t.Context(), Options{URLs: sampleURLs})
	require.ErrorContains(t, err, "cannot find downloader binary")

	_, err = Run(t.Context(), Options{Executable: "nope-dl", URLs: sampleURLs})
	require.ErrorContains(t, err, "nope-dl")
}

func TestRunRejectsLockedCache(t *testing.T) {
	installFakeDownloader(t)
	cachePath := filepath.Join(t.TempDir(), "done.cache")
	lock, err := cache.AcquireLock(cachePath, "other")
	require.NoError(t, err)
	defer func() {
		_ = lock.Release()
	}()

	_, err = Run(t.Context(), Options{URLs: sampleURLs, UseCache: true, CachePath: cachePath})
	require.ErrorContains(t, err, "locked")
}

func TestRunCancelledStillPersistsCompleted(t *testing.T) {
	tmp := t.TempDir()
	exe := filepath.Join(tmp, "yt-dlp")
	script := `#!/usr/bin/env bash
url="${@: -1}"
case "$url" in
  *slow*) exec sleep 5 ;;
esac
echo "/tmp/${url: -11}.mp4"
`
	require.NoError(t, os.WriteFile(exe, []byte(script), 0o755))
	cachePath := filepath.Join(tmp, "done.cache")

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	res, err := Run(ctx, Options{
		Executable: exe,
		URLs:       []string{sampleURLs[0], "https://youtu.be/slow0000001"},
		UseCache:   true,
		CachePath:  cachePath,
		Workers:    1,
		Stderr:     &bytes.Buffer{},
		Observer: observerFunc(func(e model.Event) {
			if e.Kind == model.EventStarted && strings.Contains(e.Job.URL, "slow") {
				cancel()
			}
		}),
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, res.Completed)

	set, err := cache.Load(cachePath)
	require.NoError(t, err)
	require.True(t, set.Has(model.FingerprintOf(sampleURLs[0])))
	require.Len(t, set, 1)
}

type observerFunc func(model.Event)

func (f observerFunc) Observe(e model.Event) { f(e) }

func TestReadList(t *testing.T) {
	path := writeList(t, " https://a.example/aaaaaaaaaaa ", "", "https://b.example/bbbbbbbbbbb\r")
	urls, err := ReadList(path)
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example/aaaaaaaaaaa", "https://b.example/bbbbbbbbbbb"}, urls)
}
