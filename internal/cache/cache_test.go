package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"parallel-ytdl/internal/model"
)

var testURLs = []string{
	"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	"https://www.youtube.com/watch?v=9bZkp7q19f0",
	"https://www.youtube.com/watch?v=kJQP7kiw5Fk",
}

func fingerprints(urls []string) []model.Fingerprint {
	out := make([]model.Fingerprint, 0, len(urls))
	for _, u := range urls {
		out = append(out, model.FingerprintOf(u))
	}
	return out
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeAppend, m)

	m, err = ParseMode(" Rewrite ")
	require.NoError(t, err)
	require.Equal(t, ModeRewrite, m)

	_, err = ParseMode("sometimes")
	require.Error(t, err)
}

func TestDiff_MissingStoreMakesEverythingPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.cache")

	pending, done, err := Diff(testURLs, path, ModeRewrite)
	require.NoError(t, err)
	require.Len(t, pending, len(testURLs))
	require.Empty(t, done)
	for i, job := range pending {
		require.Equal(t, testURLs[i], job.URL)
		require.Equal(t, model.StatusPending, job.Status)
	}
}

func TestPersistThenDiff_RoundTrip(t *testing.T) {
	for _, mode := range []Mode{ModeAppend, ModeRewrite} {
		t.Run(string(mode), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "done.cache")
			require.NoError(t, Persist(fingerprints(testURLs), mode, path))

			pending, done, err := Diff(testURLs, path, mode)
			require.NoError(t, err)
			require.Empty(t, pending)
			if mode == ModeRewrite {
				require.ElementsMatch(t, fingerprints(testURLs), done)
			} else {
				require.Empty(t, done)
			}
		})
	}
}

func TestDiff_SplitsCachedFromNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.cache")
	require.NoError(t, Persist(fingerprints(testURLs[:1]), ModeAppend, path))

	pending, done, err := Diff(testURLs, path, ModeRewrite)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, fingerprints(testURLs[:1]), done)
}

func TestDiff_SkipsBlankAndDuplicateURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.cache")
	urls := []string{testURLs[0], "", "   ", testURLs[0] + "\n", testURLs[1]}

	pending, _, err := Diff(urls, path, ModeAppend)
	require.NoError(t, err)
	require.Len(t, pending, 2)
}

func TestLoad_IgnoresTrailingPartialRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.cache")
	data := append(encode(fingerprints(testURLs[:2])), []byte("dQw4")...)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	set, err := Load(path)
	require.NoError(t, err)
	require.Len(t, set, 2)
}

func TestPersistAppend_HealsPartialTrailingRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.cache")
	data := append(encode(fingerprints(testURLs[:1])), []byte("partial")...)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	require.NoError(t, Persist(fingerprints(testURLs[1:]), ModeAppend, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, raw, len(testURLs)*model.FingerprintSize)
	require.Equal(t, encode(fingerprints(testURLs)), raw)
}

func TestPersistAppend_CreatesMissingStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "done.cache")
	require.NoError(t, Persist(fingerprints(testURLs[:1]), ModeAppend, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "dQw4w9WgXcQ", string(raw))
}

func TestPersistRewrite_ReplacesStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.cache")
	require.NoError(t, Persist(fingerprints(testURLs), ModeAppend, path))
	require.NoError(t, Persist(fingerprints(testURLs[2:]), ModeRewrite, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, encode(fingerprints(testURLs[2:])), raw)
}

func TestForget_RemovesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.cache")
	require.NoError(t, Persist(fingerprints(testURLs), ModeAppend, path))

	removed, err := Forget([]string{testURLs[1], "https://youtu.be/notcachedxx"}, path)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	set, err := Load(path)
	require.NoError(t, err)
	require.Len(t, set, 2)
	require.False(t, set.Has(model.FingerprintOf(testURLs[1])))
}

func TestReadStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.cache")
	st, err := ReadStats(path)
	require.NoError(t, err)
	require.False(t, st.Exists)

	data := append(encode(fingerprints(append(testURLs, testURLs[0]))), 'x', 'y')
	require.NoError(t, os.WriteFile(path, data, 0o644))

	st, err = ReadStats(path)
	require.NoError(t, err)
	require.True(t, st.Exists)
	require.EqualValues(t, 4, st.Records)
	require.Equal(t, 3, st.Unique)
	require.EqualValues(t, 2, st.PartialBytes)
}
