package naming

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	cases := []struct {
		author string
		title  string
		want   string
	}{
		{"1Test2", "VideoTitle", "1Test2 - VideoTitle"},
		{"AUTHOR", "AUTHOR - TITLE", "AUTHOR - TITLE"},
		{"au", "t - au", "au - t"},
		{"author - Topic", "vidtitle", "author - vidtitle"},
		{"author", "title   ", "author - title   "},
		{"2", "   1", "2 -    1"},
	}
	for _, tc := range cases {
		if got := Compose(tc.author, tc.title); got != tc.want {
			t.Fatalf("Compose(%q, %q) = %q, want %q", tc.author, tc.title, got, tc.want)
		}
	}
}

func TestSelect(t *testing.T) {
	f, err := Select("")
	require.NoError(t, err)
	require.IsType(t, NoOp{}, f)
	require.Empty(t, f.RequiredFlags())
	require.NoError(t, f.Apply("anything"))

	f, err = Select("author-title")
	require.NoError(t, err)
	require.IsType(t, AuthorTitle{}, f)
	require.Equal(t, []string{"-o", "%(channel)s&#&#&%(title)s.%(ext)s"}, f.RequiredFlags())

	_, err = Select("title-author")
	require.Error(t, err)
}

func TestAuthorTitleApply_Renames(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Artist - Topic&#&#&Song - Artist.mp3")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))

	require.NoError(t, NewAuthorTitle().Apply(src))

	_, err := os.Stat(src)
	require.True(t, errors.Is(err, os.ErrNotExist))
	data, err := os.ReadFile(filepath.Join(dir, "Artist - Song.mp3"))
	require.NoError(t, err)
	require.Equal(t, "new", string(data))
}

func TestAuthorTitleApply_CollisionKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "Artist - Song.mp3")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))
	src := filepath.Join(dir, "Artist&#&#&Song.mp3")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))

	err := NewAuthorTitle().Apply(src)
	require.Error(t, err)
	require.True(t, IsWarning(err))

	var w *CollisionWarning
	require.ErrorAs(t, err, &w)
	require.Equal(t, existing, w.Target)
	require.Contains(t, err.Error(), "Artist - Song.mp3")

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	require.Equal(t, "old", string(data))
	_, err = os.Stat(src)
	require.True(t, errors.Is(err, os.ErrNotExist))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestAuthorTitleApply_ConcurrentSameTargetKeepsOne(t *testing.T) {
	f := NewAuthorTitle()
	for i := range 20 {
		dir := t.TempDir()
		sources := []string{
			filepath.Join(dir, "Chan&#&#&Title.mp4"),
			filepath.Join(dir, "Chan - Topic&#&#&Title.mp4"),
		}
		for _, src := range sources {
			require.NoError(t, os.WriteFile(src, []byte(filepath.Base(src)), 0o644))
		}

		errs := make([]error, len(sources))
		var wg sync.WaitGroup
		for n, src := range sources {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[n] = f.Apply(src)
			}()
		}
		wg.Wait()

		warnings := 0
		for _, err := range errs {
			if err != nil {
				require.True(t, IsWarning(err), "round %d: %v", i, err)
				warnings++
			}
		}
		require.Equal(t, 1, warnings, "round %d", i)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1, "round %d", i)
		require.Equal(t, "Chan - Title.mp4", entries[0].Name())
	}
}

func TestAuthorTitleApply_MissingDelimiter(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain name.webm")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	err := NewAuthorTitle().Apply(src)
	require.Error(t, err)
	require.False(t, IsWarning(err))
	_, statErr := os.Stat(src)
	require.NoError(t, statErr)
}

func TestAuthorTitleApply_EmptyPathPanics(t *testing.T) {
	require.Panics(t, func() {
		_ = NewAuthorTitle().Apply("")
	})
}
