// Package naming renames downloaded artifacts from metadata the downloader
// was asked to embed in the output file name.
package naming

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Formatter post-processes one successfully downloaded artifact. Implementations
// are shared by all workers and must be safe for concurrent use.
type Formatter interface {
	// RequiredFlags are extra downloader flags the formatter depends on.
	RequiredFlags() []string
	// Apply receives the artifact path printed by the downloader. A
	// *CollisionWarning is a non-fatal outcome.
	Apply(path string) error
}

const (
	PresetNone        = "none"
	PresetAuthorTitle = "author-title"
)

func Select(preset string) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(preset)) {
	case "", PresetNone:
		return NoOp{}, nil
	case PresetAuthorTitle:
		return NewAuthorTitle(), nil
	default:
		return nil, fmt.Errorf("invalid output preset %q (expected %s)", strings.TrimSpace(preset), PresetAuthorTitle)
	}
}

type NoOp struct{}

func (NoOp) RequiredFlags() []string { return nil }

func (NoOp) Apply(string) error { return nil }

// CollisionWarning reports that the renamed target already existed; the new
// download was removed instead of overwriting it.
type CollisionWarning struct {
	Source string
	Target string
}

func (w *CollisionWarning) Error() string {
	return fmt.Sprintf("'%s' file exists", w.Target)
}

func IsWarning(err error) bool {
	var w *CollisionWarning
	return errors.As(err, &w)
}

const (
	authorTitleDelim = "&#&#&"
	topicSuffix      = " - Topic"
	titleTrimSet     = " -"
)

// AuthorTitle names files "{author} - {title}{ext}".
type AuthorTitle struct {
	delim string
	flags []string
}

func NewAuthorTitle() AuthorTitle {
	return AuthorTitle{
		delim: authorTitleDelim,
		flags: []string{"-o", "%(channel)s" + authorTitleDelim + "%(title)s.%(ext)s"},
	}
}

func (f AuthorTitle) RequiredFlags() []string {
	return append([]string(nil), f.flags...)
}

func (f AuthorTitle) Apply(path string) error {
	if path == "" {
		panic("naming: empty artifact path")
	}
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	author, title, ok := strings.Cut(stem, f.delim)
	if !ok {
		return fmt.Errorf("file name %q has no author/title delimiter", base)
	}

	target := filepath.Join(dir, Compose(author, title)+ext)
	if target == path {
		return nil
	}
	return moveNoReplace(path, target)
}

// moveNoReplace moves path to target unless target already exists, in which
// case path is dropped and a *CollisionWarning returned. The hard link fails
// atomically when target exists, so concurrent workers never overwrite each
// other's artifacts.
func moveNoReplace(path, target string) error {
	err := os.Link(path, target)
	switch {
	case err == nil:
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		return nil
	case errors.Is(err, os.ErrExist):
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove duplicate %s: %w", path, err)
		}
		return &CollisionWarning{Source: path, Target: target}
	}

	// filesystem without hard links
	if _, err := os.Lstat(target); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove duplicate %s: %w", path, err)
		}
		return &CollisionWarning{Source: path, Target: target}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", target, err)
	}
	if err := os.Rename(path, target); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Compose builds "{author} - {title}" after dropping the channel topic
// suffix and a repeated author at either end of the title.
func Compose(author, title string) string {
	author = strings.TrimSuffix(author, topicSuffix)
	if strings.HasSuffix(title, author) {
		title = strings.TrimRight(strings.TrimSuffix(title, author), titleTrimSet)
	} else if strings.HasPrefix(title, author) {
		title = strings.TrimLeft(strings.TrimPrefix(title, author), titleTrimSet)
	}
	return author + " - " + title
}
