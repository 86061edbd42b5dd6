package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"parallel-ytdl/internal/model"
)

type Mode string

const (
	ModeAppend  Mode = "append"
	ModeRewrite Mode = "rewrite"
)

func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(ModeAppend):
		return ModeAppend, nil
	case string(ModeRewrite), "truncate":
		return ModeRewrite, nil
	default:
		return "", fmt.Errorf("invalid cache mode %q (expected append or rewrite)", strings.TrimSpace(raw))
	}
}

// Set holds the fingerprints loaded from a cache store.
type Set map[model.Fingerprint]struct{}

func (s Set) Has(fp model.Fingerprint) bool {
	_, ok := s[fp]
	return ok
}

// Load reads every full record of the store at path. A trailing partial record
// is ignored. A missing store yields an empty set.
func Load(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	return readRecords(f, path)
}

func readRecords(r io.Reader, path string) (Set, error) {
	set := Set{}
	var fp model.Fingerprint
	for {
		_, err := io.ReadFull(r, fp[:])
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return set, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read cache %s: %w", path, err)
		}
		set[fp] = struct{}{}
	}
}

// Diff splits urls into jobs still to download and fingerprints already in the
// store. Already-cached URLs are reported in done only in rewrite mode, so a
// full rewrite keeps them; in append mode they need no further write.
func Diff(urls []string, path string, mode Mode) ([]model.Job, []model.Fingerprint, error) {
	set, err := Load(path)
	if err != nil {
		return nil, nil, err
	}

	pending := make([]model.Job, 0, len(urls))
	done := make([]model.Fingerprint, 0)
	seen := make(map[model.Fingerprint]bool, len(urls))
	for _, raw := range urls {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		job := model.NewJob(raw)
		if seen[job.Fingerprint] {
			continue
		}
		seen[job.Fingerprint] = true

		if set.Has(job.Fingerprint) {
			if mode == ModeRewrite {
				done = append(done, job.Fingerprint)
			}
			continue
		}
		pending = append(pending, job)
	}
	return pending, done, nil
}

// Persist writes completed to the store. Rewrite replaces the store; append
// first drops any partial trailing record left by an interrupted write.
func Persist(completed []model.Fingerprint, mode Mode, path string) error {
	switch mode {
	case ModeRewrite:
		return writeBytes(path, encode(completed))
	case ModeAppend, "":
		return appendRecords(path, encode(completed))
	default:
		return fmt.Errorf("invalid cache mode %q", mode)
	}
}

func appendRecords(path string, data []byte) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open cache %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat cache %s: %w", path, err)
	}
	aligned := info.Size() - info.Size()%model.FingerprintSize
	if aligned != info.Size() {
		if err := f.Truncate(aligned); err != nil {
			return fmt.Errorf("truncate partial record in %s: %w", path, err)
		}
	}
	if _, err := f.Seek(aligned, io.SeekStart); err != nil {
		return fmt.Errorf("seek cache %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append cache %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close cache %s: %w", path, err)
	}
	return nil
}

// Forget rewrites the store without the fingerprints of urls and reports how
// many records were removed.
func Forget(urls []string, path string) (int, error) {
	set, err := Load(path)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, u := range urls {
		fp := model.FingerprintOf(u)
		if set.Has(fp) {
			delete(set, fp)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	kept := make([]model.Fingerprint, 0, len(set))
	for fp := range set {
		kept = append(kept, fp)
	}
	if err := Persist(kept, ModeRewrite, path); err != nil {
		return 0, err
	}
	return removed, nil
}

type Stats struct {
	Path         string `json:"path"`
	Exists       bool   `json:"exists"`
	Bytes        int64  `json:"bytes"`
	Records      int64  `json:"records"`
	Unique       int    `json:"unique"`
	PartialBytes int64  `json:"partial_bytes"`
}

func ReadStats(path string) (Stats, error) {
	st := Stats{Path: path}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, nil
		}
		return Stats{}, fmt.Errorf("stat cache %s: %w", path, err)
	}
	set, err := Load(path)
	if err != nil {
		return Stats{}, err
	}
	st.Exists = true
	st.Bytes = info.Size()
	st.Records = info.Size() / model.FingerprintSize
	st.PartialBytes = info.Size() % model.FingerprintSize
	st.Unique = len(set)
	return st, nil
}

func encode(fps []model.Fingerprint) []byte {
	var buf bytes.Buffer
	buf.Grow(len(fps) * model.FingerprintSize)
	for _, fp := range fps {
		buf.Write(fp[:])
	}
	return buf.Bytes()
}
