package pool

import (
	"sync"

	"parallel-ytdl/internal/model"
)

// Completed is the append-only list of fingerprints finished in this run.
// Workers append concurrently; the dispatcher reads it once the pool is done.
type Completed struct {
	mu  sync.Mutex
	fps []model.Fingerprint
}

func NewCompleted(seed []model.Fingerprint) *Completed {
	fps := make([]model.Fingerprint, 0, len(seed))
	fps = append(fps, seed...)
	return &Completed{fps: fps}
}

func (c *Completed) Append(fp model.Fingerprint) {
	c.mu.Lock()
	c.fps = append(c.fps, fp)
	c.mu.Unlock()
}

func (c *Completed) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fps)
}

// Snapshot returns a copy of the fingerprints appended so far.
func (c *Completed) Snapshot() []model.Fingerprint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Fingerprint(nil), c.fps...)
}
