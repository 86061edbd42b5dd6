package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const lockOwnerFile = "owner.json"

// Lock guards a cache store against concurrent dispatcher runs.
type Lock struct {
	lockDir string
}

type lockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
	RunID     string `json:"run_id,omitempty"`
}

func LockPath(cachePath string) string {
	return cachePath + ".lock"
}

func AcquireLock(cachePath, runID string) (Lock, error) {
	target := strings.TrimSpace(cachePath)
	if target == "" {
		return Lock{}, fmt.Errorf("cache path is required")
	}
	if err := ensureParent(target); err != nil {
		return Lock{}, err
	}

	lockDir := LockPath(target)
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if os.IsExist(err) {
			var owner lockOwner
			if readErr := readJSON(filepath.Join(lockDir, lockOwnerFile), &owner); readErr == nil && owner.PID > 0 && owner.CreatedAt != "" {
				return Lock{}, fmt.Errorf(
					"cache is locked: %s (pid=%d created_at=%s host=%s run_id=%s)",
					target, owner.PID, owner.CreatedAt, owner.Hostname, owner.RunID,
				)
			}
			return Lock{}, fmt.Errorf("cache is locked: %s", target)
		}
		return Lock{}, fmt.Errorf("acquire cache lock for %s: %w", target, err)
	}

	owner := lockOwner{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
		RunID:     runID,
	}
	if err := writeJSON(filepath.Join(lockDir, lockOwnerFile), owner); err != nil {
		_ = os.RemoveAll(lockDir)
		return Lock{}, fmt.Errorf("write cache lock owner for %s: %w", target, err)
	}

	return Lock{lockDir: lockDir}, nil
}

func (l Lock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, lockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release cache lock %s: %w", l.lockDir, err)
	}
	return nil
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
