package model

import (
	"encoding/hex"
	"strings"
	"time"
)

// FingerprintSize is the width of one cache record.
const FingerprintSize = 11

// Fingerprint is the trailing FingerprintSize bytes of a job URL. It is not a
// hash: URLs sharing the same suffix collide.
type Fingerprint [FingerprintSize]byte

// FingerprintOf derives the fingerprint of a URL. URLs shorter than
// FingerprintSize are left-padded with zero bytes.
func FingerprintOf(url string) Fingerprint {
	var fp Fingerprint
	u := strings.TrimSpace(url)
	if len(u) >= FingerprintSize {
		copy(fp[:], u[len(u)-FingerprintSize:])
		return fp
	}
	copy(fp[FingerprintSize-len(u):], u)
	return fp
}

func (f Fingerprint) String() string {
	for _, b := range f {
		if b < 0x20 || b > 0x7e {
			return hex.EncodeToString(f[:])
		}
	}
	return string(f[:])
}

type Job struct {
	URL         string
	Fingerprint Fingerprint
	Status      string
}

func NewJob(url string) Job {
	u := strings.TrimSpace(url)
	return Job{
		URL:         u,
		Fingerprint: FingerprintOf(u),
		Status:      StatusPending,
	}
}

type EventKind string

const (
	EventStarted   EventKind = "started"
	EventSucceeded EventKind = "succeeded"
	EventFailed    EventKind = "failed"
	EventWarning   EventKind = "warning"
	EventProgress  EventKind = "progress"
)

// Event reports a job state change from a pool worker.
type Event struct {
	Worker  int
	Kind    EventKind
	Job     Job
	Path    string
	Err     error
	Elapsed time.Duration

	// Set on EventProgress only.
	Percent float64
	Speed   string
	ETA     string
}
