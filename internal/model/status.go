package model

import "fmt"

const (
	StatusPending   = "pending"
	StatusInFlight  = "in_flight"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

var allowedTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusInFlight: true,
	},
	StatusInFlight: {
		StatusSucceeded: true,
		StatusFailed:    true,
	},
	// no retry within a run
	StatusSucceeded: {},
	StatusFailed:    {},
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func TransitionJobStatus(job *Job, toStatus string) error {
	from := job.Status
	if !CanTransition(from, toStatus) {
		return fmt.Errorf("invalid job status transition: %q -> %q (url=%s)", from, toStatus, job.URL)
	}
	job.Status = toStatus
	return nil
}
