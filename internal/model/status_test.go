package model

import "testing"

func TestCanTransition_AllowsExpectedPaths(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{StatusPending, StatusInFlight},
		{StatusInFlight, StatusSucceeded},
		{StatusInFlight, StatusFailed},
	}

	for _, tc := range cases {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransition_RejectsInvalidPaths(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{StatusPending, StatusSucceeded},
		{StatusFailed, StatusInFlight},
		{StatusSucceeded, StatusInFlight},
		{StatusFailed, StatusPending},
		{"not_a_state", StatusPending},
	}

	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be rejected", tc.from, tc.to)
		}
	}
}

func TestTransitionJobStatus_BlocksIllegalTransition(t *testing.T) {
	job := NewJob("https://www.youtube.com/watch?v=dQw4w9WgXcQ")

	if err := TransitionJobStatus(&job, StatusSucceeded); err == nil {
		t.Fatalf("expected illegal transition error")
	}
	if err := TransitionJobStatus(&job, StatusInFlight); err != nil {
		t.Fatalf("pending -> in_flight: %v", err)
	}
	if err := TransitionJobStatus(&job, StatusFailed); err != nil {
		t.Fatalf("in_flight -> failed: %v", err)
	}
	if job.Status != StatusFailed {
		t.Fatalf("expected failed status, got %q", job.Status)
	}
	if CanTransition(job.Status, StatusInFlight) {
		t.Fatalf("failed jobs must not be retried")
	}
}
