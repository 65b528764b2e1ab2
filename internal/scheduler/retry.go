package scheduler

import "time"

// backoffCap is the ceiling for the implementation-defined escalation used
// when a task's retry_interval is zero (spec.md §4.F, resolved in
// SPEC_FULL.md §4.F). 60s generalizes the teacher's task_runner.go curve
// (1<<attempt capped at 30s) to the spec's larger ceiling.
const backoffCap = 60 * time.Second

// backoff returns the delay before a task's next attempt, given the
// attempt number n (the retry_count after the failed attempt) and the
// task's configured retry_interval base. It is pure and deterministic:
// tests must not depend on its exact value when base is zero, only on its
// monotonicity (spec.md §9).
func backoff(n int, base time.Duration) time.Duration {
	if base > 0 {
		return base
	}
	if n < 1 {
		n = 1
	}
	d := time.Duration(1) << uint(n-1) * time.Second
	if d > backoffCap {
		return backoffCap
	}
	return d
}

// decision is what the retry policy concludes after a failed attempt.
type decision struct {
	permanent bool
	delay     time.Duration
}

// decide implements spec.md §4.F: retryCount is the post-increment count
// from claim; once it exceeds maxRetries the task is permanently failed,
// otherwise it goes back to pending after backoff.
func decide(retryCount, maxRetries int, retryInterval time.Duration) decision {
	if retryCount > maxRetries {
		return decision{permanent: true}
	}
	return decision{permanent: false, delay: backoff(retryCount, retryInterval)}
}
