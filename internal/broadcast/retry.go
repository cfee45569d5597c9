package broadcast

import "time"

// RetryPolicy defines exponential backoff for dispatch retries. There is no
// attempt ceiling: dispatch retries until success or manual intervention.
type RetryPolicy struct {
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DispatchRetryPolicy yields min(2^n, 240) seconds.
var DispatchRetryPolicy = RetryPolicy{
	BaseDelay:     1 * time.Second,
	MaxDelay:      240 * time.Second,
	BackoffFactor: 2.0,
}

// CalculateNextRetry computes min(BaseDelay * BackoffFactor^attempt, MaxDelay).
func CalculateNextRetry(policy RetryPolicy, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(policy.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= policy.BackoffFactor
		if delay >= float64(policy.MaxDelay) {
			return policy.MaxDelay
		}
	}

	d := time.Duration(delay)
	if d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	return d
}
