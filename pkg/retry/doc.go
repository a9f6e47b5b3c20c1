// Package retry provides bounded retry with pluggable backoff for transient
// failures during downloads and remote API calls.
//
// The download pipeline uses a fixed-delay strategy (three attempts, two
// seconds apart); callers that want growing delays can plug in
// ExponentialBackoff instead.
//
// Basic usage:
//
//	cfg := &retry.Config{
//	    MaxAttempts: 3,
//	    Backoff:     &retry.ConstantBackoff{Delay: 2 * time.Second},
//	    RetryIf:     retry.DefaultRetryIf,
//	}
//	err := retry.Do(func() error { return fetch(url) }, cfg)
package retry
