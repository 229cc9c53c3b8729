package fetcher

import "time"

// WithInitialInterval overrides the first backoff delay so tests do not wait.
func WithInitialInterval(d time.Duration) Options {
	return func(o *options) {
		o.initialInterval = d
	}
}
