package pipeline

import "time"

// WithNow overrides the clock used for run and fetch timestamps.
func WithNow(now func() time.Time) Options {
	return func(o *options) {
		o.now = now
	}
}

// Enrich exposes the enrich stage for purity tests.
var Enrich = enrich
