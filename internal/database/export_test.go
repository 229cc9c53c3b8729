package database

import "context"

// DBPool exposes the pool interface so tests can inject mocks.
type DBPool = dbPool

// WithNewPool overrides the connection pool constructor.
func WithNewPool(newPool func(ctx context.Context, dsn string) (DBPool, error)) Options {
	return func(o *options) {
		o.newPool = newPool
	}
}
