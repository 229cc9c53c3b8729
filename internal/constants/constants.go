// Package constants is responsible for defining the constants used in the application.
package constants

import (
	"log/slog"
	"time"
)

var (
	// Version is the version of the application.
	Version = "Dev"
)

const (
	// CmdName is the name of the ingest command.
	CmdName = "blocklist-ingest"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelInfo
)

// Fetch defaults, overridable via environment.
const (
	// DefaultRequestTimeout is the HTTP client timeout for feed downloads.
	DefaultRequestTimeout = 15 * time.Second

	// DefaultMaxRetries is the number of attempts before a feed fetch is abandoned.
	DefaultMaxRetries = 5

	// DefaultBackoffFactor is the multiplier applied to the retry delay after each attempt.
	DefaultBackoffFactor = 1.5

	// DefaultFeedDelay is the pause between consecutive feed downloads, to stay
	// polite towards the upstream mirrors.
	DefaultFeedDelay = 1 * time.Second
)
