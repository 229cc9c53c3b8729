// Package models defines the data shapes flowing through the ingest pipeline.
package models

import (
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// Observation is one parsed line of feed text, before provenance is attached.
type Observation struct {
	IP        netip.Addr
	Attacks   int64
	Reports   int64
	FirstSeen time.Time
	LastSeen  time.Time
}

// Record is an Observation enriched with provenance metadata, ready for storage.
type Record struct {
	Observation

	Source    string
	RunID     uuid.UUID
	FetchedAt time.Time
}

// FeedResult reports the outcome of processing a single feed.
type FeedResult struct {
	Feed     string
	Inserted int64
	Skipped  int
	Err      error
}
