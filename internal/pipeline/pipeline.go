// Package pipeline runs the fetch, parse, enrich and load stages over the
// feed registry.
//
// Feeds are processed sequentially; a failure in one feed never aborts the
// others. Every outcome is collected into a run summary instead of escaping
// as an error.
package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/keerthanak2k4/blocklist-ingest/internal/constants"
	"github.com/keerthanak2k4/blocklist-ingest/internal/feeds"
	"github.com/keerthanak2k4/blocklist-ingest/internal/models"
	"github.com/keerthanak2k4/blocklist-ingest/internal/parser"
)

// Fetcher downloads the raw text of one feed URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Store persists record batches and run bookkeeping.
type Store interface {
	EnsureCollection(ctx context.Context, collection string) error
	InsertRecords(ctx context.Context, collection string, records []models.Record) (int64, error)
	StartRun(ctx context.Context, runID uuid.UUID, startedAt time.Time) error
	FinishRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time, feedsTotal, feedsFailed int, inserted int64) error
}

// Summary aggregates the per-feed results of one run.
type Summary struct {
	RunID   uuid.UUID
	Results []models.FeedResult
}

// Failed returns the number of feeds that did not complete.
func (s Summary) Failed() int {
	failed := 0
	for _, r := range s.Results {
		if r.Err != nil {
			failed++
		}
	}
	return failed
}

// AllFailed reports whether every feed of the run failed.
func (s Summary) AllFailed() bool {
	return len(s.Results) > 0 && s.Failed() == len(s.Results)
}

// Inserted returns the total number of records inserted across all feeds.
func (s Summary) Inserted() int64 {
	var total int64
	for _, r := range s.Results {
		total += r.Inserted
	}
	return total
}

// Orchestrator wires the pipeline stages together over a fixed feed registry.
type Orchestrator struct {
	registry []feeds.Descriptor
	fetcher  Fetcher
	store    Store

	feedDelay time.Duration
	now       func() time.Time
}

type options struct {
	feedDelay time.Duration
	now       func() time.Time
}

// Options represents an optional function to override Orchestrator default values.
type Options func(*options)

// WithFeedDelay sets the pause between consecutive feed downloads.
func WithFeedDelay(d time.Duration) Options {
	return func(o *options) {
		o.feedDelay = d
	}
}

// New creates an orchestrator over the given registry.
func New(registry []feeds.Descriptor, fetcher Fetcher, store Store, args ...Options) *Orchestrator {
	opts := options{
		feedDelay: constants.DefaultFeedDelay,
		now:       time.Now,
	}
	for _, opt := range args {
		opt(&opts)
	}

	return &Orchestrator{
		registry: registry,
		fetcher:  fetcher,
		store:    store,

		feedDelay: opts.feedDelay,
		now:       opts.now,
	}
}

// Run processes every feed in the registry and returns the run summary.
//
// No error escapes: fetch and load failures are converted into per-feed
// results. Context cancellation marks the remaining feeds as failed.
func (o *Orchestrator) Run(ctx context.Context) Summary {
	summary := Summary{RunID: uuid.New()}

	slog.Info("Starting ingest run", "run_id", summary.RunID, "feeds", len(o.registry))
	if err := o.store.StartRun(ctx, summary.RunID, o.now().UTC()); err != nil {
		// Bookkeeping is best-effort, the feed data still flows.
		slog.Warn("Failed to record run start", "run_id", summary.RunID, "error", err)
	}

	for i, feed := range o.registry {
		if err := ctx.Err(); err != nil {
			slog.Warn("Run canceled, skipping remaining feeds", "feed", feed.Name, "error", err)
			summary.Results = append(summary.Results, models.FeedResult{Feed: feed.Name, Err: err})
			continue
		}

		result := o.processFeed(ctx, feed, summary.RunID)
		if result.Err != nil {
			slog.Error("Feed failed", "feed", feed.Name, "url", feed.URL, "error", result.Err)
		} else {
			slog.Info("Feed ingested", "feed", feed.Name, "collection", feed.Collection,
				"inserted", result.Inserted, "skipped_lines", result.Skipped)
		}
		summary.Results = append(summary.Results, result)

		if i < len(o.registry)-1 {
			waitCtx(ctx, o.feedDelay)
		}
	}

	if err := o.store.FinishRun(ctx, summary.RunID, o.now().UTC(),
		len(summary.Results), summary.Failed(), summary.Inserted()); err != nil {
		slog.Warn("Failed to record run summary", "run_id", summary.RunID, "error", err)
	}

	slog.Info("Ingest run complete", "run_id", summary.RunID,
		"feeds", len(summary.Results), "failed", summary.Failed(), "inserted", summary.Inserted())
	return summary
}

func (o *Orchestrator) processFeed(ctx context.Context, feed feeds.Descriptor, runID uuid.UUID) models.FeedResult {
	result := models.FeedResult{Feed: feed.Name}

	body, err := o.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		result.Err = err
		return result
	}
	fetchedAt := o.now().UTC()

	observations, skipped := parser.Parse(bytes.NewReader(body))
	result.Skipped = skipped

	records := make([]models.Record, 0, len(observations))
	for _, obs := range observations {
		records = append(records, enrich(obs, feed.Name, runID, fetchedAt))
	}
	if len(records) == 0 {
		slog.Warn("Feed contained no well-formed records", "feed", feed.Name, "skipped_lines", skipped)
		return result
	}

	if err := o.store.EnsureCollection(ctx, feed.Collection); err != nil {
		result.Err = err
		return result
	}

	inserted, err := o.store.InsertRecords(ctx, feed.Collection, records)
	if err != nil {
		result.Err = err
		return result
	}
	result.Inserted = inserted
	return result
}

// enrich attaches provenance to a parsed observation. Pure: same inputs,
// same record.
func enrich(obs models.Observation, source string, runID uuid.UUID, fetchedAt time.Time) models.Record {
	return models.Record{
		Observation: obs,
		Source:      source,
		RunID:       runID,
		FetchedAt:   fetchedAt,
	}
}

// waitCtx pauses between feeds unless the context is canceled first.
func waitCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
