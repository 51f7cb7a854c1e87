package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samsarahq/go/oops"
	"golang.org/x/sync/errgroup"

	"github.com/KevinXing/housing-alert/go/listing"
	"github.com/KevinXing/housing-alert/go/notify"
	"github.com/KevinXing/housing-alert/go/state"
)

// notifyTimeout bounds delivery once the run context no longer applies.
const notifyTimeout = 30 * time.Second

// Checker runs one availability pass over the monitored listings.
type Checker struct {
	Fetcher     Fetcher
	Classifier  *Classifier
	Store       state.Store
	Notifier    notify.Notifier
	Concurrency int

	logger zerolog.Logger
}

// RunResult describes what one pass observed and did.
type RunResult struct {
	Snapshot state.Snapshot
	Events   []listing.ChangeEvent
	Failed   []string
	Notified bool
}

func NewChecker(fetcher Fetcher, classifier *Classifier, store state.Store, notifier notify.Notifier, concurrency int, logger zerolog.Logger) *Checker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Checker{
		Fetcher:     fetcher,
		Classifier:  classifier,
		Store:       store,
		Notifier:    notifier,
		Concurrency: concurrency,
		logger:      logger.With().Str("module", "checker").Logger(),
	}
}

// Run loads the previous snapshot, checks every entry, saves the new snapshot
// and sends one aggregated notification when anything changed. Only store
// failures abort the run; the snapshot is saved before notifying so a failed
// delivery never loses state.
func (c *Checker) Run(ctx context.Context, entries []listing.Entry) (*RunResult, error) {
	prev, err := c.Store.Load(ctx)
	if err != nil {
		return nil, oops.Wrapf(err, "load previous state")
	}

	snapshot, events, failed := c.Detect(ctx, prev, entries)

	if err := c.Store.Save(ctx, snapshot); err != nil {
		return nil, oops.Wrapf(err, "save state")
	}

	result := &RunResult{Snapshot: snapshot, Events: events, Failed: failed}
	c.logger.Info().
		Int("listings", len(entries)).
		Int("changes", len(events)).
		Int("failed", len(failed)).
		Msg("availability check finished")

	if len(events) == 0 {
		return result, nil
	}
	// Delivery outlives run cancellation: the saved snapshot already holds these changes.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := c.Notifier.Send(sendCtx, ComposeMessage(events)); err != nil {
		c.logger.Error().Err(err).Int("changes", len(events)).Msg("failed to deliver notification")
		return result, nil
	}
	result.Notified = true
	return result, nil
}

type checkOutcome struct {
	status listing.Status
	err    error
}

// Detect fetches and classifies every entry and diffs the result against prev.
// The returned snapshot has exactly one key per entry. URLs whose fetch failed
// keep their previous value and are returned in failed.
func (c *Checker) Detect(ctx context.Context, prev state.Snapshot, entries []listing.Entry) (state.Snapshot, []listing.ChangeEvent, []string) {
	// Each goroutine owns one slot, so no locking is needed before the merge.
	outcomes := make([]checkOutcome, len(entries))
	g := new(errgroup.Group)
	g.SetLimit(c.Concurrency)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			outcomes[i] = c.check(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()

	snapshot := make(state.Snapshot, len(entries))
	events := make([]listing.ChangeEvent, 0)
	failed := make([]string, 0)
	for i, entry := range entries {
		outcome := outcomes[i]
		previous, seen := prev.Lookup(entry.URL)
		if outcome.err != nil {
			c.logger.Error().Err(outcome.err).Str("url", entry.URL).Str("address", entry.Address).Msg("failed to check listing, keeping previous state")
			snapshot[entry.URL] = prev[entry.URL]
			failed = append(failed, entry.URL)
			continue
		}

		snapshot.Set(entry.URL, outcome.status)
		kind, changed := transition(previous, seen, outcome.status)
		level := zerolog.DebugLevel
		if changed {
			level = zerolog.InfoLevel
			events = append(events, listing.ChangeEvent{Address: entry.Address, URL: entry.URL, Kind: kind})
		}
		c.logger.WithLevel(level).
			Str("url", entry.URL).
			Str("address", entry.Address).
			Stringer("previous", previous).
			Stringer("status", outcome.status).
			Bool("changed", changed).
			Msg("listing checked")
	}
	return snapshot, events, failed
}

func (c *Checker) check(ctx context.Context, entry listing.Entry) checkOutcome {
	content, err := c.Fetcher.Fetch(ctx, entry.URL)
	if err != nil {
		return checkOutcome{err: err}
	}
	return checkOutcome{status: c.Classifier.Classify(content)}
}

// transition decides which event, if any, a freshly observed status produces.
// A recorded Unknown counts as no prior data. Moving to Unknown never produces
// an event, though the Unknown is still stored.
func transition(previous listing.Status, seen bool, current listing.Status) (listing.EventKind, bool) {
	if !seen || previous == listing.Unknown {
		return listing.NewlyAvailable, current == listing.Available
	}
	if previous == current {
		return 0, false
	}
	switch current {
	case listing.Available:
		return listing.BecameAvailable, true
	case listing.Unavailable:
		return listing.BecameUnavailable, true
	}
	return 0, false
}

var headlines = map[listing.EventKind]string{
	listing.NewlyAvailable:    "Housing is now available at: %s",
	listing.BecameAvailable:   "Housing is available again at: %s",
	listing.BecameUnavailable: "Housing is no longer available at: %s",
}

// ComposeMessage renders one block per event, separated by blank lines.
func ComposeMessage(events []listing.ChangeEvent) string {
	blocks := make([]string, 0, len(events))
	for _, event := range events {
		headline, ok := headlines[event.Kind]
		if !ok {
			headline = "Availability changed at: %s"
		}
		blocks = append(blocks, fmt.Sprintf(headline+"\nURL: %s", event.Address, event.URL))
	}
	return strings.Join(blocks, "\n\n")
}
