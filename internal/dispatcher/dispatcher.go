// Package dispatcher wires feed adapters to the normalizer and the store:
// every RawLine a Monitor produces passes through here on its way to
// becoming a stored LogEntry.
package dispatcher

import (
	"context"

	"github.com/sirupsen/logrus"

	"fml/internal/entry"
	"fml/internal/types"
)

// Normalizer is the subset of normalizer.Normalizer the dispatcher needs,
// kept as an interface so tests can substitute a fake.
type Normalizer interface {
	Normalize(raw types.RawLine) *entry.LogEntry
}

// Dispatcher normalizes a RawLine and appends the result to the store. It
// holds no per-feed state: concurrency safety comes entirely from the
// store's own lock, so a single Dispatcher is shared by every feed
// goroutine.
type Dispatcher struct {
	normalizer Normalizer
	store      types.Store
	log        *logrus.Entry

	onAppend func(*entry.LogEntry) // optional hook, e.g. metrics counters
}

// New builds a Dispatcher over the given normalizer and store.
func New(n Normalizer, s types.Store, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{normalizer: n, store: s, log: log}
}

// OnAppend registers a callback invoked synchronously after every
// successful append, used by internal/metrics to count ingested entries
// per feed source without the dispatcher depending on metrics.
func (d *Dispatcher) OnAppend(fn func(*entry.LogEntry)) {
	d.onAppend = fn
}

// Handle implements types.Dispatcher. Normalization is pure and never
// fails (per spec.md §4.2), so the only failure mode here would be a
// cancelled context, which the caller already owns.
func (d *Dispatcher) Handle(ctx context.Context, raw types.RawLine) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	e := d.normalizer.Normalize(raw)
	seq := d.store.Append(e)

	if d.log != nil && d.log.Logger.IsLevelEnabled(logrus.TraceLevel) {
		d.log.WithField("seq", seq).WithField("producer", e.Producer).Trace("appended entry")
	}
	if d.onAppend != nil {
		d.onAppend(e)
	}
	return nil
}

var _ types.Dispatcher = (*Dispatcher)(nil)
