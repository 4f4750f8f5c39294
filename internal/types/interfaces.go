// Package types defines the interfaces shared across feed adapters, the
// store, search, and export so each can be built and tested independently.
package types

import (
	"context"

	"fml/internal/entry"
)

// Monitor is a log input source that produces entries until its context is
// cancelled. Every feed adapter (orchestrator, runtime, file, stdin)
// implements Monitor.
type Monitor interface {
	// Start begins monitoring and returns once ctx is cancelled and the
	// adapter has drained any in-flight line.
	Start(ctx context.Context) error
	// Stop requests a graceful shutdown, returning once resources are
	// released.
	Stop() error
}

// RawLine is what a feed adapter produces before normalization: the
// producer tag, the raw bytes, the ingest timestamp, and the feed-supplied
// defaults the normalizer falls back to.
type RawLine struct {
	Source   entry.Source
	Producer string
	Raw      string
	IngestTs int64 // unix nanos; kept as int64 so normalizer stays alloc-light
	Fields   map[string]any
}

// Sink is an export or forwarding destination for normalized entries.
type Sink interface {
	Start(ctx context.Context) error
	Send(ctx context.Context, entries []*entry.LogEntry) error
	Stop() error
	IsHealthy() bool
}

// Dispatcher receives raw lines from feed adapters, normalizes them, and
// appends the result to the store.
type Dispatcher interface {
	Handle(ctx context.Context, raw RawLine) error
}

// Store is the subset of the ring buffer's API that search, export, and the
// dispatcher depend on (kept as an interface so each can be tested against a
// fake).
type Store interface {
	Append(e *entry.LogEntry) uint64
	Len() int
	Capacity() int
	Latest(n int) []*entry.LogEntry
	Range(seqLo, seqHi uint64) []*entry.LogEntry
	ByProducer(name string) []*entry.LogEntry
	ByLevelAtLeast(l entry.Level) []*entry.LogEntry
	Snapshot() Snapshot
}

// Snapshot is a stable read view of the store valid for the duration of one
// query or export.
type Snapshot interface {
	Len() int
	All() []*entry.LogEntry
	ByProducer(name string) []*entry.LogEntry
	ByLevelAtLeast(l entry.Level) []*entry.LogEntry
}
