// Package export streams a chosen scope of the store into a chosen format
// on a sink, per spec.md §4.5. It never blocks ingestion: it acquires a
// store snapshot at invocation and streams only from that snapshot.
package export

import (
	"context"

	"fml/internal/apperr"
	"fml/internal/entry"
	"fml/internal/search"
	"fml/internal/types"
)

// Format is one of the three export encodings spec.md §4.5 requires.
type Format string

const (
	FormatRaw   Format = "raw"
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
)

// ScopeKind selects which subset of the store an export covers, per
// spec.md §4.5's "Scopes" list.
type ScopeKind int

const (
	ScopeEntireStore ScopeKind = iota
	ScopeActiveFilter
	ScopeProducer
	ScopeProducerAndFilter
)

// Scope describes what to export. Query/Greed are only consulted when
// Kind includes the active filter.
type Scope struct {
	Kind     ScopeKind
	Producer string
	Query    *search.Query
	Greed    int
}

// Options controls encoding details shared by every format.
type Options struct {
	Format Format
	// SuppressMetadata elides the synthetic source/producer/ts
	// columns/keys, per spec.md §4.5's "Metadata suppression".
	SuppressMetadata bool
}

// Exporter resolves a Scope against a store snapshot and streams the
// result through a Sink.
type Exporter struct {
	store  types.Store
	engine *search.Engine
}

// New builds an Exporter over the given store and search engine (the
// engine is needed to re-run ScopeActiveFilter/ScopeProducerAndFilter).
func New(store types.Store, engine *search.Engine) *Exporter {
	return &Exporter{store: store, engine: engine}
}

// Resolve acquires a snapshot and returns the entries the given scope
// covers. Entire-store and producer scopes are oldest-first; scopes that
// run the active filter keep the search engine's rank order. An empty scope produces an empty slice, never an
// error (per spec.md §4.5: "An empty scope produces an empty output").
func (ex *Exporter) Resolve(scope Scope) []*entry.LogEntry {
	snap := ex.store.Snapshot()

	switch scope.Kind {
	case ScopeEntireStore:
		return snap.All()
	case ScopeActiveFilter:
		if scope.Query == nil {
			return snap.All()
		}
		return ex.engine.Search(snap, scope.Query, scope.Greed)
	case ScopeProducer:
		return snap.ByProducer(scope.Producer)
	case ScopeProducerAndFilter:
		if scope.Query == nil {
			return snap.ByProducer(scope.Producer)
		}
		matches := ex.engine.Search(snap, scope.Query, scope.Greed)
		out := make([]*entry.LogEntry, 0, len(matches))
		for _, e := range matches {
			if e.Producer == scope.Producer {
				out = append(out, e)
			}
		}
		return out
	default:
		return nil
	}
}

// Export resolves scope and writes the result to sink. sink is already
// configured with its Format/Options at construction (each sink kind
// knows how to encode what it's given). Export failures (sink write
// error) surface to the caller; partial output is permitted per spec.md
// §4.5.
func (ex *Exporter) Export(ctx context.Context, scope Scope, sink types.Sink) error {
	entries := ex.Resolve(scope)
	if err := sink.Start(ctx); err != nil {
		return apperr.Wrap(apperr.ErrExportSink, err)
	}
	if err := sink.Send(ctx, entries); err != nil {
		return apperr.Wrap(apperr.ErrExportSink, err)
	}
	return sink.Stop()
}
