// Package app wires together the store, dispatcher, ontology, search engine,
// exporter, and a feed adapter into one runnable lifecycle, mirroring the
// teacher's internal/app.App: a New that initializes every component in
// dependency order, a Start that launches background work, and a Stop that
// cancels the shared context and waits for every goroutine to drain.
//
// fml's lifecycle is far narrower than the teacher's (one feed at a time,
// no hot-reload, no enterprise security/tracing/SLO managers), matching
// spec.md's scope: this is a single-process triage tool, not a fleet-wide
// capture daemon.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fml/internal/dispatcher"
	"fml/internal/entry"
	"fml/internal/metrics"
	"fml/internal/normalizer"
	"fml/internal/ontology"
	"fml/internal/search"
	"fml/internal/store"
	"fml/internal/types"

	fmlexport "fml/internal/export"
)

// Options configures a new App. Feed is constructed by the caller (cmd/fml)
// since each feed kind (orchestrator/runtime/file/stdin) takes different
// construction parameters; App only needs it to satisfy types.Monitor.
type Options struct {
	RingCapacity int
	Feed         types.Monitor
	Logger       *logrus.Logger
	Metrics      *metrics.Metrics // nil disables metrics instrumentation
	MetricsAddr  string           // empty disables the /metrics HTTP server
}

// App owns every core component's lifecycle for one fml run.
type App struct {
	Store      *store.Store
	Dispatcher *dispatcher.Dispatcher
	Graph      *ontology.Graph
	Search     *search.Engine
	Exporter   *fmlexport.Exporter

	metrics       *metrics.Metrics
	metricsServer *metrics.Server
	metricsAddr   string

	feed types.Monitor
	log  *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires the core in dependency order: store -> normalizer -> dispatcher,
// ontology graph -> search engine, store+engine -> exporter. The ring
// capacity defaults to 100,000 per spec.md §3 when RingCapacity is zero.
func New(opts Options) *App {
	capacity := opts.RingCapacity
	if capacity <= 0 {
		capacity = 100_000
	}

	logEntry := logrus.NewEntry(opts.Logger)
	if opts.Logger == nil {
		logEntry = logrus.NewEntry(logrus.StandardLogger())
	}

	st := store.New(capacity)
	disp := dispatcher.New(normalizer.New(), st, logEntry.WithField("component", "dispatcher"))

	graph := ontology.Build()
	engine := search.New(graph)
	exporter := fmlexport.New(st, engine)

	if opts.Metrics != nil {
		m := opts.Metrics
		disp.OnAppend(func(e *entry.LogEntry) {
			m.EntriesIngested.WithLabelValues(e.Source.String()).Inc()
			m.RingOccupancy.Set(float64(st.Len()))
		})
		st.OnEvict(func(*entry.LogEntry) {
			m.EntriesEvicted.Inc()
		})
		engine.OnSearch(func(dur time.Duration, expansionSize int) {
			m.SearchLatency.Observe(dur.Seconds())
			m.ExpansionSize.Observe(float64(expansionSize))
		})
	}

	var metricsServer *metrics.Server
	if opts.MetricsAddr != "" && opts.Metrics != nil {
		metricsServer = metrics.NewServer(opts.MetricsAddr, opts.Metrics)
	}

	return &App{
		Store:         st,
		Dispatcher:    disp,
		Graph:         graph,
		Search:        engine,
		Exporter:      exporter,
		metrics:       opts.Metrics,
		metricsServer: metricsServer,
		metricsAddr:   opts.MetricsAddr,
		feed:          opts.Feed,
		log:           logEntry.WithField("component", "app"),
	}
}

// SetFeed attaches the feed adapter to run. It must be called before
// Start; feeds are built by the caller (cmd/fml) since each kind takes
// different construction parameters and needs the Dispatcher this App
// already constructed.
func (a *App) SetFeed(feed types.Monitor) {
	a.feed = feed
}

// Start launches the metrics server (if configured) and the feed adapter,
// returning once both are running. The feed itself keeps running in the
// background until Stop is called; Start does not block on it.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	if a.metricsServer != nil {
		errCh := make(chan error, 1)
		a.metricsServer.Start(errCh)
		a.log.WithField("addr", a.metricsAddr).Info("metrics server started")
		go func() {
			for err := range errCh {
				a.log.WithError(err).Error("metrics server error")
			}
		}()
	}

	if a.feed == nil {
		return fmt.Errorf("app: no feed configured")
	}

	// A feed may optionally expose synchronous startup validation distinct
	// from its long-running Start loop (e.g. the file feed's glob
	// resolution), so a configuration error surfaces here instead of only
	// being logged from inside the background goroutine below.
	if v, ok := a.feed.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("feed validation: %w", err)
		}
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.feed.Start(a.ctx); err != nil && a.ctx.Err() == nil {
			a.log.WithError(err).Error("feed exited with error")
		}
	}()

	a.log.Info("fml started")
	return nil
}

// Stop cancels the shared context, stops the feed and metrics server, and
// waits for every background goroutine to finish.
func (a *App) Stop() error {
	a.log.Info("stopping fml")
	if a.cancel != nil {
		a.cancel()
	}
	if a.feed != nil {
		if err := a.feed.Stop(); err != nil {
			a.log.WithError(err).Warn("feed stop error")
		}
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Stop(context.Background()); err != nil {
			a.log.WithError(err).Warn("metrics server stop error")
		}
	}
	a.wg.Wait()
	return nil
}
