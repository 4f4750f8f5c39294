// Command fml is a terminal log-triage tool: it ingests lines from one
// live feed (orchestrator pod logs, container runtime logs, tailed files,
// or standard input), normalizes and stores them in a bounded ring, and
// lets an operator search them with greedy semantic expansion across a
// curated log-domain ontology.
//
// The CLI surface follows the teacher's flat urfave/cli.App pattern
// (cmd/main.go), scaled down to fml's single-command shape: one set of
// flags, no subcommands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"fml/internal/app"
	"fml/internal/apperr"
	"fml/internal/config"
	"fml/internal/entry"
	"fml/internal/export"
	"fml/internal/export/sinks/elasticsearch"
	"fml/internal/export/sinks/kafka"
	"fml/internal/export/sinks/local"
	"fml/internal/export/sinks/loki"
	"fml/internal/feeds/file"
	"fml/internal/feeds/orchestrator"
	"fml/internal/feeds/runtime"
	"fml/internal/feeds/stdin"
	"fml/internal/logging"
	"fml/internal/metrics"
	"fml/internal/search"
	"fml/internal/types"
)

func main() {
	cliApp := &cli.App{
		Name:  "fml",
		Usage: "Feed Me Logs — live log triage with greedy semantic search",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "append tracing output to a well-known debug log path"},
			&cli.BoolFlag{Name: "headless", Usage: "do not start the interactive front-end; stream results to standard output"},
			&cli.StringFlag{Name: "feed", Value: "stdin", Usage: "feed to ingest: orchestrator|runtime|file|stdin"},
			&cli.StringFlag{Name: "query", Usage: "pre-applied query"},
			&cli.IntFlag{Name: "greed", Value: 0, Usage: "greed level [0,10] for headless mode"},
			&cli.IntFlag{Name: "tail", Usage: "emit only the newest n entries then exit"},
			&cli.DurationFlag{Name: "duration", Usage: "run for at most d (e.g. 100ms, 5s), then exit"},
			&cli.StringFlag{Name: "format", Value: "raw", Usage: "output format: raw|jsonl|csv"},
			&cli.BoolFlag{Name: "no-metadata", Usage: "omit source/producer/ts from output"},
			&cli.StringFlag{Name: "sink", Value: "stdout", Usage: "export sink: stdout|file|kafka|loki|elasticsearch"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "bind address for the Prometheus /metrics endpoint; empty disables it"},

			&cli.StringSliceFlag{Name: "path", Usage: "literal path or glob pattern to tail (feed=file, repeatable)"},
			&cli.StringFlag{Name: "kubeconfig", Usage: "kubeconfig path (feed=orchestrator; empty uses in-cluster config)"},
			&cli.StringFlag{Name: "namespace", Usage: "namespace selector (feed=orchestrator)"},
			&cli.StringFlag{Name: "label-selector", Usage: "pod label selector (feed=orchestrator)"},
			&cli.StringFlag{Name: "container", Usage: "container name filter (feed=orchestrator)"},

			&cli.StringFlag{Name: "output", Usage: "file path (sink=file)"},
			&cli.StringSliceFlag{Name: "kafka-broker", Usage: "Kafka broker address (sink=kafka, repeatable)"},
			&cli.StringFlag{Name: "kafka-topic", Usage: "Kafka topic (sink=kafka)"},
			&cli.StringFlag{Name: "loki-url", Usage: "Loki push API URL (sink=loki)"},
			&cli.StringSliceFlag{Name: "es-addr", Usage: "Elasticsearch address (sink=elasticsearch, repeatable)"},
			&cli.StringFlag{Name: "es-index-prefix", Value: "fml", Usage: "Elasticsearch index prefix (sink=elasticsearch)"},
		},
		Action: run,
		OnUsageError: func(c *cli.Context, err error, isSubcommand bool) error {
			return usageError{err}
		},
		ExitErrHandler: func(c *cli.Context, err error) {
			if err == nil {
				return
			}
			fmt.Fprintf(os.Stderr, "fml: %v\n", err)
			var usageErr usageError
			if errors.As(err, &usageErr) {
				os.Exit(2)
			}
			os.Exit(1)
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

// usageError marks a flag/argument error as a CLI usage error (exit 2),
// distinct from a feed configuration error (exit 1).
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

func run(c *cli.Context) error {
	if _, err := config.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level: "info",
		Debug: c.Bool("debug"),
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logrus.NewEntry(logger).WithField("component", "cmd")

	greed := c.Int("greed")
	if greed < 0 || greed > 10 {
		return usageError{fmt.Errorf("--greed must be within [0, 10], got %d", greed)}
	}

	format, err := parseFormat(c.String("format"))
	if err != nil {
		return usageError{err}
	}

	feedKind := c.String("feed")
	var metricsInst *metrics.Metrics
	if c.String("metrics-addr") != "" {
		metricsInst = metrics.New()
	}

	a := app.New(app.Options{
		Logger:      logger,
		Metrics:     metricsInst,
		MetricsAddr: c.String("metrics-addr"),
	})

	feed, err := buildFeed(c, feedKind, a.Dispatcher, log)
	if err != nil {
		return apperr.Wrap(apperr.ErrSourceFatal, fmt.Errorf("configure %s feed: %w", feedKind, err))
	}
	a.SetFeed(feed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if d := c.Duration("duration"); d > 0 {
		var durCancel context.CancelFunc
		ctx, durCancel = context.WithTimeout(ctx, d)
		defer durCancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal")
		cancel()
	}()

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer a.Stop()

	var query *search.Query
	if q := c.String("query"); q != "" {
		query, err = search.ParseQuery(q)
		if err != nil {
			return usageError{fmt.Errorf("parse query: %w", err)}
		}
	}

	sink, err := buildSink(c, format, c.Bool("no-metadata"), log)
	if err != nil {
		return fmt.Errorf("configure %s sink: %w", c.String("sink"), err)
	}

	if c.Bool("headless") {
		if c.Duration("duration") > 0 {
			return runLive(ctx, a, query, greed, sink)
		}
		return runHeadlessOnce(ctx, a, query, greed, c.Int("tail"), sink)
	}
	return runLive(ctx, a, query, greed, sink)
}

func parseFormat(s string) (export.Format, error) {
	switch export.Format(s) {
	case export.FormatRaw, export.FormatJSONL, export.FormatCSV:
		return export.Format(s), nil
	default:
		return "", fmt.Errorf("unknown format %q (want raw, jsonl, or csv)", s)
	}
}

func buildFeed(c *cli.Context, kind string, disp types.Dispatcher, log *logrus.Entry) (types.Monitor, error) {
	switch kind {
	case "file":
		patterns := c.StringSlice("path")
		if len(patterns) == 0 {
			return nil, errors.New("--path is required for feed=file")
		}
		return file.New(patterns, disp, log.WithField("feed", "file")), nil
	case "runtime":
		return runtime.New(disp, log.WithField("feed", "runtime"))
	case "orchestrator":
		selector := orchestrator.Selector{
			Namespace:     c.String("namespace"),
			LabelSelector: c.String("label-selector"),
			Container:     c.String("container"),
		}
		return orchestrator.New(c.String("kubeconfig"), selector, disp, log.WithField("feed", "orchestrator"))
	case "stdin":
		return stdin.New(os.Stdin, disp, log.WithField("feed", "stdin")), nil
	default:
		return nil, fmt.Errorf("unknown feed %q (want orchestrator, runtime, file, or stdin)", kind)
	}
}

func buildSink(c *cli.Context, format export.Format, noMetadata bool, log *logrus.Entry) (types.Sink, error) {
	switch c.String("sink") {
	case "stdout", "":
		return local.NewStdout(format, noMetadata, log.WithField("sink", "stdout")), nil
	case "file":
		path := c.String("output")
		if path == "" {
			return nil, errors.New("--output is required for sink=file")
		}
		return local.NewFile(path, format, noMetadata, log.WithField("sink", "file"))
	case "kafka":
		brokers := c.StringSlice("kafka-broker")
		topic := c.String("kafka-topic")
		if len(brokers) == 0 || topic == "" {
			return nil, errors.New("--kafka-broker and --kafka-topic are required for sink=kafka")
		}
		return kafka.New(kafka.Config{Brokers: brokers, Topic: topic, BatchSize: 100}, log.WithField("sink", "kafka"))
	case "loki":
		url := c.String("loki-url")
		if url == "" {
			return nil, errors.New("--loki-url is required for sink=loki")
		}
		return loki.New(loki.Config{PushURL: url, BatchSize: 100, Timeout: 10 * time.Second}, log.WithField("sink", "loki"))
	case "elasticsearch":
		addrs := c.StringSlice("es-addr")
		if len(addrs) == 0 {
			return nil, errors.New("--es-addr is required for sink=elasticsearch")
		}
		return elasticsearch.New(elasticsearch.Config{
			Addresses:   addrs,
			IndexPrefix: c.String("es-index-prefix"),
		}, log.WithField("sink", "elasticsearch"))
	default:
		return nil, fmt.Errorf("unknown sink %q", c.String("sink"))
	}
}

// runHeadlessOnce resolves one export scope from the current store
// contents and streams it to the configured sink, honoring --tail, then
// returns immediately. This is the default headless behavior: without
// --duration there is no live tail to wait on.
func runHeadlessOnce(ctx context.Context, a *app.App, query *search.Query, greed, tail int, sink types.Sink) error {
	scope := scopeFor(query, greed)
	entries := a.Exporter.Resolve(scope)
	if tail > 0 && len(entries) > tail {
		entries = entries[len(entries)-tail:]
	}

	if err := sink.Start(ctx); err != nil {
		return fmt.Errorf("start sink: %w", err)
	}
	defer sink.Stop()

	return sink.Send(ctx, entries)
}

// runLive is fml's foreground front-end: the terminal-UI widget system
// itself is an external collaborator (spec.md's original scope note), so
// this drives the one interface contract that matters without it — it
// streams search results to the configured sink as the ring fills,
// re-evaluating the query each time the ring grows, until the context is
// cancelled (by --duration or Ctrl-C). A feed that reaches the end of its
// input does not cancel the context, so runLive keeps running after it.
func runLive(ctx context.Context, a *app.App, query *search.Query, greed int, sink types.Sink) error {
	if err := sink.Start(ctx); err != nil {
		return fmt.Errorf("start sink: %w", err)
	}
	defer sink.Stop()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	var lastLen int
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := a.Store.Snapshot()
			if snap.Len() == lastLen {
				continue
			}
			lastLen = snap.Len()

			var results []*entry.LogEntry
			if query != nil {
				results = a.Search.Search(snap, query, greed)
			} else {
				results = snap.All()
			}
			if err := sink.Send(ctx, results); err != nil {
				return fmt.Errorf("send entries: %w", err)
			}
		}
	}
}

func scopeFor(query *search.Query, greed int) export.Scope {
	if query == nil {
		return export.Scope{Kind: export.ScopeEntireStore}
	}
	return export.Scope{Kind: export.ScopeActiveFilter, Query: query, Greed: greed}
}
