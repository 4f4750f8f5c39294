// Package loki adapts the teacher's internal/sinks/loki_sink.go push-API
// client into an export sink: it pushes an exported triage session's
// entries back into Loki as a labeled stream, so a filtered view can be
// re-ingested into long-term storage.
//
// Dropped relative to the teacher: the adaptive batcher, circuit breaker,
// and DLQ — a one-shot export pushes its batches directly and reports
// failure to the caller instead of routing around it.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"fml/internal/entry"
)

// Config configures the export-time Loki sink.
type Config struct {
	PushURL   string // e.g. http://loki:3100/loki/api/v1/push
	BatchSize int
	Timeout   time.Duration
}

// Sink pushes exported entries to Loki's push API, one stream per
// (producer, source, level) combination, per spec.md-adjacent
// SPEC_FULL.md label set.
type Sink struct {
	cfg    Config
	log    *logrus.Entry
	client *http.Client
}

// payload mirrors the teacher's LokiPayload/LokiStream shapes.
type payload struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// New validates cfg and returns a ready-to-use sink.
func New(cfg Config, log *logrus.Entry) (*Sink, error) {
	if cfg.PushURL == "" {
		return nil, fmt.Errorf("loki export sink: no push URL configured")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Sink{cfg: cfg, log: log, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (s *Sink) Start(ctx context.Context) error { return nil }

func (s *Sink) Send(ctx context.Context, entries []*entry.LogEntry) error {
	streams := make(map[string]*stream)
	for _, e := range entries {
		key, labels := streamLabels(e)
		st, ok := streams[key]
		if !ok {
			st = &stream{Stream: labels}
			streams[key] = st
		}
		st.Values = append(st.Values, [2]string{
			strconv.FormatInt(e.Ts.UnixNano(), 10),
			e.Message,
		})
	}

	p := payload{Streams: make([]stream, 0, len(streams))}
	for _, st := range streams {
		p.Streams = append(p.Streams, *st)
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("loki export sink: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.PushURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("loki export sink: push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("loki export sink: push returned status %d", resp.StatusCode)
	}
	if s.log != nil {
		s.log.WithFields(logrus.Fields{"entries": len(entries), "streams": len(p.Streams)}).Info("loki export sink: pushed batch")
	}
	return nil
}

func (s *Sink) Stop() error { return nil }

func (s *Sink) IsHealthy() bool { return s.client != nil }

func streamLabels(e *entry.LogEntry) (string, map[string]string) {
	level := "none"
	if e.Level != nil {
		level = e.Level.String()
	}
	labels := map[string]string{
		"producer": e.Producer,
		"source":   e.Source.String(),
		"level":    level,
	}
	return labels["producer"] + "|" + labels["source"] + "|" + labels["level"], labels
}
