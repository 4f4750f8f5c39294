// Package kafka adapts the teacher's internal/sinks/kafka_sink.go
// (IBM/sarama async producer, batching, partition-by-key) into an export
// sink: instead of continuously forwarding live ingestion, it publishes
// one exported triage session's entries to a configured topic so an
// operator can pipe results into a downstream queue.
//
// The circuit breaker, dead-letter queue, and adaptive compression the
// teacher's sink used for a long-lived ingestion pipeline are dropped
// here — a one-shot export either succeeds or reports the failed count,
// there is no steady-state backpressure to manage.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"fml/internal/entry"
)

// Config configures the export-time Kafka sink.
type Config struct {
	Brokers   []string
	Topic     string
	BatchSize int
}

// Sink publishes exported entries to Kafka as JSON records, one per
// message, partitioned by producer so a single producer's entries land on
// the same partition in order.
type Sink struct {
	cfg      Config
	log      *logrus.Entry
	producer sarama.SyncProducer
}

// New dials the configured brokers eagerly so configuration errors
// surface before any entry is lost, mirroring the teacher's
// NewKafkaSink validation-at-construction pattern.
func New(cfg Config, log *logrus.Entry) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka export sink: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka export sink: no topic configured")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	saramaCfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("kafka export sink: %w", err)
	}
	return &Sink{cfg: cfg, log: log, producer: producer}, nil
}

func (s *Sink) Start(ctx context.Context) error { return nil }

func (s *Sink) Send(ctx context.Context, entries []*entry.LogEntry) error {
	sent, failed := 0, 0
	for _, e := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		value, err := json.Marshal(recordFor(e))
		if err != nil {
			failed++
			continue
		}
		msg := &sarama.ProducerMessage{
			Topic: s.cfg.Topic,
			Key:   sarama.StringEncoder(e.Producer),
			Value: sarama.ByteEncoder(value),
		}
		if _, _, err := s.producer.SendMessage(msg); err != nil {
			failed++
			continue
		}
		sent++
	}
	if s.log != nil {
		s.log.WithFields(logrus.Fields{"sent": sent, "failed": failed, "topic": s.cfg.Topic}).Info("kafka export sink: batch published")
	}
	if failed > 0 {
		return fmt.Errorf("kafka export sink: %d/%d entries failed to publish", failed, len(entries))
	}
	return nil
}

func (s *Sink) Stop() error {
	return s.producer.Close()
}

func (s *Sink) IsHealthy() bool {
	return s.producer != nil
}

func recordFor(e *entry.LogEntry) map[string]any {
	rec := map[string]any{
		"seq":      e.Seq,
		"ts":       e.Ts.Format(time.RFC3339Nano),
		"source":   e.Source.String(),
		"producer": e.Producer,
		"message":  e.Message,
		"raw":      e.Raw,
		"fields":   e.Fields,
	}
	if e.Level != nil {
		rec["level"] = e.Level.String()
	}
	return rec
}
