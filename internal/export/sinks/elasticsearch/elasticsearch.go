// Package elasticsearch adapts the teacher's
// internal/sinks/elasticsearch_sink.go bulk indexer into an export sink:
// it bulk-indexes an exported triage session's entries into a
// date-patterned index, repurposing the teacher's document shape.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"fml/internal/entry"
)

// Config configures the export-time Elasticsearch sink.
type Config struct {
	Addresses   []string
	IndexPrefix string // index is IndexPrefix + "-" + YYYY.MM.DD
	Username    string
	Password    string
}

// Sink bulk-indexes exported entries into Elasticsearch.
type Sink struct {
	cfg    Config
	log    *logrus.Entry
	client *elasticsearch.Client
}

// document mirrors the teacher's ElasticsearchDocument shape.
type document struct {
	Timestamp time.Time      `json:"@timestamp"`
	Message   string         `json:"message"`
	Level     string         `json:"level,omitempty"`
	Source    string         `json:"source,omitempty"`
	Producer  string         `json:"producer,omitempty"`
	Seq       uint64         `json:"seq"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// New builds a client against the configured addresses.
func New(cfg Config, log *logrus.Entry) (*Sink, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("elasticsearch export sink: no addresses configured")
	}
	if cfg.IndexPrefix == "" {
		cfg.IndexPrefix = "fml-export"
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch export sink: %w", err)
	}
	return &Sink{cfg: cfg, log: log, client: client}, nil
}

func (s *Sink) Start(ctx context.Context) error { return nil }

func (s *Sink) Send(ctx context.Context, entries []*entry.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var buf bytes.Buffer
	index := s.indexName()
	for _, e := range entries {
		meta := map[string]any{"index": map[string]any{"_index": index}}
		metaLine, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')

		doc := toDocument(e)
		docLine, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{Body: strings.NewReader(buf.String())}
	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("elasticsearch export sink: bulk: %w", err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return fmt.Errorf("elasticsearch export sink: bulk returned status %s", resp.Status())
	}
	if s.log != nil {
		s.log.WithFields(logrus.Fields{"entries": len(entries), "index": index}).Info("elasticsearch export sink: bulk indexed batch")
	}
	return nil
}

func (s *Sink) Stop() error { return nil }

func (s *Sink) IsHealthy() bool { return s.client != nil }

func (s *Sink) indexName() string {
	return s.cfg.IndexPrefix + "-" + time.Now().UTC().Format("2006.01.02")
}

func toDocument(e *entry.LogEntry) document {
	doc := document{
		Timestamp: e.Ts,
		Message:   e.Message,
		Source:    e.Source.String(),
		Producer:  e.Producer,
		Seq:       e.Seq,
		Fields:    e.Fields,
	}
	if e.Level != nil {
		doc.Level = e.Level.String()
	}
	return doc
}
