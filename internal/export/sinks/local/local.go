// Package local implements the required stdout/file export sink, adapted
// from the teacher's internal/sinks/local_file_sink.go buffering/flush
// discipline (stripped of disk-quota and rotation bookkeeping, which this
// sink's single-shot export doesn't need).
package local

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"fml/internal/entry"
	"fml/internal/export"
)

// Sink wraps an io.Writer (stdout in headless mode, or a file opened for
// --output) and encodes entries in the format fixed at construction.
type Sink struct {
	w                io.Writer
	closer           io.Closer
	format           export.Format
	suppressMetadata bool
	log              *logrus.Entry
	buf              *bufio.Writer
}

// NewStdout builds a sink writing to os.Stdout; Stop never closes it.
func NewStdout(format export.Format, suppressMetadata bool, log *logrus.Entry) *Sink {
	return &Sink{w: os.Stdout, format: format, suppressMetadata: suppressMetadata, log: log}
}

// NewFile opens path for writing (truncating any existing content) and
// returns a sink that closes it on Stop.
func NewFile(path string, format export.Format, suppressMetadata bool, log *logrus.Entry) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Sink{w: f, closer: f, format: format, suppressMetadata: suppressMetadata, log: log}, nil
}

func (s *Sink) Start(ctx context.Context) error {
	s.buf = bufio.NewWriterSize(s.w, 64*1024)
	return nil
}

func (s *Sink) Send(ctx context.Context, entries []*entry.LogEntry) error {
	switch s.format {
	case export.FormatJSONL:
		return export.EncodeJSONL(s.buf, entries, s.suppressMetadata)
	case export.FormatCSV:
		return export.EncodeCSV(s.buf, entries, s.suppressMetadata)
	default:
		return export.EncodeRaw(s.buf, entries)
	}
}

func (s *Sink) Stop() error {
	if s.buf != nil {
		if err := s.buf.Flush(); err != nil {
			return err
		}
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (s *Sink) IsHealthy() bool { return true }
