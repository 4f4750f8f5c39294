// Package stdin implements the standard-input feed: reads line-delimited
// bytes from os.Stdin until end-of-stream, then terminates cleanly, per
// spec.md §4.1's "Standard-input feed".
package stdin

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"fml/internal/entry"
	"fml/internal/types"
)

const producerName = "stdin"

// Feed reads newline-delimited input from an io.Reader (os.Stdin in
// production) and dispatches each line as a RawLine.
type Feed struct {
	r          io.Reader
	dispatcher types.Dispatcher
	log        *logrus.Entry

	done chan struct{}
}

// New builds a stdin feed reading from r.
func New(r io.Reader, dispatcher types.Dispatcher, log *logrus.Entry) *Feed {
	return &Feed{r: r, dispatcher: dispatcher, log: log, done: make(chan struct{})}
}

// Start blocks reading lines until r is exhausted or ctx is cancelled.
// Empty input produces zero entries and a clean shutdown, per spec.md.
func (f *Feed) Start(ctx context.Context) error {
	defer close(f.done)

	scanner := bufio.NewScanner(f.r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		raw := types.RawLine{
			Source:   entry.StandardInput,
			Producer: producerName,
			Raw:      scanner.Text(),
			IngestTs: time.Now().UnixNano(),
		}
		if err := f.dispatcher.Handle(ctx, raw); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logf(err)
		}
	}
	if err := scanner.Err(); err != nil {
		f.logf(err)
	}
	return nil
}

func (f *Feed) logf(err error) {
	if f.log != nil {
		f.log.WithError(err).Warn("stdin feed: dispatch error")
	}
}

// Stop is a no-op: Start already returns once the reader is exhausted or
// ctx is cancelled, there is no separate resource to release.
func (f *Feed) Stop() error { return nil }

var _ types.Monitor = (*Feed)(nil)
