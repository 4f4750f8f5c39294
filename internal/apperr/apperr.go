// Package apperr defines the sentinel error taxonomy from spec.md §7, so
// callers can errors.Is/errors.As against a stable kind regardless of the
// wrapped detail.
package apperr

import "errors"

var (
	// ErrSourceTransient marks a feed error that should trigger reconnect
	// with backoff rather than surface as fatal (network blip, I/O hiccup).
	ErrSourceTransient = errors.New("apperr: transient source error")

	// ErrSourceFatal marks a feed configuration error surfaced to the
	// caller at startup (unreachable control endpoint, unreadable path
	// with no glob match).
	ErrSourceFatal = errors.New("apperr: fatal source error")

	// ErrParse marks a normalizer or query-parser failure.
	ErrParse = errors.New("apperr: parse error")

	// ErrEncoding marks an export format-encoding failure.
	ErrEncoding = errors.New("apperr: encoding error")

	// ErrStore marks an invariant violation in the ring store (should
	// never surface in practice; appends are infallible per spec.md §4.3).
	ErrStore = errors.New("apperr: store error")

	// ErrQuery marks a malformed search query (bad regex, unknown key).
	ErrQuery = errors.New("apperr: query error")

	// ErrExportSink marks a sink write failure during export.
	ErrExportSink = errors.New("apperr: export sink error")
)

// Wrap annotates err with kind so errors.Is(result, kind) succeeds while
// preserving err's own message and errors.Unwrap chain.
func Wrap(kind error, err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: kind, err: err}
}

type wrapped struct {
	kind error
	err  error
}

func (w *wrapped) Error() string { return w.kind.Error() + ": " + w.err.Error() }
func (w *wrapped) Unwrap() []error {
	return []error{w.kind, w.err}
}
