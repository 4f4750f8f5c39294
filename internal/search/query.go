package search

import (
	"fmt"
	"regexp"
	"strings"

	"fml/internal/apperr"
)

// tokenKind classifies one whitespace-separated query token.
type tokenKind int

const (
	tokFree tokenKind = iota
	tokFilter
	tokRegex
)

type token struct {
	kind  tokenKind
	key   string // filter key, lowercased
	value string // filter value, free term, or regex source
}

// Query is a parsed search expression: a conjunction of key:value
// filters, /regex/ literals, and free terms subject to ontology expansion.
type Query struct {
	Raw     string
	Filters []token
	Free    []string
	Regexes []*regexp.Regexp
}

// ParseQuery splits raw into (filter set, free-term set, regex set) per
// spec.md §4.4's query syntax.
func ParseQuery(raw string) (*Query, error) {
	q := &Query{Raw: raw}
	for _, tok := range strings.Fields(raw) {
		switch {
		case len(tok) >= 2 && strings.HasPrefix(tok, "/") && strings.HasSuffix(tok, "/"):
			pattern := tok[1 : len(tok)-1]
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, apperr.Wrap(apperr.ErrQuery, fmt.Errorf("invalid regex %q: %w", pattern, err))
			}
			q.Regexes = append(q.Regexes, re)
		case strings.Contains(tok, ":"):
			parts := strings.SplitN(tok, ":", 2)
			q.Filters = append(q.Filters, token{
				kind:  tokFilter,
				key:   strings.ToLower(parts[0]),
				value: parts[1],
			})
		default:
			q.Free = append(q.Free, strings.ToLower(tok))
		}
	}
	return q, nil
}
