package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fml/internal/export"
	"fml/internal/search"
)

func TestParseFormatAcceptsOnlyTheThreeDocumentedFormats(t *testing.T) {
	for _, f := range []string{"raw", "jsonl", "csv"} {
		got, err := parseFormat(f)
		require.NoError(t, err)
		assert.Equal(t, export.Format(f), got)
	}

	_, err := parseFormat("xml")
	assert.Error(t, err)
}

func TestScopeForWithNoQueryIsEntireStore(t *testing.T) {
	scope := scopeFor(nil, 0)
	assert.Equal(t, export.ScopeEntireStore, scope.Kind)
}

func TestScopeForWithQueryIsActiveFilter(t *testing.T) {
	q, err := search.ParseQuery("timeout")
	require.NoError(t, err)

	scope := scopeFor(q, 5)
	assert.Equal(t, export.ScopeActiveFilter, scope.Kind)
	assert.Same(t, q, scope.Query)
	assert.Equal(t, 5, scope.Greed)
}

func TestUsageErrorUnwrapsToUnderlyingError(t *testing.T) {
	inner := stubError("bad flag")
	wrapped := usageError{err: inner}
	assert.Equal(t, inner, wrapped.Unwrap())
	assert.Equal(t, "bad flag", wrapped.Error())
}

type stubError string

func (e stubError) Error() string { return string(e) }
