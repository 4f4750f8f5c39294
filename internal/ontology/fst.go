package ontology

import (
	"bytes"

	"github.com/blevesearch/vellum"
)

// fstIndex wraps a vellum.FST over the sorted ontology term set, giving
// O(prefix length) prefix scans instead of a linear scan over all terms.
type fstIndex struct {
	fst   *vellum.FST
	terms []string // kept for the linear fallback if the FST failed to build
}

// buildFST builds the FST once, at graph construction time. terms must
// already be sorted (vellum requires keys inserted in lexicographic
// order). A build failure degrades to a linear-scan fallback rather than
// panicking — the ontology is still fully usable, just without the
// asymptotic win the FST provides.
func buildFST(terms []string) *fstIndex {
	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return &fstIndex{terms: terms}
	}
	for i, t := range terms {
		if i > 0 && t == terms[i-1] {
			continue // vellum rejects duplicate/out-of-order keys
		}
		if err := builder.Insert([]byte(t), uint64(i)); err != nil {
			return &fstIndex{terms: terms}
		}
	}
	if err := builder.Close(); err != nil {
		return &fstIndex{terms: terms}
	}
	f, err := vellum.Load(buf.Bytes())
	if err != nil {
		return &fstIndex{terms: terms}
	}
	return &fstIndex{fst: f, terms: terms}
}

// prefixUpperBound returns the smallest key greater than every key sharing
// prefix p, by incrementing its last byte (and dropping trailing 0xFF
// bytes) — the standard trick vellum's own range-iteration examples use
// to turn a prefix into a half-open [p, upper) range.
func prefixUpperBound(p []byte) []byte {
	upper := append([]byte(nil), p...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xFF {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil // prefix is all 0xFF bytes: no upper bound, scan to end
}

func (idx *fstIndex) prefixScan(prefix string) []string {
	if idx.fst == nil {
		return idx.linearScan(prefix)
	}
	start := []byte(prefix)
	end := prefixUpperBound(start)

	var it *vellum.FSTIterator
	var err error
	if end == nil {
		it, err = idx.fst.Iterator(start, nil)
	} else {
		it, err = idx.fst.Iterator(start, end)
	}
	if err == vellum.ErrIteratorDone {
		return nil
	}
	if err != nil {
		return idx.linearScan(prefix)
	}
	var out []string
	for err == nil {
		k, _ := it.Current()
		out = append(out, string(k))
		err = it.Next()
	}
	return out
}

func (idx *fstIndex) linearScan(prefix string) []string {
	var out []string
	for _, t := range idx.terms {
		if len(t) >= len(prefix) && t[:len(prefix)] == prefix {
			out = append(out, t)
		}
	}
	return out
}
