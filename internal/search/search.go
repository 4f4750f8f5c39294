// Package search implements the greedy semantic expansion query engine:
// parse, pre-filter via the store's secondary indexes, expand free terms
// over the ontology graph, match, and rank.
package search

import (
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/surgebase/porter2"

	"fml/internal/entry"
	"fml/internal/ontology"
	"fml/internal/types"
)

// DefaultResultCap bounds the returned set per spec.md §4.4: "may cap the
// returned set at a large bound (default 10,000)". The cap never changes
// whether a candidate could have matched — it is applied after ranking.
const DefaultResultCap = 10_000

// prefixScanMinLen is the minimum free-term length before an FST prefix
// scan is attempted, per spec.md §4.4 ("sharing a prefix with t (length
// >= 3)").
const prefixScanMinLen = 3

// Engine runs search(query, greed) against a store snapshot using a fixed
// ontology graph built once at startup.
type Engine struct {
	graph *ontology.Graph

	onSearch func(dur time.Duration, expansionSize int) // optional hook, e.g. internal/metrics
}

// New constructs a search engine over the given ontology graph.
func New(graph *ontology.Graph) *Engine {
	return &Engine{graph: graph}
}

// OnSearch registers a callback invoked after every Search call with its
// wall-clock duration and the number of terms its free-term expansion
// produced, used by internal/metrics to observe search latency and
// expansion size without this package depending on metrics.
func (eng *Engine) OnSearch(fn func(dur time.Duration, expansionSize int)) {
	eng.onSearch = fn
}

// rankBucket orders matches primary key descending per spec.md §4.4: exact
// free-term hits first, then expansion hits by shortest ontology
// distance, then regex-only hits last. Lower bucket value ranks higher.
type rankBucket int

const (
	bucketExact rankBucket = iota
	bucketExpansion
	bucketRegex
)

type scored struct {
	e        *entry.LogEntry
	bucket   rankBucket
	distance int // meaningful only within bucketExpansion
	fuzzy    int // fuzzysearch tie-break score within (bucket, seq)
}

// Search runs the full pipeline: parse (done by the caller via ParseQuery,
// so callers can surface parse errors before touching the store),
// pre-filter, expand, match, rank, cap.
func (eng *Engine) Search(snap types.Snapshot, q *Query, greed int) []*entry.LogEntry {
	start := time.Now()
	candidates := eng.preFilter(snap, q)
	expansions, negSeeded := eng.expandFreeTerms(q.Free, greed)
	if eng.onSearch != nil {
		defer func() {
			eng.onSearch(time.Since(start), len(expansions))
		}()
	}

	var out []scored
	for _, e := range candidates {
		if !eng.matchesFilters(e, q) {
			continue
		}
		bucket, dist, matched := eng.classify(e, q, expansions, negSeeded)
		if !matched {
			continue
		}
		out = append(out, scored{e: e, bucket: bucket, distance: dist, fuzzy: fuzzyScore(e, q)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.bucket != b.bucket {
			return a.bucket < b.bucket
		}
		if a.bucket == bucketExpansion && a.distance != b.distance {
			return a.distance < b.distance
		}
		if a.e.Seq != b.e.Seq {
			return a.e.Seq > b.e.Seq
		}
		return a.fuzzy < b.fuzzy
	})

	if len(out) > DefaultResultCap {
		out = out[:DefaultResultCap]
	}
	result := make([]*entry.LogEntry, len(out))
	for i, s := range out {
		result[i] = s.e
	}
	return result
}

// preFilter narrows candidates using the store's secondary indexes where a
// filter token allows it (level, producer); other filter keys are applied
// later in matchesFilters since the store has no index for arbitrary
// fields.
func (eng *Engine) preFilter(snap types.Snapshot, q *Query) []*entry.LogEntry {
	var byLevel, byProducer []*entry.LogEntry
	haveLevel, haveProducer := false, false

	for _, f := range q.Filters {
		switch f.key {
		case "level":
			if lvl, ok := entry.ParseLevel(f.value); ok {
				byLevel = snap.ByLevelAtLeast(lvl)
				haveLevel = true
			}
		case "producer":
			byProducer = snap.ByProducer(f.value)
			haveProducer = true
		}
	}

	switch {
	case haveLevel && haveProducer:
		return intersectBySeq(byLevel, byProducer)
	case haveLevel:
		return byLevel
	case haveProducer:
		return byProducer
	default:
		return snap.All()
	}
}

func intersectBySeq(a, b []*entry.LogEntry) []*entry.LogEntry {
	seqs := make(map[uint64]struct{}, len(b))
	for _, e := range b {
		seqs[e.Seq] = struct{}{}
	}
	out := make([]*entry.LogEntry, 0, len(a))
	for _, e := range a {
		if _, ok := seqs[e.Seq]; ok {
			out = append(out, e)
		}
	}
	return out
}

// matchesFilters applies every filter token to e: level and producer are
// re-checked here as well as in preFilter's index lookup, and source and
// generic field:value filters are applied only here.
func (eng *Engine) matchesFilters(e *entry.LogEntry, q *Query) bool {
	for _, f := range q.Filters {
		switch f.key {
		case "level":
			lvl, ok := entry.ParseLevel(f.value)
			if ok && (e.Level == nil || *e.Level < lvl) {
				return false
			}
		case "producer":
			if e.Producer != f.value {
				return false
			}
		case "source":
			if !strings.EqualFold(e.Source.String(), f.value) {
				return false
			}
		default:
			v, ok := e.Fields[f.key]
			if !ok || !strings.Contains(strings.ToLower(entry.FieldString(v)), strings.ToLower(f.value)) {
				return false
			}
		}
	}
	return true
}

// expandFreeTerms expands every free term via the ontology at the
// requested greed, folding in FST prefix-scan hits and negative-prefix
// seeding, and returns the union as term -> minimum distance, plus the set
// of terms introduced purely via negative-prefix rules (for diagnostics;
// currently unused by ranking beyond being part of the same expansion
// map).
func (eng *Engine) expandFreeTerms(freeTerms []string, greed int) (map[string]int, map[string]struct{}) {
	expansions := make(map[string]int)
	negSeeded := make(map[string]struct{})

	for _, t := range freeTerms {
		merge(expansions, map[string]int{t: 0})
		if greed <= 0 {
			continue
		}
		merge(expansions, eng.graph.ExpandWithDistance(t, greed))

		stemmed := porter2.Stem(t)
		if greed >= 2 && len(stemmed) >= prefixScanMinLen {
			prefixDist := minInt(greed, 3)
			for _, hit := range eng.graph.PrefixScan(stemmed) {
				mergeOne(expansions, hit, prefixDist)
			}
			for _, rule := range matchingNegPrefixRules(stemmed) {
				if rule.dist <= greed {
					negSeeded[rule.seed] = struct{}{}
					// Terms reached through a rule's seed are never closer
					// than the rule's own distance.
					for term, d := range eng.graph.ExpandWithDistance(rule.seed, greed) {
						if d < rule.dist {
							d = rule.dist
						}
						mergeOne(expansions, term, d)
					}
				}
			}
		}
	}
	return expansions, negSeeded
}

func merge(dst, src map[string]int) {
	for term, dist := range src {
		mergeOne(dst, term, dist)
	}
}

func mergeOne(dst map[string]int, term string, dist int) {
	if prev, ok := dst[term]; !ok || dist < prev {
		dst[term] = dist
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// classify determines whether e matches the query's free terms or
// regexes, and if so at which rank bucket.
func (eng *Engine) classify(e *entry.LogEntry, q *Query, expansions map[string]int, _ map[string]struct{}) (rankBucket, int, bool) {
	matchedExact := false
	bestExpansionDist := -1

	e.Searchable(func(s string) bool {
		ls := strings.ToLower(s)
		for term, dist := range expansions {
			if !strings.Contains(ls, term) {
				continue
			}
			if dist == 0 {
				matchedExact = true
			} else if bestExpansionDist == -1 || dist < bestExpansionDist {
				bestExpansionDist = dist
			}
		}
		return true
	})

	if matchedExact {
		return bucketExact, 0, true
	}
	if bestExpansionDist != -1 {
		return bucketExpansion, bestExpansionDist, true
	}

	for _, re := range q.Regexes {
		if re.MatchString(e.Raw) || re.MatchString(e.Message) {
			return bucketRegex, 0, true
		}
		for _, v := range e.Fields {
			if re.MatchString(entry.FieldString(v)) {
				return bucketRegex, 0, true
			}
		}
	}

	// A query with no free terms and no regexes (filters only) matches
	// every pre-filtered candidate.
	if len(expansions) == 0 && len(q.Regexes) == 0 {
		return bucketExact, 0, true
	}
	return bucketExact, 0, false
}

// fuzzyScore is the fuzzysearch tie-break used within a (bucket, seq)
// group; it never moves a candidate between buckets or changes set
// membership, so it cannot affect the monotonicity invariant. Lower is a
// closer fuzzy match; an entry no free term matches scores fuzzyNoMatch.
func fuzzyScore(e *entry.LogEntry, q *Query) int {
	best := fuzzyNoMatch
	for _, t := range q.Free {
		r := fuzzy.RankMatch(t, e.Message)
		if r < 0 {
			continue
		}
		if best == fuzzyNoMatch || r < best {
			best = r
		}
	}
	return best
}

// fuzzyNoMatch is the sentinel score for a free term with no fuzzy match
// against an entry's message at all (fuzzy.RankMatch itself returns -1 in
// that case).
const fuzzyNoMatch = 1 << 30
