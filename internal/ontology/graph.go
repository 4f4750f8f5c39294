// Package ontology builds the directed weighted term graph the search
// engine's greedy expansion walks, plus an FST-backed prefix index over the
// same term set.
//
// The graph is constructed once at process start from an embedded edge
// table and is immutable thereafter, per spec.md §3's "Ontology graph"
// definition.
package ontology

import (
	"container/heap"
	"sort"
)

// edge is one directed entry in the embedded table: a reaches b at any
// greed >= weight.
type edge struct {
	a, b   string
	weight int
}

// Graph is the immutable directed weighted ontology, term -> neighbors.
type Graph struct {
	adj   map[string][]neighbor
	terms []string // sorted, deduplicated; backs the FST index
	fst   *fstIndex
}

type neighbor struct {
	term   string
	weight int
}

// Build constructs the graph from the embedded edge table. Called once at
// startup; the result is shared read-only across all search calls.
func Build() *Graph {
	g := &Graph{adj: make(map[string][]neighbor)}
	seen := make(map[string]struct{})
	for _, e := range embeddedEdges {
		g.addDirected(e.a, e.b, e.weight)
		seen[e.a] = struct{}{}
		seen[e.b] = struct{}{}
	}
	g.terms = make([]string, 0, len(seen))
	for t := range seen {
		g.terms = append(g.terms, t)
	}
	sort.Strings(g.terms)
	for _, nbrs := range g.adj {
		sort.Slice(nbrs, func(i, j int) bool { return nbrs[i].weight < nbrs[j].weight })
	}
	g.fst = buildFST(g.terms)
	return g
}

func (g *Graph) addDirected(a, b string, w int) {
	g.adj[a] = append(g.adj[a], neighbor{term: b, weight: w})
}

// Terms returns every term known to the graph, sorted.
func (g *Graph) Terms() []string { return g.terms }

// Has reports whether t is a node in the graph.
func (g *Graph) Has(t string) bool {
	_, ok := g.adj[t]
	if ok {
		return true
	}
	i := sort.SearchStrings(g.terms, t)
	return i < len(g.terms) && g.terms[i] == t
}

// Expand performs a weighted BFS (Dijkstra, since edge weights are
// positive) from seed, admitting any node reachable by a path whose
// maximum edge weight is <= greed. Returns seed itself plus every reached
// term. For greed <= 0 it returns exactly {seed} without touching the
// graph.
func (g *Graph) Expand(seed string, greed int) map[string]struct{} {
	result := map[string]struct{}{seed: {}}
	if greed <= 0 {
		return result
	}
	dist := map[string]int{seed: 0}
	pq := &distHeap{{term: seed, dist: 0}}
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(distItem)
		if cur.dist > dist[cur.term] {
			continue
		}
		for _, nb := range g.adj[cur.term] {
			if nb.weight > greed {
				continue // edges only admit traversal at greed >= weight
			}
			// path cost is the max weight along the path, not the sum: a
			// term is reachable at greed g if some path's bottleneck edge
			// is <= g.
			nd := maxInt(cur.dist, nb.weight)
			if prev, ok := dist[nb.term]; !ok || nd < prev {
				dist[nb.term] = nd
				heap.Push(pq, distItem{term: nb.term, dist: nd})
			}
		}
	}
	for t := range dist {
		result[t] = struct{}{}
	}
	return result
}

// ExpandWithDistance is like Expand but also reports, for every reached
// term, the minimum greed at which it becomes reachable from seed — used
// by the search package to rank expansion hits by distance.
func (g *Graph) ExpandWithDistance(seed string, greed int) map[string]int {
	dist := map[string]int{seed: 0}
	if greed <= 0 {
		return dist
	}
	pq := &distHeap{{term: seed, dist: 0}}
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(distItem)
		if cur.dist > dist[cur.term] {
			continue
		}
		for _, nb := range g.adj[cur.term] {
			if nb.weight > greed {
				continue
			}
			nd := maxInt(cur.dist, nb.weight)
			if prev, ok := dist[nb.term]; !ok || nd < prev {
				dist[nb.term] = nd
				heap.Push(pq, distItem{term: nb.term, dist: nd})
			}
		}
	}
	return dist
}

// PrefixScan returns every ontology term sharing the given prefix (length
// >= 3 is the caller's responsibility to enforce per spec.md §4.4).
func (g *Graph) PrefixScan(prefix string) []string {
	return g.fst.prefixScan(prefix)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type distItem struct {
	term string
	dist int
}

type distHeap []distItem

func (h distHeap) Len() int            { return len(h) }
func (h distHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h distHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *distHeap) Push(x interface{}) { *h = append(*h, x.(distItem)) }
func (h *distHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
