// Package netgraph builds a directed graph view over a network's neurons and
// enabled connections. Cycle checks, evaluation order and depth all read the
// same view so they agree on what "enabled" and "reachable" mean.
package netgraph

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Edge is a directed connection between two neuron ids.
type Edge struct {
	From int
	To   int
}

// View is an arena of neuron ids plus an explicit edge list, backed by a
// gonum directed graph.
type View struct {
	ids   []int
	edges []Edge
	g     *simple.DirectedGraph
	// self-loops can't live in a simple.DirectedGraph, so they are tracked here.
	selfLoops map[int]bool
}

// Build creates a view from neuron ids and the edges the caller considers
// live (normally the enabled connections). Edge endpoints missing from ids are
// added to the arena.
func Build(ids []int, edges []Edge) *View {
	v := &View{
		g:         simple.NewDirectedGraph(),
		selfLoops: make(map[int]bool),
	}
	seen := make(map[int]bool, len(ids))
	add := func(id int) {
		if seen[id] {
			return
		}
		seen[id] = true
		v.ids = append(v.ids, id)
		v.g.AddNode(simple.Node(id))
	}
	for _, id := range ids {
		add(id)
	}
	for _, e := range edges {
		add(e.From)
		add(e.To)
		v.edges = append(v.edges, e)
		if e.From == e.To {
			v.selfLoops[e.From] = true
			continue
		}
		v.g.SetEdge(v.g.NewEdge(simple.Node(e.From), simple.Node(e.To)))
	}
	sort.Ints(v.ids)
	return v
}

// AddEdge adds a live edge to the view, adding missing endpoints.
func (v *View) AddEdge(e Edge) {
	for _, id := range []int{e.From, e.To} {
		if !v.Has(id) {
			v.g.AddNode(simple.Node(id))
			v.ids = append(v.ids, id)
			sort.Ints(v.ids)
		}
	}
	v.edges = append(v.edges, e)
	if e.From == e.To {
		v.selfLoops[e.From] = true
		return
	}
	v.g.SetEdge(v.g.NewEdge(simple.Node(e.From), simple.Node(e.To)))
}

// IDs returns the sorted neuron ids in the view.
func (v *View) IDs() []int {
	out := make([]int, len(v.ids))
	copy(out, v.ids)
	return out
}

// Edges returns the edge list the view was built from.
func (v *View) Edges() []Edge {
	out := make([]Edge, len(v.edges))
	copy(out, v.edges)
	return out
}

// Has reports whether id is in the view.
func (v *View) Has(id int) bool {
	return v.g.Node(int64(id)) != nil
}

// HasEdge reports whether a live edge from -> to exists.
func (v *View) HasEdge(from, to int) bool {
	if from == to {
		return v.selfLoops[from]
	}
	return v.g.HasEdgeFromTo(int64(from), int64(to))
}

// Reachable reports whether to can be reached from from along live edges.
// A node always reaches itself.
func (v *View) Reachable(from, to int) bool {
	if from == to {
		return true
	}
	a, b := v.g.Node(int64(from)), v.g.Node(int64(to))
	if a == nil || b == nil {
		return false
	}
	return topo.PathExistsIn(v.g, a, b)
}

// WouldCycle reports whether adding src -> dst would close a cycle, i.e.
// whether src is already reachable from dst.
func (v *View) WouldCycle(src, dst int) bool {
	return v.Reachable(dst, src)
}

// Successors returns the sorted targets of live edges leaving id.
func (v *View) Successors(id int) []int {
	var out []int
	if v.g.Node(int64(id)) == nil {
		return out
	}
	it := v.g.From(int64(id))
	for it.Next() {
		out = append(out, int(it.Node().ID()))
	}
	if v.selfLoops[id] {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Predecessors returns the sorted sources of live edges entering id.
func (v *View) Predecessors(id int) []int {
	var out []int
	if v.g.Node(int64(id)) == nil {
		return out
	}
	it := v.g.To(int64(id))
	for it.Next() {
		out = append(out, int(it.Node().ID()))
	}
	if v.selfLoops[id] {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Order returns an evaluation order produced by Kahn's algorithm. Ready nodes
// are taken smallest id first so the order is deterministic. An error is
// returned when the live edges contain a cycle.
func (v *View) Order() ([]int, error) {
	inDegree := make(map[int]int, len(v.ids))
	for _, id := range v.ids {
		inDegree[id] = len(v.Predecessors(id))
	}

	queue := []int{}
	for _, id := range v.ids {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]int, 0, len(v.ids))
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		order = append(order, u)
		for _, w := range v.Successors(u) {
			inDegree[w]--
			if inDegree[w] == 0 {
				queue = append(queue, w)
			}
		}
		sort.Ints(queue)
	}

	if len(order) != len(v.ids) {
		return nil, fmt.Errorf("netgraph: cycle detected (ordered %d of %d nodes)", len(order), len(v.ids))
	}
	return order, nil
}

// IsAcyclic reports whether the live edges form a DAG.
func (v *View) IsAcyclic() bool {
	_, err := v.Order()
	return err == nil
}

// Depth returns, for every node, the length of the longest live path ending
// at it. Source nodes have depth 0.
func (v *View) Depth() (map[int]int, error) {
	order, err := v.Order()
	if err != nil {
		return nil, err
	}
	depth := make(map[int]int, len(order))
	for _, id := range order {
		d := 0
		for _, p := range v.Predecessors(id) {
			if depth[p]+1 > d {
				d = depth[p] + 1
			}
		}
		depth[id] = d
	}
	return depth, nil
}

// MaxDepth returns the depth of the deepest node.
func (v *View) MaxDepth() (int, error) {
	depth, err := v.Depth()
	if err != nil {
		return 0, err
	}
	deepest := 0
	for _, d := range depth {
		if d > deepest {
			deepest = d
		}
	}
	return deepest, nil
}
