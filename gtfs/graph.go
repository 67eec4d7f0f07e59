package gtfs

import (
	"math"
	"sort"
)

// Stop is a graph node.
type Stop struct {
	ID   string
	Name string
	Lat  float64
	Lon  float64
}

// Edge joins two consecutive stops of TripID.
type Edge struct {
	From   string
	To     string
	TripID string
}

// Segment is an edge resolved to coordinates.
type Segment struct {
	FromLat float64 `json:"from_lat"`
	FromLon float64 `json:"from_lon"`
	ToLat   float64 `json:"to_lat"`
	ToLon   float64 `json:"to_lon"`
}

// StopGraph is a directed graph keyed by stop id. Edges[from][to] holds at
// most one edge per ordered stop pair. Edges may reference stops that are
// not in Nodes.
//
// Thread safety: safe for concurrent reads once built.
type StopGraph struct {
	Nodes map[string]Stop
	Edges map[string]map[string]Edge
}

func newStopGraph() *StopGraph {
	return &StopGraph{
		Nodes: map[string]Stop{},
		Edges: map[string]map[string]Edge{},
	}
}

func (g *StopGraph) addEdge(from, to, tripID string) {
	out, ok := g.Edges[from]
	if !ok {
		out = map[string]Edge{}
		g.Edges[from] = out
	}
	out[to] = Edge{From: from, To: to, TripID: tripID}
}

// NodeCount returns the number of stops.
func (g *StopGraph) NodeCount() int { return len(g.Nodes) }

// EdgeCount returns the number of distinct ordered stop pairs.
func (g *StopGraph) EdgeCount() int {
	n := 0
	for _, out := range g.Edges {
		n += len(out)
	}
	return n
}

// EdgeList returns edges sorted by From then To. A positive limit caps the
// result length.
func (g *StopGraph) EdgeList(limit int) []Edge {
	froms := make([]string, 0, len(g.Edges))
	for from := range g.Edges {
		froms = append(froms, from)
	}
	sort.Strings(froms)

	edges := make([]Edge, 0, g.EdgeCount())
	for _, from := range froms {
		tos := make([]string, 0, len(g.Edges[from]))
		for to := range g.Edges[from] {
			tos = append(tos, to)
		}
		sort.Strings(tos)
		for _, to := range tos {
			edges = append(edges, g.Edges[from][to])
			if limit > 0 && len(edges) == limit {
				return edges
			}
		}
	}
	return edges
}

// Segments resolves the first limit edges of EdgeList to coordinates.
// Edges whose stops are unknown or have no valid position are skipped, so
// fewer than limit segments may be returned.
func (g *StopGraph) Segments(limit int) []Segment {
	edges := g.EdgeList(limit)
	segs := make([]Segment, 0, len(edges))
	for _, e := range edges {
		from, ok1 := g.Nodes[e.From]
		to, ok2 := g.Nodes[e.To]
		if !ok1 || !ok2 || !from.located() || !to.located() {
			continue
		}
		segs = append(segs, Segment{FromLat: from.Lat, FromLon: from.Lon, ToLat: to.Lat, ToLon: to.Lon})
	}
	return segs
}

func (s Stop) located() bool {
	return !math.IsNaN(s.Lat) && !math.IsNaN(s.Lon)
}
