package routing

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// A Link is an undirected connection between two nodes, weighted by its
// length.
type Link struct {
	A, B   string
	Length float64
}

// ShortestPathTables computes, for every node, the forwarding rules that
// follow the shortest paths over the links. Among equally short paths, the
// next hop with the smallest name is chosen. Unreachable destinations get no
// rule.
func ShortestPathTables(
	nodes []string,
	links []Link,
) (map[string][]Rule, error) {
	names := append([]string(nil), nodes...)
	sort.Strings(names)

	ids := make(map[string]int64, len(names))
	for i, n := range names {
		if _, ok := ids[n]; ok {
			return nil, fmt.Errorf("routing: duplicated node %q", n)
		}

		ids[n] = int64(i)
	}

	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for _, n := range names {
		g.AddNode(simple.Node(ids[n]))
	}

	for _, l := range links {
		if err := addLink(g, ids, l); err != nil {
			return nil, err
		}
	}

	tables := make(map[string][]Rule, len(names))
	for _, src := range names {
		tree := path.DijkstraAllFrom(simple.Node(ids[src]), g)
		rules := []Rule{}

		for _, dst := range names {
			if dst == src {
				continue
			}

			paths, _ := tree.AllTo(ids[dst])
			if next, ok := smallestNextHop(paths, names); ok {
				rules = append(rules, Rule{Dst: dst, NextHop: next})
			}
		}

		tables[src] = rules
	}

	return tables, nil
}

func addLink(g *simple.WeightedUndirectedGraph, ids map[string]int64, l Link) error {
	a, okA := ids[l.A]
	b, okB := ids[l.B]

	switch {
	case !okA || !okB:
		return fmt.Errorf("routing: link %s-%s: %w", l.A, l.B, ErrUnknownDestination)
	case a == b:
		return fmt.Errorf("routing: link %s-%s connects a node to itself", l.A, l.B)
	case l.Length < 0 || math.IsNaN(l.Length):
		return fmt.Errorf("routing: link %s-%s has length %g", l.A, l.B, l.Length)
	}

	if e := g.WeightedEdge(a, b); e != nil && e.Weight() <= l.Length {
		return nil
	}

	g.SetWeightedEdge(simple.WeightedEdge{
		F: simple.Node(a),
		T: simple.Node(b),
		W: l.Length,
	})

	return nil
}

func smallestNextHop(paths [][]graph.Node, names []string) (string, bool) {
	next := ""
	found := false

	for _, p := range paths {
		if len(p) < 2 {
			continue
		}

		candidate := names[p[1].ID()]
		if !found || candidate < next {
			next = candidate
			found = true
		}
	}

	return next, found
}
