// Copyright 2025 James Ross
package pipeline

import "github.com/coppersystems/pipelined/internal/node"

// NodeEntry is one constructed node within a FinalizedGraph, indexed by its
// position in Nodes.
type NodeEntry struct {
	ID       NodeID
	NodeType string
	Node     node.Node
}

// EdgeEntry is one validated edge within a FinalizedGraph, referencing its
// endpoints by index into Nodes rather than by NodeID, so the runner never
// does a map lookup on the hot path.
type EdgeEntry struct {
	ID         EdgeID
	SourceNode int
	SourcePort string
	TargetNode int
	TargetPort string
}

// FinalizedGraph is the output of Build: a flat arena of constructed nodes
// and validated edges, plus adjacency indices for the runner's signal
// propagation and for diagnostics like TopologicalSort.
type FinalizedGraph struct {
	Nodes []NodeEntry
	Edges []EdgeEntry

	// OutAdj[i] lists the indices into Edges of every edge whose source is
	// Nodes[i]; InAdj[i] lists the indices of every edge whose target is
	// Nodes[i].
	OutAdj [][]int
	InAdj  [][]int
}

func newFinalizedGraph(nodes []NodeEntry, edges []EdgeEntry) *FinalizedGraph {
	g := &FinalizedGraph{
		Nodes:  nodes,
		Edges:  edges,
		OutAdj: make([][]int, len(nodes)),
		InAdj:  make([][]int, len(nodes)),
	}
	for i, e := range edges {
		g.OutAdj[e.SourceNode] = append(g.OutAdj[e.SourceNode], i)
		g.InAdj[e.TargetNode] = append(g.InAdj[e.TargetNode], i)
	}
	return g
}

// TopologicalSort returns the node indices of g in a valid build order using
// Kahn's algorithm, or false if g contains a cycle. Build always rejects
// cyclic graphs before returning one, so this is only used for diagnostics
// (e.g. choosing an execution order to log) rather than as a correctness
// check at runtime.
func (g *FinalizedGraph) TopologicalSort() ([]int, bool) {
	indegree := make([]int, len(g.Nodes))
	for _, e := range g.Edges {
		indegree[e.TargetNode]++
	}

	queue := make([]int, 0, len(g.Nodes))
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, len(g.Nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, edgeIdx := range g.OutAdj[n] {
			tgt := g.Edges[edgeIdx].TargetNode
			indegree[tgt]--
			if indegree[tgt] == 0 {
				queue = append(queue, tgt)
			}
		}
	}

	return order, len(order) == len(g.Nodes)
}
