// Copyright 2025 James Ross
package pipeline

import (
	"errors"
	"sort"

	"github.com/coppersystems/pipelined/internal/dispatcher"
	"github.com/coppersystems/pipelined/internal/node"
	"github.com/coppersystems/pipelined/internal/piper"
)

var errNoSuchPort = errors.New("pipeline: no such port")

// Build turns a parsed pipeline document into a FinalizedGraph, in five
// ordered steps: construct every node, validate every edge's endpoints and
// declared port types, reject streaming-blob fan-out, reject cycles, then
// assemble the arena. Node ids are visited in lexicographic order and edge
// ids likewise, so two Build calls over the same document report the same
// error for the same malformed input regardless of map iteration order.
// ctx carries the job's input map, so a reserved Input node whose name
// doesn't match one of ctx.Inputs (or whose declared data_type doesn't
// match that input's stub) fails here as a BuildError rather than once the
// job is already running.
func Build(d *dispatcher.Dispatcher, ctx *dispatcher.BuildContext, spec *JSON) (*FinalizedGraph, error) {
	nodeIDs := make([]NodeID, 0, len(spec.Nodes))
	for id := range spec.Nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })

	index := make(map[NodeID]int, len(nodeIDs))
	nodes := make([]NodeEntry, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		decl := spec.Nodes[id]
		if !d.Has(decl.NodeType) {
			return nil, &BuildError{Kind: ErrInvalidNodeType, Node: id, BadType: decl.NodeType}
		}
		n, err := d.Build(decl.NodeType, string(id), ctx, decl.Params)
		if err != nil {
			return nil, &BuildError{Kind: ErrInitNode, Node: id, Cause: err}
		}
		index[id] = len(nodes)
		nodes = append(nodes, NodeEntry{ID: id, NodeType: decl.NodeType, Node: n})
	}

	edgeIDs := make([]EdgeID, 0, len(spec.Edges))
	for id := range spec.Edges {
		edgeIDs = append(edgeIDs, id)
	}
	sort.Slice(edgeIDs, func(i, j int) bool { return edgeIDs[i] < edgeIDs[j] })

	// outUse tracks how many edges already claim each (node, output port)
	// pair, so a second edge fanning out of a Blob port is caught here
	// rather than as a double-send at runtime.
	outUse := make(map[int]map[string]int)

	edges := make([]EdgeEntry, 0, len(edgeIDs))
	for _, id := range edgeIDs {
		decl := spec.Edges[id]

		srcIdx, ok := index[decl.Source.Node]
		if !ok {
			return nil, &BuildError{Kind: ErrNoNode, EdgeID: id, Node: decl.Source.Node}
		}
		tgtIdx, ok := index[decl.Target.Node]
		if !ok {
			return nil, &BuildError{Kind: ErrNoNode, EdgeID: id, Node: decl.Target.Node}
		}

		srcStub, err := lookupOutputPort(nodes[srcIdx], decl.Source.Port)
		if err != nil {
			return nil, &BuildError{Kind: ErrNoSuchOutputPort, EdgeID: id, Node: decl.Source.Node, InvalidPort: decl.Source.Port}
		}
		tgtStub, err := lookupInputPort(nodes[tgtIdx], decl.Target.Port)
		if err != nil {
			return nil, &BuildError{Kind: ErrNoSuchInputPort, EdgeID: id, Node: decl.Target.Node, InvalidPort: decl.Target.Port}
		}

		if srcStub != nil && tgtStub != nil && !srcStub.Equal(*tgtStub) {
			return nil, &BuildError{
				Kind:       ErrTypeMismatch,
				EdgeID:     id,
				SourceStub: srcStub.String(),
				TargetStub: tgtStub.String(),
			}
		}

		if srcStub != nil && srcStub.Kind == piper.KindBlob {
			if outUse[srcIdx] == nil {
				outUse[srcIdx] = make(map[string]int)
			}
			outUse[srcIdx][decl.Source.Port]++
			if outUse[srcIdx][decl.Source.Port] > 1 {
				return nil, &BuildError{Kind: ErrBlobFanOut, Node: decl.Source.Node, InvalidPort: decl.Source.Port}
			}
		}

		edges = append(edges, EdgeEntry{
			ID:         id,
			SourceNode: srcIdx,
			SourcePort: decl.Source.Port,
			TargetNode: tgtIdx,
			TargetPort: decl.Target.Port,
		})
	}

	g := newFinalizedGraph(nodes, edges)
	if err := checkAcyclic(g); err != nil {
		return nil, err
	}
	return g, nil
}

func lookupOutputPort(n NodeEntry, port string) (*piper.Stub, error) {
	pd, ok := n.Node.(node.PortDeclarer)
	if !ok {
		return nil, nil
	}
	stub, ok := pd.OutputPorts()[port]
	if !ok {
		return nil, errNoSuchPort
	}
	return stub, nil
}

func lookupInputPort(n NodeEntry, port string) (*piper.Stub, error) {
	pd, ok := n.Node.(node.PortDeclarer)
	if !ok {
		return nil, nil
	}
	stub, ok := pd.InputPorts()[port]
	if !ok {
		return nil, errNoSuchPort
	}
	return stub, nil
}

// checkAcyclic runs a DFS with an explicit recursion stack over g's node
// indices, reporting the first back-edge found in deterministic (sorted
// edge id) order as a HasCycle BuildError.
func checkAcyclic(g *FinalizedGraph) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(g.Nodes))

	var visit func(i int) error
	visit = func(i int) error {
		color[i] = gray
		for _, edgeIdx := range g.OutAdj[i] {
			tgt := g.Edges[edgeIdx].TargetNode
			switch color[tgt] {
			case white:
				if err := visit(tgt); err != nil {
					return err
				}
			case gray:
				return &BuildError{Kind: ErrHasCycle, EdgeID: g.Edges[edgeIdx].ID}
			}
		}
		color[i] = black
		return nil
	}

	for i := range g.Nodes {
		if color[i] == white {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}
