// Copyright 2025 James Ross

// Package pipeline implements the pipeline build step: deserializing a
// pipeline JSON document, resolving node types through a dispatcher,
// type-checking every edge, rejecting cycles and streaming-blob fan-out,
// and producing a FinalizedGraph the runner can execute.
package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/coppersystems/pipelined/internal/piper/param"
)

// NodeID identifies one node within a pipeline JSON document.
type NodeID string

// EdgeID identifies one edge within a pipeline JSON document.
type EdgeID string

// OutputPort names a (node, port) pair on the producing side of an edge.
type OutputPort struct {
	Node NodeID `json:"node"`
	Port string `json:"port"`
}

// InputPort names a (node, port) pair on the consuming side of an edge.
type InputPort struct {
	Node NodeID `json:"node"`
	Port string `json:"port"`
}

// NodeJSON is the wire shape of one node entry.
type NodeJSON struct {
	NodeType string                 `json:"node_type"`
	Params   map[string]param.Value `json:"params"`
}

// EdgeJSON is the wire shape of one edge entry.
type EdgeJSON struct {
	Source OutputPort `json:"source"`
	Target InputPort  `json:"target"`
}

// JSON is the wire shape of a whole pipeline, deserialized with unknown
// fields rejected at every level so a typo in a pipeline document fails
// loudly at build time instead of silently ignoring a field.
type JSON struct {
	Nodes map[NodeID]NodeJSON `json:"nodes"`
	Edges map[EdgeID]EdgeJSON `json:"edges"`
}

// ParseJSON decodes raw into a JSON pipeline document, rejecting any field
// not named above.
func ParseJSON(raw []byte) (*JSON, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var doc JSON
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("pipeline: parse: %w", err)
	}
	return &doc, nil
}
