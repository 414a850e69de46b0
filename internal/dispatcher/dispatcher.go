// Copyright 2025 James Ross

// Package dispatcher implements the node type registry: the mapping from a
// pipeline JSON document's node_type strings to constructors that build a
// node.Node from bound parameters.
package dispatcher

import (
	"fmt"
	"sort"
	"sync"

	"github.com/coppersystems/pipelined/internal/node"
	"github.com/coppersystems/pipelined/internal/piper"
	"github.com/coppersystems/pipelined/internal/piper/param"
)

// InputNodeType is the reserved node type every pipeline implicitly
// supports: it has no declared inputs, one output named "out", and reads
// its value from the job's input map keyed by node id.
const InputNodeType = "Input"

// BuildContext carries the per-job state a Constructor needs beyond its own
// node id and bound parameters. Today that is only the job's input map, for
// the reserved Input type; a value is threaded through every Build call
// rather than only the types that currently use it, so adding a new
// build-time dependency later doesn't require touching every Constructor.
type BuildContext struct {
	Inputs map[string]piper.PipeData
}

// Constructor builds a node.Node from the id a pipeline JSON document gave
// this node instance, the job's build context, and its bound construction
// parameters. Most built-in node types ignore nodeID and ctx; the reserved
// Input type needs both to look itself up in the job's input map and fail
// construction if that input is missing or mistyped.
type Constructor func(nodeID string, ctx *BuildContext, params map[string]param.Value) (node.Node, error)

// ErrAlreadyRegistered is returned by Register when a type name is already
// taken, including the reserved Input type.
type ErrAlreadyRegistered struct{ TypeName string }

func (e *ErrAlreadyRegistered) Error() string {
	return fmt.Sprintf("dispatcher: node type %q is already registered", e.TypeName)
}

type registeredNode struct {
	paramSpec map[string]param.Spec
	ctor      Constructor
}

// Dispatcher is the process-wide registry of node type constructors.
// Registration happens once at startup; Build is called once per pipeline
// node during a job's build step.
type Dispatcher struct {
	mu    sync.RWMutex
	nodes map[string]registeredNode
}

// New returns an empty Dispatcher. Callers register the reserved Input type
// alongside every other built-in through nodes.RegisterBuiltins; Constructor
// carries the node's own id for exactly this reason.
func New() *Dispatcher {
	return &Dispatcher{nodes: make(map[string]registeredNode)}
}

// Register adds a node type. It rejects duplicate names, including a
// second registration of "Input".
func (d *Dispatcher) Register(typeName string, paramSpec map[string]param.Spec, ctor Constructor) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.nodes[typeName]; exists {
		return &ErrAlreadyRegistered{TypeName: typeName}
	}
	d.nodes[typeName] = registeredNode{paramSpec: paramSpec, ctor: ctor}
	return nil
}

// Has reports whether typeName is registered.
func (d *Dispatcher) Has(typeName string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.nodes[typeName]
	return ok
}

// ParamSpec returns the declared construction parameters for typeName.
func (d *Dispatcher) ParamSpec(typeName string) (map[string]param.Spec, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.nodes[typeName]
	return r.paramSpec, ok
}

// Build constructs a node.Node for typeName from the given node id, build
// context, and bound parameters. Parameters are validated against the
// type's registered ParamSpec before the constructor ever runs, so an
// unrecognized or mistyped parameter fails here rather than silently
// reaching (or being ignored by) the constructor.
func (d *Dispatcher) Build(typeName, nodeID string, ctx *BuildContext, params map[string]param.Value) (node.Node, error) {
	d.mu.RLock()
	r, ok := d.nodes[typeName]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dispatcher: unknown node type %q", typeName)
	}
	if err := validateParams(r.paramSpec, params); err != nil {
		return nil, err
	}
	return r.ctor(nodeID, ctx, params)
}

// TypeNames returns every registered node type in lexicographic order, for
// deterministic diagnostics.
func (d *Dispatcher) TypeNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.nodes))
	for name := range d.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
