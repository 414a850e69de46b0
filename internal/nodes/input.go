// Copyright 2025 James Ross

// Package nodes implements the engine's built-in node types: the reserved
// Input node every pipeline gets for free, plus a small set of example
// nodes (Constant, Echo, Coalesce, StripTags, AddItem) that exercise the
// full lifecycle contract and the object-store/item-db integrations.
package nodes

import (
	"github.com/coppersystems/pipelined/internal/dispatcher"
	"github.com/coppersystems/pipelined/internal/node"
	"github.com/coppersystems/pipelined/internal/piper"
	"github.com/coppersystems/pipelined/internal/piper/param"
)

// inputNode already holds its resolved value by the time it exists: NewInput
// looked it up in the job's input map and type-checked it against
// data_type at construction. Run only ever has one value to send.
type inputNode struct {
	dataType piper.Stub
	value    piper.PipeData
}

// NewInput is the dispatcher.Constructor for the reserved Input type. Its
// data_type parameter has already been validated present and well-typed by
// dispatcher.Build before this runs. It uses nodeID, unlike every other
// built-in constructor, to look itself up in the job's input map, and
// fails construction (dispatcher.Build returns the error unchanged and
// pipeline.Build wraps it as ErrInitNode) if that input is absent or its stub doesn't
// match the declared data_type, per the build-time invariant that every
// Input node's name matches a job input whose stub agrees with data_type.
func NewInput(nodeName string, ctx *dispatcher.BuildContext, params map[string]param.Value) (node.Node, error) {
	stub, _ := params["data_type"].AsDataType()

	value, ok := ctx.Inputs[nodeName]
	if !ok {
		return nil, &node.RunError{Kind: node.ErrMissingInput, Port: "out"}
	}
	if !value.Stub().Equal(stub) {
		return nil, &node.RunError{Kind: node.ErrBadInputType, Port: "out"}
	}

	return &inputNode{dataType: stub, value: value}, nil
}

func (n *inputNode) QuickRun() bool { return true }

func (n *inputNode) ProcessSignal(ctx interface{}, sig node.Signal) error {
	return &node.SignalError{Kind: node.ErrSignalPortDoesntExist, Port: sig.Port}
}

func (n *inputNode) Run(ctxArg interface{}, send node.SendFunc) (node.State, error) {
	send("out", n.value)
	return node.Done(), nil
}

func (n *inputNode) InputPorts() map[string]*piper.Stub { return nil }

func (n *inputNode) OutputPorts() map[string]*piper.Stub {
	return map[string]*piper.Stub{"out": &n.dataType}
}

// RegisterBuiltins registers every built-in node type, including the
// reserved Input type, on d.
func RegisterBuiltins(d *dispatcher.Dispatcher) error {
	if err := d.Register(dispatcher.InputNodeType, map[string]param.Spec{
		"data_type": {Type: param.TypeDataType},
	}, NewInput); err != nil {
		return err
	}
	if err := d.Register("Constant", map[string]param.Spec{
		"value": {Type: param.TypeData},
	}, ignoreBuildContext(newConstant)); err != nil {
		return err
	}
	if err := d.Register("Echo", nil, ignoreBuildContext(newEcho)); err != nil {
		return err
	}
	if err := d.Register("Coalesce", nil, ignoreBuildContext(newCoalesce)); err != nil {
		return err
	}
	if err := d.Register("StripTags", nil, ignoreBuildContext(newStripTags)); err != nil {
		return err
	}
	if err := d.Register("AddItem", map[string]param.Spec{
		"class": {Type: param.TypeInteger},
		"attr":  {Type: param.TypeString},
	}, ignoreBuildContext(newAddItem)); err != nil {
		return err
	}
	return nil
}

// ignoreBuildContext adapts a constructor that has no use for the node's
// own id or the job's build context to the dispatcher.Constructor
// signature.
func ignoreBuildContext(f func(params map[string]param.Value) (node.Node, error)) dispatcher.Constructor {
	return func(_ string, _ *dispatcher.BuildContext, params map[string]param.Value) (node.Node, error) {
		return f(params)
	}
}
