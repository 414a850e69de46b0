// Copyright 2025 James Ross
package nodes

import (
	"github.com/coppersystems/pipelined/internal/node"
	"github.com/coppersystems/pipelined/internal/piper"
	"github.com/coppersystems/pipelined/internal/piper/param"
)

// constantNode has no inputs and sends its bound value on "out" exactly
// once.
type constantNode struct {
	value piper.PipeData
}

func newConstant(params map[string]param.Value) (node.Node, error) {
	v, ok := params["value"]
	if !ok {
		return nil, &node.RunError{Kind: node.ErrMissingParameter, Parameter: "value"}
	}
	data, ok := v.AsData()
	if !ok {
		return nil, &node.RunError{Kind: node.ErrBadParameterType, Parameter: "value"}
	}
	return &constantNode{value: data}, nil
}

func (n *constantNode) QuickRun() bool { return true }

func (n *constantNode) ProcessSignal(ctx interface{}, sig node.Signal) error {
	return &node.SignalError{Kind: node.ErrSignalPortDoesntExist, Port: sig.Port}
}

func (n *constantNode) Run(ctx interface{}, send node.SendFunc) (node.State, error) {
	send("out", n.value)
	return node.Done(), nil
}

func (n *constantNode) InputPorts() map[string]*piper.Stub { return nil }

func (n *constantNode) OutputPorts() map[string]*piper.Stub {
	stub := n.value.Stub()
	return map[string]*piper.Stub{"out": &stub}
}
