// Copyright 2025 James Ross
package nodes

import (
	"github.com/coppersystems/pipelined/internal/node"
	"github.com/coppersystems/pipelined/internal/piper"
	"github.com/coppersystems/pipelined/internal/piper/param"
)

// echoNode has one input port "in" and one output port "out" of the same
// stub; it forwards whatever it receives.
type echoNode struct {
	connected bool
	received  bool
	value     piper.PipeData
}

func newEcho(params map[string]param.Value) (node.Node, error) {
	return &echoNode{}, nil
}

func (n *echoNode) QuickRun() bool { return false }

func (n *echoNode) ProcessSignal(ctx interface{}, sig node.Signal) error {
	switch sig.Kind {
	case node.ConnectInput:
		if sig.Port != "in" {
			return &node.SignalError{Kind: node.ErrSignalPortDoesntExist, Port: sig.Port}
		}
		n.connected = true
	case node.ReceiveInput:
		if sig.Port != "in" {
			return &node.SignalError{Kind: node.ErrSignalPortDoesntExist, Port: sig.Port}
		}
		n.received = true
		n.value = sig.Data
	case node.DisconnectInput:
		if sig.Port != "in" {
			return &node.SignalError{Kind: node.ErrSignalPortDoesntExist, Port: sig.Port}
		}
		n.connected = false
	}
	return nil
}

func (n *echoNode) Run(ctx interface{}, send node.SendFunc) (node.State, error) {
	if !n.received {
		return node.Pending("waiting for input"), nil
	}
	send("out", n.value)
	return node.Done(), nil
}

func (n *echoNode) InputPorts() map[string]*piper.Stub  { return map[string]*piper.Stub{"in": nil} }
func (n *echoNode) OutputPorts() map[string]*piper.Stub { return map[string]*piper.Stub{"out": nil} }
