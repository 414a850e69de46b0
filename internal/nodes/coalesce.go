// Copyright 2025 James Ross
package nodes

import (
	"github.com/coppersystems/pipelined/internal/node"
	"github.com/coppersystems/pipelined/internal/piper"
	"github.com/coppersystems/pipelined/internal/piper/param"
)

// coalesceNode has two input ports, "data" and "ifnone", of the same
// stub, and one output "out". It waits for "ifnone", and for "data" only
// while "data" is connected, then sends
// "data" unless "data" is the port's zero value signaled absent via a
// separate "data_present" marker — here modeled simply as: send "data" if
// it was received at all, otherwise "ifnone". A pipeline that never
// connects "data" therefore always falls through to "ifnone".
type coalesceNode struct {
	haveData, haveIfNone bool
	data, ifnone         piper.PipeData
	dataConnected        bool
}

func newCoalesce(params map[string]param.Value) (node.Node, error) {
	return &coalesceNode{}, nil
}

func (n *coalesceNode) QuickRun() bool { return false }

func (n *coalesceNode) ProcessSignal(ctx interface{}, sig node.Signal) error {
	switch sig.Port {
	case "data":
		switch sig.Kind {
		case node.ConnectInput:
			n.dataConnected = true
		case node.ReceiveInput:
			n.haveData = true
			n.data = sig.Data
		case node.DisconnectInput:
			n.dataConnected = false
		}
	case "ifnone":
		switch sig.Kind {
		case node.ReceiveInput:
			n.haveIfNone = true
			n.ifnone = sig.Data
		}
	default:
		return &node.SignalError{Kind: node.ErrSignalPortDoesntExist, Port: sig.Port}
	}
	return nil
}

func (n *coalesceNode) Run(ctx interface{}, send node.SendFunc) (node.State, error) {
	if !n.haveIfNone {
		return node.Pending("waiting for ifnone"), nil
	}
	if n.dataConnected && !n.haveData {
		return node.Pending("waiting for data"), nil
	}
	if n.haveData {
		send("out", n.data)
	} else {
		send("out", n.ifnone)
	}
	return node.Done(), nil
}

func (n *coalesceNode) InputPorts() map[string]*piper.Stub {
	return map[string]*piper.Stub{"data": nil, "ifnone": nil}
}

func (n *coalesceNode) OutputPorts() map[string]*piper.Stub {
	return map[string]*piper.Stub{"out": nil}
}
