// Copyright 2025 James Ross
package nodes

import (
	"github.com/coppersystems/pipelined/internal/jobctx"
	"github.com/coppersystems/pipelined/internal/node"
	"github.com/coppersystems/pipelined/internal/piper"
	"github.com/coppersystems/pipelined/internal/piper/param"
)

// addItemNode has one input port "in" and no outputs; on receiving a
// value it stages an AddItem action on the job's transaction rather than
// writing to the item database directly, so the write only takes effect
// if the whole job succeeds.
type addItemNode struct {
	classID  int64
	attrName string

	received bool
	value    piper.PipeData
}

func newAddItem(params map[string]param.Value) (node.Node, error) {
	classParam, ok := params["class"]
	if !ok {
		return nil, &node.RunError{Kind: node.ErrMissingParameter, Parameter: "class"}
	}
	classID, ok := classParam.AsInteger()
	if !ok {
		return nil, &node.RunError{Kind: node.ErrBadParameterType, Parameter: "class"}
	}
	attrParam, ok := params["attr"]
	if !ok {
		return nil, &node.RunError{Kind: node.ErrMissingParameter, Parameter: "attr"}
	}
	attrName, ok := attrParam.AsString()
	if !ok {
		return nil, &node.RunError{Kind: node.ErrBadParameterType, Parameter: "attr"}
	}
	return &addItemNode{classID: classID, attrName: attrName}, nil
}

func (n *addItemNode) QuickRun() bool { return false }

func (n *addItemNode) ProcessSignal(ctx interface{}, sig node.Signal) error {
	if sig.Port != "in" {
		return &node.SignalError{Kind: node.ErrSignalPortDoesntExist, Port: sig.Port}
	}
	if sig.Kind == node.ReceiveInput {
		n.received = true
		n.value = sig.Data
	}
	return nil
}

func (n *addItemNode) Run(ctxArg interface{}, send node.SendFunc) (node.State, error) {
	if !n.received {
		return node.Pending("waiting for input"), nil
	}
	jc := ctxArg.(*jobctx.Context)
	jc.Transaction().Append(jobctx.Action{
		Kind:    jobctx.ActionAddItem,
		ClassID: n.classID,
		Attrs:   map[string]piper.PipeData{n.attrName: n.value},
	})
	return node.Done(), nil
}

func (n *addItemNode) InputPorts() map[string]*piper.Stub  { return map[string]*piper.Stub{"in": nil} }
func (n *addItemNode) OutputPorts() map[string]*piper.Stub { return map[string]*piper.Stub{} }
