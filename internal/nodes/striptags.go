// Copyright 2025 James Ross
package nodes

import (
	"bytes"

	"github.com/coppersystems/pipelined/internal/jobctx"
	"github.com/coppersystems/pipelined/internal/node"
	"github.com/coppersystems/pipelined/internal/piper"
	"github.com/coppersystems/pipelined/internal/piper/param"
)

// stripTagsNode reads a Blob input fragment by fragment, strips '<'..'>'
// runs from the bytes, and re-emits the result as a single in-memory Array
// blob. It exercises the streaming fragment-reader path end to end,
// including the S3-backed case.
type stripTagsNode struct {
	connected bool
	received  bool
	input     piper.PipeData
}

func newStripTags(params map[string]param.Value) (node.Node, error) {
	return &stripTagsNode{}, nil
}

func (n *stripTagsNode) QuickRun() bool { return false }

func (n *stripTagsNode) ProcessSignal(ctx interface{}, sig node.Signal) error {
	if sig.Port != "in" {
		return &node.SignalError{Kind: node.ErrSignalPortDoesntExist, Port: sig.Port}
	}
	switch sig.Kind {
	case node.ConnectInput:
		n.connected = true
	case node.ReceiveInput:
		n.received = true
		n.input = sig.Data
	case node.DisconnectInput:
		n.connected = false
	}
	return nil
}

func (n *stripTagsNode) Run(ctxArg interface{}, send node.SendFunc) (node.State, error) {
	if !n.received {
		return node.Pending("waiting for input"), nil
	}
	jc := ctxArg.(*jobctx.Context)

	src, ok := n.input.BlobSource()
	if !ok {
		return node.State{}, &node.RunError{Kind: node.ErrBadInputType, Port: "in"}
	}

	var out bytes.Buffer
	switch s := src.(type) {
	case *piper.ArraySource:
		out.Write(stripTags(s.Bytes))
	case *piper.StreamSource:
		for {
			frag, err := s.NextFragment(jc.BlobFragmentSize)
			if err != nil {
				return node.State{}, &node.RunError{Kind: node.ErrIO, Cause: err}
			}
			out.Write(stripTags(frag.Bytes))
			if frag.IsLast {
				break
			}
		}
	case *piper.S3Source:
		reader, err := jc.ObjectStore.NewReader(jc.Ctx, s.Bucket, s.Key)
		if err != nil {
			return node.State{}, &node.RunError{Kind: node.ErrIO, Cause: err}
		}
		for {
			data, last, err := reader.NextFragment(jc.Ctx, jc.BlobFragmentSize)
			if err != nil {
				return node.State{}, &node.RunError{Kind: node.ErrIO, Cause: err}
			}
			out.Write(stripTags(data))
			if last {
				break
			}
		}
	}

	mime, _ := n.input.BlobMime()
	result := piper.NewBlob(mime, &piper.ArraySource{Bytes: out.Bytes()})
	send("out", result)
	return node.Done(), nil
}

var blobStub = piper.Stub{Kind: piper.KindBlob}

func (n *stripTagsNode) InputPorts() map[string]*piper.Stub {
	return map[string]*piper.Stub{"in": &blobStub}
}

func (n *stripTagsNode) OutputPorts() map[string]*piper.Stub {
	return map[string]*piper.Stub{"out": &blobStub}
}

func stripTags(b []byte) []byte {
	out := make([]byte, 0, len(b))
	inTag := false
	for _, c := range b {
		switch {
		case c == '<':
			inTag = true
		case c == '>':
			inTag = false
		case !inTag:
			out = append(out, c)
		}
	}
	return out
}
