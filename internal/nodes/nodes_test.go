// Copyright 2025 James Ross
package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coppersystems/pipelined/internal/dispatcher"
	"github.com/coppersystems/pipelined/internal/jobctx"
	"github.com/coppersystems/pipelined/internal/node"
	"github.com/coppersystems/pipelined/internal/piper"
	"github.com/coppersystems/pipelined/internal/piper/param"
)

func TestConstantSendsBoundValueOnce(t *testing.T) {
	n, err := newConstant(map[string]param.Value{"value": param.Data(piper.NewInteger(7, false))})
	require.NoError(t, err)

	var sent []piper.PipeData
	state, err := n.Run(nil, func(port string, data piper.PipeData) {
		assert.Equal(t, "out", port)
		sent = append(sent, data)
	})
	require.NoError(t, err)
	assert.True(t, state.IsDone())
	require.Len(t, sent, 1)
}

func TestConstantMissingValueParameter(t *testing.T) {
	_, err := newConstant(nil)
	require.Error(t, err)
	var runErr *node.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, node.ErrMissingParameter, runErr.Kind)
}

func TestEchoForwardsReceivedValue(t *testing.T) {
	n, err := newEcho(nil)
	require.NoError(t, err)

	state, err := n.Run(nil, func(string, piper.PipeData) { t.Fatal("should not send before input arrives") })
	require.NoError(t, err)
	assert.True(t, state.IsPending())

	require.NoError(t, n.ProcessSignal(nil, node.Signal{Kind: node.ConnectInput, Port: "in"}))
	require.NoError(t, n.ProcessSignal(nil, node.Signal{Kind: node.ReceiveInput, Port: "in", Data: piper.NewText("hi")}))

	var got piper.PipeData
	state, err = n.Run(nil, func(port string, data piper.PipeData) { got = data })
	require.NoError(t, err)
	assert.True(t, state.IsDone())
	text, ok := got.Text()
	require.True(t, ok)
	assert.Equal(t, "hi", text)
}

func TestCoalesceFallsThroughToIfNoneWhenDataNeverConnects(t *testing.T) {
	n, err := newCoalesce(nil)
	require.NoError(t, err)

	require.NoError(t, n.ProcessSignal(nil, node.Signal{Kind: node.ReceiveInput, Port: "ifnone", Data: piper.NewText("fallback")}))

	var got piper.PipeData
	state, err := n.Run(nil, func(port string, data piper.PipeData) { got = data })
	require.NoError(t, err)
	assert.True(t, state.IsDone())
	text, _ := got.Text()
	assert.Equal(t, "fallback", text)
}

func TestCoalescePrefersDataWhenConnected(t *testing.T) {
	n, err := newCoalesce(nil)
	require.NoError(t, err)

	require.NoError(t, n.ProcessSignal(nil, node.Signal{Kind: node.ConnectInput, Port: "data"}))
	require.NoError(t, n.ProcessSignal(nil, node.Signal{Kind: node.ReceiveInput, Port: "ifnone", Data: piper.NewText("fallback")}))

	state, err := n.Run(nil, func(string, piper.PipeData) { t.Fatal("should not send while data is connected but unreceived") })
	require.NoError(t, err)
	assert.True(t, state.IsPending())

	require.NoError(t, n.ProcessSignal(nil, node.Signal{Kind: node.ReceiveInput, Port: "data", Data: piper.NewText("real")}))

	var got piper.PipeData
	state, err = n.Run(nil, func(port string, data piper.PipeData) { got = data })
	require.NoError(t, err)
	assert.True(t, state.IsDone())
	text, _ := got.Text()
	assert.Equal(t, "real", text)
}

func TestStripTagsRemovesAngleBracketRuns(t *testing.T) {
	n, err := newStripTags(nil)
	require.NoError(t, err)

	src := &piper.ArraySource{Bytes: []byte("a<b>c<d>e")}
	in := piper.NewBlob("text/plain", src)
	require.NoError(t, n.ProcessSignal(nil, node.Signal{Kind: node.ConnectInput, Port: "in"}))
	require.NoError(t, n.ProcessSignal(nil, node.Signal{Kind: node.ReceiveInput, Port: "in", Data: in}))

	jc := jobctx.New(context.Background(), "job-1", 1, nil, nil, nil, 1024, 4)
	var got piper.PipeData
	state, err := n.Run(jc, func(port string, data piper.PipeData) { got = data })
	require.NoError(t, err)
	assert.True(t, state.IsDone())

	outSrc, ok := got.BlobSource()
	require.True(t, ok)
	arr, ok := outSrc.(*piper.ArraySource)
	require.True(t, ok)
	assert.Equal(t, "ace", string(arr.Bytes))
}

func TestAddItemStagesTransactionOnlyAfterReceivingInput(t *testing.T) {
	n, err := newAddItem(map[string]param.Value{
		"class": param.Integer(3),
		"attr":  param.String("name"),
	})
	require.NoError(t, err)

	jc := jobctx.New(context.Background(), "job-2", 1, nil, nil, nil, 1024, 4)

	state, err := n.Run(jc, func(string, piper.PipeData) { t.Fatal("AddItem has no output ports") })
	require.NoError(t, err)
	assert.True(t, state.IsPending())
	assert.Equal(t, 0, jc.Transaction().Len())

	require.NoError(t, n.ProcessSignal(jc, node.Signal{Kind: node.ReceiveInput, Port: "in", Data: piper.NewText("widget")}))
	state, err = n.Run(jc, func(string, piper.PipeData) {})
	require.NoError(t, err)
	assert.True(t, state.IsDone())

	actions := jc.Transaction().Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, int64(3), actions[0].ClassID)
}

func TestInputNodeSendsFromJobInputs(t *testing.T) {
	buildCtx := &dispatcher.BuildContext{Inputs: map[string]piper.PipeData{"in1": piper.NewInteger(9, false)}}
	n, err := NewInput("in1", buildCtx, map[string]param.Value{"data_type": param.DataType(piper.Stub{Kind: piper.KindInteger})})
	require.NoError(t, err)

	var got piper.PipeData
	state, err := n.Run(nil, func(port string, data piper.PipeData) { got = data })
	require.NoError(t, err)
	assert.True(t, state.IsDone())
	v, ok := got.Integer()
	require.True(t, ok)
	assert.Equal(t, int64(9), v)
}

func TestInputNodeConstructionRejectsTypeMismatch(t *testing.T) {
	buildCtx := &dispatcher.BuildContext{Inputs: map[string]piper.PipeData{"in1": piper.NewText("oops")}}
	_, err := NewInput("in1", buildCtx, map[string]param.Value{"data_type": param.DataType(piper.Stub{Kind: piper.KindInteger})})
	require.Error(t, err)
	var runErr *node.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, node.ErrBadInputType, runErr.Kind)
}

func TestInputNodeConstructionRejectsMissingInput(t *testing.T) {
	buildCtx := &dispatcher.BuildContext{}
	_, err := NewInput("in1", buildCtx, map[string]param.Value{"data_type": param.DataType(piper.Stub{Kind: piper.KindInteger})})
	require.Error(t, err)
	var runErr *node.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, node.ErrMissingInput, runErr.Kind)
}
