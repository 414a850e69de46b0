// Copyright 2025 James Ross
package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coppersystems/pipelined/internal/jobctx"
	"github.com/coppersystems/pipelined/internal/node"
	"github.com/coppersystems/pipelined/internal/pipeline"
	"github.com/coppersystems/pipelined/internal/piper"
)

// doubleSendNode sends on its only output port twice in one Run call,
// which the engine must reject as OutputPortSetTwice rather than deliver
// either value.
type doubleSendNode struct{}

func (doubleSendNode) QuickRun() bool { return true }
func (doubleSendNode) ProcessSignal(ctx interface{}, sig node.Signal) error { return nil }
func (doubleSendNode) Run(ctx interface{}, send node.SendFunc) (node.State, error) {
	send("out", piper.NewText("first"))
	send("out", piper.NewText("second"))
	return node.Done(), nil
}

func TestEngineRejectsDoubleSend(t *testing.T) {
	g := &pipeline.FinalizedGraph{
		Nodes: []pipeline.NodeEntry{
			{ID: "bad", NodeType: "DoubleSend", Node: doubleSendNode{}},
		},
		Edges:  nil,
		OutAdj: [][]int{{}},
		InAdj:  [][]int{{}},
	}

	jc := jobctx.New(context.Background(), "job-double-send", 1, nil, nil, nil, 1_000_000, 16)
	pool := NewPool(1)
	defer pool.Stop()

	eng := newEngine(g, jc, pool, 4)
	err := eng.run(context.Background())
	require.Error(t, err)

	var runErr *node.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, node.ErrOutputPortSetTwice, runErr.Kind)
}
