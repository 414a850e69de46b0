// Copyright 2025 James Ross
package dispatcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coppersystems/pipelined/internal/dispatcher"
	"github.com/coppersystems/pipelined/internal/node"
	"github.com/coppersystems/pipelined/internal/piper"
	"github.com/coppersystems/pipelined/internal/piper/param"
)

type stubNode struct{}

func (stubNode) ProcessSignal(ctx interface{}, sig node.Signal) error { return nil }
func (stubNode) Run(ctx interface{}, send node.SendFunc) (node.State, error) {
	return node.Done(), nil
}
func (stubNode) QuickRun() bool { return true }

func TestRegisterAndBuild(t *testing.T) {
	d := dispatcher.New()
	require.NoError(t, d.Register("Stub", nil, func(nodeID string, ctx *dispatcher.BuildContext, params map[string]param.Value) (node.Node, error) {
		return stubNode{}, nil
	}))

	assert.True(t, d.Has("Stub"))
	assert.False(t, d.Has("Other"))

	n, err := d.Build("Stub", "n1", &dispatcher.BuildContext{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, n)
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	d := dispatcher.New()
	ctor := func(nodeID string, ctx *dispatcher.BuildContext, params map[string]param.Value) (node.Node, error) {
		return stubNode{}, nil
	}
	require.NoError(t, d.Register("Stub", nil, ctor))

	err := d.Register("Stub", nil, ctor)
	require.Error(t, err)
	var already *dispatcher.ErrAlreadyRegistered
	assert.ErrorAs(t, err, &already)
	assert.Equal(t, "Stub", already.TypeName)
}

func TestRegisterRejectsDuplicateInput(t *testing.T) {
	d := dispatcher.New()
	ctor := func(nodeID string, ctx *dispatcher.BuildContext, params map[string]param.Value) (node.Node, error) {
		return stubNode{}, nil
	}
	require.NoError(t, d.Register(dispatcher.InputNodeType, nil, ctor))

	err := d.Register(dispatcher.InputNodeType, nil, ctor)
	assert.Error(t, err)
}

func TestBuildUnknownType(t *testing.T) {
	d := dispatcher.New()
	_, err := d.Build("Nope", "n1", &dispatcher.BuildContext{}, nil)
	assert.Error(t, err)
}

func TestTypeNamesSorted(t *testing.T) {
	d := dispatcher.New()
	ctor := func(nodeID string, ctx *dispatcher.BuildContext, params map[string]param.Value) (node.Node, error) {
		return stubNode{}, nil
	}
	require.NoError(t, d.Register("Zeta", nil, ctor))
	require.NoError(t, d.Register("Alpha", nil, ctor))
	require.NoError(t, d.Register("Mid", nil, ctor))

	assert.Equal(t, []string{"Alpha", "Mid", "Zeta"}, d.TypeNames())
}

func TestBuildPassesNodeID(t *testing.T) {
	d := dispatcher.New()
	var gotID string
	require.NoError(t, d.Register("Stub", nil, func(nodeID string, ctx *dispatcher.BuildContext, params map[string]param.Value) (node.Node, error) {
		gotID = nodeID
		return stubNode{}, nil
	}))
	_, err := d.Build("Stub", "node-42", &dispatcher.BuildContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "node-42", gotID)
}

func TestBuildPassesBuildContext(t *testing.T) {
	d := dispatcher.New()
	var got *dispatcher.BuildContext
	require.NoError(t, d.Register("Stub", nil, func(nodeID string, ctx *dispatcher.BuildContext, params map[string]param.Value) (node.Node, error) {
		got = ctx
		return stubNode{}, nil
	}))

	want := &dispatcher.BuildContext{Inputs: map[string]piper.PipeData{"in1": piper.NewInteger(9, false)}}
	_, err := d.Build("Stub", "n1", want, nil)
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestBuildRejectsUnexpectedParameter(t *testing.T) {
	d := dispatcher.New()
	ctor := func(nodeID string, ctx *dispatcher.BuildContext, params map[string]param.Value) (node.Node, error) {
		return stubNode{}, nil
	}
	require.NoError(t, d.Register("Stub", map[string]param.Spec{
		"known": {Type: param.TypeString},
	}, ctor))

	_, err := d.Build("Stub", "n1", &dispatcher.BuildContext{}, map[string]param.Value{
		"known":    param.String("ok"),
		"surprise": param.Integer(1),
	})
	require.Error(t, err)
	var runErr *node.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, node.ErrUnexpectedParameter, runErr.Kind)
	assert.Equal(t, "surprise", runErr.Parameter)
}

func TestBuildRejectsMissingRequiredParameter(t *testing.T) {
	d := dispatcher.New()
	ctor := func(nodeID string, ctx *dispatcher.BuildContext, params map[string]param.Value) (node.Node, error) {
		return stubNode{}, nil
	}
	require.NoError(t, d.Register("Stub", map[string]param.Spec{
		"required": {Type: param.TypeString},
	}, ctor))

	_, err := d.Build("Stub", "n1", &dispatcher.BuildContext{}, nil)
	require.Error(t, err)
	var runErr *node.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, node.ErrMissingParameter, runErr.Kind)
	assert.Equal(t, "required", runErr.Parameter)
}

func TestBuildRejectsBadParameterType(t *testing.T) {
	d := dispatcher.New()
	ctor := func(nodeID string, ctx *dispatcher.BuildContext, params map[string]param.Value) (node.Node, error) {
		return stubNode{}, nil
	}
	require.NoError(t, d.Register("Stub", map[string]param.Spec{
		"count": {Type: param.TypeInteger},
	}, ctor))

	_, err := d.Build("Stub", "n1", &dispatcher.BuildContext{}, map[string]param.Value{
		"count": param.String("not an integer"),
	})
	require.Error(t, err)
	var runErr *node.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, node.ErrBadParameterType, runErr.Kind)
	assert.Equal(t, "count", runErr.Parameter)
}

func TestBuildAllowsOptionalParameterToBeOmitted(t *testing.T) {
	d := dispatcher.New()
	ctor := func(nodeID string, ctx *dispatcher.BuildContext, params map[string]param.Value) (node.Node, error) {
		return stubNode{}, nil
	}
	require.NoError(t, d.Register("Stub", map[string]param.Spec{
		"optional": {Type: param.TypeString, IsOptional: true},
	}, ctor))

	_, err := d.Build("Stub", "n1", &dispatcher.BuildContext{}, nil)
	require.NoError(t, err)
}
