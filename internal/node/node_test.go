// Copyright 2025 James Ross
package node_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coppersystems/pipelined/internal/node"
)

func TestStateDoneAndPending(t *testing.T) {
	done := node.Done()
	assert.True(t, done.IsDone())
	assert.False(t, done.IsPending())

	pending := node.Pending("waiting on input")
	assert.False(t, pending.IsDone())
	assert.True(t, pending.IsPending())
	assert.Equal(t, "waiting on input", pending.Reason())
}

func TestRunErrorMessages(t *testing.T) {
	cases := []struct {
		err  *node.RunError
		want string
	}{
		{&node.RunError{Kind: node.ErrMissingParameter, Parameter: "value"}, `missing parameter "value"`},
		{&node.RunError{Kind: node.ErrMissingInput, Port: "in"}, `missing input on port "in"`},
		{&node.RunError{Kind: node.ErrOutputPortSetTwice, NodeID: "n1", NodeType: "Echo", Port: "out"}, `node "n1" (type Echo) sent a value on output port "out" twice`},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.err.Error())
	}
}

func TestRunErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &node.RunError{Kind: node.ErrIO, Cause: cause}
	assert.ErrorIs(t, err, cause)
}

func TestSignalErrorMessages(t *testing.T) {
	err := &node.SignalError{Kind: node.ErrSignalPortDoesntExist, Port: "missing"}
	assert.Equal(t, `input port "missing" does not exist`, err.Error())
}
