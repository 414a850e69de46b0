// Copyright 2025 James Ross
package jobctx_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coppersystems/pipelined/internal/jobctx"
	"github.com/coppersystems/pipelined/internal/piper"
)

func TestContextInputs(t *testing.T) {
	inputs := map[string]piper.PipeData{"in": piper.NewInteger(5, false)}
	jc := jobctx.New(context.Background(), "job-1", 1, inputs, nil, nil, 1024, 4)

	got := jc.Inputs()
	v, ok := got["in"].Integer()
	require.True(t, ok)
	assert.Equal(t, int64(5), v)
	assert.Equal(t, "job-1", jc.JobID)
	assert.Equal(t, int64(1), jc.OwnedBy)
}

func TestTransactionAppendPreservesOrder(t *testing.T) {
	jc := jobctx.New(context.Background(), "job-2", 1, nil, nil, nil, 1024, 4)
	tx := jc.Transaction()

	tx.Append(jobctx.Action{Kind: jobctx.ActionAddItem, ClassID: 1})
	tx.Append(jobctx.Action{Kind: jobctx.ActionAddItem, ClassID: 2})

	actions := tx.Actions()
	require.Len(t, actions, 2)
	assert.Equal(t, int64(1), actions[0].ClassID)
	assert.Equal(t, int64(2), actions[1].ClassID)
	assert.Equal(t, 2, tx.Len())
}

func TestTransactionConcurrentAppend(t *testing.T) {
	jc := jobctx.New(context.Background(), "job-3", 1, nil, nil, nil, 1024, 4)
	tx := jc.Transaction()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx.Append(jobctx.Action{Kind: jobctx.ActionAddItem, ClassID: int64(i)})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, tx.Len())
}
