// Copyright 2025 James Ross
package itemdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coppersystems/pipelined/internal/piper"
)

func TestResolveReferencesRewritesPositionalReference(t *testing.T) {
	attrs := map[string]piper.PipeData{
		"owner": piper.NewReference(0, -1),
		"name":  piper.NewText("widget"),
	}
	created := []int64{100}

	out, err := resolveReferences(attrs, created, 1)
	require.NoError(t, err)

	classID, itemID, ok := out["owner"].Reference()
	require.True(t, ok)
	assert.Equal(t, int64(0), classID)
	assert.Equal(t, int64(100), itemID)

	name, ok := out["name"].Text()
	require.True(t, ok)
	assert.Equal(t, "widget", name)
}

func TestResolveReferencesLeavesOrdinaryReferencesAlone(t *testing.T) {
	attrs := map[string]piper.PipeData{
		"tag": piper.NewReference(5, 42),
	}
	out, err := resolveReferences(attrs, nil, 0)
	require.NoError(t, err)

	classID, itemID, ok := out["tag"].Reference()
	require.True(t, ok)
	assert.Equal(t, int64(5), classID)
	assert.Equal(t, int64(42), itemID)
}

func TestResolveReferencesRejectsForwardReference(t *testing.T) {
	attrs := map[string]piper.PipeData{
		"owner": piper.NewReference(0, -2),
	}
	_, err := resolveReferences(attrs, []int64{100}, 1)
	require.Error(t, err)
	var ate *ApplyTransactionError
	require.ErrorAs(t, err, &ate)
	assert.Equal(t, ErrReferencedBadAction, ate.Kind)
}

func TestResolveReferencesRejectsReferenceToFailedAction(t *testing.T) {
	attrs := map[string]piper.PipeData{
		"owner": piper.NewReference(0, -1),
	}
	_, err := resolveReferences(attrs, []int64{0}, 1)
	require.Error(t, err)
	var ate *ApplyTransactionError
	require.ErrorAs(t, err, &ate)
	assert.Equal(t, ErrReferencedNoneResult, ate.Kind)
}
