// Copyright 2025 James Ross
package piper_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coppersystems/pipelined/internal/piper"
)

func TestStubEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b piper.Stub
		want bool
	}{
		{"text matches text", piper.Stub{Kind: piper.KindText}, piper.Stub{Kind: piper.KindText}, true},
		{"text vs integer", piper.Stub{Kind: piper.KindText}, piper.Stub{Kind: piper.KindInteger}, false},
		{"integer NonNeg must match", piper.Stub{Kind: piper.KindInteger, NonNeg: true}, piper.Stub{Kind: piper.KindInteger}, false},
		{"integer NonNeg both false", piper.Stub{Kind: piper.KindInteger}, piper.Stub{Kind: piper.KindInteger}, true},
		{"reference ClassID must match", piper.Stub{Kind: piper.KindReference, ClassID: 1}, piper.Stub{Kind: piper.KindReference, ClassID: 2}, false},
		{"reference ClassID matches", piper.Stub{Kind: piper.KindReference, ClassID: 5}, piper.Stub{Kind: piper.KindReference, ClassID: 5}, true},
		{"blob ignores other fields", piper.Stub{Kind: piper.KindBlob}, piper.Stub{Kind: piper.KindBlob, NonNeg: true}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.a.Equal(c.b))
		})
	}
}

func TestPipeDataJSONRoundTrip(t *testing.T) {
	cases := []piper.PipeData{
		piper.NewText("hello"),
		piper.NewInteger(42, false),
		piper.NewInteger(-7, false),
		piper.NewFloat(3.5, true),
		piper.NewBoolean(true),
		piper.NewHash(piper.HashSHA256, []byte{0xde, 0xad, 0xbe, 0xef}),
		piper.NewReference(9, 100),
	}
	for _, original := range cases {
		b, err := json.Marshal(original)
		require.NoError(t, err)

		var decoded piper.PipeData
		require.NoError(t, json.Unmarshal(b, &decoded))
		assert.Equal(t, original.Stub(), decoded.Stub())

		switch original.Stub().Kind {
		case piper.KindText:
			wantText, _ := original.Text()
			gotText, ok := decoded.Text()
			assert.True(t, ok)
			assert.Equal(t, wantText, gotText)
		case piper.KindInteger:
			wantInt, _ := original.Integer()
			gotInt, ok := decoded.Integer()
			assert.True(t, ok)
			assert.Equal(t, wantInt, gotInt)
		case piper.KindHash:
			wantKind, wantBytes, _ := original.Hash()
			gotKind, gotBytes, ok := decoded.Hash()
			assert.True(t, ok)
			assert.Equal(t, wantKind, gotKind)
			assert.Equal(t, wantBytes, gotBytes)
		case piper.KindReference:
			wantClass, wantItem, _ := original.Reference()
			gotClass, gotItem, ok := decoded.Reference()
			assert.True(t, ok)
			assert.Equal(t, wantClass, gotClass)
			assert.Equal(t, wantItem, gotItem)
		}
	}
}

func TestPipeDataUnmarshalJSONRejectsBlob(t *testing.T) {
	var decoded piper.PipeData
	err := json.Unmarshal([]byte(`{"kind":"Blob"}`), &decoded)
	assert.Error(t, err)
}

func TestPipeDataUnmarshalJSONRejectsOddLengthHex(t *testing.T) {
	var decoded piper.PipeData
	err := json.Unmarshal([]byte(`{"kind":"Hash","hash_hex":"abc"}`), &decoded)
	assert.Error(t, err)
}
