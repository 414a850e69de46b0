// Copyright 2025 James Ross
package param_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coppersystems/pipelined/internal/piper"
	"github.com/coppersystems/pipelined/internal/piper/param"
)

func TestValueUnmarshalJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want param.Value
	}{
		{"boolean", `{"parameter_type":"boolean","value":true}`, param.Bool(true)},
		{"string", `{"parameter_type":"string","value":"hi"}`, param.String("hi")},
		{"integer", `{"parameter_type":"integer","value":7}`, param.Integer(7)},
		{"enum decodes as string", `{"parameter_type":"enum","value":"red"}`, param.String("red")},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var got param.Value
			require.NoError(t, json.Unmarshal([]byte(c.in), &got))
			assert.Equal(t, c.want, got)
		})
	}
}

func TestValueUnmarshalJSONData(t *testing.T) {
	var got param.Value
	require.NoError(t, json.Unmarshal([]byte(`{"parameter_type":"data","value":{"kind":"Text","text":"hello"}}`), &got))
	d, ok := got.AsData()
	require.True(t, ok)
	text, ok := d.Text()
	require.True(t, ok)
	assert.Equal(t, "hello", text)
}

func TestValueUnmarshalJSONDataType(t *testing.T) {
	var got param.Value
	require.NoError(t, json.Unmarshal([]byte(`{"parameter_type":"data_type","value":{"kind":"integer","non_negative":true}}`), &got))
	stub, ok := got.AsDataType()
	require.True(t, ok)
	assert.Equal(t, piper.Stub{Kind: piper.KindInteger, NonNeg: true}, stub)
}

func TestValueUnmarshalJSONList(t *testing.T) {
	var got param.Value
	require.NoError(t, json.Unmarshal([]byte(`{"parameter_type":"list","value":[{"parameter_type":"integer","value":1},{"parameter_type":"integer","value":2}]}`), &got))
	items, ok := got.AsList()
	require.True(t, ok)
	require.Len(t, items, 2)
	v0, _ := items[0].AsInteger()
	assert.Equal(t, int64(1), v0)
}

func TestValueUnmarshalJSONRejectsUnknownParameterType(t *testing.T) {
	var got param.Value
	err := json.Unmarshal([]byte(`{"parameter_type":"bogus","value":1}`), &got)
	assert.Error(t, err)
}

func TestValueUnmarshalJSONRejectsUnknownFields(t *testing.T) {
	var got param.Value
	err := json.Unmarshal([]byte(`{"parameter_type":"integer","value":1,"extra":true}`), &got)
	assert.Error(t, err)
}
