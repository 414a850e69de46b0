// Copyright 2025 James Ross

// Package param implements NodeParameterType/NodeParameterValue, the
// construction-time parameters a pipeline JSON document supplies to a
// node's dispatcher constructor.
package param

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/coppersystems/pipelined/internal/piper"
)

// Type identifies the shape a parameter value must take.
type Type int

const (
	TypeData Type = iota
	TypeDataType
	TypeBoolean
	TypeString
	TypeInteger
	TypeEnum
	TypeList
	TypeMap
)

// Spec describes one construction parameter a node type accepts.
type Spec struct {
	Type       Type
	ItemType   *Spec    // set when Type == TypeList
	ValueType  *Spec    // set when Type == TypeMap
	Variants   []string // set when Type == TypeEnum
	IsOptional bool
}

// Value is a tagged union mirroring the JSON shape
// {"parameter_type": "...", "value": ...}.
type Value struct {
	typ     Type
	data    piper.PipeData
	boolean bool
	str     string
	integer int64
	dtype   piper.Stub
	list    []Value
	m       map[string]Value
}

func Data(v piper.PipeData) Value         { return Value{typ: TypeData, data: v} }
func DataType(v piper.Stub) Value         { return Value{typ: TypeDataType, dtype: v} }
func Bool(v bool) Value                   { return Value{typ: TypeBoolean, boolean: v} }
func String(v string) Value               { return Value{typ: TypeString, str: v} }
func Integer(v int64) Value               { return Value{typ: TypeInteger, integer: v} }
func List(v []Value) Value                { return Value{typ: TypeList, list: v} }
func Map(v map[string]Value) Value        { return Value{typ: TypeMap, m: v} }

func (v Value) Type() Type { return v.typ }

func (v Value) AsData() (piper.PipeData, bool) {
	if v.typ != TypeData {
		return piper.PipeData{}, false
	}
	return v.data, true
}

func (v Value) AsDataType() (piper.Stub, bool) {
	if v.typ != TypeDataType {
		return piper.Stub{}, false
	}
	return v.dtype, true
}

func (v Value) AsBool() (bool, bool) {
	if v.typ != TypeBoolean {
		return false, false
	}
	return v.boolean, true
}

func (v Value) AsString() (string, bool) {
	if v.typ != TypeString {
		return "", false
	}
	return v.str, true
}

func (v Value) AsInteger() (int64, bool) {
	if v.typ != TypeInteger {
		return 0, false
	}
	return v.integer, true
}

func (v Value) AsList() ([]Value, bool) {
	if v.typ != TypeList {
		return nil, false
	}
	return v.list, true
}

func (v Value) AsMap() (map[string]Value, bool) {
	if v.typ != TypeMap {
		return nil, false
	}
	return v.m, true
}

// jsonValue is the on-the-wire shape of a Value, matching the
// parameter_type/value tagging used throughout the pipeline JSON format.
type jsonValue struct {
	ParameterType string          `json:"parameter_type"`
	Value         json.RawMessage `json:"value"`
}

// stubJSON is the wire shape of a piper.Stub used by the "data_type"
// parameter kind, e.g. {"kind":"integer","non_negative":true}.
type stubJSON struct {
	Kind        string `json:"kind"`
	NonNeg      bool   `json:"non_negative"`
	ClassID     int64  `json:"class_id"`
}

func (s stubJSON) toStub() piper.Stub {
	var kind piper.Kind
	switch s.Kind {
	case "text":
		kind = piper.KindText
	case "integer":
		kind = piper.KindInteger
	case "float":
		kind = piper.KindFloat
	case "boolean":
		kind = piper.KindBoolean
	case "hash":
		kind = piper.KindHash
	case "reference":
		kind = piper.KindReference
	case "blob":
		kind = piper.KindBlob
	}
	return piper.Stub{Kind: kind, NonNeg: s.NonNeg, ClassID: s.ClassID}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw jsonValue
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("param: %w", err)
	}
	switch raw.ParameterType {
	case "data":
		var d piper.PipeData
		if err := json.Unmarshal(raw.Value, &d); err != nil {
			return err
		}
		*v = Data(d)
	case "boolean":
		var b bool
		if err := json.Unmarshal(raw.Value, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case "string":
		var s string
		if err := json.Unmarshal(raw.Value, &s); err != nil {
			return err
		}
		*v = String(s)
	case "integer":
		var i int64
		if err := json.Unmarshal(raw.Value, &i); err != nil {
			return err
		}
		*v = Integer(i)
	case "list":
		var items []Value
		if err := json.Unmarshal(raw.Value, &items); err != nil {
			return err
		}
		*v = List(items)
	case "map":
		var m map[string]Value
		if err := json.Unmarshal(raw.Value, &m); err != nil {
			return err
		}
		*v = Map(m)
	case "data_type":
		var dt stubJSON
		if err := json.Unmarshal(raw.Value, &dt); err != nil {
			return err
		}
		*v = DataType(dt.toStub())
	case "enum":
		var s string
		if err := json.Unmarshal(raw.Value, &s); err != nil {
			return err
		}
		*v = String(s)
	default:
		return fmt.Errorf("param: unrecognized parameter_type %q", raw.ParameterType)
	}
	return nil
}
