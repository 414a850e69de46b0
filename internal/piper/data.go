// Copyright 2025 James Ross

// Package piper implements Copper's core value model: PipeData, the typed
// values that flow along pipeline edges, their erased Stub descriptors used
// for edge type-matching, and the BlobSource variants backing large binary
// values.
package piper

import (
	"encoding/json"
	"fmt"
)

// PipeData is an immutable, typed value carried along one pipeline edge.
// The zero value is not meaningful; use one of the constructor functions.
type PipeData struct {
	stub Stub

	text string
	i    int64
	f    float64
	b    bool

	hashKind  HashKind
	hashBytes []byte

	refItem int64

	blob BlobSource
}

func NewText(v string) PipeData {
	return PipeData{stub: Stub{Kind: KindText}, text: v}
}

func NewInteger(v int64, nonNeg bool) PipeData {
	return PipeData{stub: Stub{Kind: KindInteger, NonNeg: nonNeg}, i: v}
}

func NewFloat(v float64, nonNeg bool) PipeData {
	return PipeData{stub: Stub{Kind: KindFloat, NonNeg: nonNeg}, f: v}
}

func NewBoolean(v bool) PipeData {
	return PipeData{stub: Stub{Kind: KindBoolean}, b: v}
}

func NewHash(kind HashKind, data []byte) PipeData {
	return PipeData{stub: Stub{Kind: KindHash}, hashKind: kind, hashBytes: data}
}

func NewReference(classID, itemID int64) PipeData {
	return PipeData{stub: Stub{Kind: KindReference, ClassID: classID}, refItem: itemID}
}

func NewBlob(mime string, source BlobSource) PipeData {
	return PipeData{stub: Stub{Kind: KindBlob}, text: mime, blob: source}
}

func (p PipeData) Stub() Stub { return p.stub }

func (p PipeData) Text() (string, bool) {
	if p.stub.Kind != KindText {
		return "", false
	}
	return p.text, true
}

func (p PipeData) Integer() (int64, bool) {
	if p.stub.Kind != KindInteger {
		return 0, false
	}
	return p.i, true
}

func (p PipeData) Float() (float64, bool) {
	if p.stub.Kind != KindFloat {
		return 0, false
	}
	return p.f, true
}

func (p PipeData) Boolean() (bool, bool) {
	if p.stub.Kind != KindBoolean {
		return false, false
	}
	return p.b, true
}

func (p PipeData) Hash() (HashKind, []byte, bool) {
	if p.stub.Kind != KindHash {
		return 0, nil, false
	}
	return p.hashKind, p.hashBytes, true
}

func (p PipeData) Reference() (classID, itemID int64, ok bool) {
	if p.stub.Kind != KindReference {
		return 0, 0, false
	}
	return p.stub.ClassID, p.refItem, true
}

func (p PipeData) BlobMime() (string, bool) {
	if p.stub.Kind != KindBlob {
		return "", false
	}
	return p.text, true
}

func (p PipeData) BlobSource() (BlobSource, bool) {
	if p.stub.Kind != KindBlob {
		return nil, false
	}
	return p.blob, true
}

// jsonForm is the wire shape PipeData marshals to for persistence (e.g.
// item-db attribute storage). Blob values do not round-trip through this
// form: MarshalJSON writes only a placeholder for them, and ApplyTransaction
// stores that placeholder like any other attribute value.
type jsonForm struct {
	Kind     string `json:"kind"`
	Text     string `json:"text,omitempty"`
	Integer  int64  `json:"integer,omitempty"`
	Float    float64 `json:"float,omitempty"`
	Bool     bool   `json:"bool,omitempty"`
	NonNeg   bool   `json:"non_negative,omitempty"`
	HashKind int    `json:"hash_kind,omitempty"`
	HashHex  string `json:"hash_hex,omitempty"`
	ClassID  int64  `json:"class_id,omitempty"`
	ItemID   int64  `json:"item_id,omitempty"`
}

// MarshalJSON implements json.Marshaler for persisting scalar/reference
// values; Blob-kind values marshal to a placeholder since blobs are never
// stored directly as item-db attributes (they are staged into the object
// store by the node that produces them, then referenced by key elsewhere).
func (p PipeData) MarshalJSON() ([]byte, error) {
	form := jsonForm{Kind: p.stub.Kind.String()}
	switch p.stub.Kind {
	case KindText:
		form.Text = p.text
	case KindInteger:
		form.Integer = p.i
		form.NonNeg = p.stub.NonNeg
	case KindFloat:
		form.Float = p.f
		form.NonNeg = p.stub.NonNeg
	case KindBoolean:
		form.Bool = p.b
	case KindHash:
		form.HashKind = int(p.hashKind)
		form.HashHex = hexEncode(p.hashBytes)
	case KindReference:
		form.ClassID = p.stub.ClassID
		form.ItemID = p.refItem
	case KindBlob:
		form.Text = p.text
	}
	return json.Marshal(form)
}

// UnmarshalJSON implements json.Unmarshaler for the inverse of jsonForm,
// used when a pipeline JSON document supplies a literal data value (the
// Constant node's "value" construction parameter). A literal never carries
// a Blob, since pipeline documents have no way to embed binary data inline.
func (p *PipeData) UnmarshalJSON(b []byte) error {
	var form jsonForm
	if err := json.Unmarshal(b, &form); err != nil {
		return err
	}
	switch form.Kind {
	case "Text":
		*p = NewText(form.Text)
	case "Integer":
		*p = NewInteger(form.Integer, form.NonNeg)
	case "Float":
		*p = NewFloat(form.Float, form.NonNeg)
	case "Boolean":
		*p = NewBoolean(form.Bool)
	case "Hash":
		bytes, err := hexDecode(form.HashHex)
		if err != nil {
			return err
		}
		*p = NewHash(HashKind(form.HashKind), bytes)
	case "Reference":
		*p = NewReference(form.ClassID, form.ItemID)
	default:
		return &unsupportedLiteralKindError{Kind: form.Kind}
	}
	return nil
}

type unsupportedLiteralKindError struct{ Kind string }

func (e *unsupportedLiteralKindError) Error() string {
	return "piper: " + e.Kind + " cannot appear as a literal construction parameter"
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("piper: odd-length hex string %q", s)
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, err := hexNibble(s[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(s[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("piper: invalid hex digit %q", c)
	}
}

func hexEncode(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = digits[c>>4]
		out[i*2+1] = digits[c&0xf]
	}
	return string(out)
}
