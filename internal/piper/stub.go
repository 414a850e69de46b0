// Copyright 2025 James Ross
package piper

// Kind identifies the variant of a PipeData value or a Stub, independent of
// the value itself.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindHash
	KindReference
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "Text"
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindBoolean:
		return "Boolean"
	case KindHash:
		return "Hash"
	case KindReference:
		return "Reference"
	case KindBlob:
		return "Blob"
	default:
		return "Unknown"
	}
}

// HashKind names the hash algorithm carried by a Hash PipeData.
type HashKind int

const (
	HashSHA256 HashKind = iota
	HashMD5
)

// Stub is the type descriptor obtained by erasing the value from a
// PipeData: enough information to decide whether two ports are compatible,
// but none of the data itself. Two stubs are equal exactly when their Kind
// matches and, for Integer/Float, NonNeg matches, and for Reference,
// ClassID matches.
type Stub struct {
	Kind    Kind
	NonNeg  bool
	ClassID int64
}

// Equal implements the edge type-matching rule used by pipeline build.
func (s Stub) Equal(o Stub) bool {
	if s.Kind != o.Kind {
		return false
	}
	switch s.Kind {
	case KindInteger, KindFloat:
		return s.NonNeg == o.NonNeg
	case KindReference:
		return s.ClassID == o.ClassID
	default:
		return true
	}
}

func (s Stub) String() string {
	switch s.Kind {
	case KindInteger, KindFloat:
		if s.NonNeg {
			return s.Kind.String() + "(non-negative)"
		}
		return s.Kind.String()
	case KindReference:
		return "Reference(class=" + itoa(s.ClassID) + ")"
	default:
		return s.Kind.String()
	}
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
