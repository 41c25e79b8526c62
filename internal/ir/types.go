package ir

import (
	"fmt"
	"strings"
)

// Type is the interface implemented by all IR types. Types are interned at
// package scope; two structurally equal types are pointer-equal within one
// package.
type Type interface {
	// FlatBitCount returns the number of bits required to represent the
	// type when flattened to a bit vector. Tokens are zero bits.
	FlatBitCount() int64
	String() string

	isType()
}

// BitsType is a fixed-width bit vector.
type BitsType struct {
	width int64
}

func (t *BitsType) FlatBitCount() int64 { return t.width }
func (t *BitsType) Width() int64        { return t.width }
func (t *BitsType) String() string      { return fmt.Sprintf("bits[%d]", t.width) }
func (t *BitsType) isType()             {}

// TupleType is an ordered, possibly empty, collection of element types.
type TupleType struct {
	elements []Type
}

func (t *TupleType) FlatBitCount() int64 {
	var total int64
	for _, e := range t.elements {
		total += e.FlatBitCount()
	}
	return total
}

func (t *TupleType) Size() int            { return len(t.elements) }
func (t *TupleType) Element(i int) Type   { return t.elements[i] }
func (t *TupleType) Elements() []Type     { return t.elements }
func (t *TupleType) isType()              {}

func (t *TupleType) String() string {
	parts := make([]string, len(t.elements))
	for i, e := range t.elements {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ArrayType is a fixed-size array of a single element type.
type ArrayType struct {
	element Type
	size    int64
}

func (t *ArrayType) FlatBitCount() int64 { return t.element.FlatBitCount() * t.size }
func (t *ArrayType) Element() Type       { return t.element }
func (t *ArrayType) Size() int64         { return t.size }
func (t *ArrayType) String() string      { return fmt.Sprintf("%s[%d]", t.element, t.size) }
func (t *ArrayType) isType()             {}

// TokenType carries ordering information only and occupies zero bits.
type TokenType struct{}

func (t *TokenType) FlatBitCount() int64 { return 0 }
func (t *TokenType) String() string      { return "token" }
func (t *TokenType) isType()             {}

// typeKey returns the interning key for a type built from the given parts.
func typeKey(t Type) string { return t.String() }
