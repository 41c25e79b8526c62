package ir

import (
	"fmt"
	"math/big"
	"strings"
)

// Bits is an unsigned fixed-width bit vector value. The underlying integer
// is always non-negative and masked to the width.
type Bits struct {
	width int64
	value *big.Int
}

// NewBits returns a Bits of the given width holding value truncated to that
// width. The value must be non-negative.
func NewBits(width int64, value *big.Int) Bits {
	v := new(big.Int).Set(value)
	if width >= 0 {
		mask := new(big.Int).Lsh(big.NewInt(1), uint(width))
		mask.Sub(mask, big.NewInt(1))
		v.And(v, mask)
	}
	return Bits{width: width, value: v}
}

// BitsFromUint64 returns a Bits of the given width holding v truncated.
func BitsFromUint64(width int64, v uint64) Bits {
	return NewBits(width, new(big.Int).SetUint64(v))
}

func (b Bits) Width() int64 { return b.width }

// Int returns a copy of the underlying non-negative integer.
func (b Bits) Int() *big.Int { return new(big.Int).Set(b.value) }

// IsZero reports whether every bit is zero.
func (b Bits) IsZero() bool { return b.value.Sign() == 0 }

// Uint64 returns the value as a uint64. The value must fit.
func (b Bits) Uint64() uint64 { return b.value.Uint64() }

// Bit returns bit i (0 is the least significant bit).
func (b Bits) Bit(i int64) uint { return b.value.Bit(int(i)) }

// ToUnsignedDecimal renders the value in base 10 with no width prefix.
func (b Bits) ToUnsignedDecimal() string { return b.value.Text(10) }

// ToBinaryString renders the value in base 2, zero-padded to the width.
func (b Bits) ToBinaryString() string {
	s := b.value.Text(2)
	if pad := int(b.width) - len(s); pad > 0 {
		s = strings.Repeat("0", pad) + s
	}
	return s
}

// ToHexString renders the value in base 16, zero-padded to ceil(width/4)
// digits.
func (b Bits) ToHexString() string {
	s := b.value.Text(16)
	digits := int((b.width + 3) / 4)
	if pad := digits - len(s); pad > 0 {
		s = strings.Repeat("0", pad) + s
	}
	return s
}

func (b Bits) String() string {
	return fmt.Sprintf("bits[%d]:%s", b.width, b.ToUnsignedDecimal())
}

// Value is a constant of any IR type: a bit vector, a tuple of values, or an
// array of values. Token values carry no payload.
type Value struct {
	typ      Type
	bits     Bits
	elements []Value
}

// BitsValue wraps a bit vector as a Value of the corresponding BitsType in p.
func (p *Package) BitsValue(b Bits) Value {
	return Value{typ: p.BitsType(b.Width()), bits: b}
}

// TupleValue builds a tuple value from element values.
func (p *Package) TupleValue(elements ...Value) Value {
	types := make([]Type, len(elements))
	for i, e := range elements {
		types[i] = e.typ
	}
	return Value{typ: p.TupleType(types...), elements: elements}
}

// ArrayValue builds an array value. All elements must share a type and there
// must be at least one element.
func (p *Package) ArrayValue(elements ...Value) (Value, error) {
	if len(elements) == 0 {
		return Value{}, fmt.Errorf("array value must have at least one element")
	}
	for _, e := range elements[1:] {
		if e.typ != elements[0].typ {
			return Value{}, fmt.Errorf("array elements have mixed types %s and %s", elements[0].typ, e.typ)
		}
	}
	return Value{typ: p.ArrayType(elements[0].typ, int64(len(elements))), elements: elements}, nil
}

// TokenValue returns the (unique) token value.
func (p *Package) TokenValue() Value {
	return Value{typ: p.TokenType()}
}

// ZeroOfType returns the all-zero value of t.
func (p *Package) ZeroOfType(t Type) Value {
	switch tt := t.(type) {
	case *BitsType:
		return p.BitsValue(BitsFromUint64(tt.Width(), 0))
	case *TupleType:
		elems := make([]Value, tt.Size())
		for i := range elems {
			elems[i] = p.ZeroOfType(tt.Element(i))
		}
		return Value{typ: t, elements: elems}
	case *ArrayType:
		elems := make([]Value, tt.Size())
		for i := range elems {
			elems[i] = p.ZeroOfType(tt.Element())
		}
		return Value{typ: t, elements: elems}
	case *TokenType:
		return p.TokenValue()
	}
	panic(fmt.Sprintf("unknown type %T", t))
}

func (v Value) Type() Type { return v.typ }

// Bits returns the bit vector payload. Valid only for bits-typed values.
func (v Value) Bits() Bits { return v.bits }

// Elements returns the element values of a tuple or array value.
func (v Value) Elements() []Value { return v.elements }

// Equal reports structural equality of two values.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ.(type) {
	case *BitsType:
		return v.bits.value.Cmp(o.bits.value) == 0
	case *TokenType:
		return true
	}
	for i := range v.elements {
		if !v.elements[i].Equal(o.elements[i]) {
			return false
		}
	}
	return true
}

// Flatten appends the value's bits, most significant element first, onto a
// big integer shifted left by each element's flat width.
func (v Value) Flatten() Bits {
	width := v.typ.FlatBitCount()
	switch v.typ.(type) {
	case *BitsType:
		return v.bits
	case *TokenType:
		return Bits{width: 0, value: big.NewInt(0)}
	}
	acc := big.NewInt(0)
	for _, e := range v.elements {
		flat := e.Flatten()
		acc.Lsh(acc, uint(flat.width))
		acc.Or(acc, flat.value)
	}
	return Bits{width: width, value: acc}
}

func (v Value) String() string {
	switch v.typ.(type) {
	case *BitsType:
		return v.bits.String()
	case *TokenType:
		return "token"
	}
	parts := make([]string, len(v.elements))
	for i, e := range v.elements {
		parts[i] = e.String()
	}
	open, close := "(", ")"
	if _, ok := v.typ.(*ArrayType); ok {
		open, close = "[", "]"
	}
	return open + strings.Join(parts, ", ") + close
}
