package ir

import (
	"fmt"
)

// Node factories. All construction goes through these; operand/user links
// and result types are established here and never mutated structurally
// afterwards except via ReplaceOperand.

// Literal adds a constant node holding v.
func (fb *FunctionBase) Literal(v Value) *Node {
	n := fb.newNode(OpLiteral, v.Type())
	val := v
	n.value = &val
	return n
}

// binOp ops produce a result of the left operand's type.
func (fb *FunctionBase) binOp(op Op, a, b *Node) *Node {
	return fb.newNode(op, a.Type(), a, b)
}

// cmpOp ops produce a single bit.
func (fb *FunctionBase) cmpOp(op Op, a, b *Node) *Node {
	return fb.newNode(op, fb.pkg.BitsType(1), a, b)
}

func (fb *FunctionBase) Add(a, b *Node) *Node  { return fb.binOp(OpAdd, a, b) }
func (fb *FunctionBase) Sub(a, b *Node) *Node  { return fb.binOp(OpSub, a, b) }
func (fb *FunctionBase) UMul(a, b *Node) *Node { return fb.binOp(OpUMul, a, b) }
func (fb *FunctionBase) SMul(a, b *Node) *Node { return fb.binOp(OpSMul, a, b) }
func (fb *FunctionBase) UDiv(a, b *Node) *Node { return fb.binOp(OpUDiv, a, b) }
func (fb *FunctionBase) SDiv(a, b *Node) *Node { return fb.binOp(OpSDiv, a, b) }
func (fb *FunctionBase) UMod(a, b *Node) *Node { return fb.binOp(OpUMod, a, b) }
func (fb *FunctionBase) SMod(a, b *Node) *Node { return fb.binOp(OpSMod, a, b) }

func (fb *FunctionBase) Shll(a, b *Node) *Node { return fb.binOp(OpShll, a, b) }
func (fb *FunctionBase) Shrl(a, b *Node) *Node { return fb.binOp(OpShrl, a, b) }
func (fb *FunctionBase) Shra(a, b *Node) *Node { return fb.binOp(OpShra, a, b) }

func (fb *FunctionBase) Eq(a, b *Node) *Node  { return fb.cmpOp(OpEq, a, b) }
func (fb *FunctionBase) Ne(a, b *Node) *Node  { return fb.cmpOp(OpNe, a, b) }
func (fb *FunctionBase) ULt(a, b *Node) *Node { return fb.cmpOp(OpULt, a, b) }
func (fb *FunctionBase) ULe(a, b *Node) *Node { return fb.cmpOp(OpULe, a, b) }
func (fb *FunctionBase) UGt(a, b *Node) *Node { return fb.cmpOp(OpUGt, a, b) }
func (fb *FunctionBase) UGe(a, b *Node) *Node { return fb.cmpOp(OpUGe, a, b) }
func (fb *FunctionBase) SLt(a, b *Node) *Node { return fb.cmpOp(OpSLt, a, b) }
func (fb *FunctionBase) SLe(a, b *Node) *Node { return fb.cmpOp(OpSLe, a, b) }
func (fb *FunctionBase) SGt(a, b *Node) *Node { return fb.cmpOp(OpSGt, a, b) }
func (fb *FunctionBase) SGe(a, b *Node) *Node { return fb.cmpOp(OpSGe, a, b) }

// Not is bitwise complement; Neg is two's complement negation.
func (fb *FunctionBase) Not(a *Node) *Node { return fb.newNode(OpNot, a.Type(), a) }
func (fb *FunctionBase) Neg(a *Node) *Node { return fb.newNode(OpNeg, a.Type(), a) }

// naryOp ops take one or more same-typed operands.
func (fb *FunctionBase) naryOp(op Op, operands []*Node) *Node {
	return fb.newNode(op, operands[0].Type(), operands...)
}

func (fb *FunctionBase) And(operands ...*Node) *Node  { return fb.naryOp(OpAnd, operands) }
func (fb *FunctionBase) Or(operands ...*Node) *Node   { return fb.naryOp(OpOr, operands) }
func (fb *FunctionBase) Xor(operands ...*Node) *Node  { return fb.naryOp(OpXor, operands) }
func (fb *FunctionBase) Nand(operands ...*Node) *Node { return fb.naryOp(OpNand, operands) }
func (fb *FunctionBase) Nor(operands ...*Node) *Node  { return fb.naryOp(OpNor, operands) }

// Concat joins bit vectors, first operand most significant.
func (fb *FunctionBase) Concat(operands ...*Node) *Node {
	var width int64
	for _, o := range operands {
		width += o.Type().FlatBitCount()
	}
	return fb.newNode(OpConcat, fb.pkg.BitsType(width), operands...)
}

// BitSlice extracts width bits of a starting at bit start (lsb numbering).
func (fb *FunctionBase) BitSlice(a *Node, start, width int64) *Node {
	n := fb.newNode(OpBitSlice, fb.pkg.BitsType(width), a)
	n.start = start
	n.width = width
	return n
}

// Select is a two-way mux: selector picks onTrue when 1, onFalse when 0.
func (fb *FunctionBase) Select(selector, onTrue, onFalse *Node) *Node {
	return fb.newNode(OpSelect, onTrue.Type(), selector, onTrue, onFalse)
}

// OneHotSelect ORs together the cases whose selector bit is set. Selector bit
// i gates cases[i]; all cases share a type.
func (fb *FunctionBase) OneHotSelect(selector *Node, cases ...*Node) *Node {
	operands := append([]*Node{selector}, cases...)
	return fb.newNode(OpOneHotSelect, cases[0].Type(), operands...)
}

// Tuple constructs a tuple from element nodes.
func (fb *FunctionBase) Tuple(elements ...*Node) *Node {
	types := make([]Type, len(elements))
	for i, e := range elements {
		types[i] = e.Type()
	}
	return fb.newNode(OpTuple, fb.pkg.TupleType(types...), elements...)
}

// TupleIndex extracts element i of a tuple-typed node.
func (fb *FunctionBase) TupleIndex(a *Node, i int64) (*Node, error) {
	tt, ok := a.Type().(*TupleType)
	if !ok {
		return nil, fmt.Errorf("tuple_index operand %s has non-tuple type %s", a, a.Type())
	}
	if i < 0 || int(i) >= tt.Size() {
		return nil, fmt.Errorf("tuple_index %d out of range for type %s", i, tt)
	}
	n := fb.newNode(OpTupleIndex, tt.Element(int(i)), a)
	n.index = i
	return n, nil
}

// TupleUpdate replaces element i of a tuple with value.
func (fb *FunctionBase) TupleUpdate(a *Node, i int64, value *Node) (*Node, error) {
	tt, ok := a.Type().(*TupleType)
	if !ok {
		return nil, fmt.Errorf("tuple_update operand %s has non-tuple type %s", a, a.Type())
	}
	if i < 0 || int(i) >= tt.Size() {
		return nil, fmt.Errorf("tuple_update index %d out of range for type %s", i, tt)
	}
	if value.Type() != tt.Element(int(i)) {
		return nil, fmt.Errorf("tuple_update value type %s does not match element type %s",
			value.Type(), tt.Element(int(i)))
	}
	n := fb.newNode(OpTupleUpdate, tt, a, value)
	n.index = i
	return n, nil
}

// Array constructs an array from same-typed element nodes.
func (fb *FunctionBase) Array(elements ...*Node) (*Node, error) {
	if len(elements) == 0 {
		return nil, fmt.Errorf("array must have at least one element")
	}
	for _, e := range elements[1:] {
		if e.Type() != elements[0].Type() {
			return nil, fmt.Errorf("array elements have mixed types %s and %s",
				elements[0].Type(), e.Type())
		}
	}
	typ := fb.pkg.ArrayType(elements[0].Type(), int64(len(elements)))
	return fb.newNode(OpArray, typ, elements...), nil
}

// ArrayIndex reads an array element by a dynamic index.
func (fb *FunctionBase) ArrayIndex(a, index *Node) (*Node, error) {
	at, ok := a.Type().(*ArrayType)
	if !ok {
		return nil, fmt.Errorf("array_index operand %s has non-array type %s", a, a.Type())
	}
	return fb.newNode(OpArrayIndex, at.Element(), a, index), nil
}

// ArrayUpdate writes an array element at a dynamic index.
func (fb *FunctionBase) ArrayUpdate(a, index, value *Node) (*Node, error) {
	at, ok := a.Type().(*ArrayType)
	if !ok {
		return nil, fmt.Errorf("array_update operand %s has non-array type %s", a, a.Type())
	}
	if value.Type() != at.Element() {
		return nil, fmt.Errorf("array_update value type %s does not match element type %s",
			value.Type(), at.Element())
	}
	return fb.newNode(OpArrayUpdate, at, a, index, value), nil
}

// ZeroExt widens a to newWidth with zero bits.
func (fb *FunctionBase) ZeroExt(a *Node, newWidth int64) *Node {
	return fb.newNode(OpZeroExt, fb.pkg.BitsType(newWidth), a)
}

// SignExt widens a to newWidth replicating the sign bit.
func (fb *FunctionBase) SignExt(a *Node, newWidth int64) *Node {
	return fb.newNode(OpSignExt, fb.pkg.BitsType(newWidth), a)
}

// Invoke calls a function with the given arguments; the result type is the
// callee's return type.
func (fb *FunctionBase) Invoke(callee *Function, args ...*Node) (*Node, error) {
	if callee.Return() == nil {
		return nil, fmt.Errorf("invoke of %s: callee has no return value", callee.Name())
	}
	n := fb.newNode(OpInvoke, callee.Return().Type(), args...)
	n.callee = callee
	return n, nil
}

// Send transmits data on a channel after token; the result is a token.
func (fb *FunctionBase) Send(token *Node, data *Node, ch *Channel) *Node {
	n := fb.newNode(OpSend, fb.pkg.TokenType(), token, data)
	n.channel = ch
	return n
}

// Receive consumes a value from a channel after token; the result is a
// (token, data) tuple.
func (fb *FunctionBase) Receive(token *Node, ch *Channel) *Node {
	n := fb.newNode(OpReceive, fb.pkg.TupleType(fb.pkg.TokenType(), ch.Type()), token)
	n.channel = ch
	return n
}

// Assert fires message when condition is false, sequenced after token.
func (fb *FunctionBase) Assert(token, condition *Node, message string) *Node {
	n := fb.newNode(OpAssert, fb.pkg.TokenType(), token, condition)
	n.message = message
	return n
}

// Cover counts cycles in which condition holds, labeled for waiver tracking.
func (fb *FunctionBase) Cover(token, condition *Node, label string) *Node {
	n := fb.newNode(OpCover, fb.pkg.TokenType(), token, condition)
	n.message = label
	return n
}

// AfterAll joins tokens.
func (fb *FunctionBase) AfterAll(tokens ...*Node) *Node {
	return fb.newNode(OpAfterAll, fb.pkg.TokenType(), tokens...)
}

// CloneNode creates a node in fb with n's op, type, name, and payloads but
// the given operands. Owner-bound payloads (ports, registers,
// instantiations) are not carried over.
func (fb *FunctionBase) CloneNode(n *Node, operands ...*Node) *Node {
	c := fb.newNode(n.op, n.typ, operands...)
	c.name = n.name
	c.value = n.value
	c.channel = n.channel
	c.callee = n.callee
	c.index = n.index
	c.start = n.start
	c.width = n.width
	c.message = n.message
	return c
}
