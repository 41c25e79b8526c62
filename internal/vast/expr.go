package vast

import (
	"fmt"
	"strings"

	"rtlgen/internal/ir"
)

// Operator precedence levels, highest binds tightest. Leaves sit above every
// operator so they never get parenthesized.
const (
	precTernary    = 0
	precLogicalOr  = 1
	precLogicalAnd = 2
	precBitwiseOr  = 3
	precBitwiseXor = 4
	precBitwiseAnd = 5
	precEquality   = 6
	precRelational = 7
	precShift      = 8
	precAddSub     = 9
	precMulDivMod  = 10
	precPower      = 11
	precUnary      = 12
	precMax        = 13
)

// Expression is a Node that can appear on the right-hand side of an
// assignment.
type Expression interface {
	Node
	precedence() int
}

func isUnary(e Expression) bool {
	_, ok := e.(*Unary)
	return ok
}

// isReduction reports whether e is a unary reduction (&, |, ^ prefix).
// Reductions share their glyph with a binary operator, so they are always
// parenthesized inside binary expressions.
func isReduction(e Expression) bool {
	u, ok := e.(*Unary)
	return ok && u.reduction
}

func paren(s string) string { return "(" + s + ")" }

// FormatPreference selects how a Literal renders its value.
type FormatPreference int

const (
	// FormatDefault emits a bare decimal with no width prefix and is only
	// legal for values up to 32 bits.
	FormatDefault FormatPreference = iota
	FormatUnsignedDecimal
	FormatBinary
	FormatHex
)

// Literal is a constant. It either wraps a sized bit pattern or, for widths
// and repeat counts, a plain signless integer.
type Literal struct {
	bits   ir.Bits
	format FormatPreference
	plain  *int64
}

// PlainLiteral returns a bare decimal literal, as used in type widths and
// repeat counts.
func PlainLiteral(v int64) *Literal {
	return &Literal{plain: &v}
}

// NewLiteral returns a sized literal rendered per format. The default format
// has no width prefix, so values wider than 32 bits must pick an explicit
// format.
func NewLiteral(bits ir.Bits, format FormatPreference) (*Literal, error) {
	if format == FormatDefault && bits.Width() > 32 {
		return nil, fmt.Errorf("default format literal limited to 32 bits, got %d: %w",
			bits.Width(), ErrUnsupported)
	}
	return &Literal{bits: bits, format: format}, nil
}

func (l *Literal) precedence() int { return precMax }

func (l *Literal) Emit(li *LineInfo) string {
	li.Start(l)
	defer li.End(l)
	if l.plain != nil {
		return fmt.Sprintf("%d", *l.plain)
	}
	switch l.format {
	case FormatUnsignedDecimal:
		return fmt.Sprintf("%d'd%s", l.bits.Width(), l.bits.ToUnsignedDecimal())
	case FormatBinary:
		return fmt.Sprintf("%d'b%s", l.bits.Width(), l.bits.ToBinaryString())
	case FormatHex:
		return fmt.Sprintf("%d'h%s", l.bits.Width(), l.bits.ToHexString())
	}
	return l.bits.ToUnsignedDecimal()
}

func literalValue(e Expression) (int64, bool) {
	l, ok := e.(*Literal)
	if !ok {
		return 0, false
	}
	if l.plain != nil {
		return *l.plain, true
	}
	return int64(l.bits.Uint64()), true
}

// XSentinel is an all-x value of a given width, "W'dx".
type XSentinel struct {
	width int64
}

func NewXSentinel(width int64) *XSentinel { return &XSentinel{width: width} }

func (x *XSentinel) precedence() int { return precMax }

func (x *XSentinel) Emit(li *LineInfo) string {
	li.Start(x)
	defer li.End(x)
	return fmt.Sprintf("%d'dx", x.width)
}

// FourValueBinaryLiteral is a binary literal over {0, 1, X, ?}, as used in
// casez arm labels.
type FourValueBinaryLiteral struct {
	digits string
}

func NewFourValueBinaryLiteral(digits string) (*FourValueBinaryLiteral, error) {
	for _, c := range digits {
		switch c {
		case '0', '1', 'X', 'x', '?':
		default:
			return nil, fmt.Errorf("four-value literal digit %q: %w", c, ErrUnsupported)
		}
	}
	return &FourValueBinaryLiteral{digits: digits}, nil
}

func (l *FourValueBinaryLiteral) precedence() int { return precMax }

func (l *FourValueBinaryLiteral) Emit(li *LineInfo) string {
	li.Start(l)
	defer li.End(l)
	return fmt.Sprintf("%d'b%s", len(l.digits), l.digits)
}

// QuotedString is a string literal.
type QuotedString struct {
	text string
}

func NewQuotedString(text string) *QuotedString { return &QuotedString{text: text} }

func (q *QuotedString) precedence() int { return precMax }

func (q *QuotedString) Emit(li *LineInfo) string {
	li.Start(q)
	defer li.End(q)
	return fmt.Sprintf("\"%s\"", q.text)
}

// MacroRef names a preprocessor macro.
type MacroRef struct {
	name string
}

func NewMacroRef(name string) *MacroRef { return &MacroRef{name: name} }

func (m *MacroRef) precedence() int { return precMax }

func (m *MacroRef) Emit(li *LineInfo) string {
	li.Start(m)
	defer li.End(m)
	return "`" + m.name
}

// LogicRef names a declared net, variable, or port.
type LogicRef struct {
	def *Def
}

func (r *LogicRef) Name() string { return r.def.name }

func (r *LogicRef) precedence() int { return precMax }

func (r *LogicRef) Emit(li *LineInfo) string {
	li.Start(r)
	defer li.End(r)
	return r.def.name
}

func (r *LogicRef) isScalar() bool {
	return r.def.typ.width == nil && len(r.def.typ.packedDims) == 0
}

// ParameterRef names a module parameter.
type ParameterRef struct {
	param *Parameter
}

func (r *ParameterRef) precedence() int { return precMax }

func (r *ParameterRef) Emit(li *LineInfo) string {
	li.Start(r)
	defer li.End(r)
	return r.param.name
}

type localParamItemRef struct {
	item *LocalParamItem
}

func (r *localParamItemRef) precedence() int { return precMax }

func (r *localParamItemRef) Emit(li *LineInfo) string {
	li.Start(r)
	defer li.End(r)
	return r.item.name
}

// Slice is a bit range "subject[hi:lo]".
type Slice struct {
	subject *LogicRef
	hi, lo  Expression
}

// NewSlice returns subject[hi:lo]. A slice of a scalar is only legal as the
// degenerate [0:0], which elides to the bare subject.
func NewSlice(subject *LogicRef, hi, lo Expression) (Expression, error) {
	if subject.isScalar() {
		h, hok := literalValue(hi)
		l, lok := literalValue(lo)
		if !hok || !lok || h != 0 || l != 0 {
			return nil, fmt.Errorf("slice [%s:%s] of scalar %s: %w",
				hi.Emit(nil), lo.Emit(nil), subject.Name(), ErrUnsupported)
		}
		return subject, nil
	}
	return &Slice{subject: subject, hi: hi, lo: lo}, nil
}

func (s *Slice) precedence() int { return precMax }

func (s *Slice) Emit(li *LineInfo) string {
	li.Start(s)
	defer li.End(s)
	return fmt.Sprintf("%s[%s:%s]", s.subject.Emit(li), s.hi.Emit(li), s.lo.Emit(li))
}

// PartSelect is an indexed part select "subject[start +: width]".
type PartSelect struct {
	subject *LogicRef
	start   Expression
	width   Expression
}

func NewPartSelect(subject *LogicRef, start, width Expression) *PartSelect {
	return &PartSelect{subject: subject, start: start, width: width}
}

func (p *PartSelect) precedence() int { return precMax }

func (p *PartSelect) Emit(li *LineInfo) string {
	li.Start(p)
	defer li.End(p)
	return fmt.Sprintf("%s[%s +: %s]", p.subject.Emit(li), p.start.Emit(li), p.width.Emit(li))
}

// Index is a single-bit or array element select "subject[idx]".
type Index struct {
	subject *LogicRef
	idx     Expression
}

// NewIndex returns subject[idx]. Indexing a scalar is only legal at the
// constant 0, which elides to the bare subject.
func NewIndex(subject *LogicRef, idx Expression) (Expression, error) {
	if subject.isScalar() {
		v, ok := literalValue(idx)
		if !ok || v != 0 {
			return nil, fmt.Errorf("index [%s] of scalar %s: %w",
				idx.Emit(nil), subject.Name(), ErrUnsupported)
		}
		return subject, nil
	}
	return &Index{subject: subject, idx: idx}, nil
}

func (x *Index) precedence() int { return precMax }

func (x *Index) Emit(li *LineInfo) string {
	li.Start(x)
	defer li.End(x)
	return fmt.Sprintf("%s[%s]", x.subject.Emit(li), x.idx.Emit(li))
}

// Unary is a prefix operator application.
type Unary struct {
	op        string
	arg       Expression
	reduction bool
}

func newUnary(op string, arg Expression) *Unary { return &Unary{op: op, arg: arg} }

func newReduction(op string, arg Expression) *Unary {
	return &Unary{op: op, arg: arg, reduction: true}
}

func Negate(e Expression) *Unary     { return newUnary("-", e) }
func BitNot(e Expression) *Unary     { return newUnary("~", e) }
func LogicalNot(e Expression) *Unary { return newUnary("!", e) }
func AndReduce(e Expression) *Unary  { return newReduction("&", e) }
func OrReduce(e Expression) *Unary   { return newReduction("|", e) }
func XorReduce(e Expression) *Unary  { return newReduction("^", e) }

func (u *Unary) precedence() int { return precUnary }

func (u *Unary) Emit(li *LineInfo) string {
	li.Start(u)
	defer li.End(u)
	arg := u.arg.Emit(li)
	if u.arg.precedence() < precUnary || isUnary(u.arg) {
		arg = paren(arg)
	}
	return u.op + arg
}

// BinaryInfix is a binary operator application. Parenthesization is by
// precedence, with the right operand also wrapped at equal precedence so
// emitted text reassociates the way the tree does.
type BinaryInfix struct {
	op   string
	prec int
	lhs  Expression
	rhs  Expression
}

func newBinary(op string, prec int, lhs, rhs Expression) *BinaryInfix {
	return &BinaryInfix{op: op, prec: prec, lhs: lhs, rhs: rhs}
}

func Add(l, r Expression) *BinaryInfix        { return newBinary("+", precAddSub, l, r) }
func Sub(l, r Expression) *BinaryInfix        { return newBinary("-", precAddSub, l, r) }
func Mul(l, r Expression) *BinaryInfix        { return newBinary("*", precMulDivMod, l, r) }
func Div(l, r Expression) *BinaryInfix        { return newBinary("/", precMulDivMod, l, r) }
func Mod(l, r Expression) *BinaryInfix        { return newBinary("%", precMulDivMod, l, r) }
func Shll(l, r Expression) *BinaryInfix       { return newBinary("<<", precShift, l, r) }
func Shrl(l, r Expression) *BinaryInfix       { return newBinary(">>", precShift, l, r) }
func Shra(l, r Expression) *BinaryInfix       { return newBinary(">>>", precShift, l, r) }
func Lt(l, r Expression) *BinaryInfix         { return newBinary("<", precRelational, l, r) }
func Le(l, r Expression) *BinaryInfix         { return newBinary("<=", precRelational, l, r) }
func Gt(l, r Expression) *BinaryInfix         { return newBinary(">", precRelational, l, r) }
func Ge(l, r Expression) *BinaryInfix         { return newBinary(">=", precRelational, l, r) }
func Equals(l, r Expression) *BinaryInfix     { return newBinary("==", precEquality, l, r) }
func NotEquals(l, r Expression) *BinaryInfix  { return newBinary("!=", precEquality, l, r) }
func CaseEquals(l, r Expression) *BinaryInfix { return newBinary("===", precEquality, l, r) }
func BitAnd(l, r Expression) *BinaryInfix     { return newBinary("&", precBitwiseAnd, l, r) }
func BitOr(l, r Expression) *BinaryInfix      { return newBinary("|", precBitwiseOr, l, r) }
func BitXor(l, r Expression) *BinaryInfix     { return newBinary("^", precBitwiseXor, l, r) }
func LogicalAnd(l, r Expression) *BinaryInfix { return newBinary("&&", precLogicalAnd, l, r) }
func LogicalOr(l, r Expression) *BinaryInfix  { return newBinary("||", precLogicalOr, l, r) }
func Power(l, r Expression) *BinaryInfix      { return newBinary("**", precPower, l, r) }

func (b *BinaryInfix) precedence() int { return b.prec }

func (b *BinaryInfix) Emit(li *LineInfo) string {
	li.Start(b)
	defer li.End(b)
	lhs := b.lhs.Emit(li)
	if b.lhs.precedence() < b.prec || isReduction(b.lhs) {
		lhs = paren(lhs)
	}
	rhs := b.rhs.Emit(li)
	if b.rhs.precedence() <= b.prec || isReduction(b.rhs) {
		rhs = paren(rhs)
	}
	return fmt.Sprintf("%s %s %s", lhs, b.op, rhs)
}

// Ternary is "cond ? onTrue : onFalse".
type Ternary struct {
	cond    Expression
	onTrue  Expression
	onFalse Expression
}

func NewTernary(cond, onTrue, onFalse Expression) *Ternary {
	return &Ternary{cond: cond, onTrue: onTrue, onFalse: onFalse}
}

func (t *Ternary) precedence() int { return precTernary }

func (t *Ternary) Emit(li *LineInfo) string {
	li.Start(t)
	defer li.End(t)
	emit := func(e Expression) string {
		s := e.Emit(li)
		if e.precedence() <= precTernary {
			s = paren(s)
		}
		return s
	}
	return fmt.Sprintf("%s ? %s : %s", emit(t.cond), emit(t.onTrue), emit(t.onFalse))
}

// Concat is "{a, b}", or "{N{a, b}}" with a replication count.
type Concat struct {
	repl Expression
	args []Expression
}

func NewConcat(args ...Expression) *Concat { return &Concat{args: args} }

func NewReplicatedConcat(count int64, args ...Expression) *Concat {
	return &Concat{repl: PlainLiteral(count), args: args}
}

func (c *Concat) precedence() int { return precMax }

func (c *Concat) Emit(li *LineInfo) string {
	li.Start(c)
	defer li.End(c)
	parts := make([]string, len(c.args))
	for i, a := range c.args {
		parts[i] = a.Emit(li)
	}
	inner := "{" + strings.Join(parts, ", ") + "}"
	if c.repl != nil {
		return "{" + c.repl.Emit(li) + inner + "}"
	}
	return inner
}

// ArrayAssignmentPattern is the SystemVerilog "'{a, b}" aggregate.
type ArrayAssignmentPattern struct {
	args []Expression
}

func NewArrayAssignmentPattern(args ...Expression) *ArrayAssignmentPattern {
	return &ArrayAssignmentPattern{args: args}
}

func (p *ArrayAssignmentPattern) precedence() int { return precMax }

func (p *ArrayAssignmentPattern) Emit(li *LineInfo) string {
	li.Start(p)
	defer li.End(p)
	parts := make([]string, len(p.args))
	for i, a := range p.args {
		parts[i] = a.Emit(li)
	}
	return "'{" + strings.Join(parts, ", ") + "}"
}

// SystemFunctionCall is "$name(args)", or "$name" without arguments.
type SystemFunctionCall struct {
	name string
	args []Expression
}

func NewSystemFunctionCall(name string, args ...Expression) *SystemFunctionCall {
	return &SystemFunctionCall{name: name, args: args}
}

func (c *SystemFunctionCall) precedence() int { return precMax }

func (c *SystemFunctionCall) Emit(li *LineInfo) string {
	li.Start(c)
	defer li.End(c)
	if len(c.args) == 0 {
		return "$" + c.name
	}
	parts := make([]string, len(c.args))
	for i, a := range c.args {
		parts[i] = a.Emit(li)
	}
	return fmt.Sprintf("$%s(%s)", c.name, strings.Join(parts, ", "))
}

// VerilogFunctionCall invokes a function declared in the same module.
type VerilogFunctionCall struct {
	fn   *VerilogFunction
	args []Expression
}

func NewVerilogFunctionCall(fn *VerilogFunction, args ...Expression) *VerilogFunctionCall {
	return &VerilogFunctionCall{fn: fn, args: args}
}

func (c *VerilogFunctionCall) precedence() int { return precMax }

func (c *VerilogFunctionCall) Emit(li *LineInfo) string {
	li.Start(c)
	defer li.End(c)
	parts := make([]string, len(c.args))
	for i, a := range c.args {
		parts[i] = a.Emit(li)
	}
	return fmt.Sprintf("%s(%s)", c.fn.name, strings.Join(parts, ", "))
}
