// Package vast models a Verilog/SystemVerilog abstract syntax tree and
// renders it to text. The tree is built bottom-up through factory methods on
// VerilogFile and Module; Emit walks it and optionally records a line map.
package vast

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported marks constructs the emitter cannot express in Verilog.
var ErrUnsupported = errors.New("unsupported Verilog construct")

// Node is anything that can render itself. Emit must call Increase on li for
// every newline it writes so the line map stays consistent.
type Node interface {
	Emit(li *LineInfo) string
}

// SanitizeIdentifier rewrites s into a legal Verilog identifier: a leading
// digit gets an underscore prefix and every other illegal character becomes
// an underscore.
func SanitizeIdentifier(s string) string {
	if s == "" {
		return "_"
	}
	var b strings.Builder
	if s[0] >= '0' && s[0] <= '9' {
		b.WriteByte('_')
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func indent(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = "  " + l
		}
	}
	return strings.Join(lines, "\n")
}

// DataType describes the shape of a net or variable: an optional bit-vector
// width, packed array dimensions, unpacked array dimensions, and signedness.
// A nil width with no packed dimensions is a scalar.
type DataType struct {
	width        Expression
	signed       bool
	packedDims   []Expression
	unpackedDims []Expression
	sv           bool
}

// ScalarType returns the single-bit type with no explicit range.
func (f *VerilogFile) ScalarType() *DataType {
	return &DataType{sv: f.useSystemVerilog}
}

// BitVectorType returns the type of a bitCount-wide vector. An unsigned
// one-bit vector degenerates to a scalar.
func (f *VerilogFile) BitVectorType(bitCount int64, signed bool) *DataType {
	t := &DataType{signed: signed, sv: f.useSystemVerilog}
	if bitCount != 1 || signed {
		t.width = PlainLiteral(bitCount)
	}
	return t
}

// PackedArrayType returns a packed array over elementBitCount-wide elements.
// The element width is always emitted, even for one-bit elements.
func (f *VerilogFile) PackedArrayType(elementBitCount int64, dims []int64, signed bool) *DataType {
	t := &DataType{width: PlainLiteral(elementBitCount), signed: signed, sv: f.useSystemVerilog}
	for _, d := range dims {
		t.packedDims = append(t.packedDims, PlainLiteral(d))
	}
	return t
}

// UnpackedArrayType returns an unpacked array over elementBitCount-wide
// elements.
func (f *VerilogFile) UnpackedArrayType(elementBitCount int64, dims []int64, signed bool) *DataType {
	t := &DataType{signed: signed, sv: f.useSystemVerilog}
	if elementBitCount != 1 {
		t.width = PlainLiteral(elementBitCount)
	}
	for _, d := range dims {
		t.unpackedDims = append(t.unpackedDims, PlainLiteral(d))
	}
	return t
}

// FlatBitCount returns the total number of bits the type occupies, or false
// when a dimension is not a literal.
func (t *DataType) FlatBitCount() (int64, bool) {
	bits := int64(1)
	if t.width != nil {
		w, ok := literalValue(t.width)
		if !ok {
			return 0, false
		}
		bits = w
	}
	for _, d := range append(append([]Expression{}, t.packedDims...), t.unpackedDims...) {
		v, ok := literalValue(d)
		if !ok {
			return 0, false
		}
		bits *= v
	}
	return bits, true
}

// widthToLimit renders the upper index of a [N-1:0] range. Literal widths
// fold the subtraction; everything else emits the expression minus one.
func widthToLimit(li *LineInfo, w Expression) string {
	if v, ok := literalValue(w); ok {
		return fmt.Sprintf("%d", v-1)
	}
	return w.Emit(li) + " - 1"
}

// EmitWithIdentifier renders the type around identifier, e.g.
// " signed [7:0] foo[0:3]".
func (t *DataType) EmitWithIdentifier(li *LineInfo, identifier string) string {
	var b strings.Builder
	if t.signed {
		b.WriteString(" signed")
	}
	if t.width != nil {
		b.WriteString(fmt.Sprintf(" [%s:0]", widthToLimit(li, t.width)))
	}
	for _, d := range t.packedDims {
		b.WriteString(fmt.Sprintf("[%s:0]", widthToLimit(li, d)))
	}
	b.WriteString(" " + identifier)
	for _, d := range t.unpackedDims {
		if t.sv {
			b.WriteString(fmt.Sprintf("[%s]", d.Emit(li)))
		} else {
			b.WriteString(fmt.Sprintf("[0:%s]", widthToLimit(li, d)))
		}
	}
	return b.String()
}

// DataKind distinguishes the declared storage class of a Def.
type DataKind int

const (
	KindWire DataKind = iota
	KindReg
	KindLogic
)

func (k DataKind) String() string {
	switch k {
	case KindWire:
		return "wire"
	case KindReg:
		return "reg"
	case KindLogic:
		return "logic"
	}
	return "invalid"
}

// Def declares a named net or variable. A non-nil init becomes an inline
// initializer, which is only meaningful for reg and logic kinds.
type Def struct {
	name string
	kind DataKind
	typ  *DataType
	init Expression
}

func (d *Def) Name() string { return d.name }

// EmitNoSemi renders the declaration without the trailing semicolon, as used
// in module port lists.
func (d *Def) EmitNoSemi(li *LineInfo) string {
	return d.kind.String() + d.typ.EmitWithIdentifier(li, d.name)
}

func (d *Def) Emit(li *LineInfo) string {
	li.Start(d)
	defer li.End(d)
	out := d.EmitNoSemi(li)
	if d.init != nil {
		out += " = " + d.init.Emit(li)
	}
	return out + ";"
}

// Direction is the side of a module port.
type Direction int

const (
	DirInput Direction = iota
	DirOutput
)

func (d Direction) String() string {
	if d == DirInput {
		return "input"
	}
	return "output"
}

type modulePort struct {
	dir Direction
	def *Def
}

// ModuleSection is an ordered slice of a module body. Nested sections let
// callers reserve an insertion point and fill it later.
type ModuleSection struct {
	members []Node
}

// Add appends a member node to the section.
func (s *ModuleSection) Add(n Node) { s.members = append(s.members, n) }

// NewSection appends and returns a nested section.
func (s *ModuleSection) NewSection() *ModuleSection {
	nested := &ModuleSection{}
	s.members = append(s.members, nested)
	return nested
}

func (s *ModuleSection) empty() bool {
	for _, m := range s.members {
		if nested, ok := m.(*ModuleSection); ok {
			if !nested.empty() {
				return false
			}
			continue
		}
		return false
	}
	return true
}

func (s *ModuleSection) Emit(li *LineInfo) string {
	li.Start(s)
	defer li.End(s)
	var lines []string
	for _, m := range s.members {
		if nested, ok := m.(*ModuleSection); ok && nested.empty() {
			continue
		}
		lines = append(lines, m.Emit(li))
		li.Increase(1)
	}
	if len(lines) > 0 {
		li.Increase(-1)
	}
	return strings.Join(lines, "\n")
}

// Module is one Verilog module: a port list and a body section.
type Module struct {
	name  string
	file  *VerilogFile
	ports []modulePort
	top   ModuleSection
}

func (m *Module) Name() string { return m.name }

// Top returns the module body section.
func (m *Module) Top() *ModuleSection { return &m.top }

func (m *Module) portKind() DataKind {
	if m.file.useSystemVerilog {
		return KindLogic
	}
	return KindWire
}

// AddInput declares an input port and returns a reference to it.
func (m *Module) AddInput(name string, typ *DataType) *LogicRef {
	def := &Def{name: name, kind: m.portKind(), typ: typ}
	m.ports = append(m.ports, modulePort{dir: DirInput, def: def})
	return &LogicRef{def: def}
}

// AddOutput declares an output port and returns a reference to it.
func (m *Module) AddOutput(name string, typ *DataType) *LogicRef {
	def := &Def{name: name, kind: m.portKind(), typ: typ}
	m.ports = append(m.ports, modulePort{dir: DirOutput, def: def})
	return &LogicRef{def: def}
}

// AddReg declares a reg (logic under SystemVerilog) in the body. A non-nil
// init becomes an inline initializer.
func (m *Module) AddReg(name string, typ *DataType, init Expression) *LogicRef {
	kind := KindReg
	if m.file.useSystemVerilog {
		kind = KindLogic
	}
	def := &Def{name: name, kind: kind, typ: typ, init: init}
	m.top.Add(def)
	return &LogicRef{def: def}
}

// AddWire declares a wire (logic under SystemVerilog) in the body.
func (m *Module) AddWire(name string, typ *DataType) *LogicRef {
	kind := KindWire
	if m.file.useSystemVerilog {
		kind = KindLogic
	}
	def := &Def{name: name, kind: kind, typ: typ}
	m.top.Add(def)
	return &LogicRef{def: def}
}

func (m *Module) Emit(li *LineInfo) string {
	li.Start(m)
	defer li.End(m)
	var b strings.Builder
	b.WriteString("module " + m.name)
	if len(m.ports) == 0 {
		b.WriteString(";\n")
		li.Increase(1)
	} else {
		b.WriteString("(\n")
		li.Increase(1)
		for i, p := range m.ports {
			b.WriteString("  " + p.dir.String() + " " + p.def.EmitNoSemi(li))
			if i < len(m.ports)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
			li.Increase(1)
		}
		b.WriteString(");\n")
		li.Increase(1)
	}
	body := m.top.Emit(li)
	b.WriteString(indent(body))
	b.WriteString("\nendmodule")
	li.Increase(1)
	return b.String()
}

// ContinuousAssignment is "assign lhs = rhs;".
type ContinuousAssignment struct {
	lhs Expression
	rhs Expression
}

func NewContinuousAssignment(lhs, rhs Expression) *ContinuousAssignment {
	return &ContinuousAssignment{lhs: lhs, rhs: rhs}
}

func (a *ContinuousAssignment) Emit(li *LineInfo) string {
	li.Start(a)
	defer li.End(a)
	return fmt.Sprintf("assign %s = %s;", a.lhs.Emit(li), a.rhs.Emit(li))
}

// Comment emits one or more "// " lines.
type Comment struct {
	text string
}

func NewComment(text string) *Comment { return &Comment{text: text} }

func (c *Comment) Emit(li *LineInfo) string {
	li.Start(c)
	defer li.End(c)
	out := "// " + strings.ReplaceAll(c.text, "\n", "\n// ")
	li.Increase(numberOfNewlines(out))
	return out
}

// BlankLine emits an empty line.
type BlankLine struct{}

func (b *BlankLine) Emit(li *LineInfo) string {
	li.Start(b)
	defer li.End(b)
	return ""
}

// Include is a `include directive.
type Include struct {
	path string
}

func NewInclude(path string) *Include { return &Include{path: path} }

func (i *Include) Emit(li *LineInfo) string {
	li.Start(i)
	defer li.End(i)
	return fmt.Sprintf("`include \"%s\"", i.path)
}

// InlineVerilogStatement splices raw text into the output unmodified.
type InlineVerilogStatement struct {
	text string
}

func NewInlineVerilogStatement(text string) *InlineVerilogStatement {
	return &InlineVerilogStatement{text: text}
}

func (s *InlineVerilogStatement) Emit(li *LineInfo) string {
	li.Start(s)
	defer li.End(s)
	li.Increase(numberOfNewlines(s.text))
	return s.text
}

// Parameter is a module-level "parameter name = rhs;".
type Parameter struct {
	name string
	rhs  Expression
}

func NewParameter(name string, rhs Expression) *Parameter {
	return &Parameter{name: name, rhs: rhs}
}

// Ref returns an expression naming the parameter.
func (p *Parameter) Ref() Expression { return &ParameterRef{param: p} }

func (p *Parameter) Emit(li *LineInfo) string {
	li.Start(p)
	defer li.End(p)
	return fmt.Sprintf("parameter %s = %s;", p.name, p.rhs.Emit(li))
}

// LocalParamItem is one binding of a LocalParam group.
type LocalParamItem struct {
	name string
	rhs  Expression
}

// Ref returns an expression naming the item.
func (i *LocalParamItem) Ref() Expression { return &localParamItemRef{item: i} }

// LocalParam is a localparam declaration with one or more items.
type LocalParam struct {
	items []*LocalParamItem
}

// AddItem appends a name/value binding and returns it.
func (p *LocalParam) AddItem(name string, rhs Expression) *LocalParamItem {
	item := &LocalParamItem{name: name, rhs: rhs}
	p.items = append(p.items, item)
	return item
}

func (p *LocalParam) Emit(li *LineInfo) string {
	li.Start(p)
	defer li.End(p)
	if len(p.items) == 1 {
		return fmt.Sprintf("localparam %s = %s;", p.items[0].name, p.items[0].rhs.Emit(li))
	}
	var b strings.Builder
	b.WriteString("localparam\n")
	li.Increase(1)
	for i, item := range p.items {
		b.WriteString(fmt.Sprintf("  %s = %s", item.name, item.rhs.Emit(li)))
		if i < len(p.items)-1 {
			b.WriteString(",\n")
			li.Increase(1)
		}
	}
	b.WriteString(";")
	return b.String()
}

// Connection binds a port or parameter name to an expression in an
// instantiation. A nil Expr leaves the port unconnected.
type Connection struct {
	Port string
	Expr Expression
}

// Instantiation is a module instance with named parameter and port
// connections.
type Instantiation struct {
	moduleName string
	instName   string
	params     []Connection
	conns      []Connection
}

func NewInstantiation(moduleName, instName string, params, conns []Connection) *Instantiation {
	return &Instantiation{moduleName: moduleName, instName: instName, params: params, conns: conns}
}

func emitConnections(li *LineInfo, conns []Connection) string {
	parts := make([]string, len(conns))
	for i, c := range conns {
		rhs := ""
		if c.Expr != nil {
			rhs = c.Expr.Emit(li)
		}
		parts[i] = fmt.Sprintf(".%s(%s)", c.Port, rhs)
	}
	return strings.Join(parts, ",\n  ")
}

func (inst *Instantiation) Emit(li *LineInfo) string {
	li.Start(inst)
	defer li.End(inst)
	var b strings.Builder
	b.WriteString(inst.moduleName + " ")
	if len(inst.params) > 0 {
		b.WriteString("#(\n  ")
		li.Increase(1)
		params := emitConnections(li, inst.params)
		li.Increase(numberOfNewlines(params))
		b.WriteString(params)
		b.WriteString("\n) ")
		li.Increase(1)
	}
	b.WriteString(inst.instName + " (\n  ")
	li.Increase(1)
	conns := emitConnections(li, inst.conns)
	li.Increase(numberOfNewlines(conns))
	b.WriteString(conns)
	b.WriteString("\n);")
	li.Increase(1)
	return b.String()
}

// VerilogFile is the root of an emitted file: a sequence of modules,
// includes, and comments.
type VerilogFile struct {
	useSystemVerilog bool
	members          []Node
}

// NewVerilogFile returns an empty file. useSystemVerilog selects logic
// declarations and SystemVerilog array syntax.
func NewVerilogFile(useSystemVerilog bool) *VerilogFile {
	return &VerilogFile{useSystemVerilog: useSystemVerilog}
}

// UseSystemVerilog reports whether the file targets SystemVerilog.
func (f *VerilogFile) UseSystemVerilog() bool { return f.useSystemVerilog }

// AddModule appends an empty module with the given name.
func (f *VerilogFile) AddModule(name string) *Module {
	m := &Module{name: name, file: f}
	f.members = append(f.members, m)
	return m
}

// Add appends an arbitrary top-level member.
func (f *VerilogFile) Add(n Node) { f.members = append(f.members, n) }

func (f *VerilogFile) Emit(li *LineInfo) string {
	var b strings.Builder
	for _, m := range f.members {
		b.WriteString(m.Emit(li))
		b.WriteString("\n")
		li.Increase(1)
	}
	return b.String()
}
