package vast

import (
	"fmt"
	"strings"
)

// StatementBlock is a begin/end group of statements.
type StatementBlock struct {
	statements []Node
}

func NewStatementBlock() *StatementBlock { return &StatementBlock{} }

// Add appends a statement.
func (b *StatementBlock) Add(n Node) { b.statements = append(b.statements, n) }

// AddBlocking appends "lhs = rhs;".
func (b *StatementBlock) AddBlocking(lhs, rhs Expression) *BlockingAssignment {
	a := &BlockingAssignment{lhs: lhs, rhs: rhs}
	b.Add(a)
	return a
}

// AddNonblocking appends "lhs <= rhs;".
func (b *StatementBlock) AddNonblocking(lhs, rhs Expression) *NonblockingAssignment {
	a := &NonblockingAssignment{lhs: lhs, rhs: rhs}
	b.Add(a)
	return a
}

func (b *StatementBlock) Emit(li *LineInfo) string {
	li.Start(b)
	defer li.End(b)
	if len(b.statements) == 0 {
		return "begin end"
	}
	var sb strings.Builder
	sb.WriteString("begin\n")
	li.Increase(1)
	lines := make([]string, len(b.statements))
	for i, s := range b.statements {
		lines[i] = s.Emit(li)
		li.Increase(1)
	}
	sb.WriteString(indent(strings.Join(lines, "\n")))
	sb.WriteString("\nend")
	return sb.String()
}

// BlockingAssignment is "lhs = rhs;".
type BlockingAssignment struct {
	lhs, rhs Expression
}

func (a *BlockingAssignment) Emit(li *LineInfo) string {
	li.Start(a)
	defer li.End(a)
	return fmt.Sprintf("%s = %s;", a.lhs.Emit(li), a.rhs.Emit(li))
}

// NonblockingAssignment is "lhs <= rhs;".
type NonblockingAssignment struct {
	lhs, rhs Expression
}

func (a *NonblockingAssignment) Emit(li *LineInfo) string {
	li.Start(a)
	defer li.End(a)
	return fmt.Sprintf("%s <= %s;", a.lhs.Emit(li), a.rhs.Emit(li))
}

type conditionalAlternate struct {
	cond  Expression
	block *StatementBlock
}

// Conditional is an if/else-if/else chain.
type Conditional struct {
	cond       Expression
	consequent *StatementBlock
	alternates []conditionalAlternate
}

// NewConditional returns "if (cond) ..." and its consequent block.
func NewConditional(cond Expression) *Conditional {
	return &Conditional{cond: cond, consequent: NewStatementBlock()}
}

// Consequent returns the block guarded by the condition.
func (c *Conditional) Consequent() *StatementBlock { return c.consequent }

// AddAlternate appends an "else if (cond)" arm, or a final "else" arm when
// cond is nil. No arm may follow an unconditional else.
func (c *Conditional) AddAlternate(cond Expression) (*StatementBlock, error) {
	if n := len(c.alternates); n > 0 && c.alternates[n-1].cond == nil {
		return nil, fmt.Errorf("conditional already has an unconditional else arm")
	}
	block := NewStatementBlock()
	c.alternates = append(c.alternates, conditionalAlternate{cond: cond, block: block})
	return block, nil
}

func (c *Conditional) Emit(li *LineInfo) string {
	li.Start(c)
	defer li.End(c)
	var b strings.Builder
	b.WriteString(fmt.Sprintf("if (%s) ", c.cond.Emit(li)))
	b.WriteString(c.consequent.Emit(li))
	for _, alt := range c.alternates {
		if alt.cond != nil {
			b.WriteString(fmt.Sprintf(" else if (%s) ", alt.cond.Emit(li)))
		} else {
			b.WriteString(" else ")
		}
		b.WriteString(alt.block.Emit(li))
	}
	return b.String()
}

// CaseArm is one "label: block" arm. A nil label is the default arm.
type CaseArm struct {
	label Expression
	block *StatementBlock
}

// Case is a case statement, optionally casez and optionally unique.
type Case struct {
	subject Expression
	casez   bool
	unique  bool
	arms    []*CaseArm
}

func NewCase(subject Expression) *Case  { return &Case{subject: subject} }
func NewCasez(subject Expression) *Case { return &Case{subject: subject, casez: true} }

// SetUnique marks the case as a SystemVerilog unique case.
func (c *Case) SetUnique() { c.unique = true }

// AddArm appends an arm and returns its block. A nil label adds the default
// arm.
func (c *Case) AddArm(label Expression) *StatementBlock {
	arm := &CaseArm{label: label, block: NewStatementBlock()}
	c.arms = append(c.arms, arm)
	return arm.block
}

func (c *Case) Emit(li *LineInfo) string {
	li.Start(c)
	defer li.End(c)
	keyword := "case"
	if c.casez {
		keyword = "casez"
	}
	if c.unique {
		keyword = "unique " + keyword
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s (%s)\n", keyword, c.subject.Emit(li)))
	li.Increase(1)
	lines := make([]string, len(c.arms))
	for i, arm := range c.arms {
		label := "default"
		if arm.label != nil {
			label = arm.label.Emit(li)
		}
		lines[i] = fmt.Sprintf("%s: %s", label, arm.block.Emit(li))
		li.Increase(1)
	}
	b.WriteString(indent(strings.Join(lines, "\n")))
	b.WriteString("\nendcase")
	return b.String()
}

// While is "while (cond) block".
type While struct {
	cond Expression
	body *StatementBlock
}

func NewWhile(cond Expression) *While {
	return &While{cond: cond, body: NewStatementBlock()}
}

func (w *While) Body() *StatementBlock { return w.body }

func (w *While) Emit(li *LineInfo) string {
	li.Start(w)
	defer li.End(w)
	return fmt.Sprintf("while (%s) %s", w.cond.Emit(li), w.body.Emit(li))
}

// Repeat is "repeat (count) statement".
type Repeat struct {
	count Expression
	body  Node
}

func NewRepeat(count Expression, body Node) *Repeat {
	return &Repeat{count: count, body: body}
}

func (r *Repeat) Emit(li *LineInfo) string {
	li.Start(r)
	defer li.End(r)
	return fmt.Sprintf("repeat (%s) %s", r.count.Emit(li), r.body.Emit(li))
}

// Forever is "forever statement".
type Forever struct {
	body Node
}

func NewForever(body Node) *Forever { return &Forever{body: body} }

func (f *Forever) Emit(li *LineInfo) string {
	li.Start(f)
	defer li.End(f)
	return "forever " + f.body.Emit(li)
}

// Wait is "wait(e);".
type Wait struct {
	event Expression
}

func NewWait(event Expression) *Wait { return &Wait{event: event} }

func (w *Wait) Emit(li *LineInfo) string {
	li.Start(w)
	defer li.End(w)
	return fmt.Sprintf("wait(%s);", w.event.Emit(li))
}

// Delay is "#amount statement", or a bare "#amount;" with a nil statement.
type Delay struct {
	amount Expression
	body   Node
}

func NewDelay(amount Expression, body Node) *Delay {
	return &Delay{amount: amount, body: body}
}

func (d *Delay) Emit(li *LineInfo) string {
	li.Start(d)
	defer li.End(d)
	amount := d.amount.Emit(li)
	if d.amount.precedence() < precMax {
		amount = paren(amount)
	}
	if d.body == nil {
		return fmt.Sprintf("#%s;", amount)
	}
	return fmt.Sprintf("#%s %s", amount, d.body.Emit(li))
}

// EventControl is "@(e);".
type EventControl struct {
	event Expression
}

func NewEventControl(event Expression) *EventControl {
	return &EventControl{event: event}
}

func (e *EventControl) Emit(li *LineInfo) string {
	li.Start(e)
	defer li.End(e)
	return fmt.Sprintf("@(%s);", e.event.Emit(li))
}

// PosEdge is the "posedge e" sensitivity expression.
type PosEdge struct {
	arg Expression
}

func NewPosEdge(arg Expression) *PosEdge { return &PosEdge{arg: arg} }

func (p *PosEdge) precedence() int { return precMax }

func (p *PosEdge) Emit(li *LineInfo) string {
	li.Start(p)
	defer li.End(p)
	return "posedge " + p.arg.Emit(li)
}

// NegEdge is the "negedge e" sensitivity expression.
type NegEdge struct {
	arg Expression
}

func NewNegEdge(arg Expression) *NegEdge { return &NegEdge{arg: arg} }

func (n *NegEdge) precedence() int { return precMax }

func (n *NegEdge) Emit(li *LineInfo) string {
	li.Start(n)
	defer li.End(n)
	return "negedge " + n.arg.Emit(li)
}

// ImplicitEvent is the "*" sensitivity of always @ (*).
type ImplicitEvent struct{}

func NewImplicitEvent() *ImplicitEvent { return &ImplicitEvent{} }

func (*ImplicitEvent) precedence() int { return precMax }

func (e *ImplicitEvent) Emit(li *LineInfo) string {
	li.Start(e)
	defer li.End(e)
	return "*"
}

// Always is an always process with an explicit sensitivity list.
type Always struct {
	keyword     string
	sensitivity []Expression
	body        *StatementBlock
}

func NewAlways(sensitivity ...Expression) *Always {
	return &Always{keyword: "always", sensitivity: sensitivity, body: NewStatementBlock()}
}

// NewAlwaysFf is the SystemVerilog always_ff variant.
func NewAlwaysFf(sensitivity ...Expression) *Always {
	return &Always{keyword: "always_ff", sensitivity: sensitivity, body: NewStatementBlock()}
}

func (a *Always) Body() *StatementBlock { return a.body }

func (a *Always) Emit(li *LineInfo) string {
	li.Start(a)
	defer li.End(a)
	parts := make([]string, len(a.sensitivity))
	for i, s := range a.sensitivity {
		parts[i] = s.Emit(li)
	}
	return fmt.Sprintf("%s @ (%s) %s", a.keyword, strings.Join(parts, " or "), a.body.Emit(li))
}

// AlwaysComb is "always_comb block".
type AlwaysComb struct {
	body *StatementBlock
}

func NewAlwaysComb() *AlwaysComb { return &AlwaysComb{body: NewStatementBlock()} }

func (a *AlwaysComb) Body() *StatementBlock { return a.body }

func (a *AlwaysComb) Emit(li *LineInfo) string {
	li.Start(a)
	defer li.End(a)
	return "always_comb " + a.body.Emit(li)
}

// Initial is "initial block".
type Initial struct {
	body *StatementBlock
}

func NewInitial() *Initial { return &Initial{body: NewStatementBlock()} }

func (i *Initial) Body() *StatementBlock { return i.body }

func (i *Initial) Emit(li *LineInfo) string {
	li.Start(i)
	defer li.End(i)
	return "initial " + i.body.Emit(li)
}

// Reset describes the reset signal of a flop block.
type Reset struct {
	Signal       *LogicRef
	ActiveLow    bool
	Asynchronous bool
}

// AlwaysFlop builds the conventional clocked register process: reset
// assignments guarded by the reset condition, everything else in the
// alternate arm.
type AlwaysFlop struct {
	proc        *Always
	resetBlock  *StatementBlock
	assignBlock *StatementBlock
}

// NewAlwaysFlop returns a flop process clocked on the positive edge of clk.
// A nil reset produces a plain clocked block. When systemVerilog is set the
// process is an always_ff.
func NewAlwaysFlop(clk *LogicRef, reset *Reset, systemVerilog bool) *AlwaysFlop {
	sensitivity := []Expression{NewPosEdge(clk)}
	if reset != nil && reset.Asynchronous {
		if reset.ActiveLow {
			sensitivity = append(sensitivity, NewNegEdge(reset.Signal))
		} else {
			sensitivity = append(sensitivity, NewPosEdge(reset.Signal))
		}
	}
	proc := NewAlways(sensitivity...)
	if systemVerilog {
		proc = NewAlwaysFf(sensitivity...)
	}
	f := &AlwaysFlop{proc: proc}
	if reset == nil {
		f.assignBlock = proc.Body()
		return f
	}
	var cond Expression = reset.Signal
	if reset.ActiveLow {
		cond = LogicalNot(reset.Signal)
	}
	c := NewConditional(cond)
	f.resetBlock = c.Consequent()
	f.assignBlock, _ = c.AddAlternate(nil)
	proc.Body().Add(c)
	return f
}

// AddRegister adds "reg <= next" to the clocked arm and, when resetValue is
// non-nil and a reset is configured, "reg <= resetValue" to the reset arm.
func (f *AlwaysFlop) AddRegister(reg *LogicRef, next Expression, resetValue Expression) {
	if resetValue != nil && f.resetBlock != nil {
		f.resetBlock.AddNonblocking(reg, resetValue)
	}
	f.assignBlock.AddNonblocking(reg, next)
}

func (f *AlwaysFlop) Emit(li *LineInfo) string {
	li.Start(f)
	defer li.End(f)
	return f.proc.Emit(li)
}

// SystemTaskCall is a "$name(args);" statement.
type SystemTaskCall struct {
	name string
	args []Expression
}

func NewSystemTaskCall(name string, args ...Expression) *SystemTaskCall {
	return &SystemTaskCall{name: name, args: args}
}

func (c *SystemTaskCall) Emit(li *LineInfo) string {
	li.Start(c)
	defer li.End(c)
	if len(c.args) == 0 {
		return fmt.Sprintf("$%s;", c.name)
	}
	parts := make([]string, len(c.args))
	for i, a := range c.args {
		parts[i] = a.Emit(li)
	}
	return fmt.Sprintf("$%s(%s);", c.name, strings.Join(parts, ", "))
}

// Assert is a deferred immediate assertion that fatals on failure.
type Assert struct {
	condition Expression
	message   string
}

func NewAssert(condition Expression, message string) *Assert {
	return &Assert{condition: condition, message: message}
}

func (a *Assert) Emit(li *LineInfo) string {
	li.Start(a)
	defer li.End(a)
	if a.message == "" {
		return fmt.Sprintf("assert #0 (%s) else $fatal(0);", a.condition.Emit(li))
	}
	return fmt.Sprintf("assert #0 (%s) else $fatal(0, \"%s\");", a.condition.Emit(li), a.message)
}

// Cover is a labeled cover property sampled on the positive clock edge.
type Cover struct {
	label     string
	condition Expression
	clk       *LogicRef
}

func NewCover(label string, condition Expression, clk *LogicRef) *Cover {
	return &Cover{label: label, condition: condition, clk: clk}
}

func (c *Cover) Emit(li *LineInfo) string {
	li.Start(c)
	defer li.End(c)
	return fmt.Sprintf("%s: cover property (@(posedge %s) %s);",
		c.label, c.clk.Emit(li), c.condition.Emit(li))
}

// VerilogFunction is a function declaration inside a module. The return
// value is assigned through the function-name reference.
type VerilogFunction struct {
	name       string
	returnType *DataType
	returnDef  *Def
	args       []*Def
	regs       []*Def
	body       *StatementBlock
}

func NewVerilogFunction(name string, returnType *DataType) *VerilogFunction {
	return &VerilogFunction{
		name:       name,
		returnType: returnType,
		returnDef:  &Def{name: name, kind: KindReg, typ: returnType},
		body:       NewStatementBlock(),
	}
}

func (f *VerilogFunction) Name() string { return f.name }

// ReturnRef returns the reference assigned as the function result.
func (f *VerilogFunction) ReturnRef() *LogicRef { return &LogicRef{def: f.returnDef} }

// AddArgument declares an input argument.
func (f *VerilogFunction) AddArgument(name string, typ *DataType) *LogicRef {
	def := &Def{name: name, kind: KindReg, typ: typ}
	f.args = append(f.args, def)
	return &LogicRef{def: def}
}

// AddReg declares a function-local reg.
func (f *VerilogFunction) AddReg(name string, typ *DataType) *LogicRef {
	def := &Def{name: name, kind: KindReg, typ: typ}
	f.regs = append(f.regs, def)
	return &LogicRef{def: def}
}

func (f *VerilogFunction) Body() *StatementBlock { return f.body }

func (f *VerilogFunction) Emit(li *LineInfo) string {
	li.Start(f)
	defer li.End(f)
	var b strings.Builder
	b.WriteString("function automatic")
	b.WriteString(f.returnType.EmitWithIdentifier(li, f.name))
	b.WriteString(" (")
	args := make([]string, len(f.args))
	for i, a := range f.args {
		args[i] = "input " + a.EmitNoSemi(li)
	}
	b.WriteString(strings.Join(args, ", "))
	b.WriteString(");\n")
	li.Increase(1)
	var inner []string
	for _, r := range f.regs {
		inner = append(inner, r.Emit(li))
		li.Increase(1)
	}
	inner = append(inner, f.body.Emit(li))
	b.WriteString(indent(strings.Join(inner, "\n")))
	b.WriteString("\nendfunction")
	li.Increase(1)
	return b.String()
}
