package codegen

import (
	"fmt"

	"rtlgen/internal/ir"
	"rtlgen/internal/passes"
	"rtlgen/internal/sched"
	"rtlgen/internal/vast"
)

// moduleBuilder walks one block and assembles the corresponding VAST module.
// Every node with a nonzero flat width gets a declared flat wire; tuples and
// arrays live as bit vectors with the first element in the most significant
// position.
type moduleBuilder struct {
	file  *vast.VerilogFile
	mod   *vast.Module
	block *ir.Block
	opts  Options

	refs    map[*ir.Node]*vast.LogicRef
	regRefs map[*ir.Register]*vast.LogicRef
	outRefs map[*ir.Node]*vast.LogicRef
	conns   map[*ir.BlockInstantiation]map[string]vast.Expression
	names   map[string]bool

	clk      *vast.LogicRef
	rst      *vast.LogicRef
	flop     *vast.AlwaysFlop
	flopUsed bool
}

func buildModule(file *vast.VerilogFile, block *ir.Block, opts Options) error {
	b := &moduleBuilder{
		file:    file,
		mod:     file.AddModule(block.Name()),
		block:   block,
		opts:    opts,
		refs:    map[*ir.Node]*vast.LogicRef{},
		regRefs: map[*ir.Register]*vast.LogicRef{},
		outRefs: map[*ir.Node]*vast.LogicRef{},
		conns:   map[*ir.BlockInstantiation]map[string]vast.Expression{},
		names:   map[string]bool{},
	}
	if err := b.declare(); err != nil {
		return fmt.Errorf("module %s: %w", block.Name(), err)
	}
	if err := b.emitNodes(); err != nil {
		return fmt.Errorf("module %s: %w", block.Name(), err)
	}
	b.finish()
	return nil
}

func (b *moduleBuilder) bitVector(width int64) *vast.DataType {
	return b.file.BitVectorType(width, false)
}

func (b *moduleBuilder) uniqueName(base string) string {
	name := base
	for i := 1; b.names[name]; i++ {
		name = fmt.Sprintf("%s__%d", base, i)
	}
	b.names[name] = true
	return name
}

func (b *moduleBuilder) wireName(n *ir.Node) string {
	if n.Name() != "" {
		return b.uniqueName(vast.SanitizeIdentifier(n.Name()))
	}
	return b.uniqueName(fmt.Sprintf("tmp_%d", n.ID()))
}

// declare lays down the module boundary and every net before any assignment
// references it: clock and reset, data ports, registers, then one wire per
// value-producing node.
func (b *moduleBuilder) declare() error {
	if b.block.ClockName() != "" {
		b.names[b.block.ClockName()] = true
		b.clk = b.mod.AddInput(b.block.ClockName(), b.file.ScalarType())
	}
	if b.block.ResetName() != "" {
		b.names[b.block.ResetName()] = true
		b.rst = b.mod.AddInput(b.block.ResetName(), b.file.ScalarType())
	}

	for _, p := range b.block.Ports() {
		width := p.Type.FlatBitCount()
		if width == 0 {
			continue
		}
		b.names[p.Name] = true
		if p.Direction == ir.PortInput {
			b.refs[p.Node] = b.mod.AddInput(p.Name, b.bitVector(width))
		} else {
			b.outRefs[p.Node] = b.mod.AddOutput(p.Name, b.bitVector(width))
		}
	}

	if len(b.block.Registers()) > 0 {
		if b.clk == nil {
			return fmt.Errorf("block has registers but no clock port")
		}
		var reset *vast.Reset
		if b.rst != nil {
			reset = &vast.Reset{
				Signal:       b.rst,
				ActiveLow:    b.opts.ResetActiveLow,
				Asynchronous: b.opts.ResetAsynchronous,
			}
		}
		b.flop = vast.NewAlwaysFlop(b.clk, reset, b.file.UseSystemVerilog())
	}
	for _, r := range b.block.Registers() {
		b.names[r.Name()] = true
		b.regRefs[r] = b.mod.AddReg(r.Name(), b.bitVector(r.Type().FlatBitCount()), nil)
	}

	order, err := ir.TopoSort(&b.block.FunctionBase)
	if err != nil {
		return err
	}
	for _, n := range order {
		if b.needsWire(n) {
			b.refs[n] = b.mod.AddWire(b.wireName(n), b.bitVector(n.Type().FlatBitCount()))
		}
	}
	return nil
}

func (b *moduleBuilder) needsWire(n *ir.Node) bool {
	if n.Type().FlatBitCount() == 0 {
		return false
	}
	switch n.Op() {
	case ir.OpInputPort, ir.OpOutputPort, ir.OpRegisterRead, ir.OpRegisterWrite,
		ir.OpInstantiationInput, ir.OpAssert, ir.OpCover,
		ir.OpSend, ir.OpReceive, ir.OpParam, ir.OpStateRead:
		return false
	}
	return true
}

func (b *moduleBuilder) refFor(n *ir.Node) (*vast.LogicRef, error) {
	if r, ok := b.refs[n]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("node %s has no emitted value", n)
}

func (b *moduleBuilder) emitNodes() error {
	order, err := ir.TopoSort(&b.block.FunctionBase)
	if err != nil {
		return err
	}
	for _, n := range order {
		if err := b.emitNode(n); err != nil {
			return err
		}
	}
	return nil
}

func (b *moduleBuilder) emitNode(n *ir.Node) error {
	switch n.Op() {
	case ir.OpInputPort:
		return nil
	case ir.OpOutputPort:
		out, ok := b.outRefs[n]
		if !ok {
			return nil
		}
		src, err := b.refFor(n.Operand(0))
		if err != nil {
			return err
		}
		b.mod.Top().Add(vast.NewContinuousAssignment(out, src))
		return nil
	case ir.OpRegisterRead:
		b.refs[n] = b.regRefs[n.Register()]
		return nil
	case ir.OpRegisterWrite:
		return b.emitRegisterWrite(n)
	case ir.OpInstantiationInput:
		src, err := b.refFor(n.Operand(0))
		if err != nil {
			return err
		}
		b.connect(n.Instantiation(), n.PortName(), src)
		return nil
	case ir.OpInstantiationOutput:
		b.connect(n.Instantiation(), n.PortName(), b.refs[n])
		return nil
	case ir.OpAssert:
		return b.emitAssert(n)
	case ir.OpCover:
		return b.emitCover(n)
	case ir.OpInvoke:
		return fmt.Errorf("invoke %s was not lowered to an instantiation", n)
	case ir.OpSend, ir.OpReceive, ir.OpParam, ir.OpStateRead:
		return fmt.Errorf("cannot emit %s: %w", n, vast.ErrUnsupported)
	}
	if n.Type().FlatBitCount() == 0 {
		return nil
	}
	expr, err := b.exprFor(n)
	if err != nil {
		return err
	}
	b.mod.Top().Add(vast.NewContinuousAssignment(b.refs[n], expr))
	return nil
}

func (b *moduleBuilder) connect(inst *ir.BlockInstantiation, port string, e vast.Expression) {
	m := b.conns[inst]
	if m == nil {
		m = map[string]vast.Expression{}
		b.conns[inst] = m
	}
	m[port] = e
}

func (b *moduleBuilder) emitRegisterWrite(n *ir.Node) error {
	reg := n.Register()
	src, err := b.refFor(n.Operand(0))
	if err != nil {
		return err
	}
	var resetValue vast.Expression
	if v, ok := reg.ResetValue(); ok && b.rst != nil {
		resetValue = hexLiteral(v.Flatten())
	}
	b.flop.AddRegister(b.regRefs[reg], src, resetValue)
	b.flopUsed = true
	return nil
}

func (b *moduleBuilder) emitAssert(n *ir.Node) error {
	if !b.file.UseSystemVerilog() {
		return fmt.Errorf("assert %q requires SystemVerilog: %w", n.Message(), vast.ErrUnsupported)
	}
	cond, err := b.refFor(n.Operand(1))
	if err != nil {
		return err
	}
	proc := vast.NewAlwaysComb()
	proc.Body().Add(vast.NewAssert(cond, n.Message()))
	b.mod.Top().Add(proc)
	return nil
}

func (b *moduleBuilder) emitCover(n *ir.Node) error {
	if !b.file.UseSystemVerilog() {
		return fmt.Errorf("cover %q requires SystemVerilog: %w", n.Message(), vast.ErrUnsupported)
	}
	if b.clk == nil {
		return fmt.Errorf("cover %q requires a clocked block: %w", n.Message(), vast.ErrUnsupported)
	}
	cond, err := b.refFor(n.Operand(1))
	if err != nil {
		return err
	}
	b.mod.Top().Add(vast.NewCover(vast.SanitizeIdentifier(n.Message()), cond, b.clk))
	return nil
}

// finish appends the register process and the collected instantiations after
// every assignment.
func (b *moduleBuilder) finish() {
	if b.flop != nil && b.flopUsed {
		b.mod.Top().Add(b.flop)
	}
	for _, inst := range b.block.Instantiations() {
		var conns []vast.Connection
		child := inst.Child()
		if child.ClockName() != "" && b.clk != nil {
			conns = append(conns, vast.Connection{Port: child.ClockName(), Expr: b.clk})
		}
		if child.ResetName() != "" && b.rst != nil {
			conns = append(conns, vast.Connection{Port: child.ResetName(), Expr: b.rst})
		}
		bound := b.conns[inst]
		for _, p := range child.Ports() {
			if e, ok := bound[p.Name]; ok {
				conns = append(conns, vast.Connection{Port: p.Name, Expr: e})
			}
		}
		b.mod.Top().Add(vast.NewInstantiation(child.Name(), inst.Name(), nil, conns))
	}
}

func hexLiteral(bits ir.Bits) *vast.Literal {
	// FormatHex never fails.
	lit, _ := vast.NewLiteral(bits, vast.FormatHex)
	return lit
}

func signed(e vast.Expression) vast.Expression {
	return vast.NewSystemFunctionCall("signed", e)
}

func unsigned(e vast.Expression) vast.Expression {
	return vast.NewSystemFunctionCall("unsigned", e)
}

// exprFor builds the right-hand side expression of the wire assigned for n.
func (b *moduleBuilder) exprFor(n *ir.Node) (vast.Expression, error) {
	ref := func(i int) (*vast.LogicRef, error) { return b.refFor(n.Operand(i)) }
	binary := func(f func(l, r vast.Expression) *vast.BinaryInfix) (vast.Expression, error) {
		l, err := ref(0)
		if err != nil {
			return nil, err
		}
		r, err := ref(1)
		if err != nil {
			return nil, err
		}
		return f(l, r), nil
	}
	signedBinary := func(f func(l, r vast.Expression) *vast.BinaryInfix, wrap bool) (vast.Expression, error) {
		l, err := ref(0)
		if err != nil {
			return nil, err
		}
		r, err := ref(1)
		if err != nil {
			return nil, err
		}
		e := vast.Expression(f(signed(l), signed(r)))
		if wrap {
			e = unsigned(e)
		}
		return e, nil
	}
	fold := func(f func(l, r vast.Expression) *vast.BinaryInfix) (vast.Expression, error) {
		acc, err := ref(0)
		if err != nil {
			return nil, err
		}
		e := vast.Expression(acc)
		for i := 1; i < n.OperandCount(); i++ {
			r, err := ref(i)
			if err != nil {
				return nil, err
			}
			e = f(e, r)
		}
		return e, nil
	}

	switch n.Op() {
	case ir.OpLiteral:
		return hexLiteral(n.Value().Flatten()), nil

	case ir.OpAdd:
		return binary(vast.Add)
	case ir.OpSub:
		return binary(vast.Sub)
	case ir.OpUMul:
		return binary(vast.Mul)
	case ir.OpUDiv:
		return binary(vast.Div)
	case ir.OpUMod:
		return binary(vast.Mod)
	case ir.OpSMul:
		return signedBinary(vast.Mul, true)
	case ir.OpSDiv:
		return signedBinary(vast.Div, true)
	case ir.OpSMod:
		return signedBinary(vast.Mod, true)

	case ir.OpEq:
		return binary(vast.Equals)
	case ir.OpNe:
		return binary(vast.NotEquals)
	case ir.OpULt:
		return binary(vast.Lt)
	case ir.OpULe:
		return binary(vast.Le)
	case ir.OpUGt:
		return binary(vast.Gt)
	case ir.OpUGe:
		return binary(vast.Ge)
	case ir.OpSLt:
		return signedBinary(vast.Lt, false)
	case ir.OpSLe:
		return signedBinary(vast.Le, false)
	case ir.OpSGt:
		return signedBinary(vast.Gt, false)
	case ir.OpSGe:
		return signedBinary(vast.Ge, false)

	case ir.OpNot:
		r, err := ref(0)
		if err != nil {
			return nil, err
		}
		return vast.BitNot(r), nil
	case ir.OpNeg:
		r, err := ref(0)
		if err != nil {
			return nil, err
		}
		return vast.Negate(r), nil
	case ir.OpAnd:
		return fold(vast.BitAnd)
	case ir.OpOr:
		return fold(vast.BitOr)
	case ir.OpXor:
		return fold(vast.BitXor)
	case ir.OpNand:
		e, err := fold(vast.BitAnd)
		if err != nil {
			return nil, err
		}
		return vast.BitNot(e), nil
	case ir.OpNor:
		e, err := fold(vast.BitOr)
		if err != nil {
			return nil, err
		}
		return vast.BitNot(e), nil

	case ir.OpShll:
		return binary(vast.Shll)
	case ir.OpShrl:
		return binary(vast.Shrl)
	case ir.OpShra:
		l, err := ref(0)
		if err != nil {
			return nil, err
		}
		r, err := ref(1)
		if err != nil {
			return nil, err
		}
		return unsigned(vast.Shra(signed(l), r)), nil

	case ir.OpConcat, ir.OpTuple, ir.OpArray:
		var parts []vast.Expression
		for i, o := range n.Operands() {
			if o.Type().FlatBitCount() == 0 {
				continue
			}
			r, err := ref(i)
			if err != nil {
				return nil, err
			}
			parts = append(parts, r)
		}
		return vast.NewConcat(parts...), nil

	case ir.OpBitSlice:
		r, err := ref(0)
		if err != nil {
			return nil, err
		}
		return vast.NewSlice(r, vast.PlainLiteral(n.SliceStart()+n.SliceWidth()-1),
			vast.PlainLiteral(n.SliceStart()))

	case ir.OpSelect:
		sel, err := ref(0)
		if err != nil {
			return nil, err
		}
		onTrue, err := ref(1)
		if err != nil {
			return nil, err
		}
		onFalse, err := ref(2)
		if err != nil {
			return nil, err
		}
		return vast.NewTernary(sel, onTrue, onFalse), nil

	case ir.OpOneHotSelect:
		return b.oneHotSelect(n)

	case ir.OpTupleIndex:
		return b.tupleIndex(n)
	case ir.OpTupleUpdate:
		return b.tupleUpdate(n)
	case ir.OpArrayIndex:
		return b.arrayIndex(n)
	case ir.OpArrayUpdate:
		return b.arrayUpdate(n)

	case ir.OpZeroExt:
		return b.extend(n, false)
	case ir.OpSignExt:
		return b.extend(n, true)
	}
	return nil, fmt.Errorf("op %s: %w", n.Op(), vast.ErrUnsupported)
}

func (b *moduleBuilder) oneHotSelect(n *ir.Node) (vast.Expression, error) {
	sel, err := b.refFor(n.Operand(0))
	if err != nil {
		return nil, err
	}
	width := n.Type().FlatBitCount()
	var e vast.Expression
	for i := 1; i < n.OperandCount(); i++ {
		c, err := b.refFor(n.Operand(i))
		if err != nil {
			return nil, err
		}
		bit, err := vast.NewIndex(sel, vast.PlainLiteral(int64(i-1)))
		if err != nil {
			return nil, err
		}
		masked := vast.BitAnd(vast.NewReplicatedConcat(width, bit), c)
		if e == nil {
			e = masked
		} else {
			e = vast.BitOr(e, masked)
		}
	}
	return e, nil
}

// flatLow is the least significant bit of tuple element idx in the flattened
// layout, which puts the first element in the most significant position.
func flatLow(tt *ir.TupleType, idx int) int64 {
	var off int64
	for i := idx + 1; i < tt.Size(); i++ {
		off += tt.Element(i).FlatBitCount()
	}
	return off
}

func (b *moduleBuilder) tupleIndex(n *ir.Node) (vast.Expression, error) {
	src, err := b.refFor(n.Operand(0))
	if err != nil {
		return nil, err
	}
	tt := n.Operand(0).Type().(*ir.TupleType)
	low := flatLow(tt, int(n.Index()))
	width := n.Type().FlatBitCount()
	return vast.NewSlice(src, vast.PlainLiteral(low+width-1), vast.PlainLiteral(low))
}

func (b *moduleBuilder) tupleUpdate(n *ir.Node) (vast.Expression, error) {
	src, err := b.refFor(n.Operand(0))
	if err != nil {
		return nil, err
	}
	val, err := b.refFor(n.Operand(1))
	if err != nil {
		return nil, err
	}
	tt := n.Operand(0).Type().(*ir.TupleType)
	var parts []vast.Expression
	for i := 0; i < tt.Size(); i++ {
		w := tt.Element(i).FlatBitCount()
		if w == 0 {
			continue
		}
		if int64(i) == n.Index() {
			parts = append(parts, val)
			continue
		}
		low := flatLow(tt, i)
		s, err := vast.NewSlice(src, vast.PlainLiteral(low+w-1), vast.PlainLiteral(low))
		if err != nil {
			return nil, err
		}
		parts = append(parts, s)
	}
	return vast.NewConcat(parts...), nil
}

func (b *moduleBuilder) arrayIndex(n *ir.Node) (vast.Expression, error) {
	src, err := b.refFor(n.Operand(0))
	if err != nil {
		return nil, err
	}
	at := n.Operand(0).Type().(*ir.ArrayType)
	if at.Size() == 1 {
		return src, nil
	}
	idx, err := b.refFor(n.Operand(1))
	if err != nil {
		return nil, err
	}
	w := at.Element().FlatBitCount()
	// Element 0 is most significant, so element i starts at (size-1-i)*w.
	start := vast.Mul(vast.Sub(vast.PlainLiteral(at.Size()-1), idx), vast.PlainLiteral(w))
	return vast.NewPartSelect(src, start, vast.PlainLiteral(w)), nil
}

func (b *moduleBuilder) arrayUpdate(n *ir.Node) (vast.Expression, error) {
	src, err := b.refFor(n.Operand(0))
	if err != nil {
		return nil, err
	}
	idx, err := b.refFor(n.Operand(1))
	if err != nil {
		return nil, err
	}
	val, err := b.refFor(n.Operand(2))
	if err != nil {
		return nil, err
	}
	at := n.Operand(0).Type().(*ir.ArrayType)
	w := at.Element().FlatBitCount()
	var parts []vast.Expression
	for i := int64(0); i < at.Size(); i++ {
		low := (at.Size() - 1 - i) * w
		s, err := vast.NewSlice(src, vast.PlainLiteral(low+w-1), vast.PlainLiteral(low))
		if err != nil {
			return nil, err
		}
		parts = append(parts, vast.NewTernary(vast.Equals(idx, vast.PlainLiteral(i)), val, s))
	}
	return vast.NewConcat(parts...), nil
}

func (b *moduleBuilder) extend(n *ir.Node, signExtend bool) (vast.Expression, error) {
	src, err := b.refFor(n.Operand(0))
	if err != nil {
		return nil, err
	}
	oldWidth := n.Operand(0).Type().FlatBitCount()
	pad := n.Type().FlatBitCount() - oldWidth
	if pad <= 0 {
		return src, nil
	}
	if !signExtend {
		return vast.NewConcat(hexLiteral(ir.BitsFromUint64(pad, 0)), src), nil
	}
	msb, err := vast.NewIndex(src, vast.PlainLiteral(oldWidth-1))
	if err != nil {
		return nil, err
	}
	return vast.NewConcat(vast.NewReplicatedConcat(pad, msb), src), nil
}

// GenerateVerilog builds and emits the module of one converted block. The
// line info, when non-nil, records the span each AST node occupies in the
// returned text.
func GenerateVerilog(block *ir.Block, opts Options, li *vast.LineInfo) (string, error) {
	file := vast.NewVerilogFile(opts.UseSystemVerilog)
	if err := buildModule(file, block, opts); err != nil {
		return "", err
	}
	return file.Emit(li), nil
}

// Result bundles everything GenerateModule produces for one function or
// proc: the Verilog text, the port signature of the top module, and the
// line map of the emitted file.
type Result struct {
	Verilog   string
	Signature ModuleSignature
	LineInfo  *vast.LineInfo
	Block     *ir.Block
}

// GenerateModule runs the whole middle end on fb: optional proc state
// optimization, scheduling when more than one stage is requested, block
// conversion of fb and (post-order) of every function it invokes,
// invoke-to-instantiation lowering, and emission of all resulting modules
// into one file with the callees first.
func GenerateModule(fb *ir.FunctionBase, opts Options) (*Result, error) {
	opts = opts.withDefaults(fb.Name())

	if proc := fb.AsProc(); proc != nil && opts.OptimizeState {
		p := &passes.ProcStateOptimization{Logger: opts.Logger}
		if _, err := p.Run(proc); err != nil {
			return nil, err
		}
	}

	var cycles sched.CycleMap
	if opts.Stages > 1 {
		var err error
		cycles, err = sched.Schedule(fb, sched.Options{
			Stages:        opts.Stages,
			ClockPeriodPs: opts.ClockPeriodPs,
			Estimator:     opts.Estimator,
			Constraints:   opts.Constraints,
			Logger:        opts.Logger,
		})
		if err != nil {
			return nil, err
		}
	}

	calleeBlocks, err := convertCallees(fb, opts)
	if err != nil {
		return nil, err
	}

	var top *ir.Block
	switch {
	case fb.AsFunction() != nil:
		top, err = FunctionToBlock(fb.AsFunction(), cycles, opts)
	case fb.AsProc() != nil:
		top, err = ProcToBlock(fb.AsProc(), cycles, opts)
	default:
		err = fmt.Errorf("generate %s: only functions and procs can be converted", fb.Name())
	}
	if err != nil {
		return nil, err
	}

	inst := &InvocationToInstantiation{Logger: opts.Logger}
	for _, blk := range append(append([]*ir.Block{}, calleeBlocks...), top) {
		if _, err := inst.Run(blk); err != nil {
			return nil, err
		}
	}

	li := vast.NewLineInfo()
	file := vast.NewVerilogFile(opts.UseSystemVerilog)
	for _, blk := range calleeBlocks {
		if err := buildModule(file, blk, opts); err != nil {
			return nil, err
		}
	}
	if err := buildModule(file, top, opts); err != nil {
		return nil, err
	}
	verilog := file.Emit(li)

	latency := 0
	if cycles != nil {
		latency = cycles.Latency()
	}
	return &Result{
		Verilog:   verilog,
		Signature: GenerateSignature(top, int64(latency)),
		LineInfo:  li,
		Block:     top,
	}, nil
}

// convertCallees converts every function fb transitively invokes, callees
// before callers, so instantiation lowering finds each block by name.
func convertCallees(fb *ir.FunctionBase, opts Options) ([]*ir.Block, error) {
	var blocks []*ir.Block
	converted := map[*ir.Function]bool{}

	var convert func(fn *ir.Function) error
	convert = func(fn *ir.Function) error {
		if converted[fn] {
			return nil
		}
		converted[fn] = true
		for _, n := range fn.Nodes() {
			if n.Op() == ir.OpInvoke {
				if err := convert(n.Callee()); err != nil {
					return err
				}
			}
		}
		blk, err := FunctionToBlock(fn, nil, Options{
			ModuleName:       fn.Name(),
			OutputPortName:   opts.OutputPortName,
			UseSystemVerilog: opts.UseSystemVerilog,
			Logger:           opts.Logger,
		})
		if err != nil {
			return err
		}
		blocks = append(blocks, blk)
		return nil
	}

	for _, n := range fb.Nodes() {
		if n.Op() == ir.OpInvoke {
			if err := convert(n.Callee()); err != nil {
				return nil, err
			}
		}
	}
	return blocks, nil
}
