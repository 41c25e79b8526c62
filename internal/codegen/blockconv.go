package codegen

import (
	"fmt"

	"github.com/go-logr/logr"

	"rtlgen/internal/ir"
	"rtlgen/internal/sched"
	"rtlgen/internal/vast"
)

// blockConverter lowers one function or proc into a block, walking the
// schedule stage by stage and registering every value whose live range
// crosses a stage boundary.
type blockConverter struct {
	fb     *ir.FunctionBase
	block  *ir.Block
	cycles sched.CycleMap
	stages int
	opts   Options
	log    logr.Logger

	// env maps a source node to the block node holding its value at the
	// stage currently being built.
	env   map[*ir.Node]*ir.Node
	names map[string]bool
}

func newBlockConverter(fb *ir.FunctionBase, cycles sched.CycleMap, opts Options) *blockConverter {
	stages := 1
	for _, c := range cycles {
		if c+1 > stages {
			stages = c + 1
		}
	}
	return &blockConverter{
		fb:     fb,
		block:  fb.Package().NewBlock(opts.ModuleName),
		cycles: cycles,
		stages: stages,
		opts:   opts,
		log:    opts.Logger,
		env:    map[*ir.Node]*ir.Node{},
		names:  map[string]bool{},
	}
}

func (c *blockConverter) cycleOf(n *ir.Node) int {
	if c.cycles == nil {
		return 0
	}
	return c.cycles[n]
}

// baseName is the deterministic stem for wires and registers derived from n.
func (c *blockConverter) baseName(n *ir.Node) string {
	if n.Name() != "" {
		return vast.SanitizeIdentifier(n.Name())
	}
	return fmt.Sprintf("tmp_%d", n.ID())
}

func (c *blockConverter) uniqueName(base string) string {
	name := base
	for i := 1; c.names[name]; i++ {
		name = fmt.Sprintf("%s__%d", base, i)
	}
	c.names[name] = true
	return name
}

// FunctionToBlock lowers fn to a block. A nil cycle map produces a purely
// combinational datapath; otherwise pipeline registers separate the stages
// and the block acquires a clock (and, per opts, reset) port.
func FunctionToBlock(fn *ir.Function, cycles sched.CycleMap, opts Options) (*ir.Block, error) {
	opts = opts.withDefaults(fn.Name())
	if fn.Return() == nil {
		return nil, fmt.Errorf("convert %s: function has no return value", fn.Name())
	}
	c := newBlockConverter(&fn.FunctionBase, cycles, opts)

	for _, p := range fn.Params() {
		in, err := c.block.AddInputPort(vast.SanitizeIdentifier(p.Name()), p.Type())
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", fn.Name(), err)
		}
		c.names[in.Name()] = true
		c.env[p] = in
	}

	if err := c.convertStages(); err != nil {
		return nil, fmt.Errorf("convert %s: %w", fn.Name(), err)
	}

	if _, err := c.block.AddOutputPort(opts.OutputPortName, c.env[fn.Return()]); err != nil {
		return nil, fmt.Errorf("convert %s: %w", fn.Name(), err)
	}
	c.finishClocking()
	return c.block, nil
}

// ProcToBlock lowers proc to a block: state elements become registers with
// their initial values as reset values, and every channel becomes a
// data/valid/ready handshake port triple in the channel's direction.
func ProcToBlock(proc *ir.Proc, cycles sched.CycleMap, opts Options) (*ir.Block, error) {
	opts = opts.withDefaults(proc.Name())
	c := newBlockConverter(&proc.FunctionBase, cycles, opts)

	c.env[proc.TokenParam()] = c.block.Literal(proc.Package().TokenValue())

	stateRegs := make([]*ir.Register, proc.StateElementCount())
	for i := 0; i < proc.StateElementCount(); i++ {
		read := proc.StateParam(i)
		if read.Type().FlatBitCount() == 0 {
			c.env[read] = c.block.Literal(proc.Package().ZeroOfType(read.Type()))
			continue
		}
		reg, err := c.block.AddRegister(c.uniqueName(c.baseName(read)+"_reg"), read.Type())
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", proc.Name(), err)
		}
		reg.SetResetValue(proc.InitValue(i))
		stateRegs[i] = reg
		c.env[read] = c.block.RegisterRead(reg)
	}

	if err := c.convertStages(); err != nil {
		return nil, fmt.Errorf("convert %s: %w", proc.Name(), err)
	}

	for i, reg := range stateRegs {
		if reg == nil {
			continue
		}
		if _, err := c.block.RegisterWrite(reg, c.env[proc.NextState(i)]); err != nil {
			return nil, fmt.Errorf("convert %s: %w", proc.Name(), err)
		}
	}
	c.finishClocking()
	return c.block, nil
}

func (c *blockConverter) finishClocking() {
	if len(c.block.Registers()) == 0 {
		return
	}
	c.block.SetClockName(c.opts.ClockName)
	if c.opts.ResetName != "" {
		c.block.SetResetName(c.opts.ResetName)
	}
}

// convertStages clones the scheduled nodes stage by stage and inserts
// pipeline registers at each boundary for every still-live value.
func (c *blockConverter) convertStages() error {
	order, err := ir.TopoSort(c.fb)
	if err != nil {
		return err
	}
	for s := 0; s < c.stages; s++ {
		for _, n := range order {
			if c.cycleOf(n) != s || c.env[n] != nil {
				continue
			}
			if err := c.convertNode(n); err != nil {
				return err
			}
		}
		if s < c.stages-1 {
			if err := c.registerBoundary(s); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *blockConverter) convertNode(n *ir.Node) error {
	switch n.Op() {
	case ir.OpParam, ir.OpStateRead:
		return fmt.Errorf("node %s was not bound before conversion", n)
	case ir.OpReceive:
		return c.convertReceive(n)
	case ir.OpSend:
		return c.convertSend(n)
	}
	operands := make([]*ir.Node, n.OperandCount())
	for i, o := range n.Operands() {
		mapped := c.env[o]
		if mapped == nil {
			return fmt.Errorf("operand %s of %s has no converted value", o, n)
		}
		operands[i] = mapped
	}
	c.env[n] = c.block.CloneNode(n, operands...)
	return nil
}

func (c *blockConverter) bitsOne() *ir.Node {
	pkg := c.fb.Package()
	return c.block.Literal(pkg.BitsValue(ir.BitsFromUint64(1, 1)))
}

// convertReceive turns a receive into a data/valid input pair and a ready
// output held high. The node maps to a (token, data) tuple so downstream
// tuple indexes keep working unchanged.
func (c *blockConverter) convertReceive(n *ir.Node) error {
	ch := n.Channel()
	base := vast.SanitizeIdentifier(ch.Name())
	data, err := c.block.AddInputPort(base+"_data", ch.Type())
	if err != nil {
		return err
	}
	if _, err := c.block.AddInputPort(base+"_valid", c.fb.Package().BitsType(1)); err != nil {
		return err
	}
	if _, err := c.block.AddOutputPort(base+"_ready", c.bitsOne()); err != nil {
		return err
	}
	c.names[data.Name()] = true
	tok := c.block.Literal(c.fb.Package().TokenValue())
	c.env[n] = c.block.Tuple(tok, data)
	return nil
}

// convertSend turns a send into a data/valid output pair and a ready input.
func (c *blockConverter) convertSend(n *ir.Node) error {
	ch := n.Channel()
	base := vast.SanitizeIdentifier(ch.Name())
	data := c.env[n.Operand(1)]
	if data == nil {
		return fmt.Errorf("send %s: data operand has no converted value", n)
	}
	if _, err := c.block.AddOutputPort(base+"_data", data); err != nil {
		return err
	}
	if _, err := c.block.AddOutputPort(base+"_valid", c.bitsOne()); err != nil {
		return err
	}
	if _, err := c.block.AddInputPort(base+"_ready", c.fb.Package().BitsType(1)); err != nil {
		return err
	}
	c.env[n] = c.block.Literal(c.fb.Package().TokenValue())
	return nil
}

// registerBoundary pushes every value that is still live past stage s through
// a pipeline register. Zero-width values pass through unregistered.
func (c *blockConverter) registerBoundary(s int) error {
	for _, n := range c.fb.Nodes() {
		if c.cycleOf(n) > s || c.env[n] == nil {
			continue
		}
		if !c.liveAfter(n, s) {
			continue
		}
		if n.Type().FlatBitCount() == 0 {
			continue
		}
		name := c.uniqueName(fmt.Sprintf("%s_stage%d_reg", c.baseName(n), s+1))
		reg, err := c.block.AddRegister(name, n.Type())
		if err != nil {
			return err
		}
		if _, err := c.block.RegisterWrite(reg, c.env[n]); err != nil {
			return err
		}
		c.log.V(2).Info("pipeline register", "value", n.String(), "register", name, "boundary", s)
		c.env[n] = c.block.RegisterRead(reg)
	}
	return nil
}

// liveAfter reports whether n's value is needed in a stage later than s:
// some user is scheduled later, or the value is referenced from outside the
// graph and must survive to the final stage.
func (c *blockConverter) liveAfter(n *ir.Node, s int) bool {
	for _, u := range n.Users() {
		if c.cycleOf(u) > s {
			return true
		}
	}
	return c.fb.IsTerminal(n)
}
