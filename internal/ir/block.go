package ir

import (
	"fmt"
)

// PortDirection distinguishes block input and output ports.
type PortDirection int

const (
	PortInput PortDirection = iota
	PortOutput
)

func (d PortDirection) String() string {
	if d == PortOutput {
		return "output"
	}
	return "input"
}

// Port is a named, typed boundary signal of a block. The node is the
// input-port or output-port node representing it in the graph.
type Port struct {
	Name      string
	Direction PortDirection
	Type      Type
	Node      *Node
}

// Register is a clocked storage element of a block. A register may carry a
// reset value loaded when the block's reset is asserted.
type Register struct {
	name     string
	typ      Type
	resetVal *Value
}

func (r *Register) Name() string { return r.name }
func (r *Register) Type() Type   { return r.typ }

// SetResetValue attaches the value loaded on reset.
func (r *Register) SetResetValue(v Value) { val := v; r.resetVal = &val }

// ResetValue returns the reset value, or false when the register has none.
func (r *Register) ResetValue() (Value, bool) {
	if r.resetVal == nil {
		return Value{}, false
	}
	return *r.resetVal, true
}

// BlockInstantiation is a reference to another block instantiated by name
// inside a parent block.
type BlockInstantiation struct {
	name  string
	child *Block
}

func (bi *BlockInstantiation) Name() string  { return bi.name }
func (bi *BlockInstantiation) Child() *Block { return bi.child }

// Block is the structural form a function or proc lowers to: ports at the
// boundary, registers for state and pipeline stages, and instantiations of
// other blocks.
type Block struct {
	FunctionBase
	ports          []*Port
	registers      []*Register
	instantiations []*BlockInstantiation
	clockName      string
	resetName      string
}

// NewBlock adds an empty block to the package.
func (p *Package) NewBlock(name string) *Block {
	b := &Block{FunctionBase: FunctionBase{name: name, pkg: p}}
	b.block = b
	p.blocks = append(p.blocks, b)
	return b
}

// AddInputPort adds an input port and returns its node.
func (b *Block) AddInputPort(name string, typ Type) (*Node, error) {
	if err := b.checkPortName(name); err != nil {
		return nil, err
	}
	n := b.newNode(OpInputPort, typ)
	n.name = name
	n.portName = name
	b.ports = append(b.ports, &Port{Name: name, Direction: PortInput, Type: typ, Node: n})
	return n, nil
}

// AddOutputPort adds an output port driven by value and returns its node.
func (b *Block) AddOutputPort(name string, value *Node) (*Node, error) {
	if err := b.checkPortName(name); err != nil {
		return nil, err
	}
	n := b.newNode(OpOutputPort, value.Type(), value)
	n.name = name
	n.portName = name
	b.ports = append(b.ports, &Port{Name: name, Direction: PortOutput, Type: value.Type(), Node: n})
	return n, nil
}

func (b *Block) checkPortName(name string) error {
	for _, p := range b.ports {
		if p.Name == name {
			return fmt.Errorf("block %s already has a port named %q", b.name, name)
		}
	}
	return nil
}

// Ports returns the ports in declaration order.
func (b *Block) Ports() []*Port { return b.ports }

// InputPorts returns the input ports in declaration order.
func (b *Block) InputPorts() []*Port {
	var in []*Port
	for _, p := range b.ports {
		if p.Direction == PortInput {
			in = append(in, p)
		}
	}
	return in
}

// OutputPorts returns the output ports in declaration order.
func (b *Block) OutputPorts() []*Port {
	var out []*Port
	for _, p := range b.ports {
		if p.Direction == PortOutput {
			out = append(out, p)
		}
	}
	return out
}

// AddRegister adds a named register of the given type.
func (b *Block) AddRegister(name string, typ Type) (*Register, error) {
	for _, r := range b.registers {
		if r.name == name {
			return nil, fmt.Errorf("block %s already has a register named %q", b.name, name)
		}
	}
	r := &Register{name: name, typ: typ}
	b.registers = append(b.registers, r)
	return r, nil
}

func (b *Block) Registers() []*Register { return b.registers }

// RegisterRead adds a node reading r.
func (b *Block) RegisterRead(r *Register) *Node {
	n := b.newNode(OpRegisterRead, r.typ)
	n.name = r.name
	n.register = r
	return n
}

// RegisterWrite adds a node writing data into r every clock.
func (b *Block) RegisterWrite(r *Register, data *Node) (*Node, error) {
	if data.Type() != r.typ {
		return nil, fmt.Errorf("register %s has type %s, write data has type %s", r.name, r.typ, data.Type())
	}
	n := b.newNode(OpRegisterWrite, b.pkg.TupleType(), data)
	n.register = r
	return n, nil
}

// AddInstantiation instantiates child inside b under the given instance name.
func (b *Block) AddInstantiation(name string, child *Block) (*BlockInstantiation, error) {
	for _, bi := range b.instantiations {
		if bi.name == name {
			return nil, fmt.Errorf("block %s already has an instantiation named %q", b.name, name)
		}
	}
	bi := &BlockInstantiation{name: name, child: child}
	b.instantiations = append(b.instantiations, bi)
	return bi, nil
}

func (b *Block) Instantiations() []*BlockInstantiation { return b.instantiations }

// InstantiationInput wires data to the named input port of an instantiation.
func (b *Block) InstantiationInput(bi *BlockInstantiation, portName string, data *Node) *Node {
	n := b.newNode(OpInstantiationInput, b.pkg.TupleType(), data)
	n.portName = portName
	n.instantiation = bi
	return n
}

// InstantiationOutput reads the named output port of an instantiation.
func (b *Block) InstantiationOutput(bi *BlockInstantiation, portName string, typ Type) *Node {
	n := b.newNode(OpInstantiationOutput, typ)
	n.portName = portName
	n.instantiation = bi
	return n
}

// SetClockName records the clock port name used by registers.
func (b *Block) SetClockName(name string) { b.clockName = name }
func (b *Block) ClockName() string        { return b.clockName }

// SetResetName records the reset port name, empty if the block has no reset.
func (b *Block) SetResetName(name string) { b.resetName = name }
func (b *Block) ResetName() string        { return b.resetName }
