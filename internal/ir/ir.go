package ir

import (
	"fmt"
)

// ChannelDirection tells whether a proc receives from or sends on a channel.
type ChannelDirection int

const (
	ChannelReceive ChannelDirection = iota
	ChannelSend
)

func (d ChannelDirection) String() string {
	if d == ChannelSend {
		return "send"
	}
	return "receive"
}

// Channel is a typed, named communication endpoint of a proc.
type Channel struct {
	name      string
	typ       Type
	direction ChannelDirection
}

func (c *Channel) Name() string                { return c.name }
func (c *Channel) Type() Type                  { return c.typ }
func (c *Channel) Direction() ChannelDirection { return c.direction }

// Package owns a set of functions, procs, blocks, and channels, plus the
// interned type universe they share.
type Package struct {
	name      string
	functions []*Function
	procs     []*Proc
	blocks    []*Block
	channels  []*Channel

	types     map[string]Type
	tokenType *TokenType
}

// NewPackage returns an empty package.
func NewPackage(name string) *Package {
	return &Package{name: name, types: map[string]Type{}}
}

func (p *Package) Name() string { return p.name }

// BitsType returns the canonical bits type of the given width.
func (p *Package) BitsType(width int64) *BitsType {
	t := &BitsType{width: width}
	return p.intern(t).(*BitsType)
}

// TupleType returns the canonical tuple type over the element types.
func (p *Package) TupleType(elements ...Type) *TupleType {
	t := &TupleType{elements: append([]Type(nil), elements...)}
	return p.intern(t).(*TupleType)
}

// ArrayType returns the canonical array type.
func (p *Package) ArrayType(element Type, size int64) *ArrayType {
	t := &ArrayType{element: element, size: size}
	return p.intern(t).(*ArrayType)
}

// TokenType returns the canonical token type.
func (p *Package) TokenType() *TokenType {
	if p.tokenType == nil {
		p.tokenType = &TokenType{}
	}
	return p.tokenType
}

func (p *Package) intern(t Type) Type {
	key := typeKey(t)
	if existing, ok := p.types[key]; ok {
		return existing
	}
	p.types[key] = t
	return t
}

// AddChannel registers a channel. Channel names are unique per package.
func (p *Package) AddChannel(name string, typ Type, dir ChannelDirection) (*Channel, error) {
	for _, c := range p.channels {
		if c.name == name {
			return nil, fmt.Errorf("channel %q already defined", name)
		}
	}
	c := &Channel{name: name, typ: typ, direction: dir}
	p.channels = append(p.channels, c)
	return c, nil
}

// Channel looks up a channel by name.
func (p *Package) Channel(name string) (*Channel, error) {
	for _, c := range p.channels {
		if c.name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no channel named %q", name)
}

func (p *Package) Channels() []*Channel { return p.channels }

func (p *Package) Functions() []*Function { return p.functions }
func (p *Package) Procs() []*Proc         { return p.procs }
func (p *Package) Blocks() []*Block       { return p.blocks }

// Function looks up a function by name.
func (p *Package) Function(name string) (*Function, error) {
	for _, f := range p.functions {
		if f.name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("no function named %q", name)
}

// Block looks up a block by name.
func (p *Package) Block(name string) (*Block, error) {
	for _, b := range p.blocks {
		if b.name == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("no block named %q", name)
}

// FunctionBase holds the node graph shared by functions, procs, and blocks.
// Nodes live in insertion order; ids are unique per owner and never reused.
type FunctionBase struct {
	name   string
	pkg    *Package
	nodes  []*Node
	nextID int64
	fn     *Function
	proc   *Proc
	block  *Block
}

func (fb *FunctionBase) Name() string      { return fb.name }
func (fb *FunctionBase) Package() *Package { return fb.pkg }

// Nodes returns all live nodes in insertion order. Callers must not mutate
// the returned slice.
func (fb *FunctionBase) Nodes() []*Node { return fb.nodes }

// AsFunction returns the function view, or nil.
func (fb *FunctionBase) AsFunction() *Function { return fb.fn }

// AsProc returns the proc view, or nil.
func (fb *FunctionBase) AsProc() *Proc { return fb.proc }

// AsBlock returns the block view, or nil.
func (fb *FunctionBase) AsBlock() *Block { return fb.block }

func (fb *FunctionBase) newNode(op Op, typ Type, operands ...*Node) *Node {
	n := &Node{
		id:       fb.nextID,
		op:       op,
		operands: append([]*Node(nil), operands...),
		users:    map[*Node]int{},
		typ:      typ,
		owner:    fb,
	}
	fb.nextID++
	for _, o := range operands {
		o.addUser(n)
	}
	fb.nodes = append(fb.nodes, n)
	return n
}

// RemoveNode deletes a dead node. It is an error to remove a node that still
// has users or that a terminal position references.
func (fb *FunctionBase) RemoveNode(n *Node) error {
	if n.owner != fb {
		return fmt.Errorf("node %s is not owned by %s", n, fb.name)
	}
	if n.HasUsers() {
		return fmt.Errorf("cannot remove node %s: it still has users", n)
	}
	if fb.IsTerminal(n) {
		return fmt.Errorf("cannot remove node %s: it is referenced outside the graph", n)
	}
	for _, o := range n.operands {
		o.removeUser(n)
	}
	n.operands = nil
	for i, m := range fb.nodes {
		if m == n {
			fb.nodes = append(fb.nodes[:i], fb.nodes[i+1:]...)
			break
		}
	}
	n.owner = nil
	return nil
}

// IsTerminal reports whether n is referenced from outside the operand graph:
// a function return value or a proc next-state or next-token node.
func (fb *FunctionBase) IsTerminal(n *Node) bool {
	if fb.fn != nil && fb.fn.ret == n {
		return true
	}
	if fb.proc != nil {
		if fb.proc.nextToken == n {
			return true
		}
		for _, ns := range fb.proc.nextState {
			if ns == n {
				return true
			}
		}
	}
	return false
}

func (fb *FunctionBase) replaceTerminals(old, repl *Node) {
	if fb.fn != nil && fb.fn.ret == old {
		fb.fn.ret = repl
	}
	if fb.proc != nil {
		if fb.proc.nextToken == old {
			fb.proc.nextToken = repl
		}
		for i, ns := range fb.proc.nextState {
			if ns == old {
				fb.proc.nextState[i] = repl
			}
		}
	}
}

// Function is a pure dataflow function: parameters in, one return value out.
type Function struct {
	FunctionBase
	params []*Node
	ret    *Node
}

// NewFunction adds an empty function to the package.
func (p *Package) NewFunction(name string) *Function {
	f := &Function{FunctionBase: FunctionBase{name: name, pkg: p}}
	f.fn = f
	p.functions = append(p.functions, f)
	return f
}

// AddParam appends a parameter of the given type.
func (f *Function) AddParam(name string, typ Type) *Node {
	n := f.newNode(OpParam, typ)
	n.name = name
	n.index = int64(len(f.params))
	f.params = append(f.params, n)
	return n
}

func (f *Function) Params() []*Node { return f.params }

// SetReturn designates the function's result node.
func (f *Function) SetReturn(n *Node) { f.ret = n }

// Return is the function's result node, or nil if unset.
func (f *Function) Return() *Node { return f.ret }

// Proc is a stateful process: a token parameter, state elements with initial
// values, and next-state nodes recomputed every tick.
type Proc struct {
	FunctionBase
	tokenParam  *Node
	stateParams []*Node
	initValues  []Value
	nextState   []*Node
	nextToken   *Node
}

// NewProc adds an empty proc to the package. The token parameter is created
// immediately.
func (p *Package) NewProc(name string) *Proc {
	pr := &Proc{FunctionBase: FunctionBase{name: name, pkg: p}}
	pr.proc = pr
	pr.tokenParam = pr.newNode(OpParam, p.TokenType())
	pr.tokenParam.name = "tok"
	p.procs = append(p.procs, pr)
	return pr
}

func (pr *Proc) TokenParam() *Node { return pr.tokenParam }

// AppendStateElement adds a state element with the given initial value and
// returns its read node. The next-state node defaults to the read node
// (state held unchanged) until SetNextState is called.
func (pr *Proc) AppendStateElement(name string, init Value) *Node {
	n := pr.newNode(OpStateRead, init.Type())
	n.name = name
	n.index = int64(len(pr.stateParams))
	pr.stateParams = append(pr.stateParams, n)
	pr.initValues = append(pr.initValues, init)
	pr.nextState = append(pr.nextState, n)
	return n
}

// StateElementCount returns the number of state elements.
func (pr *Proc) StateElementCount() int { return len(pr.stateParams) }

// StateParam returns the read node of state element i.
func (pr *Proc) StateParam(i int) *Node { return pr.stateParams[i] }

// StateParams returns the state read nodes in element order.
func (pr *Proc) StateParams() []*Node { return pr.stateParams }

// InitValue returns the initial value of state element i.
func (pr *Proc) InitValue(i int) Value { return pr.initValues[i] }

// NextState returns the next-state node of element i.
func (pr *Proc) NextState(i int) *Node { return pr.nextState[i] }

// SetNextState sets the next-state node for element i. The node's type must
// match the state element's type.
func (pr *Proc) SetNextState(i int, n *Node) error {
	if n.Type() != pr.stateParams[i].Type() {
		return fmt.Errorf("next-state node %s has type %s, state element %d has type %s",
			n, n.Type(), i, pr.stateParams[i].Type())
	}
	pr.nextState[i] = n
	return nil
}

// SetNextToken sets the token threaded out of the tick.
func (pr *Proc) SetNextToken(n *Node) { pr.nextToken = n }

// NextToken returns the token threaded out of the tick, or nil.
func (pr *Proc) NextToken() *Node { return pr.nextToken }

// RemoveStateElement deletes state element i and renumbers the elements
// above it. The element's read node must be dead.
func (pr *Proc) RemoveStateElement(i int) error {
	if i < 0 || i >= len(pr.stateParams) {
		return fmt.Errorf("state element %d out of range [0, %d)", i, len(pr.stateParams))
	}
	read := pr.stateParams[i]
	if read.HasUsers() {
		return fmt.Errorf("cannot remove state element %d (%s): read node still has users", i, read.name)
	}
	pr.stateParams = append(pr.stateParams[:i], pr.stateParams[i+1:]...)
	pr.initValues = append(pr.initValues[:i], pr.initValues[i+1:]...)
	pr.nextState = append(pr.nextState[:i], pr.nextState[i+1:]...)
	for j := i; j < len(pr.stateParams); j++ {
		pr.stateParams[j].setIndex(int64(j))
	}
	return pr.RemoveNode(read)
}
