package ir

import (
	"fmt"
	"sort"
)

// Op identifies the operation a node performs.
type Op int

const (
	OpInvalid Op = iota

	OpLiteral
	OpParam
	OpStateRead

	OpAdd
	OpSub
	OpUMul
	OpSMul
	OpUDiv
	OpSDiv
	OpUMod
	OpSMod

	OpEq
	OpNe
	OpULt
	OpULe
	OpUGt
	OpUGe
	OpSLt
	OpSLe
	OpSGt
	OpSGe

	OpNot
	OpNeg
	OpAnd
	OpOr
	OpXor
	OpNand
	OpNor

	OpShll
	OpShrl
	OpShra

	OpConcat
	OpBitSlice
	OpSelect
	OpOneHotSelect

	OpTuple
	OpTupleIndex
	OpTupleUpdate
	OpArray
	OpArrayIndex
	OpArrayUpdate

	OpZeroExt
	OpSignExt

	OpInvoke
	OpSend
	OpReceive
	OpAssert
	OpCover
	OpAfterAll

	OpInputPort
	OpOutputPort
	OpRegisterRead
	OpRegisterWrite
	OpInstantiationInput
	OpInstantiationOutput
)

var opNames = map[Op]string{
	OpLiteral:             "literal",
	OpParam:               "param",
	OpStateRead:           "state_read",
	OpAdd:                 "add",
	OpSub:                 "sub",
	OpUMul:                "umul",
	OpSMul:                "smul",
	OpUDiv:                "udiv",
	OpSDiv:                "sdiv",
	OpUMod:                "umod",
	OpSMod:                "smod",
	OpEq:                  "eq",
	OpNe:                  "ne",
	OpULt:                 "ult",
	OpULe:                 "ule",
	OpUGt:                 "ugt",
	OpUGe:                 "uge",
	OpSLt:                 "slt",
	OpSLe:                 "sle",
	OpSGt:                 "sgt",
	OpSGe:                 "sge",
	OpNot:                 "not",
	OpNeg:                 "neg",
	OpAnd:                 "and",
	OpOr:                  "or",
	OpXor:                 "xor",
	OpNand:                "nand",
	OpNor:                 "nor",
	OpShll:                "shll",
	OpShrl:                "shrl",
	OpShra:                "shra",
	OpConcat:              "concat",
	OpBitSlice:            "bit_slice",
	OpSelect:              "sel",
	OpOneHotSelect:        "one_hot_sel",
	OpTuple:               "tuple",
	OpTupleIndex:          "tuple_index",
	OpTupleUpdate:         "tuple_update",
	OpArray:               "array",
	OpArrayIndex:          "array_index",
	OpArrayUpdate:         "array_update",
	OpZeroExt:             "zero_ext",
	OpSignExt:             "sign_ext",
	OpInvoke:              "invoke",
	OpSend:                "send",
	OpReceive:             "receive",
	OpAssert:              "assert",
	OpCover:               "cover",
	OpAfterAll:            "after_all",
	OpInputPort:           "input_port",
	OpOutputPort:          "output_port",
	OpRegisterRead:        "register_read",
	OpRegisterWrite:       "register_write",
	OpInstantiationInput:  "instantiation_input",
	OpInstantiationOutput: "instantiation_output",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// SideEffecting reports whether the op interacts with the world outside the
// dataflow graph and must survive dead code elimination.
func (op Op) SideEffecting() bool {
	switch op {
	case OpSend, OpReceive, OpAssert, OpCover,
		OpInputPort, OpOutputPort, OpRegisterRead, OpRegisterWrite,
		OpInstantiationInput, OpInstantiationOutput:
		return true
	}
	return false
}

// Node is a single operation in a function, proc, or block. Nodes are created
// through the enclosing FunctionBase and are never reused across owners.
type Node struct {
	id       int64
	op       Op
	operands []*Node
	users    map[*Node]int
	typ      Type
	name     string
	owner    *FunctionBase

	// Op-specific payloads.
	value      *Value        // OpLiteral
	channel    *Channel      // OpSend, OpReceive
	callee     *Function     // OpInvoke
	index      int64         // OpTupleIndex, OpParam ordinal, OpStateRead element
	start      int64         // OpBitSlice
	width      int64         // OpBitSlice
	portName   string        // OpInputPort, OpOutputPort
	register   *Register     // OpRegisterRead, OpRegisterWrite
	instantiation *BlockInstantiation // OpInstantiationInput, OpInstantiationOutput
	message    string        // OpAssert, OpCover label
}

func (n *Node) ID() int64            { return n.id }
func (n *Node) Op() Op               { return n.op }
func (n *Node) Type() Type           { return n.typ }
func (n *Node) Name() string         { return n.name }
func (n *Node) SetName(name string)  { n.name = name }
func (n *Node) Owner() *FunctionBase { return n.owner }

// Operands returns the operand slice. Callers must not mutate it.
func (n *Node) Operands() []*Node { return n.operands }

func (n *Node) Operand(i int) *Node { return n.operands[i] }
func (n *Node) OperandCount() int   { return len(n.operands) }

// Users returns the nodes that use this node as an operand, ordered by id.
func (n *Node) Users() []*Node {
	users := make([]*Node, 0, len(n.users))
	for u := range n.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].id < users[j].id })
	return users
}

// HasUsers reports whether any node uses this one as an operand.
func (n *Node) HasUsers() bool { return len(n.users) > 0 }

// Value returns the literal payload. Valid only for OpLiteral.
func (n *Node) Value() *Value { return n.value }

// Channel returns the channel a send or receive operates on.
func (n *Node) Channel() *Channel { return n.channel }

// Callee returns the invoked function. Valid only for OpInvoke.
func (n *Node) Callee() *Function { return n.callee }

// Index returns the op-specific ordinal: the tuple element for
// OpTupleIndex, the parameter position for OpParam, and the state element
// number for OpStateRead.
func (n *Node) Index() int64 { return n.index }

func (n *Node) setIndex(i int64) { n.index = i }

// SliceStart and SliceWidth describe a bit slice. Valid only for OpBitSlice.
func (n *Node) SliceStart() int64 { return n.start }
func (n *Node) SliceWidth() int64 { return n.width }

// PortName returns the block port name. Valid only for port ops.
func (n *Node) PortName() string { return n.portName }

// Register returns the register a register read or write touches.
func (n *Node) Register() *Register { return n.register }

// Instantiation returns the block instantiation an instantiation-input or
// -output node is attached to.
func (n *Node) Instantiation() *BlockInstantiation { return n.instantiation }

// Message returns the failure message of an assert or the label of a cover.
func (n *Node) Message() string { return n.message }

func (n *Node) addUser(u *Node)    { n.users[u]++ }
func (n *Node) removeUser(u *Node) {
	n.users[u]--
	if n.users[u] <= 0 {
		delete(n.users, u)
	}
}

// ReplaceOperand swaps operand slot i to point at repl, updating user sets.
func (n *Node) ReplaceOperand(i int, repl *Node) {
	old := n.operands[i]
	if old == repl {
		return
	}
	old.removeUser(n)
	n.operands[i] = repl
	repl.addUser(n)
}

// ReplaceUsesWith redirects every use of n to repl, including terminal
// positions (function return, proc next-state). repl itself is skipped so a
// replacement computed from n does not become its own operand.
func (n *Node) ReplaceUsesWith(repl *Node) {
	for _, u := range n.Users() {
		if u == repl {
			continue
		}
		for i, op := range u.operands {
			if op == n {
				u.ReplaceOperand(i, repl)
			}
		}
	}
	n.owner.replaceTerminals(n, repl)
}

func (n *Node) String() string {
	if n.name != "" {
		return fmt.Sprintf("%s.%d(%s)", n.op, n.id, n.name)
	}
	return fmt.Sprintf("%s.%d", n.op, n.id)
}
