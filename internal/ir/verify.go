package ir

import (
	"fmt"
)

// Verify checks the structural invariants of every function, proc, and block
// in the package and returns the first violation found.
func Verify(p *Package) error {
	for _, f := range p.functions {
		if err := verifyBase(&f.FunctionBase); err != nil {
			return fmt.Errorf("function %s: %w", f.Name(), err)
		}
		if f.ret == nil {
			return fmt.Errorf("function %s: no return value set", f.Name())
		}
		if f.ret.owner != &f.FunctionBase {
			return fmt.Errorf("function %s: return node %s belongs to another owner", f.Name(), f.ret)
		}
	}
	for _, pr := range p.procs {
		if err := verifyBase(&pr.FunctionBase); err != nil {
			return fmt.Errorf("proc %s: %w", pr.Name(), err)
		}
		if err := verifyProc(pr); err != nil {
			return fmt.Errorf("proc %s: %w", pr.Name(), err)
		}
	}
	for _, b := range p.blocks {
		if err := verifyBase(&b.FunctionBase); err != nil {
			return fmt.Errorf("block %s: %w", b.Name(), err)
		}
		if err := verifyBlock(b); err != nil {
			return fmt.Errorf("block %s: %w", b.Name(), err)
		}
	}
	return nil
}

// verifyBase checks operand/user symmetry, owner consistency, and the
// acyclicity of the operand graph.
func verifyBase(fb *FunctionBase) error {
	inGraph := map[*Node]bool{}
	for _, n := range fb.Nodes() {
		inGraph[n] = true
	}
	for _, n := range fb.Nodes() {
		if n.owner != fb {
			return fmt.Errorf("node %s has wrong owner", n)
		}
		for i, o := range n.Operands() {
			if !inGraph[o] {
				return fmt.Errorf("node %s operand %d (%s) is not in the graph", n, i, o)
			}
			if _, ok := o.users[n]; !ok {
				return fmt.Errorf("node %s is missing from user set of operand %s", n, o)
			}
		}
		for u := range n.users {
			found := false
			for _, o := range u.Operands() {
				if o == n {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("node %s lists user %s which does not use it", n, u)
			}
		}
		if err := verifyNode(n); err != nil {
			return err
		}
	}
	if _, err := TopoSort(fb); err != nil {
		return err
	}
	return nil
}

// verifyNode checks per-op operand counts and types.
func verifyNode(n *Node) error {
	wantOperands := func(k int) error {
		if len(n.operands) != k {
			return fmt.Errorf("node %s expects %d operands, has %d", n, k, len(n.operands))
		}
		return nil
	}
	wantToken := func(i int) error {
		if _, ok := n.operands[i].Type().(*TokenType); !ok {
			return fmt.Errorf("node %s operand %d must be a token, has type %s", n, i, n.operands[i].Type())
		}
		return nil
	}

	switch n.op {
	case OpLiteral:
		if err := wantOperands(0); err != nil {
			return err
		}
		if n.value == nil {
			return fmt.Errorf("literal node %s has no value", n)
		}
		if n.value.Type() != n.typ {
			return fmt.Errorf("literal node %s value type %s differs from node type %s", n, n.value.Type(), n.typ)
		}
	case OpParam, OpStateRead, OpInputPort, OpRegisterRead, OpInstantiationOutput:
		if err := wantOperands(0); err != nil {
			return err
		}
	case OpNot, OpNeg, OpZeroExt, OpSignExt, OpBitSlice,
		OpTupleIndex, OpOutputPort, OpRegisterWrite, OpInstantiationInput:
		if err := wantOperands(1); err != nil {
			return err
		}
	case OpAdd, OpSub, OpUMul, OpSMul, OpUDiv, OpSDiv, OpUMod, OpSMod,
		OpShll, OpShrl, OpShra,
		OpEq, OpNe, OpULt, OpULe, OpUGt, OpUGe, OpSLt, OpSLe, OpSGt, OpSGe,
		OpTupleUpdate:
		if err := wantOperands(2); err != nil {
			return err
		}
	case OpSelect, OpArrayUpdate:
		if err := wantOperands(3); err != nil {
			return err
		}
	case OpArrayIndex:
		if err := wantOperands(2); err != nil {
			return err
		}
	case OpAnd, OpOr, OpXor, OpNand, OpNor, OpConcat, OpTuple, OpArray, OpAfterAll, OpInvoke:
		// Variadic.
	case OpOneHotSelect:
		if len(n.operands) < 2 {
			return fmt.Errorf("one_hot_sel node %s needs a selector and at least one case, has %d operands",
				n, len(n.operands))
		}
		for _, c := range n.operands[1:] {
			if c.Type() != n.typ {
				return fmt.Errorf("one_hot_sel node %s case type %s differs from node type %s",
					n, c.Type(), n.typ)
			}
		}
	case OpSend:
		if err := wantOperands(2); err != nil {
			return err
		}
		if err := wantToken(0); err != nil {
			return err
		}
		if n.channel == nil {
			return fmt.Errorf("send node %s has no channel", n)
		}
		if n.operands[1].Type() != n.channel.Type() {
			return fmt.Errorf("send node %s data type %s differs from channel type %s",
				n, n.operands[1].Type(), n.channel.Type())
		}
	case OpReceive:
		if err := wantOperands(1); err != nil {
			return err
		}
		if err := wantToken(0); err != nil {
			return err
		}
		if n.channel == nil {
			return fmt.Errorf("receive node %s has no channel", n)
		}
	case OpAssert, OpCover:
		if err := wantOperands(2); err != nil {
			return err
		}
		if err := wantToken(0); err != nil {
			return err
		}
	default:
		return fmt.Errorf("node %s has unknown op", n)
	}
	return nil
}

func verifyProc(pr *Proc) error {
	if pr.tokenParam == nil {
		return fmt.Errorf("proc has no token parameter")
	}
	if len(pr.stateParams) != len(pr.nextState) || len(pr.stateParams) != len(pr.initValues) {
		return fmt.Errorf("state element bookkeeping out of sync: %d reads, %d next-state nodes, %d init values",
			len(pr.stateParams), len(pr.nextState), len(pr.initValues))
	}
	for i, read := range pr.stateParams {
		if read.Index() != int64(i) {
			return fmt.Errorf("state element %d read node carries index %d", i, read.Index())
		}
		if pr.initValues[i].Type() != read.Type() {
			return fmt.Errorf("state element %d init value type %s differs from element type %s",
				i, pr.initValues[i].Type(), read.Type())
		}
		if pr.nextState[i].Type() != read.Type() {
			return fmt.Errorf("state element %d next-state type %s differs from element type %s",
				i, pr.nextState[i].Type(), read.Type())
		}
	}
	return nil
}

func verifyBlock(b *Block) error {
	for _, p := range b.ports {
		if p.Node == nil || p.Node.owner != &b.FunctionBase {
			return fmt.Errorf("port %q has no node in the block graph", p.Name)
		}
	}
	for _, n := range b.Nodes() {
		switch n.op {
		case OpRegisterRead, OpRegisterWrite:
			found := false
			for _, r := range b.registers {
				if r == n.register {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("node %s touches a register not declared in the block", n)
			}
		case OpInstantiationInput, OpInstantiationOutput:
			found := false
			for _, bi := range b.instantiations {
				if bi == n.instantiation {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("node %s references an instantiation not declared in the block", n)
			}
		}
	}
	return nil
}
