package ir

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a simple human-readable representation of the package.
func Dump(p *Package, w io.Writer) {
	if p == nil {
		fmt.Fprintln(w, "<nil package>")
		return
	}
	fmt.Fprintf(w, "package %s\n", p.Name())
	for _, c := range p.Channels() {
		fmt.Fprintf(w, "chan %s %s %s\n", c.Name(), c.Direction(), c.Type())
	}
	for _, f := range p.Functions() {
		fmt.Fprintln(w)
		dumpFunction(f, w)
	}
	for _, pr := range p.Procs() {
		fmt.Fprintln(w)
		dumpProc(pr, w)
	}
	for _, b := range p.Blocks() {
		fmt.Fprintln(w)
		dumpBlock(b, w)
	}
}

func dumpFunction(f *Function, w io.Writer) {
	params := make([]string, len(f.Params()))
	for i, p := range f.Params() {
		params[i] = fmt.Sprintf("%s: %s", nodeRef(p), p.Type())
	}
	fmt.Fprintf(w, "fn %s(%s)", f.Name(), strings.Join(params, ", "))
	if f.Return() != nil {
		fmt.Fprintf(w, " -> %s", f.Return().Type())
	}
	fmt.Fprintln(w, " {")
	dumpNodes(&f.FunctionBase, w)
	if f.Return() != nil {
		fmt.Fprintf(w, "  ret %s\n", nodeRef(f.Return()))
	}
	fmt.Fprintln(w, "}")
}

func dumpProc(pr *Proc, w io.Writer) {
	states := make([]string, pr.StateElementCount())
	for i := range states {
		states[i] = fmt.Sprintf("%s: %s = %s",
			nodeRef(pr.StateParam(i)), pr.StateParam(i).Type(), pr.InitValue(i))
	}
	fmt.Fprintf(w, "proc %s(%s) {\n", pr.Name(), strings.Join(states, ", "))
	dumpNodes(&pr.FunctionBase, w)
	next := make([]string, pr.StateElementCount())
	for i := range next {
		next[i] = nodeRef(pr.NextState(i))
	}
	fmt.Fprintf(w, "  next (%s)\n", strings.Join(next, ", "))
	fmt.Fprintln(w, "}")
}

func dumpBlock(b *Block, w io.Writer) {
	fmt.Fprintf(w, "block %s {\n", b.Name())
	for _, p := range b.Ports() {
		fmt.Fprintf(w, "  port %s %s: %s\n", p.Direction, p.Name, p.Type)
	}
	for _, r := range b.Registers() {
		fmt.Fprintf(w, "  reg %s: %s\n", r.Name(), r.Type())
	}
	for _, bi := range b.Instantiations() {
		fmt.Fprintf(w, "  instantiation %s of %s\n", bi.Name(), bi.Child().Name())
	}
	dumpNodes(&b.FunctionBase, w)
	fmt.Fprintln(w, "}")
}

func dumpNodes(fb *FunctionBase, w io.Writer) {
	for _, n := range fb.Nodes() {
		operands := make([]string, len(n.Operands()))
		for i, o := range n.Operands() {
			operands[i] = nodeRef(o)
		}
		extra := nodeDetail(n)
		fmt.Fprintf(w, "  %s: %s = %s(%s%s)\n", nodeRef(n), n.Type(), n.Op(), strings.Join(operands, ", "), extra)
	}
}

// nodeRef is the stable textual handle of a node: its name if it has one,
// otherwise its op and id.
func nodeRef(n *Node) string {
	if n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("%s.%d", n.Op(), n.ID())
}

func nodeDetail(n *Node) string {
	switch n.Op() {
	case OpLiteral:
		return "value=" + n.Value().String()
	case OpBitSlice:
		return fmt.Sprintf(", start=%d, width=%d", n.SliceStart(), n.SliceWidth())
	case OpTupleIndex, OpTupleUpdate:
		return fmt.Sprintf(", index=%d", n.Index())
	case OpStateRead:
		return fmt.Sprintf("index=%d", n.Index())
	case OpInvoke:
		return joinDetail(len(n.Operands()) > 0, "callee="+n.Callee().Name())
	case OpSend, OpReceive:
		return joinDetail(len(n.Operands()) > 0, "channel="+n.Channel().Name())
	case OpAssert:
		return joinDetail(true, fmt.Sprintf("message=%q", n.Message()))
	case OpCover:
		return joinDetail(true, fmt.Sprintf("label=%q", n.Message()))
	case OpInputPort, OpOutputPort:
		return joinDetail(len(n.Operands()) > 0, "name="+n.PortName())
	case OpRegisterRead, OpRegisterWrite:
		return joinDetail(len(n.Operands()) > 0, "register="+n.Register().Name())
	case OpInstantiationInput, OpInstantiationOutput:
		return joinDetail(len(n.Operands()) > 0,
			fmt.Sprintf("instantiation=%s, port=%s", n.Instantiation().Name(), n.PortName()))
	}
	return ""
}

func joinDetail(hasOperands bool, detail string) string {
	if hasOperands {
		return ", " + detail
	}
	return detail
}
