package passes

import (
	"testing"

	"rtlgen/internal/ir"
)

func bitsValue(p *ir.Package, width int64, v uint64) ir.Value {
	return p.BitsValue(ir.BitsFromUint64(width, v))
}

func TestRemoveZeroWidthStateElement(t *testing.T) {
	p := ir.NewPackage("test")
	proc := p.NewProc("pr")
	empty := p.TupleValue()
	st := proc.AppendStateElement("unit", empty)
	live := proc.AppendStateElement("count", bitsValue(p, 8, 0))
	one := proc.Literal(bitsValue(p, 8, 1))
	if err := proc.SetNextState(1, proc.Add(live, one)); err != nil {
		t.Fatalf("SetNextState: %v", err)
	}
	// Keep the live element observable.
	ch, err := p.AddChannel("out", p.BitsType(8), ir.ChannelSend)
	if err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	proc.SetNextToken(proc.Send(proc.TokenParam(), live, ch))
	_ = st

	changed, err := OptimizeProcState(proc)
	if err != nil {
		t.Fatalf("OptimizeProcState: %v", err)
	}
	if !changed {
		t.Fatalf("expected change")
	}
	if proc.StateElementCount() != 1 {
		t.Fatalf("StateElementCount() = %d, want 1", proc.StateElementCount())
	}
	if proc.StateParam(0).Name() != "count" {
		t.Errorf("surviving element = %q, want %q", proc.StateParam(0).Name(), "count")
	}
	if proc.StateParam(0).Index() != 0 {
		t.Errorf("surviving element index = %d, want 0", proc.StateParam(0).Index())
	}
	if err := ir.Verify(p); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestZeroWidthReadUsesReplacedWithLiteral(t *testing.T) {
	p := ir.NewPackage("test")
	proc := p.NewProc("pr")
	st := proc.AppendStateElement("tokst", p.TupleValue())
	// A consumer of the zero-width read that stays alive through a send.
	wide := proc.AppendStateElement("w", bitsValue(p, 4, 0))
	tup := proc.Tuple(st, wide)
	ch, err := p.AddChannel("c", tup.Type(), ir.ChannelSend)
	if err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	proc.SetNextToken(proc.Send(proc.TokenParam(), tup, ch))

	if _, err := OptimizeProcState(proc); err != nil {
		t.Fatalf("OptimizeProcState: %v", err)
	}
	if proc.StateElementCount() != 1 {
		t.Fatalf("StateElementCount() = %d, want 1", proc.StateElementCount())
	}
	if tup.Operand(0).Op() != ir.OpLiteral {
		t.Errorf("zero-width read use not redirected to a literal, got %s", tup.Operand(0).Op())
	}
	if err := ir.Verify(p); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

// Two state elements feeding only each other's next values are unobservable
// even though each is "used" on every tick.
func TestRemoveMutuallyRecursiveUnobservableState(t *testing.T) {
	p := ir.NewPackage("test")
	proc := p.NewProc("pr")
	x := proc.AppendStateElement("x", bitsValue(p, 8, 0))
	y := proc.AppendStateElement("y", bitsValue(p, 8, 1))
	if err := proc.SetNextState(0, proc.Not(y)); err != nil {
		t.Fatalf("SetNextState: %v", err)
	}
	if err := proc.SetNextState(1, proc.Not(x)); err != nil {
		t.Fatalf("SetNextState: %v", err)
	}

	changed, err := OptimizeProcState(proc)
	if err != nil {
		t.Fatalf("OptimizeProcState: %v", err)
	}
	if !changed {
		t.Fatalf("expected change")
	}
	if proc.StateElementCount() != 0 {
		t.Fatalf("StateElementCount() = %d, want 0", proc.StateElementCount())
	}
	if err := ir.Verify(p); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

// The same mutually recursive pair becomes observable as soon as one of the
// two values reaches a send.
func TestObservabilityPropagatesThroughBackEdge(t *testing.T) {
	p := ir.NewPackage("test")
	proc := p.NewProc("pr")
	x := proc.AppendStateElement("x", bitsValue(p, 8, 0))
	y := proc.AppendStateElement("y", bitsValue(p, 8, 1))
	if err := proc.SetNextState(0, proc.Not(y)); err != nil {
		t.Fatalf("SetNextState: %v", err)
	}
	if err := proc.SetNextState(1, proc.Not(x)); err != nil {
		t.Fatalf("SetNextState: %v", err)
	}
	ch, err := p.AddChannel("out", p.BitsType(8), ir.ChannelSend)
	if err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	proc.SetNextToken(proc.Send(proc.TokenParam(), x, ch))

	changed, err := OptimizeProcState(proc)
	if err != nil {
		t.Fatalf("OptimizeProcState: %v", err)
	}
	if changed {
		t.Fatalf("expected no change: both elements are observable through the back edge")
	}
	if proc.StateElementCount() != 2 {
		t.Fatalf("StateElementCount() = %d, want 2", proc.StateElementCount())
	}
}

func TestSelfLoopStateRemoved(t *testing.T) {
	p := ir.NewPackage("test")
	proc := p.NewProc("pr")
	proc.AppendStateElement("idle", bitsValue(p, 16, 7))

	changed, err := OptimizeProcState(proc)
	if err != nil {
		t.Fatalf("OptimizeProcState: %v", err)
	}
	if !changed {
		t.Fatalf("expected self-looping unused state to be removed")
	}
	if proc.StateElementCount() != 0 {
		t.Fatalf("StateElementCount() = %d, want 0", proc.StateElementCount())
	}
}

func TestOptimizeProcStateNoChange(t *testing.T) {
	p := ir.NewPackage("test")
	proc := p.NewProc("pr")
	count := proc.AppendStateElement("count", bitsValue(p, 8, 0))
	one := proc.Literal(bitsValue(p, 8, 1))
	if err := proc.SetNextState(0, proc.Add(count, one)); err != nil {
		t.Fatalf("SetNextState: %v", err)
	}
	ch, err := p.AddChannel("out", p.BitsType(8), ir.ChannelSend)
	if err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	proc.SetNextToken(proc.Send(proc.TokenParam(), count, ch))

	changed, err := OptimizeProcState(proc)
	if err != nil {
		t.Fatalf("OptimizeProcState: %v", err)
	}
	if changed {
		t.Fatalf("expected no change for a live counter")
	}
}

func TestDeadCodeElimination(t *testing.T) {
	p := ir.NewPackage("test")
	f := p.NewFunction("f")
	a := f.AddParam("a", p.BitsType(8))
	b := f.AddParam("b", p.BitsType(8))
	sum := f.Add(a, b)
	f.SetReturn(sum)
	// A dead chain hanging off the params.
	dead := f.UMul(a, b)
	f.Not(dead)

	changed, err := RunDCE(&f.FunctionBase)
	if err != nil {
		t.Fatalf("RunDCE: %v", err)
	}
	if !changed {
		t.Fatalf("expected change")
	}
	if got := len(f.Nodes()); got != 3 {
		t.Fatalf("node count after dce = %d, want 3", got)
	}
	if err := ir.Verify(p); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestDCEKeepsSideEffectingNodes(t *testing.T) {
	p := ir.NewPackage("test")
	proc := p.NewProc("pr")
	ch, err := p.AddChannel("out", p.BitsType(8), ir.ChannelSend)
	if err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	data := proc.Literal(bitsValue(p, 8, 3))
	send := proc.Send(proc.TokenParam(), data, ch)
	// The send result token is unused and the send has side effects.
	_ = send

	changed, err := RunDCE(&proc.FunctionBase)
	if err != nil {
		t.Fatalf("RunDCE: %v", err)
	}
	if changed {
		t.Fatalf("expected no change: send must survive")
	}
}
