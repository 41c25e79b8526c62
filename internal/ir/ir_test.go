package ir

import (
	"math/big"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTypeInterning(t *testing.T) {
	p := NewPackage("test")
	if p.BitsType(8) != p.BitsType(8) {
		t.Fatalf("expected bits[8] to intern to one pointer")
	}
	if p.BitsType(8) == p.BitsType(9) {
		t.Fatalf("bits[8] and bits[9] must be distinct")
	}
	tup := p.TupleType(p.BitsType(4), p.BitsType(4))
	if tup != p.TupleType(p.BitsType(4), p.BitsType(4)) {
		t.Fatalf("expected structurally equal tuples to intern to one pointer")
	}
	if p.ArrayType(p.BitsType(2), 3) != p.ArrayType(p.BitsType(2), 3) {
		t.Fatalf("expected structurally equal arrays to intern to one pointer")
	}
	if p.TokenType() != p.TokenType() {
		t.Fatalf("expected a single token type")
	}
}

func TestFlatBitCount(t *testing.T) {
	p := NewPackage("test")
	cases := []struct {
		typ  Type
		want int64
	}{
		{p.BitsType(13), 13},
		{p.TokenType(), 0},
		{p.TupleType(), 0},
		{p.TupleType(p.BitsType(3), p.TokenType(), p.BitsType(5)), 8},
		{p.ArrayType(p.BitsType(4), 6), 24},
		{p.ArrayType(p.TupleType(p.BitsType(1), p.BitsType(2)), 2), 6},
	}
	for _, c := range cases {
		if got := c.typ.FlatBitCount(); got != c.want {
			t.Errorf("%s: FlatBitCount() = %d, want %d", c.typ, got, c.want)
		}
	}
}

func TestBitsFormatting(t *testing.T) {
	b := BitsFromUint64(12, 0xa5)
	if got := b.ToHexString(); got != "0a5" {
		t.Errorf("ToHexString() = %q, want %q", got, "0a5")
	}
	if got := b.ToBinaryString(); got != "000010100101" {
		t.Errorf("ToBinaryString() = %q, want %q", got, "000010100101")
	}
	if got := b.ToUnsignedDecimal(); got != "165" {
		t.Errorf("ToUnsignedDecimal() = %q, want %q", got, "165")
	}
}

func TestBitsTruncation(t *testing.T) {
	b := NewBits(4, big.NewInt(0x1f))
	if got := b.Uint64(); got != 0xf {
		t.Errorf("expected value truncated to width, got %#x", got)
	}
}

func TestValueFlatten(t *testing.T) {
	p := NewPackage("test")
	v := p.TupleValue(
		p.BitsValue(BitsFromUint64(4, 0xa)),
		p.BitsValue(BitsFromUint64(4, 0x5)),
	)
	flat := v.Flatten()
	if flat.Width() != 8 {
		t.Fatalf("flattened width = %d, want 8", flat.Width())
	}
	if got := flat.Uint64(); got != 0xa5 {
		t.Errorf("flattened value = %#x, want 0xa5", got)
	}
}

func TestZeroOfType(t *testing.T) {
	p := NewPackage("test")
	typ := p.TupleType(p.BitsType(8), p.ArrayType(p.BitsType(2), 2))
	zero := p.ZeroOfType(typ)
	if zero.Type() != typ {
		t.Fatalf("zero value has type %s, want %s", zero.Type(), typ)
	}
	if !zero.Flatten().IsZero() {
		t.Errorf("zero value flattens to nonzero bits")
	}
}

func TestUseDefBookkeeping(t *testing.T) {
	p := NewPackage("test")
	f := p.NewFunction("f")
	a := f.AddParam("a", p.BitsType(8))
	b := f.AddParam("b", p.BitsType(8))
	sum := f.Add(a, b)
	f.SetReturn(sum)

	if got := a.Users(); len(got) != 1 || got[0] != sum {
		t.Fatalf("a.Users() = %v, want [sum]", got)
	}
	if sum.Operand(0) != a || sum.Operand(1) != b {
		t.Fatalf("sum operands wired incorrectly")
	}
	if err := Verify(p); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestReplaceUsesWith(t *testing.T) {
	p := NewPackage("test")
	f := p.NewFunction("f")
	a := f.AddParam("a", p.BitsType(8))
	b := f.AddParam("b", p.BitsType(8))
	sum := f.Add(a, b)
	doubled := f.Add(sum, sum)
	f.SetReturn(doubled)

	zero := f.Literal(p.BitsValue(BitsFromUint64(8, 0)))
	sum.ReplaceUsesWith(zero)

	if doubled.Operand(0) != zero || doubled.Operand(1) != zero {
		t.Fatalf("expected both operand slots redirected to the literal")
	}
	if sum.HasUsers() {
		t.Fatalf("replaced node should have no users, has %v", sum.Users())
	}
	if err := f.RemoveNode(sum); err != nil {
		t.Fatalf("RemoveNode: %v", err)
	}
	if err := Verify(p); err != nil {
		t.Fatalf("Verify after removal: %v", err)
	}
}

func TestReplaceUsesWithUpdatesReturn(t *testing.T) {
	p := NewPackage("test")
	f := p.NewFunction("f")
	a := f.AddParam("a", p.BitsType(8))
	f.SetReturn(a)
	repl := f.Not(a)
	a.ReplaceUsesWith(repl)
	if f.Return() != repl {
		t.Fatalf("return node not redirected")
	}
	// The replacement still uses a, so a must not be reported dead.
	if !a.HasUsers() {
		t.Fatalf("a should still be used by its replacement")
	}
}

func TestRemoveNodeRefusesLiveNodes(t *testing.T) {
	p := NewPackage("test")
	f := p.NewFunction("f")
	a := f.AddParam("a", p.BitsType(8))
	inv := f.Not(a)
	f.SetReturn(inv)
	if err := f.RemoveNode(a); err == nil {
		t.Fatalf("expected error removing a node with users")
	}
	if err := f.RemoveNode(inv); err == nil {
		t.Fatalf("expected error removing the return node")
	}
}

func TestTopoSortDeterministic(t *testing.T) {
	p := NewPackage("test")
	f := p.NewFunction("f")
	a := f.AddParam("a", p.BitsType(8))
	b := f.AddParam("b", p.BitsType(8))
	s1 := f.Add(a, b)
	s2 := f.Sub(a, b)
	out := f.UMul(s1, s2)
	f.SetReturn(out)

	order, err := TopoSort(&f.FunctionBase)
	if err != nil {
		t.Fatalf("TopoSort: %v", err)
	}
	ids := make([]int64, len(order))
	for i, n := range order {
		ids[i] = n.ID()
	}
	want := []int64{a.ID(), b.ID(), s1.ID(), s2.ID(), out.ID()}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("topo order mismatch (-want +got):\n%s", diff)
	}

	pos := map[*Node]int{}
	for i, n := range order {
		pos[n] = i
	}
	for _, n := range order {
		for _, o := range n.Operands() {
			if pos[o] >= pos[n] {
				t.Errorf("operand %s ordered after user %s", o, n)
			}
		}
	}
}

func TestProcStateLifecycle(t *testing.T) {
	p := NewPackage("test")
	pr := p.NewProc("counter")
	zero := p.BitsValue(BitsFromUint64(32, 0))
	st := pr.AppendStateElement("count", zero)
	one := pr.Literal(p.BitsValue(BitsFromUint64(32, 1)))
	next := pr.Add(st, one)
	if err := pr.SetNextState(0, next); err != nil {
		t.Fatalf("SetNextState: %v", err)
	}
	if pr.StateElementCount() != 1 {
		t.Fatalf("StateElementCount() = %d, want 1", pr.StateElementCount())
	}
	if err := Verify(p); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if err := pr.SetNextState(0, pr.Literal(p.BitsValue(BitsFromUint64(8, 0)))); err == nil {
		t.Fatalf("expected type mismatch error from SetNextState")
	}
}

func TestRemoveStateElementRenumbers(t *testing.T) {
	p := NewPackage("test")
	pr := p.NewProc("pr")
	zero8 := p.BitsValue(BitsFromUint64(8, 0))
	s0 := pr.AppendStateElement("s0", zero8)
	s1 := pr.AppendStateElement("s1", zero8)
	s2 := pr.AppendStateElement("s2", zero8)
	_ = s0

	// Make s1 removable: break its self-referential next-state default.
	lit := pr.Literal(zero8)
	if err := pr.SetNextState(1, lit); err != nil {
		t.Fatalf("SetNextState: %v", err)
	}
	if err := pr.RemoveStateElement(1); err != nil {
		t.Fatalf("RemoveStateElement: %v", err)
	}
	if pr.StateElementCount() != 2 {
		t.Fatalf("StateElementCount() = %d, want 2", pr.StateElementCount())
	}
	if s2.Index() != 1 {
		t.Errorf("surviving element not renumbered: index = %d, want 1", s2.Index())
	}
	if s1.Owner() != nil {
		t.Errorf("removed read node still owned")
	}
}

func TestRemoveStateElementRefusesLiveRead(t *testing.T) {
	p := NewPackage("test")
	pr := p.NewProc("pr")
	st := pr.AppendStateElement("s", p.BitsValue(BitsFromUint64(8, 0)))
	pr.Not(st)
	if err := pr.RemoveStateElement(0); err == nil {
		t.Fatalf("expected error removing state element with live read")
	}
}

func TestChannelOps(t *testing.T) {
	p := NewPackage("test")
	ch, err := p.AddChannel("in", p.BitsType(16), ChannelReceive)
	if err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	out, err := p.AddChannel("out", p.BitsType(16), ChannelSend)
	if err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	if _, err := p.AddChannel("in", p.BitsType(8), ChannelReceive); err == nil {
		t.Fatalf("expected duplicate channel name to fail")
	}

	pr := p.NewProc("echo")
	recv := pr.Receive(pr.TokenParam(), ch)
	tok, err := pr.TupleIndex(recv, 0)
	if err != nil {
		t.Fatalf("TupleIndex: %v", err)
	}
	data, err := pr.TupleIndex(recv, 1)
	if err != nil {
		t.Fatalf("TupleIndex: %v", err)
	}
	send := pr.Send(tok, data, out)
	pr.SetNextToken(send)

	if err := Verify(p); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if data.Type() != p.BitsType(16) {
		t.Errorf("receive data type = %s, want bits[16]", data.Type())
	}
}

func TestBlockConstruction(t *testing.T) {
	p := NewPackage("test")
	b := p.NewBlock("top")
	in, err := b.AddInputPort("x", p.BitsType(8))
	if err != nil {
		t.Fatalf("AddInputPort: %v", err)
	}
	reg, err := b.AddRegister("x_reg", p.BitsType(8))
	if err != nil {
		t.Fatalf("AddRegister: %v", err)
	}
	if _, err := b.RegisterWrite(reg, in); err != nil {
		t.Fatalf("RegisterWrite: %v", err)
	}
	read := b.RegisterRead(reg)
	if _, err := b.AddOutputPort("y", read); err != nil {
		t.Fatalf("AddOutputPort: %v", err)
	}
	b.SetClockName("clk")

	if got := len(b.InputPorts()); got != 1 {
		t.Errorf("len(InputPorts()) = %d, want 1", got)
	}
	if got := len(b.OutputPorts()); got != 1 {
		t.Errorf("len(OutputPorts()) = %d, want 1", got)
	}
	if _, err := b.AddInputPort("x", p.BitsType(4)); err == nil {
		t.Errorf("expected duplicate port name to fail")
	}
	if err := Verify(p); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyCatchesTypeMismatch(t *testing.T) {
	p := NewPackage("test")
	pr := p.NewProc("pr")
	ch, err := p.AddChannel("c", p.BitsType(8), ChannelSend)
	if err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	wide := pr.Literal(p.BitsValue(BitsFromUint64(16, 0)))
	send := pr.Send(pr.TokenParam(), wide, ch)
	pr.SetNextToken(send)
	if err := Verify(p); err == nil {
		t.Fatalf("expected verifier to reject send data wider than the channel")
	}
}

func TestDump(t *testing.T) {
	p := NewPackage("demo")
	f := p.NewFunction("sum")
	a := f.AddParam("a", p.BitsType(8))
	b := f.AddParam("b", p.BitsType(8))
	f.SetReturn(f.Add(a, b))

	var sb strings.Builder
	Dump(p, &sb)
	out := sb.String()
	for _, want := range []string{"package demo", "fn sum(", "add", "ret"} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump output missing %q:\n%s", want, out)
		}
	}
}
