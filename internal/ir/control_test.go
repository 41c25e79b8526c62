package ir

import (
	"testing"
)

func TestSelectTypesAndOperands(t *testing.T) {
	p := NewPackage("test")
	f := p.NewFunction("f")
	u8 := p.BitsType(8)
	sel := f.AddParam("sel", p.BitsType(1))
	a := f.AddParam("a", u8)
	b := f.AddParam("b", u8)

	m := f.Select(sel, a, b)
	if m.Type() != u8 {
		t.Fatalf("Select type = %s, want %s", m.Type(), u8)
	}
	if m.OperandCount() != 3 || m.Operand(0) != sel || m.Operand(1) != a || m.Operand(2) != b {
		t.Fatalf("Select operands wrong: %s", m)
	}
}

func TestOneHotSelectTypesAndOperands(t *testing.T) {
	p := NewPackage("test")
	f := p.NewFunction("f")
	u8 := p.BitsType(8)
	sel := f.AddParam("sel", p.BitsType(3))
	a := f.AddParam("a", u8)
	b := f.AddParam("b", u8)
	c := f.AddParam("c", u8)

	m := f.OneHotSelect(sel, a, b, c)
	if m.Op() != OpOneHotSelect {
		t.Fatalf("Op = %s, want one_hot_sel", m.Op())
	}
	if m.Type() != u8 {
		t.Fatalf("OneHotSelect type = %s, want %s", m.Type(), u8)
	}
	if m.OperandCount() != 4 || m.Operand(0) != sel {
		t.Fatalf("OneHotSelect operands wrong: %s", m)
	}
	f.SetReturn(m)
	if err := Verify(p); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestInvokeCarriesCalleeType(t *testing.T) {
	p := NewPackage("test")
	u8 := p.BitsType(8)

	callee := p.NewFunction("double")
	x := callee.AddParam("x", u8)
	callee.SetReturn(callee.Add(x, x))

	caller := p.NewFunction("caller")
	a := caller.AddParam("a", u8)
	inv, err := caller.Invoke(callee, a)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if inv.Type() != u8 {
		t.Fatalf("Invoke type = %s, want %s", inv.Type(), u8)
	}
	if inv.Callee() != callee {
		t.Fatalf("Invoke callee = %v, want double", inv.Callee())
	}
}

func TestInvokeRejectsVoidCallee(t *testing.T) {
	p := NewPackage("test")
	callee := p.NewFunction("noret")
	caller := p.NewFunction("caller")
	if _, err := caller.Invoke(callee); err == nil {
		t.Fatal("Invoke of return-less callee succeeded")
	}
}

func TestAssertCoverTokens(t *testing.T) {
	p := NewPackage("test")
	f := p.NewFunction("f")
	cond := f.AddParam("ok", p.BitsType(1))
	tok := f.Literal(p.TokenValue())

	a := f.Assert(tok, cond, "boom")
	if a.Type() != p.TokenType() {
		t.Fatalf("Assert type = %s, want token", a.Type())
	}
	if a.Message() != "boom" {
		t.Fatalf("Assert message = %q, want %q", a.Message(), "boom")
	}

	c := f.Cover(tok, cond, "saw_ok")
	if c.Type() != p.TokenType() {
		t.Fatalf("Cover type = %s, want token", c.Type())
	}
	if c.Message() != "saw_ok" {
		t.Fatalf("Cover label = %q, want %q", c.Message(), "saw_ok")
	}

	j := f.AfterAll(a, c)
	if j.Type() != p.TokenType() || j.OperandCount() != 2 {
		t.Fatalf("AfterAll wrong: %s", j)
	}
}

func TestCloneNodePreservesPayloads(t *testing.T) {
	p := NewPackage("test")
	ch, err := p.AddChannel("in", p.BitsType(4), ChannelReceive)
	if err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	src := p.NewProc("src")
	recv := src.Receive(src.TokenParam(), ch)

	dst := p.NewFunction("dst")
	tok := dst.Literal(p.TokenValue())
	clone := dst.CloneNode(recv, tok)
	if clone.Op() != OpReceive {
		t.Fatalf("clone op = %s, want receive", clone.Op())
	}
	if clone.Channel() != ch {
		t.Fatalf("clone lost its channel")
	}
	if clone.Type() != recv.Type() {
		t.Fatalf("clone type = %s, want %s", clone.Type(), recv.Type())
	}
}
