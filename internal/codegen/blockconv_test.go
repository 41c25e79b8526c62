package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rtlgen/internal/ir"
	"rtlgen/internal/sched"
)

// buildAdder returns a function computing a+b over 8-bit values.
func buildAdder(t *testing.T) (*ir.Package, *ir.Function) {
	t.Helper()
	p := ir.NewPackage("adder")
	f := p.NewFunction("adder")
	u8 := p.BitsType(8)
	a := f.AddParam("a", u8)
	b := f.AddParam("b", u8)
	f.SetReturn(f.Add(a, b))
	return p, f
}

func TestFunctionToBlockCombinational(t *testing.T) {
	_, f := buildAdder(t)
	block, err := FunctionToBlock(f, nil, Options{})
	require.NoError(t, err)

	in := block.InputPorts()
	require.Len(t, in, 2)
	require.Equal(t, "a", in[0].Name)
	require.Equal(t, "b", in[1].Name)

	out := block.OutputPorts()
	require.Len(t, out, 1)
	require.Equal(t, "out", out[0].Name)
	require.Equal(t, int64(8), out[0].Type.FlatBitCount())

	require.Empty(t, block.Registers())
	require.Empty(t, block.ClockName())
}

func TestFunctionToBlockRequiresReturn(t *testing.T) {
	p := ir.NewPackage("p")
	f := p.NewFunction("noret")
	f.AddParam("a", p.BitsType(8))
	_, err := FunctionToBlock(f, nil, Options{})
	require.Error(t, err)
}

func TestFunctionToBlockPipelineRegisters(t *testing.T) {
	p := ir.NewPackage("chain")
	f := p.NewFunction("chain")
	u8 := p.BitsType(8)
	a := f.AddParam("a", u8)
	b := f.AddParam("b", u8)
	c := f.AddParam("c", u8)
	m1 := f.UMul(a, b)
	sum := f.Add(m1, c)
	f.SetReturn(sum)

	cycles := sched.CycleMap{sum: 1}
	block, err := FunctionToBlock(f, cycles, Options{})
	require.NoError(t, err)

	// m1 and c are live across the stage boundary; a and b die in stage 0.
	regs := block.Registers()
	require.Len(t, regs, 2)
	names := map[string]bool{}
	for _, r := range regs {
		names[r.Name()] = true
		require.Equal(t, int64(8), r.Type().FlatBitCount())
	}
	require.True(t, names["c_stage1_reg"], "registers: %v", names)
	require.Equal(t, "clk", block.ClockName())
	require.Empty(t, block.ResetName())
}

func TestFunctionToBlockResetNameOnlyWithRegisters(t *testing.T) {
	_, f := buildAdder(t)
	block, err := FunctionToBlock(f, nil, Options{ResetName: "rst"})
	require.NoError(t, err)
	require.Empty(t, block.ResetName())
	require.Empty(t, block.ClockName())
}

func buildCounter(t *testing.T) (*ir.Package, *ir.Proc) {
	t.Helper()
	p := ir.NewPackage("counter")
	proc := p.NewProc("counter")
	count := proc.AppendStateElement("count", p.BitsValue(ir.BitsFromUint64(8, 0)))
	one := proc.Literal(p.BitsValue(ir.BitsFromUint64(8, 1)))
	next := proc.Add(count, one)
	require.NoError(t, proc.SetNextState(0, next))
	proc.SetNextToken(proc.TokenParam())
	return p, proc
}

func TestProcToBlockStateRegister(t *testing.T) {
	p, proc := buildCounter(t)
	block, err := ProcToBlock(proc, nil, Options{ResetName: "rst"})
	require.NoError(t, err)

	regs := block.Registers()
	require.Len(t, regs, 1)
	require.Equal(t, "count_reg", regs[0].Name())
	rv, ok := regs[0].ResetValue()
	require.True(t, ok)
	require.True(t, rv.Equal(p.BitsValue(ir.BitsFromUint64(8, 0))))

	require.Equal(t, "clk", block.ClockName())
	require.Equal(t, "rst", block.ResetName())
}

func buildEcho(t *testing.T) *ir.Proc {
	t.Helper()
	p := ir.NewPackage("echo")
	in, err := p.AddChannel("r", p.BitsType(16), ir.ChannelReceive)
	require.NoError(t, err)
	out, err := p.AddChannel("s", p.BitsType(16), ir.ChannelSend)
	require.NoError(t, err)
	proc := p.NewProc("echo")
	recv := proc.Receive(proc.TokenParam(), in)
	tok, err := proc.TupleIndex(recv, 0)
	require.NoError(t, err)
	data, err := proc.TupleIndex(recv, 1)
	require.NoError(t, err)
	proc.SetNextToken(proc.Send(tok, data, out))
	return proc
}

func TestProcToBlockChannelHandshake(t *testing.T) {
	proc := buildEcho(t)
	block, err := ProcToBlock(proc, nil, Options{})
	require.NoError(t, err)

	dirs := map[string]ir.PortDirection{}
	for _, p := range block.Ports() {
		dirs[p.Name] = p.Direction
	}
	require.Equal(t, map[string]ir.PortDirection{
		"r_data":  ir.PortInput,
		"r_valid": ir.PortInput,
		"r_ready": ir.PortOutput,
		"s_data":  ir.PortOutput,
		"s_valid": ir.PortOutput,
		"s_ready": ir.PortInput,
	}, dirs)
	require.Empty(t, block.Registers())
}

func TestProcToBlockPipelinedChannels(t *testing.T) {
	proc := buildEcho(t)
	cycles, err := sched.Schedule(&proc.FunctionBase, sched.Options{
		Stages:        2,
		ClockPeriodPs: 1000,
		Constraints:   []sched.Constraint{sched.RecvsFirstSendsLast{}},
	})
	require.NoError(t, err)

	block, err := ProcToBlock(proc, cycles, Options{})
	require.NoError(t, err)
	require.Equal(t, "clk", block.ClockName())
	require.NotEmpty(t, block.Registers(), "receive data must be registered across the boundary")
}
