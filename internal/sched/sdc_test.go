package sched

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"rtlgen/internal/ir"
)

func arithDelays() *FixedDelayEstimator {
	return &FixedDelayEstimator{
		Default: 250,
		PerOp: map[ir.Op]int64{
			ir.OpUMul: 250,
			ir.OpAdd:  250,
		},
	}
}

// buildChain returns a function computing ((a*b)+c)*d over 32-bit values.
func buildChain(t *testing.T) (*ir.Package, *ir.Function, map[string]*ir.Node) {
	t.Helper()
	p := ir.NewPackage("chain")
	f := p.NewFunction("f")
	u32 := p.BitsType(32)
	a := f.AddParam("a", u32)
	b := f.AddParam("b", u32)
	c := f.AddParam("c", u32)
	d := f.AddParam("d", u32)
	m1 := f.UMul(a, b)
	sum := f.Add(m1, c)
	m2 := f.UMul(sum, d)
	f.SetReturn(m2)
	nodes := map[string]*ir.Node{"a": a, "b": b, "c": c, "d": d, "m1": m1, "sum": sum, "m2": m2}
	return p, f, nodes
}

func TestScheduleChainTwoStages(t *testing.T) {
	_, f, nodes := buildChain(t)
	cycles, err := Schedule(&f.FunctionBase, Options{
		Stages:        2,
		ClockPeriodPs: 600,
		Estimator:     arithDelays(),
	})
	require.NoError(t, err)

	// Three 250ps ops cannot fit one 600ps cycle, so the final multiply
	// lands in the second stage. The d parameter follows it there: a
	// parameter costs nothing to move and crossing the boundary would
	// charge 32 bits of lifetime.
	require.Equal(t, 1, cycles[nodes["m2"]])
	require.Equal(t, 1, cycles[nodes["d"]])
	for _, name := range []string{"a", "b", "c", "m1", "sum"} {
		require.Equal(t, 0, cycles[nodes[name]], "node %s", name)
	}
	require.Equal(t, 1, cycles.Latency())
}

func TestScheduleChainSingleCycleAtSlowClock(t *testing.T) {
	_, f, _ := buildChain(t)
	cycles, err := Schedule(&f.FunctionBase, Options{
		Stages:        2,
		ClockPeriodPs: 1000,
		Estimator:     arithDelays(),
	})
	require.NoError(t, err)
	for n, c := range cycles {
		require.Equal(t, 0, c, "node %s", n)
	}
}

func TestScheduleRespectsCausality(t *testing.T) {
	_, f, _ := buildChain(t)
	cycles, err := Schedule(&f.FunctionBase, Options{
		Stages:        4,
		ClockPeriodPs: 300,
		Estimator:     arithDelays(),
	})
	require.NoError(t, err)
	for _, n := range f.Nodes() {
		for _, o := range n.Operands() {
			require.LessOrEqual(t, cycles[o], cycles[n],
				"operand %s scheduled after user %s", o, n)
		}
	}
}

func TestScheduleInfeasibleBounds(t *testing.T) {
	_, f, _ := buildChain(t)
	_, err := Schedule(&f.FunctionBase, Options{
		Stages:        1,
		ClockPeriodPs: 600,
		Estimator:     arithDelays(),
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInfeasible), "got %v", err)
}

func buildEchoProc(t *testing.T) (*ir.Proc, *ir.Node, *ir.Node) {
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
	send := proc.Send(tok, data, out)
	proc.SetNextToken(send)
	return proc, recv, send
}

func TestScheduleIOConstraintPinsLatency(t *testing.T) {
	proc, recv, send := buildEchoProc(t)
	cycles, err := Schedule(&proc.FunctionBase, Options{
		Stages:        4,
		ClockPeriodPs: 1000,
		Constraints: []Constraint{
			IOConstraint{
				SourceChannel:   "r",
				SourceDirection: ir.ChannelReceive,
				TargetChannel:   "s",
				TargetDirection: ir.ChannelSend,
				MinimumLatency:  2,
				MaximumLatency:  2,
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, cycles[send]-cycles[recv])
}

func TestScheduleIOConstraintInfeasibleWindow(t *testing.T) {
	proc, _, _ := buildEchoProc(t)
	_, err := Schedule(&proc.FunctionBase, Options{
		Stages:        2,
		ClockPeriodPs: 1000,
		Constraints: []Constraint{
			IOConstraint{
				SourceChannel:   "r",
				SourceDirection: ir.ChannelReceive,
				TargetChannel:   "s",
				TargetDirection: ir.ChannelSend,
				MinimumLatency:  3,
				MaximumLatency:  3,
			},
		},
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInfeasible), "got %v", err)
}

func TestScheduleIOConstraintRejectsInvertedWindow(t *testing.T) {
	proc, _, _ := buildEchoProc(t)
	_, err := Schedule(&proc.FunctionBase, Options{
		Stages:        2,
		ClockPeriodPs: 1000,
		Constraints: []Constraint{
			IOConstraint{
				SourceChannel:  "r",
				TargetChannel:  "s",
				MinimumLatency: 2,
				MaximumLatency: 1,
			},
		},
	})
	require.Error(t, err)
}

func TestScheduleRecvsFirstSendsLast(t *testing.T) {
	proc, recv, send := buildEchoProc(t)
	cycles, err := Schedule(&proc.FunctionBase, Options{
		Stages:        3,
		ClockPeriodPs: 1000,
		Constraints:   []Constraint{RecvsFirstSendsLast{}},
	})
	require.NoError(t, err)
	require.Equal(t, 0, cycles[recv])
	require.Equal(t, 2, cycles[send])
}

func TestScheduleRejectsBadOptions(t *testing.T) {
	_, f, _ := buildChain(t)
	_, err := Schedule(&f.FunctionBase, Options{Stages: 0, ClockPeriodPs: 100})
	require.Error(t, err)
	_, err = Schedule(&f.FunctionBase, Options{Stages: 1, ClockPeriodPs: 0})
	require.Error(t, err)
}

// fractionalSolver reports success but hands back non-integer cycle values.
type fractionalSolver struct {
	n int
}

func (s *fractionalSolver) AddVariable(string, float64, float64) VarID {
	s.n++
	return VarID(s.n - 1)
}
func (s *fractionalSolver) AddRow(string, float64, []Term, float64) {}
func (s *fractionalSolver) AddObjective(VarID, float64)             {}
func (s *fractionalSolver) Solve() error                            { return nil }
func (s *fractionalSolver) Value(VarID) float64                     { return 0.5 }

func TestScheduleRejectsFractionalSolution(t *testing.T) {
	_, f, _ := buildChain(t)
	_, err := Schedule(&f.FunctionBase, Options{
		Stages:        2,
		ClockPeriodPs: 1000,
		Estimator:     arithDelays(),
		Solver:        &fractionalSolver{},
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNonIntegerSolution), "got %v", err)
}

func TestComputeBoundsWindows(t *testing.T) {
	_, f, nodes := buildChain(t)
	b, err := ComputeBounds(&f.FunctionBase, 3, 600, arithDelays())
	require.NoError(t, err)
	require.Equal(t, 0, b.Lower[nodes["a"]])
	require.Equal(t, 0, b.Lower[nodes["sum"]])
	require.Equal(t, 1, b.Lower[nodes["m2"]])
	require.Equal(t, 2, b.Upper[nodes["m2"]])
	for _, n := range f.Nodes() {
		require.LessOrEqual(t, b.Lower[n], b.Upper[n])
	}
}

func TestGonumSolverSmallProgram(t *testing.T) {
	s := NewGonumSolver()
	inf := math.Inf(1)
	x := s.AddVariable("x", 0, 10)
	y := s.AddVariable("y", math.Inf(-1), inf)
	s.AddRow("sum", 3, []Term{{x, 1}, {y, 1}}, inf)
	s.AddRow("gap", math.Inf(-1), []Term{{y, 1}, {x, -1}}, 1)
	s.AddObjective(x, 1)
	s.AddObjective(y, 1)
	require.NoError(t, s.Solve())
	require.InDelta(t, 3, s.Value(x)+s.Value(y), 1e-6)
	require.LessOrEqual(t, s.Value(y)-s.Value(x), 1+1e-6)
}

func TestGonumSolverInfeasible(t *testing.T) {
	s := NewGonumSolver()
	x := s.AddVariable("x", 0, 1)
	s.AddRow("impossible", 5, []Term{{x, 1}}, math.Inf(1))
	err := s.Solve()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInfeasible), "got %v", err)
}
