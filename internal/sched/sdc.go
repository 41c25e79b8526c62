package sched

import (
	"fmt"
	"math"

	"github.com/go-logr/logr"

	"rtlgen/internal/ir"
)

// lifetimeWeight scales the register-pressure term of the objective so that
// saving flop bits always dominates shifting a node between cycles.
const lifetimeWeight = 1024

// integralityTolerance bounds how far a relaxed cycle value may sit from the
// nearest integer before the solution is rejected.
const integralityTolerance = 0.001

// Constraint is a user-supplied scheduling constraint.
type Constraint interface {
	isConstraint()
}

// IOConstraint pins the cycle distance between two channel operations:
// MinimumLatency <= cycle(target) - cycle(source) <= MaximumLatency for every
// matching pair of distinct nodes.
type IOConstraint struct {
	SourceChannel   string
	SourceDirection ir.ChannelDirection
	TargetChannel   string
	TargetDirection ir.ChannelDirection
	MinimumLatency  int64
	MaximumLatency  int64
}

func (IOConstraint) isConstraint() {}

// RecvsFirstSendsLast forces every receive into the first cycle and every
// send into the last cycle of the pipeline.
type RecvsFirstSendsLast struct{}

func (RecvsFirstSendsLast) isConstraint() {}

// Options configures Schedule.
type Options struct {
	// Stages is the number of pipeline stages; the schedule assigns cycles
	// in [0, Stages-1].
	Stages int

	// ClockPeriodPs is the combinational delay budget of one cycle.
	ClockPeriodPs int64

	// Estimator supplies per-node delays. Defaults to a zero-delay model.
	Estimator DelayEstimator

	// Bounds, when non-nil, replaces the internally computed ASAP/ALAP
	// window.
	Bounds *Bounds

	Constraints []Constraint

	// Solver defaults to the gonum simplex backend.
	Solver LPSolver

	Logger logr.Logger
}

// CycleMap assigns each node its pipeline cycle.
type CycleMap map[*ir.Node]int

// Schedule assigns every node of fb a cycle by solving the difference
// constraint system built from data edges, combinational timing, and the
// user constraints, minimizing estimated pipeline register bits.
func Schedule(fb *ir.FunctionBase, opts Options) (CycleMap, error) {
	if opts.Stages < 1 {
		return nil, fmt.Errorf("schedule %s: stages must be >= 1, got %d", fb.Name(), opts.Stages)
	}
	if opts.ClockPeriodPs <= 0 {
		return nil, fmt.Errorf("schedule %s: clock period must be positive, got %d", fb.Name(), opts.ClockPeriodPs)
	}
	est := opts.Estimator
	if est == nil {
		est = &FixedDelayEstimator{}
	}
	solver := opts.Solver
	if solver == nil {
		solver = NewGonumSolver()
	}
	log := opts.Logger

	bounds := opts.Bounds
	if bounds == nil {
		var err error
		bounds, err = ComputeBounds(fb, opts.Stages, opts.ClockPeriodPs, est)
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", fb.Name(), err)
		}
	}

	b := &constraintBuilder{
		fb:     fb,
		opts:   opts,
		est:    est,
		solver: solver,
		log:    log,
		cycle:  map[*ir.Node]VarID{},
		life:   map[*ir.Node]VarID{},
	}
	if err := b.build(bounds); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", fb.Name(), err)
	}

	if err := solver.Solve(); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", fb.Name(), err)
	}
	return b.extract()
}

// constraintBuilder translates the graph into LP variables and rows.
type constraintBuilder struct {
	fb     *ir.FunctionBase
	opts   Options
	est    DelayEstimator
	solver LPSolver
	log    logr.Logger

	cycle map[*ir.Node]VarID
	life  map[*ir.Node]VarID
	sink  VarID
}

func (b *constraintBuilder) build(bounds *Bounds) error {
	inf := math.Inf(1)
	for _, n := range b.fb.Nodes() {
		b.cycle[n] = b.solver.AddVariable(n.String(), float64(bounds.Lower[n]), float64(bounds.Upper[n]))
		b.life[n] = b.solver.AddVariable(n.String()+"_lifetime", 0, inf)
	}
	b.sink = b.solver.AddVariable("sink", math.Inf(-1), inf)

	b.addCausalConstraints()
	if err := b.addTimingConstraints(); err != nil {
		return err
	}
	if err := b.addUserConstraints(); err != nil {
		return err
	}
	b.addObjective()
	return nil
}

// addCausalConstraints keeps users at or after their operands and charges
// each crossing to the operand's lifetime. Nodes referenced from outside the
// graph drain into a shared sink so their results stay live to the end.
func (b *constraintBuilder) addCausalConstraints() {
	inf := math.Inf(1)
	for _, n := range b.fb.Nodes() {
		seen := map[*ir.Node]bool{}
		for _, o := range n.Operands() {
			if seen[o] {
				continue
			}
			seen[o] = true
			b.solver.AddRow(fmt.Sprintf("causal_%s_%s", o, n), 0,
				[]Term{{b.cycle[n], 1}, {b.cycle[o], -1}}, inf)
			b.solver.AddRow(fmt.Sprintf("lifetime_%s_%s", o, n), math.Inf(-1),
				[]Term{{b.cycle[n], 1}, {b.cycle[o], -1}, {b.life[o], -1}}, 0)
		}
		if b.fb.IsTerminal(n) {
			b.solver.AddRow(fmt.Sprintf("causal_%s_sink", n), 0,
				[]Term{{b.sink, 1}, {b.cycle[n], -1}}, inf)
			b.solver.AddRow(fmt.Sprintf("lifetime_%s_sink", n), math.Inf(-1),
				[]Term{{b.sink, 1}, {b.cycle[n], -1}, {b.life[n], -1}}, 0)
		}
	}
}

// addTimingConstraints separates node pairs whose combinational path cannot
// fit in one clock period. Distances are delay-weighted longest paths; an
// entry is dropped once it exceeds the clock period because the emitted
// constraint already separates everything further downstream transitively.
func (b *constraintBuilder) addTimingConstraints() error {
	order, err := ir.TopoSort(b.fb)
	if err != nil {
		return err
	}
	clock := b.opts.ClockPeriodPs
	inf := math.Inf(1)

	dist := map[*ir.Node]map[*ir.Node]int64{}
	for _, n := range order {
		d, err := delayOf(b.est, n)
		if err != nil {
			return err
		}
		entries := map[*ir.Node]int64{n: d}
		constrained := map[*ir.Node]bool{}
		for _, o := range n.Operands() {
			for a, ad := range dist[o] {
				if ad+d > clock {
					if !constrained[a] {
						constrained[a] = true
						b.log.V(2).Info("timing constraint", "from", a.String(), "to", n.String(),
							"pathDelayPs", ad+d)
						b.solver.AddRow(fmt.Sprintf("timing_%s_%s", a, n), 1,
							[]Term{{b.cycle[n], 1}, {b.cycle[a], -1}}, inf)
					}
					continue
				}
				if ad+d > entries[a] {
					entries[a] = ad + d
				}
			}
		}
		for a := range entries {
			if entries[a] > clock {
				delete(entries, a)
			}
		}
		dist[n] = entries
	}
	return nil
}

func (b *constraintBuilder) addUserConstraints() error {
	for _, c := range b.opts.Constraints {
		switch c := c.(type) {
		case IOConstraint:
			if err := b.addIOConstraint(c); err != nil {
				return err
			}
		case RecvsFirstSendsLast:
			b.addRecvsFirstSendsLast()
		default:
			return fmt.Errorf("unknown constraint type %T", c)
		}
	}
	return nil
}

func (b *constraintBuilder) channelNodes(channel string, dir ir.ChannelDirection) []*ir.Node {
	var nodes []*ir.Node
	for _, n := range b.fb.Nodes() {
		switch {
		case n.Op() == ir.OpSend && dir == ir.ChannelSend,
			n.Op() == ir.OpReceive && dir == ir.ChannelReceive:
			if n.Channel().Name() == channel {
				nodes = append(nodes, n)
			}
		}
	}
	return nodes
}

func (b *constraintBuilder) addIOConstraint(c IOConstraint) error {
	if c.MinimumLatency > c.MaximumLatency {
		return fmt.Errorf("IO constraint %s->%s: minimum latency %d exceeds maximum %d",
			c.SourceChannel, c.TargetChannel, c.MinimumLatency, c.MaximumLatency)
	}
	sources := b.channelNodes(c.SourceChannel, c.SourceDirection)
	targets := b.channelNodes(c.TargetChannel, c.TargetDirection)
	for _, s := range sources {
		for _, t := range targets {
			if s == t {
				continue
			}
			b.log.V(2).Info("IO constraint", "source", s.String(), "target", t.String(),
				"min", c.MinimumLatency, "max", c.MaximumLatency)
			b.solver.AddRow(fmt.Sprintf("io_%s_%s", s, t), float64(c.MinimumLatency),
				[]Term{{b.cycle[t], 1}, {b.cycle[s], -1}}, float64(c.MaximumLatency))
		}
	}
	return nil
}

func (b *constraintBuilder) addRecvsFirstSendsLast() {
	last := float64(b.opts.Stages - 1)
	for _, n := range b.fb.Nodes() {
		switch n.Op() {
		case ir.OpReceive:
			b.solver.AddRow(fmt.Sprintf("recv_first_%s", n), math.Inf(-1),
				[]Term{{b.cycle[n], 1}}, 0)
		case ir.OpSend:
			b.solver.AddRow(fmt.Sprintf("send_last_%s", n), last,
				[]Term{{b.cycle[n], 1}}, math.Inf(1))
		}
	}
}

// addObjective minimizes estimated pipeline register bits, with a small
// per-node cycle term that pulls otherwise unconstrained nodes early.
func (b *constraintBuilder) addObjective() {
	for _, n := range b.fb.Nodes() {
		b.solver.AddObjective(b.cycle[n], 1)
		b.solver.AddObjective(b.life[n], float64(lifetimeWeight*n.Type().FlatBitCount()))
	}
}

func (b *constraintBuilder) extract() (CycleMap, error) {
	cycles := CycleMap{}
	for _, n := range b.fb.Nodes() {
		v := b.solver.Value(b.cycle[n])
		r := math.Round(v)
		if math.Abs(v-r) > integralityTolerance {
			return nil, fmt.Errorf("node %s scheduled at fractional cycle %v: %w", n, v, ErrNonIntegerSolution)
		}
		cycles[n] = int(r)
	}
	b.log.V(1).Info("schedule complete", "target", b.fb.Name(), "nodes", len(cycles), "stages", b.opts.Stages)
	return cycles, nil
}

// Latency returns the number of cycles between the earliest and latest
// scheduled node, which is the pipeline latency in registers.
func (m CycleMap) Latency() int {
	first := true
	min, max := 0, 0
	for _, c := range m {
		if first {
			min, max = c, c
			first = false
			continue
		}
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
	}
	return max - min
}
