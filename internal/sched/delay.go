package sched

import (
	"fmt"

	"rtlgen/internal/ir"
)

// DelayEstimator models the combinational delay of a node in picoseconds.
type DelayEstimator interface {
	DelayPs(n *ir.Node) (int64, error)
}

// FixedDelayEstimator assigns a constant delay per op kind, with zero for
// kinds that are pure wiring. It is the estimator used when no
// technology-specific model is supplied.
type FixedDelayEstimator struct {
	// Default applies to ops without an entry in PerOp.
	Default int64
	PerOp   map[ir.Op]int64
}

func (e *FixedDelayEstimator) DelayPs(n *ir.Node) (int64, error) {
	switch n.Op() {
	case ir.OpLiteral, ir.OpParam, ir.OpStateRead, ir.OpBitSlice, ir.OpConcat,
		ir.OpTuple, ir.OpTupleIndex, ir.OpZeroExt, ir.OpSignExt, ir.OpAfterAll,
		ir.OpInputPort, ir.OpOutputPort:
		return 0, nil
	}
	if d, ok := e.PerOp[n.Op()]; ok {
		return d, nil
	}
	return e.Default, nil
}

// delayOf wraps the estimator with a negative-delay check.
func delayOf(est DelayEstimator, n *ir.Node) (int64, error) {
	d, err := est.DelayPs(n)
	if err != nil {
		return 0, fmt.Errorf("delay of node %s: %w", n, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("delay of node %s is negative (%d)", n, d)
	}
	return d, nil
}
