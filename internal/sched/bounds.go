package sched

import (
	"fmt"

	"rtlgen/internal/ir"
)

// Bounds holds the per-node cycle window a schedule must respect.
type Bounds struct {
	Lower map[*ir.Node]int
	Upper map[*ir.Node]int
}

// ComputeBounds derives ASAP lower bounds and ALAP upper bounds for every
// node. The walks pack combinational delay into cycles greedily: a node
// moves to the next cycle when appending it to the critical path of its
// operands would exceed the clock period. A node whose window is empty makes
// the whole problem infeasible.
func ComputeBounds(fb *ir.FunctionBase, stages int, clockPeriodPs int64, est DelayEstimator) (*Bounds, error) {
	order, err := ir.TopoSort(fb)
	if err != nil {
		return nil, err
	}

	lower := map[*ir.Node]int{}
	// lowerSlack is the critical-path delay consumed inside the node's
	// earliest cycle, measured through the node itself.
	lowerSlack := map[*ir.Node]int64{}
	for _, n := range order {
		d, err := delayOf(est, n)
		if err != nil {
			return nil, err
		}
		cycle := 0
		var pathDelay int64
		for _, o := range n.Operands() {
			oc, od := lower[o], lowerSlack[o]
			if oc > cycle {
				cycle, pathDelay = oc, od
			} else if oc == cycle && od > pathDelay {
				pathDelay = od
			}
		}
		if pathDelay+d > clockPeriodPs && pathDelay > 0 {
			cycle++
			pathDelay = 0
		}
		lower[n] = cycle
		lowerSlack[n] = pathDelay + d
	}

	last := stages - 1
	upper := map[*ir.Node]int{}
	upperSlack := map[*ir.Node]int64{}
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		d, err := delayOf(est, n)
		if err != nil {
			return nil, err
		}
		cycle := last
		var pathDelay int64
		for _, u := range n.Users() {
			uc, ud := upper[u], upperSlack[u]
			if uc < cycle {
				cycle, pathDelay = uc, ud
			} else if uc == cycle && ud > pathDelay {
				pathDelay = ud
			}
		}
		if pathDelay+d > clockPeriodPs && pathDelay > 0 {
			cycle--
			pathDelay = 0
		}
		upper[n] = cycle
		upperSlack[n] = pathDelay + d
	}

	for _, n := range order {
		if lower[n] > upper[n] {
			return nil, fmt.Errorf("node %s needs cycle >= %d but must finish by cycle %d with %d stages: %w",
				n, lower[n], upper[n], stages, ErrInfeasible)
		}
	}
	return &Bounds{Lower: lower, Upper: upper}, nil
}
