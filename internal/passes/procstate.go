package passes

import (
	"fmt"

	"github.com/go-logr/logr"
	"golang.org/x/tools/container/intsets"

	"rtlgen/internal/ir"
)

// ProcStateOptimization shrinks a proc's state: elements whose type occupies
// zero bits are removed outright, and elements that can never influence a
// side-effecting operation are removed as unobservable.
type ProcStateOptimization struct {
	Logger logr.Logger
}

func (p *ProcStateOptimization) Name() string { return "proc_state_opt" }

// Run applies both sub-passes followed by a dead-code sweep and reports
// whether the proc changed.
func (p *ProcStateOptimization) Run(proc *ir.Proc) (bool, error) {
	changedZero, err := p.removeZeroWidthStateElements(proc)
	if err != nil {
		return false, fmt.Errorf("proc %s: %w", proc.Name(), err)
	}
	changedObs, err := p.removeUnobservableStateElements(proc)
	if err != nil {
		return false, fmt.Errorf("proc %s: %w", proc.Name(), err)
	}
	changed := changedZero || changedObs
	if changed {
		if _, err := RunDCE(&proc.FunctionBase); err != nil {
			return false, fmt.Errorf("proc %s: %w", proc.Name(), err)
		}
	}
	return changed, nil
}

// removeZeroWidthStateElements deletes every state element whose type
// flattens to zero bits. Reads are replaced by a zero-valued literal of the
// same type so downstream consumers keep a well-typed operand. Removal runs
// from the highest index down so renumbering never shifts an index that is
// still pending.
func (p *ProcStateOptimization) removeZeroWidthStateElements(proc *ir.Proc) (bool, error) {
	changed := false
	for i := proc.StateElementCount() - 1; i >= 0; i-- {
		read := proc.StateParam(i)
		if read.Type().FlatBitCount() != 0 {
			continue
		}
		p.Logger.V(2).Info("removing zero-width state element",
			"proc", proc.Name(), "element", read.Name(), "index", i)
		if read.HasUsers() {
			zero := proc.Literal(proc.Package().ZeroOfType(read.Type()))
			read.ReplaceUsesWith(zero)
		}
		if err := proc.RemoveStateElement(i); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

// removeUnobservableStateElements removes state elements that no
// side-effecting operation transitively depends on. A single forward pass
// over a topological order computes, per node, the set of state indices it
// depends on; the next-state back edges are folded in with a union-find so
// the pass never iterates to a fixpoint.
func (p *ProcStateOptimization) removeUnobservableStateElements(proc *ir.Proc) (bool, error) {
	count := proc.StateElementCount()
	if count == 0 {
		return false, nil
	}

	order, err := ir.TopoSort(&proc.FunctionBase)
	if err != nil {
		return false, err
	}

	// nextStateIndices maps a node to the state elements it is the next
	// value of.
	nextStateIndices := map[*ir.Node][]int{}
	for i := 0; i < count; i++ {
		ns := proc.NextState(i)
		nextStateIndices[ns] = append(nextStateIndices[ns], i)
	}

	uf := newUnionFind(count)
	observableSeed := -1
	observe := func(index int) {
		if observableSeed == -1 {
			observableSeed = index
			return
		}
		uf.union(observableSeed, index)
	}

	deps := map[*ir.Node]*intsets.Sparse{}
	for _, n := range order {
		set := new(intsets.Sparse)
		if n.Op() == ir.OpStateRead {
			set.Insert(int(n.Index()))
		} else {
			for _, o := range n.Operands() {
				set.UnionWith(deps[o])
			}
		}
		deps[n] = set

		if n.Op().SideEffecting() {
			for _, index := range sparseElems(set) {
				observe(index)
			}
		}
		for _, j := range nextStateIndices[n] {
			for _, index := range sparseElems(set) {
				uf.union(j, index)
			}
		}
	}

	var removable []int
	for i := 0; i < count; i++ {
		if observableSeed == -1 || !uf.same(i, observableSeed) {
			removable = append(removable, i)
		}
	}
	if len(removable) == 0 {
		return false, nil
	}

	// Detach the next-state logic of every doomed element first; the
	// detached computations turn dead together, then the elements go in
	// descending index order.
	for _, i := range removable {
		if err := proc.SetNextState(i, proc.StateParam(i)); err != nil {
			return false, err
		}
	}
	if _, err := RunDCE(&proc.FunctionBase); err != nil {
		return false, err
	}
	for k := len(removable) - 1; k >= 0; k-- {
		i := removable[k]
		p.Logger.V(2).Info("removing unobservable state element",
			"proc", proc.Name(), "element", proc.StateParam(i).Name(), "index", i)
		if err := proc.RemoveStateElement(i); err != nil {
			return false, err
		}
	}
	return true, nil
}

func sparseElems(s *intsets.Sparse) []int {
	return s.AppendTo(nil)
}

// OptimizeProcState runs the state optimization with no logging.
func OptimizeProcState(proc *ir.Proc) (bool, error) {
	p := &ProcStateOptimization{Logger: logr.Discard()}
	return p.Run(proc)
}
