package passes

import (
	"fmt"

	"github.com/go-logr/logr"

	"rtlgen/internal/ir"
)

// DeadCodeElimination removes nodes that have no users, are not
// side-effecting, and are not referenced from a terminal position.
// Parameters and state reads are always kept. Removing one node may expose
// its operands; the sweep runs until nothing changes.
type DeadCodeElimination struct {
	Logger logr.Logger
}

func (p *DeadCodeElimination) Name() string { return "dce" }

// Run sweeps fb and reports whether any node was removed.
func (p *DeadCodeElimination) Run(fb *ir.FunctionBase) (bool, error) {
	changed := false
	for {
		var dead []*ir.Node
		for _, n := range fb.Nodes() {
			if n.HasUsers() || n.Op().SideEffecting() || fb.IsTerminal(n) {
				continue
			}
			if n.Op() == ir.OpParam || n.Op() == ir.OpStateRead {
				continue
			}
			dead = append(dead, n)
		}
		if len(dead) == 0 {
			return changed, nil
		}
		for _, n := range dead {
			p.Logger.V(2).Info("removing dead node", "node", n.String())
			if err := fb.RemoveNode(n); err != nil {
				return changed, fmt.Errorf("dce: %w", err)
			}
			changed = true
		}
	}
}

// RunDCE is a convenience wrapper running the sweep with no logging.
func RunDCE(fb *ir.FunctionBase) (bool, error) {
	p := &DeadCodeElimination{Logger: logr.Discard()}
	return p.Run(fb)
}
