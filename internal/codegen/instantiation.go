package codegen

import (
	"fmt"

	"github.com/go-logr/logr"

	"rtlgen/internal/ir"
	"rtlgen/internal/passes"
)

// InvocationToInstantiation replaces every invoke in a block with an
// instantiation of the callee's block, wiring operands to the callee's input
// ports positionally and rewiring users to its single output port. The dead
// invoke nodes are swept afterwards.
type InvocationToInstantiation struct {
	Logger logr.Logger
}

func (p *InvocationToInstantiation) Name() string { return "invocation_to_instantiation" }

// Run rewrites block and reports whether anything changed. The callee block
// is looked up in the package by the callee function's name, so callees must
// be converted before their callers.
func (p *InvocationToInstantiation) Run(block *ir.Block) (bool, error) {
	var invokes []*ir.Node
	for _, n := range block.Nodes() {
		if n.Op() == ir.OpInvoke {
			invokes = append(invokes, n)
		}
	}
	if len(invokes) == 0 {
		return false, nil
	}

	for _, n := range invokes {
		if err := p.rewrite(block, n); err != nil {
			return false, err
		}
	}
	if _, err := passes.RunDCE(&block.FunctionBase); err != nil {
		return false, err
	}
	return true, nil
}

func (p *InvocationToInstantiation) rewrite(block *ir.Block, n *ir.Node) error {
	callee := n.Callee()
	child, err := block.Package().Block(callee.Name())
	if err != nil {
		return fmt.Errorf("invoke %s: %w", n, err)
	}

	inputs := child.InputPorts()
	if len(inputs) != n.OperandCount() {
		return fmt.Errorf("invoke %s: %d operands but block %s has %d input ports: %w",
			n, n.OperandCount(), child.Name(), len(inputs), ErrArityMismatch)
	}
	for i, o := range n.Operands() {
		if o.Type() != inputs[i].Type {
			return fmt.Errorf("invoke %s: operand %d has type %s but port %q has type %s: %w",
				n, i, o.Type(), inputs[i].Name, inputs[i].Type, ErrArityMismatch)
		}
	}
	outputs := child.OutputPorts()
	if len(outputs) != 1 {
		return fmt.Errorf("invoke %s: block %s has %d output ports, want exactly 1",
			n, child.Name(), len(outputs))
	}

	inst, err := block.AddInstantiation(fmt.Sprintf("%s_inst_%d", child.Name(), n.ID()), child)
	if err != nil {
		return fmt.Errorf("invoke %s: %w", n, err)
	}
	for i, o := range n.Operands() {
		block.InstantiationInput(inst, inputs[i].Name, o)
	}
	out := block.InstantiationOutput(inst, outputs[0].Name, outputs[0].Type)
	p.Logger.V(2).Info("replacing invoke with instantiation",
		"invoke", n.String(), "instance", inst.Name(), "callee", child.Name())
	n.ReplaceUsesWith(out)
	return nil
}

// RunInvocationToInstantiation runs the pass with no logging.
func RunInvocationToInstantiation(block *ir.Block) (bool, error) {
	p := &InvocationToInstantiation{Logger: logr.Discard()}
	return p.Run(block)
}
