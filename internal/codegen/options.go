// Package codegen lowers scheduled functions and procs to blocks and emits
// them as Verilog modules with a matching signature.
package codegen

import (
	"errors"

	"github.com/go-logr/logr"

	"rtlgen/internal/sched"
)

// ErrArityMismatch marks invoke sites whose operands do not line up with the
// callee block's input ports.
var ErrArityMismatch = errors.New("instantiation arity mismatch")

// Options configures lowering and emission.
type Options struct {
	// ModuleName overrides the emitted module name. Defaults to the name of
	// the converted function or proc.
	ModuleName string

	// OutputPortName names the output port of a converted function.
	// Defaults to "out".
	OutputPortName string

	// ClockName is the clock port added when the block holds registers.
	// Defaults to "clk".
	ClockName string

	// ResetName, when nonempty, adds a reset port and reset arms to the
	// register process.
	ResetName         string
	ResetActiveLow    bool
	ResetAsynchronous bool

	UseSystemVerilog bool

	// Stages and ClockPeriodPs drive the scheduler. Stages <= 1 produces a
	// purely combinational datapath.
	Stages        int
	ClockPeriodPs int64
	Estimator     sched.DelayEstimator
	Constraints   []sched.Constraint

	// OptimizeState runs proc state optimization before scheduling.
	OptimizeState bool

	Logger logr.Logger
}

func (o Options) withDefaults(name string) Options {
	if o.ModuleName == "" {
		o.ModuleName = name
	}
	if o.OutputPortName == "" {
		o.OutputPortName = "out"
	}
	if o.ClockName == "" {
		o.ClockName = "clk"
	}
	return o
}
