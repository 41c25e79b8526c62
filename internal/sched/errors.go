package sched

import "errors"

var (
	// ErrInfeasible reports that no schedule satisfies the constraints.
	ErrInfeasible = errors.New("scheduling constraints are infeasible")

	// ErrSolverUnavailable reports that the LP backend failed for a reason
	// other than infeasibility.
	ErrSolverUnavailable = errors.New("LP solver unavailable")

	// ErrNonIntegerSolution reports that the LP relaxation produced a
	// fractional cycle assignment. The constraint matrix is a difference
	// system, so this indicates a solver defect rather than a bad input.
	ErrNonIntegerSolution = errors.New("scheduling result is not integral")
)
