package sched

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// VarID identifies a variable in an LPSolver.
type VarID int

// Term is one coefficient of a linear row.
type Term struct {
	Var  VarID
	Coef float64
}

// LPSolver is the minimal linear-programming surface the scheduler needs.
// Implementations minimize the objective subject to variable bounds and
// two-sided linear rows. Use math.Inf for unbounded sides.
type LPSolver interface {
	AddVariable(name string, lower, upper float64) VarID
	AddRow(name string, lower float64, terms []Term, upper float64)
	AddObjective(v VarID, coef float64)
	Solve() error
	Value(v VarID) float64
}

// NewGonumSolver returns the default LPSolver backed by the gonum simplex.
func NewGonumSolver() LPSolver { return &gonumSolver{} }

type lpVariable struct {
	name         string
	lower, upper float64
	objective    float64
}

type lpRow struct {
	name         string
	lower, upper float64
	terms        []Term
}

// gonumSolver accumulates the problem and converts it to the standard form
// min c'x s.t. Ax = b, x >= 0 that lp.Simplex consumes. Every variable is
// shifted by its finite lower bound, or split into a positive and a negative
// part when unbounded below; finite upper bounds and row bounds become slack
// rows.
type gonumSolver struct {
	vars     []lpVariable
	rows     []lpRow
	solution []float64
}

func (s *gonumSolver) AddVariable(name string, lower, upper float64) VarID {
	s.vars = append(s.vars, lpVariable{name: name, lower: lower, upper: upper})
	return VarID(len(s.vars) - 1)
}

func (s *gonumSolver) AddRow(name string, lower float64, terms []Term, upper float64) {
	s.rows = append(s.rows, lpRow{name: name, lower: lower, upper: upper, terms: append([]Term(nil), terms...)})
}

func (s *gonumSolver) AddObjective(v VarID, coef float64) {
	s.vars[v].objective += coef
}

func (s *gonumSolver) Value(v VarID) float64 { return s.solution[v] }

func (s *gonumSolver) Solve() error {
	// Standard-form columns: one per bounded-below variable (shifted), two
	// per free variable (positive and negative parts).
	type varCols struct {
		pos, neg int
		shift    float64
	}
	cols := make([]varCols, len(s.vars))
	ncols := 0
	for i, v := range s.vars {
		if math.IsInf(v.lower, -1) {
			cols[i] = varCols{pos: ncols, neg: ncols + 1}
			ncols += 2
		} else {
			cols[i] = varCols{pos: ncols, neg: -1, shift: v.lower}
			ncols++
		}
	}

	// Each equality row of the standard form is a (coefficients, rhs) pair.
	type eqRow struct {
		coefs map[int]float64
		rhs   float64
	}
	var eqs []eqRow

	addIneq := func(terms []Term, bound float64, upper bool) {
		// Sum of terms <= bound (upper) or >= bound (lower), rewritten over
		// the shifted columns with one fresh slack column.
		coefs := map[int]float64{}
		rhs := bound
		for _, t := range terms {
			c := cols[t.Var]
			coefs[c.pos] += t.Coef
			if c.neg >= 0 {
				coefs[c.neg] -= t.Coef
			}
			rhs -= t.Coef * c.shift
		}
		slack := ncols
		ncols++
		if upper {
			coefs[slack] = 1
		} else {
			coefs[slack] = -1
		}
		eqs = append(eqs, eqRow{coefs: coefs, rhs: rhs})
	}

	// Finite lower bounds are absorbed by the column shift; only finite
	// upper bounds need rows.
	one := func(v VarID) []Term { return []Term{{Var: v, Coef: 1}} }
	for i, v := range s.vars {
		if !math.IsInf(v.upper, 1) {
			addIneq(one(VarID(i)), v.upper, true)
		}
	}
	for _, r := range s.rows {
		if !math.IsInf(r.upper, 1) {
			addIneq(r.terms, r.upper, true)
		}
		if !math.IsInf(r.lower, -1) {
			addIneq(r.terms, r.lower, false)
		}
	}

	c := make([]float64, ncols)
	for i, v := range s.vars {
		c[cols[i].pos] += v.objective
		if cols[i].neg >= 0 {
			c[cols[i].neg] -= v.objective
		}
	}

	a := mat.NewDense(len(eqs), ncols, nil)
	b := make([]float64, len(eqs))
	for r, eq := range eqs {
		for col, coef := range eq.coefs {
			a.Set(r, col, coef)
		}
		b[r] = eq.rhs
	}

	_, x, err := lp.Simplex(c, a, b, 1e-10, nil)
	if err != nil {
		switch err {
		case lp.ErrInfeasible, lp.ErrUnbounded:
			return fmt.Errorf("%w: %v", ErrInfeasible, err)
		}
		return fmt.Errorf("%w: %v", ErrSolverUnavailable, err)
	}

	s.solution = make([]float64, len(s.vars))
	for i := range s.vars {
		v := x[cols[i].pos] + cols[i].shift
		if cols[i].neg >= 0 {
			v -= x[cols[i].neg]
		}
		s.solution[i] = v
	}
	return nil
}
