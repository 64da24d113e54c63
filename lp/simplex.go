package lp

import (
	"gonum.org/v1/gonum/mat"
)

const (
	pivotTol       = 1e-9
	feasibilityTol = 1e-7
)

// tableau is the dense working state of one solve. The problem is first
// brought to standard form (all right-hand sides non-negative, slack and
// surplus columns appended, artificial columns for rows without an obvious
// basic column) and then pivoted in place.
type tableau struct {
	m, n  int // constraint rows, original variables
	ncols int // original + slack/surplus + artificial columns
	rows  [][]float64
	rhs   []float64
	basis []int
	// orig keeps an untouched copy of the standard-form matrix so the
	// optimal basis matrix can be rebuilt for dual recovery.
	orig [][]float64
	// flip marks rows whose sign was negated to make the RHS non-negative;
	// their duals must be negated back.
	flip []bool
	// artStart is the first artificial column index.
	artStart int
	cost     []float64 // phase-2 costs, one per column
}

// Solve optimizes the problem with a two-phase dense primal simplex.
// It never returns an error; inspect Solution.Status.
func (p *Problem) Solve() *Solution {
	sol := &Solution{
		Primal: make([]float64, p.nvars),
		Dual:   make([]float64, len(p.cons)),
	}

	if len(p.cons) == 0 {
		// Unconstrained: every variable sits at its lower bound of zero
		// unless it can decrease the objective without limit.
		for _, c := range p.obj {
			if c < -pivotTol {
				sol.Status = Unbounded
				return sol
			}
		}
		sol.Status = Optimal
		sol.Objective = p.offset
		return sol
	}

	t := p.buildTableau()

	limit := p.MaxIterations
	if limit == 0 {
		limit = 1000 + 50*(t.m+t.ncols)
	}

	// Phase 1: drive the artificial variables to zero.
	if t.artStart < t.ncols {
		phase1 := make([]float64, t.ncols)
		for j := t.artStart; j < t.ncols; j++ {
			phase1[j] = 1
		}
		status, iters := t.iterate(phase1, t.ncols, limit)
		limit -= iters
		if status == IterationLimit {
			sol.Status = IterationLimit
			return sol
		}
		if t.phaseObjective(phase1) > feasibilityTol {
			sol.Status = Infeasible
			return sol
		}
		t.evictArtificials()
	}

	// Phase 2: optimize the real objective over non-artificial columns.
	status, _ := t.iterate(t.cost, t.artStart, limit)
	if status != Optimal {
		sol.Status = status
		return sol
	}

	for i := 0; i < t.m; i++ {
		if t.basis[i] < t.n {
			sol.Primal[t.basis[i]] = t.rhs[i]
		}
	}
	sol.Objective = p.offset
	for v, c := range p.obj {
		sol.Objective += c * sol.Primal[v]
	}
	t.recoverDuals(sol.Dual)
	sol.Status = Optimal
	return sol
}

// buildTableau converts the problem to standard form.
func (p *Problem) buildTableau() *tableau {
	m := len(p.cons)
	n := p.nvars

	slackOf := make([]int, m)   // slack/surplus column per row, -1 if none
	needsArt := make([]bool, m) // rows that start with an artificial basis
	nslack := 0
	for i, c := range p.cons {
		rel := c.rel
		if c.rhs < 0 {
			// Negating the row flips the relation.
			switch rel {
			case LessEq:
				rel = GreaterEq
			case GreaterEq:
				rel = LessEq
			}
		}
		switch rel {
		case LessEq:
			slackOf[i] = n + nslack
			nslack++
		case GreaterEq:
			slackOf[i] = n + nslack
			nslack++
			needsArt[i] = true
		case Equal:
			slackOf[i] = -1
			needsArt[i] = true
		}
	}

	nart := 0
	for _, b := range needsArt {
		if b {
			nart++
		}
	}
	ncols := n + nslack + nart

	t := &tableau{
		m:        m,
		n:        n,
		ncols:    ncols,
		rows:     make([][]float64, m),
		rhs:      make([]float64, m),
		basis:    make([]int, m),
		orig:     make([][]float64, m),
		flip:     make([]bool, m),
		artStart: n + nslack,
		cost:     make([]float64, ncols),
	}
	for v, c := range p.obj {
		t.cost[v] = c
	}

	art := t.artStart
	for i, c := range p.cons {
		row := make([]float64, ncols)
		sign := 1.0
		rel := c.rel
		if c.rhs < 0 {
			sign = -1
			t.flip[i] = true
			switch rel {
			case LessEq:
				rel = GreaterEq
			case GreaterEq:
				rel = LessEq
			}
		}
		for v, coeff := range c.terms {
			row[v] = sign * coeff
		}
		t.rhs[i] = sign * c.rhs
		switch rel {
		case LessEq:
			row[slackOf[i]] = 1
			t.basis[i] = slackOf[i]
		case GreaterEq:
			row[slackOf[i]] = -1
		}
		if needsArt[i] {
			row[art] = 1
			t.basis[i] = art
			art++
		}
		t.rows[i] = row
		t.orig[i] = append([]float64(nil), row...)
	}
	return t
}

// iterate runs simplex pivots with Bland's rule until no entering column
// improves the given cost vector. Columns at or beyond colLimit are barred
// from entering. Returns the final status and the number of pivots taken.
func (t *tableau) iterate(cost []float64, colLimit, maxIters int) (Status, int) {
	cb := make([]float64, t.m)
	for iters := 0; ; iters++ {
		if iters >= maxIters {
			return IterationLimit, iters
		}
		for i := 0; i < t.m; i++ {
			cb[i] = cost[t.basis[i]]
		}

		// Entering column: smallest index with negative reduced cost.
		enter := -1
		for j := 0; j < colLimit; j++ {
			rc := cost[j]
			for i := 0; i < t.m; i++ {
				if cb[i] != 0 {
					rc -= cb[i] * t.rows[i][j]
				}
			}
			if rc < -pivotTol {
				enter = j
				break
			}
		}
		if enter < 0 {
			return Optimal, iters
		}

		// Leaving row: minimum ratio, ties broken by smallest basis index.
		leave := -1
		best := 0.0
		for i := 0; i < t.m; i++ {
			a := t.rows[i][enter]
			if a <= pivotTol {
				continue
			}
			ratio := t.rhs[i] / a
			if leave < 0 || ratio < best-pivotTol ||
				(ratio < best+pivotTol && t.basis[i] < t.basis[leave]) {
				leave = i
				best = ratio
			}
		}
		if leave < 0 {
			return Unbounded, iters
		}
		t.pivot(leave, enter)
	}
}

func (t *tableau) pivot(r, c int) {
	piv := t.rows[r][c]
	for j := 0; j < t.ncols; j++ {
		t.rows[r][j] /= piv
	}
	t.rhs[r] /= piv
	for i := 0; i < t.m; i++ {
		if i == r {
			continue
		}
		f := t.rows[i][c]
		if f == 0 {
			continue
		}
		for j := 0; j < t.ncols; j++ {
			t.rows[i][j] -= f * t.rows[r][j]
		}
		t.rhs[i] -= f * t.rhs[r]
	}
	t.basis[r] = c
}

// phaseObjective evaluates a cost vector at the current basic solution.
func (t *tableau) phaseObjective(cost []float64) float64 {
	v := 0.0
	for i := 0; i < t.m; i++ {
		v += cost[t.basis[i]] * t.rhs[i]
	}
	return v
}

// evictArtificials pivots basic artificial variables out of the basis where
// a non-artificial column is available. Rows where none is available are
// redundant and keep their artificial basic at value zero.
func (t *tableau) evictArtificials() {
	for i := 0; i < t.m; i++ {
		if t.basis[i] < t.artStart {
			continue
		}
		for j := 0; j < t.artStart; j++ {
			if t.rows[i][j] > pivotTol || t.rows[i][j] < -pivotTol {
				t.pivot(i, j)
				break
			}
		}
	}
}

// recoverDuals solves Bᵀy = c_B for the optimal basis B and writes one dual
// per original constraint, restoring the sign of rows that were negated
// during standard-form conversion. If the basis matrix is singular (which
// can only happen through redundant rows) the affected duals are left zero.
func (t *tableau) recoverDuals(dual []float64) {
	if t.m == 0 {
		return
	}
	b := mat.NewDense(t.m, t.m, nil)
	cb := mat.NewVecDense(t.m, nil)
	for k := 0; k < t.m; k++ {
		for i := 0; i < t.m; i++ {
			b.Set(i, k, t.orig[i][t.basis[k]])
		}
		cb.SetVec(k, t.cost[t.basis[k]])
	}
	var y mat.VecDense
	if err := y.SolveVec(b.T(), cb); err != nil {
		return
	}
	for i := 0; i < t.m; i++ {
		d := y.AtVec(i)
		if t.flip[i] {
			d = -d
		}
		dual[i] = d
	}
}
