// Package lp provides a small linear-programming problem builder and solver.
//
// A Problem is an arena of non-negative continuous variables, a list of
// sparse linear constraints and a sparse linear objective. The builder is
// mutable: constraint coefficients, right-hand sides and objective
// coefficients can be rewritten between solves, which allows a caller to
// rebind numeric parameters without reconstructing the problem.
//
// Basic usage:
//
//	p := lp.NewProblem()
//	x := p.AddVariable()
//	y := p.AddVariable()
//	p.AddObjective(x, -1)
//	p.AddObjective(y, -2)
//	p.AddConstraint(map[lp.Var]float64{x: 1, y: 1}, lp.LessEq, 10)
//
//	sol := p.Solve()
//	if sol.Status != lp.Optimal {
//		// handle infeasible/unbounded
//	}
//	fmt.Println(sol.Objective, sol.Primal[x], sol.Dual[0])
//
// Solve runs a two-phase dense primal simplex with Bland's rule. After an
// optimal solve, Solution.Dual holds one value per constraint with the
// convention dObjective/dRHS: the marginal change of the optimal objective
// per unit increase of that constraint's right-hand side.
package lp
