package lp

// Var identifies a decision variable within a Problem.
type Var int

// Con identifies a constraint within a Problem.
type Con int

// Relation is the comparison operator of a constraint.
type Relation int

const (
	// LessEq constrains the linear expression to be <= the right-hand side.
	LessEq Relation = iota
	// GreaterEq constrains the linear expression to be >= the right-hand side.
	GreaterEq
	// Equal constrains the linear expression to be == the right-hand side.
	Equal
)

func (r Relation) String() string {
	switch r {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	case Equal:
		return "=="
	}
	return "?"
}

// Status is the outcome of a solve.
type Status int

const (
	// Optimal means an optimal basic feasible solution was found.
	Optimal Status = iota
	// Infeasible means no point satisfies all constraints.
	Infeasible
	// Unbounded means the objective can decrease without limit.
	Unbounded
	// IterationLimit means the solver gave up before converging.
	IterationLimit
	// NotSolved means no solve has been attempted, or its result was
	// invalidated by a later modification.
	NotSolved
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	case IterationLimit:
		return "iteration limit"
	case NotSolved:
		return "not solved"
	}
	return "unknown"
}

// Solution holds the result of a solve. Primal and Dual are indexed by Var
// and Con respectively and are meaningful only when Status is Optimal.
// Dual values follow the dObjective/dRHS convention: the marginal change of
// the optimal objective per unit increase of the constraint's right-hand
// side.
type Solution struct {
	Status    Status
	Objective float64
	Primal    []float64
	Dual      []float64
}

type constraint struct {
	terms map[Var]float64
	rel   Relation
	rhs   float64
}

// Problem is a mutable linear program over non-negative continuous
// variables. The zero value is not usable; construct with NewProblem.
type Problem struct {
	nvars  int
	obj    map[Var]float64
	offset float64
	cons   []constraint

	// MaxIterations caps the total simplex pivots across both phases.
	// Zero selects a size-dependent default.
	MaxIterations int
}

// NewProblem returns an empty problem.
func NewProblem() *Problem {
	return &Problem{obj: make(map[Var]float64)}
}

// AddVariable adds one non-negative continuous variable and returns its id.
func (p *Problem) AddVariable() Var {
	v := Var(p.nvars)
	p.nvars++
	return v
}

// AddVariables adds n variables and returns their ids in order.
func (p *Problem) AddVariables(n int) []Var {
	vars := make([]Var, n)
	for i := range vars {
		vars[i] = p.AddVariable()
	}
	return vars
}

// NumVariables returns the number of variables added so far.
func (p *Problem) NumVariables() int { return p.nvars }

// NumConstraints returns the number of constraints added so far.
func (p *Problem) NumConstraints() int { return len(p.cons) }

// AddObjective accumulates coeff onto the objective coefficient of v.
func (p *Problem) AddObjective(v Var, coeff float64) {
	p.obj[v] += coeff
}

// SetObjective overwrites the objective coefficient of v.
func (p *Problem) SetObjective(v Var, coeff float64) {
	p.obj[v] = coeff
}

// AddOffset accumulates a constant term onto the objective.
func (p *Problem) AddOffset(c float64) {
	p.offset += c
}

// AddConstraint adds the constraint sum(terms) rel rhs and returns its id.
// The terms map is copied; the caller may reuse it.
func (p *Problem) AddConstraint(terms map[Var]float64, rel Relation, rhs float64) Con {
	copied := make(map[Var]float64, len(terms))
	for v, c := range terms {
		copied[v] = c
	}
	p.cons = append(p.cons, constraint{terms: copied, rel: rel, rhs: rhs})
	return Con(len(p.cons) - 1)
}

// SetRHS overwrites the right-hand side of constraint c.
func (p *Problem) SetRHS(c Con, rhs float64) {
	p.cons[c].rhs = rhs
}

// RHS returns the current right-hand side of constraint c.
func (p *Problem) RHS(c Con) float64 {
	return p.cons[c].rhs
}

// SetCoeff overwrites the coefficient of variable v in constraint c.
// A zero coefficient removes the term.
func (p *Problem) SetCoeff(c Con, v Var, coeff float64) {
	if coeff == 0 {
		delete(p.cons[c].terms, v)
		return
	}
	p.cons[c].terms[v] = coeff
}
