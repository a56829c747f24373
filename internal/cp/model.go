// Package cp declares integer constraint models: bounded integer and boolean
// variables, linear constraints with integer coefficients, boolean OR
// (maximum) constraints and a single linear minimization objective.
//
// A Model is only a declaration. Solving is delegated to a Solver backend,
// which returns a Response holding a status and, when a solution exists, one
// value per declared variable.
package cp

import (
	"errors"
	"fmt"
)

// MaxBound caps the magnitude of variable bounds and coefficients so that
// backends can evaluate row activities in int64 without overflow.
const MaxBound int64 = 1 << 30

// ErrInvalidModel is wrapped by every Model.Validate failure.
var ErrInvalidModel = errors.New("cp: invalid model")

// Var is a handle to a decision variable. Handles are dense indices and are
// only meaningful for the Model that created them.
type Var int32

// Index returns the dense position of v in its model.
func (v Var) Index() int { return int(v) }

// Op is the comparison of a linear constraint.
type Op int8

const (
	LessOrEqual Op = iota
	GreaterOrEqual
	Equal
)

func (o Op) String() string {
	switch o {
	case LessOrEqual:
		return "<="
	case GreaterOrEqual:
		return ">="
	case Equal:
		return "=="
	}
	return fmt.Sprintf("Op(%d)", int8(o))
}

// Linear is the constraint Expr Op RHS. Expr.Offset is part of the left side.
type Linear struct {
	Name string
	Expr LinearExpr
	Op   Op
	RHS  int64
}

// MaxEquality is the constraint Target == max(Args). All variables are
// boolean, which makes it the logical OR of Args.
type MaxEquality struct {
	Name   string
	Target Var
	Args   []Var
}

type varDecl struct {
	name   string
	lo, hi int64
	isBool bool
}

// Model is a constraint model under construction. It is not safe for
// concurrent mutation; backends only read it.
type Model struct {
	name      string
	vars      []varDecl
	linear    []Linear
	maxEq     []MaxEquality
	objective *LinearExpr
	hints     map[Var]int64
}

// NewModel returns an empty model.
func NewModel(name string) *Model {
	return &Model{name: name, hints: map[Var]int64{}}
}

func (m *Model) Name() string { return m.name }

// NewBoolVar declares a 0/1 variable.
func (m *Model) NewBoolVar(name string) Var {
	m.vars = append(m.vars, varDecl{name: name, lo: 0, hi: 1, isBool: true})
	return Var(len(m.vars) - 1)
}

// NewIntVar declares an integer variable with domain [lo, hi].
// Inverted or oversized bounds are reported by Validate.
func (m *Model) NewIntVar(lo, hi int64, name string) Var {
	m.vars = append(m.vars, varDecl{name: name, lo: lo, hi: hi})
	return Var(len(m.vars) - 1)
}

func (m *Model) NumVars() int { return len(m.vars) }

// NumConstraints counts linear and OR constraints.
func (m *Model) NumConstraints() int { return len(m.linear) + len(m.maxEq) }

// VarName returns the debugging name of v.
func (m *Model) VarName(v Var) string {
	if !m.has(v) {
		return fmt.Sprintf("var#%d", v)
	}
	return m.vars[v].name
}

// Domain returns the declared bounds of v.
func (m *Model) Domain(v Var) (lo, hi int64) {
	d := m.vars[v]
	return d.lo, d.hi
}

func (m *Model) IsBool(v Var) bool { return m.has(v) && m.vars[v].isBool }

func (m *Model) has(v Var) bool { return v >= 0 && int(v) < len(m.vars) }

// AddLinear adds expr op rhs. The expression is copied.
func (m *Model) AddLinear(name string, expr *LinearExpr, op Op, rhs int64) {
	m.linear = append(m.linear, Linear{Name: name, Expr: expr.clone(), Op: op, RHS: rhs})
}

func (m *Model) AddLessOrEqual(name string, expr *LinearExpr, rhs int64) {
	m.AddLinear(name, expr, LessOrEqual, rhs)
}

func (m *Model) AddGreaterOrEqual(name string, expr *LinearExpr, rhs int64) {
	m.AddLinear(name, expr, GreaterOrEqual, rhs)
}

func (m *Model) AddEquality(name string, expr *LinearExpr, rhs int64) {
	m.AddLinear(name, expr, Equal, rhs)
}

// AddMaxEquality adds target == max(args), i.e. target is the OR of args.
func (m *Model) AddMaxEquality(name string, target Var, args ...Var) {
	m.maxEq = append(m.maxEq, MaxEquality{Name: name, Target: target, Args: append([]Var(nil), args...)})
}

// Minimize sets the objective, replacing any previous one.
func (m *Model) Minimize(expr *LinearExpr) {
	e := expr.clone()
	m.objective = &e
}

// Objective returns the objective and whether one was set.
func (m *Model) Objective() (LinearExpr, bool) {
	if m.objective == nil {
		return LinearExpr{}, false
	}
	return *m.objective, true
}

// SetHint suggests a value for v. Backends may use hints to order their
// search; a hint never constrains the model.
func (m *Model) SetHint(v Var, value int64) { m.hints[v] = value }

// Hint returns the hinted value of v, if any.
func (m *Model) Hint(v Var) (int64, bool) {
	val, ok := m.hints[v]
	return val, ok
}

func (m *Model) NumHints() int { return len(m.hints) }

func (m *Model) Linear() []Linear { return m.linear }

func (m *Model) MaxEqualities() []MaxEquality { return m.maxEq }

// Validate checks every declaration and returns an error wrapping
// ErrInvalidModel on the first problem found.
func (m *Model) Validate() error {
	for i, d := range m.vars {
		if d.lo > d.hi {
			return fmt.Errorf("%w: variable %q has empty domain [%d, %d]", ErrInvalidModel, d.name, d.lo, d.hi)
		}
		if d.lo < -MaxBound || d.hi > MaxBound {
			return fmt.Errorf("%w: variable %q (#%d) bounds exceed ±%d", ErrInvalidModel, d.name, i, MaxBound)
		}
	}
	for _, c := range m.linear {
		if err := m.validateExpr(c.Expr); err != nil {
			return fmt.Errorf("%w: constraint %q: %v", ErrInvalidModel, c.Name, err)
		}
		if c.RHS < -MaxBound || c.RHS > MaxBound {
			return fmt.Errorf("%w: constraint %q: right-hand side %d out of range", ErrInvalidModel, c.Name, c.RHS)
		}
		if c.Op != LessOrEqual && c.Op != GreaterOrEqual && c.Op != Equal {
			return fmt.Errorf("%w: constraint %q: unknown comparison %v", ErrInvalidModel, c.Name, c.Op)
		}
	}
	for _, c := range m.maxEq {
		if len(c.Args) == 0 {
			return fmt.Errorf("%w: OR constraint %q has no arguments", ErrInvalidModel, c.Name)
		}
		if !m.IsBool(c.Target) {
			return fmt.Errorf("%w: OR constraint %q: target %s is not boolean", ErrInvalidModel, c.Name, m.VarName(c.Target))
		}
		for _, a := range c.Args {
			if !m.IsBool(a) {
				return fmt.Errorf("%w: OR constraint %q: argument %s is not boolean", ErrInvalidModel, c.Name, m.VarName(a))
			}
		}
	}
	if m.objective != nil {
		if err := m.validateExpr(*m.objective); err != nil {
			return fmt.Errorf("%w: objective: %v", ErrInvalidModel, err)
		}
	}
	for v, val := range m.hints {
		if !m.has(v) {
			return fmt.Errorf("%w: hint on unknown variable #%d", ErrInvalidModel, v)
		}
		if lo, hi := m.Domain(v); val < lo || val > hi {
			return fmt.Errorf("%w: hint %s=%d outside [%d, %d]", ErrInvalidModel, m.VarName(v), val, lo, hi)
		}
	}
	return nil
}

func (m *Model) validateExpr(e LinearExpr) error {
	if e.Offset < -MaxBound || e.Offset > MaxBound {
		return fmt.Errorf("offset %d out of range", e.Offset)
	}
	for _, t := range e.Terms {
		if !m.has(t.Var) {
			return fmt.Errorf("unknown variable #%d", t.Var)
		}
		if t.Coef < -MaxBound || t.Coef > MaxBound {
			return fmt.Errorf("coefficient %d on %s out of range", t.Coef, m.VarName(t.Var))
		}
	}
	return nil
}
