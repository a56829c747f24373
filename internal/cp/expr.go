package cp

// Term is Coef·Var.
type Term struct {
	Var  Var
	Coef int64
}

// LinearExpr is Σ Terms + Offset. The builder methods mutate the receiver and
// return it so calls can be chained.
type LinearExpr struct {
	Terms  []Term
	Offset int64
}

// Values reads solved variable values.
type Values interface {
	Value(v Var) int64
}

func NewLinearExpr() *LinearExpr { return &LinearExpr{} }

// Add appends 1·v.
func (e *LinearExpr) Add(v Var) *LinearExpr { return e.AddTerm(v, 1) }

// AddTerm appends coef·v. Zero coefficients are dropped.
func (e *LinearExpr) AddTerm(v Var, coef int64) *LinearExpr {
	if coef != 0 {
		e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
	}
	return e
}

// AddSum appends 1·v for every v.
func (e *LinearExpr) AddSum(vs ...Var) *LinearExpr {
	for _, v := range vs {
		e.AddTerm(v, 1)
	}
	return e
}

// AddWeightedSum appends coefs[i]·vs[i]. Both slices must have the same length.
func (e *LinearExpr) AddWeightedSum(vs []Var, coefs []int64) *LinearExpr {
	if len(vs) != len(coefs) {
		panic("cp: AddWeightedSum length mismatch")
	}
	for i, v := range vs {
		e.AddTerm(v, coefs[i])
	}
	return e
}

func (e *LinearExpr) AddConstant(c int64) *LinearExpr {
	e.Offset += c
	return e
}

// Eval evaluates the expression against solved values.
func (e LinearExpr) Eval(vals Values) int64 {
	s := e.Offset
	for _, t := range e.Terms {
		s += t.Coef * vals.Value(t.Var)
	}
	return s
}

func (e *LinearExpr) clone() LinearExpr {
	if e == nil {
		return LinearExpr{}
	}
	return LinearExpr{Terms: append([]Term(nil), e.Terms...), Offset: e.Offset}
}
