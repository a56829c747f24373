package search

import (
	"crewroute/internal/cp"
)

type term struct {
	v int32
	a int64
}

// row is Σ a·x <= rhs.
type row struct {
	name  string
	terms []term
	rhs   int64
}

// orCon is target == max(args).
type orCon struct {
	name   string
	target int32
	args   []int32
}

// program is the read-only compiled form of a cp.Model, shared by all
// workers of one solve.
type program struct {
	lo, hi []int64
	isBool []bool
	hint   []int64
	hinted []bool

	rows []row
	ors  []orCon

	// objRow indexes the objective row in rows, or -1 without objective.
	objRow    int
	objOffset int64

	// watch lists hold constraint ids: rows first, then ors offset by len(rows).
	watch [][]int32
	order []int32
}

func (p *program) numConstraints() int { return len(p.rows) + len(p.ors) }

func compile(m *cp.Model, linearizeOr bool) *program {
	n := m.NumVars()
	p := &program{
		lo:     make([]int64, n),
		hi:     make([]int64, n),
		isBool: make([]bool, n),
		hint:   make([]int64, n),
		hinted: make([]bool, n),
		objRow: -1,
		watch:  make([][]int32, n),
	}
	for i := 0; i < n; i++ {
		v := cp.Var(i)
		p.lo[i], p.hi[i] = m.Domain(v)
		p.isBool[i] = m.IsBool(v)
		p.hint[i], p.hinted[i] = m.Hint(v)
	}

	for _, c := range m.Linear() {
		p.addLinear(c)
	}
	if linearizeOr {
		for _, c := range m.MaxEqualities() {
			for _, l := range cp.LinearizeOr(c) {
				p.addLinear(l)
			}
		}
	}
	if obj, ok := m.Objective(); ok {
		p.objRow = len(p.rows)
		p.objOffset = obj.Offset
		p.rows = append(p.rows, row{name: "objective", terms: merge(obj.Terms, 1)})
	}
	if !linearizeOr {
		for _, c := range m.MaxEqualities() {
			oc := orCon{name: c.Name, target: int32(c.Target)}
			for _, a := range c.Args {
				oc.args = append(oc.args, int32(a))
			}
			p.ors = append(p.ors, oc)
		}
	}

	for ri, r := range p.rows {
		for _, t := range r.terms {
			p.watch[t.v] = append(p.watch[t.v], int32(ri))
		}
	}
	base := len(p.rows)
	for oi, c := range p.ors {
		id := int32(base + oi)
		p.watch[c.target] = append(p.watch[c.target], id)
		for _, a := range c.args {
			p.watch[a] = append(p.watch[a], id)
		}
	}

	// Booleans carry the structure; integers are mostly fixed by propagation
	// once the booleans are decided.
	for i := 0; i < n; i++ {
		if p.isBool[i] {
			p.order = append(p.order, int32(i))
		}
	}
	for i := 0; i < n; i++ {
		if !p.isBool[i] {
			p.order = append(p.order, int32(i))
		}
	}
	return p
}

func (p *program) addLinear(c cp.Linear) {
	rhs := c.RHS - c.Expr.Offset
	switch c.Op {
	case cp.LessOrEqual:
		p.rows = append(p.rows, row{name: c.Name, terms: merge(c.Expr.Terms, 1), rhs: rhs})
	case cp.GreaterOrEqual:
		p.rows = append(p.rows, row{name: c.Name, terms: merge(c.Expr.Terms, -1), rhs: -rhs})
	case cp.Equal:
		p.rows = append(p.rows,
			row{name: c.Name, terms: merge(c.Expr.Terms, 1), rhs: rhs},
			row{name: c.Name, terms: merge(c.Expr.Terms, -1), rhs: -rhs},
		)
	}
}

// merge sums duplicate variables, drops zero coefficients and scales by sign.
func merge(terms []cp.Term, sign int64) []term {
	pos := make(map[int32]int, len(terms))
	out := make([]term, 0, len(terms))
	for _, t := range terms {
		v := int32(t.Var)
		if i, ok := pos[v]; ok {
			out[i].a += sign * t.Coef
			continue
		}
		pos[v] = len(out)
		out = append(out, term{v: v, a: sign * t.Coef})
	}
	kept := out[:0]
	for _, t := range out {
		if t.a != 0 {
			kept = append(kept, t)
		}
	}
	return kept
}
