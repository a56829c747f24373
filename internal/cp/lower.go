package cp

import "fmt"

// LinearizeOr rewrites target == OR(args) over booleans as linear rows:
// target >= arg for every arg, and target <= Σ args.
func LinearizeOr(c MaxEquality) []Linear {
	rows := make([]Linear, 0, len(c.Args)+1)
	for i, a := range c.Args {
		rows = append(rows, Linear{
			Name: fmt.Sprintf("%s/ge%d", c.Name, i),
			Expr: LinearExpr{Terms: []Term{{Var: a, Coef: 1}, {Var: c.Target, Coef: -1}}},
			Op:   LessOrEqual,
			RHS:  0,
		})
	}
	sum := LinearExpr{Terms: []Term{{Var: c.Target, Coef: 1}}}
	for _, a := range c.Args {
		sum.Terms = append(sum.Terms, Term{Var: a, Coef: -1})
	}
	rows = append(rows, Linear{Name: c.Name + "/le", Expr: sum, Op: LessOrEqual, RHS: 0})
	return rows
}
