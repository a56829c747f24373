package cp

import (
	"bufio"
	"fmt"
	"io"
)

// WriteText writes a human-readable listing of the model: objective,
// constraints and variable bounds.
func (m *Model) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "\\ model %s: %d vars, %d constraints\n", m.name, m.NumVars(), m.NumConstraints())
	if obj, ok := m.Objective(); ok {
		fmt.Fprintf(bw, "minimize\n  obj: %s\n", m.formatExpr(obj))
	}
	fmt.Fprintln(bw, "subject to")
	for _, c := range m.linear {
		fmt.Fprintf(bw, "  %s: %s %s %d\n", c.Name, m.formatExpr(c.Expr), c.Op, c.RHS)
	}
	for _, c := range m.maxEq {
		fmt.Fprintf(bw, "  %s: %s == max(", c.Name, m.VarName(c.Target))
		for i, a := range c.Args {
			if i > 0 {
				bw.WriteString(", ")
			}
			bw.WriteString(m.VarName(a))
		}
		bw.WriteString(")\n")
	}
	fmt.Fprintln(bw, "bounds")
	for _, d := range m.vars {
		kind := "int"
		if d.isBool {
			kind = "bool"
		}
		fmt.Fprintf(bw, "  %d <= %s <= %d (%s)\n", d.lo, d.name, d.hi, kind)
	}
	fmt.Fprintln(bw, "end")
	return bw.Flush()
}

func (m *Model) formatExpr(e LinearExpr) string {
	if len(e.Terms) == 0 {
		return fmt.Sprintf("%d", e.Offset)
	}
	var out []byte
	for i, t := range e.Terms {
		switch {
		case i == 0 && t.Coef < 0:
			out = append(out, '-', ' ')
		case i > 0 && t.Coef < 0:
			out = append(out, " - "...)
		case i > 0:
			out = append(out, " + "...)
		}
		c := t.Coef
		if c < 0 {
			c = -c
		}
		if c != 1 {
			out = fmt.Appendf(out, "%d ", c)
		}
		out = append(out, m.VarName(t.Var)...)
	}
	switch {
	case e.Offset > 0:
		out = fmt.Appendf(out, " + %d", e.Offset)
	case e.Offset < 0:
		out = fmt.Appendf(out, " - %d", -e.Offset)
	}
	return string(out)
}
