package cp

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedValues map[Var]int64

func (f fixedValues) Value(v Var) int64 { return f[v] }

func TestModelDeclarations(t *testing.T) {
	m := NewModel("decl")
	x := m.NewBoolVar("x")
	y := m.NewIntVar(-3, 7, "y")

	require.Equal(t, 2, m.NumVars())
	assert.True(t, m.IsBool(x))
	assert.False(t, m.IsBool(y))
	lo, hi := m.Domain(y)
	assert.Equal(t, int64(-3), lo)
	assert.Equal(t, int64(7), hi)
	assert.Equal(t, "y", m.VarName(y))
	assert.Equal(t, "var#9", m.VarName(Var(9)))

	m.AddLessOrEqual("c", NewLinearExpr().Add(x).AddTerm(y, 2), 5)
	m.AddMaxEquality("or", x, x)
	assert.Equal(t, 2, m.NumConstraints())
	require.NoError(t, m.Validate())
}

func TestLinearExprCopiedOnAdd(t *testing.T) {
	m := NewModel("copy")
	x := m.NewBoolVar("x")
	e := NewLinearExpr().Add(x)
	m.AddEquality("eq", e, 1)
	e.AddTerm(x, 5)

	require.Len(t, m.Linear()[0].Expr.Terms, 1)
}

func TestLinearExprEval(t *testing.T) {
	m := NewModel("eval")
	x := m.NewIntVar(0, 10, "x")
	y := m.NewIntVar(0, 10, "y")
	e := NewLinearExpr().AddWeightedSum([]Var{x, y}, []int64{3, -2}).AddConstant(4).AddTerm(x, 0)

	assert.Len(t, e.Terms, 2)
	assert.Equal(t, int64(3*5-2*2+4), e.Eval(fixedValues{x: 5, y: 2}))
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(m *Model){
		"empty domain": func(m *Model) { m.NewIntVar(3, 1, "bad") },
		"huge bound":   func(m *Model) { m.NewIntVar(0, MaxBound+1, "big") },
		"unknown var": func(m *Model) {
			m.AddLessOrEqual("c", NewLinearExpr().Add(Var(42)), 1)
		},
		"empty or": func(m *Model) {
			m.AddMaxEquality("or", m.NewBoolVar("t"))
		},
		"int or": func(m *Model) {
			t := m.NewBoolVar("t")
			m.AddMaxEquality("or", t, m.NewIntVar(0, 3, "i"))
		},
		"hint outside": func(m *Model) {
			m.SetHint(m.NewBoolVar("b"), 2)
		},
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			m := NewModel(name)
			build(m)
			require.ErrorIs(t, m.Validate(), ErrInvalidModel)
		})
	}
}

func TestLinearizeOr(t *testing.T) {
	m := NewModel("or")
	target := m.NewBoolVar("t")
	a := m.NewBoolVar("a")
	b := m.NewBoolVar("b")
	rows := LinearizeOr(MaxEquality{Name: "or", Target: target, Args: []Var{a, b}})
	require.Len(t, rows, 3)

	satisfied := func(vals fixedValues) bool {
		for _, r := range rows {
			if r.Expr.Eval(vals) > r.RHS {
				return false
			}
		}
		return true
	}
	for av := int64(0); av <= 1; av++ {
		for bv := int64(0); bv <= 1; bv++ {
			want := max(av, bv)
			assert.True(t, satisfied(fixedValues{target: want, a: av, b: bv}))
			assert.False(t, satisfied(fixedValues{target: 1 - want, a: av, b: bv}))
		}
	}
}

func TestStatusText(t *testing.T) {
	for _, s := range []Status{Unknown, Optimal, Feasible, Infeasible} {
		raw, err := json.Marshal(s)
		require.NoError(t, err)
		var back Status
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, s, back)
	}
	_, err := ParseStatus("maybe")
	assert.Error(t, err)
	assert.True(t, Feasible.HasSolution())
	assert.False(t, Unknown.HasSolution())
}

func TestResponseValueRequiresSolution(t *testing.T) {
	r := NewResponse(Infeasible, 0, []int64{1})
	assert.Panics(t, func() { r.Value(0) })

	r = NewResponse(Optimal, 3, []int64{0, 1})
	assert.True(t, r.BoolValue(1))
}

func TestParamsDefaults(t *testing.T) {
	p := Params{}.WithDefaults()
	assert.Equal(t, DefaultTimeLimit, p.TimeLimit)
	assert.Equal(t, DefaultWorkers, p.Workers)
}

func TestWriteText(t *testing.T) {
	m := NewModel("dump")
	x := m.NewBoolVar("x_0_1_v0")
	y := m.NewIntVar(0, 9, "arr_1")
	m.AddLessOrEqual("prop", NewLinearExpr().AddTerm(y, -1).AddTerm(x, 9).AddConstant(2), 9)
	m.AddMaxEquality("visit", x, x)
	m.Minimize(NewLinearExpr().AddTerm(x, 10))

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, "obj: 10 x_0_1_v0")
	assert.Contains(t, out, "prop: - arr_1 + 9 x_0_1_v0 + 2 <= 9")
	assert.Contains(t, out, "visit: x_0_1_v0 == max(x_0_1_v0)")
	assert.Contains(t, out, "0 <= arr_1 <= 9 (int)")
}
