package vrp

import (
	"fmt"

	"crewroute/internal/cp"
)

// addRouting declares arc, aggregated arc and visitation booleans together
// with depot degree, flow conservation and coverage.
func (f *Formulation) addRouting() {
	m := f.Model
	n, K := f.numNodes(), f.numVehicles()
	vehicles := f.Instance.Vehicles

	f.arcs = make([]cp.Var, n*n*K)
	f.agg = make([]cp.Var, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < K; k++ {
				idx := (i*n+j)*K + k
				if i == j {
					f.arcs[idx] = noVar
					continue
				}
				f.arcs[idx] = m.NewBoolVar(fmt.Sprintf("x[%s,%s,%s]", f.nodeID(i), f.nodeID(j), vehicles[k]))
			}
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				f.agg[i*n+j] = noVar
				continue
			}
			y := m.NewBoolVar(fmt.Sprintf("y[%s,%s]", f.nodeID(i), f.nodeID(j)))
			f.agg[i*n+j] = y
			args := make([]cp.Var, K)
			for k := 0; k < K; k++ {
				args[k] = f.Arc(i, j, k)
			}
			m.AddMaxEquality(fmt.Sprintf("used[%s,%s]", f.nodeID(i), f.nodeID(j)), y, args...)
		}
	}

	for k, vid := range vehicles {
		out, in := cp.NewLinearExpr(), cp.NewLinearExpr()
		for j := 1; j < n; j++ {
			out.Add(f.Arc(0, j, k))
			in.Add(f.Arc(j, 0, k))
		}
		m.AddEquality(fmt.Sprintf("depot_out[%s]", vid), out, 1)
		m.AddEquality(fmt.Sprintf("depot_in[%s]", vid), in, 1)

		for c := 1; c < n; c++ {
			flow := cp.NewLinearExpr()
			for i := 0; i < n; i++ {
				if i != c {
					flow.Add(f.Arc(i, c, k))
					flow.AddTerm(f.Arc(c, i, k), -1)
				}
			}
			m.AddEquality(fmt.Sprintf("flow[%s,%s]", f.nodeID(c), vid), flow, 0)
		}
	}

	for c := 1; c < n; c++ {
		cover := cp.NewLinearExpr()
		for k := 0; k < K; k++ {
			for i := 0; i < n; i++ {
				if i != c {
					cover.Add(f.Arc(i, c, k))
				}
			}
		}
		m.AddEquality(fmt.Sprintf("cover[%s]", f.nodeID(c)), cover, 1)
	}

	f.visit = make([]cp.Var, n*K)
	for v := 0; v < n; v++ {
		for k, vid := range vehicles {
			z := m.NewBoolVar(fmt.Sprintf("visit[%s,%s]", f.nodeID(v), vid))
			f.visit[v*K+k] = z
			args := make([]cp.Var, 0, n-1)
			for i := 0; i < n; i++ {
				if i != v {
					args = append(args, f.Arc(i, v, k))
				}
			}
			m.AddMaxEquality(fmt.Sprintf("visits[%s,%s]", f.nodeID(v), vid), z, args...)
		}
	}
}
