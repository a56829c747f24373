package vrp

import (
	"fmt"

	"crewroute/internal/cp"
)

// addSubtourElimination ranks customers in [1, C] and requires
// rank(i) - rank(j) + C*y(i,j) <= C-1 for every ordered customer pair. A
// used arc forces rank(j) > rank(i), which no cycle avoiding the unranked
// depot can satisfy.
func (f *Formulation) addSubtourElimination() {
	m := f.Model
	n := f.numNodes()
	C := int64(f.Instance.NumCustomers())

	f.rank = make([]cp.Var, n)
	f.rank[0] = noVar
	for c := 1; c < n; c++ {
		f.rank[c] = m.NewIntVar(1, C, fmt.Sprintf("u[%s]", f.nodeID(c)))
	}
	for i := 1; i < n; i++ {
		for j := 1; j < n; j++ {
			if i == j {
				continue
			}
			e := cp.NewLinearExpr().
				Add(f.rank[i]).
				AddTerm(f.rank[j], -1).
				AddTerm(f.Used(i, j), C)
			m.AddLessOrEqual(fmt.Sprintf("mtz[%s,%s]", f.nodeID(i), f.nodeID(j)), e, C-1)
		}
	}
}
