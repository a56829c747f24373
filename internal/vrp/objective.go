package vrp

import "crewroute/internal/cp"

// addObjective minimizes travel distance over every used arc plus
// PenaltyWeight times the summed earliness and lateness.
func (f *Formulation) addObjective() {
	n, K := f.numNodes(), f.numVehicles()

	f.distance = cp.NewLinearExpr()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			d := f.Instance.Distance(i, j)
			for k := 0; k < K; k++ {
				f.distance.AddTerm(f.Arc(i, j, k), d)
			}
		}
	}

	w := f.Config.PenaltyWeight
	f.penalty = cp.NewLinearExpr()
	for i := 0; i < n; i++ {
		f.penalty.AddTerm(f.early[i], w).AddTerm(f.late[i], w)
	}

	obj := cp.NewLinearExpr()
	obj.Terms = append(obj.Terms, f.distance.Terms...)
	obj.Terms = append(obj.Terms, f.penalty.Terms...)
	f.Model.Minimize(obj)
}
