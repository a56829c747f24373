package vrp

import (
	"fmt"

	"crewroute/internal/cp"
)

// addSchedule declares arrival times and soft window slacks, then
// propagates time along every used arc.
//
// Arcs into the depot are not propagated: the depot's own arrival would
// otherwise be bounded from below by every route's return and from above
// by its departures. Return times are therefore not checked.
func (f *Formulation) addSchedule() {
	m := f.Model
	n := f.numNodes()
	H, M := f.Limits.Horizon, f.Limits.BigM

	f.arrival = make([]cp.Var, n)
	f.early = make([]cp.Var, n)
	f.late = make([]cp.Var, n)
	for i := 0; i < n; i++ {
		id := f.nodeID(i)
		f.arrival[i] = m.NewIntVar(0, H, fmt.Sprintf("arr[%s]", id))
		f.early[i] = m.NewIntVar(0, H, fmt.Sprintf("early[%s]", id))
		f.late[i] = m.NewIntVar(0, H, fmt.Sprintf("late[%s]", id))

		w := f.Limits.Window(f.Instance.Node(i))
		m.AddGreaterOrEqual(fmt.Sprintf("tw_start[%s]", id),
			cp.NewLinearExpr().Add(f.arrival[i]).Add(f.early[i]), w.Earliest)
		m.AddLessOrEqual(fmt.Sprintf("tw_end[%s]", id),
			cp.NewLinearExpr().Add(f.arrival[i]).AddTerm(f.late[i], -1), w.Latest)
	}

	// arr(j) - arr(i) - M*x(i,j,k) >= s(i) + t(i,j) - M
	for k, vid := range f.Instance.Vehicles {
		for i := 0; i < n; i++ {
			s := f.Instance.Node(i).ServiceTime
			for j := 1; j < n; j++ {
				if i == j {
					continue
				}
				e := cp.NewLinearExpr().
					Add(f.arrival[j]).
					AddTerm(f.arrival[i], -1).
					AddTerm(f.Arc(i, j, k), -M)
				rhs := s + f.Instance.TravelTime(i, j) - M
				m.AddGreaterOrEqual(fmt.Sprintf("time[%s,%s,%s]", f.nodeID(i), f.nodeID(j), vid), e, rhs)
			}
		}
	}
}
