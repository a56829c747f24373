package opt

import (
	"time"

	"crewroute/internal/instance"
)

// Lightweight API surface for higher-level callers.

// FromInstance maps an instance onto the heuristic's node indexing, which
// is the instance's own: depot first, then customers.
func FromInstance(in *instance.Instance, penaltyWeight int64) Problem {
	p := Problem{
		Nodes:         make([]Node, in.NumNodes()),
		Dist:          in.Distances,
		Travel:        in.TravelTimes,
		Vehicles:      append([]string(nil), in.Vehicles...),
		PenaltyWeight: penaltyWeight,
	}
	for i := range p.Nodes {
		n := in.Node(i)
		p.Nodes[i] = Node{ID: n.ID, Service: n.ServiceTime}
		if n.Window != nil {
			p.Nodes[i].TW = &Window{Start: n.Window.Earliest, End: n.Window.Latest}
		}
	}
	return p
}

// WarmStart runs the heuristic for at most budget or iterations and returns
// per-vehicle customer orders in vehicle order. A route is empty when the
// heuristic could not give that vehicle a customer.
func WarmStart(in *instance.Instance, penaltyWeight int64, seed int64, budget time.Duration, iterations int) ([][]int, Metrics) {
	p := FromInstance(in, penaltyWeight)
	p.IterationsLimit = iterations
	sol, m := Solve(p, seed, budget)
	routes := make([][]int, len(sol.Plans))
	for i, pl := range sol.Plans {
		routes[i] = append([]int(nil), pl.Order...)
	}
	return routes, m
}
