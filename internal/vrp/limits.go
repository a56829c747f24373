package vrp

import "crewroute/internal/instance"

// Limits are the data-derived constants of the scheduling layer, computed
// once per instance.
type Limits struct {
	// Horizon bounds every arrival time and slack.
	Horizon int64 `json:"horizon"`
	// BigM deactivates time propagation on unused arcs.
	BigM       int64 `json:"bigM"`
	MaxService int64 `json:"maxService"`
	MaxTravel  int64 `json:"maxTravel"`
}

// ComputeLimits derives the horizon and Big-M from the instance.
//
// The horizon is twice the latest window end plus the longest service,
// raised if needed to the length of a schedule that never waits (total
// service plus the longest outgoing leg of every node), so the no-wait
// schedule of any routing always fits. BigM covers the largest possible
// a(i) + s(i) + t(i,j) - a(j).
func ComputeLimits(in *instance.Instance) Limits {
	var lim Limits
	var maxEnd, sumService, sumOut int64
	n := in.NumNodes()
	for i := 0; i < n; i++ {
		node := in.Node(i)
		lim.MaxService = max(lim.MaxService, node.ServiceTime)
		sumService += node.ServiceTime
		if node.Window != nil {
			maxEnd = max(maxEnd, node.Window.Latest)
		}
		var out int64
		for j := 0; j < n; j++ {
			out = max(out, in.TravelTime(i, j))
		}
		lim.MaxTravel = max(lim.MaxTravel, out)
		sumOut += out
	}
	lim.Horizon = max(2*(maxEnd+lim.MaxService), sumService+sumOut)
	lim.BigM = lim.Horizon + lim.MaxService + lim.MaxTravel
	return lim
}

// Window returns the window of n, defaulting to the whole horizon.
func (l Limits) Window(n instance.Node) instance.TimeWindow {
	if n.Window == nil {
		return instance.TimeWindow{Earliest: 0, Latest: l.Horizon}
	}
	return *n.Window
}
