package vrp

import (
	"errors"
	"fmt"
	"time"

	"crewroute/internal/cp"
)

var (
	// ErrNoSolution is returned when values are requested from a solve that
	// ended without a solution.
	ErrNoSolution = errors.New("vrp: no solution")
	// ErrBrokenRoute reports solved arcs that do not trace a simple depot
	// cycle per vehicle.
	ErrBrokenRoute = errors.New("vrp: broken route")
	// ErrBrokenCrew reports an assigned worker without exactly one boarding
	// vehicle.
	ErrBrokenCrew = errors.New("vrp: broken crew boarding")
)

// Route is one vehicle's tour from the depot back to it.
type Route struct {
	Vehicle string `json:"vehicle"`
	// Nodes starts and ends at the depot.
	Nodes    []string `json:"nodes"`
	Distance int64    `json:"distance"`
}

// Customers returns the route without its depot ends.
func (r Route) Customers() []string {
	if len(r.Nodes) < 2 {
		return nil
	}
	return r.Nodes[1 : len(r.Nodes)-1]
}

// Visit is the schedule of one node.
type Visit struct {
	Node    string `json:"node"`
	Vehicle string `json:"vehicle,omitempty"`
	Arrival int64  `json:"arrival"`
	Early   int64  `json:"early"`
	Late    int64  `json:"late"`
	// Rank is the subtour-elimination order, zero for the depot.
	Rank int64 `json:"rank,omitempty"`
}

type CrewMember struct {
	Worker  string `json:"worker"`
	Vehicle string `json:"vehicle"`
}

type Assignment struct {
	Customer string       `json:"customer"`
	Crew     []CrewMember `json:"crew"`
}

// Labor is a worker's assigned service time against the budget.
type Labor struct {
	Worker string `json:"worker"`
	Time   int64  `json:"time"`
	Limit  int64  `json:"limit"`
}

// Arc is a used arc as solved, kept for verification.
type Arc struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Vehicle string `json:"vehicle"`
}

// Stats describes the model and the search that solved it.
type Stats struct {
	Variables   int           `json:"variables"`
	Constraints int           `json:"constraints"`
	Nodes       int64         `json:"nodes"`
	WallTime    time.Duration `json:"wallTimeNs"`
	Horizon     int64         `json:"horizon"`
	BigM        int64         `json:"bigM"`
	Hints       int           `json:"hints,omitempty"`
	WarmStart   int64         `json:"warmStartCost,omitempty"`
}

// Plan is the readable outcome of a solve. Only Status and Stats are set
// when the solve ended without a solution.
type Plan struct {
	Instance     string       `json:"instance"`
	Status       cp.Status    `json:"status"`
	Objective    int64        `json:"objective"`
	DistanceCost int64        `json:"distanceCost"`
	PenaltyCost  int64        `json:"penaltyCost"`
	Routes       []Route      `json:"routes,omitempty"`
	Visits       []Visit      `json:"visits,omitempty"`
	Assignments  []Assignment `json:"assignments,omitempty"`
	Labor        []Labor      `json:"labor,omitempty"`
	Arcs         []Arc        `json:"arcs,omitempty"`
	Stats        Stats        `json:"stats"`
}

// Extract rebuilds routes, schedule and crew from solved values. It never
// reads values unless status carries a solution.
func Extract(f *Formulation, status cp.Status, vals cp.Values) (*Plan, error) {
	if !status.HasSolution() {
		return nil, fmt.Errorf("%w: status %s", ErrNoSolution, status)
	}
	in := f.Instance
	n := f.numNodes()
	p := &Plan{Instance: in.Name, Status: status}

	onVehicle := make([]string, n)
	for k, vid := range in.Vehicles {
		r, err := f.walk(k, vals)
		if err != nil {
			return nil, err
		}
		for _, id := range r.Customers() {
			onVehicle[in.IndexOf(id)] = vid
		}
		p.Routes = append(p.Routes, r)
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			for k, vid := range in.Vehicles {
				if vals.Value(f.Arc(i, j, k)) != 0 {
					p.Arcs = append(p.Arcs, Arc{From: f.nodeID(i), To: f.nodeID(j), Vehicle: vid})
				}
			}
		}
	}

	for i := 0; i < n; i++ {
		v := Visit{
			Node:    f.nodeID(i),
			Vehicle: onVehicle[i],
			Arrival: vals.Value(f.arrival[i]),
			Early:   vals.Value(f.early[i]),
			Late:    vals.Value(f.late[i]),
		}
		if i > 0 {
			v.Rank = vals.Value(f.rank[i])
		}
		p.Visits = append(p.Visits, v)
	}

	if in.HasWorkforce() {
		if err := f.extractCrew(p, vals); err != nil {
			return nil, err
		}
	}

	p.DistanceCost = f.distance.Eval(vals)
	p.PenaltyCost = f.penalty.Eval(vals)
	p.Objective = p.DistanceCost + p.PenaltyCost
	return p, nil
}

// walk follows the unique used outgoing arc of vehicle k from the depot
// until it returns.
func (f *Formulation) walk(k int, vals cp.Values) (Route, error) {
	n := f.numNodes()
	vid := f.Instance.Vehicles[k]
	r := Route{Vehicle: vid, Nodes: []string{f.nodeID(0)}}
	seen := make([]bool, n)
	cur := 0
	for steps := 0; steps < n; steps++ {
		next := -1
		for j := 0; j < n; j++ {
			if j == cur || vals.Value(f.Arc(cur, j, k)) == 0 {
				continue
			}
			if next >= 0 {
				return Route{}, fmt.Errorf("%w: vehicle %s leaves %s on several arcs", ErrBrokenRoute, vid, f.nodeID(cur))
			}
			next = j
		}
		if next < 0 {
			return Route{}, fmt.Errorf("%w: vehicle %s stops at %s", ErrBrokenRoute, vid, f.nodeID(cur))
		}
		r.Distance += f.Instance.Distance(cur, next)
		r.Nodes = append(r.Nodes, f.nodeID(next))
		if next == 0 {
			return r, nil
		}
		if seen[next] {
			return Route{}, fmt.Errorf("%w: vehicle %s revisits %s", ErrBrokenRoute, vid, f.nodeID(next))
		}
		seen[next] = true
		cur = next
	}
	return Route{}, fmt.Errorf("%w: vehicle %s never returns to the depot", ErrBrokenRoute, vid)
}

func (f *Formulation) extractCrew(p *Plan, vals cp.Values) error {
	in := f.Instance
	for c := 1; c < f.numNodes(); c++ {
		a := Assignment{Customer: f.nodeID(c), Crew: []CrewMember{}}
		for w, wk := range in.Workers {
			if vals.Value(f.Assign(c, w)) == 0 {
				continue
			}
			vehicle := ""
			for k, vid := range in.Vehicles {
				if vals.Value(f.Board(c, w, k)) == 0 {
					continue
				}
				if vehicle != "" {
					return fmt.Errorf("%w: worker %s boards %s and %s for %s", ErrBrokenCrew, wk.ID, vehicle, vid, a.Customer)
				}
				vehicle = vid
			}
			if vehicle == "" {
				return fmt.Errorf("%w: worker %s assigned to %s without a vehicle", ErrBrokenCrew, wk.ID, a.Customer)
			}
			a.Crew = append(a.Crew, CrewMember{Worker: wk.ID, Vehicle: vehicle})
		}
		p.Assignments = append(p.Assignments, a)
	}
	for w, wk := range in.Workers {
		p.Labor = append(p.Labor, Labor{Worker: wk.ID, Time: vals.Value(f.Labor(w)), Limit: wk.LaborLimit})
	}
	return nil
}
