package vrp

import (
	"errors"
	"fmt"

	"crewroute/internal/instance"
)

// ErrPlanViolation is wrapped by every problem Verify reports.
var ErrPlanViolation = errors.New("vrp: plan violates instance")

// Verify re-checks an extracted plan against the instance: simple depot
// cycles, exactly-once coverage, connectivity of used arcs to the depot,
// window slacks, skill coverage, labor limits and boarding. All violations
// are joined into the returned error.
func Verify(in *instance.Instance, p *Plan) error {
	if p == nil || !p.Status.HasSolution() {
		return fmt.Errorf("%w: plan has no solution", ErrNoSolution)
	}
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrPlanViolation}, args...)...))
	}

	depot := in.Depot.ID
	servedBy := map[string]string{}
	for _, r := range p.Routes {
		if len(r.Nodes) < 3 || r.Nodes[0] != depot || r.Nodes[len(r.Nodes)-1] != depot {
			fail("route of %s is not a depot cycle: %v", r.Vehicle, r.Nodes)
			continue
		}
		for _, id := range r.Customers() {
			if id == depot {
				fail("route of %s passes the depot midway", r.Vehicle)
				continue
			}
			if prev, dup := servedBy[id]; dup {
				fail("%s visited by %s and %s", id, prev, r.Vehicle)
			}
			servedBy[id] = r.Vehicle
		}
	}
	for _, c := range in.Customers {
		if _, ok := servedBy[c.ID]; !ok {
			fail("%s not visited", c.ID)
		}
	}
	if len(servedBy) > len(in.Customers) {
		fail("routes visit %d customers, instance has %d", len(servedBy), len(in.Customers))
	}

	verifyConnected(in, p, fail)
	verifyWindows(in, p, fail)
	if in.HasWorkforce() {
		verifyCrew(in, p, servedBy, fail)
	}
	return errors.Join(errs...)
}

// verifyConnected checks that every customer touched by a used arc is
// reachable from the depot, so no cycle excludes it.
func verifyConnected(in *instance.Instance, p *Plan, fail func(string, ...any)) {
	next := map[string][]string{}
	for _, a := range p.Arcs {
		next[a.From] = append(next[a.From], a.To)
	}
	reached := map[string]bool{in.Depot.ID: true}
	stack := []string{in.Depot.ID}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, to := range next[cur] {
			if !reached[to] {
				reached[to] = true
				stack = append(stack, to)
			}
		}
	}
	for _, c := range in.Customers {
		if !reached[c.ID] {
			fail("%s lies on a cycle disconnected from the depot", c.ID)
		}
	}
}

func verifyWindows(in *instance.Instance, p *Plan, fail func(string, ...any)) {
	for _, v := range p.Visits {
		idx := in.IndexOf(v.Node)
		if idx < 0 {
			fail("unknown node %s", v.Node)
			continue
		}
		w := in.Node(idx).Window
		if w == nil {
			continue
		}
		if v.Arrival+v.Early < w.Earliest || v.Arrival-v.Late > w.Latest {
			fail("%s arrival %d with slack -%d/+%d misses [%d, %d]", v.Node, v.Arrival, v.Early, v.Late, w.Earliest, w.Latest)
		}
	}
}

func verifyCrew(in *instance.Instance, p *Plan, servedBy map[string]string, fail func(string, ...any)) {
	workers := map[string]instance.Worker{}
	for _, w := range in.Workers {
		workers[w.ID] = w
	}
	labor := map[string]int64{}
	covered := map[string]bool{}
	for _, a := range p.Assignments {
		idx := in.IndexOf(a.Customer)
		if idx <= 0 {
			fail("assignment for unknown customer %s", a.Customer)
			continue
		}
		cust := in.Node(idx)
		covered[a.Customer] = true
		if len(a.Crew) == 0 {
			fail("%s has no crew", a.Customer)
		}
		have := map[string]int{}
		seen := map[string]bool{}
		for _, m := range a.Crew {
			w, ok := workers[m.Worker]
			if !ok {
				fail("%s assigned unknown worker %s", a.Customer, m.Worker)
				continue
			}
			if seen[m.Worker] {
				fail("worker %s listed twice for %s", m.Worker, a.Customer)
				continue
			}
			seen[m.Worker] = true
			if servedBy[a.Customer] != m.Vehicle {
				fail("worker %s rides %s but %s is served by %q", m.Worker, m.Vehicle, a.Customer, servedBy[a.Customer])
			}
			held := map[string]bool{}
			for _, s := range w.Skills {
				if !held[s] {
					held[s] = true
					have[s]++
				}
			}
			labor[m.Worker] += cust.ServiceTime
		}
		for s, req := range cust.Requirements {
			if have[s] < req {
				fail("%s needs %d %s, crew has %d", a.Customer, req, s, have[s])
			}
		}
	}
	for _, c := range in.Customers {
		if !covered[c.ID] {
			fail("%s has no assignment", c.ID)
		}
	}
	for _, w := range in.Workers {
		if labor[w.ID] > w.LaborLimit {
			fail("worker %s works %d over limit %d", w.ID, labor[w.ID], w.LaborLimit)
		}
	}
	for _, l := range p.Labor {
		if l.Time != labor[l.Worker] {
			fail("worker %s reports labor %d, assignments sum to %d", l.Worker, l.Time, labor[l.Worker])
		}
	}
}
