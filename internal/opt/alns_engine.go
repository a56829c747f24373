package opt

import (
	"math"
	"math/rand"
	"sort"
	"time"
)

type Window struct{ Start, End int64 }

type Node struct {
	ID      string
	Service int64
	TW      *Window
}

// Problem is a routing instance over dense node indices; node 0 is the
// depot and every vehicle starts and ends there.
type Problem struct {
	Nodes    []Node
	Dist     [][]int64
	Travel   [][]int64 // optional, Dist when nil
	Vehicles []string
	// PenaltyWeight scales lateness against distance.
	PenaltyWeight   int64
	IterationsLimit int
}

type RoutePlan struct {
	VehicleID string
	Order     []int // customer indices into Nodes, depot excluded
}

type Solution struct {
	Plans []RoutePlan
	Cost  int64
}

type Metrics struct {
	RemovalSelects [2]int // random, shaw
	InsertSelects  [2]int // greedy, regret2
	Iterations     int
	Improvements   int
	AcceptedWorse  int
	BestCost       int64
	FinalCost      int64
}

// emptyRouteCost keeps every vehicle in use: each must leave the depot
// exactly once, so an empty route is not a valid plan.
const emptyRouteCost int64 = 1 << 40

const (
	startTemp = 1.0
	cooling   = 0.995
)

// roulette picks operators with probability proportional to their weight.
type roulette [2]float64

func (r *roulette) pick(rng *rand.Rand) int {
	x := rng.Float64() * (r[0] + r[1])
	if x <= r[0] {
		return 0
	}
	return 1
}

func (r *roulette) reward(i int, by float64) { r[i] += by }

func (r *roulette) decay(i int) { r[i] = math.Max(0.01, r[i]*0.999) }

// Solve runs ALNS: random or related removal, greedy or regret insertion,
// local search on every candidate and simulated annealing acceptance. It
// stops at the budget or after IterationsLimit iterations.
func Solve(p Problem, seed int64, budget time.Duration) (Solution, Metrics) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	curr := greedySeed(p)
	best := clonePlans(curr)
	removal, insertion := roulette{1, 1}, roulette{1, 1}
	temp := startTemp
	m := Metrics{BestCost: best.Cost}

	for deadline := time.Now().Add(budget); time.Now().Before(deadline); temp *= cooling {
		if p.IterationsLimit > 0 && m.Iterations >= p.IterationsLimit {
			break
		}
		m.Iterations++
		rop, iop := removal.pick(rng), insertion.pick(rng)
		m.RemovalSelects[rop]++
		m.InsertSelects[iop]++

		k := 1 + rng.Intn(3)
		var out []int
		if rop == 0 {
			out = pickRandomNodes(curr, k, rng)
		} else {
			out = shawRemoval(p, curr, k, rng)
		}
		curr = removeNodes(curr, out)
		if iop == 0 {
			curr = greedyInsert(p, curr, out)
		} else {
			curr = regretInsert(p, curr, out)
		}
		curr = twoOptImprove(p, curr)
		curr = crossExchangeImprove(p, curr)
		curr = twoOptStarImprove(p, curr)
		curr.Cost = cost(p, curr)

		delta := float64(curr.Cost - best.Cost)
		switch {
		case curr.Cost < best.Cost:
			best = clonePlans(curr)
			removal.reward(rop, 0.1)
			insertion.reward(iop, 0.1)
			m.Improvements++
			m.BestCost = best.Cost
		case rng.Float64() < math.Exp(-delta/(temp+1e-9)):
			removal.reward(rop, 0.01)
			insertion.reward(iop, 0.01)
			m.AcceptedWorse++
		default:
			removal.decay(rop)
			insertion.decay(iop)
			curr = clonePlans(best)
		}
	}
	m.FinalCost = best.Cost
	return best, m
}

func clonePlans(s Solution) Solution {
	out := Solution{Plans: make([]RoutePlan, len(s.Plans)), Cost: s.Cost}
	for i, pl := range s.Plans {
		out.Plans[i] = RoutePlan{VehicleID: pl.VehicleID, Order: append([]int(nil), pl.Order...)}
	}
	return out
}

func (p Problem) travel(i, j int) int64 {
	if p.Travel != nil {
		return p.Travel[i][j]
	}
	return p.Dist[i][j]
}

// greedySeed lets vehicles take turns appending their nearest unserved
// customer, so every vehicle gets one before any gets two.
func greedySeed(p Problem) Solution {
	n := len(p.Nodes)
	used := make([]bool, n)
	used[0] = true
	plans := make([]RoutePlan, len(p.Vehicles))
	for vi := range plans {
		plans[vi] = RoutePlan{VehicleID: p.Vehicles[vi], Order: []int{}}
	}
	for assigned := 1; assigned < n; {
		progress := false
		for vi := range plans {
			bestIdx, bestDelta := -1, int64(math.MaxInt64)
			for i := 1; i < n; i++ {
				if used[i] {
					continue
				}
				d := deltaCostAppend(p, plans[vi], i)
				if d < bestDelta {
					bestDelta = d
					bestIdx = i
				}
			}
			if bestIdx >= 0 {
				plans[vi].Order = append(plans[vi].Order, bestIdx)
				used[bestIdx] = true
				assigned++
				progress = true
				if assigned == n {
					break
				}
			}
		}
		if !progress {
			break
		}
	}
	sol := Solution{Plans: plans}
	sol.Cost = cost(p, sol)
	return sol
}

func pickRandomNodes(sol Solution, k int, rng *rand.Rand) []int {
	all := []int{}
	for _, pl := range sol.Plans {
		all = append(all, pl.Order...)
	}
	if len(all) == 0 {
		return nil
	}
	removed := []int{}
	for i := 0; i < k && len(all) > 0; i++ {
		j := rng.Intn(len(all))
		removed = append(removed, all[j])
		all = append(all[:j], all[j+1:]...)
	}
	return removed
}

func removeNodes(sol Solution, removed []int) Solution {
	if len(removed) == 0 {
		return sol
	}
	rm := map[int]bool{}
	for _, i := range removed {
		rm[i] = true
	}
	out := Solution{Plans: make([]RoutePlan, len(sol.Plans))}
	for i := range sol.Plans {
		out.Plans[i].VehicleID = sol.Plans[i].VehicleID
		for _, idx := range sol.Plans[i].Order {
			if !rm[idx] {
				out.Plans[i].Order = append(out.Plans[i].Order, idx)
			}
		}
	}
	return out
}

func regretInsert(p Problem, sol Solution, removed []int) Solution {
	if len(removed) == 0 {
		return sol
	}
	nodes := append([]int(nil), removed...)
	for len(nodes) > 0 {
		bestNode, bestPlan, bestPos := -1, -1, -1
		bestRegret := int64(-1)
		for ni, idx := range nodes {
			best1, best2 := int64(math.MaxInt64), int64(math.MaxInt64)
			bp, bpos := -1, -1
			for vi, pl := range sol.Plans {
				for pos := 0; pos <= len(pl.Order); pos++ {
					c := deltaCostInsert(p, pl, idx, pos)
					if c < best1 {
						best2 = best1
						best1 = c
						bp = vi
						bpos = pos
					} else if c < best2 {
						best2 = c
					}
				}
			}
			if bp < 0 {
				continue
			}
			regret := int64(0)
			if best2 != math.MaxInt64 {
				regret = best2 - best1
			}
			if regret > bestRegret {
				bestRegret = regret
				bestNode, bestPlan, bestPos = ni, bp, bpos
			}
		}
		if bestNode == -1 {
			break
		}
		sol.Plans[bestPlan].Order = insertAt(sol.Plans[bestPlan].Order, bestPos, nodes[bestNode])
		nodes = append(nodes[:bestNode], nodes[bestNode+1:]...)
	}
	sol.Cost = cost(p, sol)
	// local improvement pass (or-opt 1-node)
	sol = orOptLocalImprove(p, sol)
	return sol
}

// greedyInsert inserts nodes by cheapest insertion
func greedyInsert(p Problem, sol Solution, removed []int) Solution {
	if len(removed) == 0 {
		return sol
	}
	nodes := append([]int(nil), removed...)
	for len(nodes) > 0 {
		bestPlan, bestPos, bestNode := -1, -1, 0
		bestCost := int64(math.MaxInt64)
		for ni, idx := range nodes {
			for vi, pl := range sol.Plans {
				for pos := 0; pos <= len(pl.Order); pos++ {
					c := deltaCostInsert(p, pl, idx, pos)
					if c < bestCost {
						bestCost = c
						bestPlan = vi
						bestPos = pos
						bestNode = ni
					}
				}
			}
		}
		if bestPlan == -1 {
			break
		}
		sol.Plans[bestPlan].Order = insertAt(sol.Plans[bestPlan].Order, bestPos, nodes[bestNode])
		nodes = append(nodes[:bestNode], nodes[bestNode+1:]...)
	}
	sol.Cost = cost(p, sol)
	return sol
}

func insertAt(order []int, pos, idx int) []int {
	out := make([]int, 0, len(order)+1)
	out = append(out, order[:pos]...)
	out = append(out, idx)
	return append(out, order[pos:]...)
}

func cost(p Problem, s Solution) int64 {
	total := int64(0)
	for _, pl := range s.Plans {
		total += planCost(p, pl)
	}
	return total
}

func planCost(p Problem, pl RoutePlan) int64 {
	if len(pl.Order) == 0 {
		return emptyRouteCost
	}
	dist, late := schedulePlan(p, pl)
	return dist + p.PenaltyWeight*late
}

// deltaCostAppend is the distance added by appending idx before the
// return to the depot.
func deltaCostAppend(p Problem, pl RoutePlan, idx int) int64 {
	last := 0
	if len(pl.Order) > 0 {
		last = pl.Order[len(pl.Order)-1]
	}
	return p.Dist[last][idx] + p.Dist[idx][0] - p.Dist[last][0]
}

// deltaCostInsert is the plan cost change of inserting idx at pos. Filling
// an empty route is strongly negative.
func deltaCostInsert(p Problem, pl RoutePlan, idx, pos int) int64 {
	before := planCost(p, pl)
	after := planCost(p, RoutePlan{VehicleID: pl.VehicleID, Order: insertAt(pl.Order, pos, idx)})
	return after - before
}

// schedulePlan walks the route from the depot's earliest start, waiting for
// window openings so no earliness accrues, and returns the travelled
// distance and total lateness. The return leg is charged distance only.
func schedulePlan(p Problem, pl RoutePlan) (dist, late int64) {
	t := int64(0)
	if tw := p.Nodes[0].TW; tw != nil {
		t = tw.Start
	}
	prev := 0
	for _, idx := range pl.Order {
		nd := p.Nodes[idx]
		arr := t + p.Nodes[prev].Service + p.travel(prev, idx)
		if nd.TW != nil {
			if arr < nd.TW.Start {
				arr = nd.TW.Start
			}
			if arr > nd.TW.End {
				late += arr - nd.TW.End
			}
		}
		dist += p.Dist[prev][idx]
		t = arr
		prev = idx
	}
	dist += p.Dist[prev][0]
	return dist, late
}

// orOptLocalImprove attempts relocating single nodes within each plan if it reduces cost.
func orOptLocalImprove(p Problem, sol Solution) Solution {
	improved := true
	for improved {
		improved = false
		for vi := range sol.Plans {
			pl := sol.Plans[vi]
			best := pl
			bestCost := planCost(p, pl)
			for i := 0; i < len(pl.Order); i++ {
				for j := 0; j < len(pl.Order); j++ {
					if j == i {
						continue
					}
					rest := append(append([]int(nil), pl.Order[:i]...), pl.Order[i+1:]...)
					cand := RoutePlan{VehicleID: pl.VehicleID, Order: insertAt(rest, j, pl.Order[i])}
					if c := planCost(p, cand); c < bestCost {
						best = cand
						bestCost = c
					}
				}
			}
			if bestCost < planCost(p, pl) {
				sol.Plans[vi] = best
				improved = true
			}
		}
	}
	sol.Cost = cost(p, sol)
	return sol
}

// twoOptImprove applies 2-opt within each plan and keeps it when the plan
// cost, penalties included, does not grow.
func twoOptImprove(p Problem, sol Solution) Solution {
	for vi := range sol.Plans {
		pl := sol.Plans[vi]
		cand := RoutePlan{VehicleID: pl.VehicleID, Order: ImproveOrder2Opt(p.Dist, pl.Order, len(pl.Order))}
		if planCost(p, cand) <= planCost(p, pl) {
			sol.Plans[vi] = cand
		}
	}
	sol.Cost = cost(p, sol)
	return sol
}

// crossExchangeImprove swaps nodes between routes if cost decreases
func crossExchangeImprove(p Problem, sol Solution) Solution {
	m := len(sol.Plans)
	if m < 2 {
		return sol
	}
	improved := true
	for improved {
		improved = false
		for a := 0; a < m; a++ {
			for b := a + 1; b < m; b++ {
				pa := sol.Plans[a]
				pb := sol.Plans[b]
				before := planCost(p, pa) + planCost(p, pb)
				for i := 0; i < len(pa.Order) && !improved; i++ {
					for j := 0; j < len(pb.Order); j++ {
						ca := RoutePlan{VehicleID: pa.VehicleID, Order: append([]int(nil), pa.Order...)}
						cb := RoutePlan{VehicleID: pb.VehicleID, Order: append([]int(nil), pb.Order...)}
						ca.Order[i], cb.Order[j] = cb.Order[j], ca.Order[i]
						if planCost(p, ca)+planCost(p, cb) < before {
							sol.Plans[a] = ca
							sol.Plans[b] = cb
							improved = true
							break
						}
					}
				}
			}
		}
	}
	sol.Cost = cost(p, sol)
	return sol
}

// twoOptStarImprove performs inter-route segment exchanges (2-opt*) limited to segment length 1..2
func twoOptStarImprove(p Problem, sol Solution) Solution {
	m := len(sol.Plans)
	if m < 2 {
		return sol
	}
	improved := true
	for improved {
		improved = false
		for a := 0; a < m && !improved; a++ {
			for b := a + 1; b < m && !improved; b++ {
				pa := sol.Plans[a]
				pb := sol.Plans[b]
				before := planCost(p, pa) + planCost(p, pb)
				for i := 0; i < len(pa.Order) && !improved; i++ {
					for j := 0; j < len(pb.Order) && !improved; j++ {
						for la := 1; la <= 2 && i+la <= len(pa.Order) && !improved; la++ {
							for lb := 1; lb <= 2 && j+lb <= len(pb.Order); lb++ {
								ca := RoutePlan{VehicleID: pa.VehicleID}
								cb := RoutePlan{VehicleID: pb.VehicleID}
								ca.Order = append(append(append([]int(nil), pa.Order[:i]...), pb.Order[j:j+lb]...), pa.Order[i+la:]...)
								cb.Order = append(append(append([]int(nil), pb.Order[:j]...), pa.Order[i:i+la]...), pb.Order[j+lb:]...)
								if planCost(p, ca)+planCost(p, cb) < before {
									sol.Plans[a] = ca
									sol.Plans[b] = cb
									improved = true
									break
								}
							}
						}
					}
				}
			}
		}
	}
	sol.Cost = cost(p, sol)
	return sol
}

// shawRemoval selects k nodes related by distance and window overlap.
func shawRemoval(p Problem, sol Solution, k int, rng *rand.Rand) []int {
	assigned := []int{}
	for _, pl := range sol.Plans {
		assigned = append(assigned, pl.Order...)
	}
	if len(assigned) == 0 {
		return nil
	}
	seedIdx := assigned[rng.Intn(len(assigned))]
	type pair struct {
		idx   int
		score int64
	}
	rel := []pair{}
	sN := p.Nodes[seedIdx]
	for _, idx := range assigned {
		if idx == seedIdx {
			continue
		}
		n := p.Nodes[idx]
		score := p.Dist[seedIdx][idx]
		if sN.TW != nil && n.TW != nil {
			score -= twOverlap(*sN.TW, *n.TW)
		}
		rel = append(rel, pair{idx: idx, score: score})
	}
	sort.SliceStable(rel, func(a, b int) bool { return rel[a].score < rel[b].score })
	removed := []int{seedIdx}
	for i := 0; i < len(rel) && len(removed) < k; i++ {
		removed = append(removed, rel[i].idx)
	}
	return removed
}

func twOverlap(a, b Window) int64 {
	start := max(a.Start, b.Start)
	end := min(a.End, b.End)
	if end < start {
		return 0
	}
	return end - start
}
