package opt

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewroute/internal/instance"
)

func toyInstance() *instance.Instance {
	return &instance.Instance{
		Name:      "toy",
		Depot:     instance.Node{ID: "depot"},
		Customers: []instance.Node{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}},
		Distances: [][]int64{
			{0, 10, 15, 20},
			{10, 0, 35, 25},
			{15, 35, 0, 30},
			{20, 25, 30, 0},
		},
		Vehicles: []string{"v0", "v1"},
	}
}

func TestGreedySeedUsesEveryVehicle(t *testing.T) {
	p := FromInstance(toyInstance(), 1)
	sol := greedySeed(p)
	require.Len(t, sol.Plans, 2)
	assert.Equal(t, []int{1, 3}, sol.Plans[0].Order)
	assert.Equal(t, []int{2}, sol.Plans[1].Order)
	assert.Equal(t, int64(85), sol.Cost)
}

func TestWarmStartCoversCustomersOnce(t *testing.T) {
	routes, m := WarmStart(toyInstance(), 1, 7, time.Second, 200)
	require.Len(t, routes, 2)
	var all []int
	for _, r := range routes {
		assert.NotEmpty(t, r)
		all = append(all, r...)
	}
	sort.Ints(all)
	assert.Equal(t, []int{1, 2, 3}, all)
	assert.Equal(t, int64(85), m.FinalCost)
	assert.LessOrEqual(t, m.Iterations, 200)
}

func TestLatenessIsPenalized(t *testing.T) {
	in := toyInstance()
	in.Customers[2].Window = &instance.TimeWindow{Earliest: 0, Latest: 5}
	p := FromInstance(in, 10)

	// c3 first: arrives at 20, 15 late.
	dist, late := schedulePlan(p, RoutePlan{Order: []int{3, 1}})
	assert.Equal(t, int64(20+25+10), dist)
	assert.Equal(t, int64(15), late)
	assert.Equal(t, int64(55+150), planCost(p, RoutePlan{Order: []int{3, 1}}))
}

func TestWaitingAvoidsEarliness(t *testing.T) {
	in := toyInstance()
	in.Customers[0].ServiceTime = 5
	in.Customers[0].Window = &instance.TimeWindow{Earliest: 50, Latest: 60}
	in.Customers[1].Window = &instance.TimeWindow{Earliest: 0, Latest: 80}
	p := FromInstance(in, 1)

	// waits at c1 until 50, leaves at 55 and reaches c2 at 90: 10 late.
	_, late := schedulePlan(p, RoutePlan{Order: []int{1, 2}})
	assert.Equal(t, int64(10), late)
}

func TestEmptyRouteIsExpensive(t *testing.T) {
	p := FromInstance(toyInstance(), 1)
	sol := Solution{Plans: []RoutePlan{{Order: []int{1, 2, 3}}, {Order: nil}}}
	assert.Greater(t, cost(p, sol), emptyRouteCost)
	assert.Negative(t, deltaCostInsert(p, sol.Plans[1], 2, 0))
}

func TestImproveOrder2Opt(t *testing.T) {
	// unit square, manhattan distances, depot in a corner
	dist := [][]int64{
		{0, 1, 2, 1},
		{1, 0, 1, 2},
		{2, 1, 0, 1},
		{1, 2, 1, 0},
	}
	got := ImproveOrder2Opt(dist, []int{2, 1, 3}, 5)
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, int64(4), pathDistance(dist, []int{0, 1, 2, 3, 0}))
}

func TestTwOverlap(t *testing.T) {
	assert.Equal(t, int64(5), twOverlap(Window{0, 10}, Window{5, 20}))
	assert.Equal(t, int64(0), twOverlap(Window{0, 4}, Window{5, 20}))
}
