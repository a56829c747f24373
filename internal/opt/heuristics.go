package opt

// ImproveOrder2Opt runs up to passes rounds of first-improvement 2-opt on the
// depot-to-depot tour through order. Only distance counts; the depot ends
// never move.
func ImproveOrder2Opt(dist [][]int64, order []int, passes int) []int {
	tour := make([]int, 0, len(order)+2)
	tour = append(append(append(tour, 0), order...), 0)
	for pass := 0; pass < max(passes, 1); pass++ {
		if !twoOptPass(dist, tour) {
			break
		}
	}
	return tour[1 : len(tour)-1]
}

// twoOptPass reverses tour[i..k] whenever that shortens the tour and
// reports whether anything changed.
func twoOptPass(dist [][]int64, tour []int) bool {
	changed := false
	for i := 1; i < len(tour)-2; i++ {
		for k := i + 1; k < len(tour)-1; k++ {
			a, b, c, d := tour[i-1], tour[i], tour[k], tour[k+1]
			// asymmetric matrices also change the reversed inner segment
			gain := dist[a][b] + dist[c][d] + pathDistance(dist, tour[i:k+1]) -
				dist[a][c] - dist[b][d] - reversedDistance(dist, tour[i:k+1])
			if gain > 0 {
				reverse(tour[i : k+1])
				changed = true
			}
		}
	}
	return changed
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func pathDistance(dist [][]int64, order []int) int64 {
	total := int64(0)
	for i := 0; i+1 < len(order); i++ {
		total += dist[order[i]][order[i+1]]
	}
	return total
}

func reversedDistance(dist [][]int64, order []int) int64 {
	total := int64(0)
	for i := len(order) - 1; i > 0; i-- {
		total += dist[order[i]][order[i-1]]
	}
	return total
}
