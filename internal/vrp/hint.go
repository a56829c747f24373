package vrp

// Hint seeds the solver with a routing: routes[k] lists the customer node
// indices vehicle k serves, in order. Arcs of hinted vehicles are hinted 1
// on the route and 0 elsewhere, and derived booleans follow. Vehicles with
// an empty route are left unhinted. It returns the number of hinted
// variables.
func (f *Formulation) Hint(routes [][]int) int {
	m := f.Model
	n := f.numNodes()
	before := m.NumHints()
	used := make([]bool, n*n)
	hinted := 0
	for k, r := range routes {
		if k >= f.numVehicles() || !f.validRoute(r) {
			continue
		}
		hinted++
		on := make([]bool, n*n)
		prev := 0
		for _, c := range append(append([]int(nil), r...), 0) {
			on[prev*n+c] = true
			prev = c
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				v := int64(0)
				if on[i*n+j] {
					v = 1
					used[i*n+j] = true
				}
				m.SetHint(f.Arc(i, j, k), v)
			}
			visited := int64(0)
			for p := 0; p < n; p++ {
				if p != i && on[p*n+i] {
					visited = 1
				}
			}
			m.SetHint(f.Visit(i, k), visited)
		}
	}
	if hinted == f.numVehicles() {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i != j {
					v := int64(0)
					if used[i*n+j] {
						v = 1
					}
					m.SetHint(f.Used(i, j), v)
				}
			}
		}
	}
	return m.NumHints() - before
}

func (f *Formulation) validRoute(r []int) bool {
	if len(r) == 0 {
		return false
	}
	seen := map[int]bool{}
	for _, c := range r {
		if c <= 0 || c >= f.numNodes() || seen[c] {
			return false
		}
		seen[c] = true
	}
	return true
}
