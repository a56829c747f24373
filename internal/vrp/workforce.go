package vrp

import (
	"fmt"
	"sort"

	"crewroute/internal/cp"
)

// addWorkforce assigns workers to customers, boards each assigned worker on
// exactly one vehicle that visits the customer, enforces skill coverage and
// caps per-worker labor. Labor counts service time only; travel is not
// charged to the crew.
func (f *Formulation) addWorkforce() {
	m := f.Model
	n, K, W := f.numNodes(), f.numVehicles(), f.numWorkers()
	workers := f.Instance.Workers
	vehicles := f.Instance.Vehicles

	f.assign = make([]cp.Var, (n-1)*W)
	f.board = make([]cp.Var, (n-1)*W*K)
	for c := 1; c < n; c++ {
		cid := f.nodeID(c)
		for w, wk := range workers {
			f.assign[(c-1)*W+w] = m.NewBoolVar(fmt.Sprintf("a[%s,%s]", cid, wk.ID))
		}
	}
	for c := 1; c < n; c++ {
		cid := f.nodeID(c)
		for w, wk := range workers {
			for k, vid := range vehicles {
				f.board[((c-1)*W+w)*K+k] = m.NewBoolVar(fmt.Sprintf("b[%s,%s,%s]", cid, wk.ID, vid))
			}
		}
	}

	for c := 1; c < n; c++ {
		cust := f.Instance.Node(c)
		crew := cp.NewLinearExpr()
		for w := range workers {
			crew.Add(f.Assign(c, w))
		}
		m.AddGreaterOrEqual(fmt.Sprintf("crew[%s]", cust.ID), crew, 1)

		skills := make([]string, 0, len(cust.Requirements))
		for s := range cust.Requirements {
			skills = append(skills, s)
		}
		sort.Strings(skills)
		for _, s := range skills {
			req := cust.Requirements[s]
			if req <= 0 {
				continue
			}
			cover := cp.NewLinearExpr()
			for w, wk := range workers {
				if wk.HasSkill(s) {
					cover.Add(f.Assign(c, w))
				}
			}
			m.AddGreaterOrEqual(fmt.Sprintf("skill[%s,%s]", cust.ID, s), cover, int64(req))
		}

		for w, wk := range workers {
			rides := cp.NewLinearExpr()
			for k, vid := range vehicles {
				b := f.Board(c, w, k)
				rides.Add(b)
				m.AddLessOrEqual(fmt.Sprintf("aboard[%s,%s,%s]", cust.ID, wk.ID, vid),
					cp.NewLinearExpr().Add(b).AddTerm(f.Visit(c, k), -1), 0)
			}
			rides.AddTerm(f.Assign(c, w), -1)
			m.AddEquality(fmt.Sprintf("ride[%s,%s]", cust.ID, wk.ID), rides, 0)
		}
	}

	var total int64
	for c := 1; c < n; c++ {
		total += f.Instance.Node(c).ServiceTime
	}
	f.labor = make([]cp.Var, W)
	for w, wk := range workers {
		l := m.NewIntVar(0, total, fmt.Sprintf("labor[%s]", wk.ID))
		f.labor[w] = l
		sum := cp.NewLinearExpr().Add(l)
		for c := 1; c < n; c++ {
			sum.AddTerm(f.Assign(c, w), -f.Instance.Node(c).ServiceTime)
		}
		m.AddEquality(fmt.Sprintf("labor_sum[%s]", wk.ID), sum, 0)
		// budgets beyond the total service time never bind
		m.AddLessOrEqual(fmt.Sprintf("labor_cap[%s]", wk.ID), cp.NewLinearExpr().Add(l), min(wk.LaborLimit, total))
	}
}
