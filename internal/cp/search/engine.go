package search

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
)

var (
	// errExhausted ends a worker whose tree is fully explored. With a shared
	// incumbent this is a proof: optimality if a solution exists, otherwise
	// infeasibility.
	errExhausted = errors.New("search: tree exhausted")
	// errSolved ends a satisfaction search at its first solution.
	errSolved = errors.New("search: solution found")

	errStopped = errors.New("search: stopped")
)

// incumbent is the best solution shared by all workers.
type incumbent struct {
	mu     sync.Mutex
	found  atomic.Bool
	bound  atomic.Int64
	obj    int64
	values []int64
	worker int
}

// offer stores vals when obj strictly improves on the incumbent.
func (in *incumbent) offer(obj int64, vals []int64, worker int) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.found.Load() && obj >= in.obj {
		return false
	}
	in.obj = obj
	in.values = append(in.values[:0], vals...)
	in.worker = worker
	in.bound.Store(obj)
	in.found.Store(true)
	return true
}

func (in *incumbent) snapshot() (obj int64, vals []int64, ok bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.found.Load() {
		return 0, nil, false
	}
	return in.obj, append([]int64(nil), in.values...), true
}

type saved struct {
	v      int32
	lo, hi int64
}

type branch struct{ lo, hi int64 }

// engine is one worker's depth-first branch and bound over bounds
// consistent propagation. It is not safe for concurrent use.
type engine struct {
	p         *program
	inc       *incumbent
	worker    int
	rng       *rand.Rand
	onImprove func(obj int64, worker int)

	lo, hi []int64
	trail  []saved

	queue  []int32
	head   int
	queued []bool

	hasBound bool
	bound    int64
	objRHS   int64

	ctx   context.Context
	steps int
	nodes int64
}

func newEngine(p *program, inc *incumbent, worker int, seed int64) *engine {
	e := &engine{
		p:      p,
		inc:    inc,
		worker: worker,
		rng:    rand.New(rand.NewSource(seed + int64(worker)*7919)),
		lo:     append([]int64(nil), p.lo...),
		hi:     append([]int64(nil), p.hi...),
		queued: make([]bool, p.numConstraints()),
	}
	return e
}

// run explores the whole tree. It returns errExhausted or errSolved when the
// search is complete, nil when stopped by ctx.
func (e *engine) run(ctx context.Context) error {
	e.ctx = ctx
	for id := 0; id < e.p.numConstraints(); id++ {
		e.enqueue(int32(id))
	}
	err := e.dfs()
	switch {
	case err == nil:
		return errExhausted
	case errors.Is(err, errStopped):
		return nil
	}
	return err
}

func (e *engine) dfs() error {
	e.nodes++
	e.steps++
	if e.steps&1023 == 0 {
		if e.ctx.Err() != nil {
			return errStopped
		}
	}
	e.syncBound()
	if !e.propagate() {
		return nil
	}
	v := e.pickVar()
	if v < 0 {
		return e.leaf()
	}
	for _, br := range e.branches(v) {
		mark := len(e.trail)
		if e.restrict(v, br.lo, br.hi) {
			if err := e.dfs(); err != nil {
				return err
			}
		}
		e.undo(mark)
	}
	return nil
}

func (e *engine) leaf() error {
	if e.p.objRow < 0 {
		e.inc.offer(0, e.lo, e.worker)
		return errSolved
	}
	obj := e.p.objOffset
	for _, t := range e.p.rows[e.p.objRow].terms {
		obj += t.a * e.lo[t.v]
	}
	if e.inc.offer(obj, e.lo, e.worker) && e.onImprove != nil {
		e.onImprove(obj, e.worker)
	}
	return nil
}

// syncBound tightens the objective row to strictly beat the incumbent.
func (e *engine) syncBound() {
	if e.p.objRow < 0 || !e.inc.found.Load() {
		return
	}
	if b := e.inc.bound.Load(); !e.hasBound || b < e.bound {
		e.hasBound = true
		e.bound = b
		e.objRHS = b - 1 - e.p.objOffset
	}
	e.enqueue(int32(e.p.objRow))
}

func (e *engine) pickVar() int32 {
	for _, v := range e.p.order {
		if e.lo[v] < e.hi[v] {
			return v
		}
	}
	return -1
}

func (e *engine) branches(v int32) []branch {
	lo, hi := e.lo[v], e.hi[v]
	h, hinted := e.p.hint[v], e.p.hinted[v] && e.worker == 0
	if hinted && (h < lo || h > hi) {
		hinted = false
	}

	if e.p.isBool[v] {
		first := lo
		switch {
		case hinted:
			first = h
		case e.worker > 0 && e.rng.Intn(2) == 0:
			first = hi
		}
		return []branch{{first, first}, {1 - first, 1 - first}}
	}

	if hinted {
		out := []branch{{h, h}}
		if h > lo {
			out = append(out, branch{lo, h - 1})
		}
		if h < hi {
			out = append(out, branch{h + 1, hi})
		}
		return out
	}
	var out []branch
	if hi-lo < 4 {
		out = []branch{{lo, lo}, {lo + 1, hi}}
	} else {
		mid := lo + (hi-lo)/2
		out = []branch{{lo, mid}, {mid + 1, hi}}
	}
	if e.worker > 0 && e.rng.Intn(2) == 0 {
		out[0], out[1] = out[1], out[0]
	}
	return out
}

func (e *engine) restrict(v int32, lo, hi int64) bool {
	return e.setLo(v, lo) && e.setHi(v, hi)
}

func (e *engine) setLo(v int32, x int64) bool {
	if x <= e.lo[v] {
		return true
	}
	if x > e.hi[v] {
		return false
	}
	e.trail = append(e.trail, saved{v: v, lo: e.lo[v], hi: e.hi[v]})
	e.lo[v] = x
	e.touch(v)
	return true
}

func (e *engine) setHi(v int32, x int64) bool {
	if x >= e.hi[v] {
		return true
	}
	if x < e.lo[v] {
		return false
	}
	e.trail = append(e.trail, saved{v: v, lo: e.lo[v], hi: e.hi[v]})
	e.hi[v] = x
	e.touch(v)
	return true
}

func (e *engine) touch(v int32) {
	for _, id := range e.p.watch[v] {
		e.enqueue(id)
	}
}

func (e *engine) enqueue(id int32) {
	if e.queued[id] {
		return
	}
	e.queued[id] = true
	e.queue = append(e.queue, id)
}

func (e *engine) undo(mark int) {
	for i := len(e.trail) - 1; i >= mark; i-- {
		s := e.trail[i]
		e.lo[s.v], e.hi[s.v] = s.lo, s.hi
	}
	e.trail = e.trail[:mark]
	e.clearQueue()
}

func (e *engine) clearQueue() {
	for _, id := range e.queue[e.head:] {
		e.queued[id] = false
	}
	e.queue = e.queue[:0]
	e.head = 0
}

// propagate runs the queue to a fixpoint and reports consistency.
func (e *engine) propagate() bool {
	for e.head < len(e.queue) {
		id := e.queue[e.head]
		e.head++
		e.queued[id] = false

		var ok bool
		if int(id) < len(e.p.rows) {
			ok = e.propRow(int(id))
		} else {
			ok = e.propOr(&e.p.ors[int(id)-len(e.p.rows)])
		}
		if !ok {
			e.clearQueue()
			return false
		}
	}
	e.queue = e.queue[:0]
	e.head = 0
	return true
}

func (e *engine) propRow(ri int) bool {
	r := &e.p.rows[ri]
	rhs := r.rhs
	if ri == e.p.objRow {
		if !e.hasBound {
			return true
		}
		rhs = e.objRHS
	}

	var minSum int64
	for _, t := range r.terms {
		if t.a > 0 {
			minSum += t.a * e.lo[t.v]
		} else {
			minSum += t.a * e.hi[t.v]
		}
	}
	if minSum > rhs {
		return false
	}
	// Tightening a term never moves its own contribution to minSum, so one
	// pass reaches the row's fixpoint.
	for _, t := range r.terms {
		if t.a > 0 {
			slack := rhs - (minSum - t.a*e.lo[t.v])
			if !e.setHi(t.v, floorDiv(slack, t.a)) {
				return false
			}
		} else {
			slack := rhs - (minSum - t.a*e.hi[t.v])
			if !e.setLo(t.v, ceilDiv(slack, t.a)) {
				return false
			}
		}
	}
	return true
}

func (e *engine) propOr(c *orCon) bool {
	var maxLo, maxHi int64
	for _, a := range c.args {
		maxLo = max(maxLo, e.lo[a])
		maxHi = max(maxHi, e.hi[a])
	}
	t := c.target
	if !e.setLo(t, maxLo) || !e.setHi(t, maxHi) {
		return false
	}
	for _, a := range c.args {
		if !e.setHi(a, e.hi[t]) {
			return false
		}
	}
	if e.lo[t] == 0 {
		return true
	}
	support := int32(-1)
	for _, a := range c.args {
		if e.hi[a] >= e.lo[t] {
			if support >= 0 {
				return true
			}
			support = a
		}
	}
	if support < 0 {
		return false
	}
	return e.setLo(support, e.lo[t])
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) == (b < 0) {
		q++
	}
	return q
}
