// Package search is a native cp.Solver: a portfolio of depth-first branch
// and bound workers over bounds-consistent propagation, sharing one
// incumbent.
//
// The first worker to exhaust its tree proves the result (optimality when a
// solution was found, infeasibility otherwise) and stops the others. Runs
// are reproducible with a single worker; with several, the reported optimum
// is the same but ties may resolve differently.
package search

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"crewroute/internal/cp"
)

// Options tunes the engine. The zero value is usable.
type Options struct {
	// Log receives debug events. The zero logger discards them.
	Log zerolog.Logger
	// LinearizeOr propagates OR constraints through their linear rows
	// instead of the native propagator.
	LinearizeOr bool
	// Seed drives the branching order of workers other than the first.
	Seed int64
	// OnImprove, if set, observes every new incumbent. Workers call it
	// concurrently.
	OnImprove func(objective int64)
}

type Solver struct {
	opts Options
}

var _ cp.Solver = (*Solver)(nil)

func New(opts Options) *Solver {
	return &Solver{opts: opts}
}

// Solve validates m and searches it within p.TimeLimit. Infeasibility and
// timeouts are reported through the response status.
func (s *Solver) Solve(ctx context.Context, m *cp.Model, p cp.Params) (*cp.Response, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	p = p.WithDefaults()
	start := time.Now()
	prog := compile(m, s.opts.LinearizeOr)
	log := s.opts.Log.With().Str("model", m.Name()).Logger()
	log.Debug().
		Int("vars", m.NumVars()).
		Int("rows", len(prog.rows)).
		Int("ors", len(prog.ors)).
		Int("workers", p.Workers).
		Dur("time_limit", p.TimeLimit).
		Msg("search: start")

	ctx, cancel := context.WithTimeout(ctx, p.TimeLimit)
	defer cancel()

	inc := &incumbent{}
	var nodes atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < p.Workers; w++ {
		e := newEngine(prog, inc, w, s.opts.Seed)
		e.onImprove = func(obj int64, worker int) {
			log.Debug().Int64("objective", obj).Int("worker", worker).
				Dur("elapsed", time.Since(start)).Msg("search: improved")
			if s.opts.OnImprove != nil {
				s.opts.OnImprove(obj)
			}
		}
		g.Go(func() error {
			err := e.run(gctx)
			nodes.Add(e.nodes)
			return err
		})
	}
	err := g.Wait()
	proved := errors.Is(err, errExhausted) || errors.Is(err, errSolved)
	if err != nil && !proved {
		return nil, err
	}

	obj, vals, found := inc.snapshot()
	var status cp.Status
	switch {
	case proved && found:
		status = cp.Optimal
	case proved:
		status = cp.Infeasible
	case found:
		status = cp.Feasible
	default:
		status = cp.Unknown
	}
	resp := cp.NewResponse(status, obj, vals)
	resp.Nodes = nodes.Load()
	resp.WallTime = time.Since(start)
	log.Debug().
		Stringer("status", status).
		Int64("objective", obj).
		Int64("nodes", resp.Nodes).
		Dur("wall", resp.WallTime).
		Msg("search: done")
	return resp, nil
}
