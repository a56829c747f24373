package vrp

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"crewroute/internal/cp"
	"crewroute/internal/cp/search"
	"crewroute/internal/instance"
	"crewroute/internal/obs"
	"crewroute/internal/opt"
)

const (
	DefaultWarmStartBudget     = 500 * time.Millisecond
	DefaultWarmStartIterations = 500
)

type Options struct {
	Config Config
	Params cp.Params
	// Solver defaults to the native search engine.
	Solver cp.Solver
	// WarmStart hints the routing found by the ALNS heuristic.
	WarmStart           bool
	WarmStartBudget     time.Duration
	WarmStartIterations int
	Seed                int64
	Log                 zerolog.Logger
	// OnImprove is handed to the default solver; see search.Options.
	OnImprove func(objective int64)
}

// Solve builds, solves and extracts in one blocking call. Infeasible and
// timed-out solves return a Plan carrying only the status; the error is
// reserved for malformed instances and backend failures.
func Solve(ctx context.Context, in *instance.Instance, opts Options) (plan *Plan, err error) {
	log := opts.Log.With().Str("instance", in.Name).Logger()
	defer obs.Time(ctx, log, "vrp.solve")(&err)

	f, err := Build(in, opts.Config)
	if err != nil {
		return nil, err
	}
	stats := Stats{
		Variables:   f.Model.NumVars(),
		Constraints: f.Model.NumConstraints(),
		Horizon:     f.Limits.Horizon,
		BigM:        f.Limits.BigM,
	}

	if opts.WarmStart {
		budget := opts.WarmStartBudget
		if budget <= 0 {
			budget = DefaultWarmStartBudget
		}
		iters := opts.WarmStartIterations
		if iters <= 0 {
			iters = DefaultWarmStartIterations
		}
		seed := opts.Seed
		if seed == 0 {
			seed = 1
		}
		routes, m := opt.WarmStart(in, f.Config.PenaltyWeight, seed, budget, iters)
		stats.Hints = f.Hint(routes)
		stats.WarmStart = m.BestCost
		log.Debug().Int64("cost", m.BestCost).Int("iterations", m.Iterations).Int("hints", stats.Hints).Msg("warm start")
	}

	solver := opts.Solver
	if solver == nil {
		solver = search.New(search.Options{Log: log, Seed: opts.Seed, OnImprove: opts.OnImprove})
	}
	resp, err := solver.Solve(ctx, f.Model, opts.Params)
	if err != nil {
		return nil, err
	}
	stats.Nodes = resp.Nodes
	stats.WallTime = resp.WallTime

	log.Info().
		Stringer("status", resp.Status).
		Int64("objective", resp.Objective).
		Int("vars", stats.Variables).
		Int("constraints", stats.Constraints).
		Dur("wall", resp.WallTime).
		Msg("solved")

	if !resp.Status.HasSolution() {
		return &Plan{Instance: in.Name, Status: resp.Status, Stats: stats}, nil
	}
	plan, err = Extract(f, resp.Status, resp)
	if err != nil {
		return nil, err
	}
	plan.Stats = stats
	return plan, nil
}
