package api

import (
	"context"
	"time"

	"github.com/google/uuid"

	"crewroute/internal/metrics"
	"crewroute/internal/model"
	"crewroute/internal/obs"
	"crewroute/internal/vrp"
)

// improveEvery throttles run.improved events; the final objective always
// arrives with run.finished.
const improveEvery = 100 * time.Millisecond

func (s *Server) publish(runID, typ string, data map[string]any) model.Event {
	evt := model.Event{ID: uuid.NewString(), Type: typ, RunID: runID, TS: time.Now().UTC(), Data: data}
	s.Broker.Publish(runID, evt)
	return evt
}

func (s *Server) solveOptions(ctx context.Context, req *model.SolveRequest, runID string) vrp.Options {
	sc := s.cfg.Solver
	opts := vrp.Options{
		Config:          vrp.Config{PenaltyWeight: sc.PenaltyWeight},
		Params:          sc.SolveParams(req.TimeLimit(), req.Workers),
		WarmStart:       sc.WarmStart,
		WarmStartBudget: sc.WarmStartBudget,
		Seed:            req.Seed,
		Log:             s.log.With().Str("run", runID).Str("req_id", obs.RequestID(ctx)).Logger(),
	}
	if req.PenaltyWeight != 0 {
		opts.Config.PenaltyWeight = req.PenaltyWeight
	}
	if req.WarmStart != nil {
		opts.WarmStart = *req.WarmStart
	}

	var (
		last    time.Time
		pending = make(chan struct{}, 1)
	)
	pending <- struct{}{}
	opts.OnImprove = func(obj int64) {
		// workers call concurrently; the token serializes the throttle
		select {
		case <-pending:
		default:
			return
		}
		defer func() { pending <- struct{}{} }()
		if time.Since(last) < improveEvery {
			return
		}
		last = time.Now()
		s.publish(runID, model.EventRunImproved, map[string]any{"objective": obj})
	}
	return opts
}

// execute takes a solver slot, solves and stores the outcome. The returned
// error is the solve error also recorded on the run.
func (s *Server) execute(ctx context.Context, run model.Run, req *model.SolveRequest) (model.Run, error) {
	// the outcome is stored even when ctx is cancelled mid-solve
	bg := context.WithoutCancel(ctx)

	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return s.finish(bg, run, nil, ctx.Err())
	}
	defer func() { <-s.slots }()
	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()

	now := time.Now().UTC()
	run.State = model.RunRunning
	run.StartedAt = &now
	if err := s.Store.SaveRun(bg, run); err != nil {
		s.log.Error().Err(err).Str("run", run.ID).Msg("save running run")
	}
	s.publish(run.ID, model.EventRunStarted, nil)

	plan, err := vrp.Solve(ctx, &req.Instance, s.solveOptions(ctx, req, run.ID))
	return s.finish(bg, run, plan, err)
}

func (s *Server) finish(ctx context.Context, run model.Run, plan *vrp.Plan, solveErr error) (model.Run, error) {
	now := time.Now().UTC()
	run.FinishedAt = &now
	host := s.host
	run.Host = &host
	if solveErr != nil {
		run.State = model.RunFailed
		run.Error = solveErr.Error()
		metrics.ObserveSolve("error", 0, 0, 0)
	} else {
		run.State = model.RunDone
		run.Status = plan.Status.String()
		if plan.Status.HasSolution() {
			obj := plan.Objective
			run.Objective = &obj
		}
		run.Plan = plan
		metrics.ObserveSolve(run.Status, plan.Stats.WallTime, plan.Stats.Nodes, plan.Stats.Variables)
	}
	if err := s.Store.SaveRun(ctx, run); err != nil {
		s.log.Error().Err(err).Str("run", run.ID).Msg("save finished run")
	}

	data := map[string]any{"state": run.State, "status": run.Status}
	if run.Objective != nil {
		data["objective"] = *run.Objective
	}
	if run.Error != "" {
		data["error"] = run.Error
	}
	evt := s.publish(run.ID, model.EventRunFinished, data)
	if err := s.Pub.Emit(ctx, evt); err != nil {
		s.log.Error().Err(err).Str("run", run.ID).Msg("queue webhook")
	}
	s.log.Info().
		Str("run", run.ID).
		Str("state", string(run.State)).
		Str("status", run.Status).
		Msg("run finished")
	return run, solveErr
}
