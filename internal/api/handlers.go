package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"crewroute/internal/buildinfo"
	"crewroute/internal/metrics"
	"crewroute/internal/model"
	"crewroute/internal/store"
	"crewroute/internal/vrp"
)

// SolveHandler handles POST /v1/solve. The call blocks until the solve ends
// unless ?async=true, which answers 202 with the queued run.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		metrics.Throttled.Inc()
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(1/float64(s.limiter.Limit())))))
		writeProblem(w, http.StatusTooManyRequests, "Too many solves", "solve rate limit exceeded", r.URL.Path)
		return
	}
	async := false
	if v := r.URL.Query().Get("async"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid query", "async must be a boolean", r.URL.Path)
			return
		}
		async = b
	}

	req := &model.SolveRequest{}
	if err := decodeJSON(w, r, req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateSolveRequest(req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
		return
	}

	run, err := s.Store.CreateRun(r.Context(), model.Run{Instance: req.Instance.Name, State: model.RunQueued})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path)
		return
	}
	s.publish(run.ID, model.EventRunQueued, nil)

	if async {
		s.runs.Add(1)
		go func() {
			defer s.runs.Done()
			_, _ = s.execute(s.runCtx, run, req)
		}()
		w.Header().Set("Location", "/v1/runs/"+run.ID)
		writeJSON(w, http.StatusAccepted, run)
		return
	}

	run, err = s.execute(r.Context(), run, req)
	switch {
	case errors.Is(err, vrp.ErrInstanceTooLarge):
		writeProblem(w, http.StatusUnprocessableEntity, "Instance too large", err.Error(), r.URL.Path)
	case errors.Is(err, context.Canceled):
		// client went away; the run is stored as failed
	case err != nil:
		writeProblem(w, http.StatusInternalServerError, "Solve failed", err.Error(), r.URL.Path)
	default:
		writeJSON(w, http.StatusOK, run)
	}
}

// RunsIndexHandler handles GET /v1/runs?state=&cursor=&limit=
func (s *Server) RunsIndexHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state, err := parseRunState(q.Get("state"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid query", err.Error(), r.URL.Path)
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid query", "limit must be a non-negative integer", r.URL.Path)
			return
		}
	}
	items, next, err := s.Store.ListRuns(r.Context(), state, q.Get("cursor"), limit)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusBadRequest, "Invalid cursor", err.Error(), r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, model.RunPage{Items: items, NextCursor: next})
}

// RunByIDHandler handles GET /v1/runs/{id}
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	run, err := s.Store.GetRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Run not found", err.Error(), r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get run failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// SolverConfigHandler returns the defaults applied to solve requests.
func (s *Server) SolverConfigHandler(w http.ResponseWriter, r *http.Request) {
	sc := s.cfg.Solver
	writeJSON(w, http.StatusOK, model.SolverDefaults{
		TimeLimitMs:       sc.TimeLimit.Milliseconds(),
		MaxTimeLimitMs:    sc.MaxTimeLimit.Milliseconds(),
		Workers:           sc.Workers,
		PenaltyWeight:     sc.PenaltyWeight,
		WarmStart:         sc.WarmStart,
		WarmStartBudgetMs: sc.WarmStartBudget.Milliseconds(),
		MaxConcurrent:     sc.MaxConcurrent,
	})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "build": buildinfo.Info(), "host": s.host})
}

// ReadyHandler checks the store and the broker.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Store unavailable", err.Error(), r.URL.Path)
		return
	}
	if err := s.Broker.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Broker unavailable", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
