package model

import (
	"time"

	"crewroute/internal/instance"
	"crewroute/internal/sysinfo"
	"crewroute/internal/vrp"
)

// Wire types shared by the HTTP API, the run store and webhook payloads.

type SolveRequest struct {
	Instance      instance.Instance `json:"instance"`
	TimeLimitMs   int64             `json:"timeLimitMs,omitempty"`
	Workers       int               `json:"workers,omitempty"`
	PenaltyWeight int64             `json:"penaltyWeight,omitempty"`
	// WarmStart overrides the configured default when set.
	WarmStart *bool `json:"warmStart,omitempty"`
	Seed      int64 `json:"seed,omitempty"`
}

func (r SolveRequest) TimeLimit() time.Duration {
	return time.Duration(r.TimeLimitMs) * time.Millisecond
}

type RunState string

const (
	RunQueued  RunState = "queued"
	RunRunning RunState = "running"
	RunDone    RunState = "done"
	RunFailed  RunState = "failed"
)

// Finished reports whether the run will not change again.
func (s RunState) Finished() bool { return s == RunDone || s == RunFailed }

type Run struct {
	ID       string   `json:"id"`
	Instance string   `json:"instance"`
	State    RunState `json:"state"`
	// Status is the solver status once the run is done.
	Status     string        `json:"status,omitempty"`
	Objective  *int64        `json:"objective,omitempty"`
	Error      string        `json:"error,omitempty"`
	Plan       *vrp.Plan     `json:"plan,omitempty"`
	Host       *sysinfo.Host `json:"host,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	StartedAt  *time.Time    `json:"startedAt,omitempty"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
}

// Summary drops the plan for listings.
func (r Run) Summary() Run {
	r.Plan = nil
	return r
}

type RunPage struct {
	Items      []Run  `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

type SolverDefaults struct {
	TimeLimitMs       int64 `json:"timeLimitMs"`
	MaxTimeLimitMs    int64 `json:"maxTimeLimitMs"`
	Workers           int   `json:"workers"`
	PenaltyWeight     int64 `json:"penaltyWeight"`
	WarmStart         bool  `json:"warmStart"`
	WarmStartBudgetMs int64 `json:"warmStartBudgetMs"`
	MaxConcurrent     int   `json:"maxConcurrent"`
}

const (
	EventRunQueued   = "run.queued"
	EventRunStarted  = "run.started"
	EventRunImproved = "run.improved"
	EventRunFinished = "run.finished"
)

// Event is published on the run's broker channel and, for finished runs,
// delivered to webhooks.
type Event struct {
	ID    string         `json:"id"`
	Type  string         `json:"type"`
	RunID string         `json:"runId"`
	TS    time.Time      `json:"ts"`
	Data  map[string]any `json:"data,omitempty"`
}
