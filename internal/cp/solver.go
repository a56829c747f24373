package cp

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Status is the terminal state of a solve.
type Status int8

const (
	// Unknown means the budget ran out before any solution or proof.
	Unknown Status = iota
	Optimal
	// Feasible means a solution exists but optimality was not proven.
	Feasible
	Infeasible
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "OPTIMAL"
	case Feasible:
		return "FEASIBLE"
	case Infeasible:
		return "INFEASIBLE"
	}
	return "UNKNOWN"
}

// HasSolution reports whether variable values may be read.
func (s Status) HasSolution() bool { return s == Optimal || s == Feasible }

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStatus is the inverse of Status.String (case-insensitive).
func ParseStatus(name string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "OPTIMAL":
		return Optimal, nil
	case "FEASIBLE":
		return Feasible, nil
	case "INFEASIBLE":
		return Infeasible, nil
	case "UNKNOWN":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("cp: unknown status %q", name)
}

const (
	DefaultTimeLimit = 10 * time.Second
	DefaultWorkers   = 8
)

// Params controls a single blocking solve.
type Params struct {
	// TimeLimit is the wall-clock budget. Zero means DefaultTimeLimit.
	TimeLimit time.Duration
	// Workers is a parallelism hint. Zero means DefaultWorkers.
	Workers int
}

// WithDefaults fills zero fields.
func (p Params) WithDefaults() Params {
	if p.TimeLimit <= 0 {
		p.TimeLimit = DefaultTimeLimit
	}
	if p.Workers <= 0 {
		p.Workers = DefaultWorkers
	}
	return p
}

// Response is the outcome of a solve. Values are only readable when
// Status.HasSolution reports true.
type Response struct {
	Status    Status
	Objective int64
	// Nodes is the number of search nodes explored, if the backend counts them.
	Nodes    int64
	WallTime time.Duration
	values   []int64
}

// NewResponse builds a response. values must hold one entry per model
// variable when status has a solution, and is ignored otherwise.
func NewResponse(status Status, objective int64, values []int64) *Response {
	r := &Response{Status: status, Objective: objective}
	if status.HasSolution() {
		r.values = append([]int64(nil), values...)
	}
	return r
}

// Value returns the solved value of v. It panics when the response holds no
// solution: callers branch on Status first.
func (r *Response) Value(v Var) int64 {
	if !r.Status.HasSolution() {
		panic(fmt.Sprintf("cp: Value(%d) read from a %s response", v, r.Status))
	}
	return r.values[v]
}

func (r *Response) BoolValue(v Var) bool { return r.Value(v) != 0 }

// Solver is a solving backend. Solve blocks for at most p.TimeLimit (or until
// ctx is done) and reports infeasibility and timeouts through the status;
// the error is reserved for invalid models and backend failures.
type Solver interface {
	Solve(ctx context.Context, m *Model, p Params) (*Response, error)
}
