// Package vrp builds the constraint model of a crew-aware vehicle routing
// problem and turns solved values back into routes and crew assignments.
//
// The model is assembled in layers, each adding its variables and
// constraints to one cp.Model: routing arcs, rank-based subtour
// elimination, soft time windows, workforce assignment and the objective.
// Extraction only reads solved values and never looks at the constraints.
package vrp

import (
	"errors"
	"fmt"

	"crewroute/internal/cp"
	"crewroute/internal/instance"
)

// DefaultPenaltyWeight scales earliness and lateness against distance.
const DefaultPenaltyWeight int64 = 1

// NoPenalty as PenaltyWeight drops the slack terms, leaving distance only.
const NoPenalty int64 = -1

// ErrInstanceTooLarge reports data whose derived bounds or coefficients do
// not fit the model's integer range.
var ErrInstanceTooLarge = errors.New("vrp: instance values exceed model bounds")

// noVar marks index combinations that have no variable, such as self arcs.
const noVar cp.Var = -1

// Config holds the objective knobs of a build.
type Config struct {
	// PenaltyWeight multiplies the summed earliness and lateness slack in
	// the objective. It only changes objective coefficients. Zero selects
	// DefaultPenaltyWeight and NoPenalty a weight of zero.
	PenaltyWeight int64 `json:"penaltyWeight" yaml:"penaltyWeight"`
}

func (c Config) withDefaults() Config {
	switch {
	case c.PenaltyWeight == NoPenalty:
		c.PenaltyWeight = 0
	case c.PenaltyWeight <= 0:
		c.PenaltyWeight = DefaultPenaltyWeight
	}
	return c
}

// Formulation is a built model together with the variable handles of every
// layer. Node indices follow the instance: 0 is the depot.
type Formulation struct {
	Instance *instance.Instance
	Model    *cp.Model
	Config   Config
	Limits   Limits

	arcs  []cp.Var // (i*n+j)*k + vehicle
	agg   []cp.Var // i*n+j
	visit []cp.Var // node*K + vehicle

	rank    []cp.Var // by node, noVar for the depot
	arrival []cp.Var
	early   []cp.Var
	late    []cp.Var

	assign []cp.Var // (customer-1)*W + worker
	board  []cp.Var // ((customer-1)*W + worker)*K + vehicle
	labor  []cp.Var

	distance *cp.LinearExpr
	penalty  *cp.LinearExpr
}

// Build validates in and declares the full model. Each call creates a fresh
// cp.Model, so formulations never share variables.
func Build(in *instance.Instance, cfg Config) (*Formulation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	lim := ComputeLimits(in)
	if lim.BigM > cp.MaxBound {
		return nil, fmt.Errorf("%w: big-M %d", ErrInstanceTooLarge, lim.BigM)
	}
	cfg = cfg.withDefaults()
	if cfg.PenaltyWeight > cp.MaxBound {
		return nil, fmt.Errorf("%w: penalty weight %d", ErrInstanceTooLarge, cfg.PenaltyWeight)
	}
	for i, row := range in.Distances {
		for j, d := range row {
			if d > cp.MaxBound {
				return nil, fmt.Errorf("%w: distance %s->%s is %d", ErrInstanceTooLarge, in.Node(i).ID, in.Node(j).ID, d)
			}
		}
	}
	name := in.Name
	if name == "" {
		name = "vrp"
	}
	f := &Formulation{
		Instance: in,
		Model:    cp.NewModel(name),
		Config:   cfg,
		Limits:   lim,
	}
	f.addRouting()
	f.addSubtourElimination()
	f.addSchedule()
	if in.HasWorkforce() {
		f.addWorkforce()
	}
	f.addObjective()
	return f, nil
}

func (f *Formulation) numNodes() int    { return f.Instance.NumNodes() }
func (f *Formulation) numVehicles() int { return len(f.Instance.Vehicles) }
func (f *Formulation) numWorkers() int  { return len(f.Instance.Workers) }

func (f *Formulation) nodeID(i int) string { return f.Instance.Node(i).ID }

// Arc is x(i,j,k): vehicle k drives directly from i to j.
func (f *Formulation) Arc(i, j, k int) cp.Var {
	return f.arcs[(i*f.numNodes()+j)*f.numVehicles()+k]
}

// Used is y(i,j), the OR of Arc(i,j,k) over vehicles.
func (f *Formulation) Used(i, j int) cp.Var { return f.agg[i*f.numNodes()+j] }

// Visit is true iff vehicle k enters node n.
func (f *Formulation) Visit(n, k int) cp.Var { return f.visit[n*f.numVehicles()+k] }

func (f *Formulation) Rank(n int) cp.Var    { return f.rank[n] }
func (f *Formulation) Arrival(n int) cp.Var { return f.arrival[n] }
func (f *Formulation) Early(n int) cp.Var   { return f.early[n] }
func (f *Formulation) Late(n int) cp.Var    { return f.late[n] }

// Assign is a(c,w) for customer node c and worker index w. It returns noVar
// when the instance has no workforce.
func (f *Formulation) Assign(c, w int) cp.Var {
	if f.assign == nil {
		return noVar
	}
	return f.assign[(c-1)*f.numWorkers()+w]
}

// Board is b(c,w,k): worker w rides vehicle k to customer node c.
func (f *Formulation) Board(c, w, k int) cp.Var {
	if f.board == nil {
		return noVar
	}
	return f.board[((c-1)*f.numWorkers()+w)*f.numVehicles()+k]
}

func (f *Formulation) Labor(w int) cp.Var {
	if f.labor == nil {
		return noVar
	}
	return f.labor[w]
}

// DistanceCost and PenaltyCost are the two objective components.
func (f *Formulation) DistanceCost() cp.LinearExpr { return *f.distance }
func (f *Formulation) PenaltyCost() cp.LinearExpr  { return *f.penalty }
