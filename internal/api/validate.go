package api

import (
	"fmt"

	"crewroute/internal/model"
	"crewroute/internal/vrp"
)

const maxWorkers = 256

func validateSolveRequest(req *model.SolveRequest) error {
	if req.TimeLimitMs < 0 {
		return fmt.Errorf("timeLimitMs must be >= 0")
	}
	if req.Workers < 0 || req.Workers > maxWorkers {
		return fmt.Errorf("workers must be in [0,%d]", maxWorkers)
	}
	if req.PenaltyWeight < vrp.NoPenalty {
		return fmt.Errorf("penaltyWeight must be >= %d (%d: distance only, 0: configured default)", vrp.NoPenalty, vrp.NoPenalty)
	}
	return req.Instance.Validate()
}

func parseRunState(s string) (model.RunState, error) {
	switch st := model.RunState(s); st {
	case "", model.RunQueued, model.RunRunning, model.RunDone, model.RunFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown state %q (allowed: queued,running,done,failed)", s)
}
