package instance

import (
	"errors"
	"fmt"
)

var (
	ErrNoVehicles          = errors.New("instance: no vehicles")
	ErrNoCustomers         = errors.New("instance: no customers")
	ErrDuplicateID         = errors.New("instance: duplicate id")
	ErrDistanceShape       = errors.New("instance: matrix shape does not match nodes")
	ErrNegativeDistance    = errors.New("instance: negative matrix entry")
	ErrNonZeroDiagonal     = errors.New("instance: non-zero matrix diagonal")
	ErrAsymmetricDistance  = errors.New("instance: asymmetric distance")
	ErrNegativeServiceTime = errors.New("instance: negative service time")
	ErrDepotServiceTime    = errors.New("instance: depot has a service time")
	ErrWindowInverted      = errors.New("instance: time window earliest after latest")
	ErrNegativeWindow      = errors.New("instance: negative time window bound")
	ErrNegativeRequirement = errors.New("instance: negative skill requirement")
	ErrUnknownSkill        = errors.New("instance: skill not in vocabulary")
	ErrSkillShortage       = errors.New("instance: skill requirement exceeds workforce")
	ErrNegativeLabor       = errors.New("instance: negative labor limit")
)

// Validate rejects malformed data before any model is built. The returned
// error wraps one of the package sentinels.
func (in *Instance) Validate() error {
	if len(in.Vehicles) == 0 {
		return ErrNoVehicles
	}
	if len(in.Customers) == 0 {
		return ErrNoCustomers
	}
	if err := in.validateIDs(); err != nil {
		return err
	}
	if err := validateMatrix("distances", in.Distances, in.NumNodes(), true); err != nil {
		return err
	}
	if in.TravelTimes != nil {
		if err := validateMatrix("travelTimes", in.TravelTimes, in.NumNodes(), false); err != nil {
			return err
		}
	}
	if in.Depot.ServiceTime != 0 {
		return fmt.Errorf("%w: %q", ErrDepotServiceTime, in.Depot.ID)
	}
	for i := 0; i < in.NumNodes(); i++ {
		if err := validateNode(in.Node(i)); err != nil {
			return err
		}
	}
	return in.validateWorkforce()
}

func (in *Instance) validateIDs() error {
	seen := map[string]bool{}
	check := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("%w: empty %s id", ErrDuplicateID, kind)
		}
		if seen[kind+"/"+id] {
			return fmt.Errorf("%w: %s %q", ErrDuplicateID, kind, id)
		}
		seen[kind+"/"+id] = true
		return nil
	}
	for i := 0; i < in.NumNodes(); i++ {
		if err := check("node", in.Node(i).ID); err != nil {
			return err
		}
	}
	for _, v := range in.Vehicles {
		if err := check("vehicle", v); err != nil {
			return err
		}
	}
	for _, w := range in.Workers {
		if err := check("worker", w.ID); err != nil {
			return err
		}
	}
	return nil
}

func validateMatrix(name string, m [][]int64, n int, symmetric bool) error {
	if len(m) != n {
		return fmt.Errorf("%w: %s has %d rows, want %d", ErrDistanceShape, name, len(m), n)
	}
	for i, row := range m {
		if len(row) != n {
			return fmt.Errorf("%w: %s row %d has %d entries, want %d", ErrDistanceShape, name, i, len(row), n)
		}
	}
	for i := 0; i < n; i++ {
		if m[i][i] != 0 {
			return fmt.Errorf("%w: %s[%d][%d] = %d", ErrNonZeroDiagonal, name, i, i, m[i][i])
		}
		for j := 0; j < n; j++ {
			if m[i][j] < 0 {
				return fmt.Errorf("%w: %s[%d][%d] = %d", ErrNegativeDistance, name, i, j, m[i][j])
			}
			if symmetric && m[i][j] != m[j][i] {
				return fmt.Errorf("%w: %s[%d][%d] = %d but [%d][%d] = %d",
					ErrAsymmetricDistance, name, i, j, m[i][j], j, i, m[j][i])
			}
		}
	}
	return nil
}

func validateNode(n Node) error {
	if n.ServiceTime < 0 {
		return fmt.Errorf("%w: %q", ErrNegativeServiceTime, n.ID)
	}
	if w := n.Window; w != nil {
		if w.Earliest < 0 || w.Latest < 0 {
			return fmt.Errorf("%w: %q [%d, %d]", ErrNegativeWindow, n.ID, w.Earliest, w.Latest)
		}
		if w.Earliest > w.Latest {
			return fmt.Errorf("%w: %q [%d, %d]", ErrWindowInverted, n.ID, w.Earliest, w.Latest)
		}
	}
	for skill, req := range n.Requirements {
		if req < 0 {
			return fmt.Errorf("%w: %q needs %d %s", ErrNegativeRequirement, n.ID, req, skill)
		}
	}
	return nil
}

func (in *Instance) validateWorkforce() error {
	vocab := map[string]bool{}
	for _, s := range in.Skills {
		vocab[s] = true
	}
	known := func(s string) bool { return len(vocab) == 0 || vocab[s] }

	for _, w := range in.Workers {
		if w.LaborLimit < 0 {
			return fmt.Errorf("%w: worker %q", ErrNegativeLabor, w.ID)
		}
		for _, s := range w.Skills {
			if !known(s) {
				return fmt.Errorf("%w: worker %q has %q", ErrUnknownSkill, w.ID, s)
			}
		}
	}

	holders := in.SkillHolders()
	for _, c := range in.Customers {
		for skill, req := range c.Requirements {
			if !known(skill) {
				return fmt.Errorf("%w: customer %q requires %q", ErrUnknownSkill, c.ID, skill)
			}
			if req > holders[skill] {
				return fmt.Errorf("%w: customer %q requires %d %s, workforce has %d",
					ErrSkillShortage, c.ID, req, skill, holders[skill])
			}
		}
	}
	return nil
}
