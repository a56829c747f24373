// Package instance holds the static input of a routing problem: the depot,
// customers with service times, soft windows and skill requirements, the
// distance matrix, the fleet and the workforce.
//
// Node indices are dense: 0 is the depot and 1..C are the customers in
// declaration order. Matrices use the same indexing.
package instance

type TimeWindow struct {
	Earliest int64 `json:"earliest" yaml:"earliest"`
	Latest   int64 `json:"latest" yaml:"latest"`
}

type Node struct {
	ID          string      `json:"id" yaml:"id"`
	ServiceTime int64       `json:"serviceTime,omitempty" yaml:"serviceTime,omitempty"`
	Window      *TimeWindow `json:"window,omitempty" yaml:"window,omitempty"`
	// Requirements maps a skill to the minimum number of assigned workers
	// holding it.
	Requirements map[string]int `json:"requirements,omitempty" yaml:"requirements,omitempty"`
}

type Worker struct {
	ID         string   `json:"id" yaml:"id"`
	Skills     []string `json:"skills,omitempty" yaml:"skills,omitempty"`
	LaborLimit int64    `json:"laborLimit" yaml:"laborLimit"`
}

func (w Worker) HasSkill(skill string) bool {
	for _, s := range w.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

type Instance struct {
	Name      string    `json:"name,omitempty" yaml:"name,omitempty"`
	Depot     Node      `json:"depot" yaml:"depot"`
	Customers []Node    `json:"customers" yaml:"customers"`
	Distances [][]int64 `json:"distances" yaml:"distances"`
	// TravelTimes drives time propagation. When nil, Distances is used.
	TravelTimes [][]int64 `json:"travelTimes,omitempty" yaml:"travelTimes,omitempty"`
	Vehicles    []string  `json:"vehicles" yaml:"vehicles"`
	// Skills is the skill vocabulary. When empty, any skill held by a
	// worker is accepted.
	Skills  []string `json:"skills,omitempty" yaml:"skills,omitempty"`
	Workers []Worker `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// NumNodes counts the depot and the customers.
func (in *Instance) NumNodes() int { return len(in.Customers) + 1 }

func (in *Instance) NumCustomers() int { return len(in.Customers) }

// Node returns node i, where 0 is the depot.
func (in *Instance) Node(i int) Node {
	if i == 0 {
		return in.Depot
	}
	return in.Customers[i-1]
}

func (in *Instance) Distance(i, j int) int64 { return in.Distances[i][j] }

func (in *Instance) TravelTime(i, j int) int64 {
	if in.TravelTimes != nil {
		return in.TravelTimes[i][j]
	}
	return in.Distances[i][j]
}

// IndexOf returns the node index of id, or -1.
func (in *Instance) IndexOf(id string) int {
	if in.Depot.ID == id {
		return 0
	}
	for i, c := range in.Customers {
		if c.ID == id {
			return i + 1
		}
	}
	return -1
}

// HasWorkforce reports whether workers are declared. Without workers the
// crew layer of the model is skipped.
func (in *Instance) HasWorkforce() bool { return len(in.Workers) > 0 }

// SkillHolders counts workers holding each skill.
func (in *Instance) SkillHolders() map[string]int {
	out := map[string]int{}
	for _, w := range in.Workers {
		seen := map[string]bool{}
		for _, s := range w.Skills {
			if !seen[s] {
				out[s]++
				seen[s] = true
			}
		}
	}
	return out
}
