package instance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toy() *Instance {
	return &Instance{
		Name:      "toy",
		Depot:     Node{ID: "depot"},
		Customers: []Node{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}},
		Distances: [][]int64{
			{0, 10, 15, 20},
			{10, 0, 35, 25},
			{15, 35, 0, 30},
			{20, 25, 30, 0},
		},
		Vehicles: []string{"v0", "v1"},
	}
}

func TestValidateAcceptsToy(t *testing.T) {
	in := toy()
	require.NoError(t, in.Validate())
	assert.Equal(t, 4, in.NumNodes())
	assert.Equal(t, "c2", in.Node(2).ID)
	assert.Equal(t, 2, in.IndexOf("c2"))
	assert.Equal(t, -1, in.IndexOf("nope"))
	assert.Equal(t, int64(35), in.TravelTime(1, 2))
	assert.False(t, in.HasWorkforce())
}

func TestValidateRejectsMalformed(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(in *Instance)
		want   error
	}{
		{"no vehicles", func(in *Instance) { in.Vehicles = nil }, ErrNoVehicles},
		{"no customers", func(in *Instance) { in.Customers = nil; in.Distances = [][]int64{{0}} }, ErrNoCustomers},
		{"duplicate customer", func(in *Instance) { in.Customers[1].ID = "c1" }, ErrDuplicateID},
		{"duplicate vehicle", func(in *Instance) { in.Vehicles = []string{"v", "v"} }, ErrDuplicateID},
		{"short row", func(in *Instance) { in.Distances[2] = []int64{15, 35} }, ErrDistanceShape},
		{"missing row", func(in *Instance) { in.Distances = in.Distances[:3] }, ErrDistanceShape},
		{"asymmetric", func(in *Instance) { in.Distances[1][2] = 34 }, ErrAsymmetricDistance},
		{"negative", func(in *Instance) { in.Distances[1][2], in.Distances[2][1] = -1, -1 }, ErrNegativeDistance},
		{"diagonal", func(in *Instance) { in.Distances[3][3] = 1 }, ErrNonZeroDiagonal},
		{"travel shape", func(in *Instance) { in.TravelTimes = [][]int64{{0}} }, ErrDistanceShape},
		{"inverted window", func(in *Instance) { in.Customers[0].Window = &TimeWindow{Earliest: 9, Latest: 3} }, ErrWindowInverted},
		{"negative window", func(in *Instance) { in.Customers[0].Window = &TimeWindow{Earliest: -1, Latest: 3} }, ErrNegativeWindow},
		{"negative service", func(in *Instance) { in.Customers[2].ServiceTime = -4 }, ErrNegativeServiceTime},
		{"depot service", func(in *Instance) { in.Depot.ServiceTime = 3 }, ErrDepotServiceTime},
		{"requirement without workers", func(in *Instance) {
			in.Customers[0].Requirements = map[string]int{"electric": 1}
		}, ErrSkillShortage},
		{"requirement beyond holders", func(in *Instance) {
			in.Workers = []Worker{{ID: "w1", Skills: []string{"electric"}, LaborLimit: 10}}
			in.Customers[0].Requirements = map[string]int{"electric": 2}
		}, ErrSkillShortage},
		{"negative requirement", func(in *Instance) {
			in.Customers[0].Requirements = map[string]int{"electric": -1}
		}, ErrNegativeRequirement},
		{"unknown worker skill", func(in *Instance) {
			in.Skills = []string{"electric"}
			in.Workers = []Worker{{ID: "w1", Skills: []string{"welding"}, LaborLimit: 10}}
		}, ErrUnknownSkill},
		{"negative labor", func(in *Instance) {
			in.Workers = []Worker{{ID: "w1", LaborLimit: -1}}
		}, ErrNegativeLabor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := toy()
			tc.mutate(in)
			err := in.Validate()
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSkillHoldersCountsEachWorkerOnce(t *testing.T) {
	in := toy()
	in.Workers = []Worker{
		{ID: "w1", Skills: []string{"electric", "electric"}},
		{ID: "w2", Skills: []string{"electric", "plumbing"}},
	}
	assert.Equal(t, map[string]int{"electric": 2, "plumbing": 1}, in.SkillHolders())
	assert.True(t, in.Workers[1].HasSkill("plumbing"))
	assert.False(t, in.Workers[0].HasSkill("plumbing"))
}

func TestLoadFile(t *testing.T) {
	in, err := LoadFile("testdata/toy.yaml")
	require.NoError(t, err)
	assert.Equal(t, toy(), in)

	crew, err := LoadFile("testdata/crew.json")
	require.NoError(t, err)
	assert.True(t, crew.HasWorkforce())
	assert.Equal(t, 1, crew.Customers[2].Requirements["plumbing"])
	assert.Equal(t, int64(10), crew.Workers[2].LaborLimit)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader("depot: {id: d}\nvehicle: [v]\n"), FormatYAML)
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(`{"depot":{"id":"d"},"speed":3}`), FormatJSON)
	assert.Error(t, err)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatOf("a/b.JSON"))
	assert.Equal(t, FormatYAML, FormatOf("a/b.yml"))
	assert.Equal(t, FormatYAML, FormatOf("noext"))
}
