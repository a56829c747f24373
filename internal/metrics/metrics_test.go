package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSolve(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	before := testutil.ToFloat64(Solves.WithLabelValues("OPTIMAL"))
	ObserveSolve("OPTIMAL", 120*time.Millisecond, 4000, 59)
	ObserveSolve("error", 0, 0, 0)
	assert.Equal(t, before+1, testutil.ToFloat64(Solves.WithLabelValues("OPTIMAL")))
	assert.Equal(t, float64(1), testutil.ToFloat64(Solves.WithLabelValues("error")))

	n, err := testutil.GatherAndCount(Registry, "crewroute_solves_total", "crewroute_search_nodes")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
