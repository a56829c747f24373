//go:build postgres_integration

package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewroute/internal/model"
)

func TestPostgresRunRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(t.Context(), dsn)
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.Migrate(t.Context()))

	r, err := p.CreateRun(t.Context(), model.Run{Instance: "toy", State: model.RunQueued})
	require.NoError(t, err)
	r.State = model.RunFailed
	r.Error = "boom"
	require.NoError(t, p.SaveRun(t.Context(), r))

	got, err := p.GetRun(t.Context(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, got.State)
	assert.Equal(t, "boom", got.Error)

	_, _, err = p.ListRuns(t.Context(), model.RunFailed, "", 10)
	require.NoError(t, err)
}
