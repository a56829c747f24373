package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewroute/internal/cp"
	"crewroute/internal/model"
	"crewroute/internal/vrp"
)

func TestMemoryRunLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	r, err := m.CreateRun(ctx, model.Run{Instance: "toy", State: model.RunQueued})
	require.NoError(t, err)
	require.NotEmpty(t, r.ID)
	assert.False(t, r.CreatedAt.IsZero())

	_, err = m.CreateRun(ctx, model.Run{ID: r.ID})
	require.Error(t, err)

	obj := int64(85)
	now := time.Now()
	r.State, r.Status, r.Objective, r.FinishedAt = model.RunDone, "OPTIMAL", &obj, &now
	r.Plan = &vrp.Plan{Instance: "toy", Status: cp.Optimal, Objective: 85}
	require.NoError(t, m.SaveRun(ctx, r))

	got, err := m.GetRun(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunDone, got.State)
	require.NotNil(t, got.Plan)
	assert.Equal(t, int64(85), got.Plan.Objective)

	_, err = m.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.SaveRun(ctx, model.Run{ID: "missing"}), ErrNotFound)
}

func TestMemoryListRunsPages(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var ids []string
	for i := 0; i < 5; i++ {
		state := model.RunDone
		if i%2 == 1 {
			state = model.RunFailed
		}
		r, err := m.CreateRun(ctx, model.Run{Instance: "toy", State: state, Plan: &vrp.Plan{}})
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	page, next, err := m.ListRuns(ctx, "", "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], next)
	assert.Nil(t, page[0].Plan)

	page, next, err = m.ListRuns(ctx, "", next, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[2], ids[3]}, []string{page[0].ID, page[1].ID})

	page, next, err = m.ListRuns(ctx, "", next, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.Empty(t, next)

	page, next, err = m.ListRuns(ctx, model.RunDone, "", 0)
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.Empty(t, next)

	_, _, err = m.ListRuns(ctx, "", "nope", 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryWebhookQueue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	body := []byte(`{"id":"evt_1"}`)
	id, err := m.EnqueueWebhook(ctx, "run.finished", "http://hook", "s3cret", body)
	require.NoError(t, err)
	again, err := m.EnqueueWebhook(ctx, "run.finished", "http://hook", "s3cret", body)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	due, err := m.FetchDueWebhookDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "s3cret", due[0].Secret)

	later := time.Now().Add(time.Hour)
	require.NoError(t, m.MarkWebhookDelivery(ctx, id, false, &later, "boom", 500, 3))
	due, err = m.FetchDueWebhookDeliveries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	require.NoError(t, m.FailWebhookDelivery(ctx, id, "boom", 500, 3))
	d, ok := m.Delivery(id)
	require.True(t, ok)
	assert.Equal(t, DeliveryFailed, d.Status)
	assert.Equal(t, 2, d.Attempts)

	assert.ErrorIs(t, m.MarkWebhookDelivery(ctx, "missing", true, nil, "", 200, 1), ErrNotFound)
}
