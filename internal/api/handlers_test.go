package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewroute/internal/config"
	"crewroute/internal/model"
	"crewroute/internal/store"
	"crewroute/internal/webhooks"
)

const toyInstance = `{
	"name": "toy",
	"depot": {"id": "depot"},
	"customers": [{"id": "c1"}, {"id": "c2"}, {"id": "c3"}],
	"distances": [[0,10,15,20],[10,0,35,25],[15,35,0,30],[20,25,30,0]],
	"vehicles": ["v0", "v1"]
}`

func solveBody(extra string) string {
	return `{"instance": ` + toyInstance + `, "workers": 1, "timeLimitMs": 60000` + extra + `}`
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, http.Handler) {
	t.Helper()
	cfg := config.Default()
	cfg.RateLimit = config.RateLimit{PerSecond: 1000, Burst: 1000}
	if mutate != nil {
		mutate(&cfg)
	}
	s := NewServer(cfg, store.NewMemory(), nil, nil, zerolog.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s, s.Handler()
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeRun(t *testing.T, rr *httptest.ResponseRecorder) model.Run {
	t.Helper()
	var run model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &run), rr.Body.String())
	return run
}

func TestHealthReady(t *testing.T) {
	_, h := newTestServer(t, nil)

	rr := do(h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Contains(t, health, "build")
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))

	rr = do(h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSolverConfig(t *testing.T) {
	_, h := newTestServer(t, func(c *config.Config) { c.Solver.Workers = 3 })
	rr := do(h, http.MethodGet, "/v1/solver/config", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var got model.SolverDefaults
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, 3, got.Workers)
	assert.Equal(t, int64(10000), got.TimeLimitMs)
	assert.Equal(t, int64(300000), got.MaxTimeLimitMs)
}

func TestSolveSync(t *testing.T) {
	s, h := newTestServer(t, nil)
	rr := do(h, http.MethodPost, "/v1/solve", solveBody(""))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	run := decodeRun(t, rr)
	assert.Equal(t, model.RunDone, run.State)
	assert.Equal(t, "OPTIMAL", run.Status)
	require.NotNil(t, run.Objective)
	assert.Equal(t, int64(85), *run.Objective)
	require.NotNil(t, run.Plan)
	assert.Len(t, run.Plan.Routes, 2)
	assert.NotNil(t, run.Host)
	assert.NotNil(t, run.FinishedAt)

	stored, err := s.Store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunDone, stored.State)
}

func TestSolveAsync(t *testing.T) {
	_, h := newTestServer(t, nil)
	rr := do(h, http.MethodPost, "/v1/solve?async=true", solveBody(""))
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	run := decodeRun(t, rr)
	assert.Equal(t, model.RunQueued, run.State)
	assert.Equal(t, "/v1/runs/"+run.ID, rr.Header().Get("Location"))

	var final model.Run
	require.Eventually(t, func() bool {
		rr := do(h, http.MethodGet, "/v1/runs/"+run.ID, "")
		if rr.Code != http.StatusOK {
			return false
		}
		final = decodeRun(t, rr)
		return final.State.Finished()
	}, 30*time.Second, 20*time.Millisecond)
	assert.Equal(t, model.RunDone, final.State)
	require.NotNil(t, final.Objective)
	assert.Equal(t, int64(85), *final.Objective)

	rr = do(h, http.MethodGet, "/v1/runs?state=done", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var page model.RunPage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, run.ID, page.Items[0].ID)
	assert.Nil(t, page.Items[0].Plan, "listings omit plans")
}

func TestSolveQueuesFinishedWebhook(t *testing.T) {
	cfg := config.Default()
	st := store.NewMemory()
	pub := webhooks.NewPublisher(st, []string{"http://hooks.example/run"}, "s3cret", zerolog.Nop())
	s := NewServer(cfg, st, nil, pub, zerolog.Nop())
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	rr := do(s.Handler(), http.MethodPost, "/v1/solve", solveBody(""))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	due, err := st.FetchDueWebhookDeliveries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, model.EventRunFinished, due[0].EventType)
	assert.Equal(t, "http://hooks.example/run", due[0].URL)
	assert.Contains(t, string(due[0].Payload), decodeRun(t, rr).ID)
}

func TestSolveRejectsBadInput(t *testing.T) {
	_, h := newTestServer(t, nil)
	cases := map[string]string{
		"not json":      `{"instance":`,
		"unknown field": `{"instance": ` + toyInstance + `, "bogus": 1}`,
		"trailing data": solveBody("") + `{}`,
		"negative time": solveBody(`, "timeLimitMs": -1`),
		"many workers":  `{"instance": ` + toyInstance + `, "workers": 100000}`,
		"bad penalty":   solveBody(`, "penaltyWeight": -2`),
		"bad instance":  `{"instance": {"depot": {"id": "d"}, "customers": [{"id": "c1"}], "distances": [[0]], "vehicles": ["v0"]}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := do(h, http.MethodPost, "/v1/solve", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
		})
	}

	rr := do(h, http.MethodPost, "/v1/solve?async=maybe", solveBody(""))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSolvePenaltyWeights(t *testing.T) {
	_, h := newTestServer(t, nil)

	rr := do(h, http.MethodPost, "/v1/solve", solveBody(`, "penaltyWeight": -1`))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	run := decodeRun(t, rr)
	assert.Equal(t, "OPTIMAL", run.Status)
	require.NotNil(t, run.Objective)
	assert.Equal(t, int64(85), *run.Objective)

	rr = do(h, http.MethodPost, "/v1/solve", solveBody(`, "penaltyWeight": 2147483648`))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
}

func TestSolveRateLimited(t *testing.T) {
	_, h := newTestServer(t, func(c *config.Config) {
		c.RateLimit = config.RateLimit{PerSecond: 0.5, Burst: 1}
	})
	rr := do(h, http.MethodPost, "/v1/solve", `{`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(h, http.MethodPost, "/v1/solve", solveBody(""))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))
}

func TestRunsQueries(t *testing.T) {
	_, h := newTestServer(t, nil)

	rr := do(h, http.MethodGet, "/v1/runs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var page model.RunPage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Empty(t, page.Items)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/v1/runs?state=paused", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/v1/runs?limit=-2", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/v1/runs?cursor=nope", "").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/v1/runs/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodDelete, "/v1/runs", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t, nil)
	do(h, http.MethodGet, "/healthz", "")

	rr := do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "http_requests_total")
}

func TestRunEventsStream(t *testing.T) {
	_, h := newTestServer(t, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/solve?async=true", "application/json", bytes.NewReader([]byte(solveBody(""))))
	require.NoError(t, err)
	var run model.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/runs/" + run.ID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	var events []model.Event
	for {
		var evt model.Event
		if err := conn.ReadJSON(&evt); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected close: %v", err)
			break
		}
		assert.Equal(t, run.ID, evt.RunID)
		events = append(events, evt)
	}
	require.NotEmpty(t, events)
	assert.Equal(t, EventRunSnapshot, events[0].Type)

	last := events[len(events)-1]
	if last.Type == EventRunSnapshot {
		// the run finished before the stream opened
		snap, ok := last.Data["run"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, string(model.RunDone), snap["state"])
	} else {
		assert.Equal(t, model.EventRunFinished, last.Type)
		assert.Equal(t, float64(85), last.Data["objective"])
	}
}

func TestRunEventsUnknownRun(t *testing.T) {
	_, h := newTestServer(t, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/runs/nope/events"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunEventsClosesWhenStoreShowsFinish(t *testing.T) {
	prev := wsPingPeriod
	wsPingPeriod = 20 * time.Millisecond
	t.Cleanup(func() { wsPingPeriod = prev })

	s, h := newTestServer(t, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx := context.Background()
	run, err := s.Store.CreateRun(ctx, model.Run{Instance: "toy", State: model.RunRunning})
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/runs/" + run.ID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var first model.Event
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, EventRunSnapshot, first.Type)

	// finish without publishing, as if run.finished had been lost
	run.State = model.RunDone
	require.NoError(t, s.Store.SaveRun(ctx, run))

	var evt model.Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, EventRunSnapshot, evt.Type)
	snap, ok := evt.Data["run"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(model.RunDone), snap["state"])

	err = conn.ReadJSON(&evt)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected close: %v", err)
}
