package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewroute/internal/model"
	"crewroute/internal/store"
)

func newWorker(s store.Store, client *http.Client, maxAttempts int) *Worker {
	return &Worker{Store: s, HTTP: client, MaxAttempts: maxAttempts, Interval: time.Millisecond, Log: zerolog.Nop()}
}

func TestPublisherAndWorkerDeliverSigned(t *testing.T) {
	var gotSig, gotEvent string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(HeaderSignature)
		gotEvent = r.Header.Get(HeaderEvent)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	mem := store.NewMemory()
	pub := NewPublisher(mem, []string{srv.URL}, "secret", zerolog.Nop())
	evt := model.Event{ID: "evt_1", Type: model.EventRunFinished, RunID: "r1", TS: time.Now().UTC()}
	require.NoError(t, pub.Emit(context.Background(), evt))
	require.NoError(t, pub.Emit(context.Background(), evt))

	due, err := mem.FetchDueWebhookDeliveries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	newWorker(mem, srv.Client(), 3).processOnce(context.Background())

	assert.Equal(t, model.EventRunFinished, gotEvent)
	assert.True(t, VerifyHMAC("secret", gotBody, gotSig))
	d, ok := mem.Delivery(due[0].ID)
	require.True(t, ok)
	assert.Equal(t, store.DeliveryDelivered, d.Status)
}

func TestWorkerRetriesThenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	mem := store.NewMemory()
	id, err := mem.EnqueueWebhook(context.Background(), model.EventRunFinished, srv.URL, "", []byte(`{}`))
	require.NoError(t, err)

	w := newWorker(mem, srv.Client(), 2)
	w.processOnce(context.Background())
	d, _ := mem.Delivery(id)
	assert.Equal(t, store.DeliveryRetry, d.Status)
	assert.Equal(t, 1, d.Attempts)

	// the second attempt, once the backoff elapsed, exhausts the budget
	w.deliver(context.Background(), d)
	d, _ = mem.Delivery(id)
	assert.Equal(t, store.DeliveryFailed, d.Status)
}

func TestWorkerRunStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newWorker(store.NewMemory(), http.DefaultClient, 1).Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestEmitWithoutURLs(t *testing.T) {
	mem := store.NewMemory()
	require.NoError(t, NewPublisher(mem, nil, "", zerolog.Nop()).Emit(context.Background(), model.Event{ID: "x"}))
	due, err := mem.FetchDueWebhookDeliveries(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, time.Second, nextBackoff(0))
	assert.Equal(t, 8*time.Second, nextBackoff(3))
	assert.Equal(t, time.Hour, nextBackoff(40))
}

func TestSignatures(t *testing.T) {
	sig := SignHMAC("k", []byte("body"))
	assert.Regexp(t, `^sha256=[0-9a-f]{64}$`, sig)
	assert.True(t, VerifyHMAC("k", []byte("body"), sig))
	assert.True(t, VerifyHMAC("k", []byte("body"), sig[len("sha256="):]))
	assert.False(t, VerifyHMAC("other", []byte("body"), sig))
	assert.False(t, VerifyHMAC("k", []byte("body"), "sha256=zz"))
}
