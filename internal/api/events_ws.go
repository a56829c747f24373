package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"crewroute/internal/model"
	"crewroute/internal/store"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second

	// EventRunSnapshot is the first message of every stream.
	EventRunSnapshot = "run.snapshot"
)

// wsPingPeriod also paces the store check that ends streams whose
// run.finished event was lost.
var wsPingPeriod = wsPongWait * 9 / 10

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// RunEventsHandler streams a run's events over a websocket, starting with a
// snapshot of the run. The server closes the stream after run.finished.
func (s *Server) RunEventsHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	// subscribe before the snapshot so a finish in between is not missed
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	run, err := s.Store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Run not found", err.Error(), r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get run failed", err.Error(), r.URL.Path)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already answered
		return
	}
	defer func() { _ = conn.Close() }()
	log := s.log.With().Str("run", id).Logger()

	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(v)
	}
	closeWith := func(code int, text string) {
		msg := websocket.FormatCloseMessage(code, text)
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
	}

	snapshot := func(run model.Run) model.Event {
		return model.Event{Type: EventRunSnapshot, RunID: id, TS: time.Now().UTC(), Data: map[string]any{"run": run.Summary()}}
	}
	if err := write(snapshot(run)); err != nil {
		return
	}
	if run.State.Finished() {
		closeWith(websocket.CloseNormalClosure, "run finished")
		return
	}

	// read pump: only control frames are expected; a read error means the
	// client is gone
	gone := make(chan struct{})
	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if cur, err := s.Store.GetRun(r.Context(), id); err == nil && cur.State.Finished() {
				_ = write(snapshot(cur))
				closeWith(websocket.CloseNormalClosure, "run finished")
				return
			}
		case evt, ok := <-ch:
			if !ok {
				closeWith(websocket.CloseGoingAway, "event stream ended")
				return
			}
			if err := write(evt); err != nil {
				log.Debug().Err(err).Msg("ws write failed")
				return
			}
			if evt.Type == model.EventRunFinished {
				closeWith(websocket.CloseNormalClosure, "run finished")
				return
			}
		}
	}
}
