package api

import (
	"context"
	"sync"
	"time"

	"crewroute/internal/model"
)

// EventBroker fans run events out to websocket subscribers.
type EventBroker interface {
	Subscribe(runID string) chan model.Event
	// Unsubscribe stops delivery; ch is closed once no more sends can happen.
	Unsubscribe(runID string, ch chan model.Event)
	Publish(runID string, evt model.Event)
	Ping(ctx context.Context) error
	Close() error
}

// finalSendWait bounds how long Publish waits on a full subscriber for
// run.finished, the event that ends a stream.
const finalSendWait = time.Second

// Broker is the in-process EventBroker. Slow subscribers drop events rather
// than block publishers, except run.finished which waits up to finalSendWait.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan model.Event]struct{} // runID -> set of channels
}

var _ EventBroker = (*Broker)(nil)

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan model.Event]struct{}{}}
}

func (b *Broker) Subscribe(runID string) chan model.Event {
	ch := make(chan model.Event, 16)
	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = map[chan model.Event]struct{}{}
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(runID string, ch chan model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[runID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, runID)
	}
	close(ch)
}

func (b *Broker) Publish(runID string, evt model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[runID] {
		if evt.Type == model.EventRunFinished {
			t := time.NewTimer(finalSendWait)
			select {
			case ch <- evt:
			case <-t.C:
			}
			t.Stop()
			continue
		}
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *Broker) Ping(ctx context.Context) error { return nil }

func (b *Broker) Close() error { return nil }
