package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"crewroute/internal/model"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so that every API
// replica sees events of runs solved by the others.
type RedisBroker struct {
	rdb *redis.Client
	log zerolog.Logger

	mu   sync.Mutex
	subs map[chan model.Event]*redis.PubSub
}

var _ EventBroker = (*RedisBroker)(nil)

func NewRedisBroker(url string, log zerolog.Logger) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBroker{rdb: redis.NewClient(opt), log: log, subs: map[chan model.Event]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(runID string) chan model.Event {
	ch := make(chan model.Event, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ps := b.rdb.Subscribe(ctx, chanName(runID))
	// wait for the confirmation so no event published after Subscribe is lost
	if _, err := ps.Receive(ctx); err != nil {
		b.log.Warn().Err(err).Str("run", runID).Msg("redis subscribe not confirmed")
	}
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt model.Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.log.Warn().Err(err).Str("run", runID).Msg("dropping malformed event")
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch
}

// Unsubscribe closes the Pub/Sub connection; the forwarding goroutine then
// closes ch.
func (b *RedisBroker) Unsubscribe(runID string, ch chan model.Event) {
	b.mu.Lock()
	ps := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(runID string, evt model.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		b.log.Error().Err(err).Str("run", runID).Msg("encode event")
		return
	}
	if err := b.rdb.Publish(ctx, chanName(runID), data).Err(); err != nil {
		b.log.Warn().Err(err).Str("run", runID).Str("event", evt.Type).Msg("redis publish failed")
	}
}

func (b *RedisBroker) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *RedisBroker) Close() error {
	b.mu.Lock()
	for ch, ps := range b.subs {
		_ = ps.Close()
		delete(b.subs, ch)
	}
	b.mu.Unlock()
	return b.rdb.Close()
}

func chanName(runID string) string { return "crewroute:run:" + runID }
