package webhooks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"crewroute/internal/model"
	"crewroute/internal/store"
)

// Publisher queues run events for every configured endpoint; the Worker
// delivers them.
type Publisher struct {
	Store  store.Store
	URLs   []string
	Secret string
	Log    zerolog.Logger
}

func NewPublisher(s store.Store, urls []string, secret string, log zerolog.Logger) *Publisher {
	return &Publisher{Store: s, URLs: urls, Secret: secret, Log: log}
}

// Emit enqueues evt once per URL. Enqueueing the same event id twice is a
// no-op in the store.
func (p *Publisher) Emit(ctx context.Context, evt model.Event) error {
	if len(p.URLs) == 0 {
		return nil
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("webhooks: encode %s: %w", evt.Type, err)
	}
	for _, u := range p.URLs {
		id, err := p.Store.EnqueueWebhook(ctx, evt.Type, u, p.Secret, body)
		if err != nil {
			return fmt.Errorf("webhooks: enqueue %s for %s: %w", evt.Type, u, err)
		}
		p.Log.Debug().Str("delivery", id).Str("event", evt.Type).Str("run", evt.RunID).Msg("webhook queued")
	}
	return nil
}
