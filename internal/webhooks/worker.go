package webhooks

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"crewroute/internal/metrics"
	"crewroute/internal/store"
)

const batchSize = 50

type Worker struct {
	Store       store.Store
	HTTP        *http.Client
	MaxAttempts int
	Interval    time.Duration
	Log         zerolog.Logger
}

func NewWorker(s store.Store, maxAttempts int, timeout, interval time.Duration, log zerolog.Logger) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Worker{Store: s, HTTP: &http.Client{Timeout: timeout}, MaxAttempts: maxAttempts, Interval: interval, Log: log}
}

// Run polls for due deliveries until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processOnce(ctx)
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	items, err := w.Store.FetchDueWebhookDeliveries(ctx, batchSize)
	if err != nil {
		w.Log.Error().Err(err).Msg("webhook fetch failed")
		return
	}
	for _, it := range items {
		w.deliver(ctx, it)
	}
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
	if err != nil {
		// a malformed URL never heals
		_ = w.Store.FailWebhookDelivery(ctx, it.ID, err.Error(), 0, 0)
		w.observe(it, "failed", 0)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, it.EventType)
	req.Header.Set(HeaderDelivery, it.ID)
	if it.Secret != "" {
		req.Header.Set(HeaderSignature, SignHMAC(it.Secret, it.Payload))
	}

	start := time.Now()
	resp, err := w.HTTP.Do(req)
	latency := time.Since(start)
	code := 0
	lastErr := ""
	if err != nil {
		lastErr = err.Error()
	} else {
		code = resp.StatusCode
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if code < 200 || code >= 300 {
			lastErr = "status " + strconv.Itoa(code)
		}
	}
	ms := int(latency.Milliseconds())
	log := w.Log.With().Str("delivery", it.ID).Str("event", it.EventType).Int("code", code).Int("attempt", it.Attempts+1).Logger()

	switch {
	case lastErr == "":
		if err := w.Store.MarkWebhookDelivery(ctx, it.ID, true, nil, "", code, ms); err != nil {
			log.Error().Err(err).Msg("webhook mark failed")
		}
		w.observe(it, "delivered", latency)
	case it.Attempts+1 >= w.MaxAttempts:
		log.Warn().Str("error", lastErr).Msg("webhook given up")
		if err := w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, ms); err != nil {
			log.Error().Err(err).Msg("webhook mark failed")
		}
		w.observe(it, "failed", latency)
	default:
		next := time.Now().Add(nextBackoff(it.Attempts))
		log.Debug().Str("error", lastErr).Time("next", next).Msg("webhook retry scheduled")
		if err := w.Store.MarkWebhookDelivery(ctx, it.ID, false, &next, lastErr, code, ms); err != nil {
			log.Error().Err(err).Msg("webhook mark failed")
		}
		w.observe(it, "retry", latency)
	}
}

func (w *Worker) observe(it store.WebhookDelivery, status string, latency time.Duration) {
	metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency.Milliseconds()))
}

// nextBackoff doubles from one second and caps at an hour.
func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 12 {
		attempts = 12
	}
	return min(time.Second<<attempts, time.Hour)
}
