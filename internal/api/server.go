package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"crewroute/internal/config"
	"crewroute/internal/metrics"
	"crewroute/internal/store"
	"crewroute/internal/sysinfo"
	"crewroute/internal/webhooks"
)

type Server struct {
	Store  store.Store
	Pub    *webhooks.Publisher
	Broker EventBroker

	cfg     config.Config
	log     zerolog.Logger
	limiter *rate.Limiter
	slots   chan struct{}
	host    sysinfo.Host

	// async runs outlive their request and stop with Shutdown
	runCtx     context.Context
	cancelRuns context.CancelFunc
	runs       sync.WaitGroup
}

// NewServer wires the handlers around already opened dependencies. A nil
// broker selects the in-process one.
func NewServer(cfg config.Config, st store.Store, broker EventBroker, pub *webhooks.Publisher, log zerolog.Logger) *Server {
	if broker == nil {
		broker = NewBroker()
	}
	if pub == nil {
		pub = webhooks.NewPublisher(st, nil, "", log)
	}
	ctx, cancel := context.WithCancel(context.Background())
	metrics.RegisterDefault()
	return &Server{
		Store:      st,
		Pub:        pub,
		Broker:     broker,
		cfg:        cfg,
		log:        log,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit.PerSecond), cfg.RateLimit.Burst),
		slots:      make(chan struct{}, cfg.Solver.MaxConcurrent),
		host:       sysinfo.Collect(),
		runCtx:     ctx,
		cancelRuns: cancel,
	}
}

// Handler is the full route table behind the logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/solve", s.SolveHandler)
	mux.HandleFunc("GET /v1/solver/config", s.SolverConfigHandler)

	mux.HandleFunc("GET /v1/runs", s.RunsIndexHandler)
	mux.HandleFunc("GET /v1/runs/{id}", s.RunByIDHandler)
	mux.HandleFunc("GET /v1/runs/{id}/events", s.RunEventsHandler)

	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return s.instrument(mux)
}

// Shutdown cancels running async solves, which then finish with their best
// plan so far, and waits for them to be stored.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelRuns()
	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
