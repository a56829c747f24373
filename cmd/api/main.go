package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"crewroute/internal/api"
	"crewroute/internal/buildinfo"
	"crewroute/internal/config"
	"crewroute/internal/obs"
	"crewroute/internal/store"
	"crewroute/internal/webhooks"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"), ".env")
	log := obs.NewLogger(cfg.Log.Level, cfg.Log.Pretty, os.Stderr)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	log.Info().Str("version", buildinfo.String()).Msg("starting crewroute api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer func() { _ = st.Close() }()

	var broker api.EventBroker
	if cfg.RedisURL != "" {
		rb, err := api.NewRedisBroker(cfg.RedisURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("connect redis")
		}
		broker = rb
		log.Info().Msg("events: redis")
	} else {
		broker = api.NewBroker()
	}
	defer func() { _ = broker.Close() }()

	pub := webhooks.NewPublisher(st, cfg.Webhooks.URLs, cfg.Webhooks.Secret, log)
	worker := webhooks.NewWorker(st, cfg.Webhooks.MaxAttempts, cfg.Webhooks.Timeout, cfg.Webhooks.Interval, log)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	s := api.NewServer(cfg, st, broker, pub, log)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("async runs did not finish")
	}
	<-workerDone
}

func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info().Msg("store: memory")
		return store.NewMemory(), nil
	}
	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
	}
	log.Info().Msg("store: postgres")
	return pg, nil
}
