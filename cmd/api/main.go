package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"example.com/fittrack/internal/api"
	"example.com/fittrack/internal/auth"
	"example.com/fittrack/internal/config"
	"example.com/fittrack/internal/logger"
	"example.com/fittrack/internal/outbox"
	"example.com/fittrack/internal/persistence/driver"
	authlib "example.com/fittrack/internal/platform/auth"
	"example.com/fittrack/internal/profile"
	"example.com/fittrack/internal/tracking"
	httptransport "example.com/fittrack/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("fittrack-api", zerolog.InfoLevel)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New("fittrack-api", cfg.Level())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := driver.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer closeStore()

	profileOpts := []profile.Option{profile.WithLogger(log)}
	members := profile.NewAccessor(store)
	var writer tracking.ActivityWriter = members

	var dispatcher *outbox.Dispatcher
	if cfg.EventsEnabled {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		events := outbox.New(store, cfg.EventsTopic, log)
		writer = outbox.NewRecordingWriter(members, events, log)
		profileOpts = append(profileOpts, profile.WithEventSink(events))

		dispatcher = outbox.NewDispatcher(store, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize, log)
		go dispatcher.Start(ctx)
	}

	profiles := profile.NewService(store, profileOpts...)
	sessions := tracking.NewRegistry(writer, log)
	go sessions.Run(ctx, cfg.SessionReapInterval, cfg.SessionIdleTimeout)

	authCfg := authlib.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}
	authenticator := auth.NewAuthenticator(store, authCfg, cfg.TokenTTL, auth.WithLogger(log))

	router := mux.NewRouter()
	api.NewHandler(authenticator, profiles, sessions, api.WithLogger(log)).RegisterRoutes(router)

	server := httptransport.NewServer(
		httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.Chain(router,
			httptransport.Recoverer(log),
			httptransport.RequestLogger(log),
			httptransport.CORS(cfg.CORSOrigin),
			auth.NewMiddleware(authCfg, authenticator.Revocations()).Wrap,
		),
	)
	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("address", cfg.MetricsAddress).Msg("metrics listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
	go func() {
		log.Info().Str("address", cfg.HTTPAddress).Str("store", cfg.StoreDriver).Msg("fittrack api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownCh
	log.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server shutdown failed")
	}

	cancel()
	sessions.CloseAll()
	if dispatcher != nil {
		dispatcher.Wait()
	}
}
