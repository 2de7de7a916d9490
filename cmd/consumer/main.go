package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"example.com/fittrack/internal/config"
	"example.com/fittrack/internal/consumer"
	"example.com/fittrack/internal/logger"
	"example.com/fittrack/internal/persistence/driver"
	"example.com/fittrack/internal/profile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("fittrack-consumer", zerolog.InfoLevel)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New("fittrack-consumer", cfg.Level())
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn().Msg("memory store is process-local; progress written here is not visible to the api")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := driver.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer closeStore()

	handler := consumer.NewProgressHandler(profile.NewAccessor(store), log)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("address", cfg.MetricsAddress).Msg("consumer metrics listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroupID,
		Topic:           cfg.EventsTopic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		MaxWait:         time.Second,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})
	proc := consumer.NewProcessor(reader, handler,
		consumer.WithLogger(log),
		consumer.WithRetry(cfg.ConsumerRetryAttempts, cfg.ConsumerRetryBackoff),
	)

	runErr := make(chan error, 1)
	go func() {
		log.Info().Str("topic", cfg.EventsTopic).Str("group", cfg.ConsumerGroupID).Msg("consumer started")
		err := proc.Run(ctx)
		// Close flushes commits of the messages handled before Run returned.
		if closeErr := reader.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("close reader")
		}
		runErr <- err
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var failure error
	select {
	case <-stop:
		log.Info().Msg("consumer shutdown requested")
		cancel()
		<-runErr
	case err := <-runErr:
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			// The failed offset stays uncommitted; exiting lets the supervisor
			// restart the consumer from it.
			failure = err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server shutdown error")
	}
	if failure != nil {
		log.Fatal().Err(failure).Msg("consumer stopped on a failed event")
	}
}
