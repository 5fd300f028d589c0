package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"traffic-analytics/internal/auth"
	"traffic-analytics/internal/config"
	httphandler "traffic-analytics/internal/http"
	"traffic-analytics/internal/http/middleware"
	"traffic-analytics/internal/ingest"
	"traffic-analytics/internal/logger"
	"traffic-analytics/internal/model"
	"traffic-analytics/internal/service"
	"traffic-analytics/internal/store"
	"traffic-analytics/internal/watch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	documentStore, err := store.Open(cfg.Storage.Path, cfg.Storage.BaseKey, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to open document store")
	}

	analytics := service.New(documentStore, service.Config{
		DedupWindow:        time.Duration(cfg.Analytics.DedupWindowMinutes) * time.Minute,
		MaxIncidents:       cfg.Analytics.MaxIncidents,
		MaxRecommendations: cfg.Analytics.MaxRecommendations,
		MaxEmergencyEvents: cfg.Analytics.MaxEmergencyEvents,
		RetentionDays:      cfg.Analytics.RetentionDays,
	}, appLogger)

	hub := watch.NewHub(appLogger)
	analytics.SetNotifier(func() {
		hub.Broadcast(watch.Message{Type: "analytics_updated"})
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher := watch.New(documentStore.Path(), documentStore, analytics, hub, appLogger)
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			appLogger.Error().Err(err).Msg("storage watcher stopped")
		}
	}()

	if cfg.Kafka.Enabled() {
		consumer, err := ingest.NewConsumer(ingest.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, func(_ context.Context, _, value []byte) error {
			var obs model.Observation
			if err := json.Unmarshal(value, &obs); err != nil {
				return fmt.Errorf("decode observation: %w", err)
			}
			analytics.Ingest(obs)
			return nil
		}, appLogger)
		if err != nil {
			appLogger.Fatal().Err(err).Msg("failed to start kafka consumer")
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				appLogger.Error().Err(err).Msg("kafka consumer stopped")
			}
		}()
	}

	var tokenParser *auth.Parser
	if cfg.Auth.AccessSecret != "" {
		tokenParser = auth.NewParser(cfg.Auth.AccessSecret)
	} else {
		appLogger.Warn().Msg("no JWT secret configured, running open with shared namespace")
	}

	handler := httphandler.NewHandler(analytics, documentStore, hub, appLogger)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().Str("addr", addr).Str("storage", cfg.Storage.Path).Msg("starting traffic analytics service")

	if err := router.Run(addr); err != nil {
		appLogger.Error().Err(err).Msg("failed to start server")
		os.Exit(1)
	}
}
