// README: Entry point; loads config, wires stores and services, serves HTTP until interrupted.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tenkap/internal/config"
	httptransport "tenkap/internal/http"
	"tenkap/internal/infra"
	"tenkap/internal/maps"
	"tenkap/internal/modules/engagement"
	"tenkap/internal/modules/location"
	"tenkap/internal/modules/matching"
	"tenkap/internal/modules/notify"
	"tenkap/internal/modules/nudge"
	"tenkap/internal/modules/spots"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := infra.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("postgres init", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	var (
		verifier infra.TokenVerifier
		pusher   nudge.Pusher
	)
	if cfg.FirebaseEnabled() {
		app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			logger.Fatal("firebase init", zap.Error(err))
		}
		if verifier, err = infra.NewFirebaseVerifier(ctx, app); err != nil {
			logger.Fatal("firebase auth init", zap.Error(err))
		}
		fcm, err := infra.NewMessaging(ctx, app)
		if err != nil {
			logger.Fatal("firebase messaging init", zap.Error(err))
		}
		pusher = notify.NewService(fcm, logger.Named("notify"))
	} else {
		logger.Warn("TENKAP_FIREBASE_PROJECT_ID not set; auth and push delivery disabled")
	}

	var places spots.PlacesSource
	if cfg.Maps.APIKey != "" {
		placesSvc, err := maps.NewPlacesService(cfg.Maps.APIKey)
		if err != nil {
			logger.Fatal("maps init", zap.Error(err))
		}
		places = placesSvc
	}

	locationSvc := location.NewService(location.NewStore(dbPool, redisClient), logger.Named("location"))

	matchingSvc := matching.NewService(
		matching.NewStore(dbPool, redisClient),
		locationSvc,
		cfg.Matching,
		logger.Named("matching"),
	)

	spotsSvc := spots.NewService(spots.NewStore(dbPool), places, cfg.Spots, logger.Named("spots"))
	engagementSvc := engagement.NewService(engagement.NewStore(redisClient), cfg.Engagement.DailyQuestionLimit)

	selector := nudge.NewSelector(spotsSvc, engagementSvc, logger.Named("nudge"))
	nudgeSvc := nudge.NewService(selector, nudge.Deps{
		Samples:   locationSvc,
		Matches:   matchingSvc,
		Questions: engagementSvc,
		Pusher:    pusher,
	}, logger.Named("nudge"))

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Matching:       matchingSvc,
		Nudges:         nudgeSvc,
		Location:       locationSvc,
		Visits:         spotsSvc,
		Verifier:       verifier,
		Logger:         logger.Named("http"),
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server", zap.Error(err))
	}
}
