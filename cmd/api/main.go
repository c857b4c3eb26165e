package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GoSim-25-26J-441/template-registry/config"
	"github.com/GoSim-25-26J-441/template-registry/internal/bootstrap"
	"github.com/GoSim-25-26J-441/template-registry/internal/logging"
	projecthttp "github.com/GoSim-25-26J-441/template-registry/internal/projects/http"
	templatehttp "github.com/GoSim-25-26J-441/template-registry/internal/templates/http"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/reconcile"
)

const serviceName = "template-registry"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}

	logging.Init(logging.Options{Level: cfg.App.LogLevel, Format: cfg.App.LogFormat})
	log := logging.L()
	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewApp(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer app.Close()

	var subscriber templatehttp.Subscriber
	if app.Events != nil {
		subscriber = app.Events
	}

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: serviceName,
		Version:     cfg.App.Version,
		CORSOrigins: cfg.Server.CORSOrigins,
		DB:          app.Stores.DB,
		Redis:       app.Redis,
		Keys:        app.Projects,
		Templates:   templatehttp.New(app.Templates, subscriber, cfg.Build.CallbackSecret),
		Projects:    projecthttp.New(app.Projects),
	})

	if cfg.Build.ReconcileSpec != "" {
		scheduler := reconcile.NewScheduler(app.Templates, cfg.Build.ReconcileSpec, cfg.Build.Timeout, cfg.Build.ReconcileBatch)
		if err := scheduler.Start(); err != nil {
			log.WithError(err).Fatal("invalid BUILD_RECONCILE_SPEC")
		}
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":    cfg.Server.Port,
			"driver":  cfg.Database.Driver,
			"backend": cfg.Build.Backend,
			"redis":   app.Redis != nil,
			"env":     cfg.App.Environment,
			"version": cfg.App.Version,
		}).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
