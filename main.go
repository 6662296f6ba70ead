package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikhilsahni7/FormX/auth"
	"github.com/nikhilsahni7/FormX/config"
	"github.com/nikhilsahni7/FormX/db"
	"github.com/nikhilsahni7/FormX/fill"
	"github.com/nikhilsahni7/FormX/forms"
	"github.com/nikhilsahni7/FormX/handlers"
	"github.com/nikhilsahni7/FormX/integrations"
	"github.com/nikhilsahni7/FormX/logging"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFile)

	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		log.Warn("GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set, Google login will fail")
	}

	gdb, err := db.Open(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	sessionStore, err := auth.NewSessionStore(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to create session store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := fill.NewRegistry(cfg.SessionTTL, log)
	go registry.Run(ctx, time.Minute)

	store := db.NewStore(gdb)
	server := &handlers.Server{
		DB:        gdb,
		Store:     store,
		Collector: forms.NewCollector(store, store, integrations.NewDispatcher(gdb, cfg.WebhookTimeout, log), log),
		Sessions:  registry,
		Auth:      auth.NewAuthenticator(sessionStore, cfg),
		Config:    cfg,
		Log:       log,
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           c.Handler(server.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Addr).Info("server starting")
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
