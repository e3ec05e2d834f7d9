package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recruitgate.org/internal/auth"
	"recruitgate.org/internal/config"
	"recruitgate.org/internal/devapi"
	"recruitgate.org/internal/httpapi"
	"recruitgate.org/internal/obs"
)

var version = "0.1.0"

func main() {
	log := obs.Logger()

	cfg, err := config.LoadDevAPI()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if err := obs.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		log.WithError(err).Fatal("configure logging")
	}
	obs.Init()
	obs.InitBuildInfo("devapi", version, "dev")

	issuer, err := auth.NewIssuer(cfg.Secret, auth.WithTokenTTL(cfg.TokenTTL))
	if err != nil {
		log.WithError(err).Fatal("token issuer")
	}
	api := devapi.New(issuer)
	if cfg.SeedUser != "" {
		role, err := auth.ParseRole(cfg.SeedRole)
		if err != nil {
			log.WithError(err).Fatal("seed role")
		}
		if err := api.Seed(cfg.SeedUser, cfg.SeedEmail, cfg.SeedPassword, role); err != nil {
			log.WithError(err).Fatal("seed user")
		}
		log.WithField("user", cfg.SeedUser).WithField("role", role).Info("seeded user")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", httpapi.Healthz("recruitgate-devapi", version))
	mux.Handle("GET /metrics", obs.Handler())
	mux.Handle("/", api.Handler())

	var h http.Handler = obs.Instrument(mux)
	h = httpapi.CORS(h, cfg.AllowedOrigins...)
	h = httpapi.LoggingJSON(h)
	h = httpapi.RequestID(h)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("starting devapi")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("stopped")
}
