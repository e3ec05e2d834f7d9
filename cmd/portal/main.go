package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"recruitgate.org/internal/apiclient"
	"recruitgate.org/internal/auth"
	"recruitgate.org/internal/config"
	"recruitgate.org/internal/httpapi"
	"recruitgate.org/internal/obs"
	"recruitgate.org/internal/session"
	"recruitgate.org/internal/tokenstore"
	"recruitgate.org/internal/web"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	log := obs.Logger()

	cfg, err := config.LoadPortal()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if err := obs.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		log.WithError(err).Fatal("configure logging")
	}
	obs.Init()
	obs.InitBuildInfo("portal", version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("open token store")
	}
	defer backend.Close()

	var decoderOpts []auth.DecoderOption
	if cfg.TokenSecret != "" {
		decoderOpts = append(decoderOpts, auth.WithVerificationKey(cfg.TokenSecret))
	}
	decoder := auth.NewDecoder(decoderOpts...)

	client, err := apiclient.New(cfg.BackendURL,
		apiclient.WithTimeout(cfg.BackendTimeout),
		apiclient.WithRateLimit(cfg.BackendRPS, cfg.BackendBurst))
	if err != nil {
		log.WithError(err).Fatal("backend client")
	}

	sessions := session.NewRegistry(backend, cfg.Origin, decoder, session.WithIdleTTL(cfg.ProfileIdleTTL))
	go sessions.Run(ctx)

	probe := httpapi.ProbeFunc(backend.Ping)
	portal := web.New(sessions, client, decoder,
		web.WithVersion("recruitgate-portal", version),
		web.WithReadiness(probe),
		web.WithSecureCookie(cfg.CookieSecure),
		web.WithMaxBodyBytes(cfg.MaxBodyBytes),
		web.WithRateLimit(cfg.RateBurst, cfg.RatePerSecond),
		web.WithTrustedProxy(cfg.TrustProxy))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           portal.Handler(ctx),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// no WriteTimeout: /session/events streams for as long as the tab is open
		IdleTimeout: 60 * time.Second,
	}

	health := httpapi.NewHealthServer(probe, "recruitgate.portal")
	grpcServer := grpc.NewServer()
	health.Register(grpcServer)
	go health.Run(ctx, cfg.HealthInterval)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.WithError(err).Fatal("listen grpc")
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.WithError(err).Error("grpc serve")
		}
	}()

	go func() {
		log.WithField("addr", srv.Addr).WithField("grpc_addr", cfg.GRPCAddr).
			WithField("version", version).Info("starting portal")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	log.Info("stopped")
}

func openStore(ctx context.Context, cfg config.Portal) (tokenstore.Backend, error) {
	if cfg.StoreDriver == "" || cfg.StoreDriver == "memory" {
		obs.Logger().Warn("token store is in memory; sessions end with the process")
		return tokenstore.NewMemory(), nil
	}
	dialect, err := tokenstore.ParseDialect(cfg.StoreDriver)
	if err != nil {
		return nil, err
	}
	backend, err := tokenstore.Open(dialect, cfg.StoreDSN)
	if err != nil {
		return nil, err
	}
	if cfg.MigrateOnBoot {
		mgr, err := backend.Migrator()
		if err != nil {
			backend.Close()
			return nil, err
		}
		applied, err := mgr.Up(ctx)
		if err != nil {
			backend.Close()
			return nil, err
		}
		if len(applied) > 0 {
			obs.Logger().WithField("applied", applied).Info("token store migrated")
		}
	}
	return backend, nil
}
