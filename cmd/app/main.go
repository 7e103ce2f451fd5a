package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Zlazh-dev/presensiapp3-sub002/internal/clock"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/config"
	auditGet "github.com/Zlazh-dev/presensiapp3-sub002/internal/http-server/handlers/audit/get"
	checkinCreate "github.com/Zlazh-dev/presensiapp3-sub002/internal/http-server/handlers/checkin/create"
	checkoutCreate "github.com/Zlazh-dev/presensiapp3-sub002/internal/http-server/handlers/checkout/create"
	noticeDismiss "github.com/Zlazh-dev/presensiapp3-sub002/internal/http-server/handlers/notice/dismiss"
	rosterSubmit "github.com/Zlazh-dev/presensiapp3-sub002/internal/http-server/handlers/roster/submit"
	sessionGet "github.com/Zlazh-dev/presensiapp3-sub002/internal/http-server/handlers/session/get"
	sessionWatch "github.com/Zlazh-dev/presensiapp3-sub002/internal/http-server/handlers/session/watch"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/lock"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/monitor"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/push"
	svc "github.com/Zlazh-dev/presensiapp3-sub002/internal/service"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/storage/postgres"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/upstream"
	slogpretty "github.com/Zlazh-dev/presensiapp3-sub002/pkg/handlers/slogPretty"
	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/middleware/mwLogger"
	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting presence agent", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	storage, err := postgres.New(cfg.StoragePath)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	locker, err := lock.NewRedisLock(cfg.RedisAddr)
	if err != nil {
		log.Error("Failed to init redis lock", sl.Err(err))
		os.Exit(1)
	}

	bus, err := push.NewRedisBus(cfg.RedisAddr)
	if err != nil {
		log.Error("Failed to init push bus", sl.Err(err))
		os.Exit(1)
	}

	client := upstream.New(cfg.Upstream.BaseURL, cfg.Upstream.Token, cfg.Upstream.Timeout)

	clk := clock.NewSystem()

	mon := monitor.New(log, client, bus, clk, cfg.Monitor.TickInterval)
	mon.Start()

	var fence *svc.Geofence
	if cfg.Geofence.Enabled {
		fence = &svc.Geofence{
			Lat:     cfg.Geofence.Lat,
			Lng:     cfg.Geofence.Lng,
			RadiusM: cfg.Geofence.RadiusM,
		}
	}

	service := svc.NewService(log, client, mon, storage, locker, fence)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	// Check-in
	router.Post("/checkin", checkinCreate.New(log, service))

	// Session view
	router.Get("/session", sessionGet.New(log, service))
	router.Get("/session/watch", sessionWatch.New(log, service, cfg.Monitor.TickInterval))

	// Checkout
	router.Post("/checkout", checkoutCreate.New(log, service))

	// Roster
	router.Post("/roster", rosterSubmit.New(log, service))

	// Audit
	router.Get("/audit", auditGet.New(log, service))

	// Notices
	router.Post("/notice/dismiss", noticeDismiss.New(log, service))

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	mon.Stop()
	log.Info("Session monitor stopped")

	if err := bus.Close(); err != nil {
		log.Error("Failed to close push bus", sl.Err(err))
	} else {
		log.Info("Push bus closed")
	}

	if storage != nil {
		if err := storage.Close(); err != nil {
			log.Error("Failed to close storage", sl.Err(err))
		} else {
			log.Info("Storage closed")
		}
	} else {
		log.Debug("Storage is nil, nothing to close")
	}

	if locker != nil {
		if err := locker.Close(); err != nil {
			log.Error("Failed to close locker", sl.Err(err))
		} else {
			log.Info("Locker closed")
		}
	}

	log.Info("Shutdown finished, server stopped")

}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
