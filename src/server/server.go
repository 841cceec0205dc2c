package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"

	"posbot/src/auth"
	"posbot/src/commands"
	"posbot/src/handler"
)

const shutdownTimeout = 5 * time.Second

// NewRouter mounts the command API. /healthcheck and /metrics are public. Reads need the bearer token
// when tokenHash is set. Writes always need it, so an empty tokenHash leaves them disabled.
func NewRouter(svc *commands.Service, tokenHash string, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write error")
		}
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if tokenHash != "" {
			r.Use(auth.Bearer(tokenHash))
		}
		r.Get("/status", handler.StatusHandler(svc))
		r.Get("/positions", handler.PositionsHandler(svc))
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Bearer(tokenHash))
		r.Post("/watch", handler.WatchHandler(svc))
		r.Post("/threshold", handler.ThresholdHandler(svc))
		r.Post("/cooldown", handler.CooldownHandler(svc))
	})

	return r
}

// Run serves h on port until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, port string, h http.Handler) error {
	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return <-errCh
}
