// Package server exposes the HTTP surface: the signed webhook endpoint,
// health and metrics.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/smartassist/viberbot/logger"
	"github.com/smartassist/viberbot/observability"
	"github.com/smartassist/viberbot/store"
	"github.com/smartassist/viberbot/viber"
)

const maxBodyBytes = 1 << 20

// EventHandler consumes parsed platform events.
type EventHandler interface {
	Handle(ctx context.Context, ev viber.Event)
}

// Options wires a Server.
type Options struct {
	Addr      string
	AuthToken string
	Handler   EventHandler
	Store     store.Store
}

// Server is the webhook HTTP server.
type Server struct {
	http      *http.Server
	authToken string
	handler   EventHandler
	store     store.Store
}

// New builds the server and its routes.
func New(opts Options) *Server {
	s := &Server{
		authToken: opts.AuthToken,
		handler:   opts.Handler,
		store:     opts.Store,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(recoverer)
	r.Post("/viber/webhook", s.handleWebhook)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", observability.Handler())

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and drains in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		observability.WebhookEvent("unknown", "invalid")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	// No side effects before the body authenticates.
	sig := r.Header.Get(viber.SignatureHeader)
	if err := viber.VerifySignature(s.authToken, body, sig); err != nil {
		observability.WebhookEvent("unknown", "rejected")
		logger.Warn(r.Context(), "web", "webhook.signature.invalid")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	ev, err := viber.ParseEvent(body)
	if err != nil {
		observability.WebhookEvent("unknown", "invalid")
		logger.Warn(r.Context(), "web", "webhook.parse.fail",
			slog.String("err", logger.Sanitize(err.Error())),
		)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	observability.WebhookEvent(string(ev.Kind), "ok")

	// The platform gets its 200 immediately; the event is handled on its
	// own goroutine with a context that outlives the request.
	ctx := logger.WithRID(context.WithoutCancel(r.Context()), logger.BuildRID(ev.MessageToken))
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, "web", "webhook.accepted", slog.String("kind", string(ev.Kind)))
	}
	go s.handler.Handle(ctx, ev)

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			logger.Error(r.Context(), "web", "healthz.store.fail",
				slog.String("err", logger.Sanitize(err.Error())),
			)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// recoverer converts handler panics into 500s so one bad request cannot
// take the process down.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error(r.Context(), "web", "panic.recovered",
					slog.Any("panic", rec),
				)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
