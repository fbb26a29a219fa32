// Package server exposes the chat orchestrator and Google authorization over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chatcal/internal/chat"
	"chatcal/internal/models"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
)

// Responder answers chat messages.
type Responder interface {
	Respond(ctx context.Context, req chat.Request) chat.Reply
	Personas() []chat.Persona
}

// Authorizer runs the Google OAuth web flow.
type Authorizer interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, authCode string) (*oauth2.Token, error)
}

// Events reads and removes calendar events for a token holder.
type Events interface {
	UpcomingEvents(ctx context.Context, token *oauth2.Token, days int) ([]*models.Event, error)
	DeleteEvent(ctx context.Context, token *oauth2.Token, eventID string) error
}

// TokenStore persists tokens per identity.
type TokenStore interface {
	Token(ctx context.Context, identity string) (*oauth2.Token, error)
	Save(ctx context.Context, identity string, token *oauth2.Token) error
	Delete(ctx context.Context, identity string) error
}

// Server is the HTTP front-end.
type Server struct {
	logger    *slog.Logger
	responder Responder
	auth      Authorizer
	events    Events
	tokens    TokenStore
	staticDir string
	port      int
}

// New creates a Server. staticDir may be empty to disable static file serving.
func New(logger *slog.Logger, responder Responder, auth Authorizer, events Events, tokens TokenStore, staticDir string, port int) *Server {
	if port == 0 {
		port = 3000
	}
	return &Server{
		logger:    logger,
		responder: responder,
		auth:      auth,
		events:    events,
		tokens:    tokens,
		staticDir: staticDir,
		port:      port,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.recoverPanics, s.session)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	api.HandleFunc("/personas", s.handlePersonas).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleListEvents).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}", s.handleDeleteEvent).Methods(http.MethodDelete)

	r.HandleFunc("/auth/google", s.handleAuthStart).Methods(http.MethodGet)
	r.HandleFunc("/auth/google/callback", s.handleAuthCallback).Methods(http.MethodGet)
	r.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if s.staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.staticDir)))
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	}
}
