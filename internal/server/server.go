// Package server exposes the funnel service over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/groblegark/funnel/internal/dispatch"
	"github.com/groblegark/funnel/internal/engine"
	"github.com/groblegark/funnel/internal/events"
	"github.com/groblegark/funnel/internal/inbound"
	"github.com/groblegark/funnel/internal/ledger"
	"github.com/groblegark/funnel/internal/store"
)

// FunnelServer holds the service dependencies shared by all HTTP handlers.
type FunnelServer struct {
	store      store.Store
	publisher  events.Publisher
	engine     *engine.Engine
	dispatcher *dispatch.Dispatcher
	ledger     *ledger.Ledger
	router     *inbound.Router
}

// NewFunnelServer returns a server backed by the given dependencies.
func NewFunnelServer(s store.Store, p events.Publisher, e *engine.Engine, d *dispatch.Dispatcher, l *ledger.Ledger, r *inbound.Router) *FunnelServer {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	return &FunnelServer{store: s, publisher: p, engine: e, dispatcher: d, ledger: l, router: r}
}

// publish emits an event to the bus. Failures are logged, never surfaced to
// the HTTP caller.
func (s *FunnelServer) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// inputError indicates invalid user input; transport maps it to 400.
type inputError string

func (e inputError) Error() string { return string(e) }

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeStoreError maps common store failures onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	var input inputError
	switch {
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &input):
		writeError(w, http.StatusBadRequest, input.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// AuthMiddleware wraps an http.Handler and checks the Authorization header
// for a valid Bearer token. When token is empty, auth is disabled and all
// requests pass through. GET /v1/health and provider webhooks are always
// exempt; providers cannot attach our token to their callbacks.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/v1/webhooks/") {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		if !strings.HasPrefix(auth, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "invalid authorization scheme")
			return
		}

		provided := strings.TrimPrefix(auth, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
