// internal/httpserver/server.go
//
// HTTP server wiring for the Converge backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/debug/scoring".
//   - Game endpoints (identity required): create/list/fetch/join/move/end.
//   - User endpoints: identity collaborator CRUD + JWT session issuance.
//   - Translation of core error kinds into {"error": ...} payloads.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Identity is a stable opaque user ID per request: a valid JWT
//     (Authorization bearer or cookie) or the X-User-ID header the polling
//     client sends on every call.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/converge-game/go-server/internal/game"
	"github.com/converge-game/go-server/internal/store"
)

// Server bundles router, repositories, and the round scorer.
type Server struct {
	r         *chi.Mux
	store     store.Store
	users     store.UserStore
	scorer    game.Scorer
	threshold float64
}

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, users store.UserStore, sc game.Scorer) *Server {
	s := &Server{
		r:         chi.NewRouter(),
		store:     st,
		users:     users,
		scorer:    sc,
		threshold: envFloat("CONVERGE_THRESHOLD", game.DefaultThreshold),
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(corsFromEnv)                     // credentials-friendly CORS
	s.r.Use(s.withIdentity)                  // resolve caller's user ID

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"converge-go","endpoints":["/health","POST /games","GET /games","GET /games/{id}","POST /games/{id}/moves","/users/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	s.r.Get("/debug/scoring", s.handleScoringStats)

	s.mountGameRoutes()
	s.mountUserRoutes()

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// handleScoringStats reports vocabulary size for embedding scorers.
func (s *Server) handleScoringStats(w http.ResponseWriter, r *http.Request) {
	type stats interface{ Stats() (int, int) }
	if es, ok := s.scorer.(stats); ok {
		words, dims := es.Stats()
		_ = json.NewEncoder(w).Encode(map[string]int{"words": words, "dims": dims})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"scorer": "exact"})
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromEnv enables credentialed CORS for a single origin.
// Uses CLIENT_ORIGIN env var; defaults to http://localhost:3000.
func corsFromEnv(next http.Handler) http.Handler {
	origin := os.Getenv("CLIENT_ORIGIN")
	if origin == "" {
		origin = "http://localhost:3000"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ctxUserKey is the context key type for the resolved caller ID.
type ctxUserKey struct{}

// withIdentity resolves the caller's user ID from a JWT (bearer or cookie)
// or the X-User-ID header, and decorates the request context. It never
// rejects; handlers that need identity use requireIdentity.
func (s *Server) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if tok := bearerOrCookie(r); tok != "" {
			claims := jwt.MapClaims{}
			if t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
				return []byte(getEnv("JWT_SECRET", "dev_secret_change_me")), nil
			}); err == nil && t.Valid {
				id, _ = claims["id"].(string)
			}
		}
		if id == "" {
			id = r.Header.Get("X-User-ID")
		}
		if id != "" {
			ctx := context.WithValue(r.Context(), ctxUserKey{}, id)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// callerID returns the resolved user ID, or "" for anonymous requests.
func callerID(r *http.Request) string {
	id, _ := r.Context().Value(ctxUserKey{}).(string)
	return id
}

// requireIdentity writes a 401 and returns "" when no caller ID is present.
func requireIdentity(w http.ResponseWriter, r *http.Request) string {
	id := callerID(r)
	if id == "" {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
	}
	return id
}

// ---------------------------- error mapping --------------------------------

// writeError maps core error kinds to HTTP statuses; everything is a
// structured {"error": message} payload, never a raw fault.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, game.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, game.ErrConflict),
		errors.Is(err, game.ErrInvalidState),
		errors.Is(err, game.ErrOutOfTurn):
		status = http.StatusConflict
	case errors.Is(err, game.ErrSelfJoin),
		errors.Is(err, game.ErrInvalidWord):
		status = http.StatusBadRequest
	}
	writeErrorMsg(w, status, err.Error())
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

// ------------------------------- small util --------------------------------

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
