// internal/httpserver/routes_users.go
//
// Identity collaborator endpoints. Users arrive already authenticated by an
// external OAuth provider; the server upserts their profile keyed by the
// provider-issued subject and hands back an HS256 session token with an
// explicit expiry, which the polling client caches and replays.
//   - POST  /users          → create user, issue session token
//   - GET   /users/{id}     → fetch profile
//   - PATCH /users/{id}     → update profile (provider identity immutable)
//   - POST  /auth/session   → re-issue a session token for a known user
//   - POST  /auth/logout    → clear the session cookie

package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/converge-game/go-server/internal/game"
	"github.com/converge-game/go-server/internal/store"
)

type createUserReq struct {
	ProviderID string          `json:"provider_id"`
	Provider   string          `json:"provider"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Details    json.RawMessage `json:"details"`
}

// mountUserRoutes registers /users and /auth routes.
func (s *Server) mountUserRoutes() {
	s.r.Route("/users", func(r chi.Router) {
		r.Post("/", s.handleCreateUser)
		r.Get("/{userID}", s.handleGetUser)
		r.Patch("/{userID}", s.handleUpdateUser)
	})
	s.r.Post("/auth/session", s.handleCreateSession)
	s.r.Post("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		clearAuthCookie(w)
		writeJSON(w, map[string]bool{"ok": true})
	})
}

// handleCreateUser registers a provider-authenticated profile and issues a
// session token.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var missing []string
	for _, f := range []struct{ name, val string }{
		{"name", req.Name},
		{"email", req.Email},
		{"provider", req.Provider},
		{"provider_id", req.ProviderID},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(req.Details) == 0 {
		missing = append(missing, "details")
	}
	if len(missing) > 0 {
		writeErrorMsg(w, http.StatusBadRequest,
			fmt.Sprintf("user missing required fields: %s", strings.Join(missing, ", ")))
		return
	}

	u := &store.User{
		ID:        req.ProviderID,
		Provider:  req.Provider,
		Name:      req.Name,
		Email:     req.Email,
		Details:   req.Details,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(r.Context(), u); err != nil {
		if errors.Is(err, game.ErrConflict) {
			writeErrorMsg(w, http.StatusConflict, "User already exists")
			return
		}
		log.Error().Err(err).Msg("create user")
		writeErrorMsg(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	tok, exp, err := signJWT(u.ID)
	if err != nil {
		writeErrorMsg(w, http.StatusInternalServerError, "failed to sign token")
		return
	}
	setAuthCookie(w, tok, exp)
	log.Info().Str("user", u.ID).Str("provider", u.Provider).Msg("user created")
	writeJSON(w, map[string]any{"user_id": u.ID, "token": tok, "expires": exp.Unix()})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErrorMsg(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, u)
}

// handleUpdateUser applies profile changes. Provider identity keys are
// blocked, and an update that changes nothing is rejected so clients notice
// stale writes.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	old, err := s.users.Get(r.Context(), id)
	if err != nil {
		writeErrorMsg(w, http.StatusNotFound, "User not found")
		return
	}

	var changes map[string]any
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(changes) == 0 {
		writeErrorMsg(w, http.StatusBadRequest, "No updates provided")
		return
	}
	for key := range changes {
		if store.BlockedUserKey(key) {
			writeErrorMsg(w, http.StatusBadRequest, "Cannot update blocked key: "+key)
			return
		}
	}
	if !userChanged(old, changes) {
		writeErrorMsg(w, http.StatusBadRequest, "No updates provided")
		return
	}

	u, err := s.users.Update(r.Context(), id, changes)
	if err != nil {
		log.Error().Err(err).Str("user", id).Msg("update user")
		writeErrorMsg(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	writeJSON(w, u)
}

// userChanged reports whether changes would alter any stored field.
func userChanged(u *store.User, changes map[string]any) bool {
	for k, v := range changes {
		switch k {
		case "name":
			if s, ok := v.(string); ok && s != u.Name {
				return true
			}
		case "email":
			if s, ok := v.(string); ok && s != u.Email {
				return true
			}
		case "details":
			raw, err := json.Marshal(v)
			if err == nil && string(raw) != string(u.Details) {
				return true
			}
		default:
			// Unknown field: treat as a change so the store's ignore
			// policy is visible to the caller rather than silent.
			return true
		}
	}
	return false
}

type sessionReq struct {
	UserID string `json:"user_id"`
}

// handleCreateSession re-issues a token for an existing user (the client's
// "login" after a returning OAuth round trip).
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		writeErrorMsg(w, http.StatusBadRequest, "user_id is required")
		return
	}
	u, err := s.users.Get(r.Context(), req.UserID)
	if err != nil {
		writeErrorMsg(w, http.StatusNotFound, "User not found")
		return
	}
	tok, exp, err := signJWT(u.ID)
	if err != nil {
		writeErrorMsg(w, http.StatusInternalServerError, "failed to sign token")
		return
	}
	setAuthCookie(w, tok, exp)
	writeJSON(w, map[string]any{"user_id": u.ID, "token": tok, "expires": exp.Unix()})
}

// ------------------------------ JWT & cookies ------------------------------

// signJWT creates an HS256 JWT with the user id and a configurable expiry
// (JWT_EXPIRES_DAYS; default 14).
func signJWT(id string) (string, time.Time, error) {
	secret := getEnv("JWT_SECRET", "dev_secret_change_me")
	days := 14
	if v := os.Getenv("JWT_EXPIRES_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			days = n
		}
	}
	exp := time.Now().Add(time.Duration(days) * 24 * time.Hour)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  id,
		"exp": exp.Unix(),
		"iat": time.Now().Unix(),
	})
	ss, err := t.SignedString([]byte(secret))
	return ss, exp, err
}

// setAuthCookie writes the session cookie with appropriate security attributes.
func setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	secure := os.Getenv("NODE_ENV") == "production"
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	http.SetCookie(w, &http.Cookie{
		Name:     getEnv("COOKIE_NAME", "converge_token"),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		Expires:  exp,
	})
}

// clearAuthCookie deletes the session cookie.
func clearAuthCookie(w http.ResponseWriter) {
	secure := os.Getenv("NODE_ENV") == "production"
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     getEnv("COOKIE_NAME", "converge_token"),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		MaxAge:   -1,
	})
}

// bearerOrCookie extracts a token from the Authorization header or the
// session cookie.
func bearerOrCookie(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(getEnv("COOKIE_NAME", "converge_token")); err == nil {
		return c.Value
	}
	return ""
}
