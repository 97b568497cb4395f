// internal/httpserver/routes_games.go
//
// Game session endpoints.
//   - POST /games            → create a game (key phrase auto-generated)
//   - GET  /games            → games the caller participates in
//   - GET  /games/{id}       → fetch one game (participants only)
//   - POST /games/join       → join by key phrase {key_phrase}
//   - POST /games/{id}/join  → join by id, or by key phrase in place of
//     the id (the polling client uses them interchangeably)
//   - POST /games/{id}/moves → submit a word {word}
//   - POST /games/{id}/end   → abandon (marks the game finished)
//
// Every mutation goes through the repository's AtomicUpdate so concurrent
// submissions against the same game are serialized. Handlers only resolve
// identity, decode input, and translate errors; the state machine owns the
// rules.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/converge-game/go-server/internal/game"
	"github.com/converge-game/go-server/internal/keyphrase"
)

// phraseAttempts bounds regeneration when a generated key phrase collides
// with another waiting game.
const phraseAttempts = 5

// mountGameRoutes registers all /games routes.
func (s *Server) mountGameRoutes() {
	s.r.Route("/games", func(r chi.Router) {
		r.Post("/", s.handleCreateGame)
		r.Get("/", s.handleListGames)
		r.Post("/join", s.handleJoinByPhrase)
		r.Route("/{gameID}", func(r chi.Router) {
			r.Get("/", s.handleGetGame)
			r.Post("/join", s.handleJoinByID)
			r.Post("/moves", s.handleSubmitMove)
			r.Post("/end", s.handleEndGame)
		})
	})
}

// handleCreateGame creates a waiting game owned by the caller. The key
// phrase is generated server-side and regenerated on the rare collision
// with another waiting game.
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	uid := requireIdentity(w, r)
	if uid == "" {
		return
	}
	if _, err := s.users.Get(r.Context(), uid); err != nil {
		writeErrorMsg(w, http.StatusNotFound, "User not found")
		return
	}

	for i := 0; i < phraseAttempts; i++ {
		g := game.New(uid, keyphrase.New())
		err := s.store.Create(r.Context(), g)
		if errors.Is(err, game.ErrConflict) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Msg("create game")
			writeErrorMsg(w, http.StatusInternalServerError, "failed to create game")
			return
		}
		log.Info().Str("gameId", g.ID).Str("keyPhrase", g.KeyPhrase).Str("user", uid).Msg("game created")
		writeJSON(w, g)
		return
	}
	writeErrorMsg(w, http.StatusConflict, "could not allocate a key phrase")
}

// handleListGames returns every game where the caller holds a seat.
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	uid := requireIdentity(w, r)
	if uid == "" {
		return
	}
	if _, err := s.users.Get(r.Context(), uid); err != nil {
		writeErrorMsg(w, http.StatusNotFound, "User not found")
		return
	}
	games, err := s.store.ListByPlayer(r.Context(), uid)
	if err != nil {
		log.Error().Err(err).Str("user", uid).Msg("list games")
		writeErrorMsg(w, http.StatusInternalServerError, "failed to list games")
		return
	}
	writeJSON(w, map[string]any{"games": games})
}

// handleGetGame fetches one game. Only the two participants may read it;
// a non-participant never learns move history or whose turn it is.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	uid := requireIdentity(w, r)
	if uid == "" {
		return
	}
	g, err := s.store.Get(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !g.IsParticipant(uid) {
		writeError(w, game.ErrUnauthorized)
		return
	}
	writeJSON(w, g)
}

type joinReq struct {
	KeyPhrase string `json:"key_phrase"`
}

// handleJoinByPhrase seats the caller in the waiting game holding the
// phrase and returns the updated document (the client navigates by its id).
func (s *Server) handleJoinByPhrase(w http.ResponseWriter, r *http.Request) {
	uid := requireIdentity(w, r)
	if uid == "" {
		return
	}
	var req joinReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	phrase := strings.ToLower(strings.TrimSpace(req.KeyPhrase))
	if phrase == "" {
		writeErrorMsg(w, http.StatusBadRequest, "key_phrase is required")
		return
	}
	g, err := s.store.GetByKeyPhrase(r.Context(), phrase)
	if err != nil {
		writeError(w, err)
		return
	}
	s.join(w, r, g.ID, uid)
}

// handleJoinByID seats the caller in a waiting game addressed by id or,
// when no game has that id, by key phrase.
func (s *Server) handleJoinByID(w http.ResponseWriter, r *http.Request) {
	uid := requireIdentity(w, r)
	if uid == "" {
		return
	}
	id, err := s.resolveGameRef(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.join(w, r, id, uid)
}

// resolveGameRef maps a path segment to a game id, treating it first as an
// id and then as a joinable game's key phrase.
func (s *Server) resolveGameRef(ctx context.Context, ref string) (string, error) {
	_, err := s.store.Get(ctx, ref)
	if err == nil {
		return ref, nil
	}
	if !errors.Is(err, game.ErrNotFound) {
		return "", err
	}
	g, err := s.store.GetByKeyPhrase(ctx, ref)
	if err != nil {
		return "", err
	}
	return g.ID, nil
}

func (s *Server) join(w http.ResponseWriter, r *http.Request, gameID, uid string) {
	g, err := s.store.AtomicUpdate(r.Context(), gameID, func(g *game.Game) error {
		return g.Join(uid)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	log.Info().Str("gameId", g.ID).Str("user", uid).Msg("player joined")
	writeJSON(w, g)
}

type moveReq struct {
	Word string `json:"word"`
}

// handleSubmitMove appends the caller's word for the current round. Round
// scoring and the convergence check happen inside the same atomic update as
// the append, so a simultaneous move from the opponent cannot race past it.
func (s *Server) handleSubmitMove(w http.ResponseWriter, r *http.Request) {
	uid := requireIdentity(w, r)
	if uid == "" {
		return
	}
	var req moveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Word) == "" {
		writeErrorMsg(w, http.StatusBadRequest, "word is required")
		return
	}

	gameID := chi.URLParam(r, "gameID")
	g, err := s.store.AtomicUpdate(r.Context(), gameID, func(g *game.Game) error {
		return g.SubmitMove(uid, req.Word, s.scorer, s.threshold)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	ev := log.Info().Str("gameId", g.ID).Str("user", uid).Int("rounds", g.Rounds())
	if g.State == game.StateFinished {
		ev = ev.Str("state", string(g.State))
	}
	ev.Msg("move accepted")
	writeJSON(w, g)
}

// handleEndGame marks the game abandoned by the caller.
func (s *Server) handleEndGame(w http.ResponseWriter, r *http.Request) {
	uid := requireIdentity(w, r)
	if uid == "" {
		return
	}
	g, err := s.store.AtomicUpdate(r.Context(), chi.URLParam(r, "gameID"), func(g *game.Game) error {
		return g.Quit(uid)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	log.Info().Str("gameId", g.ID).Str("user", uid).Msg("game abandoned")
	writeJSON(w, g)
}
