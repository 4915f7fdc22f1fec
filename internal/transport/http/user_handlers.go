package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"quizhub-service/internal/auth"
	"quizhub-service/internal/domain"
)

type registerRequest struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// POST /users
func (a *API) register(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := a.users.Register(r.Context(), id, req.Username, req.Avatar)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// GET /users/me
func (a *API) me(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DELETE /users/me?mode=delete_quizzes|anonymize_quizzes
func (a *API) deleteMe(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	mode := domain.DeletionMode(r.URL.Query().Get("mode"))
	if err := a.users.DeleteUser(r.Context(), user.ID, mode); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /users/{userID}/stats
func (a *API) profileStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.stats.ProfileStats(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /leaderboard
func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := a.stats.Leaderboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
