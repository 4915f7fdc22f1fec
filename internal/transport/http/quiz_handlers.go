package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"quizhub-service/internal/app"
	"quizhub-service/internal/auth"
	"quizhub-service/internal/domain"
)

// API bundles the use cases the REST handlers call into.
type API struct {
	catalog *app.Catalog
	ledger  *app.Ledger
	stats   *app.Stats
	users   *app.Users
}

func NewAPI(catalog *app.Catalog, ledger *app.Ledger, stats *app.Stats, users *app.Users) *API {
	return &API{catalog: catalog, ledger: ledger, stats: stats, users: users}
}

type submitRequest struct {
	Answers []domain.Selection `json:"answers"`
}

type submitResponse struct {
	CorrectAnswers  int    `json:"correctAnswers"`
	ScorePercentage string `json:"scorePercentage"`
}

// POST /quizzes
func (a *API) createQuiz(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var def app.QuizDefinition
	if err := decodeJSON(r, &def); err != nil {
		writeError(w, err)
		return
	}
	quiz, err := a.catalog.CreateQuiz(r.Context(), user.ID, def)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

// GET /quizzes?creator=<userID>
func (a *API) listQuizzes(w http.ResponseWriter, r *http.Request) {
	viewer := a.viewerID(r)
	quizzes, err := a.catalog.ListQuizzes(r.Context(), app.QuizFilter{
		OwnerID: strings.TrimSpace(r.URL.Query().Get("creator")),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]domain.Quiz, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, visibleTo(q, viewer))
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /quizzes/{quizID}
func (a *API) getQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := a.catalog.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, visibleTo(quiz, a.viewerID(r)))
}

// PUT /quizzes/{quizID}
func (a *API) updateQuiz(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var patch app.QuizPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	result, err := a.catalog.UpdateQuiz(r.Context(), chi.URLParam(r, "quizID"), user.ID, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DELETE /quizzes/{quizID}
func (a *API) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.catalog.DeleteQuiz(r.Context(), chi.URLParam(r, "quizID"), user.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /quizzes/{quizID}/submit
func (a *API) submitQuiz(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := a.ledger.RecordAttempt(r.Context(), chi.URLParam(r, "quizID"), user.ID, req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{
		CorrectAnswers:  result.CorrectCount,
		ScorePercentage: fmt.Sprintf("%d%%", result.Percentage),
	})
}

// GET /quizzes/{quizID}/best
func (a *API) bestAttempt(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	best, err := a.ledger.BestAttempt(r.Context(), chi.URLParam(r, "quizID"), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, best)
}

// currentUser resolves the verified subject to a registered account.
func (a *API) currentUser(r *http.Request) (domain.User, error) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return domain.User{}, domain.ErrUnauthorized
	}
	return a.users.Resolve(r.Context(), id.Subject)
}

// viewerID is the caller's user id, or empty when they are not registered.
func (a *API) viewerID(r *http.Request) string {
	user, err := a.currentUser(r)
	if err != nil {
		return ""
	}
	return user.ID
}

// visibleTo hides the answer key from everyone but the owner.
func visibleTo(q domain.Quiz, viewerID string) domain.Quiz {
	if viewerID != "" && q.OwnerID == viewerID {
		return q
	}
	return q.Redacted()
}
