package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"quizhub-service/internal/auth"
)

// NewRouter mounts the REST API, the leaderboard websocket and health checks.
func NewRouter(api *API, ws *WSHandler, verifier auth.Verifier, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	// Websocket upgrades cannot carry a bearer header from browsers.
	r.Get("/ws/leaderboard", ws.ServeWS)

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.Timeout(30 * time.Second))
		pr.Use(auth.Middleware(verifier))

		pr.Post("/users", api.register)
		pr.Get("/users/me", api.me)
		pr.Delete("/users/me", api.deleteMe)
		pr.Get("/users/{userID}/stats", api.profileStats)

		pr.Route("/quizzes", func(qr chi.Router) {
			qr.Get("/", api.listQuizzes)
			qr.Post("/", api.createQuiz)
			qr.Get("/{quizID}", api.getQuiz)
			qr.Put("/{quizID}", api.updateQuiz)
			qr.Delete("/{quizID}", api.deleteQuiz)
			qr.Post("/{quizID}/submit", api.submitQuiz)
			qr.Get("/{quizID}/best", api.bestAttempt)
		})

		pr.Get("/leaderboard", api.leaderboard)
	})
	return r
}
