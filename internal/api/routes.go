package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Routes(m *Middleware, corsOrigins []string, rateLimitRPM int) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS and rate limiting - configured from main
	r.Use(m.CORS(corsOrigins))
	r.Use(m.RateLimit(rateLimitRPM))
	r.Use(m.Identity)

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	// v1 API routes
	r.Route("/v1", func(r chi.Router) {
		// Live updates are long lived: no timeout, no compression
		r.Get("/stream", h.HandleSSE)
		r.Get("/ws", h.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(m.Compress)
			r.Use(m.Timeout(15 * time.Second))

			r.Get("/posts", h.ListPosts)
			r.Get("/posts/{id}", h.GetPost)
			r.Get("/posts/{id}/comments", h.GetCommentTree)
			r.Get("/comments", h.ListComments)
			r.Get("/leaderboard", h.GetLeaderboard)

			r.Group(func(r chi.Router) {
				r.Use(m.RequireUser)

				r.Get("/me", h.GetMe)

				r.Post("/posts", h.CreatePost)
				r.Delete("/posts/{id}", h.DeletePost)
				r.Post("/posts/{id}/like", h.LikePost)
				r.Post("/posts/{id}/unlike", h.UnlikePost)

				r.Post("/comments", h.CreateComment)
				r.Post("/comments/{id}/like", h.LikeComment)
				r.Post("/comments/{id}/unlike", h.UnlikeComment)
			})
		})
	})

	return r
}
