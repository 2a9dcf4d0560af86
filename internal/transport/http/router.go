package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"threadboard/internal/handler"
	"threadboard/internal/httputil"
	authmw "threadboard/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler    *handler.AuthHandler
	PostHandler    *handler.PostHandler
	CommentHandler *handler.CommentHandler
	Tokens         authmw.TokenParser
	WriteLimiter   *authmw.RateLimiter
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public routes - no authentication required
	r.Route("/auth", func(r chi.Router) {
		r.With(cfg.WriteLimiter.Middleware).Post("/register", cfg.AuthHandler.Register)
		r.With(cfg.WriteLimiter.Middleware).Post("/login", cfg.AuthHandler.Login)
		r.Post("/refresh", cfg.AuthHandler.Refresh)
		r.With(authmw.AuthMiddleware(cfg.Tokens)).Get("/me", cfg.AuthHandler.Me)
	})

	r.Get("/categories", cfg.PostHandler.Categories)

	r.Route("/posts", func(r chi.Router) {
		// Reads with optional authentication
		r.Group(func(r chi.Router) {
			r.Use(authmw.OptionalAuthMiddleware(cfg.Tokens))
			r.Get("/", cfg.PostHandler.List)
			r.Get("/{postId}", cfg.PostHandler.GetByID)
			r.Get("/{postId}/comments", cfg.CommentHandler.List)
		})

		// Writes require authentication and are rate limited per user
		r.Group(func(r chi.Router) {
			r.Use(authmw.AuthMiddleware(cfg.Tokens))
			r.Use(cfg.WriteLimiter.Middleware)

			r.Post("/", cfg.PostHandler.Create)
			r.Patch("/{postId}", cfg.PostHandler.Update)
			r.Delete("/{postId}", cfg.PostHandler.Delete)

			r.Post("/{postId}/comments", cfg.CommentHandler.Create)
			r.Patch("/{postId}/comments/{commentId}", cfg.CommentHandler.Update)
			r.Delete("/{postId}/comments/{commentId}", cfg.CommentHandler.Delete)
		})
	})

	return r
}
