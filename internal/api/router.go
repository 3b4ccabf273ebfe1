package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Ashifo7/StudyBuddy/internal/api/middleware"
	"github.com/Ashifo7/StudyBuddy/internal/channel"
	"github.com/Ashifo7/StudyBuddy/internal/config"
	"github.com/Ashifo7/StudyBuddy/internal/handlers"
	"github.com/Ashifo7/StudyBuddy/internal/store"
	"github.com/Ashifo7/StudyBuddy/internal/token"
)

// NewRouter creates and configures the HTTP router, including the
// websocket channel endpoint.
func NewRouter(logger zerolog.Logger, cfg *config.Config, db store.DataStore, redisStore *store.RedisStore, hub *channel.Hub, tokens *token.Manager) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	limiter := middleware.NewRateLimiter(redisStore, logger, cfg.RateLimitWhitelist)
	r.Use(limiter.Middleware)

	// CORS - only the web client origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.ClientOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(db, redisStore, tokens)
	h.SetPresence(hub.Presence())
	auth := middleware.NewAuthMiddleware(db, tokens)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Post("/register", h.Register)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		// User directory
		r.Get("/users/{id}", h.GetUser)
		r.Get("/users/{id}/public-key", h.GetPublicKey)
		r.Put("/users/me/public-key", h.SetPublicKey)

		// Encrypted message history
		r.Post("/messages", h.CreateMessage)
		r.Get("/messages/{conversationId}", h.ListMessages)
		r.Delete("/messages/{conversationId}", h.DeleteConversation)

		// Real-time channel
		serveWS := channel.ServeWS(hub, logger, cfg.ClientOrigin)
		r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
			user := middleware.GetUserFromContext(req.Context())
			if user == nil {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			serveWS(w, req, user.ID.String())
		})
	})

	return r
}
