package streaming

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	JWTSecret  []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Server struct {
	db  DB
	rdb *redis.Client

	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	quota  *QuotaTracker
	engine *Engine
}

func NewServer(db DB, rdb *redis.Client, cfg Config) *Server {
	quota := NewQuotaTracker(db)
	return &Server{
		db:         db,
		rdb:        rdb,
		jwtSecret:  cfg.JWTSecret,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		quota:      quota,
		engine:     NewEngine(quota),
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/health", s.handleHealth)

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)

	r.Get("/plans", s.handleListPlans)
	r.Get("/plans/{id}", s.handleGetPlan)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/auth/me", s.handleMe)

		r.Route("/users", func(r chi.Router) {
			r.With(s.adminOnly).Get("/", s.handleListUsers)
			r.Get("/skip-count", s.handleSkipCount)
			r.Post("/increment-skip", s.handleIncrementSkip)
			r.Put("/subscription/{planId}", s.handleUpdateSubscription)
			r.Get("/{id}", s.handleGetUser)
			r.With(s.adminOnly).Delete("/{id}", s.handleDeleteUser)
		})

		r.Route("/media", func(r chi.Router) {
			r.Get("/", s.handleListMedia)
			r.Post("/", s.handleUploadMedia)
			r.Get("/{id}", s.handleGetMedia)
			r.Get("/{id}/thumbnail", s.handleMediaThumbnail)
			r.Delete("/{id}", s.handleDeleteMedia)
		})

		r.Route("/playlists", func(r chi.Router) {
			r.Get("/", s.handleListPlaylists)
			r.Post("/", s.handleCreatePlaylist)
			r.Get("/liked-music", s.handleGetLikedMusic)
			r.Post("/like/{mediaId}", s.handleLikeMedia)
			r.Delete("/unlike/{mediaId}", s.handleUnlikeMedia)
			r.Get("/{id}", s.handleGetPlaylist)
			r.Delete("/{id}", s.handleDeletePlaylist)
			r.Post("/{id}/media", s.handleAddMediaToPlaylist)
			r.Put("/{id}/reorder", s.handleReorderPlaylist)
		})

		r.Post("/playback/decide", s.handlePlaybackDecide)

		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Post("/plans", s.handleCreatePlan)
			r.Put("/plans/{id}", s.handleUpdatePlan)
			r.Delete("/plans/{id}", s.handleDeletePlan)
		})

		r.Route("/payments", func(r chi.Router) {
			r.With(s.adminOnly).Get("/", s.handleListPayments)
			r.Post("/", s.handleCreatePayment)
			r.Get("/user/{userId}", s.handleUserPayments)
			r.With(s.adminOnly).Get("/{id}", s.handleGetPayment)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "streaming-service",
	})
}
