package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gmsf/gmsf-contracts-backend/internal/cache"
	"github.com/gmsf/gmsf-contracts-backend/internal/database"
	"github.com/gmsf/gmsf-contracts-backend/internal/lifecycle"
	mw "github.com/gmsf/gmsf-contracts-backend/internal/middleware"
)

type healthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Redis     string `json:"redis"`
	Timestamp string `json:"timestamp"`
}

// NewRouter assembles the HTTP API. Reads are open; every mutating route
// goes through auth, the rate limiter and the idempotency replay cache.
func NewRouter(db *database.DB, redisClient *cache.Redis, service *lifecycle.Service, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		MaxAge:         300,
	}))
	r.Use(mw.RateLimiter(redisClient))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		dbStatus := "connected"
		if err := db.Ping(); err != nil {
			dbStatus = "disconnected"
		}
		redisStatus := "connected"
		if err := redisClient.Ping(req.Context()); err != nil {
			redisStatus = "disconnected"
		}
		writeJSON(w, http.StatusOK, healthResponse{
			Status:    "healthy",
			Database:  dbStatus,
			Redis:     redisStatus,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	})

	contractHandler := NewContractHandler(db, service)
	membershipHandler := NewMembershipHandler(db, service)
	clientHandler := NewClientHandler(db)

	protect := func(r chi.Router) chi.Router {
		r.Use(mw.Auth(jwtSecret))
		r.Use(mw.Idempotency(redisClient))
		return r
	}

	r.Route("/contracts", func(r chi.Router) {
		r.Get("/", contractHandler.List)
		r.Get("/{id}", contractHandler.Get)
		r.Get("/{id}/history", contractHandler.History)

		r.Group(func(r chi.Router) {
			protect(r)
			r.Post("/", contractHandler.Create)
			r.Post("/renew", contractHandler.Renew)
			r.Post("/freeze", contractHandler.Freeze)
			r.Put("/{id}", contractHandler.Update)
			r.Delete("/{id}", contractHandler.Cancel)
		})
	})

	r.Route("/memberships", func(r chi.Router) {
		r.Get("/", membershipHandler.List)
		r.Get("/{id}", membershipHandler.Get)

		r.Group(func(r chi.Router) {
			protect(r)
			r.Post("/", membershipHandler.Create)
			r.Put("/{id}", membershipHandler.Update)
			r.Post("/{id}/desactivar", membershipHandler.Deactivate)
			r.Patch("/{id}/desactivar", membershipHandler.Deactivate)
			r.Post("/{id}/reactivar", membershipHandler.Reactivate)
			r.Patch("/{id}/reactivar", membershipHandler.Reactivate)
		})
	})

	r.Route("/clients", func(r chi.Router) {
		r.Get("/", clientHandler.List)
		r.Get("/{id}", clientHandler.Get)

		r.Group(func(r chi.Router) {
			protect(r)
			r.Post("/", clientHandler.Create)
			r.Put("/{id}", clientHandler.Update)
		})
	})

	return r
}
