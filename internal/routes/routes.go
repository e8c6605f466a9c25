// internal/routes/routes.go
package routes

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"usermgmt/internal/provisioner"
	"usermgmt/internal/reset"
)

func SetupRoutes(db *sql.DB, engine *reset.Engine, prov *provisioner.Provisioner) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", healthHandler(db))

	r.Route("/api/v1", func(r chi.Router) {
		RegisterAuthRoutes(r, engine)
		RegisterUserRoutes(r, prov, engine)
	})

	return r
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "ok"}
		status := http.StatusOK

		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				resp["status"] = "degraded"
				resp["db"] = map[string]any{"status": "down", "error": err.Error()}
				status = http.StatusServiceUnavailable
			} else {
				resp["db"] = map[string]any{"status": "ok"}
			}
		}

		writeHealthJSON(w, status, resp)
	}
}

func writeHealthJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
