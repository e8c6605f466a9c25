package routes

import (
	"github.com/go-chi/chi/v5"

	"usermgmt/internal/handlers"
	"usermgmt/internal/reset"
)

func RegisterAuthRoutes(router chi.Router, engine *reset.Engine) {
	authHandler := handlers.NewAuthHandler(engine)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/reset-password", authHandler.ResetPassword)
	})
}
