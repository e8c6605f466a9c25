package routes

import (
	"github.com/go-chi/chi/v5"

	"usermgmt/internal/handlers"
	"usermgmt/internal/provisioner"
	"usermgmt/internal/reset"
)

func RegisterUserRoutes(router chi.Router, prov *provisioner.Provisioner, engine *reset.Engine) {
	userHandler := handlers.NewUserHandler(prov, engine)

	router.Route("/users", func(r chi.Router) {
		r.Post("/import", userHandler.ImportUsers)
	})
}
