package botapp

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lubowsky/mood-tracker/internal/transport/http/handlers"
)

func (a *App) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	webhookHandler := handlers.NewPaymentWebhookHandler(a.paymentService, a.logger)

	r.Get("/healthz", healthHandler.Get)
	r.Post("/webhooks/payment", webhookHandler.Handle)

	return r
}
