package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lingodesk/lingodesk/app/controllers"
)

type WebhookRouter struct {
}

// InstallRouter registers the provider callback endpoints. No session, no
// rate limiter: providers retry aggressively and authenticate by signature.
func (h WebhookRouter) InstallRouter(app *fiber.App) {
	webhooks := app.Group("/webhooks")
	webhooks.Post("/square", controllers.HandleSquareWebhook)
	webhooks.Post("/stripe", controllers.HandleStripeWebhook)
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}
