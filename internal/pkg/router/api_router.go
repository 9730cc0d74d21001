package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/lingodesk/lingodesk/app/controllers"
	"github.com/lingodesk/lingodesk/internal/pkg/middleware"
	"github.com/lingodesk/lingodesk/internal/pkg/session"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "lingodesk api",
		})
	})

	v1 := api.Group("/v1", middleware.UserContextMiddleware)

	auth := v1.Group("/auth")
	auth.Post("/register", controllers.HandleAuthRegister)
	auth.Post("/login", controllers.HandleAuthLogin)
	auth.Post("/logout", controllers.HandleAuthLogout)

	// The client-fallback surface is called from payment pages before a
	// session necessarily exists; everything else requires login.
	v1.Post("/payments/notify", controllers.HandlePaymentNotify)

	protected := v1.Group("", middleware.RequireAuth)

	protected.Post("/companies", middleware.RequireAdmin, controllers.HandleCompanyCreate)
	protected.Get("/companies", controllers.HandleCompanyList)
	protected.Get("/companies/:id", controllers.HandleCompanyGet)
	protected.Get("/companies/:id/payments", controllers.HandleCompanyPayments)
	protected.Get("/companies/:id/transactions", controllers.HandleCompanyTransactions)

	protected.Post("/subscriptions", middleware.RequireAdmin, controllers.HandleSubscriptionCreate)
	protected.Get("/subscriptions/:id", controllers.HandleSubscriptionGet)
	protected.Post("/subscriptions/:id/expire", middleware.RequireAdmin, controllers.HandleSubscriptionExpire)
	protected.Post("/subscriptions/:id/invoices/generate", middleware.RequireAdmin, controllers.HandleInvoiceGenerate)

	protected.Post("/invoices", middleware.RequireAdmin, controllers.HandleInvoiceCreate)
	protected.Get("/invoices/:id", controllers.HandleInvoiceGet)

	protected.Get("/payments/:id", controllers.HandlePaymentGet)
	protected.Post("/payments/:provider_payment_id/refunds", middleware.RequireAdmin, controllers.HandleRefundCreate)

	protected.Post("/documents", controllers.HandleDocumentUpload)
	protected.Get("/documents", controllers.HandleDocumentList)
	protected.Get("/documents/:id/download", controllers.HandleDocumentDownload)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
