package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/lingodesk/lingodesk/app/repository"
	"github.com/lingodesk/lingodesk/internal/pkg/billing"
	"github.com/lingodesk/lingodesk/internal/pkg/database"
)

type paymentNotifyRequest struct {
	Provider          string `json:"provider"`
	ProviderPaymentID string `json:"provider_payment_id"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	CustomerEmail     string `json:"customer_email"`
	Status            string `json:"status"`
}

type refundRequest struct {
	Provider       string `json:"provider"`
	RefundID       string `json:"refund_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotency_key"`
}

// HandlePaymentNotify is the client-fallback surface. The browser reports a
// payment outcome; whether the webhook already handled it is decided from
// stored state, never from timing.
func HandlePaymentNotify(c *fiber.Ctx) error {
	var req paymentNotifyRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Provider == "" || req.ProviderPaymentID == "" {
		return jsonError(c, fiber.StatusBadRequest, "provider and provider_payment_id are required")
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	payment, alreadyProcessed, err := svc.HandleClientNotification(c.Context(), billing.ClientNotificationInput{
		Provider:          req.Provider,
		ProviderPaymentID: req.ProviderPaymentID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		CustomerEmail:     req.CustomerEmail,
		Status:            req.Status,
	})
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidAmount):
			return jsonError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, billing.ErrNotFound), errors.Is(err, billing.ErrMismatch):
			return jsonError(c, fiber.StatusNotFound, err.Error())
		default:
			log.Errorf("[Payment] Client notification from %s failed: %v", GetClientIP(c), err)
			return jsonError(c, fiber.StatusInternalServerError, "payment notification failed")
		}
	}

	resp := fiber.Map{"success": true}
	if alreadyProcessed {
		resp["already_processed"] = true
	}
	if payment != nil {
		resp["payment_id"] = payment.ID
	}
	return c.JSON(resp)
}

// HandleRefundCreate applies a refund to a payment. Replaying the same
// idempotency key returns the originally applied refund.
func HandleRefundCreate(c *fiber.Ctx) error {
	var req refundRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.Provider == "" {
		return jsonError(c, fiber.StatusBadRequest, "provider is required")
	}
	if req.IdempotencyKey == "" {
		return jsonError(c, fiber.StatusBadRequest, "idempotency_key is required")
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	payment, refund, err := svc.RefundPayment(c.Context(), billing.RefundInput{
		Provider:          req.Provider,
		ProviderPaymentID: c.Params("provider_payment_id"),
		ProviderRefundID:  req.RefundID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		IdempotencyKey:    req.IdempotencyKey,
	})
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrNotFound):
			return jsonError(c, fiber.StatusNotFound, "payment not found")
		case errors.Is(err, billing.ErrRefundExceedsAvailable):
			return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, billing.ErrInvalidAmount):
			return jsonError(c, fiber.StatusBadRequest, err.Error())
		default:
			log.Errorf("[Payment] Refund failed: %v", err)
			return jsonError(c, fiber.StatusInternalServerError, "refund failed")
		}
	}

	return c.JSON(fiber.Map{
		"payment": payment,
		"refund":  refund,
	})
}

// HandlePaymentGet returns a payment by internal id.
func HandlePaymentGet(c *fiber.Ctx) error {
	payment, err := billing.NewRepository(database.GetDB()).GetPayment(c.Params("id"))
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return jsonError(c, fiber.StatusNotFound, "payment not found")
		}
		log.Errorf("[Payment] Get failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "payment lookup failed")
	}
	return c.JSON(payment)
}

// HandleCompanyPayments lists a company's payments, paginated.
func HandleCompanyPayments(c *fiber.Ctx) error {
	company, done := companyFromParam(c)
	if company == nil {
		return done
	}
	limit, skip := ParsePagination(c)

	payments, total, err := billing.NewRepository(database.GetDB()).ListPaymentsByCompany(company.Name, limit, skip)
	if err != nil {
		log.Errorf("[Payment] Company listing failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "payment listing failed")
	}

	return c.JSON(fiber.Map{
		"payments":  payments,
		"page_info": PageInfo(limit, skip, total),
	})
}

// HandleCompanyTransactions lists a company's bookkeeping rows, paginated.
func HandleCompanyTransactions(c *fiber.Ctx) error {
	company, done := companyFromParam(c)
	if company == nil {
		return done
	}
	limit, skip := ParsePagination(c)

	transactions, total, err := billing.NewRepository(database.GetDB()).ListTransactionsByCompany(company.Name, limit, skip)
	if err != nil {
		log.Errorf("[Payment] Transaction listing failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "transaction listing failed")
	}

	return c.JSON(fiber.Map{
		"transactions": transactions,
		"page_info":    PageInfo(limit, skip, total),
	})
}

// companyFromParam resolves the :id route parameter to a company record. A
// nil company means the response has already been written.
func companyFromParam(c *fiber.Ctx) (*companyRef, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, jsonError(c, fiber.StatusBadRequest, "invalid company id")
	}

	company, err := repository.GetGlobalFactory().GetCompanyRepository().GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, jsonError(c, fiber.StatusNotFound, "company not found")
		}
		log.Errorf("[Payment] Company lookup failed: %v", err)
		return nil, jsonError(c, fiber.StatusInternalServerError, "company lookup failed")
	}

	return &companyRef{ID: company.ID, Name: company.Name}, nil
}

type companyRef struct {
	ID   uint
	Name string
}
