package controllers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/lingodesk/lingodesk/app/models"
	"github.com/lingodesk/lingodesk/app/repository"
	"github.com/lingodesk/lingodesk/internal/pkg/billing"
	"github.com/lingodesk/lingodesk/internal/pkg/database"
	"github.com/lingodesk/lingodesk/internal/pkg/mail"
)

type invoiceLineItemRequest struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	Amount      int64  `json:"amount"`
}

type createInvoiceRequest struct {
	SubscriptionID *string                  `json:"subscription_id,omitempty"`
	CompanyName    string                   `json:"company_name"`
	PeriodStart    time.Time                `json:"period_start"`
	PeriodEnd      time.Time                `json:"period_end"`
	TaxAmount      int64                    `json:"tax_amount"`
	LineItems      []invoiceLineItemRequest `json:"line_items"`
}

// HandleInvoiceCreate creates an invoice from client-supplied line items.
// The money fields (subtotal, total, due) are derived by the reconciler, not
// taken from the request.
func HandleInvoiceCreate(c *fiber.Ctx) error {
	var req createInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	inv := &models.Invoice{
		SubscriptionID: req.SubscriptionID,
		CompanyName:    req.CompanyName,
		PeriodStart:    req.PeriodStart,
		PeriodEnd:      req.PeriodEnd,
		TaxAmount:      req.TaxAmount,
		Status:         models.InvoiceStatusPending,
	}
	for _, li := range req.LineItems {
		inv.LineItems = append(inv.LineItems, models.InvoiceLineItem{
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Amount:      li.Amount,
		})
	}
	if err := inv.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	repo := billing.NewRepository(database.GetDB())
	if req.SubscriptionID != nil {
		if _, err := repo.GetSubscription(*req.SubscriptionID); err != nil {
			if errors.Is(err, billing.ErrNotFound) {
				return jsonError(c, fiber.StatusNotFound, "subscription not found")
			}
			log.Errorf("[Invoice] Subscription check failed: %v", err)
			return jsonError(c, fiber.StatusInternalServerError, "invoice creation failed")
		}
	}

	if err := repo.CreateInvoice(inv); err != nil {
		log.Errorf("[Invoice] Create failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "invoice creation failed")
	}

	svc := billing.NewService(repo)
	if err := svc.ReconcileInvoice(c.Context(), inv.ID); err != nil {
		log.Errorf("[Invoice] Initial reconcile failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "invoice creation failed")
	}

	created, err := repo.GetInvoice(inv.ID)
	if err != nil {
		log.Errorf("[Invoice] Reload failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "invoice creation failed")
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// HandleInvoiceGet returns an invoice by id.
func HandleInvoiceGet(c *fiber.Ctx) error {
	inv, err := billing.NewRepository(database.GetDB()).GetInvoice(c.Params("id"))
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return jsonError(c, fiber.StatusNotFound, "invoice not found")
		}
		log.Errorf("[Invoice] Get failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "invoice lookup failed")
	}
	return c.JSON(inv)
}

// HandleInvoiceGenerate creates the next period invoice for a subscription
// from units_per_period x price_per_unit.
func HandleInvoiceGenerate(c *fiber.Ctx) error {
	repo := billing.NewRepository(database.GetDB())

	sub, err := repo.GetSubscription(c.Params("id"))
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return jsonError(c, fiber.StatusNotFound, "subscription not found")
		}
		log.Errorf("[Invoice] Generate lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "invoice generation failed")
	}
	if !sub.IsActive() {
		return jsonError(c, fiber.StatusUnprocessableEntity, "subscription is not active")
	}
	if sub.UnitsPerPeriod <= 0 || sub.PricePerUnit < 0 {
		return jsonError(c, fiber.StatusUnprocessableEntity, "subscription has no billable units configured")
	}

	periodStart := time.Now().UTC().Truncate(24 * time.Hour)
	periodEnd := periodStart.AddDate(0, sub.PeriodLength(), 0)

	amount := sub.UnitsPerPeriod * sub.PricePerUnit
	inv := &models.Invoice{
		SubscriptionID: &sub.ID,
		CompanyName:    sub.CompanyName,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Status:         models.InvoiceStatusPending,
		LineItems: []models.InvoiceLineItem{
			{
				Description: fmt.Sprintf("Translation services %s - %s (%d units)",
					periodStart.Format("2006-01-02"), periodEnd.Format("2006-01-02"), sub.UnitsPerPeriod),
				Quantity:  sub.UnitsPerPeriod,
				UnitPrice: sub.PricePerUnit,
				Amount:    amount,
			},
		},
	}
	if err := inv.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	}

	if err := repo.CreateInvoice(inv); err != nil {
		log.Errorf("[Invoice] Generate create failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "invoice generation failed")
	}

	svc := billing.NewService(repo)
	if err := svc.ReconcileInvoice(c.Context(), inv.ID); err != nil {
		log.Errorf("[Invoice] Generate reconcile failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "invoice generation failed")
	}

	created, err := repo.GetInvoice(inv.ID)
	if err != nil {
		log.Errorf("[Invoice] Generate reload failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "invoice generation failed")
	}

	go notifyInvoiceCreated(created)

	return c.Status(fiber.StatusCreated).JSON(created)
}

// notifyInvoiceCreated mails the company's billing contact. Best effort; a
// failed mail never fails the invoice.
func notifyInvoiceCreated(inv *models.Invoice) {
	company, err := repository.GetGlobalFactory().GetCompanyRepository().GetByName(inv.CompanyName)
	if err != nil || company.BillingEmail == "" {
		return
	}

	subject := fmt.Sprintf("Invoice for %s - %s", inv.PeriodStart.Format("2006-01-02"), inv.PeriodEnd.Format("2006-01-02"))
	body := fmt.Sprintf(
		"<p>A new invoice has been generated for %s.</p><p>Total: %d (minor units)<br>Due: %d</p>",
		inv.CompanyName, inv.TotalAmount, inv.AmountDue,
	)
	if err := mail.SendMail(company.BillingEmail, subject, body); err != nil {
		log.Warnf("[Invoice] Billing mail to %s failed: %v", company.BillingEmail, err)
	}
}
