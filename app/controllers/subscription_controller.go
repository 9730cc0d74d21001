package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/lingodesk/lingodesk/app/models"
	"github.com/lingodesk/lingodesk/internal/pkg/billing"
	"github.com/lingodesk/lingodesk/internal/pkg/database"
)

type createSubscriptionRequest struct {
	CompanyName      string     `json:"company_name"`
	BillingFrequency string     `json:"billing_frequency"`
	PaymentTermsDays int        `json:"payment_terms_days"`
	UnitsPerPeriod   int64      `json:"units_per_period"`
	PricePerUnit     int64      `json:"price_per_unit"`
	StartDate        time.Time  `json:"start_date"`
	EndDate          *time.Time `json:"end_date,omitempty"`
}

// HandleSubscriptionCreate creates a subscription. The company must exist at
// creation time; the store itself does not enforce the reference.
func HandleSubscriptionCreate(c *fiber.Ctx) error {
	var req createSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	sub := &models.Subscription{
		CompanyName:      req.CompanyName,
		BillingFrequency: req.BillingFrequency,
		PaymentTermsDays: req.PaymentTermsDays,
		UnitsPerPeriod:   req.UnitsPerPeriod,
		PricePerUnit:     req.PricePerUnit,
		Status:           models.SubscriptionStatusActive,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
	}
	if err := sub.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	repo := billing.NewRepository(database.GetDB())
	exists, err := repo.CompanyExists(sub.CompanyName)
	if err != nil {
		log.Errorf("[Subscription] Company check failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "subscription creation failed")
	}
	if !exists {
		return jsonError(c, fiber.StatusNotFound, "company not found")
	}

	if err := repo.CreateSubscription(sub); err != nil {
		log.Errorf("[Subscription] Create failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "subscription creation failed")
	}

	return c.Status(fiber.StatusCreated).JSON(sub)
}

// HandleSubscriptionGet returns a subscription by id.
func HandleSubscriptionGet(c *fiber.Ctx) error {
	sub, err := billing.NewRepository(database.GetDB()).GetSubscription(c.Params("id"))
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return jsonError(c, fiber.StatusNotFound, "subscription not found")
		}
		log.Errorf("[Subscription] Get failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "subscription lookup failed")
	}
	return c.JSON(sub)
}

// HandleSubscriptionExpire soft-expires a subscription. Referenced
// subscriptions are never hard-deleted.
func HandleSubscriptionExpire(c *fiber.Ctx) error {
	repo := billing.NewRepository(database.GetDB())

	sub, err := repo.GetSubscription(c.Params("id"))
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return jsonError(c, fiber.StatusNotFound, "subscription not found")
		}
		log.Errorf("[Subscription] Expire lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "subscription lookup failed")
	}

	if sub.Status != models.SubscriptionStatusExpired {
		if err := repo.UpdateSubscriptionStatus(sub.ID, models.SubscriptionStatusExpired); err != nil {
			log.Errorf("[Subscription] Expire failed: %v", err)
			return jsonError(c, fiber.StatusInternalServerError, "subscription expire failed")
		}
		sub.Status = models.SubscriptionStatusExpired
	}

	return c.JSON(sub)
}
