package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/lingodesk/lingodesk/app/models"
	"github.com/lingodesk/lingodesk/app/repository"
)

type createCompanyRequest struct {
	Name         string `json:"name"`
	BillingEmail string `json:"billing_email"`
}

// HandleCompanyCreate creates a company. Duplicate names are a client error,
// not an idempotent success; company names are the reference key
// subscriptions point at.
func HandleCompanyCreate(c *fiber.Ctx) error {
	var req createCompanyRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	company := &models.Company{
		Name:         req.Name,
		BillingEmail: req.BillingEmail,
		Status:       models.CompanyStatusActive,
	}
	if err := company.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	companyRepo := repository.GetGlobalFactory().GetCompanyRepository()
	exists, err := companyRepo.NameExists(company.Name)
	if err != nil {
		log.Errorf("[Company] Name check failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "company creation failed")
	}
	if exists {
		return jsonError(c, fiber.StatusConflict, "company name already exists")
	}

	if err := companyRepo.Create(company); err != nil {
		log.Errorf("[Company] Create failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "company creation failed")
	}

	return c.Status(fiber.StatusCreated).JSON(company)
}

// HandleCompanyGet returns a company by id.
func HandleCompanyGet(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid company id")
	}

	company, err := repository.GetGlobalFactory().GetCompanyRepository().GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "company not found")
		}
		log.Errorf("[Company] Get failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "company lookup failed")
	}

	return c.JSON(company)
}

// HandleCompanyList returns a paginated company listing.
func HandleCompanyList(c *fiber.Ctx) error {
	limit, skip := ParsePagination(c)

	companies, total, err := repository.GetGlobalFactory().GetCompanyRepository().List(skip, limit)
	if err != nil {
		log.Errorf("[Company] List failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "company listing failed")
	}

	return c.JSON(fiber.Map{
		"companies": companies,
		"page_info": PageInfo(limit, skip, total),
	})
}
