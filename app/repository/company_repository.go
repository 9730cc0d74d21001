package repository

import (
	"github.com/lingodesk/lingodesk/app/models"
	"gorm.io/gorm"
)

// companyRepository implements the CompanyRepository interface
type companyRepository struct {
	db *gorm.DB
}

// NewCompanyRepository creates a new company repository instance
func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &companyRepository{db: db}
}

// Create creates a new company in the database
func (r *companyRepository) Create(company *models.Company) error {
	return r.db.Create(company).Error
}

// GetByID retrieves a company by its ID
func (r *companyRepository) GetByID(id uint) (*models.Company, error) {
	var company models.Company
	err := r.db.First(&company, id).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

// GetByName retrieves a company by its unique name
func (r *companyRepository) GetByName(name string) (*models.Company, error) {
	var company models.Company
	err := r.db.Where("name = ?", name).First(&company).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

// Update updates an existing company in the database
func (r *companyRepository) Update(company *models.Company) error {
	return r.db.Save(company).Error
}

// List retrieves a paginated list of companies plus the total count
func (r *companyRepository) List(offset, limit int) ([]models.Company, int64, error) {
	var total int64
	if err := r.db.Model(&models.Company{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var companies []models.Company
	err := r.db.Order("name ASC").Offset(offset).Limit(limit).Find(&companies).Error
	return companies, total, err
}

// NameExists reports whether a company with the given name exists
func (r *companyRepository) NameExists(name string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Company{}).Where("name = ?", name).Count(&count).Error
	return count > 0, err
}
