package repository

import (
	"github.com/lingodesk/lingodesk/app/models"
	"gorm.io/gorm"
)

// documentRepository implements the DocumentRepository interface
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new document repository instance
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create creates a new document record
func (r *documentRepository) Create(document *models.Document) error {
	return r.db.Create(document).Error
}

// GetByID retrieves a document by its ID
func (r *documentRepository) GetByID(id string) (*models.Document, error) {
	var document models.Document
	err := r.db.Where("id = ?", id).First(&document).Error
	if err != nil {
		return nil, err
	}
	return &document, nil
}

// ListByUser retrieves a paginated list of a user's documents plus the total count
func (r *documentRepository) ListByUser(userID uint, offset, limit int) ([]models.Document, int64, error) {
	var total int64
	if err := r.db.Model(&models.Document{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var documents []models.Document
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&documents).Error
	return documents, total, err
}

// ListByCompany retrieves a paginated list of a company's documents plus the total count
func (r *documentRepository) ListByCompany(companyID uint, offset, limit int) ([]models.Document, int64, error) {
	var total int64
	if err := r.db.Model(&models.Document{}).Where("company_id = ?", companyID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var documents []models.Document
	err := r.db.Where("company_id = ?", companyID).
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&documents).Error
	return documents, total, err
}

// UpdateStatus updates a document's status
func (r *documentRepository) UpdateStatus(id string, status string) error {
	return r.db.Model(&models.Document{}).Where("id = ?", id).Update("status", status).Error
}

// Delete soft deletes a document by its ID
func (r *documentRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.Document{}).Error
}

// GetByUserAndChecksum finds a previous upload of the same content by the same user
func (r *documentRepository) GetByUserAndChecksum(userID uint, checksum string) (*models.Document, error) {
	var document models.Document
	err := r.db.Where("user_id = ? AND checksum = ?", userID, checksum).First(&document).Error
	if err != nil {
		return nil, err
	}
	return &document, nil
}
