package repository

import (
	"github.com/lingodesk/lingodesk/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// CompanyRepository defines the interface for company-related database operations
type CompanyRepository interface {
	Create(company *models.Company) error
	GetByID(id uint) (*models.Company, error)
	GetByName(name string) (*models.Company, error)
	Update(company *models.Company) error
	List(offset, limit int) ([]models.Company, int64, error)
	NameExists(name string) (bool, error)
}

// DocumentRepository defines the interface for uploaded translation documents
type DocumentRepository interface {
	Create(document *models.Document) error
	GetByID(id string) (*models.Document, error)
	ListByUser(userID uint, offset, limit int) ([]models.Document, int64, error)
	ListByCompany(companyID uint, offset, limit int) ([]models.Document, int64, error)
	UpdateStatus(id string, status string) error
	Delete(id string) error
	GetByUserAndChecksum(userID uint, checksum string) (*models.Document, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User     UserRepository
	Company  CompanyRepository
	Document DocumentRepository
}

// NewRepositories creates all repository instances with the given database connection
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:     NewUserRepository(db),
		Company:  NewCompanyRepository(db),
		Document: NewDocumentRepository(db),
	}
}
