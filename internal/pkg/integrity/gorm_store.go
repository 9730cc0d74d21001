package integrity

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/lingodesk/lingodesk/app/models"
)

type gormStore struct {
	db *gorm.DB
}

func (s *gormStore) DistinctSubscriptionCompanyNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("company_name <> ''").
		Distinct("company_name").
		Pluck("company_name", &names).Error
	return names, err
}

func (s *gormStore) CompanyNamesExisting(ctx context.Context, names []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(names))
	if len(names) == 0 {
		return existing, nil
	}

	var found []string
	err := s.db.WithContext(ctx).
		Model(&models.Company{}).
		Where("name IN ?", names).
		Pluck("name", &found).Error
	if err != nil {
		return nil, err
	}
	for _, name := range found {
		existing[name] = true
	}
	return existing, nil
}

func (s *gormStore) CountSubscriptionsByCompanyName(ctx context.Context, name string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("company_name = ?", name).
		Count(&count).Error
	return count, err
}

func (s *gormStore) CreatePlaceholderCompany(ctx context.Context, name string) (*models.Company, error) {
	company := &models.Company{
		Name:        name,
		Status:      models.CompanyStatusInactive,
		Placeholder: true,
	}
	if err := s.db.WithContext(ctx).Create(company).Error; err != nil {
		return nil, err
	}
	return company, nil
}

// CompanyNameIndexIsUnique inspects the live schema. The company_name index
// on subscriptions must allow duplicates; a UNIQUE variant blocks companies
// from holding more than one subscription.
func (s *gormStore) CompanyNameIndexIsUnique(ctx context.Context) (bool, error) {
	type indexRow struct {
		NonUnique int `gorm:"column:NON_UNIQUE"`
	}
	var rows []indexRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT NON_UNIQUE FROM information_schema.statistics
		 WHERE table_schema = DATABASE()
		   AND table_name = 'subscriptions'
		   AND index_name = 'idx_subscriptions_company_name'`,
	).Scan(&rows).Error
	if err != nil {
		return false, fmt.Errorf("query index metadata: %w", err)
	}
	for _, row := range rows {
		if row.NonUnique == 0 {
			return true, nil
		}
	}
	return false, nil
}
