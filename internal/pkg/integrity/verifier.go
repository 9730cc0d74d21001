package integrity

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/lingodesk/lingodesk/app/models"
)

// Store is the data access surface the verifier needs. Kept small so tests
// can run against an in-memory fake.
type Store interface {
	DistinctSubscriptionCompanyNames(ctx context.Context) ([]string, error)
	CompanyNamesExisting(ctx context.Context, names []string) (map[string]bool, error)
	CountSubscriptionsByCompanyName(ctx context.Context, name string) (int64, error)
	CreatePlaceholderCompany(ctx context.Context, name string) (*models.Company, error)
	CompanyNameIndexIsUnique(ctx context.Context) (bool, error)
}

// Report is the outcome of a verification run.
type Report struct {
	CompaniesReferenced   int      `json:"companies_referenced"`
	OrphanedSubscriptions []Orphan `json:"orphaned_subscriptions"`
	PlaceholdersCreated   []string `json:"placeholders_created,omitempty"`
	IndexMisconfigured    bool     `json:"index_misconfigured"`
}

// Orphan is a company name referenced by subscriptions but missing from the
// companies table.
type Orphan struct {
	CompanyName       string `json:"company_name"`
	SubscriptionCount int64  `json:"subscription_count"`
}

// Clean reports whether the run found nothing to repair.
func (r *Report) Clean() bool {
	return len(r.OrphanedSubscriptions) == 0 && !r.IndexMisconfigured
}

// Verifier cross-checks subscription→company references out of band.
type Verifier struct {
	store Store
}

func NewVerifier(store Store) *Verifier {
	return &Verifier{store: store}
}

// NewVerifierFromDB wires the verifier to a GORM handle.
func NewVerifierFromDB(db *gorm.DB) *Verifier {
	return NewVerifier(&gormStore{db: db})
}

// Run enumerates distinct company references on subscriptions, diffs them
// against existing companies, and reports orphans. With fix enabled it
// creates placeholder companies instead of touching the subscriptions.
func (v *Verifier) Run(ctx context.Context, fix bool) (*Report, error) {
	names, err := v.store.DistinctSubscriptionCompanyNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list referenced companies: %w", err)
	}

	report := &Report{CompaniesReferenced: len(names)}

	existing, err := v.store.CompanyNamesExisting(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("check existing companies: %w", err)
	}

	for _, name := range names {
		if existing[name] {
			continue
		}
		count, err := v.store.CountSubscriptionsByCompanyName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("count subscriptions for %q: %w", name, err)
		}
		report.OrphanedSubscriptions = append(report.OrphanedSubscriptions, Orphan{
			CompanyName:       name,
			SubscriptionCount: count,
		})

		if fix {
			if _, err := v.store.CreatePlaceholderCompany(ctx, name); err != nil {
				return nil, fmt.Errorf("create placeholder company %q: %w", name, err)
			}
			report.PlaceholdersCreated = append(report.PlaceholdersCreated, name)
			log.Warnf("[Integrity] Created placeholder company %q for %d orphaned subscriptions", name, count)
		} else {
			log.Warnf("[Integrity] Orphaned subscriptions: %d reference missing company %q", count, name)
		}
	}

	// A unique index on company_name silently caps companies at one
	// subscription each. This has happened before; keep checking for it.
	unique, err := v.store.CompanyNameIndexIsUnique(ctx)
	if err != nil {
		return nil, fmt.Errorf("inspect company_name index: %w", err)
	}
	if unique {
		report.IndexMisconfigured = true
		log.Errorf("[Integrity] idx_subscriptions_company_name is UNIQUE; multi-subscription companies will fail inserts")
	}

	return report, nil
}
