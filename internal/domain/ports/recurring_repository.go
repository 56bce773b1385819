package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/iyilikvakfi/donation-service/internal/domain"
)

// RecurringFilter narrows recurring donation listings
type RecurringFilter struct {
	Status     *domain.RecurringStatus
	Frequency  *domain.Frequency
	DonorID    *int64
	CampaignID *int64
	Limit      int32
	Offset     int32
}

// RecurringRepository defines the interface for recurring donation persistence
type RecurringRepository interface {
	// Create inserts a new recurring donation
	Create(ctx context.Context, tx DBTX, rec *domain.RecurringDonation) error

	// GetByID retrieves a recurring donation by its ID
	GetByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.RecurringDonation, error)

	// Update rewrites the mutable fields of a recurring donation
	Update(ctx context.Context, tx DBTX, rec *domain.RecurringDonation) error

	// List lists recurring donations matching the filter
	List(ctx context.Context, db DBTX, filter RecurringFilter) ([]*domain.RecurringDonation, error)

	// Count counts recurring donations matching the filter
	Count(ctx context.Context, db DBTX, filter RecurringFilter) (int64, error)

	// ListDue lists active subscriptions due as of the (date-truncated)
	// cutoff, oldest due first
	ListDue(ctx context.Context, db DBTX, asOf time.Time, limit int32) ([]*domain.RecurringDonation, error)

	// ClaimDue re-reads one subscription inside a transaction with a row
	// lock, skipping rows locked by a concurrent run. Returns nil when the
	// subscription is no longer due, so overlapping cron windows cannot
	// double-charge it.
	ClaimDue(ctx context.Context, tx DBTX, id uuid.UUID, asOf time.Time) (*domain.RecurringDonation, error)

	// GetStatistics aggregates subscription counts and the active monthly sum
	GetStatistics(ctx context.Context, db DBTX) (*domain.RecurringStatistics, error)
}
