package ports

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/iyilikvakfi/donation-service/internal/domain"
)

// DonationRepository defines the interface for donation persistence.
// Donations are financial records: there is no delete.
type DonationRepository interface {
	// Create inserts a new donation
	Create(ctx context.Context, tx DBTX, donation *domain.Donation) error

	// GetByID retrieves a donation by its ID
	GetByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Donation, error)

	// UpdatePaymentStatus transitions a donation's payment status and stamps
	// completed_at/failed_at accordingly
	UpdatePaymentStatus(ctx context.Context, tx DBTX, id uuid.UUID, status domain.PaymentStatus, gatewayTxnID *string, gatewayResponse json.RawMessage) error

	// ListByRecurring lists donations created by a recurring subscription
	ListByRecurring(ctx context.Context, db DBTX, recurringID uuid.UUID, limit int32) ([]*domain.Donation, error)
}
