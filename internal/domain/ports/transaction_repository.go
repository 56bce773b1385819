package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/iyilikvakfi/donation-service/internal/domain"
)

// TransactionFilter narrows ledger listings
type TransactionFilter struct {
	Status              *domain.TransactionStatus
	PaymentGateway      *string
	DonationID          *uuid.UUID
	RecurringDonationID *uuid.UUID
	Limit               int32
	Offset              int32
}

// TransactionRepository defines the interface for payment transaction
// persistence. Attempt history is append-only: resolved rows are written
// once and never rewritten.
type TransactionRepository interface {
	// Create inserts a new transaction
	Create(ctx context.Context, tx DBTX, txn *domain.PaymentTransaction) error

	// GetByID retrieves a transaction by its ID
	GetByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.PaymentTransaction, error)

	// List lists transactions matching the filter, newest first
	List(ctx context.Context, db DBTX, filter TransactionFilter) ([]*domain.PaymentTransaction, error)

	// Count counts transactions matching the filter
	Count(ctx context.Context, db DBTX, filter TransactionFilter) (int64, error)

	// Resolve writes the terminal outcome of a pending transaction
	Resolve(ctx context.Context, tx DBTX, txn *domain.PaymentTransaction) error

	// GetStatistics aggregates counts and success-only sums, optionally
	// windowed by creation date
	GetStatistics(ctx context.Context, db DBTX, start, end *time.Time) (*domain.TransactionStatistics, error)

	// GetStatisticsByGateway aggregates success-only counts and sums per gateway
	GetStatisticsByGateway(ctx context.Context, db DBTX) ([]*domain.GatewayStatistics, error)

	// ListStalePending lists pending transactions created before the cutoff,
	// oldest first, for manual reconciliation
	ListStalePending(ctx context.Context, db DBTX, cutoff time.Time, limit int32) ([]*domain.PaymentTransaction, error)
}
