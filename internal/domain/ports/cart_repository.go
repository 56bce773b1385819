package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/iyilikvakfi/donation-service/internal/domain"
)

// CartRepository defines the interface for cart item persistence
type CartRepository interface {
	// Create inserts a new cart item
	Create(ctx context.Context, tx DBTX, item *domain.CartItem) error

	// GetByID retrieves a cart item by its ID
	GetByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.CartItem, error)

	// FindBySession lists all items in a session's cart, oldest first
	FindBySession(ctx context.Context, db DBTX, sessionID string) ([]*domain.CartItem, error)

	// FindBySessionAndCampaign finds the single item a session holds for a
	// campaign, or nil when none exists
	FindBySessionAndCampaign(ctx context.Context, db DBTX, sessionID string, campaignID *int64) (*domain.CartItem, error)

	// Update rewrites the mutable fields of a cart item
	Update(ctx context.Context, tx DBTX, item *domain.CartItem) error

	// Delete removes a single cart item
	Delete(ctx context.Context, tx DBTX, id uuid.UUID) error

	// DeleteBySession removes every item in a session's cart
	DeleteBySession(ctx context.Context, tx DBTX, sessionID string) (int64, error)

	// DeleteExpired removes all items whose expiry is at or before the cutoff,
	// regardless of session
	DeleteExpired(ctx context.Context, tx DBTX, cutoff time.Time) (int64, error)
}
