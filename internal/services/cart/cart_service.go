package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/iyilikvakfi/donation-service/pkg/timeutil"
	"github.com/shopspring/decimal"
)

// Validation messages shown to donors
const (
	msgCartEmpty      = "Sepet boş"
	msgExpiredItems   = "Sepetinizde süresi dolmuş öğeler var"
	msgInvalidAmounts = "Sepetinizde geçersiz tutarlar var"
)

// Service implements the session-scoped donation cart
type Service struct {
	cartRepo ports.CartRepository
	logger   ports.Logger

	// Serializes AddItem's read-merge-write per session. Two tabs adding to
	// the same campaign must not race into duplicate rows.
	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

// NewService creates a new cart service
func NewService(cartRepo ports.CartRepository, logger ports.Logger) *Service {
	return &Service{
		cartRepo: cartRepo,
		logger:   logger,
		sessions: make(map[string]*sync.Mutex),
	}
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.sessions[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.sessions[sessionID] = lock
	}
	return lock
}

// GetOrCreateSessionID returns the given session ID or mints a new one
func GetOrCreateSessionID(sessionID string) string {
	if sessionID != "" {
		return sessionID
	}
	return uuid.New().String()
}

// AddItemInput carries the fields a donor submits when adding to the cart
type AddItemInput struct {
	Amount       decimal.Decimal
	Currency     string
	DonationType domain.DonationType
	RepeatCount  int
	CampaignID   *int64
	DonorName    *string
	DonorEmail   *string
	DonorPhone   *string
}

// AddItem adds a donation intent to the session's cart. A second add for the
// same campaign merges into the existing row by increasing its amount; the
// row's expiry slides forward either way.
func (s *Service) AddItem(ctx context.Context, sessionID string, input AddItemInput) (*domain.CartItem, error) {
	if !input.Amount.IsPositive() {
		return nil, domain.ErrValidationAmountInvalid
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	now := timeutil.Now()

	existing, err := s.cartRepo.FindBySessionAndCampaign(ctx, nil, sessionID, input.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("find existing cart item: %w", err)
	}

	if existing != nil {
		existing.Amount = existing.Amount.Add(input.Amount)
		existing.ExpiresAt = now.Add(domain.CartItemTTL)
		existing.UpdatedAt = now
		if err := s.cartRepo.Update(ctx, nil, existing); err != nil {
			return nil, fmt.Errorf("merge cart item: %w", err)
		}
		s.logger.Debug("merged cart item",
			ports.String("session_id", sessionID),
			ports.String("item_id", existing.ID))
		return existing, nil
	}

	item := &domain.CartItem{
		ID:           uuid.New().String(),
		SessionID:    sessionID,
		Amount:       input.Amount,
		Currency:     input.Currency,
		DonationType: input.DonationType,
		RepeatCount:  input.RepeatCount,
		CampaignID:   input.CampaignID,
		DonorName:    input.DonorName,
		DonorEmail:   input.DonorEmail,
		DonorPhone:   input.DonorPhone,
		ExpiresAt:    now.Add(domain.CartItemTTL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if item.Currency == "" {
		item.Currency = "TRY"
	}
	if item.DonationType == "" {
		item.DonationType = domain.DonationTypeOneTime
	}
	if item.RepeatCount <= 0 {
		item.RepeatCount = 1
	}

	if err := s.cartRepo.Create(ctx, nil, item); err != nil {
		return nil, fmt.Errorf("create cart item: %w", err)
	}

	s.logger.Info("cart item added",
		ports.String("session_id", sessionID),
		ports.String("item_id", item.ID),
		ports.String("amount", item.Amount.String()))
	return item, nil
}

// GetCart returns the session's cart with totals
func (s *Service) GetCart(ctx context.Context, sessionID string) (*domain.CartSummary, error) {
	items, err := s.cartRepo.FindBySession(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}

	return &domain.CartSummary{
		SessionID:   sessionID,
		Items:       items,
		ItemCount:   len(items),
		TotalAmount: total,
	}, nil
}

// UpdateItemInput carries the optional fields of a cart item update
type UpdateItemInput struct {
	Amount       *decimal.Decimal
	Currency     *string
	DonationType *domain.DonationType
	RepeatCount  *int
	DonorName    *string
	DonorEmail   *string
	DonorPhone   *string
}

// UpdateItem patches a cart item and slides its expiry forward
func (s *Service) UpdateItem(ctx context.Context, id uuid.UUID, input UpdateItemInput) (*domain.CartItem, error) {
	item, err := s.cartRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	if input.Amount != nil {
		if !input.Amount.IsPositive() {
			return nil, domain.ErrValidationAmountInvalid
		}
		item.Amount = *input.Amount
	}
	if input.Currency != nil {
		item.Currency = *input.Currency
	}
	if input.DonationType != nil {
		item.DonationType = *input.DonationType
	}
	if input.RepeatCount != nil {
		item.RepeatCount = *input.RepeatCount
	}
	if input.DonorName != nil {
		item.DonorName = input.DonorName
	}
	if input.DonorEmail != nil {
		item.DonorEmail = input.DonorEmail
	}
	if input.DonorPhone != nil {
		item.DonorPhone = input.DonorPhone
	}

	now := timeutil.Now()
	item.ExpiresAt = now.Add(domain.CartItemTTL)
	item.UpdatedAt = now

	if err := s.cartRepo.Update(ctx, nil, item); err != nil {
		return nil, err
	}
	return item, nil
}

// RemoveItem deletes a single cart item
func (s *Service) RemoveItem(ctx context.Context, id uuid.UUID) error {
	return s.cartRepo.Delete(ctx, nil, id)
}

// Clear removes every item in the session's cart
func (s *Service) Clear(ctx context.Context, sessionID string) (int64, error) {
	deleted, err := s.cartRepo.DeleteBySession(ctx, nil, sessionID)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("cart cleared",
			ports.String("session_id", sessionID),
			ports.Int("deleted", int(deleted)))
	}
	return deleted, nil
}

// Validate checks a cart is ready for checkout. An empty cart short-circuits;
// otherwise all problems are reported together.
func (s *Service) Validate(ctx context.Context, sessionID string) (*domain.CartValidation, error) {
	items, err := s.cartRepo.FindBySession(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("validate cart: %w", err)
	}

	if len(items) == 0 {
		return &domain.CartValidation{Valid: false, Errors: []string{msgCartEmpty}}, nil
	}

	var errs []string
	now := timeutil.Now()

	for _, item := range items {
		if item.IsExpired(now) {
			errs = append(errs, msgExpiredItems)
			break
		}
	}
	for _, item := range items {
		if !item.HasValidAmount() {
			errs = append(errs, msgInvalidAmounts)
			break
		}
	}

	if len(errs) > 0 {
		return &domain.CartValidation{Valid: false, Errors: errs}, nil
	}
	return &domain.CartValidation{Valid: true, Items: items}, nil
}

// SweepExpired deletes expired items across all sessions. Safe to run from
// overlapping cron windows.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	deleted, err := s.cartRepo.DeleteExpired(ctx, nil, timeutil.Now())
	if err != nil {
		return 0, fmt.Errorf("sweep expired cart items: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("expired cart items swept", ports.Int("deleted", int(deleted)))
	}
	return deleted, nil
}
