package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/iyilikvakfi/donation-service/pkg/timeutil"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CartValidator is the slice of the cart service the orchestrator needs
type CartValidator interface {
	Validate(ctx context.Context, sessionID string) (*domain.CartValidation, error)
	Clear(ctx context.Context, sessionID string) (int64, error)
}

// PaymentInfo carries donor and gateway context for a checkout
type PaymentInfo struct {
	PaymentMethod  domain.PaymentMethod
	PaymentGateway string
	ConversationID *string
	ThreeDSecure   bool
	DonorName      *string
	DonorEmail     *string
	DonorPhone     *string
	IsAnonymous    bool
}

// Result is the outcome of a started checkout. The payment is pending at
// this point; the cart survives until the gateway confirms.
type Result struct {
	Donations      []*domain.Donation         `json:"donations"`
	Transaction    *domain.PaymentTransaction `json:"transaction"`
	TotalAmount    decimal.Decimal            `json:"total_amount"`
	ConversationID string                     `json:"conversation_id"`
}

// Service turns a validated cart into pending donations plus one aggregate
// payment transaction
type Service struct {
	db             ports.DBPort
	cart           CartValidator
	donationRepo   ports.DonationRepository
	txnRepo        ports.TransactionRepository
	validator      ports.DonationValidator
	defaultGateway string
	logger         ports.Logger
}

// NewService creates a new checkout orchestrator. validator is optional.
func NewService(
	db ports.DBPort,
	cart CartValidator,
	donationRepo ports.DonationRepository,
	txnRepo ports.TransactionRepository,
	validator ports.DonationValidator,
	defaultGateway string,
	logger ports.Logger,
) *Service {
	if defaultGateway == "" {
		defaultGateway = string(domain.GatewayTurkiyeFinans)
	}
	return &Service{
		db:             db,
		cart:           cart,
		donationRepo:   donationRepo,
		txnRepo:        txnRepo,
		validator:      validator,
		defaultGateway: defaultGateway,
		logger:         logger,
	}
}

// Checkout validates the session's cart and, in a single commit, creates one
// pending donation per item plus an aggregate pending transaction linked to
// the first donation. The cart itself is untouched; it is cleared only after
// the gateway confirms payment.
func (s *Service) Checkout(ctx context.Context, sessionID string, info PaymentInfo) (*Result, error) {
	validation, err := s.cart.Validate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, domain.NewDomainError(domain.ErrorCodeCartInvalidItems,
			fmt.Sprintf("Sepet doğrulama başarısız: %s", strings.Join(validation.Errors, ", ")))
	}

	if info.PaymentMethod == "" {
		info.PaymentMethod = domain.PaymentMethodCreditCard
	}
	if info.PaymentGateway == "" {
		info.PaymentGateway = s.defaultGateway
	}

	now := timeutil.Now()
	conversationID := fmt.Sprintf("CART-%d", now.UnixMilli())
	if info.ConversationID != nil && *info.ConversationID != "" {
		conversationID = *info.ConversationID
	}

	donations := make([]*domain.Donation, 0, len(validation.Items))
	total := decimal.Zero
	currency := "TRY"

	for _, item := range validation.Items {
		donation := &domain.Donation{
			ID:             uuid.New().String(),
			Amount:         item.Amount,
			Currency:       item.Currency,
			PaymentMethod:  info.PaymentMethod,
			PaymentStatus:  domain.PaymentStatusPending,
			PaymentGateway: info.PaymentGateway,
			DonorName:      coalesce(item.DonorName, info.DonorName),
			DonorEmail:     coalesce(item.DonorEmail, info.DonorEmail),
			DonorPhone:     coalesce(item.DonorPhone, info.DonorPhone),
			CampaignID:     item.CampaignID,
			IsAnonymous:    info.IsAnonymous,
			RepeatCount:    item.RepeatCount,
			CreatedAt:      now,
		}
		if donation.Currency != "" {
			currency = donation.Currency
		}
		donations = append(donations, donation)
		total = total.Add(item.Amount)
	}

	if err := s.validateDonations(ctx, donations); err != nil {
		return nil, err
	}

	txn := &domain.PaymentTransaction{
		ID:             uuid.New().String(),
		Amount:         total,
		Currency:       currency,
		Status:         domain.TransactionStatusPending,
		PaymentGateway: info.PaymentGateway,
		ConversationID: &conversationID,
		DonationID:     &donations[0].ID,
		AttemptNumber:  1,
		ThreeDSecure:   info.ThreeDSecure,
		CreatedAt:      now,
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, donation := range donations {
			if err := s.donationRepo.Create(ctx, tx, donation); err != nil {
				return fmt.Errorf("create checkout donation: %w", err)
			}
		}
		if err := s.txnRepo.Create(ctx, tx, txn); err != nil {
			return fmt.Errorf("create checkout transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("checkout failed",
			ports.String("session_id", sessionID), ports.Err(err))
		return nil, err
	}

	s.logger.Info("checkout started",
		ports.String("session_id", sessionID),
		ports.String("conversation_id", conversationID),
		ports.Int("donations", len(donations)),
		ports.String("total", total.String()))

	return &Result{
		Donations:      donations,
		Transaction:    txn,
		TotalAmount:    total,
		ConversationID: conversationID,
	}, nil
}

// CompleteCheckout clears the session's cart after the gateway confirmed the
// payment. Donation and transaction status flips belong to the ledger's
// callback flow, not here.
func (s *Service) CompleteCheckout(ctx context.Context, sessionID string) (int64, error) {
	deleted, err := s.cart.Clear(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("checkout completed",
		ports.String("session_id", sessionID),
		ports.Int("cleared_items", int(deleted)))
	return deleted, nil
}

func (s *Service) validateDonations(ctx context.Context, donations []*domain.Donation) error {
	if s.validator == nil {
		return nil
	}
	for _, donation := range donations {
		payload := map[string]interface{}{
			"amount":      donation.Amount.InexactFloat64(),
			"currency":    donation.Currency,
			"isAnonymous": donation.IsAnonymous,
		}
		if donation.DonorEmail != nil {
			payload["donorEmail"] = *donation.DonorEmail
		}
		if donation.CampaignID != nil {
			payload["campaignId"] = *donation.CampaignID
		}

		result, err := s.validator.Validate(ctx, "donation", payload)
		if err != nil {
			return fmt.Errorf("donation validation: %w", err)
		}
		if !result.Valid {
			return domain.NewDomainError(domain.ErrorCodeValidationFailed,
				strings.Join(result.Errors, ", "))
		}
	}
	return nil
}

func coalesce(primary, fallback *string) *string {
	if primary != nil && *primary != "" {
		return primary
	}
	return fallback
}
