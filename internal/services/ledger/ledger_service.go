package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/iyilikvakfi/donation-service/internal/services/recurring"
	"github.com/iyilikvakfi/donation-service/pkg/timeutil"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// RecurringProcessor is the slice of the scheduler the callback flow needs
type RecurringProcessor interface {
	ProcessPaymentSuccess(ctx context.Context, id uuid.UUID, payment recurring.PaymentData) (*domain.RecurringDonation, error)
	ProcessPaymentFailure(ctx context.Context, id uuid.UUID, reason string) (*domain.RecurringDonation, error)
}

// CartClearer clears a session's cart once its payment is confirmed
type CartClearer interface {
	Clear(ctx context.Context, sessionID string) (int64, error)
}

// Service is the payment transaction ledger. Attempts are append-only:
// a resolved row is never rewritten, retries add a new row.
type Service struct {
	db           ports.DBPort
	txnRepo      ports.TransactionRepository
	donationRepo ports.DonationRepository
	recurring    RecurringProcessor
	campaigns    ports.CampaignTotals
	cart         CartClearer
	logger       ports.Logger
}

// NewService creates a new ledger service. recurring, campaigns and cart are
// optional collaborators; nil skips the corresponding callback step.
func NewService(
	db ports.DBPort,
	txnRepo ports.TransactionRepository,
	donationRepo ports.DonationRepository,
	recurring RecurringProcessor,
	campaigns ports.CampaignTotals,
	cart CartClearer,
	logger ports.Logger,
) *Service {
	return &Service{
		db:           db,
		txnRepo:      txnRepo,
		donationRepo: donationRepo,
		recurring:    recurring,
		campaigns:    campaigns,
		cart:         cart,
		logger:       logger,
	}
}

// CreateInput carries the fields of a new ledger entry
type CreateInput struct {
	Amount              decimal.Decimal
	Currency            string
	PaymentGateway      string
	ConversationID      *string
	DonationID          *string
	RecurringDonationID *string
	ThreeDSecure        bool
}

// Create records a new pending attempt
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.PaymentTransaction, error) {
	if !input.Amount.IsPositive() {
		return nil, domain.ErrValidationAmountInvalid
	}

	txn := &domain.PaymentTransaction{
		ID:                  uuid.New().String(),
		Amount:              input.Amount,
		Currency:            input.Currency,
		Status:              domain.TransactionStatusPending,
		PaymentGateway:      input.PaymentGateway,
		AttemptNumber:       1,
		ConversationID:      input.ConversationID,
		DonationID:          input.DonationID,
		RecurringDonationID: input.RecurringDonationID,
		ThreeDSecure:        input.ThreeDSecure,
		CreatedAt:           timeutil.Now(),
	}
	if txn.Currency == "" {
		txn.Currency = "TRY"
	}

	if err := s.txnRepo.Create(ctx, nil, txn); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	s.logger.Info("transaction created",
		ports.String("transaction_id", txn.ID),
		ports.String("gateway", txn.PaymentGateway),
		ports.String("amount", txn.Amount.String()))
	return txn, nil
}

// GetByID retrieves one ledger entry
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error) {
	return s.txnRepo.GetByID(ctx, nil, id)
}

// List returns matching entries plus the unpaged total
func (s *Service) List(ctx context.Context, filter ports.TransactionFilter) ([]*domain.PaymentTransaction, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	txns, err := s.txnRepo.List(ctx, nil, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.txnRepo.Count(ctx, nil, filter)
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// MarkSuccess resolves a pending attempt as successful. Resolving an already
// resolved attempt is a conflict.
func (s *Service) MarkSuccess(ctx context.Context, id uuid.UUID, gatewayTxnID *string, response json.RawMessage) (*domain.PaymentTransaction, error) {
	txn, err := s.txnRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if txn.IsResolved() {
		return nil, domain.ErrTxnAlreadyResolved
	}

	now := timeutil.Now()
	txn.Status = domain.TransactionStatusSuccess
	txn.GatewayTransactionID = gatewayTxnID
	if response != nil {
		txn.GatewayResponse = response
	}
	txn.ProcessedAt = &now

	if err := s.txnRepo.Resolve(ctx, nil, txn); err != nil {
		return nil, err
	}

	s.logger.Info("transaction marked success", ports.String("transaction_id", txn.ID))
	return txn, nil
}

// MarkFailed resolves a pending attempt as failed
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, errorCode, errorMessage *string, response json.RawMessage, retryable bool) (*domain.PaymentTransaction, error) {
	txn, err := s.txnRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if txn.IsResolved() {
		return nil, domain.ErrTxnAlreadyResolved
	}

	now := timeutil.Now()
	txn.Status = domain.TransactionStatusFailed
	txn.ErrorCode = errorCode
	txn.ErrorMessage = errorMessage
	if response != nil {
		txn.GatewayResponse = response
	}
	txn.Retryable = retryable
	txn.ProcessedAt = &now

	if err := s.txnRepo.Resolve(ctx, nil, txn); err != nil {
		return nil, err
	}

	s.logger.Info("transaction marked failed",
		ports.String("transaction_id", txn.ID),
		ports.Bool("retryable", retryable))
	return txn, nil
}

// Retry opens a fresh attempt for a failed, retryable entry. The failed row
// stays untouched; the new row carries the incremented attempt number.
func (s *Service) Retry(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error) {
	txn, err := s.txnRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if txn.Status != domain.TransactionStatusFailed {
		return nil, domain.ErrTxnNotFailed
	}
	if !txn.Retryable {
		return nil, domain.ErrTxnNotRetryable
	}

	next := txn.NextAttempt()
	next.ID = uuid.New().String()
	next.CreatedAt = timeutil.Now()

	if err := s.txnRepo.Create(ctx, nil, next); err != nil {
		return nil, fmt.Errorf("create retry attempt: %w", err)
	}

	s.logger.Info("transaction retry opened",
		ports.String("failed_id", txn.ID),
		ports.String("retry_id", next.ID),
		ports.Int("attempt", next.AttemptNumber))
	return next, nil
}

// GetStatistics aggregates the ledger, optionally windowed by creation date.
// The success rate is success/total as a percentage; amounts count successful
// attempts only.
func (s *Service) GetStatistics(ctx context.Context, start, end *time.Time) (*domain.TransactionStatistics, error) {
	stats, err := s.txnRepo.GetStatistics(ctx, nil, start, end)
	if err != nil {
		return nil, err
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Success) / float64(stats.Total) * 100
	}
	return stats, nil
}

// GetStatisticsByGateway aggregates successful attempts per gateway
func (s *Service) GetStatisticsByGateway(ctx context.Context) ([]*domain.GatewayStatistics, error) {
	return s.txnRepo.GetStatisticsByGateway(ctx, nil)
}

// ListStalePending lists attempts still pending after the given age, for
// manual reconciliation against the gateway
func (s *Service) ListStalePending(ctx context.Context, olderThan time.Duration, limit int32) ([]*domain.PaymentTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := timeutil.Now().Add(-olderThan)
	return s.txnRepo.ListStalePending(ctx, nil, cutoff, limit)
}

// Callback is the gateway's asynchronous verdict on one attempt
type Callback struct {
	TransactionID        uuid.UUID
	Success              bool
	GatewayTransactionID *string
	ErrorCode            *string
	ErrorMessage         *string
	Response             json.RawMessage
	Retryable            bool
	SessionID            *string
}

// HandleCallback resolves the attempt and fans the outcome out to the linked
// donation or recurring subscription. The resolve and the donation update
// commit together; downstream hooks run after and only log on failure.
func (s *Service) HandleCallback(ctx context.Context, cb Callback) (*domain.PaymentTransaction, error) {
	txn, err := s.txnRepo.GetByID(ctx, nil, cb.TransactionID)
	if err != nil {
		return nil, err
	}
	if txn.IsResolved() {
		return nil, domain.ErrTxnAlreadyResolved
	}

	now := timeutil.Now()
	if cb.Success {
		txn.Status = domain.TransactionStatusSuccess
		txn.GatewayTransactionID = cb.GatewayTransactionID
	} else {
		txn.Status = domain.TransactionStatusFailed
		txn.ErrorCode = cb.ErrorCode
		txn.ErrorMessage = cb.ErrorMessage
		txn.Retryable = cb.Retryable
	}
	if cb.Response != nil {
		txn.GatewayResponse = cb.Response
	}
	txn.ProcessedAt = &now

	var completedCampaign *int64

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.txnRepo.Resolve(ctx, tx, txn); err != nil {
			return err
		}

		if txn.DonationID == nil {
			return nil
		}
		donationID, err := uuid.Parse(*txn.DonationID)
		if err != nil {
			return fmt.Errorf("invalid donation link: %w", err)
		}

		status := domain.PaymentStatusFailed
		if cb.Success {
			status = domain.PaymentStatusCompleted
		}
		if err := s.donationRepo.UpdatePaymentStatus(ctx, tx, donationID, status, cb.GatewayTransactionID, cb.Response); err != nil {
			return err
		}

		if cb.Success {
			donation, err := s.donationRepo.GetByID(ctx, tx, donationID)
			if err != nil {
				return err
			}
			completedCampaign = donation.CampaignID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if completedCampaign != nil && s.campaigns != nil {
		if err := s.campaigns.Recalculate(ctx, *completedCampaign); err != nil {
			s.logger.Warn("campaign total recalculation failed",
				ports.Int("campaign_id", int(*completedCampaign)), ports.Err(err))
		}
	}

	if txn.RecurringDonationID != nil && s.recurring != nil {
		recurringID, err := uuid.Parse(*txn.RecurringDonationID)
		if err != nil {
			return nil, fmt.Errorf("invalid recurring link: %w", err)
		}
		if cb.Success {
			// The resolved row above already records this attempt, so the
			// scheduler must not open another one.
			_, err = s.recurring.ProcessPaymentSuccess(ctx, recurringID, recurring.PaymentData{
				GatewayTransactionID: cb.GatewayTransactionID,
				GatewayResponse:      cb.Response,
				ConversationID:       txn.ConversationID,
			})
		} else {
			reason := "Payment failed"
			if cb.ErrorMessage != nil {
				reason = *cb.ErrorMessage
			}
			_, err = s.recurring.ProcessPaymentFailure(ctx, recurringID, reason)
		}
		if err != nil {
			s.logger.Error("recurring follow-up failed",
				ports.String("recurring_id", recurringID.String()), ports.Err(err))
			return nil, err
		}
	}

	if cb.Success && cb.SessionID != nil && s.cart != nil {
		if _, err := s.cart.Clear(ctx, *cb.SessionID); err != nil {
			s.logger.Warn("cart clear after payment failed",
				ports.String("session_id", *cb.SessionID), ports.Err(err))
		}
	}

	s.logger.Info("transaction callback processed",
		ports.String("transaction_id", txn.ID),
		ports.Bool("success", cb.Success))
	return txn, nil
}
