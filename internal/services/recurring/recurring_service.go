package recurring

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/iyilikvakfi/donation-service/pkg/timeutil"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Service is the recurring donation scheduler. It owns the subscription
// lifecycle and the periodic charge run.
type Service struct {
	db            ports.DBPort
	recurringRepo ports.RecurringRepository
	donationRepo  ports.DonationRepository
	txnRepo       ports.TransactionRepository
	campaigns     ports.CampaignTotals
	logger        ports.Logger
}

// NewService creates a new recurring donation service. campaigns is optional.
func NewService(
	db ports.DBPort,
	recurringRepo ports.RecurringRepository,
	donationRepo ports.DonationRepository,
	txnRepo ports.TransactionRepository,
	campaigns ports.CampaignTotals,
	logger ports.Logger,
) *Service {
	return &Service{
		db:            db,
		recurringRepo: recurringRepo,
		donationRepo:  donationRepo,
		txnRepo:       txnRepo,
		campaigns:     campaigns,
		logger:        logger,
	}
}

// CreateInput carries the fields of a new subscription
type CreateInput struct {
	Amount               decimal.Decimal
	Currency             string
	Frequency            domain.Frequency
	PaymentMethod        domain.PaymentMethod
	PaymentGateway       string
	CardToken            *string
	CardMask             *string
	CardBrand            *string
	TotalPaymentsPlanned *int
	DonorID              int64
	CampaignID           *int64
}

// Create opens an active subscription. The first charge is one period out,
// never immediate; an immediate payment belongs to the checkout flow.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.RecurringDonation, error) {
	if !input.Amount.IsPositive() {
		return nil, domain.ErrValidationAmountInvalid
	}

	now := timeutil.Now()
	rec := &domain.RecurringDonation{
		ID:                   uuid.New().String(),
		Amount:               input.Amount,
		Currency:             input.Currency,
		Frequency:            input.Frequency,
		Status:               domain.RecurringStatusActive,
		PaymentMethod:        input.PaymentMethod,
		PaymentGateway:       input.PaymentGateway,
		CardToken:            input.CardToken,
		CardMask:             input.CardMask,
		CardBrand:            input.CardBrand,
		TotalPaymentsPlanned: input.TotalPaymentsPlanned,
		DonorID:              input.DonorID,
		CampaignID:           input.CampaignID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if rec.Currency == "" {
		rec.Currency = "TRY"
	}
	if rec.Frequency == "" {
		rec.Frequency = domain.FrequencyMonthly
	}
	if rec.PaymentMethod == "" {
		rec.PaymentMethod = domain.PaymentMethodCreditCard
	}
	if rec.PaymentGateway == "" {
		rec.PaymentGateway = string(domain.GatewayTurkiyeFinans)
	}

	next := domain.NextChargeDate(now, rec.Frequency)
	rec.NextPaymentDate = &next

	if err := s.recurringRepo.Create(ctx, nil, rec); err != nil {
		return nil, fmt.Errorf("create recurring donation: %w", err)
	}

	s.logger.Info("recurring donation created",
		ports.String("recurring_id", rec.ID),
		ports.String("frequency", string(rec.Frequency)),
		ports.String("amount", rec.Amount.String()))
	return rec, nil
}

// GetByID retrieves one subscription
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.RecurringDonation, error) {
	return s.recurringRepo.GetByID(ctx, nil, id)
}

// List returns matching subscriptions plus the unpaged total
func (s *Service) List(ctx context.Context, filter ports.RecurringFilter) ([]*domain.RecurringDonation, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	recs, err := s.recurringRepo.List(ctx, nil, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.recurringRepo.Count(ctx, nil, filter)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// UpdateInput carries the optional fields of a subscription update
type UpdateInput struct {
	Amount               *decimal.Decimal
	Currency             *string
	Frequency            *domain.Frequency
	CardToken            *string
	CardMask             *string
	CardBrand            *string
	TotalPaymentsPlanned *int
}

// Update patches a non-terminal subscription
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*domain.RecurringDonation, error) {
	rec, err := s.recurringRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if rec.IsTerminal() {
		return nil, domain.ErrRecurringTerminal
	}

	if input.Amount != nil {
		if !input.Amount.IsPositive() {
			return nil, domain.ErrValidationAmountInvalid
		}
		rec.Amount = *input.Amount
	}
	if input.Currency != nil {
		rec.Currency = *input.Currency
	}
	if input.Frequency != nil {
		rec.Frequency = *input.Frequency
	}
	if input.CardToken != nil {
		rec.CardToken = input.CardToken
	}
	if input.CardMask != nil {
		rec.CardMask = input.CardMask
	}
	if input.CardBrand != nil {
		rec.CardBrand = input.CardBrand
	}
	if input.TotalPaymentsPlanned != nil {
		rec.TotalPaymentsPlanned = input.TotalPaymentsPlanned
	}
	rec.UpdatedAt = timeutil.Now()

	if err := s.recurringRepo.Update(ctx, nil, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Pause suspends charging without losing the subscription
func (s *Service) Pause(ctx context.Context, id uuid.UUID) (*domain.RecurringDonation, error) {
	rec, err := s.recurringRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if !rec.IsActive() {
		return nil, domain.ErrRecurringNotActive
	}

	now := timeutil.Now()
	rec.Status = domain.RecurringStatusPaused
	rec.PausedAt = &now
	rec.UpdatedAt = now

	if err := s.recurringRepo.Update(ctx, nil, rec); err != nil {
		return nil, err
	}

	s.logger.Info("recurring donation paused", ports.String("recurring_id", rec.ID))
	return rec, nil
}

// Resume reactivates a paused subscription. The next charge is one period
// from today, not from the stale pre-pause date.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) (*domain.RecurringDonation, error) {
	rec, err := s.recurringRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.RecurringStatusPaused {
		return nil, domain.ErrRecurringNotPaused
	}

	now := timeutil.Now()
	next := domain.NextChargeDate(now, rec.Frequency)
	rec.Status = domain.RecurringStatusActive
	rec.NextPaymentDate = &next
	rec.PausedAt = nil
	rec.UpdatedAt = now

	if err := s.recurringRepo.Update(ctx, nil, rec); err != nil {
		return nil, err
	}

	s.logger.Info("recurring donation resumed", ports.String("recurring_id", rec.ID))
	return rec, nil
}

// Cancel terminally ends a subscription, keeping the reason on record
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason *string) (*domain.RecurringDonation, error) {
	rec, err := s.recurringRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if rec.IsTerminal() {
		return nil, domain.ErrRecurringTerminal
	}

	if err := s.cancelTx(ctx, nil, rec, reason); err != nil {
		return nil, err
	}

	s.logger.Info("recurring donation cancelled", ports.String("recurring_id", rec.ID))
	return rec, nil
}

func (s *Service) cancelTx(ctx context.Context, tx ports.DBTX, rec *domain.RecurringDonation, reason *string) error {
	now := timeutil.Now()
	rec.Status = domain.RecurringStatusCancelled
	rec.EndedAt = &now
	rec.NextPaymentDate = nil
	rec.LastFailureReason = reason
	rec.UpdatedAt = now
	return s.recurringRepo.Update(ctx, tx, rec)
}

// GetDue lists active subscriptions whose charge date has arrived
func (s *Service) GetDue(ctx context.Context, limit int32) ([]*domain.RecurringDonation, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.recurringRepo.ListDue(ctx, nil, timeutil.StartOfDay(timeutil.Now()), limit)
}

// PaymentData carries gateway context into a successful-payment transition
type PaymentData struct {
	GatewayTransactionID *string
	GatewayResponse      json.RawMessage
	ConversationID       *string
	CreateTransaction    bool
}

// ProcessPaymentSuccess records one successful charge: a completed donation,
// optionally its ledger row, and the advanced schedule, all in one commit.
// Reaching the planned payment count completes the subscription.
func (s *Service) ProcessPaymentSuccess(ctx context.Context, id uuid.UUID, payment PaymentData) (*domain.RecurringDonation, error) {
	rec, err := s.recurringRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.applyPaymentSuccess(ctx, tx, rec, payment)
	})
	if err != nil {
		return nil, err
	}

	s.recalculateCampaign(ctx, rec.CampaignID)

	s.logger.Info("recurring payment recorded",
		ports.String("recurring_id", rec.ID),
		ports.Int("payments_made", rec.TotalPaymentsMade),
		ports.String("status", string(rec.Status)))
	return rec, nil
}

// applyPaymentSuccess writes the donation, the optional ledger row and the
// advanced schedule using the caller's transaction.
func (s *Service) applyPaymentSuccess(ctx context.Context, tx ports.DBTX, rec *domain.RecurringDonation, payment PaymentData) error {
	now := timeutil.Now()
	message := fmt.Sprintf("Düzenli bağış - %s", rec.Frequency)
	recurringID := rec.ID

	donation := &domain.Donation{
		ID:                   uuid.New().String(),
		Amount:               rec.Amount,
		Currency:             rec.Currency,
		PaymentMethod:        rec.PaymentMethod,
		PaymentStatus:        domain.PaymentStatusCompleted,
		PaymentGateway:       rec.PaymentGateway,
		GatewayTransactionID: payment.GatewayTransactionID,
		GatewayResponse:      payment.GatewayResponse,
		DonorID:              &rec.DonorID,
		CampaignID:           rec.CampaignID,
		RecurringDonationID:  &recurringID,
		Message:              &message,
		RepeatCount:          1,
		CompletedAt:          &now,
		CreatedAt:            now,
	}

	if err := s.donationRepo.Create(ctx, tx, donation); err != nil {
		return fmt.Errorf("create recurring payment donation: %w", err)
	}

	if payment.CreateTransaction {
		txn := &domain.PaymentTransaction{
			ID:                   uuid.New().String(),
			Amount:               rec.Amount,
			Currency:             rec.Currency,
			Status:               domain.TransactionStatusSuccess,
			PaymentGateway:       rec.PaymentGateway,
			GatewayTransactionID: payment.GatewayTransactionID,
			GatewayResponse:      payment.GatewayResponse,
			ConversationID:       payment.ConversationID,
			RecurringDonationID:  &recurringID,
			AttemptNumber:        1,
			ProcessedAt:          &now,
			CreatedAt:            now,
		}
		if err := s.txnRepo.Create(ctx, tx, txn); err != nil {
			return fmt.Errorf("create recurring payment transaction: %w", err)
		}
	}

	if rec.ShouldComplete() {
		rec.Status = domain.RecurringStatusCompleted
		rec.NextPaymentDate = nil
		rec.EndedAt = &now
	} else {
		next := domain.NextChargeDate(now, rec.Frequency)
		rec.NextPaymentDate = &next
	}
	rec.LastPaymentDate = &now
	rec.TotalPaymentsMade++
	rec.FailedAttempts = 0
	rec.LastFailureReason = nil
	rec.UpdatedAt = now

	return s.recurringRepo.Update(ctx, tx, rec)
}

func (s *Service) recalculateCampaign(ctx context.Context, campaignID *int64) {
	if campaignID == nil || s.campaigns == nil {
		return
	}
	if err := s.campaigns.Recalculate(ctx, *campaignID); err != nil {
		s.logger.Warn("campaign total recalculation failed",
			ports.Int("campaign_id", int(*campaignID)), ports.Err(err))
	}
}

// ProcessPaymentFailure counts a failed charge. Hitting the failure cap
// cancels the subscription with an auto-cancel reason.
func (s *Service) ProcessPaymentFailure(ctx context.Context, id uuid.UUID, reason string) (*domain.RecurringDonation, error) {
	rec, err := s.recurringRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyPaymentFailure(ctx, nil, rec, reason); err != nil {
		return nil, err
	}
	return rec, nil
}

// applyPaymentFailure records one failed charge using the caller's transaction
func (s *Service) applyPaymentFailure(ctx context.Context, tx ports.DBTX, rec *domain.RecurringDonation, reason string) error {
	if rec.FailedAttempts+1 >= domain.MaxFailedAttempts {
		auto := domain.AutoCancelPrefix + reason
		if err := s.cancelTx(ctx, tx, rec, &auto); err != nil {
			return err
		}
		s.logger.Warn("recurring donation auto-cancelled",
			ports.String("recurring_id", rec.ID),
			ports.String("reason", reason))
		return nil
	}

	rec.FailedAttempts++
	rec.LastFailureReason = &reason
	rec.UpdatedAt = timeutil.Now()

	if err := s.recurringRepo.Update(ctx, tx, rec); err != nil {
		return err
	}

	s.logger.Warn("recurring payment failed",
		ports.String("recurring_id", rec.ID),
		ports.Int("failed_attempts", rec.FailedAttempts))
	return nil
}

// GetStatistics summarizes the subscription book
func (s *Service) GetStatistics(ctx context.Context) (*domain.RecurringStatistics, error) {
	return s.recurringRepo.GetStatistics(ctx, nil)
}
