package ledger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/iyilikvakfi/donation-service/internal/services/recurring"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDBPort struct {
	mock.Mock
}

func (m *MockDBPort) GetDB() *pgxpool.Pool {
	return nil
}

func (m *MockDBPort) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx, nil)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx ports.DBTX, txn *domain.PaymentTransaction) error {
	args := m.Called(ctx, tx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*domain.PaymentTransaction, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentTransaction), args.Error(1)
}

func (m *MockTransactionRepository) List(ctx context.Context, db ports.DBTX, filter ports.TransactionFilter) ([]*domain.PaymentTransaction, error) {
	args := m.Called(ctx, db, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentTransaction), args.Error(1)
}

func (m *MockTransactionRepository) Count(ctx context.Context, db ports.DBTX, filter ports.TransactionFilter) (int64, error) {
	args := m.Called(ctx, db, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) Resolve(ctx context.Context, tx ports.DBTX, txn *domain.PaymentTransaction) error {
	args := m.Called(ctx, tx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetStatistics(ctx context.Context, db ports.DBTX, start, end *time.Time) (*domain.TransactionStatistics, error) {
	args := m.Called(ctx, db, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TransactionStatistics), args.Error(1)
}

func (m *MockTransactionRepository) GetStatisticsByGateway(ctx context.Context, db ports.DBTX) ([]*domain.GatewayStatistics, error) {
	args := m.Called(ctx, db)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.GatewayStatistics), args.Error(1)
}

func (m *MockTransactionRepository) ListStalePending(ctx context.Context, db ports.DBTX, cutoff time.Time, limit int32) ([]*domain.PaymentTransaction, error) {
	args := m.Called(ctx, db, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentTransaction), args.Error(1)
}

type MockDonationRepository struct {
	mock.Mock
}

func (m *MockDonationRepository) Create(ctx context.Context, tx ports.DBTX, donation *domain.Donation) error {
	args := m.Called(ctx, tx, donation)
	return args.Error(0)
}

func (m *MockDonationRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*domain.Donation, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Donation), args.Error(1)
}

func (m *MockDonationRepository) UpdatePaymentStatus(ctx context.Context, tx ports.DBTX, id uuid.UUID, status domain.PaymentStatus, gatewayTxnID *string, gatewayResponse json.RawMessage) error {
	args := m.Called(ctx, tx, id, status, gatewayTxnID, gatewayResponse)
	return args.Error(0)
}

func (m *MockDonationRepository) ListByRecurring(ctx context.Context, db ports.DBTX, recurringID uuid.UUID, limit int32) ([]*domain.Donation, error) {
	args := m.Called(ctx, db, recurringID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Donation), args.Error(1)
}

type MockRecurringProcessor struct {
	mock.Mock
}

func (m *MockRecurringProcessor) ProcessPaymentSuccess(ctx context.Context, id uuid.UUID, payment recurring.PaymentData) (*domain.RecurringDonation, error) {
	args := m.Called(ctx, id, payment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecurringDonation), args.Error(1)
}

func (m *MockRecurringProcessor) ProcessPaymentFailure(ctx context.Context, id uuid.UUID, reason string) (*domain.RecurringDonation, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecurringDonation), args.Error(1)
}

type MockCampaignTotals struct {
	mock.Mock
}

func (m *MockCampaignTotals) Recalculate(ctx context.Context, campaignID int64) error {
	args := m.Called(ctx, campaignID)
	return args.Error(0)
}

type MockCartClearer struct {
	mock.Mock
}

func (m *MockCartClearer) Clear(ctx context.Context, sessionID string) (int64, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

type noopLogger struct{}

func (noopLogger) Info(msg string, fields ...ports.Field)  {}
func (noopLogger) Error(msg string, fields ...ports.Field) {}
func (noopLogger) Warn(msg string, fields ...ports.Field)  {}
func (noopLogger) Debug(msg string, fields ...ports.Field) {}

type fixture struct {
	db        *MockDBPort
	txns      *MockTransactionRepository
	donations *MockDonationRepository
	recurring *MockRecurringProcessor
	campaigns *MockCampaignTotals
	cart      *MockCartClearer
	svc       *Service
}

func newFixture() *fixture {
	f := &fixture{
		db:        new(MockDBPort),
		txns:      new(MockTransactionRepository),
		donations: new(MockDonationRepository),
		recurring: new(MockRecurringProcessor),
		campaigns: new(MockCampaignTotals),
		cart:      new(MockCartClearer),
	}
	f.svc = NewService(f.db, f.txns, f.donations, f.recurring, f.campaigns, f.cart, noopLogger{})
	return f
}

func strRef(s string) *string { return &s }

func pendingTxn(id uuid.UUID) *domain.PaymentTransaction {
	return &domain.PaymentTransaction{
		ID:             id.String(),
		Amount:         decimal.NewFromInt(250),
		Currency:       "TRY",
		Status:         domain.TransactionStatusPending,
		PaymentGateway: "turkiye_finans",
		AttemptNumber:  1,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestCreate_Defaults(t *testing.T) {
	f := newFixture()

	f.txns.On("Create", mock.Anything, nil, mock.AnythingOfType("*domain.PaymentTransaction")).Return(nil)

	txn, err := f.svc.Create(context.Background(), CreateInput{
		Amount:         decimal.NewFromInt(100),
		PaymentGateway: "turkiye_finans",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusPending, txn.Status)
	assert.Equal(t, "TRY", txn.Currency)
	assert.Equal(t, 1, txn.AttemptNumber)
	assert.NotEmpty(t, txn.ID)
}

func TestCreate_RejectsNonPositiveAmount(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), CreateInput{Amount: decimal.Zero})
	assert.True(t, domain.IsValidationError(err))
	f.txns.AssertNotCalled(t, "Create")
}

func TestMarkSuccess_ResolvesPending(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	txn := pendingTxn(id)

	f.txns.On("GetByID", mock.Anything, nil, id).Return(txn, nil)
	f.txns.On("Resolve", mock.Anything, nil, txn).Return(nil)

	resolved, err := f.svc.MarkSuccess(context.Background(), id, strRef("GW-1"), json.RawMessage(`{"ok":true}`))
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusSuccess, resolved.Status)
	assert.Equal(t, "GW-1", *resolved.GatewayTransactionID)
	assert.NotNil(t, resolved.ProcessedAt)
}

func TestMarkSuccess_RejectsResolved(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	txn := pendingTxn(id)
	txn.Status = domain.TransactionStatusSuccess

	f.txns.On("GetByID", mock.Anything, nil, id).Return(txn, nil)

	_, err := f.svc.MarkSuccess(context.Background(), id, nil, nil)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTxnAlreadyResolved))
	f.txns.AssertNotCalled(t, "Resolve")
}

func TestMarkFailed_RecordsErrorContext(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	txn := pendingTxn(id)

	f.txns.On("GetByID", mock.Anything, nil, id).Return(txn, nil)
	f.txns.On("Resolve", mock.Anything, nil, txn).Return(nil)

	resolved, err := f.svc.MarkFailed(context.Background(), id, strRef("91"), strRef("issuer down"), nil, true)
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusFailed, resolved.Status)
	assert.Equal(t, "91", *resolved.ErrorCode)
	assert.True(t, resolved.Retryable)
	assert.NotNil(t, resolved.ProcessedAt)
}

func TestRetry_CreatesNextAttempt(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	donationID := uuid.New().String()
	txn := pendingTxn(id)
	txn.Status = domain.TransactionStatusFailed
	txn.Retryable = true
	txn.AttemptNumber = 2
	txn.DonationID = &donationID

	f.txns.On("GetByID", mock.Anything, nil, id).Return(txn, nil)
	f.txns.On("Create", mock.Anything, nil, mock.AnythingOfType("*domain.PaymentTransaction")).Return(nil)

	next, err := f.svc.Retry(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusPending, next.Status)
	assert.Equal(t, 3, next.AttemptNumber)
	assert.Equal(t, donationID, *next.DonationID)
	assert.NotEqual(t, txn.ID, next.ID)
	assert.True(t, next.Amount.Equal(txn.Amount))
}

func TestRetry_Guards(t *testing.T) {
	f := newFixture()
	id := uuid.New()

	pending := pendingTxn(id)
	f.txns.On("GetByID", mock.Anything, nil, id).Return(pending, nil).Once()
	_, err := f.svc.Retry(context.Background(), id)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTxnNotFailed))

	failed := pendingTxn(id)
	failed.Status = domain.TransactionStatusFailed
	failed.Retryable = false
	f.txns.On("GetByID", mock.Anything, nil, id).Return(failed, nil).Once()
	_, err = f.svc.Retry(context.Background(), id)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTxnNotRetryable))

	f.txns.AssertNotCalled(t, "Create")
}

func TestGetStatistics_ComputesSuccessRate(t *testing.T) {
	f := newFixture()

	f.txns.On("GetStatistics", mock.Anything, nil, (*time.Time)(nil), (*time.Time)(nil)).
		Return(&domain.TransactionStatistics{
			Total:       8,
			Success:     6,
			Failed:      1,
			Pending:     1,
			TotalAmount: decimal.NewFromInt(600),
		}, nil)

	stats, err := f.svc.GetStatistics(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 75.0, stats.SuccessRate, 0.001)
}

func TestGetStatistics_ZeroTotal(t *testing.T) {
	f := newFixture()

	f.txns.On("GetStatistics", mock.Anything, nil, (*time.Time)(nil), (*time.Time)(nil)).
		Return(&domain.TransactionStatistics{}, nil)

	stats, err := f.svc.GetStatistics(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.SuccessRate)
}

func TestHandleCallback_SuccessUpdatesDonationAndClearsCart(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	donationID := uuid.New()
	campaignID := int64(42)
	donationRef := donationID.String()

	txn := pendingTxn(id)
	txn.DonationID = &donationRef

	f.txns.On("GetByID", mock.Anything, nil, id).Return(txn, nil)
	f.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	f.txns.On("Resolve", mock.Anything, nil, txn).Return(nil)
	f.donations.On("UpdatePaymentStatus", mock.Anything, nil, donationID, domain.PaymentStatusCompleted,
		strRef("GW-9"), mock.Anything).Return(nil)
	f.donations.On("GetByID", mock.Anything, nil, donationID).Return(&domain.Donation{
		ID:         donationRef,
		CampaignID: &campaignID,
	}, nil)
	f.campaigns.On("Recalculate", mock.Anything, campaignID).Return(nil)
	f.cart.On("Clear", mock.Anything, "sess-1").Return(int64(2), nil)

	resolved, err := f.svc.HandleCallback(context.Background(), Callback{
		TransactionID:        id,
		Success:              true,
		GatewayTransactionID: strRef("GW-9"),
		SessionID:            strRef("sess-1"),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusSuccess, resolved.Status)
	f.campaigns.AssertExpectations(t)
	f.cart.AssertExpectations(t)
	f.recurring.AssertNotCalled(t, "ProcessPaymentSuccess")
}

func TestHandleCallback_FailureRoutesToRecurring(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	recurringID := uuid.New()
	recurringRef := recurringID.String()

	txn := pendingTxn(id)
	txn.RecurringDonationID = &recurringRef

	f.txns.On("GetByID", mock.Anything, nil, id).Return(txn, nil)
	f.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	f.txns.On("Resolve", mock.Anything, nil, txn).Return(nil)
	f.recurring.On("ProcessPaymentFailure", mock.Anything, recurringID, "card expired").
		Return(&domain.RecurringDonation{ID: recurringRef}, nil)

	resolved, err := f.svc.HandleCallback(context.Background(), Callback{
		TransactionID: id,
		Success:       false,
		ErrorMessage:  strRef("card expired"),
		Retryable:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusFailed, resolved.Status)
	assert.True(t, resolved.Retryable)
	f.recurring.AssertExpectations(t)
	f.donations.AssertNotCalled(t, "UpdatePaymentStatus")
}

func TestHandleCallback_RejectsResolved(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	txn := pendingTxn(id)
	txn.Status = domain.TransactionStatusFailed

	f.txns.On("GetByID", mock.Anything, nil, id).Return(txn, nil)

	_, err := f.svc.HandleCallback(context.Background(), Callback{TransactionID: id, Success: true})
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTxnAlreadyResolved))
	f.txns.AssertNotCalled(t, "Resolve")
}

func TestListStalePending_UsesCutoff(t *testing.T) {
	f := newFixture()

	f.txns.On("ListStalePending", mock.Anything, nil, mock.MatchedBy(func(cutoff time.Time) bool {
		return time.Since(cutoff) > 50*time.Minute
	}), int32(100)).Return([]*domain.PaymentTransaction{}, nil)

	_, err := f.svc.ListStalePending(context.Background(), time.Hour, 0)
	require.NoError(t, err)
	f.txns.AssertExpectations(t)
}
