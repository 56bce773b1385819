package recurring

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/iyilikvakfi/donation-service/internal/services/vposrouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGatewaySelector struct {
	mock.Mock
}

func (m *MockGatewaySelector) SelectGateway(ctx context.Context, cardNumber string, isRecurring bool) (*vposrouter.Selection, error) {
	args := m.Called(ctx, cardNumber, isRecurring)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vposrouter.Selection), args.Error(1)
}

type MockPaymentGateway struct {
	mock.Mock
	name domain.Gateway
}

func (m *MockPaymentGateway) Name() domain.Gateway {
	return m.name
}

func (m *MockPaymentGateway) Charge(ctx context.Context, req *ports.ChargeRequest) (*ports.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ChargeResult), args.Error(1)
}

func primarySelection() *vposrouter.Selection {
	return &vposrouter.Selection{
		Gateway: domain.GatewayTurkiyeFinans,
		Reason:  "Düzenli ödemeler her zaman Türkiye Finans VPOS kullanır",
	}
}

func TestProcessDueCharges_ChargesAndAdvances(t *testing.T) {
	f := newFixture()
	router := new(MockGatewaySelector)
	gateway := &MockPaymentGateway{name: domain.GatewayTurkiyeFinans}
	charger := NewCharger(f.svc, router, []ports.PaymentGateway{gateway}, noopLogger{})

	id := uuid.New()
	rec := activeRecurring(id)
	asOf := time.Now().UTC().Truncate(24 * time.Hour)

	f.recs.On("ListDue", mock.Anything, nil, asOf, int32(100)).Return([]*domain.RecurringDonation{rec}, nil)
	f.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	f.recs.On("ClaimDue", mock.Anything, nil, id, asOf).Return(rec, nil)
	router.On("SelectGateway", mock.Anything, "", true).Return(primarySelection(), nil)
	gateway.On("Charge", mock.Anything, mock.MatchedBy(func(req *ports.ChargeRequest) bool {
		return req.Recurring && req.CardToken == "tok_abc123" && req.Amount.Equal(rec.Amount)
	})).Return(&ports.ChargeResult{Approved: true, GatewayTransactionID: "GW-7"}, nil)
	f.donations.On("Create", mock.Anything, nil, mock.AnythingOfType("*domain.Donation")).Return(nil)
	f.txns.On("Create", mock.Anything, nil, mock.AnythingOfType("*domain.PaymentTransaction")).Return(nil)
	f.recs.On("Update", mock.Anything, nil, rec).Return(nil)

	result, err := charger.ProcessDueCharges(context.Background(), asOf, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Success)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 1, rec.TotalPaymentsMade)
}

func TestProcessDueCharges_SkipsClaimedRows(t *testing.T) {
	f := newFixture()
	router := new(MockGatewaySelector)
	gateway := &MockPaymentGateway{name: domain.GatewayTurkiyeFinans}
	charger := NewCharger(f.svc, router, []ports.PaymentGateway{gateway}, noopLogger{})

	id := uuid.New()
	rec := activeRecurring(id)
	asOf := time.Now().UTC().Truncate(24 * time.Hour)

	f.recs.On("ListDue", mock.Anything, nil, asOf, int32(100)).Return([]*domain.RecurringDonation{rec}, nil)
	f.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	f.recs.On("ClaimDue", mock.Anything, nil, id, asOf).Return(nil, nil)

	result, err := charger.ProcessDueCharges(context.Background(), asOf, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Success)
	gateway.AssertNotCalled(t, "Charge")
}

func TestProcessDueCharges_DeclineRecordsFailure(t *testing.T) {
	f := newFixture()
	router := new(MockGatewaySelector)
	gateway := &MockPaymentGateway{name: domain.GatewayTurkiyeFinans}
	charger := NewCharger(f.svc, router, []ports.PaymentGateway{gateway}, noopLogger{})

	id := uuid.New()
	rec := activeRecurring(id)
	asOf := time.Now().UTC().Truncate(24 * time.Hour)

	f.recs.On("ListDue", mock.Anything, nil, asOf, int32(100)).Return([]*domain.RecurringDonation{rec}, nil)
	f.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	f.recs.On("ClaimDue", mock.Anything, nil, id, asOf).Return(rec, nil)
	router.On("SelectGateway", mock.Anything, "", true).Return(primarySelection(), nil)
	gateway.On("Charge", mock.Anything, mock.Anything).
		Return(&ports.ChargeResult{Approved: false, ResponseCode: "51", ResponseMessage: "insufficient funds"}, nil)
	f.recs.On("Update", mock.Anything, nil, rec).Return(nil)

	result, err := charger.ProcessDueCharges(context.Background(), asOf, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, rec.ID, result.Errors[0].RecurringID)
	assert.Equal(t, 1, rec.FailedAttempts)
	assert.Equal(t, "insufficient funds", *rec.LastFailureReason)
	f.donations.AssertNotCalled(t, "Create")
}

func TestProcessDueCharges_MissingCardTokenFails(t *testing.T) {
	f := newFixture()
	router := new(MockGatewaySelector)
	gateway := &MockPaymentGateway{name: domain.GatewayTurkiyeFinans}
	charger := NewCharger(f.svc, router, []ports.PaymentGateway{gateway}, noopLogger{})

	id := uuid.New()
	rec := activeRecurring(id)
	rec.CardToken = nil
	asOf := time.Now().UTC().Truncate(24 * time.Hour)

	f.recs.On("ListDue", mock.Anything, nil, asOf, int32(100)).Return([]*domain.RecurringDonation{rec}, nil)
	f.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	f.recs.On("ClaimDue", mock.Anything, nil, id, asOf).Return(rec, nil)
	f.recs.On("Update", mock.Anything, nil, rec).Return(nil)

	result, err := charger.ProcessDueCharges(context.Background(), asOf, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, rec.FailedAttempts)
	gateway.AssertNotCalled(t, "Charge")
}
