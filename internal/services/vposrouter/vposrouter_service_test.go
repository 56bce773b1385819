package vposrouter

import (
	"context"
	"testing"

	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBinLookup struct {
	mock.Mock
}

func (m *MockBinLookup) Lookup(ctx context.Context, bin string) (*domain.BinInfo, error) {
	args := m.Called(ctx, bin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BinInfo), args.Error(1)
}

type noopLogger struct{}

func (noopLogger) Info(msg string, fields ...ports.Field)  {}
func (noopLogger) Error(msg string, fields ...ports.Field) {}
func (noopLogger) Warn(msg string, fields ...ports.Field)  {}
func (noopLogger) Debug(msg string, fields ...ports.Field) {}

func binInfo(bank *domain.Bank) *domain.BinInfo {
	return &domain.BinInfo{
		BinCode: &domain.BinCode{ID: 1, BinCode: "415565", BankID: bank.ID, IsActive: true},
		Bank:    bank,
	}
}

func TestSelectGateway_RecurringAlwaysPrimary(t *testing.T) {
	bins := new(MockBinLookup)
	svc := NewService(bins, noopLogger{})

	sel, err := svc.SelectGateway(context.Background(), "9999 9912 3456 7890", true)
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayTurkiyeFinans, sel.Gateway)
	assert.NotEmpty(t, sel.Reason)
	bins.AssertNotCalled(t, "Lookup")
}

func TestSelectGateway_ShortCardNumber(t *testing.T) {
	bins := new(MockBinLookup)
	svc := NewService(bins, noopLogger{})

	_, err := svc.SelectGateway(context.Background(), "4155", false)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeBinInvalid))
}

func TestSelectGateway_UnknownBinFallsBack(t *testing.T) {
	bins := new(MockBinLookup)
	svc := NewService(bins, noopLogger{})

	bins.On("Lookup", mock.Anything, "999999").Return(nil, domain.ErrBinNotFound)

	sel, err := svc.SelectGateway(context.Background(), "9999991234567890", false)
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayTurkiyeFinans, sel.Gateway)
	assert.NotEmpty(t, sel.Reason)
	assert.Nil(t, sel.Bank)
}

func TestSelectGateway_InactiveBankFallsBack(t *testing.T) {
	bins := new(MockBinLookup)
	svc := NewService(bins, noopLogger{})

	bank := &domain.Bank{ID: 7, Name: "Pasif Banka", IsActive: false, IsVirtualPosActive: true}
	bins.On("Lookup", mock.Anything, "415565").Return(binInfo(bank), nil)

	sel, err := svc.SelectGateway(context.Background(), "4155 6512 3456 7890", false)
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayTurkiyeFinans, sel.Gateway)
	assert.NotEmpty(t, sel.Reason)
	assert.Equal(t, bank, sel.Bank)
}

func TestSelectGateway_ActiveVposBankRoutesAlternate(t *testing.T) {
	bins := new(MockBinLookup)
	svc := NewService(bins, noopLogger{})

	bank := &domain.Bank{ID: 7, Name: "Yapı Kredi", IsActive: true, IsVirtualPosActive: true}
	bins.On("Lookup", mock.Anything, "415565").Return(binInfo(bank), nil)

	sel, err := svc.SelectGateway(context.Background(), "4155651234567890", false)
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayAlbaraka, sel.Gateway)
	assert.Contains(t, sel.Reason, "Yapı Kredi")
}

func TestSelectGateway_ActiveBankWithoutVposStaysPrimary(t *testing.T) {
	bins := new(MockBinLookup)
	svc := NewService(bins, noopLogger{})

	bank := &domain.Bank{ID: 7, Name: "Ziraat", IsActive: true, IsVirtualPosActive: false}
	bins.On("Lookup", mock.Anything, "415565").Return(binInfo(bank), nil)

	sel, err := svc.SelectGateway(context.Background(), "4155651234567890", false)
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayTurkiyeFinans, sel.Gateway)
	assert.Contains(t, sel.Reason, "Ziraat")
}

func TestSelectGateway_MissingBankFallsBack(t *testing.T) {
	bins := new(MockBinLookup)
	svc := NewService(bins, noopLogger{})

	info := &domain.BinInfo{BinCode: &domain.BinCode{ID: 1, BinCode: "415565"}}
	bins.On("Lookup", mock.Anything, "415565").Return(info, nil)

	sel, err := svc.SelectGateway(context.Background(), "4155651234567890", false)
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayTurkiyeFinans, sel.Gateway)
	assert.NotEmpty(t, sel.Reason)
}
