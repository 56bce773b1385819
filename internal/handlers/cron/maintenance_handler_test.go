package cron

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	cartsvc "github.com/iyilikvakfi/donation-service/internal/services/cart"
)

type noopLogger struct{}

func (noopLogger) Info(string, ...ports.Field)  {}
func (noopLogger) Error(string, ...ports.Field) {}
func (noopLogger) Warn(string, ...ports.Field)  {}
func (noopLogger) Debug(string, ...ports.Field) {}

type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) Create(ctx context.Context, tx ports.DBTX, item *domain.CartItem) error {
	return m.Called(ctx, tx, item).Error(0)
}

func (m *MockCartRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*domain.CartItem, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CartItem), args.Error(1)
}

func (m *MockCartRepository) FindBySession(ctx context.Context, db ports.DBTX, sessionID string) ([]*domain.CartItem, error) {
	args := m.Called(ctx, db, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CartItem), args.Error(1)
}

func (m *MockCartRepository) FindBySessionAndCampaign(ctx context.Context, db ports.DBTX, sessionID string, campaignID *int64) (*domain.CartItem, error) {
	args := m.Called(ctx, db, sessionID, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CartItem), args.Error(1)
}

func (m *MockCartRepository) Update(ctx context.Context, tx ports.DBTX, item *domain.CartItem) error {
	return m.Called(ctx, tx, item).Error(0)
}

func (m *MockCartRepository) Delete(ctx context.Context, tx ports.DBTX, id uuid.UUID) error {
	return m.Called(ctx, tx, id).Error(0)
}

func (m *MockCartRepository) DeleteBySession(ctx context.Context, tx ports.DBTX, sessionID string) (int64, error) {
	args := m.Called(ctx, tx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCartRepository) DeleteExpired(ctx context.Context, tx ports.DBTX, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, tx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func newTestRouter(cartRepo *MockCartRepository, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)

	carts := cartsvc.NewService(cartRepo, noopLogger{})
	handler := NewHandler(carts, nil, nil, nil, noopLogger{}, secret, 100, time.Hour)

	r := gin.New()
	handler.RegisterRoutes(r.Group("/cron"))
	return r
}

func TestSweepCarts_RequiresSecret(t *testing.T) {
	cartRepo := new(MockCartRepository)
	r := newTestRouter(cartRepo, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/cron/sweep-carts", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	cartRepo.AssertNotCalled(t, "DeleteExpired", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepCarts_RejectsWhenSecretUnset(t *testing.T) {
	cartRepo := new(MockCartRepository)
	r := newTestRouter(cartRepo, "")

	req := httptest.NewRequest(http.MethodPost, "/cron/sweep-carts", nil)
	req.Header.Set("X-Cron-Secret", "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSweepCarts_DeletesExpiredItems(t *testing.T) {
	cartRepo := new(MockCartRepository)
	cartRepo.On("DeleteExpired", mock.Anything, nil, mock.AnythingOfType("time.Time")).Return(int64(4), nil)

	r := newTestRouter(cartRepo, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/cron/sweep-carts", nil)
	req.Header.Set("X-Cron-Secret", "s3cret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"removed":4`)
	cartRepo.AssertExpectations(t)
}

func TestSweepCarts_AcceptsBearerToken(t *testing.T) {
	cartRepo := new(MockCartRepository)
	cartRepo.On("DeleteExpired", mock.Anything, nil, mock.AnythingOfType("time.Time")).Return(int64(0), nil)

	r := newTestRouter(cartRepo, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/cron/sweep-carts", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
