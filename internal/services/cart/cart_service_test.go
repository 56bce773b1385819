package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) Create(ctx context.Context, tx ports.DBTX, item *domain.CartItem) error {
	args := m.Called(ctx, tx, item)
	return args.Error(0)
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
	args := m.Called(ctx, tx, item)
	return args.Error(0)
}

func (m *MockCartRepository) Delete(ctx context.Context, tx ports.DBTX, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockCartRepository) DeleteBySession(ctx context.Context, tx ports.DBTX, sessionID string) (int64, error) {
	args := m.Called(ctx, tx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCartRepository) DeleteExpired(ctx context.Context, tx ports.DBTX, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, tx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type noopLogger struct{}

func (noopLogger) Info(msg string, fields ...ports.Field)  {}
func (noopLogger) Error(msg string, fields ...ports.Field) {}
func (noopLogger) Warn(msg string, fields ...ports.Field)  {}
func (noopLogger) Debug(msg string, fields ...ports.Field) {}

func int64Ref(v int64) *int64 { return &v }

func TestGetOrCreateSessionID(t *testing.T) {
	assert.Equal(t, "existing", GetOrCreateSessionID("existing"))

	generated := GetOrCreateSessionID("")
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)
}

func TestAddItem_CreatesNewItem(t *testing.T) {
	repo := new(MockCartRepository)
	svc := NewService(repo, noopLogger{})

	campaignID := int64Ref(42)
	repo.On("FindBySessionAndCampaign", mock.Anything, nil, "sess-1", campaignID).Return(nil, nil)
	repo.On("Create", mock.Anything, nil, mock.AnythingOfType("*domain.CartItem")).Return(nil)

	item, err := svc.AddItem(context.Background(), "sess-1", AddItemInput{
		Amount:     decimal.NewFromInt(100),
		CampaignID: campaignID,
	})
	require.NoError(t, err)

	assert.Equal(t, "sess-1", item.SessionID)
	assert.Equal(t, "TRY", item.Currency)
	assert.Equal(t, domain.DonationTypeOneTime, item.DonationType)
	assert.Equal(t, 1, item.RepeatCount)
	assert.WithinDuration(t, time.Now().UTC().Add(domain.CartItemTTL), item.ExpiresAt, 5*time.Second)
	repo.AssertExpectations(t)
}

func TestAddItem_MergesSameCampaign(t *testing.T) {
	repo := new(MockCartRepository)
	svc := NewService(repo, noopLogger{})

	campaignID := int64Ref(42)
	existing := &domain.CartItem{
		ID:        uuid.New().String(),
		SessionID: "sess-1",
		Amount:    decimal.NewFromInt(100),
		Currency:  "TRY",
		ExpiresAt: time.Now().UTC().Add(5 * time.Minute),
	}
	repo.On("FindBySessionAndCampaign", mock.Anything, nil, "sess-1", campaignID).Return(existing, nil)
	repo.On("Update", mock.Anything, nil, existing).Return(nil)

	item, err := svc.AddItem(context.Background(), "sess-1", AddItemInput{
		Amount:     decimal.NewFromInt(50),
		CampaignID: campaignID,
	})
	require.NoError(t, err)

	assert.True(t, item.Amount.Equal(decimal.NewFromInt(150)))
	assert.WithinDuration(t, time.Now().UTC().Add(domain.CartItemTTL), item.ExpiresAt, 5*time.Second)
	repo.AssertNotCalled(t, "Create")
}

func TestAddItem_RejectsNonPositiveAmount(t *testing.T) {
	repo := new(MockCartRepository)
	svc := NewService(repo, noopLogger{})

	_, err := svc.AddItem(context.Background(), "sess-1", AddItemInput{Amount: decimal.Zero})
	assert.True(t, domain.IsValidationError(err))

	_, err = svc.AddItem(context.Background(), "sess-1", AddItemInput{Amount: decimal.NewFromInt(-5)})
	assert.True(t, domain.IsValidationError(err))
	repo.AssertNotCalled(t, "Create")
}

func TestAddItem_SerializesPerSession(t *testing.T) {
	repo := new(MockCartRepository)
	svc := NewService(repo, noopLogger{})

	var inFlight, maxInFlight int
	var mu sync.Mutex

	repo.On("FindBySessionAndCampaign", mock.Anything, nil, "sess-1", (*int64)(nil)).
		Run(func(args mock.Arguments) {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
		}).
		Return(nil, nil)
	repo.On("Create", mock.Anything, nil, mock.AnythingOfType("*domain.CartItem")).Return(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddItem(context.Background(), "sess-1", AddItemInput{Amount: decimal.NewFromInt(10)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight)
}

func TestGetCart_Totals(t *testing.T) {
	repo := new(MockCartRepository)
	svc := NewService(repo, noopLogger{})

	items := []*domain.CartItem{
		{ID: uuid.New().String(), Amount: decimal.NewFromInt(100)},
		{ID: uuid.New().String(), Amount: decimal.NewFromFloat(25.5)},
	}
	repo.On("FindBySession", mock.Anything, nil, "sess-1").Return(items, nil)

	summary, err := svc.GetCart(context.Background(), "sess-1")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ItemCount)
	assert.True(t, summary.TotalAmount.Equal(decimal.NewFromFloat(125.5)))
}

func TestValidate_EmptyCart(t *testing.T) {
	repo := new(MockCartRepository)
	svc := NewService(repo, noopLogger{})

	repo.On("FindBySession", mock.Anything, nil, "sess-1").Return([]*domain.CartItem{}, nil)

	validation, err := svc.Validate(context.Background(), "sess-1")
	require.NoError(t, err)

	assert.False(t, validation.Valid)
	assert.Equal(t, []string{"Sepet boş"}, validation.Errors)
}

func TestValidate_ExpiredAndInvalidItems(t *testing.T) {
	repo := new(MockCartRepository)
	svc := NewService(repo, noopLogger{})

	items := []*domain.CartItem{
		{ID: uuid.New().String(), Amount: decimal.NewFromInt(100), ExpiresAt: time.Now().UTC().Add(-time.Minute)},
		{ID: uuid.New().String(), Amount: decimal.Zero, ExpiresAt: time.Now().UTC().Add(time.Minute)},
	}
	repo.On("FindBySession", mock.Anything, nil, "sess-1").Return(items, nil)

	validation, err := svc.Validate(context.Background(), "sess-1")
	require.NoError(t, err)

	assert.False(t, validation.Valid)
	assert.Contains(t, validation.Errors, "Sepetinizde süresi dolmuş öğeler var")
	assert.Contains(t, validation.Errors, "Sepetinizde geçersiz tutarlar var")
}

func TestValidate_ValidCartReturnsItems(t *testing.T) {
	repo := new(MockCartRepository)
	svc := NewService(repo, noopLogger{})

	items := []*domain.CartItem{
		{ID: uuid.New().String(), Amount: decimal.NewFromInt(100), ExpiresAt: time.Now().UTC().Add(time.Minute)},
	}
	repo.On("FindBySession", mock.Anything, nil, "sess-1").Return(items, nil)

	validation, err := svc.Validate(context.Background(), "sess-1")
	require.NoError(t, err)

	assert.True(t, validation.Valid)
	assert.Empty(t, validation.Errors)
	assert.Len(t, validation.Items, 1)
}

func TestUpdateItem_SlidesExpiry(t *testing.T) {
	repo := new(MockCartRepository)
	svc := NewService(repo, noopLogger{})

	id := uuid.New()
	item := &domain.CartItem{
		ID:        id.String(),
		Amount:    decimal.NewFromInt(100),
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}
	repo.On("GetByID", mock.Anything, nil, id).Return(item, nil)
	repo.On("Update", mock.Anything, nil, item).Return(nil)

	newAmount := decimal.NewFromInt(200)
	updated, err := svc.UpdateItem(context.Background(), id, UpdateItemInput{Amount: &newAmount})
	require.NoError(t, err)

	assert.True(t, updated.Amount.Equal(newAmount))
	assert.WithinDuration(t, time.Now().UTC().Add(domain.CartItemTTL), updated.ExpiresAt, 5*time.Second)
}

func TestSweepExpired(t *testing.T) {
	repo := new(MockCartRepository)
	svc := NewService(repo, noopLogger{})

	repo.On("DeleteExpired", mock.Anything, nil, mock.AnythingOfType("time.Time")).Return(int64(3), nil)

	deleted, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}
