package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
)

// CartRepository implements ports.CartRepository
type CartRepository struct {
	db ports.DBPort
}

// NewCartRepository creates a new cart repository
func NewCartRepository(db ports.DBPort) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const cartColumns = `id, session_id, amount, currency, donation_type, repeat_count,
	campaign_id, donor_name, donor_email, donor_phone, expires_at, created_at, updated_at`

// Create inserts a new cart item
func (r *CartRepository) Create(ctx context.Context, tx ports.DBTX, item *domain.CartItem) error {
	id, err := uuid.Parse(item.ID)
	if err != nil {
		return fmt.Errorf("invalid cart item ID: %w", err)
	}

	amount, err := decimalToNumeric(item.Amount)
	if err != nil {
		return err
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO cart_items (id, session_id, amount, currency, donation_type, repeat_count,
			campaign_id, donor_name, donor_email, donor_phone, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		id, item.SessionID, amount, item.Currency, string(item.DonationType), item.RepeatCount,
		nullInt8(item.CampaignID), nullText(item.DonorName), nullText(item.DonorEmail),
		nullText(item.DonorPhone), item.ExpiresAt, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create cart item: %w", err)
	}
	return nil
}

// GetByID retrieves a cart item by its ID
func (r *CartRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*domain.CartItem, error) {
	row := r.executor(db).QueryRow(ctx,
		`SELECT `+cartColumns+` FROM cart_items WHERE id = $1`, id)

	item, err := scanCartItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCartItemNotFound
		}
		return nil, fmt.Errorf("get cart item by id: %w", err)
	}
	return item, nil
}

// FindBySession lists all items in a session's cart, oldest first
func (r *CartRepository) FindBySession(ctx context.Context, db ports.DBTX, sessionID string) ([]*domain.CartItem, error) {
	rows, err := r.executor(db).Query(ctx,
		`SELECT `+cartColumns+` FROM cart_items WHERE session_id = $1 ORDER BY created_at ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("find cart items by session: %w", err)
	}
	defer rows.Close()

	var items []*domain.CartItem
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// FindBySessionAndCampaign finds the item a session holds for a campaign
func (r *CartRepository) FindBySessionAndCampaign(ctx context.Context, db ports.DBTX, sessionID string, campaignID *int64) (*domain.CartItem, error) {
	var row pgx.Row
	if campaignID == nil {
		row = r.executor(db).QueryRow(ctx,
			`SELECT `+cartColumns+` FROM cart_items WHERE session_id = $1 AND campaign_id IS NULL LIMIT 1`,
			sessionID)
	} else {
		row = r.executor(db).QueryRow(ctx,
			`SELECT `+cartColumns+` FROM cart_items WHERE session_id = $1 AND campaign_id = $2 LIMIT 1`,
			sessionID, *campaignID)
	}

	item, err := scanCartItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find cart item by session and campaign: %w", err)
	}
	return item, nil
}

// Update rewrites the mutable fields of a cart item
func (r *CartRepository) Update(ctx context.Context, tx ports.DBTX, item *domain.CartItem) error {
	id, err := uuid.Parse(item.ID)
	if err != nil {
		return fmt.Errorf("invalid cart item ID: %w", err)
	}

	amount, err := decimalToNumeric(item.Amount)
	if err != nil {
		return err
	}

	tag, err := r.executor(tx).Exec(ctx, `
		UPDATE cart_items
		SET amount = $2, currency = $3, donation_type = $4, repeat_count = $5,
			donor_name = $6, donor_email = $7, donor_phone = $8,
			expires_at = $9, updated_at = $10
		WHERE id = $1`,
		id, amount, item.Currency, string(item.DonationType), item.RepeatCount,
		nullText(item.DonorName), nullText(item.DonorEmail), nullText(item.DonorPhone),
		item.ExpiresAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCartItemNotFound
	}
	return nil
}

// Delete removes a single cart item
func (r *CartRepository) Delete(ctx context.Context, tx ports.DBTX, id uuid.UUID) error {
	tag, err := r.executor(tx).Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCartItemNotFound
	}
	return nil
}

// DeleteBySession removes every item in a session's cart
func (r *CartRepository) DeleteBySession(ctx context.Context, tx ports.DBTX, sessionID string) (int64, error) {
	tag, err := r.executor(tx).Exec(ctx, `DELETE FROM cart_items WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("delete cart items by session: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes all items whose expiry is at or before the cutoff
func (r *CartRepository) DeleteExpired(ctx context.Context, tx ports.DBTX, cutoff time.Time) (int64, error) {
	tag, err := r.executor(tx).Exec(ctx, `DELETE FROM cart_items WHERE expires_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired cart items: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanCartItem(row pgx.Row) (*domain.CartItem, error) {
	var (
		item         domain.CartItem
		id           uuid.UUID
		amount       pgtype.Numeric
		donationType string
		campaignID   pgtype.Int8
		donorName    pgtype.Text
		donorEmail   pgtype.Text
		donorPhone   pgtype.Text
	)

	err := row.Scan(&id, &item.SessionID, &amount, &item.Currency, &donationType,
		&item.RepeatCount, &campaignID, &donorName, &donorEmail, &donorPhone,
		&item.ExpiresAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}

	dec, err := numericToDecimal(amount)
	if err != nil {
		return nil, err
	}

	item.ID = id.String()
	item.Amount = dec
	item.DonationType = domain.DonationType(donationType)
	item.CampaignID = int64Ptr(campaignID)
	item.DonorName = textPtr(donorName)
	item.DonorEmail = textPtr(donorEmail)
	item.DonorPhone = textPtr(donorPhone)
	return &item, nil
}
