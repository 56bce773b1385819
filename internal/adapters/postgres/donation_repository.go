package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/iyilikvakfi/donation-service/pkg/timeutil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// DonationRepository implements ports.DonationRepository
type DonationRepository struct {
	db ports.DBPort
}

// NewDonationRepository creates a new donation repository
func NewDonationRepository(db ports.DBPort) *DonationRepository {
	return &DonationRepository{db: db}
}

func (r *DonationRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const donationColumns = `id, amount, currency, payment_method, payment_status, payment_gateway,
	gateway_transaction_id, gateway_response, donor_name, donor_email, donor_phone, donor_id,
	is_anonymous, campaign_id, recurring_donation_id, message, repeat_count,
	completed_at, failed_at, created_at`

// Create inserts a new donation
func (r *DonationRepository) Create(ctx context.Context, tx ports.DBTX, donation *domain.Donation) error {
	id, err := uuid.Parse(donation.ID)
	if err != nil {
		return fmt.Errorf("invalid donation ID: %w", err)
	}

	amount, err := decimalToNumeric(donation.Amount)
	if err != nil {
		return err
	}

	var recurringID interface{}
	if donation.RecurringDonationID != nil {
		rid, err := uuid.Parse(*donation.RecurringDonationID)
		if err != nil {
			return fmt.Errorf("invalid recurring donation ID: %w", err)
		}
		recurringID = rid
	}

	gatewayResponse := donation.GatewayResponse
	if gatewayResponse == nil {
		gatewayResponse = json.RawMessage("null")
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO donations (id, amount, currency, payment_method, payment_status, payment_gateway,
			gateway_transaction_id, gateway_response, donor_name, donor_email, donor_phone, donor_id,
			is_anonymous, campaign_id, recurring_donation_id, message, repeat_count,
			completed_at, failed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		id, amount, donation.Currency, string(donation.PaymentMethod), string(donation.PaymentStatus),
		donation.PaymentGateway, nullText(donation.GatewayTransactionID), gatewayResponse,
		nullText(donation.DonorName), nullText(donation.DonorEmail), nullText(donation.DonorPhone),
		nullInt8(donation.DonorID), donation.IsAnonymous, nullInt8(donation.CampaignID),
		recurringID, nullText(donation.Message), donation.RepeatCount,
		nullTimestamp(donation.CompletedAt), nullTimestamp(donation.FailedAt), donation.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create donation: %w", err)
	}
	return nil
}

// GetByID retrieves a donation by its ID
func (r *DonationRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*domain.Donation, error) {
	row := r.executor(db).QueryRow(ctx,
		`SELECT `+donationColumns+` FROM donations WHERE id = $1`, id)

	donation, err := scanDonation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDonationNotFound
		}
		return nil, fmt.Errorf("get donation by id: %w", err)
	}
	return donation, nil
}

// UpdatePaymentStatus transitions a donation's payment status. completed_at
// and failed_at are stamped here so callers cannot forget them.
func (r *DonationRepository) UpdatePaymentStatus(ctx context.Context, tx ports.DBTX, id uuid.UUID, status domain.PaymentStatus, gatewayTxnID *string, gatewayResponse json.RawMessage) error {
	now := timeutil.Now()

	var completedAt, failedAt pgtype.Timestamptz
	switch status {
	case domain.PaymentStatusCompleted:
		completedAt = pgtype.Timestamptz{Time: now, Valid: true}
	case domain.PaymentStatusFailed:
		failedAt = pgtype.Timestamptz{Time: now, Valid: true}
	}

	// A nil payload leaves the stored response untouched
	var response []byte
	if gatewayResponse != nil {
		response = gatewayResponse
	}

	tag, err := r.executor(tx).Exec(ctx, `
		UPDATE donations
		SET payment_status = $2,
			gateway_transaction_id = COALESCE($3, gateway_transaction_id),
			gateway_response = CASE WHEN $4::jsonb IS NULL THEN gateway_response ELSE $4::jsonb END,
			completed_at = COALESCE($5, completed_at),
			failed_at = COALESCE($6, failed_at)
		WHERE id = $1`,
		id, string(status), nullText(gatewayTxnID), response, completedAt, failedAt,
	)
	if err != nil {
		return fmt.Errorf("update donation payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDonationNotFound
	}
	return nil
}

// ListByRecurring lists donations created by a recurring subscription
func (r *DonationRepository) ListByRecurring(ctx context.Context, db ports.DBTX, recurringID uuid.UUID, limit int32) ([]*domain.Donation, error) {
	rows, err := r.executor(db).Query(ctx,
		`SELECT `+donationColumns+` FROM donations
		 WHERE recurring_donation_id = $1 ORDER BY created_at DESC LIMIT $2`,
		recurringID, limit)
	if err != nil {
		return nil, fmt.Errorf("list donations by recurring: %w", err)
	}
	defer rows.Close()

	var donations []*domain.Donation
	for rows.Next() {
		donation, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		donations = append(donations, donation)
	}
	return donations, rows.Err()
}

func scanDonation(row pgx.Row) (*domain.Donation, error) {
	var (
		d              domain.Donation
		id             uuid.UUID
		amount         pgtype.Numeric
		method, status string
		gatewayTxnID   pgtype.Text
		response       []byte
		donorName      pgtype.Text
		donorEmail     pgtype.Text
		donorPhone     pgtype.Text
		donorID        pgtype.Int8
		campaignID     pgtype.Int8
		recurringID    pgtype.UUID
		message        pgtype.Text
		completedAt    pgtype.Timestamptz
		failedAt       pgtype.Timestamptz
	)

	err := row.Scan(&id, &amount, &d.Currency, &method, &status, &d.PaymentGateway,
		&gatewayTxnID, &response, &donorName, &donorEmail, &donorPhone, &donorID,
		&d.IsAnonymous, &campaignID, &recurringID, &message, &d.RepeatCount,
		&completedAt, &failedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}

	dec, err := numericToDecimal(amount)
	if err != nil {
		return nil, err
	}

	d.ID = id.String()
	d.Amount = dec
	d.PaymentMethod = domain.PaymentMethod(method)
	d.PaymentStatus = domain.PaymentStatus(status)
	d.GatewayTransactionID = textPtr(gatewayTxnID)
	if len(response) > 0 && string(response) != "null" {
		d.GatewayResponse = json.RawMessage(response)
	}
	d.DonorName = textPtr(donorName)
	d.DonorEmail = textPtr(donorEmail)
	d.DonorPhone = textPtr(donorPhone)
	d.DonorID = int64Ptr(donorID)
	d.CampaignID = int64Ptr(campaignID)
	if recurringID.Valid {
		rid := uuid.UUID(recurringID.Bytes).String()
		d.RecurringDonationID = &rid
	}
	d.Message = textPtr(message)
	d.CompletedAt = timePtr(completedAt)
	d.FailedAt = timePtr(failedAt)
	return &d, nil
}
