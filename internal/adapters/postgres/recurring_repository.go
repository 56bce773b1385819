package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// RecurringRepository implements ports.RecurringRepository
type RecurringRepository struct {
	db ports.DBPort
}

// NewRecurringRepository creates a new recurring donation repository
func NewRecurringRepository(db ports.DBPort) *RecurringRepository {
	return &RecurringRepository{db: db}
}

func (r *RecurringRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const recurringColumns = `id, amount, currency, frequency, status, payment_method, payment_gateway,
	card_token, card_mask, card_brand, next_payment_date, last_payment_date,
	total_payments_made, total_payments_planned, failed_attempts, last_failure_reason,
	paused_at, ended_at, donor_id, campaign_id, created_at, updated_at`

// Create inserts a new recurring donation
func (r *RecurringRepository) Create(ctx context.Context, tx ports.DBTX, rec *domain.RecurringDonation) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return fmt.Errorf("invalid recurring donation ID: %w", err)
	}

	amount, err := decimalToNumeric(rec.Amount)
	if err != nil {
		return err
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO recurring_donations (id, amount, currency, frequency, status,
			payment_method, payment_gateway, card_token, card_mask, card_brand,
			next_payment_date, last_payment_date, total_payments_made, total_payments_planned,
			failed_attempts, last_failure_reason, paused_at, ended_at, donor_id, campaign_id,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		id, amount, rec.Currency, string(rec.Frequency), string(rec.Status),
		string(rec.PaymentMethod), rec.PaymentGateway, nullText(rec.CardToken),
		nullText(rec.CardMask), nullText(rec.CardBrand), nullDate(rec.NextPaymentDate),
		nullTimestamp(rec.LastPaymentDate), rec.TotalPaymentsMade, nullInt4(rec.TotalPaymentsPlanned),
		rec.FailedAttempts, nullText(rec.LastFailureReason), nullTimestamp(rec.PausedAt),
		nullTimestamp(rec.EndedAt), rec.DonorID, nullInt8(rec.CampaignID),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create recurring donation: %w", err)
	}
	return nil
}

// GetByID retrieves a recurring donation by its ID
func (r *RecurringRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*domain.RecurringDonation, error) {
	row := r.executor(db).QueryRow(ctx,
		`SELECT `+recurringColumns+` FROM recurring_donations WHERE id = $1`, id)

	rec, err := scanRecurring(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecurringNotFound
		}
		return nil, fmt.Errorf("get recurring donation by id: %w", err)
	}
	return rec, nil
}

// Update rewrites the mutable fields of a recurring donation
func (r *RecurringRepository) Update(ctx context.Context, tx ports.DBTX, rec *domain.RecurringDonation) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return fmt.Errorf("invalid recurring donation ID: %w", err)
	}

	amount, err := decimalToNumeric(rec.Amount)
	if err != nil {
		return err
	}

	tag, err := r.executor(tx).Exec(ctx, `
		UPDATE recurring_donations
		SET amount = $2, currency = $3, frequency = $4, status = $5,
			card_token = $6, card_mask = $7, card_brand = $8,
			next_payment_date = $9, last_payment_date = $10,
			total_payments_made = $11, total_payments_planned = $12,
			failed_attempts = $13, last_failure_reason = $14,
			paused_at = $15, ended_at = $16, updated_at = $17
		WHERE id = $1`,
		id, amount, rec.Currency, string(rec.Frequency), string(rec.Status),
		nullText(rec.CardToken), nullText(rec.CardMask), nullText(rec.CardBrand),
		nullDate(rec.NextPaymentDate), nullTimestamp(rec.LastPaymentDate),
		rec.TotalPaymentsMade, nullInt4(rec.TotalPaymentsPlanned),
		rec.FailedAttempts, nullText(rec.LastFailureReason),
		nullTimestamp(rec.PausedAt), nullTimestamp(rec.EndedAt), rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update recurring donation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecurringNotFound
	}
	return nil
}

// recurringFilterClause builds the WHERE clause shared by List and Count
func recurringFilterClause(filter ports.RecurringFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(col string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, col+" = $"+strconv.Itoa(len(args)))
	}

	if filter.Status != nil {
		add("status", string(*filter.Status))
	}
	if filter.Frequency != nil {
		add("frequency", string(*filter.Frequency))
	}
	if filter.DonorID != nil {
		add("donor_id", *filter.DonorID)
	}
	if filter.CampaignID != nil {
		add("campaign_id", *filter.CampaignID)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List lists recurring donations matching the filter
func (r *RecurringRepository) List(ctx context.Context, db ports.DBTX, filter ports.RecurringFilter) ([]*domain.RecurringDonation, error) {
	where, args := recurringFilterClause(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	limitArg := "$" + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	offsetArg := "$" + strconv.Itoa(len(args))

	rows, err := r.executor(db).Query(ctx,
		`SELECT `+recurringColumns+` FROM recurring_donations`+where+
			` ORDER BY created_at DESC LIMIT `+limitArg+` OFFSET `+offsetArg,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring donations: %w", err)
	}
	defer rows.Close()

	var recs []*domain.RecurringDonation
	for rows.Next() {
		rec, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring donation: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Count counts recurring donations matching the filter
func (r *RecurringRepository) Count(ctx context.Context, db ports.DBTX, filter ports.RecurringFilter) (int64, error) {
	where, args := recurringFilterClause(filter)

	var count int64
	err := r.executor(db).QueryRow(ctx,
		`SELECT COUNT(*) FROM recurring_donations`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recurring donations: %w", err)
	}
	return count, nil
}

// ListDue lists active subscriptions due as of the cutoff, oldest due first
func (r *RecurringRepository) ListDue(ctx context.Context, db ports.DBTX, asOf time.Time, limit int32) ([]*domain.RecurringDonation, error) {
	rows, err := r.executor(db).Query(ctx,
		`SELECT `+recurringColumns+` FROM recurring_donations
		 WHERE status = 'active' AND next_payment_date <= $1
		 ORDER BY next_payment_date ASC LIMIT $2`,
		asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("list due recurring donations: %w", err)
	}
	defer rows.Close()

	var recs []*domain.RecurringDonation
	for rows.Next() {
		rec, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring donation: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ClaimDue re-reads one subscription with a row lock, re-checking that it is
// still active and due. SKIP LOCKED makes overlapping cron runs pass over
// rows a sibling already holds instead of queueing up behind them.
func (r *RecurringRepository) ClaimDue(ctx context.Context, tx ports.DBTX, id uuid.UUID, asOf time.Time) (*domain.RecurringDonation, error) {
	row := r.executor(tx).QueryRow(ctx,
		`SELECT `+recurringColumns+` FROM recurring_donations
		 WHERE id = $1 AND status = 'active' AND next_payment_date <= $2
		 FOR UPDATE SKIP LOCKED`,
		id, asOf)

	rec, err := scanRecurring(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim due recurring donation: %w", err)
	}
	return rec, nil
}

// GetStatistics aggregates subscription counts and the active monthly sum
func (r *RecurringRepository) GetStatistics(ctx context.Context, db ports.DBTX) (*domain.RecurringStatistics, error) {
	var (
		stats      domain.RecurringStatistics
		monthlySum pgtype.Numeric
	)
	err := r.executor(db).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'paused'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COALESCE(SUM(amount) FILTER (WHERE status = 'active' AND frequency = 'monthly'), 0)
		FROM recurring_donations`,
	).Scan(&stats.Total, &stats.Active, &stats.Paused, &stats.Cancelled, &monthlySum)
	if err != nil {
		return nil, fmt.Errorf("get recurring statistics: %w", err)
	}

	if stats.TotalMonthlyAmount, err = numericToDecimal(monthlySum); err != nil {
		return nil, err
	}
	return &stats, nil
}

func scanRecurring(row pgx.Row) (*domain.RecurringDonation, error) {
	var (
		rec               domain.RecurringDonation
		id                uuid.UUID
		amount            pgtype.Numeric
		frequency         string
		status            string
		method            string
		cardToken         pgtype.Text
		cardMask          pgtype.Text
		cardBrand         pgtype.Text
		nextPaymentDate   pgtype.Date
		lastPaymentDate   pgtype.Timestamptz
		plannedPayments   pgtype.Int4
		lastFailureReason pgtype.Text
		pausedAt          pgtype.Timestamptz
		endedAt           pgtype.Timestamptz
		campaignID        pgtype.Int8
	)

	err := row.Scan(&id, &amount, &rec.Currency, &frequency, &status, &method,
		&rec.PaymentGateway, &cardToken, &cardMask, &cardBrand, &nextPaymentDate,
		&lastPaymentDate, &rec.TotalPaymentsMade, &plannedPayments, &rec.FailedAttempts,
		&lastFailureReason, &pausedAt, &endedAt, &rec.DonorID, &campaignID,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	dec, err := numericToDecimal(amount)
	if err != nil {
		return nil, err
	}

	rec.ID = id.String()
	rec.Amount = dec
	rec.Frequency = domain.Frequency(frequency)
	rec.Status = domain.RecurringStatus(status)
	rec.PaymentMethod = domain.PaymentMethod(method)
	rec.CardToken = textPtr(cardToken)
	rec.CardMask = textPtr(cardMask)
	rec.CardBrand = textPtr(cardBrand)
	rec.NextPaymentDate = datePtr(nextPaymentDate)
	rec.LastPaymentDate = timePtr(lastPaymentDate)
	rec.TotalPaymentsPlanned = intPtr(plannedPayments)
	rec.LastFailureReason = textPtr(lastFailureReason)
	rec.PausedAt = timePtr(pausedAt)
	rec.EndedAt = timePtr(endedAt)
	rec.CampaignID = int64Ptr(campaignID)
	return &rec, nil
}
