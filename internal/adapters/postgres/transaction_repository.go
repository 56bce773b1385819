package postgres

import (
	"context"
	"encoding/json"
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

// TransactionRepository implements ports.TransactionRepository
type TransactionRepository struct {
	db ports.DBPort
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db ports.DBPort) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const transactionColumns = `id, amount, currency, status, payment_gateway, gateway_transaction_id,
	gateway_response, error_code, error_message, retryable, attempt_number, conversation_id,
	three_d_secure, donation_id, recurring_donation_id, processed_at, created_at`

// Create inserts a new transaction
func (r *TransactionRepository) Create(ctx context.Context, tx ports.DBTX, txn *domain.PaymentTransaction) error {
	id, err := uuid.Parse(txn.ID)
	if err != nil {
		return fmt.Errorf("invalid transaction ID: %w", err)
	}

	amount, err := decimalToNumeric(txn.Amount)
	if err != nil {
		return err
	}

	donationID, err := parseOptionalUUID(txn.DonationID)
	if err != nil {
		return fmt.Errorf("invalid donation ID: %w", err)
	}
	recurringID, err := parseOptionalUUID(txn.RecurringDonationID)
	if err != nil {
		return fmt.Errorf("invalid recurring donation ID: %w", err)
	}

	var response []byte
	if txn.GatewayResponse != nil {
		response = txn.GatewayResponse
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO payment_transactions (id, amount, currency, status, payment_gateway,
			gateway_transaction_id, gateway_response, error_code, error_message, retryable,
			attempt_number, conversation_id, three_d_secure, donation_id, recurring_donation_id,
			processed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		id, amount, txn.Currency, string(txn.Status), txn.PaymentGateway,
		nullText(txn.GatewayTransactionID), response, nullText(txn.ErrorCode),
		nullText(txn.ErrorMessage), txn.Retryable, txn.AttemptNumber,
		nullText(txn.ConversationID), txn.ThreeDSecure, donationID, recurringID,
		nullTimestamp(txn.ProcessedAt), txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*domain.PaymentTransaction, error) {
	row := r.executor(db).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions WHERE id = $1`, id)

	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTxnNotFound
		}
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return txn, nil
}

// filterClause builds the WHERE clause shared by List and Count
func filterClause(filter ports.TransactionFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}

	if filter.Status != nil {
		add("status = ?", string(*filter.Status))
	}
	if filter.PaymentGateway != nil {
		add("payment_gateway = ?", *filter.PaymentGateway)
	}
	if filter.DonationID != nil {
		add("donation_id = ?", *filter.DonationID)
	}
	if filter.RecurringDonationID != nil {
		add("recurring_donation_id = ?", *filter.RecurringDonationID)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List lists transactions matching the filter, newest first
func (r *TransactionRepository) List(ctx context.Context, db ports.DBTX, filter ports.TransactionFilter) ([]*domain.PaymentTransaction, error) {
	where, args := filterClause(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	limitArg := "$" + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	offsetArg := "$" + strconv.Itoa(len(args))

	rows, err := r.executor(db).Query(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions`+where+
			` ORDER BY created_at DESC LIMIT `+limitArg+` OFFSET `+offsetArg,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*domain.PaymentTransaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

// Count counts transactions matching the filter
func (r *TransactionRepository) Count(ctx context.Context, db ports.DBTX, filter ports.TransactionFilter) (int64, error) {
	where, args := filterClause(filter)

	var count int64
	err := r.executor(db).QueryRow(ctx,
		`SELECT COUNT(*) FROM payment_transactions`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return count, nil
}

// Resolve writes the terminal outcome of a transaction. The guard on the
// stored status keeps resolved rows immutable even under concurrent callbacks.
func (r *TransactionRepository) Resolve(ctx context.Context, tx ports.DBTX, txn *domain.PaymentTransaction) error {
	id, err := uuid.Parse(txn.ID)
	if err != nil {
		return fmt.Errorf("invalid transaction ID: %w", err)
	}

	var response []byte
	if txn.GatewayResponse != nil {
		response = txn.GatewayResponse
	}

	tag, err := r.executor(tx).Exec(ctx, `
		UPDATE payment_transactions
		SET status = $2, gateway_transaction_id = COALESCE($3, gateway_transaction_id),
			gateway_response = CASE WHEN $4::jsonb IS NULL THEN gateway_response ELSE $4::jsonb END,
			error_code = $5, error_message = $6, retryable = $7, processed_at = $8
		WHERE id = $1 AND status = 'pending'`,
		id, string(txn.Status), nullText(txn.GatewayTransactionID), response,
		nullText(txn.ErrorCode), nullText(txn.ErrorMessage), txn.Retryable,
		nullTimestamp(txn.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("resolve transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTxnAlreadyResolved
	}
	return nil
}

// GetStatistics aggregates counts and success-only sums in one pass
func (r *TransactionRepository) GetStatistics(ctx context.Context, db ports.DBTX, start, end *time.Time) (*domain.TransactionStatistics, error) {
	var conds []string
	var args []interface{}
	if start != nil {
		args = append(args, *start)
		conds = append(conds, "created_at >= $"+strconv.Itoa(len(args)))
	}
	if end != nil {
		args = append(args, *end)
		conds = append(conds, "created_at <= $"+strconv.Itoa(len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var (
		stats      domain.TransactionStatistics
		totalSum   pgtype.Numeric
		averageSum pgtype.Numeric
	)
	err := r.executor(db).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'success'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COALESCE(SUM(amount) FILTER (WHERE status = 'success'), 0),
			COALESCE(AVG(amount) FILTER (WHERE status = 'success'), 0)
		FROM payment_transactions`+where, args...,
	).Scan(&stats.Total, &stats.Success, &stats.Failed, &stats.Pending, &totalSum, &averageSum)
	if err != nil {
		return nil, fmt.Errorf("get transaction statistics: %w", err)
	}

	if stats.TotalAmount, err = numericToDecimal(totalSum); err != nil {
		return nil, err
	}
	if stats.AverageAmount, err = numericToDecimal(averageSum); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetStatisticsByGateway aggregates success-only counts and sums per gateway
func (r *TransactionRepository) GetStatisticsByGateway(ctx context.Context, db ports.DBTX) ([]*domain.GatewayStatistics, error) {
	rows, err := r.executor(db).Query(ctx, `
		SELECT payment_gateway, COUNT(*), COALESCE(SUM(amount), 0)
		FROM payment_transactions
		WHERE status = 'success'
		GROUP BY payment_gateway
		ORDER BY payment_gateway`)
	if err != nil {
		return nil, fmt.Errorf("get statistics by gateway: %w", err)
	}
	defer rows.Close()

	var result []*domain.GatewayStatistics
	for rows.Next() {
		var (
			gs  domain.GatewayStatistics
			sum pgtype.Numeric
		)
		if err := rows.Scan(&gs.Gateway, &gs.Count, &sum); err != nil {
			return nil, fmt.Errorf("scan gateway statistics: %w", err)
		}
		if gs.TotalAmount, err = numericToDecimal(sum); err != nil {
			return nil, err
		}
		result = append(result, &gs)
	}
	return result, rows.Err()
}

// ListStalePending lists pending transactions created before the cutoff
func (r *TransactionRepository) ListStalePending(ctx context.Context, db ports.DBTX, cutoff time.Time, limit int32) ([]*domain.PaymentTransaction, error) {
	rows, err := r.executor(db).Query(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions
		 WHERE status = 'pending' AND created_at < $1
		 ORDER BY created_at ASC LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending transactions: %w", err)
	}
	defer rows.Close()

	var txns []*domain.PaymentTransaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func parseOptionalUUID(s *string) (interface{}, error) {
	if s == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return id, nil
}

func scanTransaction(row pgx.Row) (*domain.PaymentTransaction, error) {
	var (
		t              domain.PaymentTransaction
		id             uuid.UUID
		amount         pgtype.Numeric
		status         string
		gatewayTxnID   pgtype.Text
		response       []byte
		errorCode      pgtype.Text
		errorMessage   pgtype.Text
		conversationID pgtype.Text
		donationID     pgtype.UUID
		recurringID    pgtype.UUID
		processedAt    pgtype.Timestamptz
	)

	err := row.Scan(&id, &amount, &t.Currency, &status, &t.PaymentGateway, &gatewayTxnID,
		&response, &errorCode, &errorMessage, &t.Retryable, &t.AttemptNumber, &conversationID,
		&t.ThreeDSecure, &donationID, &recurringID, &processedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	dec, err := numericToDecimal(amount)
	if err != nil {
		return nil, err
	}

	t.ID = id.String()
	t.Amount = dec
	t.Status = domain.TransactionStatus(status)
	t.GatewayTransactionID = textPtr(gatewayTxnID)
	if len(response) > 0 && string(response) != "null" {
		t.GatewayResponse = json.RawMessage(response)
	}
	t.ErrorCode = textPtr(errorCode)
	t.ErrorMessage = textPtr(errorMessage)
	t.ConversationID = textPtr(conversationID)
	if donationID.Valid {
		did := uuid.UUID(donationID.Bytes).String()
		t.DonationID = &did
	}
	if recurringID.Valid {
		rid := uuid.UUID(recurringID.Bytes).String()
		t.RecurringDonationID = &rid
	}
	t.ProcessedAt = timePtr(processedAt)
	return &t, nil
}
