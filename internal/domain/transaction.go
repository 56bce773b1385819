package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus represents the outcome of one gateway attempt
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// PaymentTransaction is one gateway charge attempt. Retries never mutate a
// failed row; they append a new row with AttemptNumber+1 so the full attempt
// chain stays readable.
type PaymentTransaction struct {
	CreatedAt            time.Time         `json:"created_at"`
	ProcessedAt          *time.Time        `json:"processed_at"`
	GatewayTransactionID *string           `json:"gateway_transaction_id"`
	GatewayResponse      json.RawMessage   `json:"gateway_response,omitempty"`
	ErrorCode            *string           `json:"error_code"`
	ErrorMessage         *string           `json:"error_message"`
	ConversationID       *string           `json:"conversation_id"`
	DonationID           *string           `json:"donation_id"`
	RecurringDonationID  *string           `json:"recurring_donation_id"`
	ID                   string            `json:"id"`
	Currency             string            `json:"currency"`
	PaymentGateway       string            `json:"payment_gateway"`
	Status               TransactionStatus `json:"status"`
	AttemptNumber        int               `json:"attempt_number"`
	ThreeDSecure         bool              `json:"three_d_secure"`
	Retryable            bool              `json:"retryable"`
	Amount               decimal.Decimal   `json:"amount"`
}

// IsResolved returns true once the transaction reached a terminal state
func (t *PaymentTransaction) IsResolved() bool {
	return t.Status == TransactionStatusSuccess || t.Status == TransactionStatusFailed
}

// CanRetry returns true if a follow-up attempt may be created
func (t *PaymentTransaction) CanRetry() bool {
	return t.Status == TransactionStatusFailed && t.Retryable
}

// NextAttempt builds the follow-up transaction for a retry. The returned
// transaction carries no ID; the ledger assigns one before persisting.
func (t *PaymentTransaction) NextAttempt() *PaymentTransaction {
	return &PaymentTransaction{
		Amount:              t.Amount,
		Currency:            t.Currency,
		Status:              TransactionStatusPending,
		PaymentGateway:      t.PaymentGateway,
		AttemptNumber:       t.AttemptNumber + 1,
		DonationID:          t.DonationID,
		RecurringDonationID: t.RecurringDonationID,
		ConversationID:      t.ConversationID,
	}
}

// TransactionStatistics is the windowed ledger summary
type TransactionStatistics struct {
	Total         int64           `json:"total"`
	Success       int64           `json:"success"`
	Failed        int64           `json:"failed"`
	Pending       int64           `json:"pending"`
	SuccessRate   float64         `json:"success_rate"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AverageAmount decimal.Decimal `json:"average_amount"`
}

// GatewayStatistics is the success-only per-gateway summary
type GatewayStatistics struct {
	Gateway     string          `json:"gateway"`
	Count       int64           `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}
