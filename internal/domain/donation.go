package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a donation's payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// PaymentMethod is how the donor pays
type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// Donation is an immutable record of one funds-transfer intent.
// Rows are never deleted; status transitions follow the linked
// payment transaction's outcome.
type Donation struct {
	CreatedAt            time.Time       `json:"created_at"`
	CompletedAt          *time.Time      `json:"completed_at"`
	FailedAt             *time.Time      `json:"failed_at"`
	DonorName            *string         `json:"donor_name"`
	DonorEmail           *string         `json:"donor_email"`
	DonorPhone           *string         `json:"donor_phone"`
	Message              *string         `json:"message"`
	CampaignID           *int64          `json:"campaign_id"`
	DonorID              *int64          `json:"donor_id"`
	RecurringDonationID  *string         `json:"recurring_donation_id"`
	GatewayTransactionID *string         `json:"gateway_transaction_id"`
	GatewayResponse      json.RawMessage `json:"gateway_response,omitempty"`
	ID                   string          `json:"id"`
	Currency             string          `json:"currency"`
	PaymentGateway       string          `json:"payment_gateway"`
	PaymentMethod        PaymentMethod   `json:"payment_method"`
	PaymentStatus        PaymentStatus   `json:"payment_status"`
	RepeatCount          int             `json:"repeat_count"`
	IsAnonymous          bool            `json:"is_anonymous"`
	Amount               decimal.Decimal `json:"amount"`
}

// IsCompleted returns true once the linked payment succeeded
func (d *Donation) IsCompleted() bool {
	return d.PaymentStatus == PaymentStatusCompleted
}

// DonorDisplayName returns the donor name honoring anonymity
func (d *Donation) DonorDisplayName() string {
	if d.IsAnonymous || d.DonorName == nil || *d.DonorName == "" {
		return "Anonim"
	}
	return *d.DonorName
}
