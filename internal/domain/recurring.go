package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecurringStatus represents the subscription state
type RecurringStatus string

const (
	RecurringStatusActive    RecurringStatus = "active"
	RecurringStatusPaused    RecurringStatus = "paused"
	RecurringStatusCancelled RecurringStatus = "cancelled"
	RecurringStatusCompleted RecurringStatus = "completed"
)

// Frequency defines the charge cadence
type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// MaxFailedAttempts is the hard cap on consecutive charge failures.
// Reaching it cancels the subscription instead of recording another failure.
const MaxFailedAttempts = 3

// AutoCancelPrefix marks cancellations triggered by the failure cap
const AutoCancelPrefix = "Otomatik iptal: "

// RecurringDonation is a standing authorization to charge a donor on a
// fixed cadence until cancelled or the planned payment count is exhausted.
// NextPaymentDate is nil only in the terminal states.
type RecurringDonation struct {
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	NextPaymentDate      *time.Time      `json:"next_payment_date"`
	LastPaymentDate      *time.Time      `json:"last_payment_date"`
	PausedAt             *time.Time      `json:"paused_at"`
	EndedAt              *time.Time      `json:"ended_at"`
	CardToken            *string         `json:"card_token,omitempty"`
	CardMask             *string         `json:"card_mask"`
	CardBrand            *string         `json:"card_brand"`
	LastFailureReason    *string         `json:"last_failure_reason"`
	TotalPaymentsPlanned *int            `json:"total_payments_planned"`
	CampaignID           *int64          `json:"campaign_id"`
	ID                   string          `json:"id"`
	Currency             string          `json:"currency"`
	PaymentGateway       string          `json:"payment_gateway"`
	PaymentMethod        PaymentMethod   `json:"payment_method"`
	Frequency            Frequency       `json:"frequency"`
	Status               RecurringStatus `json:"status"`
	DonorID              int64           `json:"donor_id"`
	TotalPaymentsMade    int             `json:"total_payments_made"`
	FailedAttempts       int             `json:"failed_attempts"`
	Amount               decimal.Decimal `json:"amount"`
}

// IsActive returns true if the subscription can be charged
func (r *RecurringDonation) IsActive() bool {
	return r.Status == RecurringStatusActive
}

// IsTerminal returns true for cancelled or completed subscriptions
func (r *RecurringDonation) IsTerminal() bool {
	return r.Status == RecurringStatusCancelled || r.Status == RecurringStatusCompleted
}

// IsDue reports whether the subscription should be charged as of the given
// day. The comparison is date-truncated by the caller.
func (r *RecurringDonation) IsDue(today time.Time) bool {
	return r.IsActive() && r.NextPaymentDate != nil && !r.NextPaymentDate.After(today)
}

// ShouldComplete reports whether one more successful payment exhausts the plan
func (r *RecurringDonation) ShouldComplete() bool {
	return r.TotalPaymentsPlanned != nil && r.TotalPaymentsMade+1 >= *r.TotalPaymentsPlanned
}

// NextChargeDate adds one billing period to the given date
func (r *RecurringDonation) NextChargeDate(from time.Time) time.Time {
	return NextChargeDate(from, r.Frequency)
}

// NextChargeDate adds one period of the given frequency to a date.
// Unknown frequencies fall back to monthly, matching the legacy behavior.
func NextChargeDate(from time.Time, frequency Frequency) time.Time {
	switch frequency {
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	case FrequencyQuarterly:
		return from.AddDate(0, 3, 0)
	case FrequencyYearly:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

// RecurringStatistics summarizes the subscription book
type RecurringStatistics struct {
	Total              int64           `json:"total"`
	Active             int64           `json:"active"`
	Paused             int64           `json:"paused"`
	Cancelled          int64           `json:"cancelled"`
	TotalMonthlyAmount decimal.Decimal `json:"total_monthly_amount"`
}
