package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DonationType distinguishes one-time intents from recurring signups
type DonationType string

const (
	DonationTypeOneTime   DonationType = "one_time"
	DonationTypeRecurring DonationType = "recurring"
)

// CartItemTTL is how long a cart item stays valid without activity.
// Every mutation slides the expiry forward by this much.
const CartItemTTL = 30 * time.Minute

// CartItem is a session-scoped donation intent, not yet confirmed by payment
type CartItem struct {
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
	DonorName    *string         `json:"donor_name"`
	DonorEmail   *string         `json:"donor_email"`
	DonorPhone   *string         `json:"donor_phone"`
	CampaignID   *int64          `json:"campaign_id"`
	ID           string          `json:"id"`
	SessionID    string          `json:"session_id"`
	Currency     string          `json:"currency"`
	DonationType DonationType    `json:"donation_type"`
	RepeatCount  int             `json:"repeat_count"`
	Amount       decimal.Decimal `json:"amount"`
}

// IsExpired returns true if the item's expiry has passed
func (c *CartItem) IsExpired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}

// HasValidAmount returns true if the item's amount is strictly positive
func (c *CartItem) HasValidAmount() bool {
	return c.Amount.IsPositive()
}

// SameCampaign reports whether the item targets the given campaign.
// Two nil campaign references count as the same target (general donation).
func (c *CartItem) SameCampaign(campaignID *int64) bool {
	if c.CampaignID == nil || campaignID == nil {
		return c.CampaignID == nil && campaignID == nil
	}
	return *c.CampaignID == *campaignID
}

// CartSummary aggregates a session's cart for API responses
type CartSummary struct {
	SessionID   string          `json:"session_id"`
	Items       []*CartItem     `json:"items"`
	ItemCount   int             `json:"item_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// CartValidation is the result of validating a cart before checkout
type CartValidation struct {
	Valid  bool        `json:"valid"`
	Errors []string    `json:"errors"`
	Items  []*CartItem `json:"items,omitempty"`
}
