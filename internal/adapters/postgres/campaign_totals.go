package postgres

import (
	"context"
	"fmt"

	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
)

// CampaignTotals recalculates a campaign's collected amount from its
// completed donations
type CampaignTotals struct {
	db ports.DBPort
}

// NewCampaignTotals creates a new campaign totals adapter
func NewCampaignTotals(db ports.DBPort) *CampaignTotals {
	return &CampaignTotals{db: db}
}

// Recalculate implements ports.CampaignTotals. The total is always derived
// from the donations table, never incremented, so replayed callbacks cannot
// drift it.
func (r *CampaignTotals) Recalculate(ctx context.Context, campaignID int64) error {
	_, err := r.db.GetDB().Exec(ctx, `
		UPDATE campaigns
		SET collected_amount = (
			SELECT COALESCE(SUM(amount), 0)
			FROM donations
			WHERE campaign_id = $1 AND payment_status = $2
		), updated_at = NOW()
		WHERE id = $1`,
		campaignID, string(domain.PaymentStatusCompleted))
	if err != nil {
		return fmt.Errorf("recalculate campaign %d: %w", campaignID, err)
	}
	return nil
}
