package ports

import "context"

// CampaignTotals recalculates a campaign's collected total after every
// completed donation. The campaign module itself is outside this subsystem.
type CampaignTotals interface {
	Recalculate(ctx context.Context, campaignID int64) error
}

// ValidationResult is the outcome of the external rule engine
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// DonationValidator is the admin-configured validation-rule engine, consumed
// only at the donation-creation boundary. A nil validator skips the check.
type DonationValidator interface {
	Validate(ctx context.Context, entityType string, payload map[string]interface{}) (*ValidationResult, error)
}
