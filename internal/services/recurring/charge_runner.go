package recurring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/iyilikvakfi/donation-service/internal/services/vposrouter"
	"github.com/jackc/pgx/v5"
)

// GatewaySelector picks the processor for a charge
type GatewaySelector interface {
	SelectGateway(ctx context.Context, cardNumber string, isRecurring bool) (*vposrouter.Selection, error)
}

// BatchError describes one subscription the batch could not charge
type BatchError struct {
	RecurringID string `json:"recurring_id"`
	Error       string `json:"error"`
}

// BatchResult summarizes one charge run
type BatchResult struct {
	Processed int          `json:"processed"`
	Success   int          `json:"success"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
	Errors    []BatchError `json:"errors"`
}

// Charger runs the periodic charge batch over due subscriptions
type Charger struct {
	svc      *Service
	router   GatewaySelector
	gateways map[domain.Gateway]ports.PaymentGateway
	logger   ports.Logger
}

// NewCharger creates a charge runner over the given processors
func NewCharger(svc *Service, router GatewaySelector, gateways []ports.PaymentGateway, logger ports.Logger) *Charger {
	byName := make(map[domain.Gateway]ports.PaymentGateway, len(gateways))
	for _, gw := range gateways {
		byName[gw.Name()] = gw
	}
	return &Charger{svc: svc, router: router, gateways: byName, logger: logger}
}

// ProcessDueCharges charges every subscription due as of the given day.
// Each subscription is claimed with a row lock that concurrent runs skip, so
// overlapping cron windows never double-charge. One bad subscription does not
// stop the batch.
func (c *Charger) ProcessDueCharges(ctx context.Context, asOf time.Time, batchSize int) (*BatchResult, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	due, err := c.svc.recurringRepo.ListDue(ctx, nil, asOf, int32(batchSize))
	if err != nil {
		return nil, fmt.Errorf("list due subscriptions: %w", err)
	}

	result := &BatchResult{Errors: make([]BatchError, 0)}

	c.logger.Info("processing due recurring charges",
		ports.String("as_of", asOf.Format("2006-01-02")),
		ports.Int("due", len(due)))

	for _, rec := range due {
		id, err := uuid.Parse(rec.ID)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BatchError{RecurringID: rec.ID, Error: err.Error()})
			continue
		}

		charged, campaignID, err := c.chargeOne(ctx, id, asOf)
		switch {
		case err != nil:
			result.Processed++
			result.Failed++
			result.Errors = append(result.Errors, BatchError{RecurringID: rec.ID, Error: err.Error()})
			c.logger.Error("recurring charge failed",
				ports.String("recurring_id", rec.ID), ports.Err(err))
		case !charged:
			result.Skipped++
		default:
			result.Processed++
			result.Success++
			c.svc.recalculateCampaign(ctx, campaignID)
		}
	}

	c.logger.Info("due recurring charges processed",
		ports.Int("processed", result.Processed),
		ports.Int("success", result.Success),
		ports.Int("failed", result.Failed),
		ports.Int("skipped", result.Skipped))
	return result, nil
}

// chargeOne claims, charges and settles a single subscription inside one
// transaction. The row lock is held across the gateway call; a concurrent
// run skips the row instead of waiting.
func (c *Charger) chargeOne(ctx context.Context, id uuid.UUID, asOf time.Time) (charged bool, campaignID *int64, err error) {
	var chargeErr error

	err = c.svc.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rec, err := c.svc.recurringRepo.ClaimDue(ctx, tx, id, asOf)
		if err != nil {
			return err
		}
		if rec == nil {
			// Claimed by a concurrent run or no longer due
			return nil
		}

		if rec.CardToken == nil || *rec.CardToken == "" {
			reason := "Kayıtlı kart bilgisi bulunamadı"
			if err := c.svc.applyPaymentFailure(ctx, tx, rec, reason); err != nil {
				return err
			}
			chargeErr = domain.NewDomainError(domain.ErrorCodeValidationMissingField, reason)
			return nil
		}

		selection, err := c.router.SelectGateway(ctx, "", true)
		if err != nil {
			return err
		}
		gateway, ok := c.gateways[selection.Gateway]
		if !ok {
			return domain.NewDomainError(domain.ErrorCodeGatewayError,
				fmt.Sprintf("gateway %s is not configured", selection.Gateway))
		}

		conversationID := fmt.Sprintf("REC-%s-%s", rec.ID, asOf.Format("2006-01-02"))
		result, err := gateway.Charge(ctx, &ports.ChargeRequest{
			Amount:         rec.Amount,
			Currency:       rec.Currency,
			CardToken:      *rec.CardToken,
			ConversationID: conversationID,
			Recurring:      true,
		})
		if err != nil {
			if ferr := c.svc.applyPaymentFailure(ctx, tx, rec, err.Error()); ferr != nil {
				return ferr
			}
			chargeErr = err
			return nil
		}
		if !result.Approved {
			reason := result.ResponseMessage
			if reason == "" {
				reason = "Ödeme reddedildi"
			}
			if ferr := c.svc.applyPaymentFailure(ctx, tx, rec, reason); ferr != nil {
				return ferr
			}
			chargeErr = domain.NewDomainError(domain.ErrorCodeGatewayDeclined, reason)
			return nil
		}

		gatewayTxnID := result.GatewayTransactionID
		if err := c.svc.applyPaymentSuccess(ctx, tx, rec, PaymentData{
			GatewayTransactionID: &gatewayTxnID,
			GatewayResponse:      result.RawResponse,
			ConversationID:       &conversationID,
			CreateTransaction:    true,
		}); err != nil {
			return err
		}

		charged = true
		campaignID = rec.CampaignID
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	if chargeErr != nil {
		return false, nil, chargeErr
	}
	return charged, campaignID, nil
}
