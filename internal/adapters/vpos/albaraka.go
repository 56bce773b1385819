package vpos

import (
	"context"

	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
)

// AlbarakaGateway charges through the Albaraka virtual POS. It is selected
// for one-time payments when the card's issuing bank runs an active POS here.
type AlbarakaGateway struct {
	client *client
}

// NewAlbarakaGateway creates an Albaraka gateway adapter
func NewAlbarakaGateway(config *Config, logger ports.Logger) *AlbarakaGateway {
	return &AlbarakaGateway{client: newClient(config, logger)}
}

// Name implements ports.PaymentGateway
func (g *AlbarakaGateway) Name() domain.Gateway {
	return domain.GatewayAlbaraka
}

// Charge implements ports.PaymentGateway
func (g *AlbarakaGateway) Charge(ctx context.Context, req *ports.ChargeRequest) (*ports.ChargeResult, error) {
	g.client.logger.Info("charging via albaraka",
		ports.String("conversation_id", req.ConversationID),
		ports.String("amount", req.Amount.String()),
	)

	payload := map[string]interface{}{
		"merchantCode": g.client.config.MerchantID,
		"txnAmount":    req.Amount.StringFixed(2),
		"currencyCode": req.Currency,
		"cardToken":    req.CardToken,
		"orderId":      req.ConversationID,
	}

	envelope, raw, err := g.client.post(ctx, "/rest/payment/charge", payload)
	if err != nil {
		return nil, err
	}

	result := &ports.ChargeResult{
		Approved:             envelope.Status == "APPROVED",
		GatewayTransactionID: envelope.TransactionID,
		ResponseCode:         envelope.ResponseCode,
		ResponseMessage:      envelope.ErrorMessage,
		Retryable:            isRetryable(envelope.ResponseCode),
		RawResponse:          raw,
	}
	if !result.Approved {
		g.client.logger.Warn("albaraka declined charge",
			ports.String("conversation_id", req.ConversationID),
			ports.String("response_code", envelope.ResponseCode),
		)
	}
	return result, nil
}
