package vpos

import (
	"context"

	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
)

// TurkiyeFinansGateway charges through the Türkiye Finans virtual POS.
// It is the default processor and the only one supporting stored-card
// recurring charges.
type TurkiyeFinansGateway struct {
	client *client
}

// NewTurkiyeFinansGateway creates a Türkiye Finans gateway adapter
func NewTurkiyeFinansGateway(config *Config, logger ports.Logger) *TurkiyeFinansGateway {
	return &TurkiyeFinansGateway{client: newClient(config, logger)}
}

// Name implements ports.PaymentGateway
func (g *TurkiyeFinansGateway) Name() domain.Gateway {
	return domain.GatewayTurkiyeFinans
}

// Charge implements ports.PaymentGateway
func (g *TurkiyeFinansGateway) Charge(ctx context.Context, req *ports.ChargeRequest) (*ports.ChargeResult, error) {
	g.client.logger.Info("charging via turkiye finans",
		ports.String("conversation_id", req.ConversationID),
		ports.String("amount", req.Amount.String()),
		ports.Bool("recurring", req.Recurring),
	)

	payload := map[string]interface{}{
		"merchantId":     g.client.config.MerchantID,
		"amount":         req.Amount.StringFixed(2),
		"currency":       req.Currency,
		"cardToken":      req.CardToken,
		"conversationId": req.ConversationID,
		"installment":    1,
	}
	if req.Recurring {
		payload["paymentModel"] = "RECURRING"
	}

	envelope, raw, err := g.client.post(ctx, "/api/v1/payment", payload)
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
		g.client.logger.Warn("turkiye finans declined charge",
			ports.String("conversation_id", req.ConversationID),
			ports.String("response_code", envelope.ResponseCode),
		)
	}
	return result, nil
}
