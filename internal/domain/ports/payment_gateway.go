package ports

import (
	"context"
	"encoding/json"

	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/shopspring/decimal"
)

// ChargeRequest is the gateway-agnostic charge instruction.
// Card data is tokenized upstream; raw PANs never reach this layer.
type ChargeRequest struct {
	Amount         decimal.Decimal
	Currency       string
	CardToken      string
	ConversationID string
	Recurring      bool
}

// ChargeResult is the gateway's resolution of one attempt. RawResponse is
// kept opaque; only the fields the ledger reads are typed.
type ChargeResult struct {
	Approved             bool
	GatewayTransactionID string
	ResponseCode         string
	ResponseMessage      string
	Retryable            bool
	RawResponse          json.RawMessage
}

// PaymentGateway is the opaque client for one virtual POS processor
type PaymentGateway interface {
	// Name identifies the processor for routing and ledger records
	Name() domain.Gateway

	// Charge attempts to move money. A declined charge returns a result with
	// Approved=false and a nil error; errors are transport-level failures.
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)
}
