package vposrouter

import (
	"context"
	"fmt"

	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/iyilikvakfi/donation-service/internal/services/binlookup"
)

// BinLookup is the resolver the router consults for one-time payments
type BinLookup interface {
	Lookup(ctx context.Context, bin string) (*domain.BinInfo, error)
}

// Selection is the routing decision with its human-readable rationale
type Selection struct {
	Gateway domain.Gateway `json:"gateway"`
	Bank    *domain.Bank   `json:"bank,omitempty"`
	Reason  string         `json:"reason"`
}

// Service decides which virtual POS processes a charge. It is a pure
// decision component; nothing here writes.
type Service struct {
	bins   BinLookup
	logger ports.Logger
}

// NewService creates a new gateway router
func NewService(bins BinLookup, logger ports.Logger) *Service {
	return &Service{bins: bins, logger: logger}
}

// SelectGateway picks the processor for a card. Recurring charges always go
// to the primary processor because only it supports stored-card billing.
// One-time charges route by the issuing bank's virtual POS flag, falling
// back to the primary on any gap in the reference data.
func (s *Service) SelectGateway(ctx context.Context, cardNumber string, isRecurring bool) (*Selection, error) {
	if isRecurring {
		return &Selection{
			Gateway: domain.GatewayTurkiyeFinans,
			Reason:  "Düzenli ödemeler her zaman Türkiye Finans VPOS kullanır",
		}, nil
	}

	bin, err := binlookup.Normalize(cardNumber)
	if err != nil {
		return nil, err
	}

	info, err := s.bins.Lookup(ctx, bin)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return &Selection{
				Gateway: domain.GatewayTurkiyeFinans,
				Reason:  "BIN kodu sistemde kayıtlı değil, varsayılan VPOS kullanılıyor",
			}, nil
		}
		return nil, err
	}

	bank := info.Bank
	if bank == nil {
		return &Selection{
			Gateway: domain.GatewayTurkiyeFinans,
			Reason:  "Banka bilgisi bulunamadı, varsayılan VPOS kullanılıyor",
		}, nil
	}

	if !bank.IsActive {
		return &Selection{
			Gateway: domain.GatewayTurkiyeFinans,
			Bank:    bank,
			Reason:  "Banka pasif durumda, varsayılan VPOS kullanılıyor",
		}, nil
	}

	if bank.IsVirtualPosActive {
		selection := &Selection{
			Gateway: domain.GatewayAlbaraka,
			Bank:    bank,
			Reason:  fmt.Sprintf("%s bankası için alternatif VPOS (Albaraka) kullanılıyor", bank.Name),
		}
		s.logger.Debug("routing to alternate vpos",
			ports.String("bin", bin), ports.String("bank", bank.Name))
		return selection, nil
	}

	return &Selection{
		Gateway: domain.GatewayTurkiyeFinans,
		Bank:    bank,
		Reason:  fmt.Sprintf("%s bankası için varsayılan VPOS (Türkiye Finans) kullanılıyor", bank.Name),
	}, nil
}
