package ports

import (
	"context"

	"github.com/iyilikvakfi/donation-service/internal/domain"
)

// BinRepository reads the BIN reference table. This subsystem never writes it.
type BinRepository interface {
	// GetByBin retrieves a BIN record joined with its bank.
	// Returns a BIN_NOT_FOUND domain error when the prefix is unregistered.
	GetByBin(ctx context.Context, db DBTX, bin string) (*domain.BinInfo, error)
}
