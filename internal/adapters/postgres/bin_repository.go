package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/jackc/pgx/v5"
)

// BinRepository implements ports.BinRepository over the reference tables
type BinRepository struct {
	db ports.DBPort
}

// NewBinRepository creates a new BIN repository
func NewBinRepository(db ports.DBPort) *BinRepository {
	return &BinRepository{db: db}
}

func (r *BinRepository) executor(db ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return r.db.GetDB()
}

// GetByBin retrieves a BIN record joined with its bank
func (r *BinRepository) GetByBin(ctx context.Context, db ports.DBTX, bin string) (*domain.BinInfo, error) {
	row := r.executor(db).QueryRow(ctx, `
		SELECT bc.id, bc.bin_code, bc.bank_id, bc.is_active,
			b.id, b.name, b.is_active, b.is_virtual_pos_active
		FROM bin_codes bc
		JOIN banks b ON b.id = bc.bank_id
		WHERE bc.bin_code = $1`,
		bin)

	var (
		code domain.BinCode
		bank domain.Bank
	)
	err := row.Scan(&code.ID, &code.BinCode, &code.BankID, &code.IsActive,
		&bank.ID, &bank.Name, &bank.IsActive, &bank.IsVirtualPosActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBinNotFound
		}
		return nil, fmt.Errorf("get bin code: %w", err)
	}

	return &domain.BinInfo{BinCode: &code, Bank: &bank}, nil
}
