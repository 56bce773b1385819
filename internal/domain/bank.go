package domain

// Gateway identifies a virtual POS processor
type Gateway string

const (
	// GatewayTurkiyeFinans is the default processor. All recurring charges
	// go through it unconditionally.
	GatewayTurkiyeFinans Gateway = "turkiye_finans"

	// GatewayAlbaraka is the alternate processor, used for one-time charges
	// on cards whose issuing bank is flagged for it.
	GatewayAlbaraka Gateway = "albaraka"
)

// Bank is reference data about a card-issuing bank
type Bank struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	IsActive           bool   `json:"is_active"`
	IsVirtualPosActive bool   `json:"is_virtual_pos_active"`
}

// BinCode maps a 6-digit card prefix to its issuing bank
type BinCode struct {
	ID       int64  `json:"id"`
	BinCode  string `json:"bin_code"`
	BankID   int64  `json:"bank_id"`
	IsActive bool   `json:"is_active"`
}

// BinInfo is the joined lookup result the router consumes
type BinInfo struct {
	BinCode *BinCode `json:"bin_code"`
	Bank    *Bank    `json:"bank"`
}
