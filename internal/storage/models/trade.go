// internal/storage/models/trade.go
package models

import "time"

const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// Trade is a persisted settlement record.
type Trade struct {
	BaseModel
	Mint                 string    `gorm:"index;not null;type:varchar(44)" json:"mint"`
	User                 string    `gorm:"index;not null;type:varchar(44)" json:"user"`
	IsBuy                bool      `gorm:"not null" json:"is_buy"`
	SolAmount            uint64    `gorm:"not null" json:"sol_amount"`
	TokenAmount          uint64    `gorm:"not null" json:"token_amount"`
	Fee                  uint64    `gorm:"not null;default:0" json:"fee"`
	VirtualSolReserves   uint64    `gorm:"not null" json:"virtual_sol_reserves"`
	VirtualTokenReserves uint64    `gorm:"not null" json:"virtual_token_reserves"`
	RealSolReserves      uint64    `gorm:"not null" json:"real_sol_reserves"`
	RealTokenReserves    uint64    `gorm:"not null" json:"real_token_reserves"`
	Hash                 string    `gorm:"type:varchar(128)" json:"hash"`
	BlockTime            time.Time `gorm:"index;not null" json:"timestamp"`
}

// Action returns "buy" or "sell".
func (t *Trade) Action() string {
	if t.IsBuy {
		return ActionBuy
	}
	return ActionSell
}
