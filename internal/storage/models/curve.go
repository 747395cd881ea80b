// internal/storage/models/curve.go
package models

import "time"

// Curve tracks a launched bonding curve and its completion.
type Curve struct {
	BaseModel
	Mint         string     `gorm:"uniqueIndex;not null;type:varchar(44)"`
	BondingCurve string     `gorm:"not null;type:varchar(44)"`
	Creator      string     `gorm:"index;not null;type:varchar(44)"`
	Name         string     `gorm:"type:varchar(100)"`
	Symbol       string     `gorm:"type:varchar(20)"`
	URI          string     `gorm:"type:text"`
	TokenSupply  uint64     `gorm:"not null"`
	LaunchedAt   time.Time  `gorm:"not null"`
	Complete     bool       `gorm:"not null;default:false"`
	CompletedBy  string     `gorm:"type:varchar(44)"`
	CompletedAt  *time.Time `gorm:"index"`
}
