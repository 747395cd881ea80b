// internal/storage/models/invite.go
package models

import "time"

// Claim is a persisted referral-profit withdrawal.
type Claim struct {
	BaseModel
	User      string    `gorm:"index;not null;type:varchar(44)"`
	Amount    uint64    `gorm:"not null"`
	ClaimedAt time.Time `gorm:"index;not null"`
}

// Invite records a user joining the referral tree.
type Invite struct {
	BaseModel
	User     string    `gorm:"uniqueIndex;not null;type:varchar(44)"`
	Parent   string    `gorm:"index;not null;type:varchar(44)"`
	JoinedAt time.Time `gorm:"not null"`
}

// ParamsChange is an audit row per administrative update of the global configuration.
type ParamsChange struct {
	BaseModel
	FeeRecipient                string `gorm:"not null;type:varchar(44)"`
	WithdrawAuthority           string `gorm:"not null;type:varchar(44)"`
	InitialVirtualTokenReserves uint64
	InitialVirtualSolReserves   uint64
	InitialRealTokenReserves    uint64
	InitialTokenSupply          uint64
	FeeBasisPoints              uint64
	CreatorFeeBasisPoints       uint64
	InviteFeeBasisPoints        uint64
	ChangedAt                   time.Time `gorm:"index;not null"`
}
