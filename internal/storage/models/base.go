// internal/storage/models/base.go
package models

import "time"

// BaseModel заменяет gorm.Model для большего контроля
type BaseModel struct {
	ID        uint       `gorm:"primarykey" json:"-"`
	CreatedAt time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"-"`
	DeletedAt *time.Time `gorm:"index" json:"-"`
}
