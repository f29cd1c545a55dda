package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Email     string `gorm:"type:varchar(255)"`
	Phone     string `gorm:"type:varchar(32);index"`
	Firstname string
	Lastname  string

	// Denormalized running total; only mutated in the transaction that
	// writes the matching PointsEntry, or overwritten from the loyalty system.
	PointsBalance decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`

	CreatedAt *time.Time `gorm:"autoCreateTime"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime"`
}
