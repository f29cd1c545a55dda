package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	Slug     string `gorm:"type:varchar(128);uniqueIndex;not null"`
	Name     string `gorm:"type:varchar(128);not null"`
	ParentID *int64 `gorm:"index"`
	IsActive bool   `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Parent *Category `gorm:"foreignKey:ParentID"`
}

// DiscountGroup prices any two eligible units of its products at PairPrice.
type DiscountGroup struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	Name      string          `gorm:"type:varchar(128);not null"`
	PairPrice decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	IsActive  bool            `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Product struct {
	ID              int64            `gorm:"primaryKey;autoIncrement"`
	SKU             string           `gorm:"column:sku;type:varchar(64);uniqueIndex;not null"`
	Name            string           `gorm:"type:varchar(255);not null"`
	Price           decimal.Decimal  `gorm:"type:numeric(12,2);not null"`
	SalePrice       *decimal.Decimal `gorm:"type:numeric(12,2)"`
	CategoryID      *int64           `gorm:"index"`
	DiscountGroupID *int64           `gorm:"index"`
	IsActive        bool             `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Category      *Category      `gorm:"foreignKey:CategoryID"`
	DiscountGroup *DiscountGroup `gorm:"foreignKey:DiscountGroupID"`
}
