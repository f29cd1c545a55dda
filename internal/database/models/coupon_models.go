package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"syntra-settlement/internal/domain"
)

type StringArray []string

func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = []string{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to scan StringArray: %v", value)
	}

	return json.Unmarshal(bytes, a)
}

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Coupon is maintained by the admin tooling and read-only here, except for
// UsageCount which is bumped at payment confirmation.
type Coupon struct {
	ID            int64               `gorm:"primaryKey;autoIncrement"`
	Code          string              `gorm:"type:varchar(64);uniqueIndex;not null"`
	NameEn        string              `gorm:"type:varchar(128)"`
	NameHe        string              `gorm:"type:varchar(128)"`
	DiscountType  domain.DiscountType `gorm:"type:varchar(32);not null"`
	DiscountValue decimal.Decimal     `gorm:"type:numeric(12,2);not null;default:0"`

	EligibleSKUs       StringArray `gorm:"column:eligible_skus;type:text"`
	EligibleCategories StringArray `gorm:"type:text"`

	Stackable         bool            `gorm:"not null;default:false"`
	AutoApply         bool            `gorm:"not null;default:false"`
	MinCartValue      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	UsageLimit        *int
	UsageCount        int `gorm:"not null;default:0"`
	UsageLimitPerUser *int
	StartDate         *time.Time
	EndDate           *time.Time
	IsActive          bool `gorm:"not null;default:true"`
	BogoBuyQty        int  `gorm:"not null;default:0"`
	BogoGetQty        int  `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Label returns the display name for the locale, falling back to the code.
func (c Coupon) Label(locale domain.Locale) string {
	if locale.Normalize() == domain.LocaleHebrew && c.NameHe != "" {
		return c.NameHe
	}
	if c.NameEn != "" {
		return c.NameEn
	}
	return c.Code
}

type CouponRedemption struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	CouponID       int64     `gorm:"not null;uniqueIndex:idx_redemption_coupon_user"`
	UserIdentifier string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_redemption_coupon_user"`
	UsageCount     int       `gorm:"not null;default:0"`
	LastUsedAt     time.Time `gorm:"not null"`
}
