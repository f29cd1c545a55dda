package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"syntra-settlement/internal/domain"
)

type Order struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	OrderNumber   string `gorm:"type:varchar(32);uniqueIndex;not null"`
	UserID        *int64 `gorm:"index"`
	CustomerName  string `gorm:"type:varchar(255)"`
	CustomerPhone string `gorm:"type:varchar(32)"`
	CustomerEmail string `gorm:"type:varchar(255)"`

	Subtotal           decimal.Decimal  `gorm:"type:numeric(12,2);not null"`
	DiscountTotal      decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0"`
	BogoDiscountAmount *decimal.Decimal `gorm:"type:numeric(12,2)"`
	DeliveryFee        decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0"`
	PointsUsed         decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0"`
	Total              decimal.Decimal  `gorm:"type:numeric(12,2);not null"`

	CouponsRedeemedAt *time.Time

	VerifoneInvoiceStatus      domain.InvoiceStatus `gorm:"type:varchar(16);not null;default:'none'"`
	VerifoneInvoiceAttemptedAt *time.Time
	VerifoneInvoiceNo          *string `gorm:"type:varchar(64)"`
	VerifoneInvoiceError       *string `gorm:"type:text"`
	VerifoneInvoiceRequest     *string `gorm:"type:text"`
	VerifoneInvoiceResponse    *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Items          []OrderItem     `gorm:"foreignKey:OrderID"`
	AppliedCoupons []AppliedCoupon `gorm:"foreignKey:OrderID"`
}

// UserIdentifier keys per-user coupon consumption: the user id for
// registered customers, the phone number for guests.
func (o Order) UserIdentifier() string {
	if o.UserID != nil {
		return strconv.FormatInt(*o.UserID, 10)
	}
	return o.CustomerPhone
}

type OrderItem struct {
	ID          int64            `gorm:"primaryKey;autoIncrement"`
	OrderID     int64            `gorm:"index;not null"`
	ProductSKU  string           `gorm:"column:product_sku;type:varchar(64);not null"`
	ProductName string           `gorm:"type:varchar(255)"`
	ColorName   string           `gorm:"type:varchar(64)"`
	Size        string           `gorm:"type:varchar(32)"`
	Quantity    int              `gorm:"not null"`
	Price       decimal.Decimal  `gorm:"type:numeric(12,2);not null"`
	SalePrice   *decimal.Decimal `gorm:"type:numeric(12,2)"`
	CreatedAt   time.Time
}

type AppliedCoupon struct {
	ID             int64               `gorm:"primaryKey;autoIncrement"`
	OrderID        int64               `gorm:"index;not null"`
	CouponID       int64               `gorm:"index;not null"`
	Code           string              `gorm:"type:varchar(64);not null"`
	DiscountAmount decimal.Decimal     `gorm:"type:numeric(12,2);not null"`
	DiscountType   domain.DiscountType `gorm:"type:varchar(32);not null"`
	Stackable      bool                `gorm:"not null"`
	CreatedAt      time.Time
}
