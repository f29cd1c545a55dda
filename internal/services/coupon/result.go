package coupon

import (
	"github.com/shopspring/decimal"

	"syntra-settlement/internal/domain"
)

// Result is either a Success or a Failure. Validation outcomes are values;
// only store faults are returned as errors.
type Result interface {
	isResult()
}

type LineDiscount struct {
	SKU       string          `json:"sku"`
	LineTotal decimal.Decimal `json:"line_total"`
	Discount  decimal.Decimal `json:"discount"`
}

type Success struct {
	CouponID       int64               `json:"coupon_id"`
	Code           string              `json:"code"`
	Label          string              `json:"label"`
	DiscountType   domain.DiscountType `json:"discount_type"`
	Stackable      bool                `json:"stackable"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	NewSubtotal    decimal.Decimal     `json:"new_subtotal"`
	Lines          []LineDiscount      `json:"lines"`
}

type FailureReason string

const (
	ReasonCartEmpty         FailureReason = "cart_empty"
	ReasonNotFound          FailureReason = "not_found"
	ReasonInactive          FailureReason = "inactive"
	ReasonNotStarted        FailureReason = "not_started"
	ReasonExpired           FailureReason = "expired"
	ReasonUsageLimitReached FailureReason = "usage_limit_reached"
	ReasonUserRequired      FailureReason = "user_required"
	ReasonUserLimitReached  FailureReason = "user_limit_reached"
	ReasonMinCartValue      FailureReason = "min_cart_value"
	ReasonAlreadyApplied    FailureReason = "already_applied"
	ReasonNotStackable      FailureReason = "not_stackable"
	ReasonNotApplicable     FailureReason = "not_applicable"
)

type Failure struct {
	Code    string        `json:"code"`
	Reason  FailureReason `json:"reason"`
	Message string        `json:"message"`
}

func (Success) isResult() {}
func (Failure) isResult() {}
