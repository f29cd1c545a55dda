package domain

// DiscountType is the coupon discount strategy
type DiscountType string

const (
	DiscountPercentAll      DiscountType = "percent_all"
	DiscountFixed           DiscountType = "fixed"
	DiscountPercentSpecific DiscountType = "percent_specific"
	DiscountBogo            DiscountType = "bogo"
)

// IsValid checks if the discount type is one the engine can compute
func (t DiscountType) IsValid() bool {
	switch t {
	case DiscountPercentAll, DiscountFixed, DiscountPercentSpecific, DiscountBogo:
		return true
	default:
		return false
	}
}

// PointsKind is the direction of a ledger entry
type PointsKind string

const (
	PointsEarn  PointsKind = "EARN"
	PointsSpend PointsKind = "SPEND"
)

// InvoiceStatus tracks the external invoice attempt of an order
type InvoiceStatus string

const (
	InvoiceStatusNone    InvoiceStatus = "none"
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusSuccess InvoiceStatus = "success"
	InvoiceStatusFailed  InvoiceStatus = "failed"
)

// CanTransitionTo checks if an invoice status transition is valid
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	switch s {
	case InvoiceStatusNone, "":
		return next == InvoiceStatusPending
	case InvoiceStatusPending:
		return next == InvoiceStatusSuccess || next == InvoiceStatusFailed
	case InvoiceStatusSuccess, InvoiceStatusFailed:
		return false // Terminal states
	default:
		return false
	}
}

// IsTerminal reports whether no further attempt will be made by this service
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusSuccess || s == InvoiceStatusFailed
}

// Locale selects the language of user-facing coupon messages
type Locale string

const (
	LocaleEnglish Locale = "en"
	LocaleHebrew  Locale = "he"
)

// Normalize maps unknown locales to English
func (l Locale) Normalize() Locale {
	if l == LocaleHebrew {
		return LocaleHebrew
	}
	return LocaleEnglish
}
