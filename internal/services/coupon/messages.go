package coupon

import (
	"fmt"

	"github.com/shopspring/decimal"

	"syntra-settlement/internal/domain"
)

var messages = map[FailureReason]map[domain.Locale]string{
	ReasonCartEmpty: {
		domain.LocaleEnglish: "Your cart is empty",
		domain.LocaleHebrew:  "העגלה שלך ריקה",
	},
	ReasonNotFound: {
		domain.LocaleEnglish: "Coupon code not found",
		domain.LocaleHebrew:  "קוד הקופון לא נמצא",
	},
	ReasonInactive: {
		domain.LocaleEnglish: "This coupon is no longer active",
		domain.LocaleHebrew:  "הקופון אינו פעיל",
	},
	ReasonNotStarted: {
		domain.LocaleEnglish: "This coupon is not valid yet",
		domain.LocaleHebrew:  "הקופון עדיין אינו בתוקף",
	},
	ReasonExpired: {
		domain.LocaleEnglish: "This coupon has expired",
		domain.LocaleHebrew:  "תוקף הקופון פג",
	},
	ReasonUsageLimitReached: {
		domain.LocaleEnglish: "This coupon has reached its usage limit",
		domain.LocaleHebrew:  "הקופון הגיע למגבלת השימושים",
	},
	ReasonUserRequired: {
		domain.LocaleEnglish: "Please sign in or enter a phone number to use this coupon",
		domain.LocaleHebrew:  "יש להתחבר או להזין מספר טלפון כדי להשתמש בקופון",
	},
	ReasonUserLimitReached: {
		domain.LocaleEnglish: "You have already used this coupon the maximum number of times",
		domain.LocaleHebrew:  "כבר השתמשת בקופון זה את מספר הפעמים המרבי",
	},
	ReasonMinCartValue: {
		domain.LocaleEnglish: "Minimum cart value for this coupon is %s",
		domain.LocaleHebrew:  "סכום ההזמנה המינימלי לקופון זה הוא %s",
	},
	ReasonAlreadyApplied: {
		domain.LocaleEnglish: "This coupon is already applied",
		domain.LocaleHebrew:  "הקופון כבר הוחל",
	},
	ReasonNotStackable: {
		domain.LocaleEnglish: "This coupon cannot be combined with other coupons",
		domain.LocaleHebrew:  "לא ניתן לשלב קופון זה עם קופונים אחרים",
	},
	ReasonNotApplicable: {
		domain.LocaleEnglish: "This coupon does not apply to the items in your cart",
		domain.LocaleHebrew:  "הקופון אינו חל על הפריטים בעגלה",
	},
}

var currencySymbols = map[string]string{
	"ILS": "₪",
	"USD": "$",
	"EUR": "€",
}

func formatAmount(amount decimal.Decimal, currency string) string {
	if symbol, ok := currencySymbols[currency]; ok {
		return symbol + amount.StringFixed(2)
	}
	if currency == "" {
		return amount.StringFixed(2)
	}
	return amount.StringFixed(2) + " " + currency
}

func fail(code string, reason FailureReason, locale domain.Locale, args ...interface{}) Failure {
	text := messages[reason][locale.Normalize()]
	if len(args) > 0 {
		text = fmt.Sprintf(text, args...)
	}
	return Failure{Code: code, Reason: reason, Message: text}
}
