package verifone

import (
	"github.com/shopspring/decimal"

	"syntra-settlement/internal/services/invoice"
)

// Balance is a customer's standing in the loyalty club.
type Balance struct {
	IsMember     bool
	CreditPoints decimal.Decimal
}

type Customer struct {
	Name  string
	Phone string
	Email string
}

type Payment struct {
	Method        string
	Amount        decimal.Decimal
	TransactionID string
	CardLast4     string
	Installments  int
}

type InvoiceRequest struct {
	RequestID   string
	OrderNumber string
	Customer    Customer
	Document    invoice.Document
	Payment     Payment
}

// InvoiceResult is either InvoiceAccepted or InvoiceRejected.
type InvoiceResult interface {
	isInvoiceResult()
	RawResponse() string
}

type InvoiceAccepted struct {
	InvoiceNumber string
	StatusCode    int
	Raw           string
}

type InvoiceRejected struct {
	StatusCode int
	Message    string
	Raw        string
}

func (InvoiceAccepted) isInvoiceResult() {}
func (InvoiceRejected) isInvoiceResult() {}

func (r InvoiceAccepted) RawResponse() string { return r.Raw }
func (r InvoiceRejected) RawResponse() string { return r.Raw }
