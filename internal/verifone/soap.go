package verifone

import (
	"encoding/xml"
	"strconv"

	"github.com/shopspring/decimal"
)

const (
	soapEnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"
	serviceNS      = "http://tempuri.org/"

	actionCreateInvoice     = "CreateInvoice"
	actionGetCustomerPoints = "GetCustomerPoints"
)

type requestEnvelope struct {
	XMLName xml.Name    `xml:"soap:Envelope"`
	SoapNS  string      `xml:"xmlns:soap,attr"`
	Body    requestBody `xml:"soap:Body"`
}

type requestBody struct {
	Content interface{}
}

type credentials struct {
	UserName  string `xml:"UserName"`
	Password  string `xml:"Password"`
	CompanyID string `xml:"CompanyId"`
}

type createInvoiceCall struct {
	XMLName     xml.Name    `xml:"CreateInvoice"`
	NS          string      `xml:"xmlns,attr"`
	Credentials credentials `xml:"Credentials"`
	Invoice     invoiceXML  `xml:"Invoice"`
}

type getCustomerPointsCall struct {
	XMLName     xml.Name    `xml:"GetCustomerPoints"`
	NS          string      `xml:"xmlns,attr"`
	Credentials credentials `xml:"Credentials"`
	Phone       string      `xml:"Phone"`
}

type invoiceXML struct {
	RequestID   string      `xml:"RequestId"`
	OrderNumber string      `xml:"OrderNumber"`
	Customer    customerXML `xml:"Customer"`
	Lines       []lineXML   `xml:"Lines>Line"`
	Totals      totalsXML   `xml:"Totals"`
	Payment     paymentXML  `xml:"Payment"`
}

type customerXML struct {
	Name  string `xml:"Name"`
	Phone string `xml:"Phone"`
	Email string `xml:"Email,omitempty"`
}

type lineXML struct {
	ItemCode        string `xml:"ItemCode"`
	Description     string `xml:"Description"`
	Quantity        int    `xml:"Quantity"`
	UnitPrice       string `xml:"UnitPrice"`
	DiscountPercent string `xml:"DiscountPercent"`
	TotalPrice      string `xml:"TotalPrice"`
	NetAmount       string `xml:"NetAmount"`
	VatAmount       string `xml:"VatAmount"`
}

type totalsXML struct {
	TotalBeforeDiscount  string `xml:"TotalBeforeDiscount"`
	TotalAfterDiscount   string `xml:"TotalAfterDiscount"`
	DiscountAmount       string `xml:"DiscountAmount"`
	TotalNet             string `xml:"TotalNet"`
	TotalVat             string `xml:"TotalVat"`
	TotalPriceIncludeVAT string `xml:"TotalPriceIncludeVAT"`
}

type paymentXML struct {
	Method        string `xml:"Method"`
	Amount        string `xml:"Amount"`
	TransactionID string `xml:"TransactionId"`
	CardLast4     string `xml:"CardLast4,omitempty"`
	Installments  int    `xml:"Installments"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type createInvoiceEnvelope struct {
	Body struct {
		Fault    *soapFault `xml:"Fault"`
		Response *struct {
			Result struct {
				Success       string `xml:"Success"`
				StatusCode    string `xml:"StatusCode"`
				InvoiceNumber string `xml:"InvoiceNumber"`
				Message       string `xml:"Message"`
			} `xml:"CreateInvoiceResult"`
		} `xml:"CreateInvoiceResponse"`
	} `xml:"Body"`
}

type getCustomerPointsEnvelope struct {
	Body struct {
		Fault    *soapFault `xml:"Fault"`
		Response *struct {
			Result struct {
				IsMember     string `xml:"IsMember"`
				CreditPoints string `xml:"CreditPoints"`
			} `xml:"GetCustomerPointsResult"`
		} `xml:"GetCustomerPointsResponse"`
	} `xml:"Body"`
}

// faultEnvelope is used to read faults out of non-2xx responses.
type faultEnvelope struct {
	Body struct {
		Fault *soapFault `xml:"Fault"`
	} `xml:"Body"`
}

func money2(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func toInvoiceXML(req InvoiceRequest) invoiceXML {
	doc := req.Document
	out := invoiceXML{
		RequestID:   req.RequestID,
		OrderNumber: req.OrderNumber,
		Customer: customerXML{
			Name:  req.Customer.Name,
			Phone: req.Customer.Phone,
			Email: req.Customer.Email,
		},
		Totals: totalsXML{
			TotalBeforeDiscount:  money2(doc.TotalBeforeDiscount),
			TotalAfterDiscount:   money2(doc.TotalAfterDiscount),
			DiscountAmount:       money2(doc.DiscountForDisplay),
			TotalNet:             money2(doc.TotalNet),
			TotalVat:             money2(doc.TotalVAT),
			TotalPriceIncludeVAT: money2(doc.TotalPriceIncludeVAT),
		},
		Payment: paymentXML{
			Method:        req.Payment.Method,
			Amount:        money2(req.Payment.Amount),
			TransactionID: req.Payment.TransactionID,
			CardLast4:     req.Payment.CardLast4,
			Installments:  req.Payment.Installments,
		},
	}
	for _, l := range doc.Lines {
		out.Lines = append(out.Lines, lineXML{
			ItemCode:        l.SKU,
			Description:     l.Description,
			Quantity:        l.Quantity,
			UnitPrice:       money2(l.UnitPrice),
			DiscountPercent: money2(l.DiscountPercent),
			TotalPrice:      money2(l.TotalPrice),
			NetAmount:       money2(l.Net),
			VatAmount:       money2(l.VAT),
		})
	}
	return out
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
