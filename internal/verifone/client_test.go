package verifone

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syntra-settlement/config"
	"syntra-settlement/internal/services/invoice"
	pkgerrors "syntra-settlement/pkg/errors"
)

const invoiceOK = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <CreateInvoiceResponse xmlns="http://tempuri.org/">
      <CreateInvoiceResult>
        <Success>true</Success>
        <StatusCode>0</StatusCode>
        <InvoiceNumber>INV-9001</InvoiceNumber>
      </CreateInvoiceResult>
    </CreateInvoiceResponse>
  </soap:Body>
</soap:Envelope>`

const invoiceRejected = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <CreateInvoiceResponse xmlns="http://tempuri.org/">
      <CreateInvoiceResult>
        <Success>false</Success>
        <StatusCode>17</StatusCode>
        <Message>Totals mismatch</Message>
      </CreateInvoiceResult>
    </CreateInvoiceResponse>
  </soap:Body>
</soap:Envelope>`

const soapFaultBody = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <soap:Fault>
      <faultcode>soap:Server</faultcode>
      <faultstring>Invalid credentials</faultstring>
    </soap:Fault>
  </soap:Body>
</soap:Envelope>`

const pointsOK = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <GetCustomerPointsResponse xmlns="http://tempuri.org/">
      <GetCustomerPointsResult>
        <IsMember>true</IsMember>
        <CreditPoints>125</CreditPoints>
      </GetCustomerPointsResult>
    </GetCustomerPointsResponse>
  </soap:Body>
</soap:Envelope>`

type recorded struct {
	action string
	body   string
}

func newServer(t *testing.T, status int, response string, seen *recorded) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			seen.action = r.Header.Get("SOAPAction")
			seen.body = string(body)
		}
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string) *Client {
	return NewClient(config.VerifoneConfig{
		Enabled:   true,
		BaseURL:   url,
		Username:  "shop",
		Password:  "secret",
		CompanyID: "514",
		Timeout:   2 * time.Second,
	}, nil)
}

func sampleRequest() InvoiceRequest {
	doc := invoice.Build(invoice.Input{
		Items:       []invoice.Item{{SKU: "A", Description: "Runner", Quantity: 1, Price: decimal.NewFromInt(100)}},
		DeliveryFee: decimal.NewFromInt(30),
	})
	return InvoiceRequest{
		OrderNumber: "ORD-ABC",
		Customer:    Customer{Name: "Dana", Phone: "0501234567"},
		Document:    doc,
		Payment:     Payment{Method: "credit", Amount: doc.TotalPriceIncludeVAT, TransactionID: "tx-1"},
	}
}

func requireExternal(t *testing.T, err error) *pkgerrors.ErrExternalService {
	t.Helper()
	var ext *pkgerrors.ErrExternalService
	require.True(t, errors.As(err, &ext), "expected ErrExternalService, got %v", err)
	return ext
}

func TestCreateInvoice_Accepted(t *testing.T) {
	seen := &recorded{}
	srv := newServer(t, http.StatusOK, invoiceOK, seen)
	client := newTestClient(srv.URL)

	result, err := client.CreateInvoice(context.Background(), sampleRequest())
	require.NoError(t, err)

	accepted, ok := result.(InvoiceAccepted)
	require.True(t, ok)
	assert.Equal(t, "INV-9001", accepted.InvoiceNumber)
	assert.Contains(t, accepted.RawResponse(), "INV-9001")

	assert.Equal(t, `"http://tempuri.org/CreateInvoice"`, seen.action)
	assert.Contains(t, seen.body, "<soap:Envelope")
	assert.Contains(t, seen.body, "<OrderNumber>ORD-ABC</OrderNumber>")
	assert.Contains(t, seen.body, "<CompanyId>514</CompanyId>")
	assert.Contains(t, seen.body, "<TotalPriceIncludeVAT>130.00</TotalPriceIncludeVAT>")
	assert.Equal(t, 2, strings.Count(seen.body, "<Line>"))
}

func TestCreateInvoice_Rejected(t *testing.T) {
	srv := newServer(t, http.StatusOK, invoiceRejected, nil)

	result, err := newTestClient(srv.URL).CreateInvoice(context.Background(), sampleRequest())
	require.NoError(t, err)

	rejected, ok := result.(InvoiceRejected)
	require.True(t, ok)
	assert.Equal(t, 17, rejected.StatusCode)
	assert.Equal(t, "Totals mismatch", rejected.Message)
}

func TestCreateInvoice_SuccessWithoutNumberIsRejected(t *testing.T) {
	body := strings.Replace(invoiceOK, "<InvoiceNumber>INV-9001</InvoiceNumber>", "", 1)
	srv := newServer(t, http.StatusOK, body, nil)

	result, err := newTestClient(srv.URL).CreateInvoice(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.IsType(t, InvoiceRejected{}, result)
}

func TestCreateInvoice_Fault(t *testing.T) {
	srv := newServer(t, http.StatusInternalServerError, soapFaultBody, nil)

	_, err := newTestClient(srv.URL).CreateInvoice(context.Background(), sampleRequest())
	ext := requireExternal(t, err)
	assert.Equal(t, http.StatusInternalServerError, ext.StatusCode)
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestCreateInvoice_FaultWith200(t *testing.T) {
	srv := newServer(t, http.StatusOK, soapFaultBody, nil)

	_, err := newTestClient(srv.URL).CreateInvoice(context.Background(), sampleRequest())
	requireExternal(t, err)
}

func TestCreateInvoice_MalformedBody(t *testing.T) {
	srv := newServer(t, http.StatusOK, "<html>gateway error", nil)

	_, err := newTestClient(srv.URL).CreateInvoice(context.Background(), sampleRequest())
	requireExternal(t, err)
}

func TestCreateInvoice_NonSOAPError(t *testing.T) {
	srv := newServer(t, http.StatusBadGateway, "bad gateway", nil)

	_, err := newTestClient(srv.URL).CreateInvoice(context.Background(), sampleRequest())
	ext := requireExternal(t, err)
	assert.Equal(t, http.StatusBadGateway, ext.StatusCode)
}

func TestCreateInvoice_Timeout(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClient(config.VerifoneConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	_, err := client.CreateInvoice(context.Background(), sampleRequest())
	requireExternal(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no retry on timeout")
}

func TestCreateInvoice_MissingBaseURL(t *testing.T) {
	_, err := newTestClient("").CreateInvoice(context.Background(), sampleRequest())
	requireExternal(t, err)
}

func TestGetCustomerPoints(t *testing.T) {
	seen := &recorded{}
	srv := newServer(t, http.StatusOK, pointsOK, seen)

	balance, err := newTestClient(srv.URL).GetCustomerPoints(context.Background(), "0501234567")
	require.NoError(t, err)
	assert.True(t, balance.IsMember)
	assert.Equal(t, "125", balance.CreditPoints.String())
	assert.Contains(t, seen.body, "<Phone>0501234567</Phone>")
	assert.Equal(t, `"http://tempuri.org/GetCustomerPoints"`, seen.action)
}

func TestGetCustomerPoints_MalformedPoints(t *testing.T) {
	srv := newServer(t, http.StatusOK, strings.Replace(pointsOK, "125", "lots", 1), nil)

	_, err := newTestClient(srv.URL).GetCustomerPoints(context.Background(), "0501234567")
	requireExternal(t, err)
}

func TestNewInvoiceEnvelope_GeneratesRequestID(t *testing.T) {
	envelope, err := newTestClient("http://unused").NewInvoiceEnvelope(sampleRequest())
	require.NoError(t, err)
	assert.Regexp(t, `<RequestId>[0-9a-f-]{36}</RequestId>`, string(envelope))
}
