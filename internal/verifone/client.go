// Package verifone talks SOAP 1.1 to the Verifone invoicing and loyalty
// service.
package verifone

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"syntra-settlement/config"
	pkgerrors "syntra-settlement/pkg/errors"
)

const (
	serviceName     = "verifone"
	maxResponseSize = 1 << 20
)

type Client struct {
	httpClient *http.Client
	cfg        config.VerifoneConfig
	logger     *zap.Logger
}

func NewClient(cfg config.VerifoneConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
	}
}

func (c *Client) credentials() credentials {
	return credentials{
		UserName:  c.cfg.Username,
		Password:  c.cfg.Password,
		CompanyID: c.cfg.CompanyID,
	}
}

func marshalEnvelope(content interface{}) ([]byte, error) {
	body, err := xml.Marshal(requestEnvelope{
		SoapNS: soapEnvelopeNS,
		Body:   requestBody{Content: content},
	})
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

// NewInvoiceEnvelope renders the SOAP request for an invoice. A request id
// is generated when missing.
func (c *Client) NewInvoiceEnvelope(req InvoiceRequest) ([]byte, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	envelope, err := marshalEnvelope(createInvoiceCall{
		NS:          serviceNS,
		Credentials: c.credentials(),
		Invoice:     toInvoiceXML(req),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invoice envelope: %w", err)
	}
	return envelope, nil
}

// SendInvoice posts a rendered invoice envelope. Business rejections are
// returned as InvoiceRejected; transport and protocol failures as
// *errors.ErrExternalService.
func (c *Client) SendInvoice(ctx context.Context, envelope []byte) (InvoiceResult, error) {
	raw, err := c.call(ctx, actionCreateInvoice, envelope)
	if err != nil {
		return nil, err
	}

	var parsed createInvoiceEnvelope
	if err := xml.Unmarshal(raw, &parsed); err != nil {
		return nil, c.externalErr(actionCreateInvoice, 0, fmt.Errorf("malformed response: %w", err))
	}
	if parsed.Body.Fault != nil {
		return nil, c.externalErr(actionCreateInvoice, 0, faultError(parsed.Body.Fault))
	}
	if parsed.Body.Response == nil {
		return nil, c.externalErr(actionCreateInvoice, 0, errors.New("malformed response: missing CreateInvoiceResult"))
	}

	result := parsed.Body.Response.Result
	statusCode, _ := strconv.Atoi(strings.TrimSpace(result.StatusCode))
	invoiceNo := strings.TrimSpace(result.InvoiceNumber)

	if parseBool(strings.TrimSpace(result.Success)) && invoiceNo != "" {
		return InvoiceAccepted{InvoiceNumber: invoiceNo, StatusCode: statusCode, Raw: string(raw)}, nil
	}

	message := strings.TrimSpace(result.Message)
	if message == "" {
		message = "invoice rejected"
	}
	return InvoiceRejected{StatusCode: statusCode, Message: message, Raw: string(raw)}, nil
}

// CreateInvoice renders and sends an invoice in one call.
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (InvoiceResult, error) {
	envelope, err := c.NewInvoiceEnvelope(req)
	if err != nil {
		return nil, err
	}
	return c.SendInvoice(ctx, envelope)
}

// GetCustomerPoints looks up the loyalty balance of a phone number.
func (c *Client) GetCustomerPoints(ctx context.Context, phone string) (Balance, error) {
	envelope, err := marshalEnvelope(getCustomerPointsCall{
		NS:          serviceNS,
		Credentials: c.credentials(),
		Phone:       phone,
	})
	if err != nil {
		return Balance{}, fmt.Errorf("failed to marshal points envelope: %w", err)
	}

	raw, err := c.call(ctx, actionGetCustomerPoints, envelope)
	if err != nil {
		return Balance{}, err
	}

	var parsed getCustomerPointsEnvelope
	if err := xml.Unmarshal(raw, &parsed); err != nil {
		return Balance{}, c.externalErr(actionGetCustomerPoints, 0, fmt.Errorf("malformed response: %w", err))
	}
	if parsed.Body.Fault != nil {
		return Balance{}, c.externalErr(actionGetCustomerPoints, 0, faultError(parsed.Body.Fault))
	}
	if parsed.Body.Response == nil {
		return Balance{}, c.externalErr(actionGetCustomerPoints, 0, errors.New("malformed response: missing GetCustomerPointsResult"))
	}

	result := parsed.Body.Response.Result
	balance := Balance{IsMember: parseBool(strings.TrimSpace(result.IsMember)), CreditPoints: decimal.Zero}
	if points := strings.TrimSpace(result.CreditPoints); points != "" {
		credit, err := decimal.NewFromString(points)
		if err != nil {
			return Balance{}, c.externalErr(actionGetCustomerPoints, 0, fmt.Errorf("malformed CreditPoints %q: %w", points, err))
		}
		balance.CreditPoints = credit
	}
	return balance, nil
}

func (c *Client) call(ctx context.Context, action string, envelope []byte) ([]byte, error) {
	if c.cfg.BaseURL == "" {
		return nil, c.externalErr(action, 0, errors.New("base URL is not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(envelope))
	if err != nil {
		return nil, c.externalErr(action, 0, err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", fmt.Sprintf("%q", serviceNS+action))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.externalErr(action, 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, c.externalErr(action, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	c.logger.Debug("Verifone call completed",
		zap.String("action", action),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var parsed faultEnvelope
		if xml.Unmarshal(raw, &parsed) == nil && parsed.Body.Fault != nil {
			return nil, c.externalErr(action, resp.StatusCode, faultError(parsed.Body.Fault))
		}
		return nil, c.externalErr(action, resp.StatusCode, fmt.Errorf("unexpected HTTP status %s", resp.Status))
	}
	return raw, nil
}

func (c *Client) externalErr(action string, status int, err error) error {
	return &pkgerrors.ErrExternalService{
		Service:    serviceName,
		Operation:  action,
		StatusCode: status,
		Err:        err,
	}
}

func faultError(f *soapFault) error {
	return fmt.Errorf("soap fault %s: %s", strings.TrimSpace(f.Code), strings.TrimSpace(f.String))
}
