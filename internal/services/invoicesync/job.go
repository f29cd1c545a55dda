// Package invoicesync issues the Verifone tax invoice of a paid order and
// reconciles the customer's points afterwards. Every order is attempted at
// most once: a duplicate trigger finds the claim taken and returns.
package invoicesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"syntra-settlement/internal/database/models"
	"syntra-settlement/internal/domain"
	"syntra-settlement/internal/events"
	"syntra-settlement/internal/services/invoice"
	"syntra-settlement/internal/services/points"
	"syntra-settlement/internal/verifone"
)

const (
	DefaultJobTimeout    = 2 * time.Minute
	statusWriteTimeout   = 10 * time.Second
	defaultPaymentMethod = "credit_card"
)

// Gateway is the slice of the Verifone client the job needs.
type Gateway interface {
	GetCustomerPoints(ctx context.Context, phone string) (verifone.Balance, error)
	NewInvoiceEnvelope(req verifone.InvoiceRequest) ([]byte, error)
	SendInvoice(ctx context.Context, envelope []byte) (verifone.InvoiceResult, error)
}

type PointsSyncer interface {
	SyncFromExternal(ctx context.Context, in points.SyncInput) (*models.PointsEntry, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.SettlementEvent) error
}

// TransactionInfo describes the payment that confirmed the order.
type TransactionInfo struct {
	TransactionID string          `json:"transaction_id"`
	PaymentMethod string          `json:"payment_method"`
	CardLast4     string          `json:"card_last4"`
	Installments  int             `json:"installments"`
	Amount        decimal.Decimal `json:"amount"`
}

type RunResult struct {
	Status    domain.InvoiceStatus
	InvoiceNo string
	Skipped   bool
}

type Job struct {
	store   OrderStore
	gateway Gateway
	points  PointsSyncer
	events  EventPublisher
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewJob(store OrderStore, gateway Gateway, pointsSyncer PointsSyncer, publisher EventPublisher, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		store:   store,
		gateway: gateway,
		points:  pointsSyncer,
		events:  publisher,
		logger:  logger,
		timeout: DefaultJobTimeout,
		now:     time.Now,
	}
}

// CreateInvoiceAsync runs the job in the background. It never blocks the
// caller and never fails.
func (j *Job) CreateInvoiceAsync(orderNumber string, info TransactionInfo) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		j.Run(ctx, orderNumber, info)
	}()
}

// Wait blocks until every background run has finished.
func (j *Job) Wait() {
	j.wg.Wait()
}

// Run claims the order and performs the invoice attempt. Failures are
// recorded on the order and logged, never returned.
func (j *Job) Run(ctx context.Context, orderNumber string, info TransactionInfo) (result RunResult) {
	log := j.logger.With(zap.String("order_number", orderNumber))

	claimed, err := j.store.Claim(ctx, orderNumber, j.now())
	if err != nil {
		log.Error("Failed to claim invoice attempt", zap.Error(err))
		return RunResult{Status: domain.InvoiceStatusNone, Skipped: true}
	}
	if !claimed {
		log.Info("Invoice already attempted, skipping")
		return RunResult{Skipped: true}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Invoice job panicked", zap.Any("panic", r))
			result = j.fail(ctx, log, orderNumber, decimal.Zero, fmt.Errorf("panic: %v", r), "")
		}
	}()

	order, err := j.store.Load(ctx, orderNumber)
	if err != nil {
		return j.fail(ctx, log, orderNumber, decimal.Zero, err, "")
	}

	var before *decimal.Decimal
	if order.UserID != nil && order.CustomerPhone != "" {
		before = j.lookupBalance(ctx, log, order.CustomerPhone)
	}

	doc := BuildDocument(order)
	if !doc.TotalPriceIncludeVAT.Equal(order.Total) {
		log.Warn("Invoice total differs from order total",
			zap.String("invoice_total", doc.TotalPriceIncludeVAT.StringFixed(2)),
			zap.String("order_total", order.Total.StringFixed(2)),
		)
	}

	amount := info.Amount
	if !amount.IsPositive() {
		amount = doc.TotalPriceIncludeVAT
	}
	method := info.PaymentMethod
	if method == "" {
		method = defaultPaymentMethod
	}

	envelope, err := j.gateway.NewInvoiceEnvelope(verifone.InvoiceRequest{
		OrderNumber: order.OrderNumber,
		Customer: verifone.Customer{
			Name:  order.CustomerName,
			Phone: order.CustomerPhone,
			Email: order.CustomerEmail,
		},
		Document: doc,
		Payment: verifone.Payment{
			Method:        method,
			Amount:        amount,
			TransactionID: info.TransactionID,
			CardLast4:     info.CardLast4,
			Installments:  info.Installments,
		},
	})
	if err != nil {
		return j.fail(ctx, log, orderNumber, order.Total, err, "")
	}

	if err := j.store.SaveRequest(ctx, orderNumber, string(envelope)); err != nil {
		return j.fail(ctx, log, orderNumber, order.Total, err, "")
	}

	sent, err := j.gateway.SendInvoice(ctx, envelope)
	if err != nil {
		return j.fail(ctx, log, orderNumber, order.Total, err, "")
	}

	switch res := sent.(type) {
	case verifone.InvoiceAccepted:
		if err := j.complete(ctx, orderNumber, Outcome{
			Status:    domain.InvoiceStatusSuccess,
			InvoiceNo: res.InvoiceNumber,
			Response:  res.RawResponse(),
		}); err != nil {
			log.Error("Failed to record invoice success", zap.String("invoice_no", res.InvoiceNumber), zap.Error(err))
		}
		log.Info("Invoice created", zap.String("invoice_no", res.InvoiceNumber))

		if before != nil {
			j.syncPoints(ctx, log, order, *before)
		}
		j.publish(ctx, log, events.EventInvoiceCreated, orderNumber, domain.InvoiceStatusSuccess, res.InvoiceNumber, order.Total)
		return RunResult{Status: domain.InvoiceStatusSuccess, InvoiceNo: res.InvoiceNumber}

	case verifone.InvoiceRejected:
		return j.fail(ctx, log, orderNumber, order.Total,
			fmt.Errorf("invoice rejected with status %d: %s", res.StatusCode, res.Message), res.RawResponse())

	default:
		return j.fail(ctx, log, orderNumber, order.Total, fmt.Errorf("unexpected invoice result %T", sent), "")
	}
}

func (j *Job) fail(ctx context.Context, log *zap.Logger, orderNumber string, total decimal.Decimal, cause error, response string) RunResult {
	log.Error("Invoice attempt failed", zap.Error(cause))
	if err := j.complete(ctx, orderNumber, Outcome{
		Status:   domain.InvoiceStatusFailed,
		Error:    cause.Error(),
		Response: response,
	}); err != nil {
		log.Error("Failed to record invoice failure", zap.Error(err))
	}
	j.publish(ctx, log, events.EventInvoiceFailed, orderNumber, domain.InvoiceStatusFailed, "", total)
	return RunResult{Status: domain.InvoiceStatusFailed}
}

// complete records the terminal status even when ctx is already done, so an
// expired run never leaves the order pending.
func (j *Job) complete(ctx context.Context, orderNumber string, outcome Outcome) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()
	return j.store.Complete(ctx, orderNumber, outcome)
}

// lookupBalance returns nil when the balance is unavailable, which disables
// the points sync for this run.
func (j *Job) lookupBalance(ctx context.Context, log *zap.Logger, phone string) *decimal.Decimal {
	balance, err := j.gateway.GetCustomerPoints(ctx, phone)
	if err != nil {
		log.Warn("Loyalty balance lookup failed", zap.Error(err))
		return nil
	}
	if !balance.IsMember {
		return nil
	}
	return &balance.CreditPoints
}

func (j *Job) syncPoints(ctx context.Context, log *zap.Logger, order models.Order, before decimal.Decimal) {
	if j.points == nil {
		return
	}
	after := j.lookupBalance(ctx, log, order.CustomerPhone)
	if after == nil {
		log.Warn("Skipping points sync, post-invoice balance unavailable")
		return
	}
	if _, err := j.points.SyncFromExternal(ctx, points.SyncInput{
		OrderID:      order.ID,
		UserID:       *order.UserID,
		PointsBefore: before,
		PointsAfter:  *after,
		PointsUsed:   order.PointsUsed,
	}); err != nil {
		log.Error("Points sync after invoice failed", zap.Error(err))
	}
}

func (j *Job) publish(ctx context.Context, log *zap.Logger, eventType, orderNumber string, status domain.InvoiceStatus, invoiceNo string, total decimal.Decimal) {
	if j.events == nil {
		return
	}
	if err := j.events.Publish(ctx, events.SettlementEvent{
		EventType:     eventType,
		OrderNumber:   orderNumber,
		InvoiceStatus: string(status),
		InvoiceNo:     invoiceNo,
		Total:         total.StringFixed(2),
	}); err != nil {
		log.Warn("Failed to publish settlement event", zap.String("event_type", eventType), zap.Error(err))
	}
}

// BuildDocument lays out the invoice of a stored order. Orders settled with
// BOGO get their items' line totals pinned to the discounted subtotal.
func BuildDocument(order models.Order) invoice.Document {
	items := make([]invoice.Item, 0, len(order.Items))
	for _, item := range order.Items {
		description := item.ProductName
		if description == "" {
			description = item.ProductSKU
		}
		items = append(items, invoice.Item{
			SKU:         item.ProductSKU,
			Description: description,
			Quantity:    item.Quantity,
			Price:       item.Price,
			SalePrice:   item.SalePrice,
		})
	}

	couponAmount := decimal.Zero
	for _, applied := range order.AppliedCoupons {
		couponAmount = couponAmount.Add(applied.DiscountAmount)
	}

	if order.BogoDiscountAmount != nil && order.BogoDiscountAmount.IsPositive() {
		items = invoice.DistributeBogoTotal(items, order.Subtotal.Sub(*order.BogoDiscountAmount))
		couponAmount = decimal.Zero
	}

	return invoice.Build(invoice.Input{
		Items:        items,
		CouponAmount: couponAmount,
		PointsUsed:   order.PointsUsed,
		DeliveryFee:  order.DeliveryFee,
	})
}
