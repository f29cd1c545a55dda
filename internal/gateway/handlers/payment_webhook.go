package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"syntra-settlement/internal/services/invoicesync"
)

type PaymentWebhookRequest struct {
	OrderNumber   string          `json:"order_number"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transaction_id"`
	PaymentMethod string          `json:"payment_method"`
	CardLast4     string          `json:"card_last4"`
	Installments  int             `json:"installments"`
	Amount        decimal.Decimal `json:"amount"`
}

func paymentApproved(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved", "paid", "success":
		return true
	}
	return false
}

// PaymentWebhook confirms a paid order. It always answers 200 so the payment
// provider does not redeliver; failures are logged. Redemptions are recorded
// first, then the invoice job is scheduled or points are earned locally.
func (h *SettlementHTTPHandler) PaymentWebhook(c *gin.Context) {
	var req PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Payment webhook: invalid payload", zap.Error(err))
		c.JSON(http.StatusOK, successResponse("Ignored: invalid payload", gin.H{"status": "invalid"}))
		return
	}

	orderNumber := strings.TrimSpace(req.OrderNumber)
	log := h.logger.With(zap.String("order_number", orderNumber), zap.String("payment_status", req.Status))
	if orderNumber == "" {
		log.Warn("Payment webhook: missing order number")
		c.JSON(http.StatusOK, successResponse("Ignored: missing order number", gin.H{"status": "invalid"}))
		return
	}
	if !paymentApproved(req.Status) {
		log.Info("Payment webhook: payment not approved")
		c.JSON(http.StatusOK, successResponse("Ignored: payment not approved", gin.H{"status": "ignored"}))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	redeemed, err := h.deps.Coupons.RecordRedemptions(ctx, orderNumber)
	if err != nil {
		log.Error("Payment webhook: failed to record coupon redemptions", zap.Error(err))
	}

	status := "processed"
	if h.deps.InvoicesEnabled {
		h.deps.Invoices.CreateInvoiceAsync(orderNumber, invoicesync.TransactionInfo{
			TransactionID: req.TransactionID,
			PaymentMethod: req.PaymentMethod,
			CardLast4:     req.CardLast4,
			Installments:  req.Installments,
			Amount:        req.Amount,
		})
		status = "invoice_scheduled"
	} else if err := h.earnLocally(ctx, orderNumber); err != nil {
		log.Error("Payment webhook: local points earn failed", zap.Error(err))
		status = "error"
	}

	c.JSON(http.StatusOK, successResponse("Payment processed", gin.H{
		"status":           status,
		"order_number":     orderNumber,
		"coupons_redeemed": redeemed,
	}))
}

func (h *SettlementHTTPHandler) earnLocally(ctx context.Context, orderNumber string) error {
	order, err := h.deps.Orders.Load(ctx, orderNumber)
	if err != nil {
		return err
	}
	_, err = h.deps.Points.Earn(ctx, order.ID)
	return err
}
