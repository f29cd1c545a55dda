package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"syntra-settlement/internal/database/models"
	"syntra-settlement/internal/domain"
	"syntra-settlement/internal/gateway/middleware"
	"syntra-settlement/internal/services/bogo"
	"syntra-settlement/internal/services/checkout"
	"syntra-settlement/internal/services/coupon"
	"syntra-settlement/internal/services/invoicesync"
)

const requestTimeout = 10 * time.Second

type CheckoutService interface {
	Quote(ctx context.Context, req checkout.Request) (checkout.Quote, error)
	Settle(ctx context.Context, req checkout.Request) (checkout.Settlement, error)
}

type BogoCalculator interface {
	Compute(ctx context.Context, lines []domain.CartLine) (bogo.Result, error)
}

type CouponService interface {
	Validate(ctx context.Context, req coupon.ValidateRequest) (coupon.Result, error)
	EvaluateAutoApply(ctx context.Context, lines []domain.CartLine, locale domain.Locale, currency, userIdentifier string) (*coupon.Success, error)
	RecordRedemptions(ctx context.Context, orderNumber string) (int, error)
}

type PointsLedger interface {
	Spend(ctx context.Context, userID, orderID int64, amount decimal.Decimal) (*models.PointsEntry, error)
	Earn(ctx context.Context, orderID int64) (*models.PointsEntry, error)
	Balance(ctx context.Context, userID int64) (decimal.Decimal, error)
}

type InvoiceScheduler interface {
	CreateInvoiceAsync(orderNumber string, info invoicesync.TransactionInfo)
}

type OrderLoader interface {
	Load(ctx context.Context, orderNumber string) (models.Order, error)
}

type SettlementDeps struct {
	Checkout CheckoutService
	Bogo     BogoCalculator
	Coupons  CouponService
	Points   PointsLedger
	Invoices InvoiceScheduler
	Orders   OrderLoader
	// InvoicesEnabled routes paid orders to the external invoice job;
	// otherwise points are earned locally.
	InvoicesEnabled bool
	Logger          *zap.Logger
}

type SettlementHTTPHandler struct {
	deps   SettlementDeps
	logger *zap.Logger
}

func NewSettlementHTTPHandler(deps SettlementDeps) *SettlementHTTPHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementHTTPHandler{deps: deps, logger: logger}
}

type CartRequest struct {
	Lines []domain.CartLine `json:"lines" binding:"required,min=1,dive"`
}

type ValidateCouponRequest struct {
	Code          string            `json:"code" binding:"required"`
	Lines         []domain.CartLine `json:"lines" binding:"required,min=1,dive"`
	Locale        domain.Locale     `json:"locale"`
	Currency      string            `json:"currency"`
	CustomerPhone string            `json:"customer_phone"`
	ExistingCodes []string          `json:"existing_codes"`
}

type AutoApplyRequest struct {
	Lines         []domain.CartLine `json:"lines" binding:"required,min=1,dive"`
	Locale        domain.Locale     `json:"locale"`
	Currency      string            `json:"currency"`
	CustomerPhone string            `json:"customer_phone"`
}

type SpendPointsRequest struct {
	OrderID int64           `json:"order_id" binding:"required"`
	Amount  decimal.Decimal `json:"amount"`
}

// userIdentifier keys per-user coupon limits the same way orders do.
func userIdentifier(c *gin.Context, phone string) string {
	if id, ok := middleware.UserIDFromContext(c); ok {
		return strconv.FormatInt(id, 10)
	}
	return phone
}

// --- Checkout ---

func (h *SettlementHTTPHandler) ComputeBogo(c *gin.Context) {
	var req CartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := h.deps.Bogo.Compute(ctx, req.Lines)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("BOGO computed", result))
}

func (h *SettlementHTTPHandler) Quote(c *gin.Context) {
	req, ok := h.bindCheckout(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	quote, err := h.deps.Checkout.Quote(ctx, req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Cart priced", quote))
}

func (h *SettlementHTTPHandler) Settle(c *gin.Context) {
	req, ok := h.bindCheckout(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	settlement, err := h.deps.Checkout.Settle(ctx, req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Order created", settlement))
}

func (h *SettlementHTTPHandler) bindCheckout(c *gin.Context) (checkout.Request, bool) {
	var req checkout.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return req, false
	}
	if id, ok := middleware.UserIDFromContext(c); ok {
		req.UserID = &id
	}
	return req, true
}

// --- Coupons ---

func (h *SettlementHTTPHandler) ValidateCoupon(c *gin.Context) {
	var req ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := h.deps.Coupons.Validate(ctx, coupon.ValidateRequest{
		Code:           req.Code,
		Lines:          req.Lines,
		Locale:         req.Locale,
		Currency:       req.Currency,
		UserIdentifier: userIdentifier(c, req.CustomerPhone),
		ExistingCodes:  req.ExistingCodes,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	switch r := result.(type) {
	case coupon.Success:
		c.JSON(http.StatusOK, successResponse(r.Label, r))
	case coupon.Failure:
		resp := errorResponse(r.Message)
		resp.Data = r
		c.JSON(http.StatusUnprocessableEntity, resp)
	}
}

func (h *SettlementHTTPHandler) AutoApplyCoupon(c *gin.Context) {
	var req AutoApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	best, err := h.deps.Coupons.EvaluateAutoApply(ctx, req.Lines, req.Locale, req.Currency, userIdentifier(c, req.CustomerPhone))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if best == nil {
		c.JSON(http.StatusOK, successResponse("No automatic coupon applies", nil))
		return
	}

	c.JSON(http.StatusOK, successResponse(best.Label, best))
}

// --- Points ---

func (h *SettlementHTTPHandler) SpendPoints(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("Authentication required"))
		return
	}

	var req SpendPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	entry, err := h.deps.Points.Spend(ctx, userID, req.OrderID, req.Amount)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Points spent", entry))
}

func (h *SettlementHTTPHandler) PointsBalance(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("Authentication required"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	balance, err := h.deps.Points.Balance(ctx, userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Points balance retrieved", gin.H{
		"user_id": userID,
		"balance": balance,
	}))
}
