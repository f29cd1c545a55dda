// Package checkout prices a cart and persists it as an order. Coupons and
// automatic BOGO pairing are mutually exclusive on one order.
package checkout

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"syntra-settlement/internal/database/models"
	"syntra-settlement/internal/domain"
	"syntra-settlement/internal/money"
	"syntra-settlement/internal/services/bogo"
	"syntra-settlement/internal/services/coupon"
	pkgerrors "syntra-settlement/pkg/errors"
)

type CouponValidator interface {
	Validate(ctx context.Context, req coupon.ValidateRequest) (coupon.Result, error)
}

type BogoCalculator interface {
	Compute(ctx context.Context, lines []domain.CartLine) (bogo.Result, error)
}

type PointsSpender interface {
	SpendInTx(tx *gorm.DB, userID, orderID int64, amount decimal.Decimal) (*models.PointsEntry, error)
}

type Request struct {
	UserID        *int64            `json:"-"`
	CustomerName  string            `json:"customer_name"`
	CustomerPhone string            `json:"customer_phone"`
	CustomerEmail string            `json:"customer_email"`
	Lines         []domain.CartLine `json:"lines" binding:"required,min=1,dive"`
	CouponCodes   []string          `json:"coupon_codes"`
	PointsToSpend decimal.Decimal   `json:"points_to_spend"`
	DeliveryFee   decimal.Decimal   `json:"delivery_fee"`
	Locale        domain.Locale     `json:"locale"`
	Currency      string            `json:"currency"`
}

func (r Request) userIdentifier() string {
	if r.UserID != nil {
		return strconv.FormatInt(*r.UserID, 10)
	}
	return r.CustomerPhone
}

// Quote is the priced cart before it is persisted.
type Quote struct {
	Subtotal      decimal.Decimal  `json:"subtotal"`
	DiscountTotal decimal.Decimal  `json:"discount_total"`
	DeliveryFee   decimal.Decimal  `json:"delivery_fee"`
	PointsUsed    decimal.Decimal  `json:"points_used"`
	Total         decimal.Decimal  `json:"total"`
	Coupons       []coupon.Success `json:"coupons,omitempty"`
	Bogo          *bogo.Result     `json:"bogo,omitempty"`
}

type Settlement struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Quote
}

type Service struct {
	db      *gorm.DB
	coupons CouponValidator
	bogo    BogoCalculator
	points  PointsSpender
	logger  *zap.Logger
}

func NewService(db *gorm.DB, coupons CouponValidator, bogoCalc BogoCalculator, points PointsSpender, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, coupons: coupons, bogo: bogoCalc, points: points, logger: logger}
}

// NewOrderNumber returns "ORD-" followed by 12 upper-case hex characters.
func NewOrderNumber() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(hex[:12])
}

// Quote prices the cart. Coupon codes are validated in order, each against
// the codes accepted before it; the first failure rejects the cart. Without
// coupon codes the BOGO engine runs instead.
func (s *Service) Quote(ctx context.Context, req Request) (Quote, error) {
	if len(req.Lines) == 0 {
		return Quote{}, &pkgerrors.ErrValidation{Message: "cart is empty"}
	}
	for _, l := range req.Lines {
		if l.Quantity <= 0 || l.UnitPrice.IsNegative() {
			return Quote{}, &pkgerrors.ErrValidation{
				Message: "invalid cart line",
				Fields:  map[string]string{"sku": l.SKU},
			}
		}
	}
	if req.DeliveryFee.IsNegative() {
		return Quote{}, &pkgerrors.ErrValidation{Message: "delivery fee must not be negative"}
	}
	if req.PointsToSpend.IsNegative() {
		return Quote{}, &pkgerrors.ErrValidation{Message: "points to spend must not be negative"}
	}
	if req.PointsToSpend.IsPositive() && req.UserID == nil {
		return Quote{}, &pkgerrors.ErrValidation{Message: "points can only be spent by registered users"}
	}

	q := Quote{
		Subtotal:    domain.Subtotal(req.Lines),
		DeliveryFee: money.Round2(req.DeliveryFee),
		PointsUsed:  money.Round2(req.PointsToSpend),
	}

	if len(req.CouponCodes) > 0 {
		accepted := make([]string, 0, len(req.CouponCodes))
		discount := decimal.Zero
		for _, code := range req.CouponCodes {
			result, err := s.coupons.Validate(ctx, coupon.ValidateRequest{
				Code:           code,
				Lines:          req.Lines,
				Locale:         req.Locale,
				Currency:       req.Currency,
				UserIdentifier: req.userIdentifier(),
				ExistingCodes:  accepted,
			})
			if err != nil {
				return Quote{}, err
			}
			switch r := result.(type) {
			case coupon.Success:
				q.Coupons = append(q.Coupons, r)
				accepted = append(accepted, r.Code)
				discount = discount.Add(r.DiscountAmount)
			case coupon.Failure:
				return Quote{}, &pkgerrors.ErrValidation{
					Message: r.Message,
					Fields:  map[string]string{"coupon_code": r.Code, "reason": string(r.Reason)},
				}
			}
		}
		q.DiscountTotal = decimal.Min(money.Round2(discount), q.Subtotal)
	} else if s.bogo != nil {
		result, err := s.bogo.Compute(ctx, req.Lines)
		if err != nil {
			return Quote{}, err
		}
		if result.BogoDiscountAmount.IsPositive() {
			q.Bogo = &result
			q.DiscountTotal = result.BogoDiscountAmount
		}
	}

	payable := q.Subtotal.Sub(q.DiscountTotal).Add(q.DeliveryFee)
	if q.PointsUsed.GreaterThan(payable) {
		return Quote{}, &pkgerrors.ErrValidation{
			Message: fmt.Sprintf("points to spend exceed the payable amount %s", payable.StringFixed(2)),
		}
	}
	q.Total = money.Round2(payable.Sub(q.PointsUsed))
	return q, nil
}

// Settle prices the cart and stores the order with its items and applied
// coupons. Points are spent in the same transaction, so a failed spend
// leaves no order behind.
func (s *Service) Settle(ctx context.Context, req Request) (Settlement, error) {
	q, err := s.Quote(ctx, req)
	if err != nil {
		return Settlement{}, err
	}

	order := models.Order{
		OrderNumber:   NewOrderNumber(),
		UserID:        req.UserID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Subtotal:      q.Subtotal,
		DiscountTotal: q.DiscountTotal,
		DeliveryFee:   q.DeliveryFee,
		PointsUsed:    q.PointsUsed,
		Total:         q.Total,
	}
	if q.Bogo != nil {
		amount := q.Bogo.BogoDiscountAmount
		order.BogoDiscountAmount = &amount
	}
	for _, l := range req.Lines {
		order.Items = append(order.Items, models.OrderItem{
			ProductSKU: l.SKU,
			ColorName:  l.ColorName,
			Size:       l.Size,
			Quantity:   l.Quantity,
			Price:      l.UnitPrice,
			SalePrice:  l.UnitSalePrice,
		})
	}
	for _, c := range q.Coupons {
		order.AppliedCoupons = append(order.AppliedCoupons, models.AppliedCoupon{
			CouponID:       c.CouponID,
			Code:           c.Code,
			DiscountAmount: c.DiscountAmount,
			DiscountType:   c.DiscountType,
			Stackable:      c.Stackable,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		if q.PointsUsed.IsPositive() {
			if _, err := s.points.SpendInTx(tx, *req.UserID, order.ID, q.PointsUsed); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Settlement{}, err
	}

	s.logger.Info("Order settled",
		zap.String("order_number", order.OrderNumber),
		zap.String("total", q.Total.StringFixed(2)),
		zap.Int("coupons", len(q.Coupons)),
		zap.Bool("bogo", q.Bogo != nil),
	)
	return Settlement{OrderID: order.ID, OrderNumber: order.OrderNumber, Quote: q}, nil
}
