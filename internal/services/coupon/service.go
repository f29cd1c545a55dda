// Package coupon validates coupon codes against a cart and computes their
// discount. Validation never writes; usage is recorded separately once the
// order is paid.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"syntra-settlement/internal/database/models"
	"syntra-settlement/internal/domain"
)

// CategoryResolver returns the category slugs of a SKU, nearest first.
type CategoryResolver interface {
	CategoryChain(ctx context.Context, sku string) ([]string, error)
}

type ValidateRequest struct {
	Code           string
	Lines          []domain.CartLine
	Locale         domain.Locale
	Currency       string
	UserIdentifier string
	ExistingCodes  []string
}

type Service struct {
	db         *gorm.DB
	categories CategoryResolver
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(db *gorm.DB, categories CategoryResolver, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         db,
		categories: categories,
		logger:     logger,
		now:        time.Now,
	}
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Validate runs the guard checks in order and, if all pass, computes the
// discount. The first failing guard decides the Failure.
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (Result, error) {
	code := strings.TrimSpace(req.Code)
	if len(req.Lines) == 0 {
		return fail(code, ReasonCartEmpty, req.Locale), nil
	}
	if code == "" {
		return fail(code, ReasonNotFound, req.Locale), nil
	}

	var c models.Coupon
	if err := s.db.WithContext(ctx).Where("LOWER(code) = ?", normalizeCode(code)).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(code, ReasonNotFound, req.Locale), nil
		}
		return nil, fmt.Errorf("failed to load coupon %s: %w", code, err)
	}

	return s.validateCoupon(ctx, c, req)
}

func (s *Service) validateCoupon(ctx context.Context, c models.Coupon, req ValidateRequest) (Result, error) {
	locale := req.Locale
	now := s.now()

	if !c.IsActive {
		return fail(c.Code, ReasonInactive, locale), nil
	}
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return fail(c.Code, ReasonNotStarted, locale), nil
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return fail(c.Code, ReasonExpired, locale), nil
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return fail(c.Code, ReasonUsageLimitReached, locale), nil
	}

	if c.UsageLimitPerUser != nil {
		if strings.TrimSpace(req.UserIdentifier) == "" {
			return fail(c.Code, ReasonUserRequired, locale), nil
		}
		var redemption models.CouponRedemption
		err := s.db.WithContext(ctx).
			Where("coupon_id = ? AND user_identifier = ?", c.ID, strings.TrimSpace(req.UserIdentifier)).
			First(&redemption).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load redemption for coupon %s: %w", c.Code, err)
		}
		if err == nil && redemption.UsageCount >= *c.UsageLimitPerUser {
			return fail(c.Code, ReasonUserLimitReached, locale), nil
		}
	}

	subtotal := domain.Subtotal(req.Lines)
	if subtotal.LessThan(c.MinCartValue) {
		return fail(c.Code, ReasonMinCartValue, locale, formatAmount(c.MinCartValue, req.Currency)), nil
	}

	if failure, ok, err := s.checkStacking(ctx, c, req); err != nil {
		return nil, err
	} else if !ok {
		return failure, nil
	}

	chains, err := s.resolveChains(ctx, c, req.Lines)
	if err != nil {
		return nil, err
	}

	lines, discount := Calculate(c, req.Lines, chains)
	if !discount.IsPositive() || len(lines) == 0 {
		return fail(c.Code, ReasonNotApplicable, locale), nil
	}

	return Success{
		CouponID:       c.ID,
		Code:           c.Code,
		Label:          c.Label(locale),
		DiscountType:   c.DiscountType,
		Stackable:      c.Stackable,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		NewSubtotal:    subtotal.Sub(discount),
		Lines:          lines,
	}, nil
}

func (s *Service) checkStacking(ctx context.Context, c models.Coupon, req ValidateRequest) (Failure, bool, error) {
	var existing []string
	for _, code := range req.ExistingCodes {
		if normalized := normalizeCode(code); normalized != "" {
			existing = append(existing, normalized)
		}
	}
	if len(existing) == 0 {
		return Failure{}, true, nil
	}

	for _, code := range existing {
		if code == normalizeCode(c.Code) {
			return fail(c.Code, ReasonAlreadyApplied, req.Locale), false, nil
		}
	}
	if !c.Stackable {
		return fail(c.Code, ReasonNotStackable, req.Locale), false, nil
	}

	var applied []models.Coupon
	if err := s.db.WithContext(ctx).Where("LOWER(code) IN ?", existing).Find(&applied).Error; err != nil {
		return Failure{}, false, fmt.Errorf("failed to load applied coupons: %w", err)
	}
	if len(applied) < len(existing) {
		s.logger.Warn("Ignoring unknown applied coupon codes",
			zap.String("code", c.Code),
			zap.Strings("existing", existing),
		)
	}
	for _, other := range applied {
		if !other.Stackable {
			return fail(c.Code, ReasonNotStackable, req.Locale), false, nil
		}
	}
	return Failure{}, true, nil
}

func (s *Service) resolveChains(ctx context.Context, c models.Coupon, lines []domain.CartLine) (map[string][]string, error) {
	chains := map[string][]string{}
	if len(c.EligibleCategories) == 0 || s.categories == nil {
		return chains, nil
	}
	for _, sku := range domain.SKUs(lines) {
		chain, err := s.categories.CategoryChain(ctx, sku)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve categories for %s: %w", sku, err)
		}
		chains[sku] = chain
	}
	return chains, nil
}

// EvaluateAutoApply validates every active auto-apply coupon against the
// cart and returns the one with the highest discount, or nil.
func (s *Service) EvaluateAutoApply(ctx context.Context, lines []domain.CartLine, locale domain.Locale, currency, userIdentifier string) (*Success, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	var candidates []models.Coupon
	if err := s.db.WithContext(ctx).
		Where("auto_apply = ? AND is_active = ?", true, true).
		Order("id ASC").
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to list auto-apply coupons: %w", err)
	}

	var best *Success
	for _, c := range candidates {
		result, err := s.validateCoupon(ctx, c, ValidateRequest{
			Code:           c.Code,
			Lines:          lines,
			Locale:         locale,
			Currency:       currency,
			UserIdentifier: userIdentifier,
		})
		if err != nil {
			s.logger.Warn("Auto-apply candidate failed", zap.String("code", c.Code), zap.Error(err))
			continue
		}
		success, ok := result.(Success)
		if !ok {
			continue
		}
		if best == nil || success.DiscountAmount.GreaterThan(best.DiscountAmount) {
			picked := success
			best = &picked
		}
	}
	return best, nil
}
