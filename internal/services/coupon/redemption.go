package coupon

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"syntra-settlement/internal/database/models"
)

// RecordRedemptions books the usage of every coupon applied to a paid order.
// The order's coupons_redeemed_at claim makes repeated calls no-ops. It
// returns the number of coupons recorded by this call.
func (s *Service) RecordRedemptions(ctx context.Context, orderNumber string) (int, error) {
	recorded := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()

		claim := tx.Model(&models.Order{}).
			Where("order_number = ? AND coupons_redeemed_at IS NULL", orderNumber).
			Update("coupons_redeemed_at", now)
		if claim.Error != nil {
			return fmt.Errorf("failed to claim coupon redemption: %w", claim.Error)
		}
		if claim.RowsAffected == 0 {
			return nil
		}

		var order models.Order
		if err := tx.Preload("AppliedCoupons").Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
			return fmt.Errorf("failed to load order %s: %w", orderNumber, err)
		}

		identifier := order.UserIdentifier()
		for _, applied := range order.AppliedCoupons {
			if identifier != "" {
				redemption := models.CouponRedemption{
					CouponID:       applied.CouponID,
					UserIdentifier: identifier,
					UsageCount:     1,
					LastUsedAt:     now,
				}
				err := tx.Clauses(clause.OnConflict{
					Columns: []clause.Column{{Name: "coupon_id"}, {Name: "user_identifier"}},
					DoUpdates: clause.Assignments(map[string]interface{}{
						"usage_count":  gorm.Expr("coupon_redemptions.usage_count + 1"),
						"last_used_at": now,
					}),
				}).Create(&redemption).Error
				if err != nil {
					return fmt.Errorf("failed to upsert redemption for coupon %d: %w", applied.CouponID, err)
				}
			}

			if err := tx.Model(&models.Coupon{}).
				Where("id = ?", applied.CouponID).
				UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error; err != nil {
				return fmt.Errorf("failed to bump usage of coupon %d: %w", applied.CouponID, err)
			}
			recorded++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if recorded > 0 {
		s.logger.Info("Coupon redemptions recorded",
			zap.String("order_number", orderNumber),
			zap.Int("coupons", recorded),
		)
	}
	return recorded, nil
}
