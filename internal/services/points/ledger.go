// Package points keeps the per-order loyalty ledger and the users' cached
// balances. At most one EARN and one SPEND entry exist per order; the unique
// index on (order_id, kind) is the fence against concurrent duplicates.
package points

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"syntra-settlement/internal/database"
	"syntra-settlement/internal/database/models"
	"syntra-settlement/internal/domain"
	"syntra-settlement/internal/money"
	pkgerrors "syntra-settlement/pkg/errors"
)

var defaultEarnRate = decimal.RequireFromString("0.05")

type Ledger struct {
	db       *gorm.DB
	logger   *zap.Logger
	earnRate decimal.Decimal
}

func NewLedger(db *gorm.DB, logger *zap.Logger, earnRate decimal.Decimal) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !earnRate.IsPositive() {
		earnRate = defaultEarnRate
	}
	return &Ledger{db: db, logger: logger, earnRate: earnRate}
}

func findEntry(tx *gorm.DB, orderID int64, kind domain.PointsKind) (*models.PointsEntry, error) {
	var entry models.PointsEntry
	err := tx.Where("order_id = ? AND kind = ?", orderID, kind).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s entry for order %d: %w", kind, orderID, err)
	}
	return &entry, nil
}

// Spend charges points against a user for an order the user owns. A repeated
// call for the same order returns the existing entry without charging again.
func (l *Ledger) Spend(ctx context.Context, userID, orderID int64, amount decimal.Decimal) (*models.PointsEntry, error) {
	var entry *models.PointsEntry
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = l.SpendInTx(tx, userID, orderID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// SpendInTx is Spend inside a caller-owned transaction.
func (l *Ledger) SpendInTx(tx *gorm.DB, userID, orderID int64, amount decimal.Decimal) (*models.PointsEntry, error) {
	amount = money.Round2(amount)
	if !amount.IsPositive() {
		return nil, &pkgerrors.ErrValidation{Message: "points to spend must be positive"}
	}

	// Another user's order is reported as missing.
	var order models.Order
	if err := tx.Select("id", "user_id").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &pkgerrors.ErrNotFound{Resource: "order", ID: fmt.Sprint(orderID)}
		}
		return nil, fmt.Errorf("failed to load order %d: %w", orderID, err)
	}
	if order.UserID == nil || *order.UserID != userID {
		return nil, &pkgerrors.ErrNotFound{Resource: "order", ID: fmt.Sprint(orderID)}
	}

	existing, err := findEntry(tx, orderID, domain.PointsSpend)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return ownEntry(existing, userID)
	}

	entry := models.PointsEntry{
		UserID:  userID,
		OrderID: orderID,
		Kind:    domain.PointsSpend,
		Delta:   amount.Neg(),
		Reason:  fmt.Sprintf("Redeemed on order %d", orderID),
	}

	// The savepoint undoes the decrement if a concurrent spend for the same
	// order won the insert.
	err = tx.Transaction(func(sp *gorm.DB) error {
		res := sp.Model(&models.User{}).
			Where("id = ? AND points_balance >= ?", userID, amount).
			UpdateColumn("points_balance", gorm.Expr("points_balance - ?", amount))
		if res.Error != nil {
			return fmt.Errorf("failed to decrement balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := sp.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to load user %d: %w", userID, err)
			}
			if count == 0 {
				return &pkgerrors.ErrNotFound{Resource: "user", ID: fmt.Sprint(userID)}
			}
			return &pkgerrors.ErrInsufficientPoints{UserID: userID, Requested: amount}
		}
		return sp.Create(&entry).Error
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			l.logger.Info("Concurrent points spend detected, returning existing entry", zap.Int64("order_id", orderID))
			existing, err := findEntry(tx, orderID, domain.PointsSpend)
			if err != nil || existing == nil {
				return existing, err
			}
			return ownEntry(existing, userID)
		}
		return nil, err
	}

	l.logger.Info("Points spent",
		zap.Int64("user_id", userID),
		zap.Int64("order_id", orderID),
		zap.String("amount", amount.StringFixed(2)),
	)
	return &entry, nil
}

// ownEntry returns the order's existing SPEND entry when it was charged to
// userID.
func ownEntry(existing *models.PointsEntry, userID int64) (*models.PointsEntry, error) {
	if existing.UserID != userID {
		return nil, &pkgerrors.ErrConflict{Message: fmt.Sprintf("points for order %d were spent by another user", existing.OrderID)}
	}
	return existing, nil
}

// Earn credits the order's owner with earnRate of the order's item totals.
// Guest orders earn nothing and return nil.
func (l *Ledger) Earn(ctx context.Context, orderID int64) (*models.PointsEntry, error) {
	var entry *models.PointsEntry
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findEntry(tx, orderID, domain.PointsEarn)
		if err != nil || existing != nil {
			entry = existing
			return err
		}

		var order models.Order
		if err := tx.Preload("Items").First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &pkgerrors.ErrNotFound{Resource: "order", ID: fmt.Sprint(orderID)}
			}
			return fmt.Errorf("failed to load order %d: %w", orderID, err)
		}
		if order.UserID == nil {
			return nil
		}

		itemsTotal := decimal.Zero
		for _, item := range order.Items {
			price := money.EffectivePrice(item.Price, item.SalePrice)
			itemsTotal = itemsTotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		earned := money.Round2(itemsTotal.Mul(l.earnRate))
		if !earned.IsPositive() {
			return nil
		}

		entry, err = l.credit(tx, *order.UserID, orderID, earned, fmt.Sprintf("Earned on order %s", order.OrderNumber), true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

type SyncInput struct {
	OrderID      int64
	UserID       int64
	PointsBefore decimal.Decimal
	PointsAfter  decimal.Decimal
	PointsUsed   decimal.Decimal
}

// SyncFromExternal records the points an order earned according to the
// loyalty system and overwrites the cached balance with PointsAfter. The
// ledger delta is floored at zero; the balance is not.
func (l *Ledger) SyncFromExternal(ctx context.Context, in SyncInput) (*models.PointsEntry, error) {
	rawEarned := in.PointsAfter.Sub(in.PointsBefore).Add(in.PointsUsed)
	earned := money.Round2(money.NonNegative(rawEarned))

	var entry *models.PointsEntry
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findEntry(tx, in.OrderID, domain.PointsEarn)
		if err != nil {
			return err
		}
		entry = existing

		if existing == nil && earned.IsPositive() {
			entry, err = l.credit(tx, in.UserID, in.OrderID, earned, "Synced from loyalty system", false)
			if err != nil {
				return err
			}
		}

		res := tx.Model(&models.User{}).Where("id = ?", in.UserID).
			UpdateColumn("points_balance", money.Round2(in.PointsAfter))
		if res.Error != nil {
			return fmt.Errorf("failed to set balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &pkgerrors.ErrNotFound{Resource: "user", ID: fmt.Sprint(in.UserID)}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Points synced from loyalty system",
		zap.Int64("user_id", in.UserID),
		zap.Int64("order_id", in.OrderID),
		zap.String("earned", earned.StringFixed(2)),
		zap.String("raw_earned", rawEarned.StringFixed(2)),
		zap.String("balance", in.PointsAfter.StringFixed(2)),
	)
	return entry, nil
}

// credit inserts an EARN entry inside a savepoint. When bumpBalance is set
// the user's balance is incremented in the same savepoint. A concurrent
// duplicate is resolved by returning the winner's entry.
func (l *Ledger) credit(tx *gorm.DB, userID, orderID int64, amount decimal.Decimal, reason string, bumpBalance bool) (*models.PointsEntry, error) {
	entry := models.PointsEntry{
		UserID:  userID,
		OrderID: orderID,
		Kind:    domain.PointsEarn,
		Delta:   amount,
		Reason:  reason,
	}

	err := tx.Transaction(func(sp *gorm.DB) error {
		if err := sp.Create(&entry).Error; err != nil {
			return err
		}
		if !bumpBalance {
			return nil
		}
		res := sp.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumn("points_balance", gorm.Expr("points_balance + ?", amount))
		if res.Error != nil {
			return fmt.Errorf("failed to increment balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &pkgerrors.ErrNotFound{Resource: "user", ID: fmt.Sprint(userID)}
		}
		return nil
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return findEntry(tx, orderID, domain.PointsEarn)
		}
		return nil, err
	}

	l.logger.Info("Points earned",
		zap.Int64("user_id", userID),
		zap.Int64("order_id", orderID),
		zap.String("amount", amount.StringFixed(2)),
	)
	return &entry, nil
}

// Balance returns the cached balance of a user.
func (l *Ledger) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var user models.User
	if err := l.db.WithContext(ctx).Select("id", "points_balance").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, &pkgerrors.ErrNotFound{Resource: "user", ID: fmt.Sprint(userID)}
		}
		return decimal.Zero, err
	}
	return user.PointsBalance, nil
}
