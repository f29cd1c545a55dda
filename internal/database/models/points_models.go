package models

import (
	"time"

	"github.com/shopspring/decimal"

	"syntra-settlement/internal/domain"
)

// PointsEntry is an immutable ledger row. The (order_id, kind) unique index
// allows at most one EARN and one SPEND per order.
type PointsEntry struct {
	ID        int64             `gorm:"primaryKey;autoIncrement"`
	UserID    int64             `gorm:"index;not null"`
	OrderID   int64             `gorm:"not null;uniqueIndex:idx_points_order_kind"`
	Kind      domain.PointsKind `gorm:"type:varchar(8);not null;uniqueIndex:idx_points_order_kind"`
	Delta     decimal.Decimal   `gorm:"type:numeric(12,2);not null"`
	Reason    string            `gorm:"type:varchar(255)"`
	CreatedAt time.Time
}
