package points

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"syntra-settlement/internal/database/dbtest"
	"syntra-settlement/internal/database/models"
	"syntra-settlement/internal/domain"
	pkgerrors "syntra-settlement/pkg/errors"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newTestLedger(t *testing.T) (*Ledger, *gorm.DB) {
	t.Helper()
	db := dbtest.New(t)
	return NewLedger(db, nil, d("0.05")), db
}

func createUser(t *testing.T, db *gorm.DB, phone string, balance string) models.User {
	t.Helper()
	user := models.User{Phone: phone, Firstname: "Test", PointsBalance: d(balance)}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createOrder(t *testing.T, db *gorm.DB, number string, userID *int64, items ...models.OrderItem) models.Order {
	t.Helper()
	order := models.Order{OrderNumber: number, UserID: userID, Subtotal: d("0"), Total: d("0"), Items: items}
	require.NoError(t, db.Create(&order).Error)
	return order
}

func balanceOf(t *testing.T, db *gorm.DB, userID int64) decimal.Decimal {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, userID).Error)
	return user.PointsBalance
}

func countEntries(t *testing.T, db *gorm.DB, orderID int64, kind domain.PointsKind) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.PointsEntry{}).Where("order_id = ? AND kind = ?", orderID, kind).Count(&n).Error)
	return n
}

func TestSpend(t *testing.T) {
	ledger, db := newTestLedger(t)
	ctx := context.Background()
	user := createUser(t, db, "0501111111", "100")
	order := createOrder(t, db, "ORD-1", &user.ID)

	entry, err := ledger.Spend(ctx, user.ID, order.ID, d("40"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.PointsSpend, entry.Kind)
	assert.Equal(t, "-40", entry.Delta.String())
	assert.Equal(t, "60", balanceOf(t, db, user.ID).String())
}

func TestSpend_Idempotent(t *testing.T) {
	ledger, db := newTestLedger(t)
	ctx := context.Background()
	user := createUser(t, db, "0501111111", "100")
	order := createOrder(t, db, "ORD-1", &user.ID)

	first, err := ledger.Spend(ctx, user.ID, order.ID, d("40"))
	require.NoError(t, err)
	second, err := ledger.Spend(ctx, user.ID, order.ID, d("40"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), countEntries(t, db, order.ID, domain.PointsSpend))
	assert.Equal(t, "60", balanceOf(t, db, user.ID).String())
}

func TestSpend_InsufficientPoints(t *testing.T) {
	ledger, db := newTestLedger(t)
	user := createUser(t, db, "0501111111", "30")
	order := createOrder(t, db, "ORD-1", &user.ID)

	_, err := ledger.Spend(context.Background(), user.ID, order.ID, d("50"))

	var insufficient *pkgerrors.ErrInsufficientPoints
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, user.ID, insufficient.UserID)
	assert.Equal(t, "30", balanceOf(t, db, user.ID).String())
	assert.Zero(t, countEntries(t, db, order.ID, domain.PointsSpend))
}

func TestSpend_Validation(t *testing.T) {
	ledger, db := newTestLedger(t)
	user := createUser(t, db, "0501111111", "30")

	_, err := ledger.Spend(context.Background(), user.ID, 1, d("0"))
	var validation *pkgerrors.ErrValidation
	assert.True(t, errors.As(err, &validation))

	_, err = ledger.Spend(context.Background(), 9999, 1, d("5"))
	var notFound *pkgerrors.ErrNotFound
	assert.True(t, errors.As(err, &notFound))
}

func TestSpend_RequiresOrderOwner(t *testing.T) {
	ledger, db := newTestLedger(t)
	ctx := context.Background()
	alice := createUser(t, db, "0501111111", "100")
	bob := createUser(t, db, "0502222222", "100")
	bobsOrder := createOrder(t, db, "ORD-B", &bob.ID)
	guestOrder := createOrder(t, db, "ORD-G", nil)

	for name, orderID := range map[string]int64{
		"other user's order": bobsOrder.ID,
		"guest order":        guestOrder.ID,
		"missing order":      424242,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ledger.Spend(ctx, alice.ID, orderID, d("0.01"))
			var notFound *pkgerrors.ErrNotFound
			assert.True(t, errors.As(err, &notFound), "unexpected error: %v", err)
		})
	}
	assert.Zero(t, countEntries(t, db, bobsOrder.ID, domain.PointsSpend))
	assert.Equal(t, "100", balanceOf(t, db, alice.ID).String())

	entry, err := ledger.Spend(ctx, bob.ID, bobsOrder.ID, d("50"))
	require.NoError(t, err)
	assert.Equal(t, bob.ID, entry.UserID)
	assert.Equal(t, "-50", entry.Delta.String())
	assert.Equal(t, "50", balanceOf(t, db, bob.ID).String())
}

func TestSpend_EntryOfAnotherUserConflicts(t *testing.T) {
	ledger, db := newTestLedger(t)
	alice := createUser(t, db, "0501111111", "100")
	bob := createUser(t, db, "0502222222", "100")
	order := createOrder(t, db, "ORD-B", &bob.ID)
	require.NoError(t, db.Create(&models.PointsEntry{
		UserID: alice.ID, OrderID: order.ID, Kind: domain.PointsSpend, Delta: d("-0.01"),
	}).Error)

	_, err := ledger.Spend(context.Background(), bob.ID, order.ID, d("50"))

	var conflict *pkgerrors.ErrConflict
	require.True(t, errors.As(err, &conflict), "unexpected error: %v", err)
	assert.Equal(t, "100", balanceOf(t, db, bob.ID).String())
}

func TestSpend_ConcurrentOnlyOneFits(t *testing.T) {
	ledger, db := newTestLedger(t)
	user := createUser(t, db, "0501111111", "100")
	orderA := createOrder(t, db, "ORD-A", &user.ID)
	orderB := createOrder(t, db, "ORD-B", &user.ID)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, orderID := range []int64{orderA.ID, orderB.ID} {
		wg.Add(1)
		go func(i int, orderID int64) {
			defer wg.Done()
			_, errs[i] = ledger.Spend(context.Background(), user.ID, orderID, d("80"))
		}(i, orderID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *pkgerrors.ErrInsufficientPoints
		assert.True(t, errors.As(err, &insufficient), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, "20", balanceOf(t, db, user.ID).String())
}

func TestSpend_ConcurrentDuplicatesChargeOnce(t *testing.T) {
	ledger, db := newTestLedger(t)
	user := createUser(t, db, "0501111111", "100")
	order := createOrder(t, db, "ORD-1", &user.ID)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Spend(context.Background(), user.ID, order.ID, d("30"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), countEntries(t, db, order.ID, domain.PointsSpend))
	assert.Equal(t, "70", balanceOf(t, db, user.ID).String())
}

func TestEarn(t *testing.T) {
	ledger, db := newTestLedger(t)
	ctx := context.Background()
	user := createUser(t, db, "0501111111", "10")
	sale := d("80")
	order := createOrder(t, db, "ORD-1", &user.ID,
		models.OrderItem{ProductSKU: "A", Quantity: 2, Price: d("100"), SalePrice: &sale},
		models.OrderItem{ProductSKU: "B", Quantity: 1, Price: d("45.50")},
	)

	entry, err := ledger.Earn(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	// (160 + 45.50) * 0.05 = 10.275
	assert.Equal(t, "10.28", entry.Delta.String())
	assert.Equal(t, "20.28", balanceOf(t, db, user.ID).String())

	again, err := ledger.Earn(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, again.ID)
	assert.Equal(t, int64(1), countEntries(t, db, order.ID, domain.PointsEarn))
	assert.Equal(t, "20.28", balanceOf(t, db, user.ID).String())
}

func TestEarn_GuestOrder(t *testing.T) {
	ledger, db := newTestLedger(t)
	order := createOrder(t, db, "ORD-1", nil, models.OrderItem{ProductSKU: "A", Quantity: 1, Price: d("100")})

	entry, err := ledger.Earn(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestEarn_UnknownOrder(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Earn(context.Background(), 404)
	var notFound *pkgerrors.ErrNotFound
	assert.True(t, errors.As(err, &notFound))
}

func TestSyncFromExternal(t *testing.T) {
	ledger, db := newTestLedger(t)
	ctx := context.Background()
	user := createUser(t, db, "0501111111", "100")
	order := createOrder(t, db, "ORD-1", &user.ID)

	in := SyncInput{OrderID: order.ID, UserID: user.ID, PointsBefore: d("100"), PointsAfter: d("85"), PointsUsed: d("20")}

	entry, err := ledger.SyncFromExternal(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "5", entry.Delta.String())
	assert.Equal(t, "85", balanceOf(t, db, user.ID).String())

	again, err := ledger.SyncFromExternal(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, again.ID)
	assert.Equal(t, int64(1), countEntries(t, db, order.ID, domain.PointsEarn))
	assert.Equal(t, "85", balanceOf(t, db, user.ID).String())
}

func TestSyncFromExternal_NegativeDeltaIsClamped(t *testing.T) {
	ledger, db := newTestLedger(t)
	user := createUser(t, db, "0501111111", "100")
	order := createOrder(t, db, "ORD-1", &user.ID)

	// Points expired on the loyalty side during the purchase.
	entry, err := ledger.SyncFromExternal(context.Background(), SyncInput{
		OrderID: order.ID, UserID: user.ID, PointsBefore: d("100"), PointsAfter: d("40"), PointsUsed: d("10"),
	})
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Zero(t, countEntries(t, db, order.ID, domain.PointsEarn))
	assert.Equal(t, "40", balanceOf(t, db, user.ID).String())
}

func TestBalance(t *testing.T) {
	ledger, db := newTestLedger(t)
	user := createUser(t, db, "0501111111", "12.5")

	balance, err := ledger.Balance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "12.5", balance.String())
}
