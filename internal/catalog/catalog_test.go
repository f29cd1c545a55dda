package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"syntra-settlement/config"
	"syntra-settlement/internal/database/dbtest"
	"syntra-settlement/internal/database/models"
)

func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()

	shoes := models.Category{Slug: "shoes", Name: "Shoes", IsActive: true}
	require.NoError(t, db.Create(&shoes).Error)
	sneakers := models.Category{Slug: "sneakers", Name: "Sneakers", ParentID: &shoes.ID, IsActive: true}
	require.NoError(t, db.Create(&sneakers).Error)

	group := models.DiscountGroup{Name: "Two for 150", PairPrice: decimal.NewFromInt(150), IsActive: true}
	require.NoError(t, db.Create(&group).Error)

	products := []models.Product{
		{SKU: "A", Name: "Runner", Price: decimal.NewFromInt(100), CategoryID: &sneakers.ID, DiscountGroupID: &group.ID, IsActive: true},
		{SKU: "B", Name: "Walker", Price: decimal.NewFromInt(80), CategoryID: &shoes.ID, DiscountGroupID: &group.ID, IsActive: true},
		{SKU: "C", Name: "Socks", Price: decimal.NewFromInt(10), IsActive: true},
	}
	require.NoError(t, db.Create(&products).Error)
}

func newTestStore(t *testing.T) (*Store, *gorm.DB, *miniredis.Miniredis) {
	t.Helper()
	db := dbtest.New(t)
	seedCatalog(t, db)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewStore(db, rdb, nil, config.CatalogConfig{CacheTTL: time.Minute, LookupTimeout: time.Second})
	return store, db, mr
}

func TestGroupsForSKUs(t *testing.T) {
	store, _, _ := newTestStore(t)

	groups, err := store.GroupsForSKUs(context.Background(), []string{"A", "B", "C", "missing"})
	require.NoError(t, err)

	require.Len(t, groups, 2)
	assert.Equal(t, groups["A"].GroupID, groups["B"].GroupID)
	assert.True(t, groups["A"].PairPrice.Equal(decimal.NewFromInt(150)))
	_, ok := groups["C"]
	assert.False(t, ok)
}

func TestGroupsForSKUs_ServesFromCache(t *testing.T) {
	store, db, mr := newTestStore(t)
	ctx := context.Background()

	_, err := store.GroupsForSKUs(ctx, []string{"A", "C"})
	require.NoError(t, err)
	assert.True(t, mr.Exists(GROUP_CACHE_PREFIX+"A"))
	assert.True(t, mr.Exists(GROUP_CACHE_PREFIX+"C"))

	require.NoError(t, db.Model(&models.DiscountGroup{}).Where("1 = 1").Update("pair_price", 99).Error)

	groups, err := store.GroupsForSKUs(ctx, []string{"A"})
	require.NoError(t, err)
	assert.True(t, groups["A"].PairPrice.Equal(decimal.NewFromInt(150)), "cached value expected")

	store.Invalidate(ctx, "A")
	groups, err = store.GroupsForSKUs(ctx, []string{"A"})
	require.NoError(t, err)
	assert.True(t, groups["A"].PairPrice.Equal(decimal.NewFromInt(99)))
}

func TestCategoryChain(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	chain, err := store.CategoryChain(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"sneakers", "shoes"}, chain)

	chain, err = store.CategoryChain(ctx, "C")
	require.NoError(t, err)
	assert.Empty(t, chain)

	chain, err = store.CategoryChain(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestStoreWithoutRedis(t *testing.T) {
	db := dbtest.New(t)
	seedCatalog(t, db)
	store := NewStore(db, nil, nil, config.CatalogConfig{})

	groups, err := store.GroupsForSKUs(context.Background(), []string{"B"})
	require.NoError(t, err)
	assert.Contains(t, groups, "B")
}
