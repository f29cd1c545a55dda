// Package catalog resolves the read-only product facts the discount engines
// need: discount-group membership and category ancestry per SKU.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"syntra-settlement/config"
	"syntra-settlement/internal/database/models"
)

const (
	GROUP_CACHE_PREFIX = "catalog:group:"
	CHAIN_CACHE_PREFIX = "catalog:chain:"

	maxCategoryDepth = 16
)

// GroupInfo is the discount group a SKU belongs to.
type GroupInfo struct {
	GroupID   int64           `json:"group_id"`
	PairPrice decimal.Decimal `json:"pair_price"`
}

// Store reads the catalog through gorm with an optional Redis read-through
// cache. A nil Redis client disables caching.
type Store struct {
	db            *gorm.DB
	redis         *redis.Client
	logger        *zap.Logger
	ttl           time.Duration
	lookupTimeout time.Duration
}

func NewStore(db *gorm.DB, redisClient *redis.Client, logger *zap.Logger, cfg config.CatalogConfig) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 3 * time.Second
	}
	return &Store{
		db:            db,
		redis:         redisClient,
		logger:        logger,
		ttl:           cfg.CacheTTL,
		lookupTimeout: cfg.LookupTimeout,
	}
}

// GroupsForSKUs returns the active discount group of every SKU that has one.
// SKUs without a group are absent from the result.
func (s *Store) GroupsForSKUs(ctx context.Context, skus []string) (map[string]GroupInfo, error) {
	result := make(map[string]GroupInfo, len(skus))
	if len(skus) == 0 {
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	misses := skus
	if s.redis != nil {
		misses = misses[:0:0]
		for _, sku := range skus {
			val, err := s.redis.Get(ctx, GROUP_CACHE_PREFIX+sku).Result()
			if err == nil {
				var cached GroupInfo
				if err := json.Unmarshal([]byte(val), &cached); err == nil {
					if cached.GroupID != 0 {
						result[sku] = cached
					}
					continue
				}
			} else if err != redis.Nil {
				s.logger.Warn("Redis error on GET, falling back to DB", zap.String("sku", sku), zap.Error(err))
			}
			misses = append(misses, sku)
		}
	}
	if len(misses) == 0 {
		return result, nil
	}

	var rows []struct {
		SKU       string
		GroupID   int64
		PairPrice decimal.Decimal
	}
	err := s.db.WithContext(ctx).
		Table("products").
		Select("products.sku AS sku, discount_groups.id AS group_id, discount_groups.pair_price AS pair_price").
		Joins("JOIN discount_groups ON discount_groups.id = products.discount_group_id").
		Where("products.sku IN ? AND products.is_active = ? AND discount_groups.is_active = ?", misses, true, true).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve discount groups: %w", err)
	}

	found := make(map[string]GroupInfo, len(rows))
	for _, row := range rows {
		found[row.SKU] = GroupInfo{GroupID: row.GroupID, PairPrice: row.PairPrice}
		result[row.SKU] = found[row.SKU]
	}

	for _, sku := range misses {
		// Non-members are cached as a zero group so repeat lookups skip the DB.
		s.cache(ctx, GROUP_CACHE_PREFIX+sku, found[sku])
	}

	return result, nil
}

// CategoryChain returns the slugs of the SKU's category and all its
// ancestors, nearest first. Unknown SKUs have an empty chain.
func (s *Store) CategoryChain(ctx context.Context, sku string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	cacheKey := CHAIN_CACHE_PREFIX + sku
	if s.redis != nil {
		val, err := s.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var chain []string
			if err := json.Unmarshal([]byte(val), &chain); err == nil {
				return chain, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("Redis error on GET, falling back to DB", zap.String("sku", sku), zap.Error(err))
		}
	}

	var product models.Product
	if err := s.db.WithContext(ctx).Select("id", "category_id").Where("sku = ?", sku).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to load product %s: %w", sku, err)
	}

	chain := []string{}
	seen := map[int64]bool{}
	next := product.CategoryID
	for next != nil && len(chain) < maxCategoryDepth && !seen[*next] {
		seen[*next] = true
		var category models.Category
		if err := s.db.WithContext(ctx).First(&category, *next).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return nil, fmt.Errorf("failed to load category %d: %w", *next, err)
		}
		chain = append(chain, category.Slug)
		next = category.ParentID
	}

	s.cache(ctx, cacheKey, chain)
	return chain, nil
}

// Invalidate drops cached lookups for the given SKUs.
func (s *Store) Invalidate(ctx context.Context, skus ...string) {
	if s.redis == nil || len(skus) == 0 {
		return
	}
	keys := make([]string, 0, len(skus)*2)
	for _, sku := range skus {
		keys = append(keys, GROUP_CACHE_PREFIX+sku, CHAIN_CACHE_PREFIX+sku)
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("Failed to invalidate catalog cache", zap.Error(err))
	}
}

func (s *Store) cache(ctx context.Context, key string, value interface{}) {
	if s.redis == nil {
		return
	}
	jsonData, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, jsonData, s.ttl).Err(); err != nil {
		s.logger.Warn("Failed to set cache", zap.String("key", key), zap.Error(err))
	}
}
