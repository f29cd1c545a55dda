// Package bogo computes the automatic "two for a group price" discount over
// a priced cart.
package bogo

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"syntra-settlement/internal/catalog"
	"syntra-settlement/internal/domain"
	"syntra-settlement/internal/money"
)

type PairKind string

const (
	SameGroup  PairKind = "same-group"
	CrossGroup PairKind = "cross-group"
)

var two = decimal.NewFromInt(2)

// Unit is one eligible item unit expanded from a cart line.
type Unit struct {
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	GroupID   int64           `json:"group_id"`
	PairPrice decimal.Decimal `json:"pair_price"`
}

type Pair struct {
	Kind      PairKind        `json:"kind"`
	GroupA    int64           `json:"group_a"`
	GroupB    int64           `json:"group_b"`
	PairPrice decimal.Decimal `json:"pair_price"`
	MemberA   Unit            `json:"member_a"`
	MemberB   Unit            `json:"member_b"`
	// Charged is PairPrice capped at the two units' regular prices. It is
	// below the listed PairPrice when the pair costs less than the deal.
	Charged decimal.Decimal `json:"charged"`
}

func newPair(kind PairKind, price decimal.Decimal, a, b Unit) Pair {
	regular := a.UnitPrice.Add(b.UnitPrice)
	return Pair{
		Kind:      kind,
		GroupA:    a.GroupID,
		GroupB:    b.GroupID,
		PairPrice: price,
		MemberA:   a,
		MemberB:   b,
		Charged:   decimal.Min(price, regular),
	}
}

type Result struct {
	BogoDiscountAmount      decimal.Decimal `json:"bogo_discount_amount"`
	RegularTotalEligible    decimal.Decimal `json:"regular_total_eligible"`
	DiscountedTotalEligible decimal.Decimal `json:"discounted_total_eligible"`
	HasLeftover             bool            `json:"has_leftover"`
	Pairs                   []Pair          `json:"pairs"`
}

func emptyResult() Result {
	return Result{
		BogoDiscountAmount:      decimal.Zero,
		RegularTotalEligible:    decimal.Zero,
		DiscountedTotalEligible: decimal.Zero,
		Pairs:                   []Pair{},
	}
}

// ExpandUnits turns cart lines into one Unit per quantity. Lines without a
// group, groups with a non-positive pair price and units with a
// non-positive effective price are skipped.
func ExpandUnits(lines []domain.CartLine, groups map[string]catalog.GroupInfo) []Unit {
	var units []Unit
	for _, line := range lines {
		group, ok := groups[line.SKU]
		if !ok || !group.PairPrice.IsPositive() {
			continue
		}
		price := line.EffectiveUnitPrice()
		if !price.IsPositive() {
			continue
		}
		for i := 0; i < line.Quantity; i++ {
			units = append(units, Unit{
				SKU:       line.SKU,
				UnitPrice: price,
				GroupID:   group.GroupID,
				PairPrice: group.PairPrice,
			})
		}
	}
	return units
}

// Compute pairs units first within their own group, then across groups, and
// totals the discount. It does not modify units.
func Compute(units []Unit) Result {
	result := emptyResult()
	if len(units) < 2 {
		result.HasLeftover = len(units) == 1
		return result
	}

	buckets := map[int64][]Unit{}
	var groupIDs []int64
	for _, u := range units {
		if _, ok := buckets[u.GroupID]; !ok {
			groupIDs = append(groupIDs, u.GroupID)
		}
		buckets[u.GroupID] = append(buckets[u.GroupID], u)
	}
	sort.Slice(groupIDs, func(i, j int) bool { return groupIDs[i] < groupIDs[j] })

	var leftovers []Unit
	for _, id := range groupIDs {
		bucket := buckets[id]
		sort.SliceStable(bucket, func(i, j int) bool {
			if !bucket[i].UnitPrice.Equal(bucket[j].UnitPrice) {
				return bucket[i].UnitPrice.GreaterThan(bucket[j].UnitPrice)
			}
			return bucket[i].SKU < bucket[j].SKU
		})

		i := 0
		for ; i+1 < len(bucket); i += 2 {
			result.Pairs = append(result.Pairs, newPair(SameGroup, bucket[i].PairPrice, bucket[i], bucket[i+1]))
		}
		if i < len(bucket) {
			leftovers = append(leftovers, bucket[i])
		}
	}

	sort.SliceStable(leftovers, func(i, j int) bool {
		a, b := leftovers[i], leftovers[j]
		if !a.PairPrice.Equal(b.PairPrice) {
			return a.PairPrice.LessThan(b.PairPrice)
		}
		if !a.UnitPrice.Equal(b.UnitPrice) {
			return a.UnitPrice.LessThan(b.UnitPrice)
		}
		return a.SKU < b.SKU
	})

	i, j := 0, len(leftovers)-1
	for i < j {
		a, b := leftovers[i], leftovers[j]
		price := money.Round2(a.PairPrice.Add(b.PairPrice).Div(two))
		result.Pairs = append(result.Pairs, newPair(CrossGroup, price, a, b))
		i++
		j--
	}
	result.HasLeftover = i == j

	regular := decimal.Zero
	discounted := decimal.Zero
	for _, p := range result.Pairs {
		regular = regular.Add(p.MemberA.UnitPrice).Add(p.MemberB.UnitPrice)
		discounted = discounted.Add(p.Charged)
	}
	result.RegularTotalEligible = money.Round2(regular)
	result.DiscountedTotalEligible = money.Round2(discounted)
	result.BogoDiscountAmount = money.Round2(money.NonNegative(regular.Sub(discounted)))
	return result
}

// GroupResolver resolves discount-group membership for SKUs.
type GroupResolver interface {
	GroupsForSKUs(ctx context.Context, skus []string) (map[string]catalog.GroupInfo, error)
}

type Engine struct {
	groups GroupResolver
	logger *zap.Logger
}

func NewEngine(groups GroupResolver, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{groups: groups, logger: logger}
}

// Compute resolves group membership for the cart and runs the pairing pass.
func (e *Engine) Compute(ctx context.Context, lines []domain.CartLine) (Result, error) {
	if len(lines) == 0 {
		return emptyResult(), nil
	}

	groups, err := e.groups.GroupsForSKUs(ctx, domain.SKUs(lines))
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve discount groups: %w", err)
	}

	result := Compute(ExpandUnits(lines, groups))
	if result.BogoDiscountAmount.IsPositive() {
		e.logger.Debug("BOGO pairs computed",
			zap.Int("pairs", len(result.Pairs)),
			zap.String("discount", result.BogoDiscountAmount.StringFixed(2)),
		)
	}
	return result, nil
}
