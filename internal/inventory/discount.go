package inventory

import (
	"context"

	"github.com/stockledger/stockledger/internal/domain"
)

// DiscountSource provides the configured discount rules.
type DiscountSource interface {
	ListDiscounts(ctx context.Context) ([]domain.Discount, error)
}

// BestDiscount returns the highest percentage among rules applicable to a
// purchase of qty units of a product in category by a customer in group.
// A nil group means the customer group is unknown, so only rules without a
// group filter apply. Returns 0 when nothing matches.
func BestDiscount(rules []domain.Discount, category string, group *string, qty int) float64 {
	best := 0.0
	for i := range rules {
		r := &rules[i]
		if r.Category != nil && *r.Category != category {
			continue
		}
		if r.CustomerGroup != nil && (group == nil || *r.CustomerGroup != *group) {
			continue
		}
		if r.MinQty > qty {
			continue
		}
		if r.Percent > best {
			best = r.Percent
		}
	}
	return best
}

// DiscountResolver resolves the best discount from a rule source.
type DiscountResolver struct {
	src DiscountSource
}

func NewDiscountResolver(src DiscountSource) *DiscountResolver {
	return &DiscountResolver{src: src}
}

func (r *DiscountResolver) Resolve(ctx context.Context, category string, group *string, qty int) (float64, error) {
	rules, err := r.src.ListDiscounts(ctx)
	if err != nil {
		return 0, err
	}
	return BestDiscount(rules, category, group, qty), nil
}
