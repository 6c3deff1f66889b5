package pricing

import (
	"fmt"
	"math"

	"pawplan/internal/domain"
)

type WeightClass string

const (
	ClassSmall  WeightClass = "small"  // under 15 lb
	ClassMedium WeightClass = "medium" // 15 to 30 lb
	ClassLarge  WeightClass = "large"  // over 30 up to 60 lb
	ClassXLarge WeightClass = "xlarge" // over 60 lb
)

// Tier is one row of the weight-class price table. MaxLb is inclusive except for
// the small class, whose bound is exclusive (<15 lb). The last tier has MaxLb = +Inf.
type Tier struct {
	Class            WeightClass `yaml:"class"`
	MaxLb            float64     `yaml:"max_lb"`
	BasePricePer100g float64     `yaml:"base_price_per_100g"`
}

// TierTable is ordered by MaxLb ascending.
type TierTable []Tier

// DefaultTiers is the published price list, USD per 100 g.
func DefaultTiers() TierTable {
	return TierTable{
		{Class: ClassSmall, MaxLb: 15, BasePricePer100g: 2.50},
		{Class: ClassMedium, MaxLb: 30, BasePricePer100g: 2.25},
		{Class: ClassLarge, MaxLb: 60, BasePricePer100g: 2.00},
		{Class: ClassXLarge, MaxLb: math.Inf(1), BasePricePer100g: 1.85},
	}
}

// DefaultTherapeuticSurcharge is added per 100 g to therapeutic recipes.
const DefaultTherapeuticSurcharge = 0.50

func (t TierTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: empty tier table", domain.ErrInvalidInput)
	}
	prev := 0.0
	for i, tier := range t {
		if tier.BasePricePer100g <= 0 {
			return fmt.Errorf("%w: tier %s has non-positive price", domain.ErrInvalidInput, tier.Class)
		}
		if tier.MaxLb <= prev {
			return fmt.Errorf("%w: tier %d is not ordered by max_lb", domain.ErrInvalidInput, i)
		}
		prev = tier.MaxLb
	}
	if !math.IsInf(t[len(t)-1].MaxLb, 1) {
		return fmt.Errorf("%w: last tier must be unbounded", domain.ErrInvalidInput)
	}
	return nil
}

// Lookup returns the tier for a weight in pounds.
func (t TierTable) Lookup(weightLb float64) (Tier, error) {
	if weightLb <= 0 || math.IsNaN(weightLb) {
		return Tier{}, fmt.Errorf("%w: weight must be greater than zero", domain.ErrInvalidInput)
	}
	for i, tier := range t {
		if i == 0 {
			if weightLb < tier.MaxLb {
				return tier, nil
			}
			continue
		}
		if weightLb <= tier.MaxLb {
			return tier, nil
		}
	}
	return Tier{}, fmt.Errorf("%w: no tier covers %.2f lb", domain.ErrInvalidInput, weightLb)
}
