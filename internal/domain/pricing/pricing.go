// Package pricing turns a daily energy requirement and a recipe into food volume and cost.
//
//	dailyGrams = DER / kcalPer100g x 100
//	costPerDay = dailyGrams / 100 x (tierBase + therapeuticSurcharge)
//
// Week and month costs are x7 and x30 of the unrounded daily cost. Rounding happens
// only in Quote.Display.
package pricing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"pawplan/internal/domain"
)

const (
	DaysPerWeek  = 7
	DaysPerMonth = 30
)

// Input is a single dog/recipe pricing request.
type Input struct {
	DER         float64 // kcal/day
	WeightLb    float64 // selects the weight class
	KcalPer100g float64
	Therapeutic bool
	MealsPerDay int
}

type Quote struct {
	WeightClass      WeightClass `json:"weight_class"`
	TierPricePer100g float64     `json:"tier_price_per_100g"`
	Surcharge        float64     `json:"surcharge_per_100g"`
	BasePricePer100g float64     `json:"base_price_per_100g"`
	DailyGrams       float64     `json:"daily_grams"`
	MealsPerDay      int         `json:"meals_per_day"`
	GramsPerMeal     float64     `json:"grams_per_meal"`
	CostPerDay       float64     `json:"cost_per_day"`
	CostPerWeek      float64     `json:"cost_per_week"`
	CostPerMonth     float64     `json:"cost_per_month"`
}

// DisplayQuote is the customer-facing rendering: grams to whole units, money to cents.
type DisplayQuote struct {
	DailyGrams   decimal.Decimal `json:"daily_grams"`
	GramsPerMeal decimal.Decimal `json:"grams_per_meal"`
	CostPerDay   decimal.Decimal `json:"cost_per_day"`
	CostPerWeek  decimal.Decimal `json:"cost_per_week"`
	CostPerMonth decimal.Decimal `json:"cost_per_month"`
}

func (q Quote) Display() DisplayQuote {
	return DisplayQuote{
		DailyGrams:   decimal.NewFromFloat(q.DailyGrams).Round(0),
		GramsPerMeal: decimal.NewFromFloat(q.GramsPerMeal).Round(0),
		CostPerDay:   decimal.NewFromFloat(q.CostPerDay).Round(2),
		CostPerWeek:  decimal.NewFromFloat(q.CostPerWeek).Round(2),
		CostPerMonth: decimal.NewFromFloat(q.CostPerMonth).Round(2),
	}
}

// MonthlyCents is the recurring charge sent to the payment provider.
func (q Quote) MonthlyCents() int64 {
	return decimal.NewFromFloat(q.CostPerMonth).Shift(2).Round(0).IntPart()
}

type Engine struct {
	tiers     TierTable
	surcharge float64
}

func NewEngine(tiers TierTable, therapeuticSurcharge float64) (*Engine, error) {
	if err := tiers.Validate(); err != nil {
		return nil, err
	}
	if therapeuticSurcharge < 0 {
		return nil, fmt.Errorf("%w: surcharge cannot be negative", domain.ErrInvalidInput)
	}
	cp := make(TierTable, len(tiers))
	copy(cp, tiers)
	return &Engine{tiers: cp, surcharge: therapeuticSurcharge}, nil
}

// NewDefaultEngine uses the published tiers and surcharge.
func NewDefaultEngine() *Engine {
	e, _ := NewEngine(DefaultTiers(), DefaultTherapeuticSurcharge)
	return e
}

func (e *Engine) Tiers() TierTable { return e.tiers }

// BasePrice is the per-100g price for a weight, surcharge included for therapeutic recipes.
func (e *Engine) BasePrice(weightLb float64, therapeutic bool) (Tier, float64, error) {
	tier, err := e.tiers.Lookup(weightLb)
	if err != nil {
		return Tier{}, 0, err
	}
	base := tier.BasePricePer100g
	if therapeutic {
		base += e.surcharge
	}
	return tier, base, nil
}

func (e *Engine) Price(in Input) (Quote, error) {
	if !positive(in.DER) {
		return Quote{}, fmt.Errorf("%w: daily energy requirement must be positive", domain.ErrInvalidInput)
	}
	if !positive(in.KcalPer100g) {
		return Quote{}, fmt.Errorf("%w: recipe calories per 100g must be positive", domain.ErrInvalidInput)
	}
	if in.MealsPerDay < 1 {
		return Quote{}, fmt.Errorf("%w: meals per day must be at least 1", domain.ErrInvalidInput)
	}
	tier, base, err := e.BasePrice(in.WeightLb, in.Therapeutic)
	if err != nil {
		return Quote{}, err
	}

	dailyGrams := in.DER / in.KcalPer100g * 100
	costPerDay := dailyGrams / 100 * base

	q := Quote{
		WeightClass:      tier.Class,
		TierPricePer100g: tier.BasePricePer100g,
		BasePricePer100g: base,
		DailyGrams:       dailyGrams,
		MealsPerDay:      in.MealsPerDay,
		GramsPerMeal:     dailyGrams / float64(in.MealsPerDay),
		CostPerDay:       costPerDay,
		CostPerWeek:      costPerDay * DaysPerWeek,
		CostPerMonth:     costPerDay * DaysPerMonth,
	}
	if in.Therapeutic {
		q.Surcharge = e.surcharge
	}
	return q, nil
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
