// File: internal/usecase/quote_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"pawplan/internal/domain"
	"pawplan/internal/domain/model"
	"pawplan/internal/domain/nutrition"
	"pawplan/internal/domain/pricing"
	"pawplan/internal/infra/metrics"
)

// Compile-time check
var _ QuoteUseCase = (*quoteUC)(nil)

type QuoteRequest struct {
	Dog         model.DogProfile `json:"dog"`
	RecipeID    string           `json:"recipe_id"`
	MealsPerDay int              `json:"meals_per_day"`
}

// DogQuote is the full calculator output for one dog and recipe.
type DogQuote struct {
	Dog               model.DogProfile     `json:"dog"`
	Recipe            model.Recipe         `json:"recipe"`
	Nutrition         nutrition.Result     `json:"nutrition"`
	Pricing           pricing.Quote        `json:"pricing"`
	Display           pricing.DisplayQuote `json:"display"`
	AllergenConflicts []string             `json:"allergen_conflicts,omitempty"`
}

type QuoteUseCase interface {
	Recipes() []model.Recipe
	Quote(ctx context.Context, req QuoteRequest) (*DogQuote, error)
	// QuoteDog prices a dog already stored on a plan.
	QuoteDog(ctx context.Context, d *model.Dog) (*DogQuote, error)
}

type quoteUC struct {
	engine *pricing.Engine
	log    *zerolog.Logger
}

func NewQuoteUseCase(engine *pricing.Engine, logger *zerolog.Logger) *quoteUC {
	l := logger.With().Str("component", "quote_uc").Logger()
	return &quoteUC{engine: engine, log: &l}
}

func (u *quoteUC) Recipes() []model.Recipe { return model.Recipes() }

func (u *quoteUC) Quote(ctx context.Context, req QuoteRequest) (*DogQuote, error) {
	dog, err := req.Dog.Normalize()
	if err != nil {
		metrics.IncQuote("unknown", "invalid")
		return nil, err
	}
	recipe, err := model.RecipeByID(req.RecipeID)
	if err != nil {
		metrics.IncQuote("unknown", "invalid")
		return nil, err
	}
	q, err := u.quote(dog, recipe, req.MealsPerDay)
	if err != nil {
		return nil, err
	}
	q.AllergenConflicts = recipe.AllergenConflicts(dog.Allergens)
	return q, nil
}

func (u *quoteUC) QuoteDog(ctx context.Context, d *model.Dog) (*DogQuote, error) {
	if d == nil {
		return nil, domain.ErrInvalidInput
	}
	recipe, err := model.RecipeByID(d.RecipeID)
	if err != nil {
		return nil, err
	}
	return u.quote(d.Profile, recipe, d.MealsPerDay)
}

func (u *quoteUC) quote(dog model.DogProfile, recipe model.Recipe, meals int) (*DogQuote, error) {
	if meals == 0 {
		meals = model.DefaultMealsPerDay
	}
	res, err := nutrition.Calculate(dog.NutritionInput())
	if err != nil {
		metrics.IncQuote("unknown", "invalid")
		return nil, err
	}
	p, err := u.engine.Price(pricing.Input{
		DER:         res.DER,
		WeightLb:    res.WeightLb,
		KcalPer100g: recipe.KcalPer100g,
		Therapeutic: recipe.Therapeutic,
		MealsPerDay: meals,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			metrics.IncQuote("unknown", "invalid")
		}
		return nil, err
	}
	metrics.IncQuote(string(p.WeightClass), "ok")
	u.log.Debug().
		Str("recipe", recipe.ID).
		Str("weight_class", string(p.WeightClass)).
		Float64("der", res.DER).
		Float64("cost_per_day", p.CostPerDay).
		Msg("quote computed")
	return &DogQuote{
		Dog:       dog,
		Recipe:    recipe,
		Nutrition: res,
		Pricing:   p,
		Display:   p.Display(),
	}, nil
}
