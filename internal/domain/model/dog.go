package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"pawplan/internal/domain"
	"pawplan/internal/domain/nutrition"
)

// DogProfile is what the customer tells us about a dog.
type DogProfile struct {
	Name              string                  `json:"name"`
	Weight            float64                 `json:"weight"`
	WeightUnit        nutrition.WeightUnit    `json:"weight_unit"`
	AgeYears          float64                 `json:"age_years"`
	Breed             string                  `json:"breed"`
	Activity          nutrition.ActivityLevel `json:"activity"`
	MedicalConditions []string                `json:"medical_conditions"`
	Allergens         []string                `json:"allergens"`
}

// Normalize canonicalizes units, activity and the condition/allergen sets.
func (d DogProfile) Normalize() (DogProfile, error) {
	unit, err := nutrition.ParseUnit(string(d.WeightUnit))
	if err != nil {
		return DogProfile{}, err
	}
	activity, err := nutrition.ParseActivity(string(d.Activity))
	if err != nil {
		return DogProfile{}, err
	}
	if d.Weight <= 0 {
		return DogProfile{}, fmt.Errorf("%w: weight must be greater than zero", domain.ErrInvalidInput)
	}
	d.Name = strings.TrimSpace(d.Name)
	d.Breed = strings.TrimSpace(d.Breed)
	d.WeightUnit = unit
	d.Activity = activity
	d.MedicalConditions = NormalizeSet(d.MedicalConditions)
	d.Allergens = NormalizeSet(d.Allergens)
	return d, nil
}

func (d DogProfile) NutritionInput() nutrition.Input {
	return nutrition.Input{
		Weight:            d.Weight,
		Unit:              d.WeightUnit,
		AgeYears:          d.AgeYears,
		Activity:          d.Activity,
		MedicalConditions: d.MedicalConditions,
	}
}

// Dog is one line item of a plan: a profile fed a recipe.
type Dog struct {
	ID          string
	PlanID      string
	Profile     DogProfile
	RecipeID    string
	MealsPerDay int
	CreatedAt   time.Time
}

const DefaultMealsPerDay = 2

// NormalizeSet lower-cases, trims, de-duplicates and sorts.
func NormalizeSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
