package model

import (
	"fmt"

	"pawplan/internal/domain"
)

// Recipe is a kitchen recipe. The catalog below is the single source of truth.
type Recipe struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	KcalPer100g float64  `json:"kcal_per_100g"`
	Therapeutic bool     `json:"therapeutic"`
	Allergens   []string `json:"allergens"`
}

var recipeCatalog = []Recipe{
	{ID: "beef-hearty", Name: "Hearty Beef", KcalPer100g: 150, Allergens: []string{"beef"}},
	{ID: "chicken-classic", Name: "Classic Chicken", KcalPer100g: 140, Allergens: []string{"chicken", "egg"}},
	{ID: "turkey-feast", Name: "Turkey Feast", KcalPer100g: 130, Allergens: []string{"turkey"}},
	{ID: "lamb-gentle", Name: "Gentle Lamb", KcalPer100g: 155, Allergens: []string{"lamb"}},
	{ID: "pork-harvest", Name: "Pork Harvest", KcalPer100g: 145, Allergens: []string{"pork"}},
	{ID: "renal-support", Name: "Renal Support", KcalPer100g: 125, Therapeutic: true, Allergens: []string{"chicken", "egg"}},
	{ID: "gi-low-fat", Name: "GI Low Fat", KcalPer100g: 110, Therapeutic: true, Allergens: []string{"turkey"}},
}

// Recipes returns a copy of the catalog.
func Recipes() []Recipe {
	out := make([]Recipe, len(recipeCatalog))
	copy(out, recipeCatalog)
	return out
}

func RecipeByID(id string) (Recipe, error) {
	for _, r := range recipeCatalog {
		if r.ID == id {
			return r, nil
		}
	}
	return Recipe{}, fmt.Errorf("%w: recipe %q", domain.ErrNotFound, id)
}

// AllergenConflicts lists the recipe allergens present in the given set.
func (r Recipe) AllergenConflicts(allergens []string) []string {
	set := make(map[string]struct{}, len(allergens))
	for _, a := range NormalizeSet(allergens) {
		set[a] = struct{}{}
	}
	var out []string
	for _, a := range r.Allergens {
		if _, ok := set[a]; ok {
			out = append(out, a)
		}
	}
	return out
}
