// Package nutrition computes a dog's daily caloric requirement from its profile.
//
// RER (resting energy requirement) = 70 x weightKg^0.75.
// DER (daily energy requirement)   = RER x multiplier, where the multiplier is keyed on
// life stage, activity level and weight-management conditions.
package nutrition

import (
	"fmt"
	"math"
	"strings"

	"pawplan/internal/domain"
)

// LbPerKg is the conversion factor used everywhere weights are normalized.
const LbPerKg = 2.20462

type WeightUnit string

const (
	UnitKg WeightUnit = "kg"
	UnitLb WeightUnit = "lb"
)

// ParseUnit accepts "kg" and "lb" (case-insensitive, "kgs"/"lbs" tolerated).
func ParseUnit(s string) (WeightUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kg", "kgs":
		return UnitKg, nil
	case "lb", "lbs":
		return UnitLb, nil
	default:
		return "", fmt.Errorf("%w: unrecognized weight unit %q", domain.ErrInvalidInput, s)
	}
}

type ActivityLevel string

const (
	ActivityLow      ActivityLevel = "low"
	ActivityModerate ActivityLevel = "moderate"
	ActivityHigh     ActivityLevel = "high"
	ActivityWorking  ActivityLevel = "working"
)

// ParseActivity maps free-form input to a level. Empty input means moderate.
func ParseActivity(s string) (ActivityLevel, error) {
	switch a := ActivityLevel(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return ActivityModerate, nil
	case ActivityLow, ActivityModerate, ActivityHigh, ActivityWorking:
		return a, nil
	default:
		return "", fmt.Errorf("%w: unrecognized activity level %q", domain.ErrInvalidInput, s)
	}
}

type LifeStage string

const (
	StageYoungPuppy LifeStage = "young_puppy" // under 4 months
	StagePuppy      LifeStage = "puppy"       // 4 to 12 months
	StageAdult      LifeStage = "adult"
	StageSenior     LifeStage = "senior" // 7 years and older
)

const (
	youngPuppyMaxYears = 4.0 / 12.0
	puppyMaxYears      = 1.0
	seniorMinYears     = 7.0
)

// LifeStageFor classifies an age in years. Zero means unknown and is treated as adult.
func LifeStageFor(ageYears float64) LifeStage {
	switch {
	case ageYears <= 0:
		return StageAdult
	case ageYears < youngPuppyMaxYears:
		return StageYoungPuppy
	case ageYears < puppyMaxYears:
		return StagePuppy
	case ageYears >= seniorMinYears:
		return StageSenior
	default:
		return StageAdult
	}
}

// Input is everything the calculator needs. Weight is in Unit.
type Input struct {
	Weight            float64
	Unit              WeightUnit
	AgeYears          float64
	Activity          ActivityLevel
	MedicalConditions []string
}

// Result carries both normalized weights so callers never convert back and forth.
type Result struct {
	WeightKg   float64   `json:"weight_kg"`
	WeightLb   float64   `json:"weight_lb"`
	LifeStage  LifeStage `json:"life_stage"`
	Multiplier float64   `json:"multiplier"`
	RER        float64   `json:"rer_kcal"`
	DER        float64   `json:"der_kcal"`
}

// ToKilograms normalizes a weight. It rejects non-positive, NaN or infinite values.
func ToKilograms(weight float64, unit WeightUnit) (float64, error) {
	if math.IsNaN(weight) || math.IsInf(weight, 0) || weight <= 0 {
		return 0, fmt.Errorf("%w: weight must be greater than zero", domain.ErrInvalidInput)
	}
	switch unit {
	case UnitKg:
		return weight, nil
	case UnitLb:
		return weight / LbPerKg, nil
	default:
		return 0, fmt.Errorf("%w: unrecognized weight unit %q", domain.ErrInvalidInput, unit)
	}
}

func ToPounds(kg float64) float64 { return kg * LbPerKg }

// RER is the resting energy requirement in kcal/day for a weight in kilograms.
func RER(weightKg float64) float64 {
	return 70 * math.Pow(weightKg, 0.75)
}

// Calculate normalizes the input to kilograms and derives RER and DER.
func Calculate(in Input) (Result, error) {
	kg, err := ToKilograms(in.Weight, in.Unit)
	if err != nil {
		return Result{}, err
	}
	if in.AgeYears < 0 || math.IsNaN(in.AgeYears) {
		return Result{}, fmt.Errorf("%w: age cannot be negative", domain.ErrInvalidInput)
	}
	activity := in.Activity
	if activity == "" {
		activity = ActivityModerate
	}
	if _, ok := adultFactors[activity]; !ok {
		return Result{}, fmt.Errorf("%w: unrecognized activity level %q", domain.ErrInvalidInput, activity)
	}

	lb := in.Weight
	if in.Unit == UnitKg {
		lb = ToPounds(kg)
	}
	stage := LifeStageFor(in.AgeYears)
	m := Multiplier(stage, activity, in.MedicalConditions)
	rer := RER(kg)
	return Result{
		WeightKg:   kg,
		WeightLb:   lb,
		LifeStage:  stage,
		Multiplier: m,
		RER:        rer,
		DER:        rer * m,
	}, nil
}
