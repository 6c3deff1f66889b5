package nutrition

import "strings"

var adultFactors = map[ActivityLevel]float64{
	ActivityLow:      1.4,
	ActivityModerate: 1.6,
	ActivityHigh:     2.0,
	ActivityWorking:  3.0,
}

var seniorFactors = map[ActivityLevel]float64{
	ActivityLow:      1.2,
	ActivityModerate: 1.4,
	ActivityHigh:     1.6,
	ActivityWorking:  2.0,
}

const (
	youngPuppyFactor = 3.0
	puppyFactor      = 2.0
	weightLossFactor = 1.0
	weightGainBoost  = 1.2
)

// Conditions that change caloric targets. Anything else is dietary only and
// is handled by recipe selection, not by the multiplier.
var (
	weightLossConditions = map[string]struct{}{
		"overweight":  {},
		"obese":       {},
		"obesity":     {},
		"weight_loss": {},
	}
	weightGainConditions = map[string]struct{}{
		"underweight": {},
		"weight_gain": {},
	}
)

// Multiplier returns the DER/RER factor.
// Puppies are fed for growth regardless of activity or weight conditions.
func Multiplier(stage LifeStage, activity ActivityLevel, conditions []string) float64 {
	switch stage {
	case StageYoungPuppy:
		return youngPuppyFactor
	case StagePuppy:
		return puppyFactor
	}

	table := adultFactors
	if stage == StageSenior {
		table = seniorFactors
	}
	f, ok := table[activity]
	if !ok {
		f = table[ActivityModerate]
	}

	if hasAny(conditions, weightLossConditions) {
		return weightLossFactor
	}
	if hasAny(conditions, weightGainConditions) {
		return f * weightGainBoost
	}
	return f
}

func hasAny(conditions []string, set map[string]struct{}) bool {
	for _, c := range conditions {
		if _, ok := set[strings.ToLower(strings.TrimSpace(c))]; ok {
			return true
		}
	}
	return false
}
