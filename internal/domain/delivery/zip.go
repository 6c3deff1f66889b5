// Package delivery decides whether an address falls inside the kitchen's service area.
package delivery

import (
	"fmt"
	"strconv"
	"strings"

	"pawplan/internal/domain"
)

// ZipRange is an inclusive range of five-digit zipcodes.
type ZipRange struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

func (r ZipRange) contains(z int) bool { return z >= r.From && z <= r.To }

// Area is a served county.
type Area struct {
	County string     `yaml:"county"`
	State  string     `yaml:"state"`
	Ranges []ZipRange `yaml:"ranges"`
}

// DefaultAreas is the launch service area: Westchester NY, Rockland NY and Fairfield CT.
func DefaultAreas() []Area {
	return []Area{
		{County: "Westchester", State: "NY", Ranges: []ZipRange{
			{From: 10501, To: 10598},
			{From: 10601, To: 10710},
			{From: 10801, To: 10805},
		}},
		{County: "Rockland", State: "NY", Ranges: []ZipRange{
			{From: 10901, To: 10998},
		}},
		{County: "Fairfield", State: "CT", Ranges: []ZipRange{
			{From: 6601, To: 6699},
			{From: 6801, To: 6899},
			{From: 6901, To: 6928},
		}},
	}
}

type Result struct {
	Valid      bool   `json:"valid"`
	Normalized string `json:"normalized"`
	County     string `json:"county,omitempty"`
	State      string `json:"state,omitempty"`
}

type Validator struct {
	areas []Area
}

func NewValidator(areas []Area) (*Validator, error) {
	if len(areas) == 0 {
		return nil, fmt.Errorf("%w: at least one service area is required", domain.ErrInvalidInput)
	}
	for _, a := range areas {
		if a.County == "" || len(a.Ranges) == 0 {
			return nil, fmt.Errorf("%w: service area needs a county and zip ranges", domain.ErrInvalidInput)
		}
		for _, r := range a.Ranges {
			if r.From <= 0 || r.To < r.From || r.To > 99999 {
				return nil, fmt.Errorf("%w: bad zip range %05d-%05d for %s", domain.ErrInvalidInput, r.From, r.To, a.County)
			}
		}
	}
	cp := make([]Area, len(areas))
	copy(cp, areas)
	return &Validator{areas: cp}, nil
}

// Normalize accepts "12345", "12345-6789" or "123456789" and returns the five-digit form.
func Normalize(zip string) (string, error) {
	z := strings.TrimSpace(zip)
	var ok bool
	switch len(z) {
	case 5, 9:
		ok = digits(z)
	case 10:
		ok = z[5] == '-' && digits(z[:5]) && digits(z[6:])
	}
	if !ok {
		return "", fmt.Errorf("%w: malformed zipcode %q", domain.ErrInvalidInput, zip)
	}
	return z[:5], nil
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Check is a pure gate. Malformed input is simply not serviceable.
func (v *Validator) Check(zip string) Result {
	z, err := Normalize(zip)
	if err != nil {
		return Result{}
	}
	n, _ := strconv.Atoi(z)
	for _, a := range v.areas {
		for _, r := range a.Ranges {
			if r.contains(n) {
				return Result{Valid: true, Normalized: z, County: a.County, State: a.State}
			}
		}
	}
	return Result{Normalized: z}
}
