package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"pawplan/internal/domain"
)

type FulfillmentStatus string

const (
	FulfillmentPending    FulfillmentStatus = "pending"
	FulfillmentProcessing FulfillmentStatus = "processing"
	FulfillmentShipped    FulfillmentStatus = "shipped"
	FulfillmentDelivered  FulfillmentStatus = "delivered"
	FulfillmentCancelled  FulfillmentStatus = "cancelled"
	FulfillmentFailed     FulfillmentStatus = "failed"
)

var fulfillmentTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentPending:    {FulfillmentProcessing, FulfillmentCancelled},
	FulfillmentProcessing: {FulfillmentShipped, FulfillmentCancelled, FulfillmentFailed},
	FulfillmentShipped:    {FulfillmentDelivered, FulfillmentFailed},
}

func ParseFulfillmentStatus(s string) (FulfillmentStatus, error) {
	st := FulfillmentStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case FulfillmentPending, FulfillmentProcessing, FulfillmentShipped,
		FulfillmentDelivered, FulfillmentCancelled, FulfillmentFailed:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown fulfillment status %q", domain.ErrInvalidInput, s)
}

type Address struct {
	Name    string `json:"name"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
}

var stateCode = regexp.MustCompile(`^[A-Z]{2}$`)

func (a Address) Validate() error {
	if strings.TrimSpace(a.Line1) == "" || strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("%w: street and city are required", domain.ErrInvalidInput)
	}
	if !stateCode.MatchString(strings.ToUpper(strings.TrimSpace(a.State))) {
		return fmt.Errorf("%w: state must be a two-letter code", domain.ErrInvalidInput)
	}
	return nil
}

// RecipeLine snapshots what a dog gets in one billing cycle.
type RecipeLine struct {
	DogName    string  `json:"dog_name"`
	RecipeID   string  `json:"recipe_id"`
	RecipeName string  `json:"recipe_name"`
	DailyGrams float64 `json:"daily_grams"`
	Days       int     `json:"days"`
}

// Order is one fulfillment derived from a subscription billing cycle.
type Order struct {
	ID                     string
	Number                 string
	UserID                 string
	PlanID                 string
	ProviderSubscriptionID string
	PeriodStart            time.Time
	PeriodEnd              time.Time
	Status                 FulfillmentStatus
	Address                Address
	Recipes                []RecipeLine
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Advance moves the order along the fulfillment graph. Repeating the current status is a no-op.
func (o *Order) Advance(to FulfillmentStatus, now time.Time) error {
	if o.Status == to {
		return nil
	}
	for _, allowed := range fulfillmentTransitions[o.Status] {
		if allowed == to {
			o.Status = to
			o.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("%w: order %s cannot go from %s to %s", domain.ErrInvalidTransition, o.Number, o.Status, to)
}

// BillingDays is the number of days covered by a period, at least one.
func BillingDays(start, end time.Time) int {
	d := int(end.Sub(start).Round(24*time.Hour) / (24 * time.Hour))
	if d < 1 {
		return 1
	}
	return d
}
