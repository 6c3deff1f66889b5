package api

import (
	"time"

	"github.com/shopspring/decimal"

	"pawplan/internal/domain/model"
	"pawplan/internal/usecase"
)

type dogView struct {
	ID          string            `json:"id"`
	Profile     model.DogProfile  `json:"profile"`
	RecipeID    string            `json:"recipe_id"`
	MealsPerDay int               `json:"meals_per_day"`
	Quote       *usecase.DogQuote `json:"quote,omitempty"`
}

type planView struct {
	ID                     string           `json:"id"`
	Status                 model.PlanStatus `json:"status"`
	Guest                  bool             `json:"guest"`
	ClaimToken             string           `json:"claim_token,omitempty"`
	Dogs                   []dogView        `json:"dogs"`
	ZipCode                string           `json:"zip_code,omitempty"`
	ProviderSubscriptionID string           `json:"subscription_id,omitempty"`
	MonthlyTotal           *decimal.Decimal `json:"monthly_total,omitempty"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

// newPlanView renders a plan. The claim token is included only when asked for, which is the
// response to the guest that created the plan.
func newPlanView(p *model.Plan, quotes []*usecase.DogQuote, withToken bool) planView {
	v := planView{
		ID:                     p.ID,
		Status:                 p.Status,
		Guest:                  p.IsGuest(),
		ZipCode:                p.ZipCode,
		ProviderSubscriptionID: p.ProviderSubscriptionID,
		Dogs:                   make([]dogView, 0, len(p.Dogs)),
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              p.UpdatedAt,
	}
	if withToken {
		v.ClaimToken = p.ClaimToken
	}
	for i, d := range p.Dogs {
		dv := dogView{ID: d.ID, Profile: d.Profile, RecipeID: d.RecipeID, MealsPerDay: d.MealsPerDay}
		if i < len(quotes) {
			dv.Quote = quotes[i]
		}
		v.Dogs = append(v.Dogs, dv)
	}
	if len(quotes) > 0 {
		total := decimal.Zero
		for _, q := range quotes {
			total = total.Add(q.Display.CostPerMonth)
		}
		v.MonthlyTotal = &total
	}
	return v
}

type orderView struct {
	ID          string                  `json:"id"`
	Number      string                  `json:"number"`
	PlanID      string                  `json:"plan_id"`
	Status      model.FulfillmentStatus `json:"status"`
	PeriodStart time.Time               `json:"period_start"`
	PeriodEnd   time.Time               `json:"period_end"`
	ShipTo      model.Address           `json:"ship_to"`
	Recipes     []model.RecipeLine      `json:"recipes"`
	CreatedAt   time.Time               `json:"created_at"`
}

func newOrderView(o *model.Order) orderView {
	return orderView{
		ID:          o.ID,
		Number:      o.Number,
		PlanID:      o.PlanID,
		Status:      o.Status,
		PeriodStart: o.PeriodStart,
		PeriodEnd:   o.PeriodEnd,
		ShipTo:      o.Address,
		Recipes:     o.Recipes,
		CreatedAt:   o.CreatedAt,
	}
}
