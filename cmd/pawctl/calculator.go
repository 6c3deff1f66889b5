package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pawplan/internal/config"
	"pawplan/internal/domain/delivery"
	"pawplan/internal/domain/model"
	"pawplan/internal/domain/nutrition"
	"pawplan/internal/domain/pricing"
	"pawplan/internal/usecase"
)

// calculator builds the pricing engine and zip validator from config, or the published
// defaults when no usable config is around.
func (o *options) calculator() (*pricing.Engine, *delivery.Validator, error) {
	tiers, surcharge, areas := pricing.DefaultTiers(), pricing.DefaultTherapeuticSurcharge, delivery.DefaultAreas()
	if cfg, err := config.Load(o.configPath, o.dev); err == nil {
		tiers, surcharge, areas = cfg.Pricing.Tiers, cfg.Pricing.TherapeuticSurcharge, cfg.Delivery.Areas
	} else {
		o.logger.Debug().Err(err).Msg("using default pricing and service area")
	}
	engine, err := pricing.NewEngine(tiers, surcharge)
	if err != nil {
		return nil, nil, err
	}
	zips, err := delivery.NewValidator(areas)
	if err != nil {
		return nil, nil, err
	}
	return engine, zips, nil
}

func newQuoteCmd(opts *options) *cobra.Command {
	var (
		req    usecase.QuoteRequest
		unit   string
		act    string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Compute daily portions and cost for a dog and recipe",
		Long: `Run the calculator the storefront uses.

Examples:
  pawctl quote --weight 30 --recipe beef-hearty
  pawctl quote --weight 12 --unit kg --age 9 --activity low --condition kidney --recipe renal-support --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := opts.calculator()
			if err != nil {
				return err
			}
			req.Dog.WeightUnit = nutrition.WeightUnit(unit)
			req.Dog.Activity = nutrition.ActivityLevel(act)
			q, err := usecase.NewQuoteUseCase(engine, opts.logger).Quote(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(q)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "recipe\t%s (%s)\n", q.Recipe.Name, q.Recipe.ID)
			fmt.Fprintf(tw, "weight class\t%s\n", q.Pricing.WeightClass)
			fmt.Fprintf(tw, "RER\t%.2f kcal/day\n", q.Nutrition.RER)
			fmt.Fprintf(tw, "DER\t%.2f kcal/day\n", q.Nutrition.DER)
			fmt.Fprintf(tw, "daily grams\t%s g\n", q.Display.DailyGrams)
			fmt.Fprintf(tw, "per meal\t%s g x %d\n", q.Display.GramsPerMeal, q.Pricing.MealsPerDay)
			fmt.Fprintf(tw, "per day\t$%s\n", q.Display.CostPerDay.StringFixed(2))
			fmt.Fprintf(tw, "per week\t$%s\n", q.Display.CostPerWeek.StringFixed(2))
			fmt.Fprintf(tw, "per month\t$%s\n", q.Display.CostPerMonth.StringFixed(2))
			for _, a := range q.AllergenConflicts {
				fmt.Fprintf(tw, "warning\tcontains %s\n", a)
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Dog.Name, "name", "", "dog name")
	f.Float64Var(&req.Dog.Weight, "weight", 0, "body weight")
	f.StringVar(&unit, "unit", string(nutrition.UnitLb), "weight unit: lb or kg")
	f.Float64Var(&req.Dog.AgeYears, "age", 0, "age in years (0 = unknown, treated as adult)")
	f.StringVar(&act, "activity", string(nutrition.ActivityModerate), "activity: low, moderate, high, working")
	f.StringSliceVar(&req.Dog.MedicalConditions, "condition", nil, "medical condition (repeatable)")
	f.StringSliceVar(&req.Dog.Allergens, "allergen", nil, "known allergen (repeatable)")
	f.StringVar(&req.RecipeID, "recipe", "", "recipe id")
	f.IntVar(&req.MealsPerDay, "meals", model.DefaultMealsPerDay, "meals per day")
	f.BoolVar(&asJSON, "json", false, "print the full quote as JSON")
	_ = cmd.MarkFlagRequired("weight")
	_ = cmd.MarkFlagRequired("recipe")
	return cmd
}

func newCheckZipCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check-zip <zipcode>...",
		Short: "Check whether zipcodes are inside the delivery area",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, zips, err := opts.calculator()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INPUT\tZIP\tSERVED\tCOUNTY")
			for _, z := range args {
				r := zips.Check(z)
				county := "-"
				if r.County != "" {
					county = r.County + ", " + r.State
				}
				norm := r.Normalized
				if norm == "" {
					norm = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", z, norm, r.Valid, county)
			}
			return tw.Flush()
		},
	}
}
