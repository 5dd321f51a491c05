package main

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/seacatering/subscription-service/internal/domain"
	"github.com/seacatering/subscription-service/internal/pricing"
)

func newQuoteCmd() *cobra.Command {
	var (
		plan  string
		meals []string
		days  []string
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Print the monthly price of a plan selection",
		Example: "  seacatering quote --plan protein --meals breakfast,lunch,dinner " +
			"--days monday,tuesday,wednesday,thursday,friday",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := domain.LookupPlan(domain.PlanID(plan)); !ok {
				ids := lo.Map(domain.Plans(), func(p domain.Plan, _ int) string { return string(p.ID) })
				return fmt.Errorf("unknown plan %q (choose one of %s)", plan, strings.Join(ids, ", "))
			}

			q := pricing.Quote(domain.QuoteInput{
				Plan:         plan,
				MealTypes:    lo.Map(meals, func(s string, _ int) string { return strings.ToLower(strings.TrimSpace(s)) }),
				DeliveryDays: lo.Map(days, func(s string, _ int) string { return strings.ToLower(strings.TrimSpace(s)) }),
			})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "plan:          %s\n", q.Plan)
			fmt.Fprintf(out, "meal types:    %s\n", strings.Join(lo.Map(q.MealTypes, func(m domain.MealType, _ int) string { return string(m) }), ", "))
			fmt.Fprintf(out, "delivery days: %s\n", strings.Join(lo.Map(q.DeliveryDays, func(d domain.DeliveryDay, _ int) string { return string(d) }), ", "))
			if !q.Complete {
				fmt.Fprintln(out, "total:         selection incomplete")
				return nil
			}
			fmt.Fprintf(out, "total:         %s per month\n", q.FormattedPrice)
			return nil
		},
	}
	cmd.Flags().StringVar(&plan, "plan", "", "plan id (diet, protein, royal)")
	cmd.Flags().StringSliceVar(&meals, "meals", nil, "meal types, comma separated")
	cmd.Flags().StringSliceVar(&days, "days", nil, "delivery days, comma separated")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}
