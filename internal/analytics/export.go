package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/seacatering/subscription-service/internal/domain"
)

// ExportFilename names the CSV download for w.
func ExportFilename(w Window) string {
	return fmt.Sprintf("sea-catering-metrics-%s-to-%s.csv",
		w.Start.Format(domain.DateLayout), w.End.Format(domain.DateLayout))
}

// WriteCSV renders m as Metric,Value rows.
func WriteCSV(out io.Writer, m Metrics) error {
	rows := [][]string{
		{"Metric", "Value"},
		{"New Subscriptions", strconv.Itoa(m.NewSubscriptions)},
		{"Monthly Recurring Revenue", strconv.FormatInt(m.MonthlyRecurringRevenue, 10)},
		{"Reactivations", strconv.Itoa(m.Reactivations)},
		{"Subscription Growth", decimal.NewFromFloat(m.SubscriptionGrowth).StringFixed(1) + "%"},
		{"Total Active Subscriptions", strconv.Itoa(m.TotalActive)},
		{"Total Paused Subscriptions", strconv.Itoa(m.TotalPaused)},
		{"Total Cancelled Subscriptions", strconv.Itoa(m.TotalCancelled)},
		{"Average Subscription Value", decimal.NewFromFloat(m.AverageSubscriptionValue).StringFixed(2)},
	}

	w := csv.NewWriter(out)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write metrics csv: %w", err)
	}
	return nil
}
