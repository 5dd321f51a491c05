/**
 * @description
 * This file derives the admin dashboard metrics from the full set of
 * subscription records. The aggregation is a full scan invoked on demand;
 * nothing is maintained incrementally.
 */
package analytics

import (
	"time"

	"github.com/samber/lo"

	"github.com/seacatering/subscription-service/internal/domain"
	ierr "github.com/seacatering/subscription-service/internal/errors"
)

// Window is an inclusive date range. End is the last instant of the end date.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window, both ends inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// NewWindow builds a window over the calendar dates start..end, treating end
// as end-of-day (23:59:59.999 UTC).
func NewWindow(start, end time.Time) Window {
	return Window{
		Start: domain.Day(start),
		End:   domain.Day(end).Add(24*time.Hour - time.Millisecond),
	}
}

// ParseWindow reads YYYY-MM-DD bounds. A missing start defaults to the first
// day of today's month and a missing end defaults to today.
func ParseWindow(start, end string, today time.Time) (Window, error) {
	today = domain.Day(today)
	from := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := today

	var err error
	if start != "" {
		if from, err = domain.ParseDate("start", start); err != nil {
			return Window{}, err
		}
	}
	if end != "" {
		if to, err = domain.ParseDate("end", end); err != nil {
			return Window{}, err
		}
	}
	if to.Before(from) {
		return Window{}, ierr.NewError("metrics window end precedes start").
			WithHint("End date must not be before start date.").
			WithReportableDetails(map[string]any{"end": "must not be before start"}).
			Mark(ierr.ErrValidation)
	}
	return NewWindow(from, to), nil
}

// Metrics is a read-only snapshot of business health.
type Metrics struct {
	Window                   Window  `json:"window"`
	NewSubscriptions         int     `json:"new_subscriptions"`
	Reactivations            int     `json:"reactivations"`
	TotalActive              int     `json:"total_active"`
	TotalPaused              int     `json:"total_paused"`
	TotalCancelled           int     `json:"total_cancelled"`
	MonthlyRecurringRevenue  int64   `json:"monthly_recurring_revenue"`
	AverageSubscriptionValue float64 `json:"average_subscription_value"`
	SubscriptionGrowth       float64 `json:"subscription_growth"`
}

// ComputeMetrics aggregates subs. New subscriptions and reactivations are
// counted inside w; status totals and revenue cover the entire set.
func ComputeMetrics(subs []*domain.Subscription, w Window) Metrics {
	active := lo.Filter(subs, func(s *domain.Subscription, _ int) bool { return s.Status == domain.StatusActive })

	m := Metrics{
		Window: w,
		NewSubscriptions: lo.CountBy(subs, func(s *domain.Subscription) bool {
			return w.Contains(s.CreatedAt)
		}),
		Reactivations: lo.CountBy(subs, func(s *domain.Subscription) bool {
			return s.ReactivatedAt != nil && w.Contains(*s.ReactivatedAt)
		}),
		TotalActive:    len(active),
		TotalPaused:    lo.CountBy(subs, func(s *domain.Subscription) bool { return s.Status == domain.StatusPaused }),
		TotalCancelled: lo.CountBy(subs, func(s *domain.Subscription) bool { return s.Status == domain.StatusCancelled }),
		MonthlyRecurringRevenue: lo.SumBy(active, func(s *domain.Subscription) int64 {
			return s.TotalPrice
		}),
	}

	if m.TotalActive > 0 {
		m.AverageSubscriptionValue = float64(m.MonthlyRecurringRevenue) / float64(m.TotalActive)
		m.SubscriptionGrowth = float64(m.NewSubscriptions) / float64(m.TotalActive) * 100
	}
	return m
}
