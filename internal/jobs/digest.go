/**
 * @description
 * This file contains the metrics digest job. Once a day it aggregates the
 * previous business day's subscription metrics, logs them and publishes them
 * for downstream consumers. It only reads subscriptions.
 */
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/seacatering/subscription-service/internal/analytics"
	"github.com/seacatering/subscription-service/internal/clock"
	"github.com/seacatering/subscription-service/internal/domain"
)

const digestTimeout = 2 * time.Minute

// MetricsSource computes metrics over a window.
type MetricsSource interface {
	MetricsForWindow(ctx context.Context, w analytics.Window) (analytics.Metrics, error)
}

// Publisher announces the digest.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

// DailyDigest is the payload published on metrics.daily_digest.
type DailyDigest struct {
	Date string `json:"date"`
	analytics.Metrics
}

// Jobs holds the dependencies of the scheduled jobs.
type Jobs struct {
	metrics   MetricsSource
	publisher Publisher
	clock     clock.Clock
	location  *time.Location
	logger    *slog.Logger
}

func NewJobs(metrics MetricsSource, publisher Publisher, clk clock.Clock, loc *time.Location, logger *slog.Logger) *Jobs {
	if clk == nil {
		clk = clock.System{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Jobs{metrics: metrics, publisher: publisher, clock: clk, location: loc, logger: logger}
}

// PublishDailyDigest is the cron entry point.
func (j *Jobs) PublishDailyDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
	defer cancel()

	if _, err := j.RunDailyDigest(ctx); err != nil {
		j.logger.Error("metrics digest failed", "job", "metrics_digest", "error", err)
	}
}

// RunDailyDigest computes yesterday's metrics in the business timezone and
// publishes them. A publish failure is logged and does not fail the run.
func (j *Jobs) RunDailyDigest(ctx context.Context) (DailyDigest, error) {
	yesterday := domain.Today(j.clock.Now(), j.location).AddDate(0, 0, -1)
	m, err := j.metrics.MetricsForWindow(ctx, analytics.NewWindow(yesterday, yesterday))
	if err != nil {
		return DailyDigest{}, err
	}

	digest := DailyDigest{Date: yesterday.Format(domain.DateLayout), Metrics: m}
	j.logger.Info("metrics digest computed",
		"job", "metrics_digest",
		"date", digest.Date,
		"new_subscriptions", m.NewSubscriptions,
		"reactivations", m.Reactivations,
		"total_active", m.TotalActive,
		"monthly_recurring_revenue", m.MonthlyRecurringRevenue,
	)

	if j.publisher != nil {
		if err := j.publisher.Publish(ctx, domain.RoutingMetricsDailyDigest, digest); err != nil {
			j.logger.Warn("failed to publish event", "routing_key", domain.RoutingMetricsDailyDigest, "error", err)
		}
	}
	return digest, nil
}
