/**
 * @description
 * This file contains the core business logic for the subscription service.
 * The SubscriptionService layer authorizes the caller, applies the lifecycle
 * state machine and persists the result through the repository port.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/seacatering/subscription-service/internal/analytics"
	"github.com/seacatering/subscription-service/internal/clock"
	"github.com/seacatering/subscription-service/internal/domain"
	ierr "github.com/seacatering/subscription-service/internal/errors"
	"github.com/seacatering/subscription-service/internal/pricing"
	"github.com/seacatering/subscription-service/internal/security"
	"github.com/seacatering/subscription-service/internal/validator"
)

// SubscriptionRepository defines the database operations the service needs.
type SubscriptionRepository interface {
	CreateSubscription(ctx context.Context, sub *domain.Subscription) error
	GetSubscription(ctx context.Context, id uuid.UUID) (*domain.Subscription, error)
	// ListSubscriptions returns newest first. An empty ownerID lists every record.
	ListSubscriptions(ctx context.Context, ownerID string) ([]*domain.Subscription, error)
	// UpdateSubscription persists sub only if the stored version still equals expectedVersion.
	UpdateSubscription(ctx context.Context, sub *domain.Subscription, expectedVersion int64) error
}

// EventPublisher announces lifecycle changes.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

// Limiter throttles repeated attempts per key.
type Limiter interface {
	Allow(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// SubscriptionService provides subscription creation, lookup, lifecycle
// transitions and admin metrics.
type SubscriptionService struct {
	repo      SubscriptionRepository
	publisher EventPublisher
	limiter   Limiter
	clock     clock.Clock
	location  *time.Location
	logger    *slog.Logger
}

// NewSubscriptionService creates a new subscription service. loc is the
// business timezone deciding what "today" is for pause windows and metrics.
func NewSubscriptionService(repo SubscriptionRepository, publisher EventPublisher, limiter Limiter, clk clock.Clock, loc *time.Location, logger *slog.Logger) *SubscriptionService {
	if clk == nil {
		clk = clock.System{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionService{
		repo:      repo,
		publisher: publisher,
		limiter:   limiter,
		clock:     clk,
		location:  loc,
		logger:    logger,
	}
}

// Today returns the current calendar date in the business timezone.
func (s *SubscriptionService) Today() time.Time {
	return domain.Today(s.clock.Now(), s.location)
}

// Create validates the checkout form, prices it server-side and stores an
// active subscription owned by the caller.
func (s *SubscriptionService) Create(ctx context.Context, caller domain.Caller, in domain.CreateSubscriptionInput) (*domain.Subscription, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}

	in = sanitizeSubscriptionInput(in)
	if err := validator.ValidateRequest(in); err != nil {
		return nil, err
	}

	key := security.SubscribeKey(caller.UserID)
	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, key); err != nil {
			return nil, err
		}
	}

	plan := domain.PlanID(in.Plan)
	meals := pricing.NormalizeMealTypes(lo.Map(in.MealTypes, func(m string, _ int) domain.MealType { return domain.MealType(m) }))
	days := pricing.NormalizeDeliveryDays(lo.Map(in.DeliveryDays, func(d string, _ int) domain.DeliveryDay { return domain.DeliveryDay(d) }))

	now := s.clock.Now().UTC()
	sub := &domain.Subscription{
		ID:           uuid.New(),
		OwnerID:      caller.UserID,
		Name:         in.Name,
		Phone:        in.Phone,
		Plan:         plan,
		MealTypes:    meals,
		DeliveryDays: days,
		TotalPrice:   pricing.Compute(plan, meals, days),
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
	if in.Allergies != "" {
		allergies := in.Allergies
		sub.Allergies = &allergies
	}

	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		s.logger.Error("create subscription failed", "user_id", caller.UserID, "error", err)
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, key); err != nil {
			s.logger.Warn("reset subscribe limiter failed", "user_id", caller.UserID, "error", err)
		}
	}

	s.logger.Info("subscription created", "subscription_id", sub.ID, "user_id", sub.OwnerID, "plan", sub.Plan, "total_price", sub.TotalPrice)
	s.publish(ctx, domain.RoutingSubscriptionCreated, subscriptionEvent(sub, caller, "", now))
	return sub, nil
}

// List returns the caller's subscriptions, or every subscription for an admin.
func (s *SubscriptionService) List(ctx context.Context, caller domain.Caller) ([]*domain.Subscription, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	ownerID := caller.UserID
	if caller.IsAdmin() {
		ownerID = ""
	}
	return s.repo.ListSubscriptions(ctx, ownerID)
}

// Get returns one subscription the caller owns, or any subscription for an admin.
func (s *SubscriptionService) Get(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.Subscription, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(sub.OwnerID) {
		return nil, permissionDenied("subscription")
	}
	return sub, nil
}

// Pause suspends deliveries between the given dates.
func (s *SubscriptionService) Pause(ctx context.Context, caller domain.Caller, id uuid.UUID, in domain.PauseInput) (*domain.Subscription, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	start, end, err := parsePauseWindow(in.StartDate, in.EndDate, "start_date", "end_date")
	if err != nil {
		return nil, err
	}
	today := s.Today()
	return s.transition(ctx, caller, id, domain.EventPause, func(sub *domain.Subscription) error {
		return sub.Pause(start, end, today)
	})
}

// Resume returns a paused subscription to active.
func (s *SubscriptionService) Resume(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.Subscription, error) {
	return s.transition(ctx, caller, id, domain.EventResume, func(sub *domain.Subscription) error {
		return sub.Resume()
	})
}

// Cancel ends an active or paused subscription.
func (s *SubscriptionService) Cancel(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.Subscription, error) {
	now := s.clock.Now()
	return s.transition(ctx, caller, id, domain.EventCancel, func(sub *domain.Subscription) error {
		return sub.Cancel(now)
	})
}

// Reactivate restarts a cancelled subscription.
func (s *SubscriptionService) Reactivate(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.Subscription, error) {
	now := s.clock.Now()
	return s.transition(ctx, caller, id, domain.EventReactivate, func(sub *domain.Subscription) error {
		return sub.Reactivate(now)
	})
}

// UpdateStatus moves a subscription to the requested status through the
// transition that reaches it. Moving to paused needs both pause dates.
func (s *SubscriptionService) UpdateStatus(ctx context.Context, caller domain.Caller, id uuid.UUID, in domain.UpdateStatusInput) (*domain.Subscription, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	if err := validator.ValidateRequest(in); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	ev, ok := domain.EventFor(current.Status, in.Status)
	if !ok {
		return nil, ierr.NewError("status change not allowed").
			WithHintf("Cannot change a %s subscription to %s.", current.Status, in.Status).
			WithReportableDetails(map[string]any{
				"status":  string(current.Status),
				"target":  string(in.Status),
				"allowed": domain.AllowedEvents(current.Status),
			}).
			Mark(ierr.ErrInvalidTransition)
	}

	switch ev {
	case domain.EventPause:
		return s.Pause(ctx, caller, id, domain.PauseInput{StartDate: in.PauseStart, EndDate: in.PauseEnd})
	case domain.EventResume:
		return s.Resume(ctx, caller, id)
	case domain.EventCancel:
		return s.Cancel(ctx, caller, id)
	default:
		return s.Reactivate(ctx, caller, id)
	}
}

// transition loads the record, checks access, applies fn to a copy and
// stores it with a version check.
func (s *SubscriptionService) transition(ctx context.Context, caller domain.Caller, id uuid.UUID, ev domain.Event, fn func(*domain.Subscription) error) (*domain.Subscription, error) {
	current, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	next.UpdatedAt = now

	if err := s.repo.UpdateSubscription(ctx, next, current.Version); err != nil {
		if !ierr.IsVersionConflict(err) {
			s.logger.Error("update subscription failed", "subscription_id", id, "event", ev, "error", err)
		}
		return nil, err
	}

	s.logger.Info("subscription transitioned",
		"subscription_id", next.ID,
		"event", ev,
		"from", current.Status,
		"to", next.Status,
		"actor_id", caller.UserID,
	)
	s.publish(ctx, domain.RoutingKeyFor(ev), subscriptionEvent(next, caller, current.Status, now))
	return next, nil
}

// Metrics computes dashboard figures for the YYYY-MM-DD window. Empty bounds
// default to the first of the current month through today.
func (s *SubscriptionService) Metrics(ctx context.Context, caller domain.Caller, start, end string) (analytics.Metrics, error) {
	if err := requireAdmin(caller); err != nil {
		return analytics.Metrics{}, err
	}
	w, err := analytics.ParseWindow(start, end, s.Today())
	if err != nil {
		return analytics.Metrics{}, err
	}
	return s.MetricsForWindow(ctx, w)
}

// MetricsForWindow scans every subscription and aggregates it over w. It
// performs no authorization and is meant for trusted callers such as jobs.
func (s *SubscriptionService) MetricsForWindow(ctx context.Context, w analytics.Window) (analytics.Metrics, error) {
	subs, err := s.repo.ListSubscriptions(ctx, "")
	if err != nil {
		return analytics.Metrics{}, err
	}
	return analytics.ComputeMetrics(subs, w), nil
}

func (s *SubscriptionService) publish(ctx context.Context, routingKey string, body interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, routingKey, body); err != nil {
		s.logger.Warn("failed to publish event", "routing_key", routingKey, "error", err)
	}
}

func subscriptionEvent(sub *domain.Subscription, caller domain.Caller, previous domain.Status, at time.Time) domain.SubscriptionEvent {
	return domain.SubscriptionEvent{
		SubscriptionID: sub.ID,
		OwnerID:        sub.OwnerID,
		ActorID:        caller.UserID,
		Plan:           sub.Plan,
		Status:         sub.Status,
		PreviousStatus: previous,
		TotalPrice:     sub.TotalPrice,
		Timestamp:      at,
	}
}

func sanitizeSubscriptionInput(in domain.CreateSubscriptionInput) domain.CreateSubscriptionInput {
	return domain.CreateSubscriptionInput{
		Name:         security.SanitizeText(in.Name),
		Phone:        security.NormalizePhone(in.Phone),
		Plan:         security.SanitizeText(in.Plan),
		MealTypes:    security.SanitizeStrings(in.MealTypes),
		DeliveryDays: security.SanitizeStrings(in.DeliveryDays),
		Allergies:    security.SanitizeText(in.Allergies),
	}
}

func parsePauseWindow(start, end, startField, endField string) (time.Time, time.Time, error) {
	missing := map[string]any{}
	if start == "" {
		missing[startField] = "is required"
	}
	if end == "" {
		missing[endField] = "is required"
	}
	if len(missing) > 0 {
		return time.Time{}, time.Time{}, ierr.NewError("pause window incomplete").
			WithHint("Please select both pause start and end dates.").
			WithReportableDetails(missing).
			Mark(ierr.ErrValidation)
	}
	s, err := domain.ParseDate(startField, start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := domain.ParseDate(endField, end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return s, e, nil
}
