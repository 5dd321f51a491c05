package domain

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys published on the events exchange.
const (
	RoutingSubscriptionCreated     = "subscription.created"
	RoutingSubscriptionPaused      = "subscription.paused"
	RoutingSubscriptionResumed     = "subscription.resumed"
	RoutingSubscriptionCancelled   = "subscription.cancelled"
	RoutingSubscriptionReactivated = "subscription.reactivated"
	RoutingTestimonialSubmitted    = "testimonial.submitted"
	RoutingMetricsDailyDigest      = "metrics.daily_digest"
)

// RoutingKeyFor returns the routing key announcing ev.
func RoutingKeyFor(ev Event) string {
	switch ev {
	case EventPause:
		return RoutingSubscriptionPaused
	case EventResume:
		return RoutingSubscriptionResumed
	case EventCancel:
		return RoutingSubscriptionCancelled
	case EventReactivate:
		return RoutingSubscriptionReactivated
	}
	return "subscription." + string(ev)
}

// SubscriptionEvent is published after a subscription is created or transitions.
type SubscriptionEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	OwnerID        string    `json:"user_id"`
	ActorID        string    `json:"actor_id"`
	Plan           PlanID    `json:"plan"`
	Status         Status    `json:"status"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	TotalPrice     int64     `json:"total_price"`
	Timestamp      time.Time `json:"timestamp"`
}

// TestimonialEvent is published when a testimonial awaits moderation.
type TestimonialEvent struct {
	TestimonialID uuid.UUID `json:"testimonial_id"`
	OwnerID       string    `json:"user_id"`
	Rating        int       `json:"rating"`
	Timestamp     time.Time `json:"timestamp"`
}
