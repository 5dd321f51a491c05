/**
 * @description
 * This file defines the core Subscription model that maps to the
 * subscriptions table, its status enum and the request DTOs used by the
 * service layer.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCancelled:
		return true
	}
	return false
}

// DateLayout is the wire format for calendar dates (pause window, metric window).
const DateLayout = "2006-01-02"

// Subscription is a customer's meal subscription.
// TotalPrice is a snapshot taken at creation and never recomputed.
type Subscription struct {
	ID            uuid.UUID     `json:"id"`
	OwnerID       string        `json:"user_id"`
	Name          string        `json:"name"`
	Phone         string        `json:"phone"`
	Plan          PlanID        `json:"plan"`
	MealTypes     []MealType    `json:"meal_types"`
	DeliveryDays  []DeliveryDay `json:"delivery_days"`
	Allergies     *string       `json:"allergies,omitempty"`
	TotalPrice    int64         `json:"total_price"`
	Status        Status        `json:"status"`
	PauseStart    *time.Time    `json:"pause_start_date,omitempty"`
	PauseEnd      *time.Time    `json:"pause_end_date,omitempty"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
	ReactivatedAt *time.Time    `json:"reactivated_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Version       int64         `json:"version"`
}

// OwnedBy reports whether userID owns the subscription.
func (s *Subscription) OwnedBy(userID string) bool {
	return userID != "" && s.OwnerID == userID
}

// Clone returns a deep copy so a failed transition can be discarded.
func (s *Subscription) Clone() *Subscription {
	c := *s
	c.MealTypes = append([]MealType(nil), s.MealTypes...)
	c.DeliveryDays = append([]DeliveryDay(nil), s.DeliveryDays...)
	c.Allergies = cloneString(s.Allergies)
	c.PauseStart = cloneTime(s.PauseStart)
	c.PauseEnd = cloneTime(s.PauseEnd)
	c.CancelledAt = cloneTime(s.CancelledAt)
	c.ReactivatedAt = cloneTime(s.ReactivatedAt)
	return &c
}

// CreateSubscriptionInput is the checkout form payload.
type CreateSubscriptionInput struct {
	Name         string   `json:"name" validate:"required,min=2,max=50"`
	Phone        string   `json:"phone" validate:"required,idphone"`
	Plan         string   `json:"plan" validate:"required,plan"`
	MealTypes    []string `json:"meal_types" validate:"required,min=1,dive,mealtype"`
	DeliveryDays []string `json:"delivery_days" validate:"required,min=1,dive,weekday"`
	Allergies    string   `json:"allergies" validate:"max=500"`
}

// UpdateStatusInput requests a direct status change. PauseStart and PauseEnd
// are required when Status is paused.
type UpdateStatusInput struct {
	Status     Status `json:"status" validate:"required,oneof=active paused cancelled"`
	PauseStart string `json:"pause_start_date,omitempty"`
	PauseEnd   string `json:"pause_end_date,omitempty"`
}

// PauseInput carries the requested pause window as YYYY-MM-DD dates.
type PauseInput struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// QuoteInput is a live price request.
type QuoteInput struct {
	Plan         string   `json:"plan"`
	MealTypes    []string `json:"meal_types"`
	DeliveryDays []string `json:"delivery_days"`
}

// Quote is a priced, normalized selection.
type Quote struct {
	Plan           PlanID        `json:"plan"`
	MealTypes      []MealType    `json:"meal_types"`
	DeliveryDays   []DeliveryDay `json:"delivery_days"`
	TotalPrice     int64         `json:"total_price"`
	FormattedPrice string        `json:"formatted_price"`
	Complete       bool          `json:"complete"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
