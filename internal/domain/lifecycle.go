package domain

import (
	"slices"
	"time"

	ierr "github.com/seacatering/subscription-service/internal/errors"
)

// Event is a lifecycle action requested on a subscription.
type Event string

const (
	EventPause      Event = "pause"
	EventResume     Event = "resume"
	EventCancel     Event = "cancel"
	EventReactivate Event = "reactivate"
)

type transition struct {
	From  Status
	Event Event
}

// transitions is the complete lifecycle table. Anything absent is rejected.
var transitions = map[transition]Status{
	{StatusActive, EventPause}:         StatusPaused,
	{StatusPaused, EventResume}:        StatusActive,
	{StatusActive, EventCancel}:        StatusCancelled,
	{StatusPaused, EventCancel}:        StatusCancelled,
	{StatusCancelled, EventReactivate}: StatusActive,
}

// NextStatus returns the state reached by applying ev in from.
func NextStatus(from Status, ev Event) (Status, bool) {
	to, ok := transitions[transition{from, ev}]
	return to, ok
}

// AllowedEvents returns the events legal in from, sorted for stable output.
func AllowedEvents(from Status) []Event {
	events := make([]Event, 0, 2)
	for t := range transitions {
		if t.From == from {
			events = append(events, t.Event)
		}
	}
	slices.Sort(events)
	return events
}

// EventFor maps a requested target status onto the event that reaches it from from.
func EventFor(from, to Status) (Event, bool) {
	for t, target := range transitions {
		if t.From == from && target == to {
			return t.Event, true
		}
	}
	return "", false
}

// Pause moves an active subscription into a pause window. start and end are
// calendar dates; today is the current date in the business timezone.
func (s *Subscription) Pause(start, end, today time.Time) error {
	to, err := s.next(EventPause)
	if err != nil {
		return err
	}
	start, end, today = Day(start), Day(end), Day(today)
	if !start.Before(end) {
		return ierr.NewError("pause start must be before pause end").
			WithHint("End date must be after start date.").
			WithReportableDetails(map[string]any{"pause_end_date": "must be after start date"}).
			Mark(ierr.ErrValidation)
	}
	if start.Before(today) {
		return ierr.NewError("pause start is in the past").
			WithHint("Pause cannot start in the past.").
			WithReportableDetails(map[string]any{"pause_start_date": "must be today or later"}).
			Mark(ierr.ErrValidation)
	}

	s.Status = to
	s.PauseStart = &start
	s.PauseEnd = &end
	return nil
}

// Resume returns a paused subscription to active and clears the pause window.
func (s *Subscription) Resume() error {
	to, err := s.next(EventResume)
	if err != nil {
		return err
	}
	s.Status = to
	s.PauseStart = nil
	s.PauseEnd = nil
	return nil
}

// Cancel ends an active or paused subscription.
func (s *Subscription) Cancel(now time.Time) error {
	to, err := s.next(EventCancel)
	if err != nil {
		return err
	}
	now = now.UTC()
	s.Status = to
	s.CancelledAt = &now
	s.PauseStart = nil
	s.PauseEnd = nil
	return nil
}

// Reactivate brings a cancelled subscription back to active. ReactivatedAt is
// a historical marker and is only ever overwritten by a later reactivation.
func (s *Subscription) Reactivate(now time.Time) error {
	to, err := s.next(EventReactivate)
	if err != nil {
		return err
	}
	now = now.UTC()
	s.Status = to
	s.ReactivatedAt = &now
	s.CancelledAt = nil
	return nil
}

func (s *Subscription) next(ev Event) (Status, error) {
	to, ok := NextStatus(s.Status, ev)
	if !ok {
		return "", ierr.NewError("transition not allowed").
			WithHintf("Cannot %s a subscription that is %s.", ev, s.Status).
			WithReportableDetails(map[string]any{
				"status":  string(s.Status),
				"event":   string(ev),
				"allowed": AllowedEvents(s.Status),
			}).
			Mark(ierr.ErrInvalidTransition)
	}
	return to, nil
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar date in loc as midnight UTC.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Day(now.In(loc))
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, ierr.WithError(err).
			WithHintf("%s must be a date in YYYY-MM-DD format.", field).
			WithReportableDetails(map[string]any{field: "invalid date"}).
			Mark(ierr.ErrValidation)
	}
	return t, nil
}
