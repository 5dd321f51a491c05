package store

import (
	ierr "github.com/seacatering/subscription-service/internal/errors"
)

var (
	ErrSubscriptionNotFound = ierr.NewError("subscription not found").
				WithHint("Subscription not found.").
				Mark(ierr.ErrNotFound)
	ErrTestimonialNotFound = ierr.NewError("testimonial not found").
				WithHint("Testimonial not found.").
				Mark(ierr.ErrNotFound)
	ErrStaleVersion = ierr.NewError("subscription was modified concurrently").
			WithHint("This subscription was changed by someone else. Reload it and try again.").
			Mark(ierr.ErrVersionConflict)
)

// persistenceError wraps a driver failure. The driver message stays internal.
func persistenceError(err error, op string) error {
	return ierr.WithError(err).
		WithMessage(op).
		WithHint("Something went wrong while saving your data. Please try again.").
		Mark(ierr.ErrPersistence)
}
