package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTestimonialLocation is stored when the submitter gives none.
const DefaultTestimonialLocation = "Indonesia"

// Testimonial is a customer review shown on the marketing site once approved.
type Testimonial struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"user_id"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	Rating    int       `json:"rating"`
	Location  string    `json:"location"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateTestimonialInput is the testimonial form payload.
type CreateTestimonialInput struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Message  string `json:"message" validate:"required,min=10,max=500"`
	Rating   int    `json:"rating" validate:"min=1,max=5"`
	Location string `json:"location" validate:"max=100"`
}

// TestimonialFilter narrows a testimonial listing. Zero value lists everything.
type TestimonialFilter struct {
	OwnerID      string
	ApprovedOnly bool
}
