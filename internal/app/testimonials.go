package app

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/seacatering/subscription-service/internal/clock"
	"github.com/seacatering/subscription-service/internal/domain"
	"github.com/seacatering/subscription-service/internal/security"
	"github.com/seacatering/subscription-service/internal/validator"
)

// TestimonialRepository defines the testimonial storage the service needs.
type TestimonialRepository interface {
	CreateTestimonial(ctx context.Context, t *domain.Testimonial) error
	ListTestimonials(ctx context.Context, filter domain.TestimonialFilter) ([]*domain.Testimonial, error)
	ApproveTestimonial(ctx context.Context, id uuid.UUID) (*domain.Testimonial, error)
}

// TestimonialService handles customer reviews and their moderation.
type TestimonialService struct {
	repo      TestimonialRepository
	publisher EventPublisher
	clock     clock.Clock
	logger    *slog.Logger
}

func NewTestimonialService(repo TestimonialRepository, publisher EventPublisher, clk clock.Clock, logger *slog.Logger) *TestimonialService {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TestimonialService{repo: repo, publisher: publisher, clock: clk, logger: logger}
}

// Submit stores a testimonial awaiting approval.
func (s *TestimonialService) Submit(ctx context.Context, caller domain.Caller, in domain.CreateTestimonialInput) (*domain.Testimonial, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}

	in.Name = security.SanitizeText(in.Name)
	in.Message = security.SanitizeText(in.Message)
	in.Location = security.SanitizeText(in.Location)
	if err := validator.ValidateRequest(in); err != nil {
		return nil, err
	}
	if in.Location == "" {
		in.Location = domain.DefaultTestimonialLocation
	}

	t := &domain.Testimonial{
		ID:        uuid.New(),
		OwnerID:   caller.UserID,
		Name:      in.Name,
		Message:   in.Message,
		Rating:    in.Rating,
		Location:  in.Location,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.CreateTestimonial(ctx, t); err != nil {
		s.logger.Error("create testimonial failed", "user_id", caller.UserID, "error", err)
		return nil, err
	}

	s.logger.Info("testimonial submitted", "testimonial_id", t.ID, "user_id", t.OwnerID, "rating", t.Rating)
	if s.publisher != nil {
		ev := domain.TestimonialEvent{TestimonialID: t.ID, OwnerID: t.OwnerID, Rating: t.Rating, Timestamp: t.CreatedAt}
		if err := s.publisher.Publish(ctx, domain.RoutingTestimonialSubmitted, ev); err != nil {
			s.logger.Warn("failed to publish event", "routing_key", domain.RoutingTestimonialSubmitted, "error", err)
		}
	}
	return t, nil
}

// ListApproved returns the testimonials shown publicly.
func (s *TestimonialService) ListApproved(ctx context.Context) ([]*domain.Testimonial, error) {
	return s.repo.ListTestimonials(ctx, domain.TestimonialFilter{ApprovedOnly: true})
}

// ListMine returns the caller's own testimonials, approved or not.
func (s *TestimonialService) ListMine(ctx context.Context, caller domain.Caller) ([]*domain.Testimonial, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	return s.repo.ListTestimonials(ctx, domain.TestimonialFilter{OwnerID: caller.UserID})
}

// ListAll returns every testimonial for moderation.
func (s *TestimonialService) ListAll(ctx context.Context, caller domain.Caller) ([]*domain.Testimonial, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return s.repo.ListTestimonials(ctx, domain.TestimonialFilter{})
}

// Approve publishes a testimonial on the marketing site.
func (s *TestimonialService) Approve(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.Testimonial, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	t, err := s.repo.ApproveTestimonial(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("testimonial approved", "testimonial_id", t.ID, "actor_id", caller.UserID)
	return t, nil
}
