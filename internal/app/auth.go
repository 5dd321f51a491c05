package app

import (
	"context"
	"log/slog"

	"github.com/seacatering/subscription-service/internal/domain"
	ierr "github.com/seacatering/subscription-service/internal/errors"
	"github.com/seacatering/subscription-service/internal/security"
	"github.com/seacatering/subscription-service/internal/validator"
)

// AuthProvider is the hosted identity service credentials are forwarded to.
type AuthProvider interface {
	SignUp(ctx context.Context, email, password, fullName string) (*domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
}

// AuthService validates credentials locally, throttles attempts per email
// and forwards them to the auth provider.
type AuthService struct {
	provider AuthProvider
	limiter  Limiter
	logger   *slog.Logger
}

func NewAuthService(provider AuthProvider, limiter Limiter, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{provider: provider, limiter: limiter, logger: logger}
}

// SignUp registers a new account. The attempt counter for the email is
// cleared once the provider accepts it.
func (s *AuthService) SignUp(ctx context.Context, in domain.SignUpInput) (*domain.Session, error) {
	in.FullName = security.SanitizeText(in.FullName)
	in.Email = security.SanitizeEmail(in.Email)
	if err := validator.ValidateRequest(in); err != nil {
		return nil, err
	}
	if err := validator.ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := validator.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	key := security.AuthKey(in.Email)
	if err := s.limiter.Allow(ctx, key); err != nil {
		return nil, err
	}

	session, err := s.provider.SignUp(ctx, in.Email, in.Password, in.FullName)
	if err != nil {
		s.logger.Warn("sign up rejected by provider", "email", in.Email, "error", err)
		return nil, ierr.WithError(err).
			WithHint("Could not create the account. The email may already be registered.").
			WithReportableDetails(map[string]any{"email": "could not be registered"}).
			Mark(ierr.ErrValidation)
	}

	s.clear(ctx, key)
	s.logger.Info("user signed up", "user_id", session.UserID)
	return session, nil
}

// SignIn exchanges credentials for a session.
func (s *AuthService) SignIn(ctx context.Context, in domain.SignInInput) (*domain.Session, error) {
	in.Email = security.SanitizeEmail(in.Email)
	if err := validator.ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, ierr.NewError("password missing").
			WithHint("Please enter your password.").
			WithReportableDetails(map[string]any{"password": "is required"}).
			Mark(ierr.ErrValidation)
	}

	key := security.AuthKey(in.Email)
	if err := s.limiter.Allow(ctx, key); err != nil {
		return nil, err
	}

	session, err := s.provider.SignIn(ctx, in.Email, in.Password)
	if err != nil {
		s.logger.Warn("sign in rejected by provider", "email", in.Email, "error", err)
		return nil, ierr.WithError(err).
			WithHint("Invalid email or password.").
			Mark(ierr.ErrAuthentication)
	}

	s.clear(ctx, key)
	s.logger.Info("user signed in", "user_id", session.UserID)
	return session, nil
}

func (s *AuthService) clear(ctx context.Context, key string) {
	if err := s.limiter.Reset(ctx, key); err != nil {
		s.logger.Warn("reset auth limiter failed", "key", key, "error", err)
	}
}
