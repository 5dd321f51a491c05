package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seacatering/subscription-service/internal/clock"
	"github.com/seacatering/subscription-service/internal/domain"
	ierr "github.com/seacatering/subscription-service/internal/errors"
	"github.com/seacatering/subscription-service/internal/security"
)

type stubProvider struct {
	password string
	calls    int
	fullName string
}

func (p *stubProvider) SignUp(_ context.Context, email, _, fullName string) (*domain.Session, error) {
	p.calls++
	p.fullName = fullName
	if email == "taken@example.com" {
		return nil, errors.New("user already registered")
	}
	return &domain.Session{UserID: "new-user", Email: email}, nil
}

func (p *stubProvider) SignIn(_ context.Context, email, password string) (*domain.Session, error) {
	p.calls++
	if password != p.password {
		return nil, errors.New("invalid login credentials")
	}
	return &domain.Session{UserID: "user-1", Email: email, AccessToken: "token"}, nil
}

func newAuthFixture() (*AuthService, *stubProvider, *clock.Fake) {
	clk := clock.NewFake(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	limiter := security.NewAttemptLimiter(security.NewMemoryAttemptStore(), clk, security.DefaultMaxAttempts, security.DefaultWindow, nil)
	provider := &stubProvider{password: "Str0ng!pass"}
	return NewAuthService(provider, limiter, nil), provider, clk
}

func TestSignInLockout(t *testing.T) {
	svc, provider, clk := newAuthFixture()
	ctx := context.Background()
	in := domain.SignInInput{Email: "Customer@Example.com", Password: "wrong"}

	for i := 0; i < security.DefaultMaxAttempts; i++ {
		_, err := svc.SignIn(ctx, in)
		require.Error(t, err)
		assert.True(t, ierr.IsAuthentication(err), "attempt %d", i+1)
		assert.Equal(t, "Invalid email or password.", ierr.DisplayMessage(err, ""))
	}

	// sixth attempt is rejected before reaching the provider, even with the right password
	_, err := svc.SignIn(ctx, domain.SignInInput{Email: "customer@example.com", Password: "Str0ng!pass"})
	require.Error(t, err)
	assert.True(t, ierr.IsSecurityToken(err))
	assert.Equal(t, security.DefaultMaxAttempts, provider.calls)

	clk.Advance(security.DefaultWindow + time.Second)
	session, err := svc.SignIn(ctx, domain.SignInInput{Email: "customer@example.com", Password: "Str0ng!pass"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
}

func TestSignInSuccessClearsAttempts(t *testing.T) {
	svc, _, _ := newAuthFixture()
	ctx := context.Background()

	for i := 0; i < security.DefaultMaxAttempts-1; i++ {
		_, err := svc.SignIn(ctx, domain.SignInInput{Email: "a@example.com", Password: "wrong"})
		require.Error(t, err)
	}
	_, err := svc.SignIn(ctx, domain.SignInInput{Email: "a@example.com", Password: "Str0ng!pass"})
	require.NoError(t, err)

	for i := 0; i < security.DefaultMaxAttempts; i++ {
		_, err := svc.SignIn(ctx, domain.SignInInput{Email: "a@example.com", Password: "wrong"})
		assert.True(t, ierr.IsAuthentication(err), "attempt %d after reset", i+1)
	}
}

func TestSignUpValidation(t *testing.T) {
	tests := []struct {
		name  string
		in    domain.SignUpInput
		field string
	}{
		{name: "bad email", in: domain.SignUpInput{FullName: "Budi", Email: "not-an-email", Password: "Str0ng!pass"}, field: "email"},
		{name: "weak password", in: domain.SignUpInput{FullName: "Budi", Email: "budi@example.com", Password: "password"}, field: "password"},
		{name: "missing name", in: domain.SignUpInput{Email: "budi@example.com", Password: "Str0ng!pass"}, field: "full_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, provider, _ := newAuthFixture()
			_, err := svc.SignUp(context.Background(), tt.in)
			if err == nil || !ierr.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := ierr.ReportableDetails(err)[tt.field]; !ok {
				t.Fatalf("expected details for %q, got %v", tt.field, ierr.ReportableDetails(err))
			}
			if provider.calls != 0 {
				t.Fatalf("provider should not be called on invalid input")
			}
		})
	}
}

func TestSignUp(t *testing.T) {
	svc, provider, _ := newAuthFixture()
	ctx := context.Background()

	session, err := svc.SignUp(ctx, domain.SignUpInput{FullName: "  Budi <b>Santoso</b> ", Email: " Budi@Example.com ", Password: "Str0ng!pass"})
	require.NoError(t, err)
	assert.Equal(t, "budi@example.com", session.Email)
	assert.Equal(t, "Budi bSantoso/b", provider.fullName)

	_, err = svc.SignUp(ctx, domain.SignUpInput{FullName: "Budi", Email: "taken@example.com", Password: "Str0ng!pass"})
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}
