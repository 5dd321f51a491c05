/**
 * @description
 * This package forwards sign-up and sign-in requests to a Supabase project's
 * GoTrue endpoint and maps the response onto a domain session.
 *
 * @dependencies
 * - github.com/nedpals/supabase-go: Supabase REST/Auth client.
 */
package supabaseauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/nedpals/supabase-go"

	"github.com/seacatering/subscription-service/internal/domain"
)

// Client implements the auth provider port on top of Supabase Auth.
type Client struct {
	client *supabase.Client
}

// New creates a client for the project at baseURL using its anon key.
func New(baseURL, anonKey string) (*Client, error) {
	if baseURL == "" || anonKey == "" {
		return nil, errors.New("supabase url and anon key are required")
	}
	client := supabase.CreateClient(baseURL, anonKey)
	if client == nil {
		return nil, errors.New("failed to create Supabase client")
	}
	return &Client{client: client}, nil
}

// SignUp registers the account with the full name stored as user metadata.
// Projects with email confirmation enabled return no session until the
// address is confirmed.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (*domain.Session, error) {
	user, err := c.client.Auth.SignUp(ctx, supabase.UserCredentials{
		Email:    email,
		Password: password,
		Data:     signUpMetadata(fullName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}
	return &domain.Session{UserID: user.ID, Email: user.Email}, nil
}

// signUpMetadata is stored in the new user's user_metadata. Roles granted
// by the service are read from app_metadata, so the role here is informative.
func signUpMetadata(fullName string) map[string]interface{} {
	return map[string]interface{}{
		"full_name": fullName,
		"role":      string(domain.RoleUser),
	}
}

// SignIn exchanges a password for an access token.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	details, err := c.client.Auth.SignIn(ctx, supabase.UserCredentials{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}
	return &domain.Session{
		UserID:       details.User.ID,
		Email:        details.User.Email,
		AccessToken:  details.AccessToken,
		RefreshToken: details.RefreshToken,
		ExpiresIn:    details.ExpiresIn,
	}, nil
}
