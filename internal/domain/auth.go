package domain

// SignUpInput is the registration form payload.
type SignUpInput struct {
	FullName string `json:"full_name" validate:"required,min=2,max=50"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInInput is the login form payload.
type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is what the hosted auth provider hands back after a successful sign-in.
// AccessToken is empty when sign-up requires email confirmation first.
type Session struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}
