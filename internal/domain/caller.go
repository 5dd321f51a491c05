package domain

// Role is the capability level carried by an authenticated caller.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Caller is the verified identity behind a request. It is passed explicitly
// into every service operation.
type Caller struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   Role   `json:"role"`
}

func (c Caller) Authenticated() bool {
	return c.UserID != ""
}

func (c Caller) IsAdmin() bool {
	return c.Authenticated() && c.Role == RoleAdmin
}

// CanAccess reports whether the caller may read or mutate a record owned by ownerID.
func (c Caller) CanAccess(ownerID string) bool {
	if !c.Authenticated() {
		return false
	}
	return c.IsAdmin() || c.UserID == ownerID
}
