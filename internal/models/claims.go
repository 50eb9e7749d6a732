package models

// Role is the authorization role the backend assigns to a principal.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Claims is the identity of a signed-in principal as returned by the
// /auth/me and /auth/verify endpoints.
type Claims struct {
	SubjectID    string  `json:"id"`
	Email        string  `json:"email"`
	DisplayName  *string `json:"full_name,omitempty"`
	AvatarRef    *string `json:"avatar_url,omitempty"`
	Organization *string `json:"organization,omitempty"`
	Role         Role    `json:"role"`
	IsActive     bool    `json:"is_active"`
}

// IsAdmin returns true if the principal holds the admin role.
func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Name returns the display name, falling back to the email address.
func (c *Claims) Name() string {
	if c.DisplayName != nil && *c.DisplayName != "" {
		return *c.DisplayName
	}
	return c.Email
}

// TokenBundle is the credential exchange response from /auth/login.
type TokenBundle struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
