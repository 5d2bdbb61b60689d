package supabase

import "time"

// User is an identity record from /auth/v1.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// DisplayName returns the display name stored in user metadata.
func (u *User) DisplayName() string {
	for _, key := range []string{"display_name", "full_name", "name"} {
		if v, ok := u.UserMetadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Session is an auth session.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// SignUpRequest is the registration payload.
type SignUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}
