package auth

import (
	"context"
	"fmt"

	"github.com/applytrak/applytrak/internal/supabase"
	"github.com/applytrak/applytrak/internal/types"
)

// SupabaseProvider is a Provider backed by the hosted backend's auth API.
type SupabaseProvider struct {
	client     *supabase.Client
	redirectTo string
}

// NewSupabaseProvider creates a provider. redirectTo is the password reset landing page.
func NewSupabaseProvider(client *supabase.Client, redirectTo string) *SupabaseProvider {
	return &SupabaseProvider{client: client, redirectTo: redirectTo}
}

func toAuthUser(u *supabase.User) types.AuthUser {
	if u == nil {
		return types.AuthUser{}
	}
	return types.AuthUser{
		ID:            u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName(),
		EmailVerified: u.EmailConfirmedAt != nil,
	}
}

func toSession(s *supabase.Session) (*Session, error) {
	if s.User == nil {
		return nil, fmt.Errorf("auth response has no user")
	}
	return &Session{AccessToken: s.AccessToken, User: toAuthUser(s.User)}, nil
}

func (p *SupabaseProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	s, err := p.client.Auth().SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return toSession(s)
}

func (p *SupabaseProvider) SignUp(ctx context.Context, email, password, displayName string) (*Session, error) {
	s, err := p.client.Auth().SignUp(ctx, supabase.SignUpRequest{
		Email:    email,
		Password: password,
		Data:     map[string]any{"display_name": displayName},
	})
	if err != nil {
		return nil, err
	}
	return toSession(s)
}

func (p *SupabaseProvider) ResetPassword(ctx context.Context, email string) error {
	return p.client.Auth().ResetPasswordForEmail(ctx, email, p.redirectTo)
}

func (p *SupabaseProvider) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return p.client.Auth().SignOut(ctx, accessToken)
}

func (p *SupabaseProvider) GetUser(ctx context.Context, accessToken string) (*types.AuthUser, error) {
	u, err := p.client.Auth().GetUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	user := toAuthUser(u)
	return &user, nil
}

// SupabaseProfiles writes profile rows and consents through PostgREST.
type SupabaseProfiles struct {
	client *supabase.Client
}

// NewSupabaseProfiles creates a Profiles backed by client.
func NewSupabaseProfiles(client *supabase.Client) *SupabaseProfiles {
	return &SupabaseProfiles{client: client}
}

func (p *SupabaseProfiles) UpsertProfile(ctx context.Context, s Session, consents types.PrivacyConsents) error {
	data := p.client.ForUser(s.AccessToken, s.User.ID)
	if err := data.UpsertProfile(ctx, s.User.Email, s.User.DisplayName); err != nil {
		return err
	}
	return data.SaveConsents(ctx, consents)
}
