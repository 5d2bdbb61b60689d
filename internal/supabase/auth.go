package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// AuthClient handles identity operations.
type AuthClient struct {
	client *Client
}

// SignUp registers a user. When the project requires email confirmation the backend answers
// with the bare user; the returned session then has no access token.
func (a *AuthClient) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, status, err := a.client.request(ctx, http.MethodPost, a.client.authURL+"/signup", body, nil, "")
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, parseError(respBody, status)
	}

	var session Session
	if err := json.Unmarshal(respBody, &session); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if session.AccessToken == "" && session.User == nil {
		var user User
		if err := json.Unmarshal(respBody, &user); err != nil {
			return nil, fmt.Errorf("unmarshal user: %w", err)
		}
		session.User = &user
	}
	return &session, nil
}

// SignInWithPassword authenticates with email and password.
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, status, err := a.client.request(ctx, http.MethodPost, a.client.authURL+"/token?grant_type=password", body, nil, "")
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, parseError(respBody, status)
	}

	var session Session
	if err := json.Unmarshal(respBody, &session); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &session, nil
}

// ResetPasswordForEmail sends a recovery email. redirectTo may be empty.
func (a *AuthClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	endpoint := a.client.authURL + "/recover"
	if redirectTo != "" {
		endpoint += "?redirect_to=" + url.QueryEscape(redirectTo)
	}

	respBody, status, err := a.client.request(ctx, http.MethodPost, endpoint, body, nil, "")
	if err != nil {
		return err
	}
	if status >= 400 {
		return parseError(respBody, status)
	}
	return nil
}

// SignOut revokes the session behind accessToken.
func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	respBody, status, err := a.client.request(ctx, http.MethodPost, a.client.authURL+"/logout", nil, nil, accessToken)
	if err != nil {
		return err
	}
	if status >= 400 {
		return parseError(respBody, status)
	}
	return nil
}

// GetUser returns the user owning accessToken.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	respBody, status, err := a.client.request(ctx, http.MethodGet, a.client.authURL+"/user", nil, nil, accessToken)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, parseError(respBody, status)
	}

	var user User
	if err := json.Unmarshal(respBody, &user); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &user, nil
}
