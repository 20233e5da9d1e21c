package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OAuthCredentials are the client credentials for a refresh-token exchange.
// They live in the integration's config, next to the provider settings.
type OAuthCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Token is the result of a refresh-token exchange. RefreshToken is empty when
// the provider did not rotate it.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenRefresher exchanges refresh tokens for fresh access tokens at a
// standard OAuth2 token endpoint.
type TokenRefresher struct {
	client   *http.Client
	tokenURL string
}

// NewTokenRefresher creates a refresher for the given token endpoint.
func NewTokenRefresher(client *http.Client, tokenURL string) *TokenRefresher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &TokenRefresher{client: client, tokenURL: tokenURL}
}

// Refresh performs the refresh_token grant.
func (r *TokenRefresher) Refresh(ctx context.Context, creds OAuthCredentials, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("no refresh token available")
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var parsed struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return nil, fmt.Errorf("token response contained no access token")
	}

	token := &Token{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
	}
	if parsed.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().UTC().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	}
	return token, nil
}
