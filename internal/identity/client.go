// Package identity wraps the external identity provider. The provider owns
// all credential state; this service only forwards password sign-up/sign-in
// calls and resolves access tokens to users.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrUnauthorized = errors.New("identity: invalid credentials or token")
	ErrUnavailable  = errors.New("identity: provider unavailable")
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        User   `json:"user"`
}

// Verifier resolves an access token to a user. Satisfied by Client and by the
// Redis-backed cache in front of it.
type Verifier interface {
	UserFromToken(ctx context.Context, token string) (User, error)
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) SignUp(ctx context.Context, email, password string) (Session, error) {
	return c.tokenRequest(ctx, "/signup", email, password)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	return c.tokenRequest(ctx, "/token?grant_type=password", email, password)
}

func (c *Client) UserFromToken(ctx context.Context, token string) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user", nil)
	if err != nil {
		return User{}, err
	}
	c.setHeaders(req)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var u User
		if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
			return User{}, fmt.Errorf("decode user: %w", err)
		}
		if u.ID == "" {
			return User{}, ErrUnauthorized
		}
		return u, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return User{}, ErrUnauthorized
	default:
		return User{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
}

func (c *Client) tokenRequest(ctx context.Context, path, email, password string) (Session, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return Session{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Session{}, err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var s Session
		if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
			return Session{}, fmt.Errorf("decode session: %w", err)
		}
		if s.AccessToken == "" {
			return Session{}, ErrUnauthorized
		}
		return s, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return Session{}, ErrUnauthorized
	default:
		return Session{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
}
