package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mkarpov/gatekeeper/internal/common"
)

// Client talks to the gatekeeper HTTP API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	accessToken string
}

// NewClient constructs a Client for the API at baseURL (for example
// "http://localhost:8080").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Tokens is the token pair returned by authentication endpoints.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type authResponse struct {
	Tokens Tokens `json:"tokens"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// SetAccessToken makes subsequent requests carry a bearer token.
func (c *Client) SetAccessToken(token string) {
	c.accessToken = token
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var e errorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("server: %s (%d)", e.Error, resp.StatusCode)
		}
		return fmt.Errorf("server: status %d", resp.StatusCode)
	}

	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

// Ping checks server liveness.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ping", nil, nil)
}

// Register creates an account and returns its first token pair.
func (c *Client) Register(ctx context.Context, username, email, password string) (*Tokens, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Tokens, nil
}

// Login authenticates with an email or username plus password.
func (c *Client) Login(ctx context.Context, login, password string) (*Tokens, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"login":    login,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Tokens, nil
}

// Refresh exchanges a refresh secret for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Tokens, nil
}

// Logout revokes the session behind the refresh secret.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", map[string]string{
		"refresh_token": refreshToken,
	}, nil)
}
