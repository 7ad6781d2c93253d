// Package client is the Go API client for the GreedAdvisor HTTP API. It owns
// the access token and transparently refreshes it once when a request comes
// back 401, mirroring the behavior expected of browser clients.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
)

// ErrAuthExpired is returned when the access token is rejected and the
// refresh round-trip fails too; the caller must log in again.
var ErrAuthExpired = errors.New("authentication expired")

type Client struct {
	baseURL string
	http    *http.Client

	mu          sync.Mutex
	accessToken string
}

type User struct {
	ID             int64   `json:"id"`
	Email          string  `json:"email"`
	FirstName      *string `json:"firstName"`
	LastName       *string `json:"lastName"`
	ProfilePicture *string `json:"profilePicture"`
	CreatedAt      string  `json:"createdAt"`
}

type authResult struct {
	AccessToken string `json:"accessToken"`
	User        User   `json:"user"`
}

type apiError struct {
	Error string `json:"error"`
}

// New builds a client against baseURL. The cookie jar carries the httpOnly
// refresh cookie between calls.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}, nil
}

// AccessToken returns the currently held access token, if any.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func (c *Client) setAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *Client) Register(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, "/api/auth/register", email, password, http.StatusCreated)
}

func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, "/api/auth/login", email, password, http.StatusOK)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string, wantStatus int) (*User, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return nil, decodeError(resp)
	}

	var result authResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.setAccessToken(result.AccessToken)
	return &result.User, nil
}

// Logout clears the held token and asks the server to drop the refresh cookie.
func (c *Client) Logout(ctx context.Context) error {
	c.setAccessToken("")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/logout", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return nil
}

// Do performs an authenticated request. On 401 it refreshes the access token
// once and retries; a second 401 is returned to the caller as-is.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	token := c.AccessToken()
	if token == "" {
		return nil, ErrAuthExpired
	}

	resp, err := c.send(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	token, err = c.refresh(ctx)
	if err != nil {
		c.setAccessToken("")
		return nil, ErrAuthExpired
	}

	return c.send(ctx, method, path, body, token)
}

func (c *Client) send(ctx context.Context, method, path string, body any, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return c.http.Do(req)
}

func (c *Client) refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/refresh", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	var result authResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.AccessToken == "" {
		return "", errors.New("refresh response missing access token")
	}

	c.setAccessToken(result.AccessToken)
	return result.AccessToken, nil
}

func decodeError(resp *http.Response) error {
	var apiErr apiError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
	}
	return fmt.Errorf("unexpected status %s", resp.Status)
}
