// Package userclient calls the user service's internal API. Each call
// carries the shared service secret and a fixed timeout; nothing is retried.
package userclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/linkup/linkup/backend/go-services/internal/models"
)

// SecretHeader authenticates service-to-service calls.
const SecretHeader = "x-service-secret"

// Internal API paths, shared with the server side.
const (
	PathGetUser       = "/internal/v1/users/lookup"
	PathGetUsers      = "/internal/v1/users/batch"
	PathConnectionIDs = "/internal/v1/users/connections"
	PathCredentials   = "/internal/v1/auth/credentials"
	PathRegister      = "/internal/v1/auth/register"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already exist")
	ErrUnauthorized = errors.New("service secret rejected")
	ErrBadRequest   = errors.New("invalid arguments")
)

// Wire payloads.
type (
	UserRequest struct {
		UserID string `json:"userID"`
	}
	UserResponse struct {
		User models.UserSummary `json:"user"`
	}
	UsersRequest struct {
		UserIDs []string `json:"userIDs"`
	}
	UsersResponse struct {
		Users []models.UserSummary `json:"users"`
	}
	ConnectionIDsResponse struct {
		UserIDs []string `json:"userIDs"`
	}
	CredentialsRequest struct {
		Email string `json:"email"`
	}
	RegisterRequest struct {
		Name           string `json:"name"`
		Email          string `json:"email"`
		HashedPassword string `json:"hashedPassword"`
	}
	RegisterResponse struct {
		UserID string `json:"userID"`
	}
	ErrorResponse struct {
		Error string `json:"error"`
	}
)

type Client struct {
	baseURL string
	secret  string
	timeout time.Duration
	http    *http.Client
}

// New builds a client; a zero timeout means 5s.
func New(baseURL, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{baseURL: baseURL, secret: secret, timeout: timeout, http: &http.Client{}}
}

func (c *Client) GetUser(ctx context.Context, userID string) (models.UserSummary, error) {
	var out UserResponse
	err := c.call(ctx, PathGetUser, UserRequest{UserID: userID}, &out)
	return out.User, err
}

// GetUsers resolves display info for ids. Unknown ids are simply absent.
func (c *Client) GetUsers(ctx context.Context, userIDs []string) ([]models.UserSummary, error) {
	if len(userIDs) == 0 {
		return []models.UserSummary{}, nil
	}
	var out UsersResponse
	if err := c.call(ctx, PathGetUsers, UsersRequest{UserIDs: userIDs}, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) ConnectionIDs(ctx context.Context, userID string) ([]string, error) {
	var out ConnectionIDsResponse
	if err := c.call(ctx, PathConnectionIDs, UserRequest{UserID: userID}, &out); err != nil {
		return nil, err
	}
	return out.UserIDs, nil
}

func (c *Client) Credentials(ctx context.Context, email string) (models.Credentials, error) {
	var out models.Credentials
	err := c.call(ctx, PathCredentials, CredentialsRequest{Email: email}, &out)
	return out, err
}

func (c *Client) RegisterUser(ctx context.Context, name, email, hashedPassword string) (string, error) {
	var out RegisterResponse
	err := c.call(ctx, PathRegister, RegisterRequest{Name: name, Email: email, HashedPassword: hashedPassword}, &out)
	return out.UserID, err
}

func (c *Client) call(ctx context.Context, path string, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("user service %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrEmailTaken
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusBadRequest:
		return ErrBadRequest
	}
	var e ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&e)
	return fmt.Errorf("user service %s: status %d: %s", path, resp.StatusCode, e.Error)
}
