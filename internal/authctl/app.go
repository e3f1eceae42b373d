// Package authctl implements the admin CLI for the auth server: account
// provisioning over the /auth/v1/users endpoint and a health check.
package authctl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type App struct {
	baseURL    string
	adminToken string
	client     *http.Client

	in  *bufio.Reader
	out io.Writer
}

func NewApp(baseURL, adminToken string, in io.Reader, out io.Writer) *App {
	return &App{
		baseURL:    baseURL,
		adminToken: adminToken,
		client:     &http.Client{Timeout: 10 * time.Second},
		in:         bufio.NewReader(in),
		out:        out,
	}
}

// Run dispatches a single subcommand: "create-user" (default) or "health".
func (a *App) Run(ctx context.Context, command string) error {
	switch command {
	case "", "create-user":
		return a.CreateUser(ctx)
	case "health":
		return a.Health(ctx)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createUserResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
}

type errorBody struct {
	Error   string `json:"error"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// CreateUser prompts for the account details and provisions the account with
// the admin bearer token. The password is read without echo and confirmed.
func (a *App) CreateUser(ctx context.Context) error {
	username, err := GetSimpleText(a.in, "Username", a.out)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.in, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out, "Enter password: ")
	if err != nil {
		return err
	}
	confirm, err := GetPassword(a.out, "Repeat password: ")
	if err != nil {
		return err
	}
	if !bytes.Equal(password, confirm) {
		return fmt.Errorf("passwords do not match")
	}

	body, err := json.Marshal(createUserRequest{
		Username: username,
		Email:    email,
		Password: string(password),
	})
	if err != nil {
		return err
	}

	target, err := url.JoinPath(a.baseURL, "auth/v1/users")
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.adminToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		var remote errorBody
		if json.NewDecoder(resp.Body).Decode(&remote) == nil && remote.Message != "" {
			return fmt.Errorf("server refused: %s", remote.Message)
		}
		return fmt.Errorf("server refused: status %d", resp.StatusCode)
	}

	var created createUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return fmt.Errorf("invalid server response: %w", err)
	}
	fmt.Fprintf(a.out, "created user %s\n", created.Username)
	return nil
}

// Health probes the server's health endpoint.
func (a *App) Health(ctx context.Context) error {
	target, err := url.JoinPath(a.baseURL, "auth/v1/health")
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("invalid server response: %w", err)
	}
	if health.Status != "ok" {
		return fmt.Errorf("server unhealthy: %q", health.Status)
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}
