// Package proxy forwards authentication operations to an external auth
// server speaking the same /auth/v1 wire protocol. Every upstream failure is
// normalized into the fop taxonomy with a safe reason code; raw transport
// detail goes to the log, never to the caller.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/starfall-project/authcore/internal/logging"
	"github.com/starfall-project/authcore/internal/server/fop"
	"github.com/starfall-project/authcore/internal/userref"
)

// maxBodySize caps upstream response bodies. An auth response is small; a
// huge body is either a misconfigured target or something hostile.
const maxBodySize = 1 << 20

// Client talks to external auth servers. One Client serves all targets; the
// target base URL travels per call.
type Client struct {
	http   *http.Client
	logger logging.Logger
}

func New(timeout time.Duration, logger logging.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// LoginResult is the normalized outcome of an upstream login.
type LoginResult struct {
	AccessToken string
	TokenType   string
	Server      string
	UserRef     string
}

// RefreshResult is the normalized outcome of an upstream token refresh.
type RefreshResult struct {
	AccessToken string
	TokenType   string
}

// User mirrors the upstream /me payload with the server name attached.
type User struct {
	UID        uint32 `json:"uid"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	IsActive   bool   `json:"is_active"`
	IsVerified bool   `json:"is_verified"`
	Server     string `json:"server"`
}

// Introspection is the normalized outcome of an upstream token introspection.
type Introspection struct {
	Active   bool
	UserRef  string
	UID      uint32
	Username string
	Email    string
	Reason   string
}

type loginRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Server      string `json:"server"`
	UserRef     string `json:"user_ref"`
}

type refreshResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type logoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type meResponse struct {
	Success bool `json:"success"`
	User    User `json:"user"`
}

type introspectRequest struct {
	Token string `json:"token"`
}

type introspectResponse struct {
	Active   bool   `json:"active"`
	UserRef  string `json:"user_ref"`
	UID      uint32 `json:"uid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Reason   string `json:"reason"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// endpoint joins the target base with an /auth/v1 path.
func endpoint(base *url.URL, path string) string {
	s, err := url.JoinPath(base.String(), "auth/v1", path)
	if err != nil {
		return base.String()
	}
	return s
}

// do performs one upstream call and decodes the body into out. Status codes
// outside 2xx become upstream_denied with the remote reason attached; broken
// transport and undecodable bodies get their own reasons.
func (c *Client) do(ctx context.Context, method, target string, body any, bearer string, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fop.Other(fop.ReasonInternal, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fop.Other(fop.ReasonInternal, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn(ctx, "upstream unreachable", "target", target, "error", err)
		return fop.Other(fop.ReasonUpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fop.Other(fop.ReasonUpstreamUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var remote errorResponse
		if json.Unmarshal(data, &remote) == nil && remote.Reason != "" {
			c.logger.Warn(ctx, "upstream denied", "target", target, "status", resp.StatusCode, "reason", remote.Reason)
			return fop.Other(fop.ReasonUpstreamDenied, fmt.Errorf("remote: %s", remote.Reason))
		}
		return fop.Other(fop.ReasonUpstreamDenied, fmt.Errorf("remote status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn(ctx, "upstream returned malformed body", "target", target, "error", err)
		return fop.Other(fop.ReasonUpstreamMalformed, err)
	}
	return nil
}

// Login authenticates against the target and normalizes the returned
// identity.
func (c *Client) Login(ctx context.Context, base *url.URL, id, password string) (LoginResult, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, endpoint(base, "login"), loginRequest{ID: id, Password: password}, "", &resp)
	if err != nil {
		return LoginResult{}, err
	}
	if !resp.Success || resp.AccessToken == "" {
		return LoginResult{}, fop.Other(fop.ReasonUpstreamDenied, fmt.Errorf("login rejected"))
	}

	server := resp.Server
	if server == "" {
		server = base.Hostname()
	}
	return LoginResult{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		Server:      server,
		UserRef:     normalizeRef(server, resp.UserRef),
	}, nil
}

// normalizeRef renders the upstream identity in canonical form when it
// parses, and degrades to "server@raw" when it does not. The raw form stays
// usable as an opaque identity string.
func normalizeRef(server, raw string) string {
	if ref, ok := userref.Parse(raw); ok {
		return ref.String()
	}
	if id, err := uuid.Parse(raw); err == nil {
		return userref.NewExternal(server, id).String()
	}
	return server + "@" + raw
}

// Refresh exchanges a token at the target.
func (c *Client) Refresh(ctx context.Context, base *url.URL, token string) (RefreshResult, error) {
	var resp refreshResponse
	err := c.do(ctx, http.MethodPost, endpoint(base, "refresh"), nil, token, &resp)
	if err != nil {
		return RefreshResult{}, err
	}
	if !resp.Success || resp.AccessToken == "" {
		return RefreshResult{}, fop.Other(fop.ReasonUpstreamDenied, fmt.Errorf("refresh rejected"))
	}
	return RefreshResult{AccessToken: resp.AccessToken, TokenType: resp.TokenType}, nil
}

// Logout revokes the token at the target. A denial is still returned; the
// caller decides whether to care.
func (c *Client) Logout(ctx context.Context, base *url.URL, token string) error {
	var resp logoutResponse
	return c.do(ctx, http.MethodPost, endpoint(base, "logout"), nil, token, &resp)
}

// Me fetches the account behind the token.
func (c *Client) Me(ctx context.Context, base *url.URL, token string) (User, error) {
	var resp meResponse
	err := c.do(ctx, http.MethodGet, endpoint(base, "me"), nil, token, &resp)
	if err != nil {
		return User{}, err
	}
	if !resp.Success {
		return User{}, fop.Other(fop.ReasonUpstreamDenied, fmt.Errorf("me rejected"))
	}
	u := resp.User
	if u.Server == "" {
		u.Server = base.Hostname()
	}
	return u, nil
}

// Introspect asks the target whether a token is active.
func (c *Client) Introspect(ctx context.Context, base *url.URL, token string) (Introspection, error) {
	var resp introspectResponse
	err := c.do(ctx, http.MethodPost, endpoint(base, "introspect"), introspectRequest{Token: token}, "", &resp)
	if err != nil {
		return Introspection{}, err
	}
	return Introspection{
		Active:   resp.Active,
		UserRef:  resp.UserRef,
		UID:      resp.UID,
		Username: resp.Username,
		Email:    resp.Email,
		Reason:   resp.Reason,
	}, nil
}

// Health probes the target's health endpoint.
func (c *Client) Health(ctx context.Context, base *url.URL) error {
	var resp healthResponse
	if err := c.do(ctx, http.MethodGet, endpoint(base, "health"), nil, "", &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fop.Other(fop.ReasonUpstreamMalformed, fmt.Errorf("health status %q", resp.Status))
	}
	return nil
}
