// Package api implements the AuthAPI port against the portal's REST API.
// All calls carry cookie-based credentials via the client's cookie jar.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	domainauth "github.com/brightline/portal-sessions/internal/domain/auth"
	apperrors "github.com/brightline/portal-sessions/internal/errors"
	"github.com/brightline/portal-sessions/internal/ports"
)

// Config captures the portal API client behaviour we need.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client // optional; a jar-backed client is built when nil
	Logger  *slog.Logger // optional
}

// Client talks to the portal auth endpoints. It implements ports.AuthAPI.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

var _ ports.AuthAPI = (*Client)(nil)

// NewClient builds a portal API client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("portal API base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		hc = &http.Client{Timeout: timeout, Jar: jar}
	}

	return &Client{
		baseURL: baseURL,
		client:  hc,
		logger:  cfg.Logger,
	}, nil
}

// loginResponse is the shape of every login-like endpoint's success body.
type loginResponse struct {
	User      domainauth.User `json:"user"`
	ExpiresIn flexDuration    `json:"expiresIn"`
	SessionID string          `json:"sessionId"`
}

func (c *Client) Login(ctx context.Context, email, password string) (ports.LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return ports.LoginResult{}, err
	}
	return resp.toResult(), nil
}

func (c *Client) AdminLogin(ctx context.Context, password string) (ports.LoginResult, error) {
	body := map[string]string{"password": password}
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/admin/login", body, &resp); err != nil {
		return ports.LoginResult{}, err
	}
	return resp.toResult(), nil
}

func (c *Client) Logout(ctx context.Context, role domainauth.Role) error {
	path := "/api/auth/logout"
	if role == domainauth.RoleAdmin {
		path = "/api/auth/admin/logout"
	}
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) RequestMagicLink(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/api/auth/magic-link", body, nil)
}

func (c *Client) VerifyMagicLink(ctx context.Context, token string) (ports.LoginResult, error) {
	body := map[string]string{"token": token}
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/magic-link/verify", body, &resp); err != nil {
		return ports.LoginResult{}, err
	}
	return resp.toResult(), nil
}

func (c *Client) Refresh(ctx context.Context, _ domainauth.Role) error {
	return c.do(ctx, http.MethodPost, "/api/auth/refresh", nil, nil)
}

func (c *Client) Validate(ctx context.Context, role domainauth.Role) error {
	path := "/api/auth/validate"
	if role == domainauth.RoleAdmin {
		path = "/api/auth/admin/validate"
	}
	return c.do(ctx, http.MethodGet, path, nil, nil)
}

func (r loginResponse) toResult() ports.LoginResult {
	return ports.LoginResult{
		User:      r.User,
		ExpiresIn: time.Duration(r.ExpiresIn),
		SessionID: r.SessionID,
	}
}

// do performs a JSON round-trip and maps failures onto the error taxonomy:
// transport problems become Network errors, 401/403 become Credential
// errors carrying the server's message, everything else Internal.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode request")
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "portal API request failed", "method", method, "path", path, "error", err)
		}
		return apperrors.Wrapf(err, apperrors.ErrCodeNetwork, "%s %s", method, path)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && c.logger != nil {
			c.logger.WarnContext(ctx, "close response body failed", "path", path, "error", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.errorFromResponse(resp, method, path)
	}

	if out == nil {
		_, err = io.Copy(io.Discard, resp.Body)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeNetwork, "drain response body")
		}
		return nil
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeInternal, "decode %s response", path)
	}
	return nil
}

// errorBody is the JSON shape of non-2xx responses.
type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) errorFromResponse(resp *http.Response, method, path string) error {
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body errorBody
	if readErr == nil {
		_ = json.Unmarshal(raw, &body)
	}
	message := strings.TrimSpace(body.Error)
	if message == "" {
		message = resp.Status
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return apperrors.Credential(message)
	}
	return apperrors.Internalf("%s %s: %s", method, path, message)
}

// flexDuration decodes the API's expiresIn field, which may be a numeric
// millisecond count, a day-suffixed string like "7d", or a Go-style
// duration string like "12h".
type flexDuration time.Duration

func (d *flexDuration) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*d = 0
		return nil
	}

	if trimmed[0] != '"' {
		ms, err := strconv.ParseFloat(string(trimmed), 64)
		if err != nil {
			return fmt.Errorf("parse expiresIn %q: %w", trimmed, err)
		}
		*d = flexDuration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return fmt.Errorf("parse expiresIn: %w", err)
	}
	parsed, err := parseWindow(s)
	if err != nil {
		return err
	}
	*d = flexDuration(parsed)
	return nil
}

func parseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("parse expiresIn %q: %w", s, err)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse expiresIn %q: %w", s, err)
	}
	return parsed, nil
}
