package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/brightline/portal-sessions/internal/domain/auth"
	apperrors "github.com/brightline/portal-sessions/internal/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://localhost:3000/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", client.baseURL)
}

func TestClient_Login(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/login", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "user@example.com", body["email"])
		require.Equal(t, "hunter2", body["password"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]string{
				"id":    "u1",
				"email": "user@example.com",
				"role":  "client",
			},
			"expiresIn": "7d",
			"sessionId": "sess-1",
		})
	})
	client := newTestClient(t, handler)

	res, err := client.Login(context.Background(), "user@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "u1", res.User.ID)
	assert.Equal(t, domainauth.RoleClient, res.User.Role)
	assert.Equal(t, 7*24*time.Hour, res.ExpiresIn)
	assert.Equal(t, "sess-1", res.SessionID)
}

func TestClient_Login_CredentialErrorCarriesServerMessage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid email or password"})
	})
	client := newTestClient(t, handler)

	_, err := client.Login(context.Background(), "user@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, apperrors.IsCredential(err))
	assert.Equal(t, "Invalid email or password", apperrors.UserMessage(err, "fallback"))
}

func TestClient_Login_ServerErrorIsInternal(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	})
	client := newTestClient(t, handler)

	_, err := client.Login(context.Background(), "user@example.com", "hunter2")
	require.Error(t, err)
	assert.True(t, apperrors.IsInternal(err))
}

func TestClient_Login_NetworkError(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.Login(context.Background(), "user@example.com", "hunter2")
	require.Error(t, err)
	assert.True(t, apperrors.IsNetwork(err))
}

func TestClient_AdminLogin_AdminEndpoints(t *testing.T) {
	var paths []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":      map[string]string{"id": "admin", "role": "admin"},
			"expiresIn": 43200000,
		})
	})
	client := newTestClient(t, handler)
	ctx := context.Background()

	res, err := client.AdminLogin(ctx, "admin-secret")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, res.User.Role)
	assert.Equal(t, 12*time.Hour, res.ExpiresIn, "numeric expiresIn is milliseconds")

	require.NoError(t, client.Validate(ctx, domainauth.RoleAdmin))
	require.NoError(t, client.Logout(ctx, domainauth.RoleAdmin))

	assert.Equal(t, []string{
		"/api/auth/admin/login",
		"/api/auth/admin/validate",
		"/api/auth/admin/logout",
	}, paths)
}

func TestClient_ClientEndpoints(t *testing.T) {
	var paths []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	client := newTestClient(t, handler)
	ctx := context.Background()

	require.NoError(t, client.Validate(ctx, domainauth.RoleClient))
	require.NoError(t, client.Refresh(ctx, domainauth.RoleClient))
	require.NoError(t, client.Logout(ctx, domainauth.RoleClient))

	assert.Equal(t, []string{
		"/api/auth/validate",
		"/api/auth/refresh",
		"/api/auth/logout",
	}, paths)
}

func TestClient_MagicLinkFlow(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/magic-link":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "user@example.com", body["email"])
			w.WriteHeader(http.StatusOK)
		case "/api/auth/magic-link/verify":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "one-time-token", body["token"])
			_ = json.NewEncoder(w).Encode(map[string]any{
				"user":      map[string]string{"id": "u1", "role": "client"},
				"expiresIn": "168h",
				"sessionId": "sess-magic",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	client := newTestClient(t, handler)
	ctx := context.Background()

	require.NoError(t, client.RequestMagicLink(ctx, "user@example.com"))

	res, err := client.VerifyMagicLink(ctx, "one-time-token")
	require.NoError(t, err)
	assert.Equal(t, "sess-magic", res.SessionID)
	assert.Equal(t, 168*time.Hour, res.ExpiresIn)
}

func TestClient_SessionCookiePersistsAcrossCalls(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "portal_session", Value: "abc", Path: "/"})
			_ = json.NewEncoder(w).Encode(map[string]any{
				"user": map[string]string{"id": "u1", "role": "client"},
			})
		case "/api/auth/validate":
			cookie, err := r.Cookie("portal_session")
			require.NoError(t, err)
			require.Equal(t, "abc", cookie.Value)
			w.WriteHeader(http.StatusOK)
		}
	})
	client := newTestClient(t, handler)
	ctx := context.Background()

	_, err := client.Login(ctx, "user@example.com", "hunter2")
	require.NoError(t, err)
	require.NoError(t, client.Validate(ctx, domainauth.RoleClient))
}

func TestFlexDuration_Unmarshal(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want time.Duration
	}{
		{"milliseconds", `604800000`, 7 * 24 * time.Hour},
		{"days", `"7d"`, 7 * 24 * time.Hour},
		{"go duration", `"12h"`, 12 * time.Hour},
		{"null", `null`, 0},
		{"empty string", `""`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var d flexDuration
			require.NoError(t, json.Unmarshal([]byte(tc.in), &d))
			assert.Equal(t, tc.want, time.Duration(d))
		})
	}

	var d flexDuration
	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`"xd"`), &d))
}
