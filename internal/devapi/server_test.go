package devapi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tracker/internal/devapi"
	"tracker/internal/devapi/config"
	"tracker/pkg/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig(bare bool) *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			SecretKey:       "devapi-test-secret",
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
			BcryptCost:      bcrypt.MinCost,
			BareTokens:      bare,
		},
		Seed: config.SeedConfig{
			Email:     "demo@tracker.local",
			Password:  "demo-password",
			FirstName: "Demo",
			LastName:  "User",
			Role:      "admin",
		},
	}
}

func newServer(t *testing.T, bare bool) (*devapi.Server, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Now().Truncate(time.Second)}
	srv, err := devapi.New(context.Background(), testConfig(bare), devapi.WithClock(clock.Now))
	require.NoError(t, err)
	return srv, clock
}

func do(t *testing.T, srv *devapi.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.App.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	} else if len(raw) > 0 {
		out["list"] = json.RawMessage(raw)
	}
	return resp.StatusCode, out
}

func tokenOf(t *testing.T, v any) string {
	t.Helper()
	obj, ok := v.(map[string]any)
	require.True(t, ok, "token must be an object, got %T", v)
	token, _ := obj["token"].(string)
	require.NotEmpty(t, token)
	_, hasExpiry := obj["expires"]
	assert.True(t, hasExpiry)
	return token
}

func login(t *testing.T, srv *devapi.Server) (access, refresh string) {
	t.Helper()
	status, body := do(t, srv, http.MethodPost, "/api/v1/login", "", map[string]string{
		"email":    "demo@tracker.local",
		"password": "demo-password",
	})
	require.Equal(t, http.StatusOK, status)
	return tokenOf(t, body["accessToken"]), tokenOf(t, body["refreshToken"])
}

func TestLoginReturnsUserAndTokenObjects(t *testing.T) {
	srv, _ := newServer(t, false)

	status, body := do(t, srv, http.MethodPost, "/api/v1/login", "", map[string]string{
		"email":    "demo@tracker.local",
		"password": "demo-password",
	})
	require.Equal(t, http.StatusOK, status)

	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, srv.SeedID, user["id"])
	assert.Equal(t, "admin", user["role"])
	tokenOf(t, body["accessToken"])
	tokenOf(t, body["refreshToken"])

	status, body = do(t, srv, http.MethodPost, "/api/v1/login", "", map[string]string{
		"email":    "demo@tracker.local",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid email or password", body["error"])
}

func TestBareTokenFormat(t *testing.T) {
	srv, _ := newServer(t, true)

	status, body := do(t, srv, http.MethodPost, "/api/v1/login", "", map[string]string{
		"email":    "demo@tracker.local",
		"password": "demo-password",
	})
	require.Equal(t, http.StatusOK, status)
	assert.IsType(t, "", body["accessToken"])
	assert.IsType(t, "", body["refreshToken"])
}

func TestRegisterIssuesOnlyAccessToken(t *testing.T) {
	srv, _ := newServer(t, false)
	payload := map[string]string{
		"firstName":   "Grace",
		"lastName":    "Hopper",
		"email":       "grace@example.com",
		"password":    "cobol-rules",
		"slackUserId": "U123",
	}

	status, body := do(t, srv, http.MethodPost, "/api/v1/register", "", payload)
	require.Equal(t, http.StatusCreated, status)
	tokenOf(t, body["accessToken"])
	assert.NotContains(t, body, "refreshToken")

	status, _ = do(t, srv, http.MethodPost, "/api/v1/register", "", payload)
	assert.Equal(t, http.StatusConflict, status)

	payload["email"] = "broken"
	status, _ = do(t, srv, http.MethodPost, "/api/v1/register", "", payload)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRegenerateTokensRotates(t *testing.T) {
	srv, _ := newServer(t, false)
	_, refresh := login(t, srv)

	status, body := do(t, srv, http.MethodPost, "/api/v1/auth/regenerate-tokens", "",
		map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, status)
	rotated := tokenOf(t, body["refreshToken"])
	assert.NotEqual(t, refresh, rotated)

	status, _ = do(t, srv, http.MethodPost, "/api/v1/auth/regenerate-tokens", "",
		map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, srv, http.MethodPost, "/api/v1/auth/regenerate-tokens", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestProtectedRoutes(t *testing.T) {
	srv, clock := newServer(t, false)
	access, _ := login(t, srv)

	status, _ := do(t, srv, http.MethodGet, "/api/v1/project", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := do(t, srv, http.MethodGet, "/api/v1/project", access, nil)
	require.Equal(t, http.StatusOK, status)
	var projects []map[string]any
	require.NoError(t, json.Unmarshal(body["list"].(json.RawMessage), &projects))
	assert.Len(t, projects, 2)

	status, body = do(t, srv, http.MethodGet, "/api/v1/user/id/"+srv.SeedID, access, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "demo@tracker.local", body["email"])

	status, _ = do(t, srv, http.MethodGet, "/api/v1/user/id/missing", access, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, srv, http.MethodGet, "/api/v1/issue/TRK-1", access, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "i-1", body["id"])

	clock.Advance(2 * time.Minute)
	status, body = do(t, srv, http.MethodGet, "/api/v1/team", access, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "access token expired", body["error"])

	status, _ = do(t, srv, http.MethodGet, "/api/v1/team", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newServer(t, false)

	status, body := do(t, srv, http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Route not found", body["error"])
}

func TestRequestIDEchoed(t *testing.T) {
	srv, _ := newServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/project", nil)
	req.Header.Set(logger.HeaderRequestID, "req-7")
	resp, err := srv.App.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-7", resp.Header.Get(logger.HeaderRequestID))

	resp, err = srv.App.Test(httptest.NewRequest(http.MethodGet, "/api/v1/project", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get(logger.HeaderRequestID), "missing ID is generated")
}
