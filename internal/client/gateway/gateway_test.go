package gateway_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/client/adapters/api"
	"tracker/internal/client/adapters/storage"
	"tracker/internal/client/config"
	"tracker/internal/client/credentials"
	"tracker/internal/client/domain"
	"tracker/internal/client/gateway"
	"tracker/internal/client/resilience"
	"tracker/pkg/logger"
)

const (
	loginPath   = "/api/v1/login"
	refreshPath = "/api/v1/auth/regenerate-tokens"
)

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

type refresherFunc func(ctx context.Context, refreshToken string) (domain.TokenPair, error)

func (f refresherFunc) RefreshTokens(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	return f(ctx, refreshToken)
}

// backend - тестовый API: принимает только токен "a2", выдает его по refresh-токену "r1".
type backend struct {
	srv           *httptest.Server
	refreshCalls  atomic.Int32
	refreshStatus int
	refreshDelay  time.Duration
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{refreshStatus: http.StatusOK}

	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case refreshPath:
			b.refreshCalls.Add(1)
			time.Sleep(b.refreshDelay)
			if b.refreshStatus != http.StatusOK {
				w.WriteHeader(b.refreshStatus)
				_, _ = io.WriteString(w, `{"error":"refresh token revoked"}`)
				return
			}
			_, _ = io.WriteString(w,
				`{"accessToken":{"token":"a2","expires":"2030-01-01T00:00:00Z"},`+
					`"refreshToken":{"token":"r2","expires":"2030-01-01T00:00:00Z"}}`)
		case loginPath:
			w.WriteHeader(http.StatusUnauthorized)
		default:
			if r.Header.Get("Authorization") != "Bearer a2" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			body, _ := io.ReadAll(r.Body)
			_, _ = io.WriteString(w, "ok:"+string(body))
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func newStore(t *testing.T, pair *domain.TokenPair) *credentials.Store {
	t.Helper()
	st, err := credentials.New(context.Background(), storage.NewMemoryBackend(), storage.NewMemoryBackend())
	require.NoError(t, err)
	if pair != nil {
		require.NoError(t, st.SetTokens(context.Background(), *pair))
	}
	return st
}

type expiredRecorder struct {
	mu     sync.Mutex
	causes []error
}

func (r *expiredRecorder) record(_ context.Context, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.causes = append(r.causes, cause)
}

func (r *expiredRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.causes)
}

func newGateway(t *testing.T, b *backend, st *credentials.Store) (*gateway.Gateway, *expiredRecorder) {
	t.Helper()
	cfg := config.APIConfig{BaseURL: b.srv.URL, LoginPath: loginPath, RefreshPath: refreshPath}
	auth := api.NewAuthClient(b.srv.Client(), cfg, nil)

	gw := gateway.New(b.srv.Client(), st, auth,
		gateway.WithAuthPaths(loginPath, "/api/v1/register", refreshPath),
		gateway.WithRefreshTimeout(time.Second))

	rec := &expiredRecorder{}
	gw.OnSessionExpired(rec.record)
	return gw, rec
}

func get(t *testing.T, ctx context.Context, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func TestGateway_AttachesHeaders(t *testing.T) {
	var seen http.Header
	transport := doerFunc(func(r *http.Request) (*http.Response, error) {
		seen = r.Header.Clone()
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(""))}, nil
	})

	t.Run("with token", func(t *testing.T) {
		st := newStore(t, &domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
		gw := gateway.New(transport, st, nil)

		ctx := logger.NewRequestIDContext(context.Background(), "req-1")
		resp, err := gw.Do(get(t, ctx, "http://api/api/v1/project"))
		require.NoError(t, err)
		_ = resp.Body.Close()

		assert.Equal(t, "Bearer a1", seen.Get("Authorization"))
		assert.Equal(t, "req-1", seen.Get(logger.HeaderRequestID))
	})

	t.Run("without token", func(t *testing.T) {
		gw := gateway.New(transport, newStore(t, nil), nil)

		resp, err := gw.Do(get(t, context.Background(), "http://api/api/v1/project"))
		require.NoError(t, err)
		_ = resp.Body.Close()

		assert.Empty(t, seen.Get("Authorization"))
		assert.NotEmpty(t, seen.Get(logger.HeaderRequestID))
	})
}

func TestGateway_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	for _, n := range []int{3, 25} {
		b := newBackend(t)
		b.refreshDelay = 100 * time.Millisecond
		st := newStore(t, &domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
		gw, rec := newGateway(t, b, st)

		var wg sync.WaitGroup
		results := make([]string, n)
		errs := make([]error, n)
		for i := range n {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				resp, err := gw.Do(get(t, context.Background(), b.srv.URL+"/api/v1/issue"))
				if err != nil {
					errs[i] = err
					return
				}
				results[i] = readBody(t, resp)
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), b.refreshCalls.Load(), "n=%d", n)
		for i := range n {
			require.NoError(t, errs[i])
			assert.Equal(t, "ok:", results[i])
		}
		assert.False(t, gw.InFlight())
		assert.Zero(t, rec.count())

		pair, err := st.Tokens(context.Background())
		require.NoError(t, err)
		assert.Equal(t, &domain.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, pair)
	}
}

func TestGateway_NoRefreshToken(t *testing.T) {
	b := newBackend(t)
	st := newStore(t, &domain.TokenPair{AccessToken: "a1"})
	gw, rec := newGateway(t, b, st)

	_, err := gw.Do(get(t, context.Background(), b.srv.URL+"/api/v1/team"))

	require.ErrorIs(t, err, domain.ErrNoRefreshToken)
	assert.Zero(t, b.refreshCalls.Load(), "no refresh call without a refresh token")
	assert.Equal(t, 1, rec.count(), "session expired before the caller sees the error")

	pair, err := st.Tokens(context.Background())
	require.NoError(t, err)
	assert.Nil(t, pair, "credentials are cleared")
}

func TestGateway_RefreshRejected(t *testing.T) {
	b := newBackend(t)
	b.refreshStatus = http.StatusUnauthorized
	b.refreshDelay = 100 * time.Millisecond
	st := newStore(t, &domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	gw, rec := newGateway(t, b, st)

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gw.Do(get(t, context.Background(), b.srv.URL+"/api/v1/project"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var first error
	for err := range errs {
		require.ErrorIs(t, err, domain.ErrRefreshRejected)
		var apiErr *domain.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		if first == nil {
			first = err
		}
		assert.Equal(t, first.Error(), err.Error(), "all callers see the same refresh failure")
	}

	assert.Equal(t, int32(1), b.refreshCalls.Load())
	assert.Equal(t, 1, rec.count())

	_, ok, err := st.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "credentials are cleared")
}

func TestGateway_AuthEndpointsNeverRefresh(t *testing.T) {
	b := newBackend(t)
	st := newStore(t, &domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	gw, _ := newGateway(t, b, st)

	req, err := http.NewRequest(http.MethodPost, b.srv.URL+loginPath, strings.NewReader(`{}`))
	require.NoError(t, err)

	resp, err := gw.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, b.refreshCalls.Load())
}

func TestGateway_ReplaysBody(t *testing.T) {
	b := newBackend(t)
	st := newStore(t, &domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	gw, _ := newGateway(t, b, st)

	req, err := http.NewRequest(http.MethodPost, b.srv.URL+"/api/v1/issue", io.NopCloser(strings.NewReader(`{"title":"bug"}`)))
	require.NoError(t, err)
	require.Nil(t, req.GetBody, "body without GetBody must be buffered by the gateway")

	resp, err := gw.Do(req)
	require.NoError(t, err)
	assert.Equal(t, `ok:{"title":"bug"}`, readBody(t, resp))
}

func TestGateway_RetriedRequestIsNotRefreshedAgain(t *testing.T) {
	var refreshes atomic.Int32
	transport := doerFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusUnauthorized, Body: io.NopCloser(strings.NewReader(""))}, nil
	})
	refresher := refresherFunc(func(context.Context, string) (domain.TokenPair, error) {
		refreshes.Add(1)
		return domain.TokenPair{AccessToken: "a2"}, nil
	})

	st := newStore(t, &domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	gw := gateway.New(transport, st, refresher)

	resp, err := gw.Do(get(t, context.Background(), "http://api/api/v1/issue"))
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(1), refreshes.Load())
}

func TestGateway_RefreshTimeout(t *testing.T) {
	transport := doerFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusUnauthorized, Body: io.NopCloser(strings.NewReader(""))}, nil
	})
	refresher := refresherFunc(func(ctx context.Context, _ string) (domain.TokenPair, error) {
		<-ctx.Done()
		return domain.TokenPair{}, ctx.Err()
	})

	st := newStore(t, &domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	gw := gateway.New(transport, st, refresher, gateway.WithRefreshTimeout(20*time.Millisecond))

	expired := make(chan error, 1)
	gw.OnSessionExpired(func(_ context.Context, cause error) { expired <- cause })

	_, err := gw.Do(get(t, context.Background(), "http://api/api/v1/issue"))
	require.ErrorIs(t, err, domain.ErrRefreshRejected)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case cause := <-expired:
		assert.ErrorIs(t, cause, domain.ErrRefreshRejected)
	default:
		t.Fatal("session was not expired after refresh timeout")
	}
}

func TestGateway_ExpiryCompletesBeforeCallerReturns(t *testing.T) {
	transport := doerFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusUnauthorized, Body: io.NopCloser(strings.NewReader(""))}, nil
	})
	refresher := refresherFunc(func(context.Context, string) (domain.TokenPair, error) {
		return domain.TokenPair{}, &domain.APIError{Endpoint: refreshPath, StatusCode: http.StatusUnauthorized}
	})

	for range 50 {
		st := newStore(t, &domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
		gw := gateway.New(transport, st, refresher)

		var expired atomic.Bool
		gw.OnSessionExpired(func(context.Context, error) {
			time.Sleep(time.Millisecond)
			expired.Store(true)
		})

		_, err := gw.Do(get(t, context.Background(), "http://api/api/v1/issue"))
		require.ErrorIs(t, err, domain.ErrRefreshRejected)
		require.True(t, expired.Load(), "expiry hook must finish before Do returns")
	}
}

func TestGateway_OpenCircuitKeepsSession(t *testing.T) {
	transport := doerFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusUnauthorized, Body: io.NopCloser(strings.NewReader(""))}, nil
	})
	refresher := refresherFunc(func(context.Context, string) (domain.TokenPair, error) {
		return domain.TokenPair{}, resilience.ErrCircuitOpen
	})

	st := newStore(t, &domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	gw := gateway.New(transport, st, refresher)
	rec := &expiredRecorder{}
	gw.OnSessionExpired(rec.record)

	_, err := gw.Do(get(t, context.Background(), "http://api/api/v1/issue"))

	require.ErrorIs(t, err, domain.ErrRefreshUnavailable)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.NotErrorIs(t, err, domain.ErrRefreshRejected)
	assert.Zero(t, rec.count(), "session is kept while the auth service is unavailable")
	assert.False(t, gw.InFlight())

	pair, err := st.Tokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"}, pair)
}

func TestGateway_WaiterCancellation(t *testing.T) {
	release := make(chan struct{})
	transport := doerFunc(func(r *http.Request) (*http.Response, error) {
		status := http.StatusUnauthorized
		if r.Header.Get("Authorization") == "Bearer a2" {
			status = http.StatusOK
		}
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}, nil
	})
	refresher := refresherFunc(func(context.Context, string) (domain.TokenPair, error) {
		<-release
		return domain.TokenPair{AccessToken: "a2"}, nil
	})

	st := newStore(t, &domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	gw := gateway.New(transport, st, refresher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := gw.Do(get(t, ctx, "http://api/api/v1/issue"))
		done <- err
	}()

	require.Eventually(t, gw.InFlight, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, gw.InFlight(), "episode continues without the canceled caller")

	close(release)
	require.Eventually(t, func() bool { return !gw.InFlight() }, time.Second, time.Millisecond)

	v, _, err := st.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a2", v)
}

func TestGateway_LateUnauthorizedUsesRotatedToken(t *testing.T) {
	st := newStore(t, &domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})

	transport := doerFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get("Authorization") == "Bearer a1" {
			// Другое обновление успело завершиться, пока запрос был в пути.
			require.NoError(t, st.SetTokens(r.Context(), domain.TokenPair{AccessToken: "a2", RefreshToken: "r2"}))
			return &http.Response{StatusCode: http.StatusUnauthorized, Body: io.NopCloser(strings.NewReader(""))}, nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(""))}, nil
	})
	refresher := refresherFunc(func(context.Context, string) (domain.TokenPair, error) {
		return domain.TokenPair{}, errors.New("must not be called")
	})

	gw := gateway.New(transport, st, refresher)
	resp, err := gw.Do(get(t, context.Background(), "http://api/api/v1/issue"))
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// blockingStore задерживает повторное чтение access-токена до release.
type blockingStore struct {
	*credentials.Store
	reads   atomic.Int32
	blocked chan struct{}
	release chan struct{}
}

func (s *blockingStore) AccessToken(ctx context.Context) (string, bool, error) {
	if s.reads.Add(1) == 2 {
		close(s.blocked)
		<-s.release
	}
	return s.Store.AccessToken(ctx)
}

func TestGateway_StoreReadDoesNotHoldLock(t *testing.T) {
	transport := doerFunc(func(r *http.Request) (*http.Response, error) {
		status := http.StatusUnauthorized
		if r.Header.Get("Authorization") == "Bearer a2" {
			status = http.StatusOK
		}
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}, nil
	})
	refresher := refresherFunc(func(context.Context, string) (domain.TokenPair, error) {
		return domain.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil
	})

	st := &blockingStore{
		Store:   newStore(t, &domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"}),
		blocked: make(chan struct{}),
		release: make(chan struct{}),
	}
	gw := gateway.New(transport, st, refresher)

	done := make(chan error, 1)
	go func() {
		resp, err := gw.Do(get(t, context.Background(), "http://api/api/v1/issue"))
		if err == nil {
			_ = resp.Body.Close()
		}
		done <- err
	}()

	<-st.blocked
	locked := make(chan bool, 1)
	go func() { locked <- gw.InFlight() }()
	select {
	case inFlight := <-locked:
		assert.False(t, inFlight)
	case <-time.After(time.Second):
		t.Fatal("gateway lock is held during a store read")
	}

	close(st.release)
	require.NoError(t, <-done)
}
