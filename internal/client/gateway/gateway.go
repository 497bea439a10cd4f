// Package gateway оборачивает исходящие запросы к API: добавляет bearer-токен
// и при ответе 401 выполняет единственное общее обновление токенов,
// после которого повторяет все ожидавшие запросы.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tracker/internal/client/domain"
	"tracker/internal/client/metrics"
	"tracker/internal/client/ports/api"
	"tracker/internal/client/resilience"
	"tracker/pkg/logger"
)

// DefaultRefreshTimeout ограничивает обращение к эндпоинту обновления.
const DefaultRefreshTimeout = 10 * time.Second

// Константы для логирования.
const (
	LogMethodDo      = "do"
	LogMethodRefresh = "refresh"

	LogRefreshStarted     = "access token rejected, refreshing"
	LogRefreshJoined      = "refresh in flight, waiting"
	LogRefreshSucceeded   = "tokens refreshed"
	LogRefreshFailed      = "token refresh failed, session expired"
	LogRefreshUnavailable = "token refresh unavailable, session kept"
	LogStaleToken         = "access token already rotated, retrying"
	LogWaiterCanceled     = "caller stopped waiting for refresh"
	LogRetrying           = "retrying request with refreshed token"
	LogClearFailed        = "failed to clear credentials"

	ErrorFailedToBufferBody = "failed to buffer request body"
	ErrorFailedToReadStore  = "failed to read credentials"
	ErrorFailedToSaveTokens = "failed to save refreshed tokens"
	ErrorFailedToReplayBody = "failed to replay request body"
)

// TokenStore - доступ шлюза к учетным данным.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, bool, error)
	RefreshToken(ctx context.Context) (string, bool, error)
	SetTokens(ctx context.Context, pair domain.TokenPair) error
	ClearAll(ctx context.Context) error
}

// ExpiredFunc вызывается, когда обновление не удалось и сессия завершена.
type ExpiredFunc func(ctx context.Context, cause error)

type outcome struct {
	token string
	err   error
}

// episode - одно обновление токенов и очередь ожидающих его запросов.
type episode struct {
	waiters []chan outcome
}

// Gateway реализует api.Doer.
type Gateway struct {
	transport      api.Doer
	store          TokenStore
	refresher      api.Refresher
	authPaths      []string
	refreshTimeout time.Duration
	metrics        *metrics.Metrics

	mu        sync.Mutex
	episode   *episode
	onExpired ExpiredFunc
}

var _ api.Doer = (*Gateway)(nil)

// Option настраивает Gateway.
type Option func(*Gateway)

// WithAuthPaths задает пути, ответ 401 от которых не запускает обновление.
func WithAuthPaths(paths ...string) Option {
	return func(g *Gateway) {
		g.authPaths = append(g.authPaths, paths...)
	}
}

// WithRefreshTimeout задает предельное время обновления токенов.
func WithRefreshTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.refreshTimeout = d
		}
	}
}

// WithMetrics включает учет метрик.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// New создает шлюз поверх transport.
func New(transport api.Doer, store TokenStore, refresher api.Refresher, opts ...Option) *Gateway {
	g := &Gateway{
		transport:      transport,
		store:          store,
		refresher:      refresher,
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// OnSessionExpired регистрирует обработчик принудительного завершения сессии.
// Ожидающие запросы получают ошибку только после возврата обработчика,
// поэтому он не должен сам отправлять запросы через шлюз.
func (g *Gateway) OnSessionExpired(fn ExpiredFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onExpired = fn
}

// InFlight сообщает, выполняется ли сейчас обновление токенов.
func (g *Gateway) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.episode != nil
}

// Do отправляет запрос. При 401 от неаутентификационного эндпоинта
// запрос повторяется один раз с обновленным токеном.
func (g *Gateway) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	log := logger.Log(ctx).With(zap.String("method", LogMethodDo), zap.String("path", req.URL.Path))

	if err := bufferBody(req); err != nil {
		return nil, fmt.Errorf("%s: %w", ErrorFailedToBufferBody, err)
	}

	requestID := logger.RequestIDFor(ctx)

	sentToken, _, err := g.store.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrorFailedToReadStore, err)
	}

	resp, err := g.send(req, req.Body, sentToken, requestID)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || g.isAuthPath(req.URL.Path) {
		return resp, err
	}
	discard(resp)

	token, err := g.awaitToken(ctx, sentToken)
	if err != nil {
		return nil, err
	}

	body, err := replayBody(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrorFailedToReplayBody, err)
	}

	log.Debug(ctx, LogRetrying)
	g.metrics.RequestRetried("refresh")
	return g.send(req, body, token, requestID)
}

func (g *Gateway) send(req *http.Request, body io.ReadCloser, token, requestID string) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Body = body
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}
	if out.Header.Get(logger.HeaderRequestID) == "" {
		out.Header.Set(logger.HeaderRequestID, requestID)
	}

	start := time.Now()
	resp, err := g.transport.Do(out)
	code := "error"
	if err == nil {
		code = strconv.Itoa(resp.StatusCode)
	}
	g.metrics.ObserveRequest(req.Method, code, time.Since(start).Seconds())
	return resp, err
}

func (g *Gateway) isAuthPath(path string) bool {
	for _, p := range g.authPaths {
		if p != "" && strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}

// awaitToken возвращает токен для повтора запроса: присоединяется к текущему
// обновлению или начинает новое. Первым в очереди стоит инициатор.
func (g *Gateway) awaitToken(ctx context.Context, sentToken string) (string, error) {
	log := logger.Log(ctx).With(zap.String("method", LogMethodRefresh))
	ch := make(chan outcome, 1)

	// Хранилище читается до захвата блокировки: в durable-режиме это запрос к Redis.
	current, ok, err := g.store.AccessToken(ctx)
	stale := err == nil && ok && current != "" && current != sentToken

	g.mu.Lock()
	if g.episode != nil {
		g.episode.waiters = append(g.episode.waiters, ch)
		g.mu.Unlock()
		log.Debug(ctx, LogRefreshJoined)
		g.metrics.RefreshWaiter()
		return wait(ctx, ch)
	}

	// 401 пришел на запрос со старым токеном уже после завершения обновления.
	if stale {
		g.mu.Unlock()
		log.Debug(ctx, LogStaleToken)
		return current, nil
	}

	ep := &episode{waiters: []chan outcome{ch}}
	g.episode = ep
	g.mu.Unlock()

	log.Info(ctx, LogRefreshStarted)
	episodeCtx := logger.ContextWith(context.WithoutCancel(ctx),
		zap.String("refresh_episode", logger.GenerateRequestID()))
	go g.runEpisode(episodeCtx, ep)

	return wait(ctx, ch)
}

func wait(ctx context.Context, ch <-chan outcome) (string, error) {
	select {
	case o := <-ch:
		return o.token, o.err
	case <-ctx.Done():
		logger.Log(ctx).Debug(ctx, LogWaiterCanceled)
		return "", ctx.Err()
	}
}

// runEpisode выполняет обновление, завершает сессию при отказе, затем
// рассылает результат ожидающим в порядке очереди и только после этого
// снимает признак обновления. Вызывающий получает ошибку, когда сессия
// уже завершена.
func (g *Gateway) runEpisode(ctx context.Context, ep *episode) {
	log := logger.Log(ctx).With(zap.String("method", LogMethodRefresh))

	token, err := g.refresh(ctx)
	switch {
	case err == nil:
		log.Info(ctx, LogRefreshSucceeded)
		g.metrics.RefreshEpisode(metrics.OutcomeSuccess)
	case errors.Is(err, domain.ErrRefreshUnavailable):
		log.Warn(ctx, LogRefreshUnavailable, zap.Error(err))
		g.metrics.RefreshEpisode(metrics.OutcomeUnavailable)
	default:
		g.expire(ctx, err)
	}

	g.mu.Lock()
	for _, w := range ep.waiters {
		w <- outcome{token: token, err: err}
	}
	ep.waiters = nil
	g.episode = nil
	g.mu.Unlock()
}

// expire очищает учетные данные и вызывает обработчик завершения сессии.
// Обработчик вызывается без удержания блокировки шлюза.
func (g *Gateway) expire(ctx context.Context, cause error) {
	log := logger.Log(ctx).With(zap.String("method", LogMethodRefresh))

	if err := g.store.ClearAll(ctx); err != nil {
		log.Error(ctx, LogClearFailed, zap.Error(err))
	}

	log.Warn(ctx, LogRefreshFailed, zap.Error(cause))
	if errors.Is(cause, domain.ErrNoRefreshToken) {
		g.metrics.RefreshEpisode(metrics.OutcomeNoRefresh)
	} else {
		g.metrics.RefreshEpisode(metrics.OutcomeRejected)
	}

	g.mu.Lock()
	onExpired := g.onExpired
	g.mu.Unlock()

	if onExpired != nil {
		onExpired(ctx, cause)
	}
}

func (g *Gateway) refresh(ctx context.Context) (string, error) {
	refreshToken, ok, err := g.store.RefreshToken(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrRefreshRejected, ErrorFailedToReadStore, err)
	}
	if !ok {
		return "", domain.ErrNoRefreshToken
	}

	refreshCtx, cancel := context.WithTimeout(ctx, g.refreshTimeout)
	defer cancel()

	pair, err := g.refresher.RefreshTokens(refreshCtx, refreshToken)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return "", fmt.Errorf("%w: %w", domain.ErrRefreshUnavailable, err)
		}
		if errors.Is(err, domain.ErrRefreshRejected) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrRefreshRejected, err)
	}
	if pair.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", domain.ErrRefreshRejected)
	}

	if err := g.store.SetTokens(ctx, pair); err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrRefreshRejected, ErrorFailedToSaveTokens, err)
	}
	return pair.AccessToken, nil
}

// bufferBody читает тело один раз, чтобы его можно было отправить повторно.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}
	_ = req.Body.Close()

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}
	req.Body, _ = req.GetBody()
	return nil
}

func replayBody(req *http.Request) (io.ReadCloser, error) {
	if req.GetBody == nil {
		return req.Body, nil
	}
	return req.GetBody()
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
