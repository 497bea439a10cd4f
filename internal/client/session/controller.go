// Package session управляет жизненным циклом сессии: восстановлением при
// запуске, входом, регистрацией, выходом и принудительным завершением.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tracker/internal/client/domain"
	"tracker/internal/client/metrics"
	"tracker/internal/client/ports/api"
	"tracker/pkg/logger"
)

// Константы для логирования.
const (
	LogMethodInitialize   = "initialize"
	LogMethodLoadUserData = "load user data"
	LogMethodLogin        = "login"
	LogMethodRegister     = "register"
	LogMethodLogout       = "logout"
	LogMethodExpire       = "expire"

	LogNoStoredSession     = "no stored session"
	LogTokenExpiringSoon   = "stored access token expires soon, refresh deferred to first request"
	LogSessionRestored     = "session restored"
	LogRestoreFailed       = "session restore failed, logging out"
	LogProfileCacheFailed  = "failed to cache user profile"
	LogLoggedIn            = "logged in"
	LogLoggedOut           = "logged out"
	LogSessionExpired      = "session expired"
	LogProfileLookupFailed = "profile lookup after authentication failed"

	ErrorFailedToReadStore  = "failed to read stored credentials"
	ErrorFailedToSaveTokens = "failed to save credentials"
	ErrorFailedToClear      = "failed to clear credentials"
)

// CredentialStore - хранилище учетных данных сессии.
type CredentialStore interface {
	Tokens(ctx context.Context) (*domain.TokenPair, error)
	SetTokens(ctx context.Context, pair domain.TokenPair) error
	Profile(ctx context.Context) (*domain.UserProfile, error)
	SetProfile(ctx context.Context, profile *domain.UserProfile) error
	SetMode(ctx context.Context, durable bool) error
	Mode() domain.StorageMode
	ClearAll(ctx context.Context) error
}

// TokenInspector извлекает claims из access-токена.
type TokenInspector interface {
	SubjectID(raw string) (string, bool)
	IsExpiringSoon(raw string, margin time.Duration) bool
}

// Navigator переводит пользователя на вход после завершения сессии.
type Navigator interface {
	RedirectToLogin(ctx context.Context, cause error)
}

// Controller - единственный владелец состояния сессии.
type Controller struct {
	store     CredentialStore
	auth      api.AuthAPI
	users     api.UserAPI
	inspector TokenInspector
	navigator Navigator
	metrics   *metrics.Metrics
	margin    time.Duration

	mu    sync.Mutex
	state domain.Session
}

// Option настраивает Controller.
type Option func(*Controller)

// WithNavigator задает реакцию на принудительное завершение сессии.
func WithNavigator(n Navigator) Option {
	return func(c *Controller) {
		c.navigator = n
	}
}

// WithMetrics включает учет переходов состояния.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithExpiryMargin задает запас для диагностики истекающего токена.
func WithExpiryMargin(d time.Duration) Option {
	return func(c *Controller) {
		c.margin = d
	}
}

// NewController создает контроллер в состоянии Uninitialized.
func NewController(
	store CredentialStore,
	auth api.AuthAPI,
	users api.UserAPI,
	inspector TokenInspector,
	opts ...Option,
) *Controller {
	c := &Controller{
		store:     store,
		auth:      auth,
		users:     users,
		inspector: inspector,
		margin:    30 * time.Second,
		state:     domain.Session{StorageMode: store.Mode()},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot возвращает копию текущего состояния.
func (c *Controller) Snapshot() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() domain.Session {
	s := c.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	if s.Tokens != nil {
		p := *s.Tokens
		s.Tokens = &p
	}
	return s
}

func (c *Controller) setPhaseLocked(phase domain.Phase) {
	if c.state.Phase == phase {
		return
	}
	c.state.Phase = phase
	c.metrics.SessionTransition(phase.String())
}

// resetLocked переводит состояние в Unauthenticated.
func (c *Controller) resetLocked() {
	c.state.User = nil
	c.state.Tokens = nil
	c.state.IsAuthenticated = false
	c.state.Loading = false
	c.state.StorageMode = c.store.Mode()
	c.setPhaseLocked(domain.PhaseUnauthenticated)
}

// Initialize восстанавливает сессию из хранилища. Выполняется один раз,
// повторные вызовы ничего не делают. Неудача восстановления не является
// ошибкой: сессия просто остается неаутентифицированной.
func (c *Controller) Initialize(ctx context.Context) error {
	log := logger.Log(ctx).With(zap.String("method", LogMethodInitialize))

	c.mu.Lock()
	if c.state.Phase != domain.PhaseUninitialized {
		c.mu.Unlock()
		return nil
	}
	c.state.Loading = true
	c.setPhaseLocked(domain.PhaseInitializing)
	c.mu.Unlock()

	tokens, err := c.store.Tokens(ctx)
	if err != nil {
		c.finishInitialize(nil, nil)
		return fmt.Errorf("%s: %w", ErrorFailedToReadStore, err)
	}
	if tokens == nil {
		log.Debug(ctx, LogNoStoredSession)
		c.finishInitialize(nil, nil)
		return nil
	}

	if c.inspector.IsExpiringSoon(tokens.AccessToken, c.margin) {
		log.Info(ctx, LogTokenExpiringSoon)
	}

	profile, err := c.LoadUserData(ctx)
	if err != nil {
		log.Warn(ctx, LogRestoreFailed, zap.Error(err))
		if err := c.Logout(ctx); err != nil {
			log.Error(ctx, ErrorFailedToClear, zap.Error(err))
		}
		c.finishInitialize(nil, nil)
		return nil
	}

	// Загрузка профиля могла обновить токены.
	tokens, err = c.store.Tokens(ctx)
	if err != nil || tokens == nil {
		c.finishInitialize(nil, nil)
		return nil
	}

	log.Info(ctx, LogSessionRestored, zap.String("user_id", profile.ID))
	c.finishInitialize(tokens, profile)
	return nil
}

func (c *Controller) finishInitialize(tokens *domain.TokenPair, profile *domain.UserProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Initialized = true
	c.state.Loading = false
	if tokens == nil || profile == nil {
		c.resetLocked()
		return
	}
	c.state.Tokens = tokens
	c.state.User = profile
	c.state.IsAuthenticated = true
	c.state.StorageMode = c.store.Mode()
	c.setPhaseLocked(domain.PhaseAuthenticated)
}

// LoadUserData возвращает профиль из кэша или загружает его по идентификатору
// из access-токена. Любая неудача возвращает nil и ошибку ErrProfileFetch.
func (c *Controller) LoadUserData(ctx context.Context) (*domain.UserProfile, error) {
	log := logger.Log(ctx).With(zap.String("method", LogMethodLoadUserData))

	cached, err := c.store.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProfileFetch, err)
	}
	if cached != nil {
		return cached, nil
	}

	tokens, err := c.store.Tokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProfileFetch, err)
	}
	if tokens == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProfileFetch, domain.ErrNotAuthenticated)
	}

	id, ok := c.inspector.SubjectID(tokens.AccessToken)
	if !ok {
		return nil, fmt.Errorf("%w: %w", domain.ErrProfileFetch, domain.ErrCredentialDecode)
	}

	profile, err := c.users.GetProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProfileFetch, err)
	}

	if err := c.store.SetProfile(ctx, profile); err != nil {
		log.Warn(ctx, LogProfileCacheFailed, zap.Error(err))
	}

	c.mu.Lock()
	if c.state.IsAuthenticated {
		c.state.User = profile
	}
	c.mu.Unlock()

	return profile, nil
}

// Login выполняет вход. rememberMe выбирает постоянное хранилище для токенов
// и профиля. Ошибки эндпоинта возвращаются без изменений.
func (c *Controller) Login(ctx context.Context, email, password string, rememberMe bool) (domain.Session, error) {
	log := logger.Log(ctx).With(zap.String("method", LogMethodLogin))

	result, err := c.auth.Login(ctx, email, password)
	if err != nil {
		return c.Snapshot(), err
	}

	session, err := c.establish(ctx, result, rememberMe)
	if err != nil {
		return session, err
	}
	log.Info(ctx, LogLoggedIn, zap.Stringer("storage_mode", session.StorageMode))
	return session, nil
}

// Register создает учетную запись и открывает сессию во временном хранилище.
func (c *Controller) Register(ctx context.Context, req api.RegisterRequest) (domain.Session, error) {
	log := logger.Log(ctx).With(zap.String("method", LogMethodRegister))

	result, err := c.auth.Register(ctx, req)
	if err != nil {
		return c.Snapshot(), err
	}

	session, err := c.establish(ctx, result, false)
	if err != nil {
		return session, err
	}
	log.Info(ctx, LogLoggedIn, zap.Stringer("storage_mode", session.StorageMode))
	return session, nil
}

// establish сохраняет результат аутентификации в одном месте хранения.
func (c *Controller) establish(ctx context.Context, result *api.AuthResult, durable bool) (domain.Session, error) {
	log := logger.Log(ctx)

	if err := c.store.ClearAll(ctx); err != nil {
		return c.failEstablish(ctx, err)
	}
	if err := c.store.SetMode(ctx, durable); err != nil {
		return c.failEstablish(ctx, err)
	}
	if err := c.store.SetTokens(ctx, result.Tokens); err != nil {
		return c.failEstablish(ctx, err)
	}

	user := result.User
	if user != nil {
		if err := c.store.SetProfile(ctx, user); err != nil {
			return c.failEstablish(ctx, err)
		}
	} else {
		profile, err := c.LoadUserData(ctx)
		if err != nil {
			log.Warn(ctx, LogProfileLookupFailed, zap.Error(err))
		}
		user = profile
	}

	tokens := result.Tokens

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Tokens = &tokens
	c.state.User = user
	c.state.IsAuthenticated = user != nil
	c.state.StorageMode = c.store.Mode()
	c.state.Initialized = true
	c.state.Loading = false
	if c.state.IsAuthenticated {
		c.setPhaseLocked(domain.PhaseAuthenticated)
	} else {
		c.setPhaseLocked(domain.PhaseUnauthenticated)
	}
	return c.snapshotLocked(), nil
}

func (c *Controller) failEstablish(ctx context.Context, err error) (domain.Session, error) {
	if clearErr := c.store.ClearAll(ctx); clearErr != nil {
		logger.Log(ctx).Error(ctx, ErrorFailedToClear, zap.Error(clearErr))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	return c.snapshotLocked(), fmt.Errorf("%s: %w", ErrorFailedToSaveTokens, err)
}

// Logout завершает сессию локально: сервер об этом не уведомляется.
func (c *Controller) Logout(ctx context.Context) error {
	log := logger.Log(ctx).With(zap.String("method", LogMethodLogout))

	err := c.store.ClearAll(ctx)

	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("%s: %w", ErrorFailedToClear, err)
	}
	log.Info(ctx, LogLoggedOut)
	return nil
}

// Expire вызывается шлюзом, когда обновление токенов не удалось.
// Хранилище к этому моменту уже очищено.
func (c *Controller) Expire(ctx context.Context, cause error) {
	logger.Log(ctx).Warn(ctx, LogSessionExpired,
		zap.String("method", LogMethodExpire), zap.Error(cause))

	c.mu.Lock()
	c.resetLocked()
	navigator := c.navigator
	c.mu.Unlock()

	if navigator != nil {
		navigator.RedirectToLogin(ctx, cause)
	}
}
