package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"tracker/internal/client/config"
	"tracker/internal/client/domain"
	"tracker/internal/client/ports/api"
	"tracker/internal/client/resilience"
	"tracker/pkg/logger"
)

// Константы для логирования.
const (
	LogMethodLogin         = "login"
	LogMethodRegister      = "register"
	LogMethodRefreshTokens = "refresh tokens"

	LogAuthFailed    = "authentication request failed"
	LogRefreshFailed = "token refresh request failed"
)

var errMissingAccessToken = errors.New("response has no access token")

// AuthClient вызывает эндпоинты аутентификации напрямую, минуя шлюз:
// 401 от них никогда не запускает обновление токенов.
type AuthClient struct {
	doer       api.Doer
	cfg        config.APIConfig
	resilience *resilience.ServiceResilience
}

var _ api.AuthAPI = (*AuthClient)(nil)

// NewAuthClient создает клиента аутентификации. res может быть nil.
func NewAuthClient(doer api.Doer, cfg config.APIConfig, res *resilience.ServiceResilience) *AuthClient {
	return &AuthClient{
		doer:       doer,
		cfg:        cfg,
		resilience: res,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	tokenResponse
	User *domain.UserProfile `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login получает пару токенов и профиль по email и паролю.
func (c *AuthClient) Login(ctx context.Context, email, password string) (*api.AuthResult, error) {
	log := logger.Log(ctx).With(zap.String("method", LogMethodLogin))

	result, err := c.authenticate(ctx, c.cfg.LoginPath, loginRequest{Email: email, Password: password})
	if err != nil {
		log.Warn(ctx, LogAuthFailed, zap.Error(err))
		return nil, err
	}
	return result, nil
}

// Register создает учетную запись. Сервер возвращает только access-токен.
func (c *AuthClient) Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResult, error) {
	log := logger.Log(ctx).With(zap.String("method", LogMethodRegister))

	result, err := c.authenticate(ctx, c.cfg.RegisterPath, req)
	if err != nil {
		log.Warn(ctx, LogAuthFailed, zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (c *AuthClient) authenticate(ctx context.Context, path string, payload any) (*api.AuthResult, error) {
	req, err := newRequest(ctx, http.MethodPost, c.cfg.URL(path), payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuthEndpoint, err)
	}

	var body authResponse
	if err := call(c.doer, req, path, &body); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuthEndpoint, err)
	}
	if body.AccessToken.Token == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuthEndpoint, errMissingAccessToken)
	}

	return &api.AuthResult{
		User: body.User,
		Tokens: domain.TokenPair{
			AccessToken:  body.AccessToken.Token,
			RefreshToken: body.RefreshToken.Token,
		},
	}, nil
}

// RefreshTokens обменивает refresh-токен на новую пару. Вызов выполняется
// ровно один раз: повторы здесь недопустимы. Если сервер не прислал новый
// refresh-токен, в паре он остается пустым.
func (c *AuthClient) RefreshTokens(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	log := logger.Log(ctx).With(zap.String("method", LogMethodRefreshTokens))

	pair, err := resilience.ExecuteOnce(ctx, c.resilience, LogMethodRefreshTokens,
		func(ctx context.Context) (domain.TokenPair, error) {
			req, err := newRequest(ctx, http.MethodPost, c.cfg.URL(c.cfg.RefreshPath),
				refreshRequest{RefreshToken: refreshToken})
			if err != nil {
				return domain.TokenPair{}, err
			}

			var body tokenResponse
			if err := call(c.doer, req, c.cfg.RefreshPath, &body); err != nil {
				return domain.TokenPair{}, err
			}
			if body.AccessToken.Token == "" {
				return domain.TokenPair{}, errMissingAccessToken
			}
			return domain.TokenPair{
				AccessToken:  body.AccessToken.Token,
				RefreshToken: body.RefreshToken.Token,
			}, nil
		})
	if err != nil {
		log.Warn(ctx, LogRefreshFailed, zap.Error(err))
		return domain.TokenPair{}, fmt.Errorf("%w: %w", domain.ErrRefreshRejected, err)
	}
	return pair, nil
}
