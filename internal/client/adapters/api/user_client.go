package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"tracker/internal/client/config"
	"tracker/internal/client/domain"
	"tracker/internal/client/ports/api"
	"tracker/internal/client/resilience"
	"tracker/pkg/logger"
)

// Константы для логирования.
const (
	LogMethodGetProfile = "get profile"

	ErrorFailedToFetchProfile = "failed to fetch user profile"
)

var errEmptyProfile = errors.New("empty profile in response")

// UserClient получает профиль пользователя через шлюз запросов.
type UserClient struct {
	doer       api.Doer
	cfg        config.APIConfig
	resilience *resilience.ServiceResilience
}

var _ api.UserAPI = (*UserClient)(nil)

// NewUserClient создает клиента профилей. doer обычно шлюз запросов.
func NewUserClient(doer api.Doer, cfg config.APIConfig, res *resilience.ServiceResilience) *UserClient {
	return &UserClient{
		doer:       doer,
		cfg:        cfg,
		resilience: res,
	}
}

// GetProfile загружает профиль по идентификатору.
func (c *UserClient) GetProfile(ctx context.Context, id string) (*domain.UserProfile, error) {
	log := logger.Log(ctx).With(zap.String("method", LogMethodGetProfile))
	path := c.cfg.ProfilePath + url.PathEscape(id)

	profile, err := resilience.Execute(ctx, c.resilience, LogMethodGetProfile,
		func(ctx context.Context) (*domain.UserProfile, error) {
			req, err := newRequest(ctx, http.MethodGet, c.cfg.URL(path), nil)
			if err != nil {
				return nil, err
			}

			var profile domain.UserProfile
			if err := call(c.doer, req, c.cfg.ProfilePath, &profile); err != nil {
				return nil, err
			}
			if profile.ID == "" {
				return nil, errEmptyProfile
			}
			return &profile, nil
		})
	if err != nil {
		log.Warn(ctx, ErrorFailedToFetchProfile, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrorFailedToFetchProfile, err)
	}
	return profile, nil
}
