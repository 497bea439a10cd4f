package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"tracker/internal/client/config"
	"tracker/internal/client/ports/api"
	"tracker/internal/client/resilience"
	"tracker/pkg/logger"
)

// Константы для логирования.
const (
	LogMethodGetResource = "get resource"

	ErrorFailedToFetchResource = "failed to fetch resource"
)

// ResourceClient читает ресурсы трекера (проекты, задачи, команды) через шлюз.
type ResourceClient struct {
	doer       api.Doer
	cfg        config.APIConfig
	resilience *resilience.ServiceResilience
}

// NewResourceClient создает клиента ресурсов.
func NewResourceClient(doer api.Doer, cfg config.APIConfig, res *resilience.ServiceResilience) *ResourceClient {
	return &ResourceClient{
		doer:       doer,
		cfg:        cfg,
		resilience: res,
	}
}

// Get выполняет GET по пути относительно базового адреса и возвращает тело как JSON.
func (c *ResourceClient) Get(ctx context.Context, path string) (json.RawMessage, error) {
	log := logger.Log(ctx).With(zap.String("method", LogMethodGetResource), zap.String("path", path))

	body, err := resilience.Execute(ctx, c.resilience, LogMethodGetResource,
		func(ctx context.Context) (json.RawMessage, error) {
			req, err := newRequest(ctx, http.MethodGet, c.cfg.URL(path), nil)
			if err != nil {
				return nil, err
			}

			var body json.RawMessage
			if err := call(c.doer, req, path, &body); err != nil {
				return nil, err
			}
			return body, nil
		})
	if err != nil {
		log.Warn(ctx, ErrorFailedToFetchResource, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrorFailedToFetchResource, err)
	}
	return body, nil
}

// GetInto выполняет Get и декодирует ответ в out.
func (c *ResourceClient) GetInto(ctx context.Context, path string, out any) error {
	body, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: %w", ErrorFailedToDecode, err)
	}
	return nil
}
