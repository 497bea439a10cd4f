package resilience

import (
	"context"

	"go.uber.org/zap"

	"tracker/pkg/logger"
)

// Константы для логирования.
const (
	LogExecute     = "executing operation with resilience"
	LogExecuteOnce = "executing operation behind circuit breaker"
	LogOperation   = "operation failed"
)

// ServiceResilience объединяет Circuit Breaker и повторы для одного сервиса.
type ServiceResilience struct {
	serviceName    string
	circuitBreaker *CircuitBreaker
	retry          *Retry
}

// NewServiceResilience создает обертку отказоустойчивости для сервиса.
func NewServiceResilience(serviceName string, breaker CircuitBreakerConfig, retry RetryConfig) *ServiceResilience {
	return &ServiceResilience{
		serviceName:    serviceName,
		circuitBreaker: NewCircuitBreaker(serviceName, breaker),
		retry:          NewRetry(serviceName, retry),
	}
}

// Breaker возвращает Circuit Breaker сервиса.
func (r *ServiceResilience) Breaker() *CircuitBreaker {
	return r.circuitBreaker
}

// Execute выполняет идемпотентную операцию с повторами за Circuit Breaker.
// Nil-обертка просто вызывает операцию.
func Execute[T any](
	ctx context.Context,
	r *ServiceResilience,
	operationName string,
	operation func(context.Context) (T, error),
) (T, error) {
	if r == nil {
		return operation(ctx)
	}

	log := logger.Log(ctx).With(
		zap.String("service", r.serviceName),
		zap.String("operation", operationName),
	)
	log.Debug(ctx, LogExecute)

	var result T
	err := r.circuitBreaker.Execute(ctx, func() error {
		return r.retry.Execute(ctx, func() error {
			var err error
			result, err = operation(ctx)
			if err != nil {
				log.Debug(ctx, LogOperation, zap.Error(err))
			}
			return err
		})
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// ExecuteOnce выполняет операцию за Circuit Breaker без повторов.
// Используется для неидемпотентных вызовов вроде обновления токенов.
func ExecuteOnce[T any](
	ctx context.Context,
	r *ServiceResilience,
	operationName string,
	operation func(context.Context) (T, error),
) (T, error) {
	if r == nil {
		return operation(ctx)
	}

	logger.Log(ctx).Debug(ctx, LogExecuteOnce,
		zap.String("service", r.serviceName),
		zap.String("operation", operationName))

	var result T
	err := r.circuitBreaker.Execute(ctx, func() error {
		var err error
		result, err = operation(ctx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
