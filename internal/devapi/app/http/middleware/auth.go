// Package middleware содержит промежуточное ПО для HTTP обработчиков тестового API.
package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"tracker/internal/devapi/domain"
	"tracker/pkg/logger"
)

// Константы для логирования.
const (
	LogAuthMiddleware = "auth middleware"

	ErrorNoAuthHeader       = "no authorization header provided"
	ErrorInvalidTokenFormat = "invalid token format"
	ErrorTokenRejected      = "access token rejected"

	// LocalUserID - ключ Locals с ID аутентифицированного пользователя.
	LocalUserID = "userID"
)

// TokenValidator проверяет токен доступа.
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, raw string) (string, error)
}

// NewAuthMiddleware создает промежуточное ПО, пропускающее только запросы
// с действующим Bearer-токеном.
func NewAuthMiddleware(validator TokenValidator) fiber.Handler {
	return func(ctx fiber.Ctx) error {
		requestCtx := ctx.Context()
		log := logger.Log(requestCtx).With(zap.String("middleware", "auth"))
		log.Debug(requestCtx, LogAuthMiddleware)

		authHeader := ctx.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			log.Debug(requestCtx, ErrorNoAuthHeader)
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": ErrorNoAuthHeader})
		}

		raw, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || raw == "" {
			log.Debug(requestCtx, ErrorInvalidTokenFormat)
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": ErrorInvalidTokenFormat})
		}

		userID, err := validator.ValidateAccessToken(requestCtx, raw)
		if err != nil {
			log.Debug(requestCtx, ErrorTokenRejected, zap.Error(err))
			msg := ErrorTokenRejected
			if errors.Is(err, domain.ErrExpiredAccessToken) {
				msg = domain.ErrExpiredAccessToken.Error()
			}
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
		}

		ctx.Locals(LocalUserID, userID)
		return ctx.Next()
	}
}
