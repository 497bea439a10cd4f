// Package handlers содержит HTTP обработчики тестового API.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"tracker/internal/devapi/app"
	"tracker/internal/devapi/domain"
	"tracker/pkg/logger"
)

// Константы для логирования.
const (
	LogHandlerRegister      = "auth handler: register"
	LogHandlerLogin         = "auth handler: login"
	LogHandlerRefreshTokens = "auth handler: regenerate tokens" // #nosec G101 - not a credential
	LogHandlerGetProfile    = "user handler: get profile"

	ErrorInvalidRequest       = "invalid request"
	ErrorFailedToServeRequest = "failed to serve request"
)

// AuthService - сценарии аутентификации, нужные обработчикам.
type AuthService interface {
	Register(ctx context.Context, in app.RegisterInput) (*app.AuthSession, error)
	Login(ctx context.Context, email, password string) (*app.AuthSession, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*app.AuthSession, error)
	Profile(ctx context.Context, id string) (*domain.User, error)
}

// AuthHandler содержит HTTP обработчики аутентификации и профилей.
type AuthHandler struct {
	service    AuthService
	bareTokens bool
}

// NewAuthHandler создает обработчик. При bareTokens токены отдаются строками.
func NewAuthHandler(service AuthService, bareTokens bool) *AuthHandler {
	return &AuthHandler{service: service, bareTokens: bareTokens}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	SlackUserID string `json:"slackUserId"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenObject struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// Register обрабатывает регистрацию. Ответ содержит только токен доступа.
func (h *AuthHandler) Register(ctx fiber.Ctx) error {
	requestCtx := ctx.Context()
	log := logger.Log(requestCtx)
	log.Info(requestCtx, LogHandlerRegister)

	var req registerRequest
	if err := ctx.Bind().JSON(&req); err != nil {
		log.Debug(requestCtx, ErrorInvalidRequest, zap.Error(err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": ErrorInvalidRequest})
	}

	session, err := h.service.Register(requestCtx, app.RegisterInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Password:    req.Password,
		SlackUserID: req.SlackUserID,
	})
	if err != nil {
		log.Warn(requestCtx, ErrorFailedToServeRequest, zap.Error(err))
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": rootMessage(err)})
	}

	return ctx.Status(http.StatusCreated).JSON(fiber.Map{
		"user":        session.User.Profile(),
		"accessToken": h.token(session.Access),
	})
}

// Login обрабатывает вход по email и паролю.
func (h *AuthHandler) Login(ctx fiber.Ctx) error {
	requestCtx := ctx.Context()
	log := logger.Log(requestCtx)
	log.Info(requestCtx, LogHandlerLogin)

	var req loginRequest
	if err := ctx.Bind().JSON(&req); err != nil {
		log.Debug(requestCtx, ErrorInvalidRequest, zap.Error(err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": ErrorInvalidRequest})
	}
	if req.Email == "" || req.Password == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "email and password are required"})
	}

	session, err := h.service.Login(requestCtx, req.Email, req.Password)
	if err != nil {
		log.Warn(requestCtx, ErrorFailedToServeRequest, zap.Error(err))
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": rootMessage(err)})
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"user":         session.User.Profile(),
		"accessToken":  h.token(session.Access),
		"refreshToken": h.token(session.Refresh),
	})
}

// RegenerateTokens обменивает refresh-токен на новую пару.
func (h *AuthHandler) RegenerateTokens(ctx fiber.Ctx) error {
	requestCtx := ctx.Context()
	log := logger.Log(requestCtx)
	log.Info(requestCtx, LogHandlerRefreshTokens)

	var req refreshRequest
	if err := ctx.Bind().JSON(&req); err != nil || req.RefreshToken == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": ErrorInvalidRequest})
	}

	session, err := h.service.RefreshTokens(requestCtx, req.RefreshToken)
	if err != nil {
		log.Warn(requestCtx, ErrorFailedToServeRequest, zap.Error(err))
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": rootMessage(err)})
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"accessToken":  h.token(session.Access),
		"refreshToken": h.token(session.Refresh),
	})
}

// GetProfile возвращает профиль пользователя по идентификатору.
func (h *AuthHandler) GetProfile(ctx fiber.Ctx) error {
	requestCtx := ctx.Context()
	log := logger.Log(requestCtx).With(zap.String("userID", ctx.Params("id")))
	log.Debug(requestCtx, LogHandlerGetProfile)

	user, err := h.service.Profile(requestCtx, ctx.Params("id"))
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": rootMessage(err)})
	}
	return ctx.JSON(user.Profile())
}

func (h *AuthHandler) token(t domain.IssuedToken) any {
	if h.bareTokens {
		return t.Token
	}
	return tokenObject{Token: t.Token, Expires: t.Expires.UTC()}
}

var statusTable = []struct {
	err    error
	status int
}{
	{domain.ErrInvalidCredentials, http.StatusUnauthorized},
	{domain.ErrInvalidRefreshToken, http.StatusUnauthorized},
	{domain.ErrUserExists, http.StatusConflict},
	{domain.ErrInvalidEmail, http.StatusBadRequest},
	{domain.ErrEmptyName, http.StatusBadRequest},
	{domain.ErrInvalidPassword, http.StatusBadRequest},
	{domain.ErrUserNotFound, http.StatusNotFound},
	{domain.ErrResourceNotFound, http.StatusNotFound},
}

func statusFor(err error) int {
	for _, entry := range statusTable {
		if errors.Is(err, entry.err) {
			return entry.status
		}
	}
	return http.StatusInternalServerError
}

// rootMessage скрывает внутренние детали: наружу уходит текст доменной ошибки.
func rootMessage(err error) string {
	for _, entry := range statusTable {
		if errors.Is(err, entry.err) {
			return entry.err.Error()
		}
	}
	return http.StatusText(http.StatusInternalServerError)
}
