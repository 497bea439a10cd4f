// Package api описывает внешних участников: REST API трекера.
package api

import (
	"context"
	"net/http"

	"tracker/internal/client/domain"
)

// Doer отправляет HTTP-запрос. Реализуется *http.Client и шлюзом запросов.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// AuthResult - ответ эндпоинтов входа и регистрации.
type AuthResult struct {
	User   *domain.UserProfile
	Tokens domain.TokenPair
}

// RegisterRequest - данные для создания учетной записи.
type RegisterRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	SlackUserID string `json:"slackUserId,omitempty"`
}

// Refresher обменивает refresh-токен на новую пару.
type Refresher interface {
	RefreshTokens(ctx context.Context, refreshToken string) (domain.TokenPair, error)
}

// AuthAPI - эндпоинты аутентификации.
type AuthAPI interface {
	Refresher
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Register(ctx context.Context, req RegisterRequest) (*AuthResult, error)
}

// UserAPI - эндпоинт профиля пользователя.
type UserAPI interface {
	GetProfile(ctx context.Context, id string) (*domain.UserProfile, error)
}
