package domain

import (
	"errors"
	"fmt"
)

// Ошибки аутентификации клиента.
var (
	// ErrCredentialDecode - access-токен не удалось разобрать.
	ErrCredentialDecode = errors.New("credential decode error")
	// ErrNoRefreshToken - обновление запрошено без refresh-токена.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrRefreshRejected - сервер отклонил обновление или вернул неполный ответ.
	ErrRefreshRejected = errors.New("token refresh rejected")
	// ErrRefreshUnavailable - обновление не выполнялось, сервис временно недоступен.
	// Учетные данные при этом сохраняются.
	ErrRefreshUnavailable = errors.New("token refresh unavailable")
	// ErrAuthEndpoint - ошибка входа или регистрации.
	ErrAuthEndpoint = errors.New("authentication endpoint error")
	// ErrProfileFetch - не удалось получить профиль пользователя.
	ErrProfileFetch = errors.New("user profile fetch failed")
	// ErrNotAuthenticated - операция требует активной сессии.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// APIError описывает ответ REST API со статусом вне диапазона 2xx.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Temporary сообщает, имеет ли смысл повторять запрос.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IsTransient сообщает, является ли ошибка сбоем транспорта или сервера,
// а не отказом по существу запроса (4xx) или завершением сессии.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	for _, sentinel := range []error{
		ErrCredentialDecode, ErrNoRefreshToken, ErrRefreshRejected, ErrRefreshUnavailable,
		ErrAuthEndpoint, ErrNotAuthenticated,
	} {
		if errors.Is(err, sentinel) {
			return false
		}
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}
