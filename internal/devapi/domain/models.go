// Package domain содержит модель тестового API трекера.
package domain

import (
	"errors"
	"time"
)

// Ошибки тестового API.
var (
	ErrUserExists          = errors.New("user with this email already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrExpiredAccessToken  = errors.New("access token expired")
	ErrInvalidPassword     = errors.New("invalid password")
	ErrHashingFailed       = errors.New("password hashing failed")
	ErrInvalidEmail        = errors.New("invalid email format")
	ErrEmptyName           = errors.New("first and last name are required")
	ErrResourceNotFound    = errors.New("resource not found")
)

// MinPasswordLength - минимальная длина пароля.
const MinPasswordLength = 6

// User - учетная запись.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	Role         string
	SlackUserID  string
	PasswordHash string
	CreatedAt    time.Time
}

// Profile - публичное представление пользователя.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// Profile возвращает публичное представление пользователя.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
	}
}

// IssuedToken - выпущенный токен и время его истечения.
type IssuedToken struct {
	Token   string
	Expires time.Time
}

// RefreshSession - действующий refresh-токен.
type RefreshSession struct {
	UserID    string
	ExpiresAt time.Time
}
