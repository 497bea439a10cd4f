// Package app содержит сценарии тестового API: аутентификацию, профили и справочники.
package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tracker/internal/devapi/domain"
	"tracker/pkg/logger"
)

const (
	methodRegister      = "Register"
	methodLogin         = "Login"
	methodRefreshTokens = "RefreshTokens"
	methodSeed          = "Seed"

	msgStartRegistration   = "starting user registration"
	msgUserRegistered      = "user registered successfully"
	msgLoginAttempt        = "login attempt"
	msgLoginNonExistent    = "login attempt with non-existent email"
	msgInvalidPasswordAuth = "invalid password provided"
	msgUserLoggedIn        = "user logged in successfully"
	msgRefreshingTokens    = "refreshing tokens"
	msgRefreshRejected     = "refresh token rejected"
	msgTokensRefreshed     = "tokens refreshed successfully"
	msgUserSeeded          = "demo user seeded"

	errCtxValidating          = "validating registration"
	errCtxHashingPassword     = "hashing password"
	errCtxCreatingUser        = "creating user"
	errCtxInvalidCredentials  = "invalid credentials"
	errCtxFindingUser         = "finding user"
	errCtxVerifyingPassword   = "verifying password"
	errCtxIssuingAccessToken  = "issuing access token"
	errCtxStoringRefreshToken = "storing refresh token"
	errCtxRefreshing          = "refreshing tokens"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// PasswordService хэширует и проверяет пароли.
type PasswordService interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, hash string) (bool, error)
}

// TokenIssuer выпускает и проверяет токены доступа.
type TokenIssuer interface {
	IssueAccessToken(ctx context.Context, user *domain.User) (domain.IssuedToken, error)
	ValidateAccessToken(ctx context.Context, raw string) (string, error)
}

// UserRepository хранит пользователей.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// TokenRepository хранит refresh-токены.
type TokenRepository interface {
	Store(ctx context.Context, token string, session domain.RefreshSession) error
	Consume(ctx context.Context, token string) (domain.RefreshSession, error)
}

// RegisterInput - данные регистрации.
type RegisterInput struct {
	FirstName   string
	LastName    string
	Email       string
	Password    string
	SlackUserID string
	Role        string
}

// AuthSession - результат входа, регистрации или обновления.
// Refresh пуст, если refresh-токен не выпускался.
type AuthSession struct {
	User    *domain.User
	Access  domain.IssuedToken
	Refresh domain.IssuedToken
}

// AuthUseCase реализует аутентификацию тестового API.
type AuthUseCase struct {
	users      UserRepository
	tokens     TokenRepository
	passwords  PasswordService
	issuer     TokenIssuer
	refreshTTL time.Duration
	now        func() time.Time
}

// NewAuthUseCase создает сервис аутентификации.
func NewAuthUseCase(
	users UserRepository,
	tokens TokenRepository,
	passwords PasswordService,
	issuer TokenIssuer,
	refreshTTL time.Duration,
) *AuthUseCase {
	return &AuthUseCase{
		users:      users,
		tokens:     tokens,
		passwords:  passwords,
		issuer:     issuer,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock подменяет источник времени для срока refresh-токенов.
func (a *AuthUseCase) WithClock(now func() time.Time) *AuthUseCase {
	a.now = now
	return a
}

// Register создает пользователя и выдает ему только токен доступа.
func (a *AuthUseCase) Register(ctx context.Context, in RegisterInput) (*AuthSession, error) {
	log := logger.Log(ctx).With(zap.String("method", methodRegister), zap.String("email", in.Email))
	log.Debug(ctx, msgStartRegistration)

	user, err := a.createUser(ctx, in)
	if err != nil {
		return nil, err
	}

	access, err := a.issuer.IssueAccessToken(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtxIssuingAccessToken, err)
	}

	log.Info(ctx, msgUserRegistered, zap.String("userID", user.ID))
	return &AuthSession{User: user, Access: access}, nil
}

// Seed создает пользователя, если его еще нет.
func (a *AuthUseCase) Seed(ctx context.Context, in RegisterInput) error {
	log := logger.Log(ctx).With(zap.String("method", methodSeed), zap.String("email", in.Email))

	if _, err := a.createUser(ctx, in); err != nil && !errors.Is(err, domain.ErrUserExists) {
		return err
	}
	log.Info(ctx, msgUserSeeded)
	return nil
}

func (a *AuthUseCase) createUser(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if err := validateRegistration(in); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtxValidating, err)
	}

	hash, err := a.passwords.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtxHashingPassword, err)
	}

	role := in.Role
	if role == "" {
		role = "member"
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        strings.TrimSpace(in.Email),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
		SlackUserID:  in.SlackUserID,
		PasswordHash: hash,
		CreatedAt:    a.now(),
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtxCreatingUser, err)
	}
	return user, nil
}

// Login аутентифицирует пользователя по email и паролю.
func (a *AuthUseCase) Login(ctx context.Context, email, password string) (*AuthSession, error) {
	log := logger.Log(ctx).With(zap.String("method", methodLogin), zap.String("email", email))
	log.Debug(ctx, msgLoginAttempt)

	user, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			log.Debug(ctx, msgLoginNonExistent)
			return nil, fmt.Errorf("%s: %w", errCtxInvalidCredentials, domain.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", errCtxFindingUser, err)
	}

	valid, err := a.passwords.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPassword) {
			return nil, fmt.Errorf("%s: %w", errCtxInvalidCredentials, domain.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", errCtxVerifyingPassword, err)
	}
	if !valid {
		log.Debug(ctx, msgInvalidPasswordAuth, zap.String("userID", user.ID))
		return nil, fmt.Errorf("%s: %w", errCtxInvalidCredentials, domain.ErrInvalidCredentials)
	}

	session, err := a.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	log.Info(ctx, msgUserLoggedIn, zap.String("userID", user.ID))
	return session, nil
}

// RefreshTokens обменивает refresh-токен на новую пару. Старый токен
// становится недействительным в момент обмена.
func (a *AuthUseCase) RefreshTokens(ctx context.Context, refreshToken string) (*AuthSession, error) {
	log := logger.Log(ctx).With(zap.String("method", methodRefreshTokens))
	log.Debug(ctx, msgRefreshingTokens)

	stored, err := a.tokens.Consume(ctx, refreshToken)
	if err != nil {
		log.Debug(ctx, msgRefreshRejected, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxRefreshing, domain.ErrInvalidRefreshToken)
	}

	user, err := a.users.FindByID(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", errCtxRefreshing, domain.ErrInvalidRefreshToken, err)
	}

	session, err := a.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	log.Info(ctx, msgTokensRefreshed, zap.String("userID", user.ID))
	return session, nil
}

// ValidateAccessToken возвращает ID владельца действующего токена доступа.
func (a *AuthUseCase) ValidateAccessToken(ctx context.Context, raw string) (string, error) {
	return a.issuer.ValidateAccessToken(ctx, raw)
}

// Profile возвращает пользователя по идентификатору.
func (a *AuthUseCase) Profile(ctx context.Context, id string) (*domain.User, error) {
	user, err := a.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtxFindingUser, err)
	}
	return user, nil
}

func (a *AuthUseCase) issuePair(ctx context.Context, user *domain.User) (*AuthSession, error) {
	access, err := a.issuer.IssueAccessToken(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtxIssuingAccessToken, err)
	}

	refresh := domain.IssuedToken{
		Token:   uuid.NewString(),
		Expires: a.now().Add(a.refreshTTL),
	}
	if err := a.tokens.Store(ctx, refresh.Token, domain.RefreshSession{
		UserID:    user.ID,
		ExpiresAt: refresh.Expires,
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtxStoringRefreshToken, err)
	}

	return &AuthSession{User: user, Access: access, Refresh: refresh}, nil
}

func validateRegistration(in RegisterInput) error {
	if !emailRegex.MatchString(strings.TrimSpace(in.Email)) {
		return domain.ErrInvalidEmail
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return domain.ErrEmptyName
	}
	if len(in.Password) < domain.MinPasswordLength {
		return domain.ErrInvalidPassword
	}
	return nil
}
