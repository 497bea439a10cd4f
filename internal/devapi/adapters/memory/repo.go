// Package memory содержит in-memory хранилища тестового API.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"tracker/internal/devapi/domain"
)

// UserRepo хранит пользователей в памяти.
type UserRepo struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
}

// NewUserRepo создает пустое хранилище пользователей.
func NewUserRepo() *UserRepo {
	return &UserRepo{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

// Create сохраняет пользователя. Email сравнивается без учета регистра.
func (r *UserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := r.byEmail[email]; ok {
		return domain.ErrUserExists
	}

	stored := *user
	r.byID[user.ID] = &stored
	r.byEmail[email] = user.ID
	return nil
}

// FindByEmail ищет пользователя по email.
func (r *UserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	user := *r.byID[id]
	return &user, nil
}

// FindByID ищет пользователя по идентификатору.
func (r *UserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	user := *u
	return &user, nil
}

// TokenRepo хранит действующие refresh-токены.
type TokenRepo struct {
	mu     sync.Mutex
	tokens map[string]domain.RefreshSession
	now    func() time.Time
}

// NewTokenRepo создает пустое хранилище refresh-токенов.
func NewTokenRepo(now func() time.Time) *TokenRepo {
	if now == nil {
		now = time.Now
	}
	return &TokenRepo{
		tokens: make(map[string]domain.RefreshSession),
		now:    now,
	}
}

// Store сохраняет refresh-токен.
func (r *TokenRepo) Store(_ context.Context, token string, session domain.RefreshSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[token] = session
	return nil
}

// Consume извлекает токен и сразу делает его недействительным.
// Истекший или неизвестный токен дает ErrInvalidRefreshToken.
func (r *TokenRepo) Consume(_ context.Context, token string) (domain.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.tokens[token]
	if !ok {
		return domain.RefreshSession{}, domain.ErrInvalidRefreshToken
	}
	delete(r.tokens, token)

	if !r.now().Before(session.ExpiresAt) {
		return domain.RefreshSession{}, domain.ErrInvalidRefreshToken
	}
	return session, nil
}

// Len возвращает число действующих токенов.
func (r *TokenRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}
