// Package credentials хранит пару токенов и профиль пользователя в одном из двух
// мест: во временном (память процесса) или в постоянном (режим "запомнить меня").
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tracker/internal/client/domain"
	"tracker/internal/client/ports/storage"
	"tracker/pkg/logger"
)

// Ключи учетных данных.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUserID       = "userId"
	KeyUser         = "user"
)

// Константы для логирования.
const (
	LogDurableSessionDetected = "durable session detected"
	LogModeChanged            = "credential storage mode changed"
	LogCredentialsCleared     = "credentials cleared"
	LogCorruptProfile         = "cached profile is corrupt, discarding"
)

// Операции для StoreError.
const (
	OpProbe   = "probe"
	OpGet     = "get"
	OpSet     = "set"
	OpRemove  = "remove"
	OpClear   = "clear"
	OpMigrate = "migrate"
)

// KnownKeys - ключи, которые удаляются при ClearAll.
var KnownKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUserID, KeyUser}

// StoreError описывает сбой места хранения.
type StoreError struct {
	Operation string
	Key       string
	Cause     error
}

// Error реализует интерфейс error.
func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("credentials %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("credentials %s %q: %v", e.Operation, e.Key, e.Cause)
}

// Unwrap возвращает исходную ошибку.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Store выбирает активное место хранения по режиму и гарантирует,
// что ключ никогда не хранится в обоих местах одновременно.
type Store struct {
	mu              sync.Mutex
	ephemeral       storage.Backend
	durable         storage.Backend
	mode            domain.StorageMode
	durableDetected bool
	written         map[string]struct{}
}

// New создает хранилище. Если в постоянном месте уже есть токен,
// режим восстанавливается как Durable.
func New(ctx context.Context, ephemeral, durable storage.Backend) (*Store, error) {
	s := &Store{
		ephemeral: ephemeral,
		durable:   durable,
		mode:      domain.Ephemeral,
		written:   make(map[string]struct{}),
	}

	for _, key := range []string{KeyAccessToken, KeyRefreshToken} {
		_, ok, err := durable.Get(ctx, key)
		if err != nil {
			return nil, &StoreError{Operation: OpProbe, Key: key, Cause: err}
		}
		if ok {
			s.durableDetected = true
			s.mode = domain.Durable
			logger.Log(ctx).Info(ctx, LogDurableSessionDetected)
			break
		}
	}

	return s, nil
}

// WasDurableSessionDetected сообщает, была ли найдена постоянная сессия при создании.
func (s *Store) WasDurableSessionDetected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.durableDetected
}

// Mode возвращает текущий режим хранения.
func (s *Store) Mode() domain.StorageMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Store) backendsLocked() (active, inactive storage.Backend) {
	if s.mode == domain.Durable {
		return s.durable, s.ephemeral
	}
	return s.ephemeral, s.durable
}

func (s *Store) keysLocked() []string {
	keys := make([]string, 0, len(KnownKeys)+len(s.written))
	keys = append(keys, KnownKeys...)
	for k := range s.written {
		if !isKnown(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

func isKnown(key string) bool {
	for _, k := range KnownKeys {
		if k == key {
			return true
		}
	}
	return false
}

// SetMode выбирает место для последующих записей. Ключи, уже лежащие
// в прежнем месте, переносятся в новое.
func (s *Store) SetMode(ctx context.Context, durable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := domain.Ephemeral
	if durable {
		next = domain.Durable
	}
	if next == s.mode {
		return nil
	}

	from, to := s.backendsLocked()
	for _, key := range s.keysLocked() {
		v, ok, err := from.Get(ctx, key)
		if err != nil {
			return &StoreError{Operation: OpMigrate, Key: key, Cause: err}
		}
		if !ok {
			continue
		}
		if err := to.Set(ctx, key, v); err != nil {
			return &StoreError{Operation: OpMigrate, Key: key, Cause: err}
		}
		if err := from.Delete(ctx, key); err != nil {
			return &StoreError{Operation: OpMigrate, Key: key, Cause: err}
		}
	}

	logger.Log(ctx).Debug(ctx, LogModeChanged,
		zap.Stringer("from", s.mode), zap.Stringer("to", next))
	s.mode = next
	return nil
}

// Set пишет значение в активное место и удаляет копию из другого.
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(ctx, key, value)
}

func (s *Store) setLocked(ctx context.Context, key, value string) error {
	active, inactive := s.backendsLocked()
	if err := active.Set(ctx, key, value); err != nil {
		return &StoreError{Operation: OpSet, Key: key, Cause: err}
	}
	if err := inactive.Delete(ctx, key); err != nil {
		return &StoreError{Operation: OpSet, Key: key, Cause: err}
	}
	s.written[key] = struct{}{}
	return nil
}

// Get читает активное место, затем неактивное.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(ctx, key)
}

func (s *Store) getLocked(ctx context.Context, key string) (string, bool, error) {
	active, inactive := s.backendsLocked()
	for _, b := range []storage.Backend{active, inactive} {
		v, ok, err := b.Get(ctx, key)
		if err != nil {
			return "", false, &StoreError{Operation: OpGet, Key: key, Cause: err}
		}
		if ok {
			return v, true, nil
		}
	}
	return "", false, nil
}

// Remove удаляет ключ из обоих мест.
func (s *Store) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(ctx, key)
}

func (s *Store) removeLocked(ctx context.Context, keys ...string) error {
	var errs []error
	for _, b := range []storage.Backend{s.ephemeral, s.durable} {
		if err := b.Delete(ctx, keys...); err != nil {
			errs = append(errs, err)
		}
	}
	for _, k := range keys {
		delete(s.written, k)
	}
	if len(errs) > 0 {
		return &StoreError{Operation: OpRemove, Cause: errors.Join(errs...)}
	}
	return nil
}

// ClearAll удаляет все учетные данные из обоих мест и возвращает режим Ephemeral.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.removeLocked(ctx, s.keysLocked()...)
	s.mode = domain.Ephemeral
	s.durableDetected = false

	if err != nil {
		return &StoreError{Operation: OpClear, Cause: err}
	}
	logger.Log(ctx).Debug(ctx, LogCredentialsCleared)
	return nil
}

// Tokens возвращает сохраненную пару или nil, если access-токена нет.
func (s *Store) Tokens(ctx context.Context) (*domain.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	access, ok, err := s.getLocked(ctx, KeyAccessToken)
	if err != nil || !ok || access == "" {
		return nil, err
	}
	refresh, _, err := s.getLocked(ctx, KeyRefreshToken)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// AccessToken возвращает текущий access-токен.
func (s *Store) AccessToken(ctx context.Context) (string, bool, error) {
	return s.Get(ctx, KeyAccessToken)
}

// RefreshToken возвращает текущий refresh-токен.
func (s *Store) RefreshToken(ctx context.Context) (string, bool, error) {
	v, ok, err := s.Get(ctx, KeyRefreshToken)
	return v, ok && v != "", err
}

// SetTokens сохраняет пару. Пустой refresh-токен не перезаписывает существующий.
func (s *Store) SetTokens(ctx context.Context, pair domain.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.setLocked(ctx, KeyAccessToken, pair.AccessToken); err != nil {
		return err
	}
	if pair.RefreshToken != "" {
		return s.setLocked(ctx, KeyRefreshToken, pair.RefreshToken)
	}
	return nil
}

// Profile возвращает кэшированный профиль или nil.
// Поврежденная запись удаляется и считается отсутствующей.
func (s *Store) Profile(ctx context.Context) (*domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.getLocked(ctx, KeyUser)
	if err != nil || !ok {
		return nil, err
	}

	var profile domain.UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		logger.Log(ctx).Warn(ctx, LogCorruptProfile, zap.Error(err))
		return nil, s.removeLocked(ctx, KeyUser)
	}
	return &profile, nil
}

// SetProfile кэширует профиль и идентификатор пользователя.
func (s *Store) SetProfile(ctx context.Context, profile *domain.UserProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return &StoreError{Operation: OpSet, Key: KeyUser, Cause: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.setLocked(ctx, KeyUser, string(raw)); err != nil {
		return err
	}
	return s.setLocked(ctx, KeyUserID, profile.ID)
}
