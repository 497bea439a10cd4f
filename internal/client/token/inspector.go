// Package token извлекает claims из access-токена без проверки подписи.
// Результат используется только для маршрутизации и UX: авторизацию
// всегда выполняет сервер.
package token

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tracker/internal/client/domain"
)

// DefaultExpiryMargin - запас до истечения, при котором токен считается истекающим.
const DefaultExpiryMargin = 30 * time.Second

// SubjectClaims - claims с идентификатором пользователя в порядке приоритета.
var SubjectClaims = []string{"sub", "user_id", "userId", "id", "_id"}

// Inspector разбирает JWT без проверки подписи.
type Inspector struct {
	parser *jwt.Parser
	now    func() time.Time
}

// Option настраивает Inspector.
type Option func(*Inspector)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(i *Inspector) {
		i.now = now
	}
}

// NewInspector создает Inspector.
func NewInspector(opts ...Option) *Inspector {
	i := &Inspector{
		parser: jwt.NewParser(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Decode возвращает claims токена.
func (i *Inspector) Decode(raw string) (jwt.MapClaims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", domain.ErrCredentialDecode)
	}

	parsed, _, err := i.parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCredentialDecode, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", domain.ErrCredentialDecode)
	}
	return claims, nil
}

// SubjectID возвращает идентификатор пользователя из первого непустого claim.
func (i *Inspector) SubjectID(raw string) (string, bool) {
	claims, err := i.Decode(raw)
	if err != nil {
		return "", false
	}

	for _, name := range SubjectClaims {
		if id, ok := claimString(claims[name]); ok {
			return id, true
		}
	}
	return "", false
}

// claimString приводит claim к строке. Числа принимаются только целые.
func claimString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		if math.IsInf(t, 0) || t != math.Trunc(t) {
			return "", false
		}
		return strconv.FormatFloat(t, 'f', 0, 64), true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return "", false
		}
		return strconv.FormatInt(n, 10), true
	default:
		return "", false
	}
}

// ExpiresAt возвращает время истечения токена.
func (i *Inspector) ExpiresAt(raw string) (time.Time, bool) {
	claims, err := i.Decode(raw)
	if err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// IsExpiringSoon сообщает, истекает ли токен раньше чем через margin.
// Нечитаемый токен или токен без exp считается истекающим.
func (i *Inspector) IsExpiringSoon(raw string, margin time.Duration) bool {
	exp, ok := i.ExpiresAt(raw)
	if !ok {
		return true
	}
	return exp.Sub(i.now()) < margin
}
