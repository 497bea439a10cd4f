// Package services содержит адаптеры выпуска токенов и хэширования паролей.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"tracker/internal/devapi/domain"
	"tracker/pkg/logger"
)

// Константы для работы с JWT.
const (
	methodIssueAccessToken    = "IssueAccessToken"
	methodValidateAccessToken = "ValidateAccessToken"
	msgIssuingAccessToken     = "issuing access token"
	msgValidatingToken        = "validating token"
	msgTokenIssued            = "token issued successfully"
	msgTokenValidated         = "token validated successfully"
	msgTokenExpired           = "token has expired"
	msgEmptySecret            = "empty secret key provided"
	//nolint:gosec
	errSigningToken = "error signing token"
	//nolint:gosec
	errParsingToken = "error parsing token"
)

// Ошибки адаптера JWT.
var (
	ErrInvalidAlgorithm = errors.New("invalid signing algorithm")
	ErrEmptySecret      = errors.New("empty secret key")
)

// Claims - полезная нагрузка токена доступа.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTIssuer выпускает и проверяет токены доступа HS256.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWT создает JWTIssuer.
func NewJWT(secretKey string, accessTokenTTL time.Duration) *JWTIssuer {
	return &JWTIssuer{
		secret: []byte(secretKey),
		ttl:    accessTokenTTL,
		now:    time.Now,
	}
}

// WithClock подменяет источник времени.
func (s *JWTIssuer) WithClock(now func() time.Time) *JWTIssuer {
	s.now = now
	return s
}

// IssueAccessToken выпускает токен доступа для пользователя.
func (s *JWTIssuer) IssueAccessToken(ctx context.Context, user *domain.User) (domain.IssuedToken, error) {
	log := logger.Log(ctx).With(
		zap.String("method", methodIssueAccessToken),
		zap.String("userID", user.ID),
	)
	log.Debug(ctx, msgIssuingAccessToken)

	if len(s.secret) == 0 {
		log.Error(ctx, msgEmptySecret)
		return domain.IssuedToken{}, ErrEmptySecret
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		log.Error(ctx, errSigningToken, zap.Error(err))
		return domain.IssuedToken{}, fmt.Errorf("%s: %w", errSigningToken, err)
	}

	log.Debug(ctx, msgTokenIssued, zap.Time("expiresAt", expiresAt))
	return domain.IssuedToken{Token: signed, Expires: expiresAt}, nil
}

// ValidateAccessToken проверяет подпись и срок токена и возвращает ID пользователя.
func (s *JWTIssuer) ValidateAccessToken(ctx context.Context, raw string) (string, error) {
	log := logger.Log(ctx).With(zap.String("method", methodValidateAccessToken))
	log.Debug(ctx, msgValidatingToken)

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAlgorithm, token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			log.Debug(ctx, msgTokenExpired)
			return "", domain.ErrExpiredAccessToken
		}
		log.Debug(ctx, errParsingToken, zap.Error(err))
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidAccessToken, err)
	}

	if claims.Subject == "" {
		return "", domain.ErrInvalidAccessToken
	}

	log.Debug(ctx, msgTokenValidated, zap.String("userID", claims.Subject))
	return claims.Subject, nil
}
