// Package devapi собирает тестовый REST API трекера: вход, регистрацию,
// ротацию токенов, профили и справочники.
package devapi

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v3"

	"tracker/internal/devapi/adapters/memory"
	"tracker/internal/devapi/adapters/services"
	"tracker/internal/devapi/app"
	apphttp "tracker/internal/devapi/app/http"
	"tracker/internal/devapi/app/http/handlers"
	"tracker/internal/devapi/config"
	"tracker/internal/devapi/domain"
)

const errSeedingUser = "seeding demo user"

// Server - собранное приложение тестового API.
type Server struct {
	App     *fiber.App
	Auth    *app.AuthUseCase
	Tokens  *memory.TokenRepo
	Catalog *app.Catalog
	SeedID  string
}

// Option настраивает Server.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock подменяет источник времени выпуска и проверки токенов.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New собирает приложение и создает демонстрационного пользователя.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	users := memory.NewUserRepo()
	tokens := memory.NewTokenRepo(o.now)
	issuer := services.NewJWT(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL).WithClock(o.now)
	auth := app.NewAuthUseCase(users, tokens, services.NewBcrypt(cfg.JWT.BcryptCost), issuer, cfg.JWT.RefreshTokenTTL).
		WithClock(o.now)

	if err := auth.Seed(ctx, app.RegisterInput{
		FirstName: cfg.Seed.FirstName,
		LastName:  cfg.Seed.LastName,
		Email:     cfg.Seed.Email,
		Password:  cfg.Seed.Password,
		Role:      cfg.Seed.Role,
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", errSeedingUser, err)
	}
	seed, err := users.FindByEmail(ctx, cfg.Seed.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errSeedingUser, err)
	}

	catalog := app.NewCatalog(seed.ID)

	fiberApp := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	})
	apphttp.SetupRouter(fiberApp,
		handlers.NewAuthHandler(auth, cfg.JWT.BareTokens),
		handlers.NewResourceHandler(catalog),
		auth)

	return &Server{
		App:     fiberApp,
		Auth:    auth,
		Tokens:  tokens,
		Catalog: catalog,
		SeedID:  seed.ID,
	}, nil
}

// Serve обслуживает запросы на ln до остановки приложения.
func (s *Server) Serve(ln net.Listener) error {
	return s.App.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown останавливает сервер, дожидаясь активных запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.App.ShutdownWithContext(ctx)
}

// SeedUser возвращает демонстрационного пользователя.
func (s *Server) SeedUser(ctx context.Context) (*domain.User, error) {
	return s.Auth.Profile(ctx, s.SeedID)
}
