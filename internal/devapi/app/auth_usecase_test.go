package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tracker/internal/devapi/adapters/memory"
	"tracker/internal/devapi/adapters/services"
	"tracker/internal/devapi/app"
	"tracker/internal/devapi/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newUseCase(t *testing.T) (*app.AuthUseCase, *memory.TokenRepo, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	tokens := memory.NewTokenRepo(clock.Now)
	issuer := services.NewJWT("usecase-secret", time.Minute).WithClock(clock.Now)
	uc := app.NewAuthUseCase(memory.NewUserRepo(), tokens, services.NewBcrypt(bcrypt.MinCost), issuer, time.Hour).
		WithClock(clock.Now)
	return uc, tokens, clock
}

var ada = app.RegisterInput{
	FirstName: "Ada",
	LastName:  "Lovelace",
	Email:     "ada@example.com",
	Password:  "analytical",
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	uc, tokens, _ := newUseCase(t)

	session, err := uc.Register(ctx, ada)
	require.NoError(t, err)
	assert.NotEmpty(t, session.User.ID)
	assert.Equal(t, "member", session.User.Role)
	assert.NotEmpty(t, session.Access.Token)
	assert.Empty(t, session.Refresh.Token, "registration issues no refresh token")
	assert.Zero(t, tokens.Len())

	_, err = uc.Register(ctx, ada)
	require.ErrorIs(t, err, domain.ErrUserExists)

	invalid := ada
	invalid.Email = "not-an-email"
	_, err = uc.Register(ctx, invalid)
	require.ErrorIs(t, err, domain.ErrInvalidEmail)

	invalid = ada
	invalid.Email = "other@example.com"
	invalid.LastName = " "
	_, err = uc.Register(ctx, invalid)
	require.ErrorIs(t, err, domain.ErrEmptyName)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	uc, tokens, clock := newUseCase(t)
	_, err := uc.Register(ctx, ada)
	require.NoError(t, err)

	session, err := uc.Login(ctx, "ADA@example.com", ada.Password)
	require.NoError(t, err)
	assert.NotEmpty(t, session.Refresh.Token)
	assert.Equal(t, clock.Now().Add(time.Hour), session.Refresh.Expires)
	assert.Equal(t, 1, tokens.Len())

	id, err := uc.ValidateAccessToken(ctx, session.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, id)

	_, err = uc.Login(ctx, ada.Email, "wrong-password")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = uc.Login(ctx, "nobody@example.com", ada.Password)
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestRefreshTokensRotates(t *testing.T) {
	ctx := context.Background()
	uc, tokens, _ := newUseCase(t)
	_, err := uc.Register(ctx, ada)
	require.NoError(t, err)
	login, err := uc.Login(ctx, ada.Email, ada.Password)
	require.NoError(t, err)

	rotated, err := uc.RefreshTokens(ctx, login.Refresh.Token)
	require.NoError(t, err)
	assert.NotEqual(t, login.Refresh.Token, rotated.Refresh.Token)
	assert.Equal(t, 1, tokens.Len())

	_, err = uc.RefreshTokens(ctx, login.Refresh.Token)
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken, "a consumed refresh token cannot be replayed")

	_, err = uc.RefreshTokens(ctx, "unknown")
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
}

func TestRefreshTokensExpired(t *testing.T) {
	ctx := context.Background()
	uc, _, clock := newUseCase(t)
	_, err := uc.Register(ctx, ada)
	require.NoError(t, err)
	login, err := uc.Login(ctx, ada.Email, ada.Password)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)

	_, err = uc.RefreshTokens(ctx, login.Refresh.Token)
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)

	_, err = uc.ValidateAccessToken(ctx, login.Access.Token)
	require.ErrorIs(t, err, domain.ErrExpiredAccessToken)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newUseCase(t)

	require.NoError(t, uc.Seed(ctx, ada))
	require.NoError(t, uc.Seed(ctx, ada))

	_, err := uc.Login(ctx, ada.Email, ada.Password)
	require.NoError(t, err)
}

func TestCatalog(t *testing.T) {
	catalog := app.NewCatalog("lead")

	assert.Len(t, catalog.Projects(), 2)
	assert.Len(t, catalog.Teams(), 2)
	assert.Len(t, catalog.Issues(""), 3)
	assert.Len(t, catalog.Issues("p-1"), 2)

	issue, err := catalog.Issue("TRK-1")
	require.NoError(t, err)
	assert.Equal(t, "i-1", issue.ID)

	_, err = catalog.Issue("NOPE-1")
	require.ErrorIs(t, err, domain.ErrResourceNotFound)
}
