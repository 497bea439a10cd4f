// Package http содержит маршрутизацию тестового API.
package http

import (
	"github.com/gofiber/fiber/v3"

	"tracker/internal/devapi/app/http/handlers"
	"tracker/internal/devapi/app/http/middleware"
)

// SetupRouter настраивает маршрутизацию для HTTP сервера.
func SetupRouter(
	app *fiber.App,
	authHandler *handlers.AuthHandler,
	resourceHandler *handlers.ResourceHandler,
	validator middleware.TokenValidator,
) {
	app.Use(middleware.NewLoggerMiddleware())
	app.Use(middleware.NewRecoveryMiddleware())

	apiV1 := app.Group("/api/v1")

	// Публичные маршруты.
	apiV1.Post("/login", authHandler.Login)
	apiV1.Post("/register", authHandler.Register)
	apiV1.Post("/auth/regenerate-tokens", authHandler.RegenerateTokens)

	// Защищенные маршруты.
	requireAuth := middleware.NewAuthMiddleware(validator)

	apiV1.Group("/user", requireAuth).Get("/id/:id", authHandler.GetProfile)
	apiV1.Group("/project", requireAuth).Get("", resourceHandler.Projects)
	apiV1.Group("/team", requireAuth).Get("", resourceHandler.Teams)

	issueRoutes := apiV1.Group("/issue", requireAuth)
	issueRoutes.Get("", resourceHandler.Issues)
	issueRoutes.Get("/:id", resourceHandler.Issue)

	app.Use(func(c fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Route not found",
		})
	})
}
