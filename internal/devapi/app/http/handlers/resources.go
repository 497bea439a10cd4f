package handlers

import (
	"github.com/gofiber/fiber/v3"

	"tracker/internal/devapi/domain"
)

// Catalog - источник справочных данных.
type Catalog interface {
	Projects() []domain.Project
	Teams() []domain.Team
	Issues(projectID string) []domain.Issue
	Issue(idOrKey string) (domain.Issue, error)
}

// ResourceHandler отдает проекты, команды и задачи.
type ResourceHandler struct {
	catalog Catalog
}

// NewResourceHandler создает обработчик справочников.
func NewResourceHandler(catalog Catalog) *ResourceHandler {
	return &ResourceHandler{catalog: catalog}
}

// Projects возвращает список проектов.
func (h *ResourceHandler) Projects(ctx fiber.Ctx) error {
	return ctx.JSON(h.catalog.Projects())
}

// Teams возвращает список команд.
func (h *ResourceHandler) Teams(ctx fiber.Ctx) error {
	return ctx.JSON(h.catalog.Teams())
}

// Issues возвращает задачи, фильтруя по ?projectId=.
func (h *ResourceHandler) Issues(ctx fiber.Ctx) error {
	return ctx.JSON(h.catalog.Issues(ctx.Query("projectId")))
}

// Issue возвращает задачу по ID или ключу.
func (h *ResourceHandler) Issue(ctx fiber.Ctx) error {
	issue, err := h.catalog.Issue(ctx.Params("id"))
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": rootMessage(err)})
	}
	return ctx.JSON(issue)
}
