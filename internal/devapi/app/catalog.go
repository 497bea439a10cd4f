package app

import "tracker/internal/devapi/domain"

// Catalog отдает справочники проектов, команд и задач. Данные неизменяемы.
type Catalog struct {
	projects []domain.Project
	teams    []domain.Team
	issues   []domain.Issue
}

// NewCatalog создает справочник с демонстрационными данными.
// leadID становится руководителем и исполнителем фикстур.
func NewCatalog(leadID string) *Catalog {
	return &Catalog{
		projects: []domain.Project{
			{ID: "p-1", Key: "TRK", Name: "Tracker", Description: "Issue tracker core", LeadID: leadID},
			{ID: "p-2", Key: "OPS", Name: "Operations", Description: "Infrastructure tasks", LeadID: leadID},
		},
		teams: []domain.Team{
			{ID: "t-1", Name: "Core", ProjectID: "p-1", MemberIDs: []string{leadID}},
			{ID: "t-2", Name: "Platform", ProjectID: "p-2", MemberIDs: []string{leadID}},
		},
		issues: []domain.Issue{
			{ID: "i-1", Key: "TRK-1", ProjectID: "p-1", Title: "Refresh tokens on 401", Status: "in_progress", Priority: "high", AssigneeID: leadID},
			{ID: "i-2", Key: "TRK-2", ProjectID: "p-1", Title: "Remember me checkbox", Status: "todo", Priority: "medium"},
			{ID: "i-3", Key: "OPS-1", ProjectID: "p-2", Title: "Rotate signing secret", Status: "done", Priority: "low", AssigneeID: leadID},
		},
	}
}

// Projects возвращает копию списка проектов.
func (c *Catalog) Projects() []domain.Project {
	return append([]domain.Project(nil), c.projects...)
}

// Teams возвращает копию списка команд.
func (c *Catalog) Teams() []domain.Team {
	return append([]domain.Team(nil), c.teams...)
}

// Issues возвращает задачи, при непустом projectID только задачи проекта.
func (c *Catalog) Issues(projectID string) []domain.Issue {

	out := make([]domain.Issue, 0, len(c.issues))
	for _, issue := range c.issues {
		if projectID == "" || issue.ProjectID == projectID {
			out = append(out, issue)
		}
	}
	return out
}

// Issue ищет задачу по идентификатору или ключу.
func (c *Catalog) Issue(idOrKey string) (domain.Issue, error) {

	for _, issue := range c.issues {
		if issue.ID == idOrKey || issue.Key == idOrKey {
			return issue, nil
		}
	}
	return domain.Issue{}, domain.ErrResourceNotFound
}
