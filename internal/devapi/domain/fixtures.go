package domain

// Project - проект трекера.
type Project struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	LeadID      string `json:"leadId"`
}

// Team - команда.
type Team struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	ProjectID string   `json:"projectId"`
	MemberIDs []string `json:"memberIds"`
}

// Issue - задача.
type Issue struct {
	ID         string `json:"id"`
	Key        string `json:"key"`
	ProjectID  string `json:"projectId"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	AssigneeID string `json:"assigneeId,omitempty"`
}
