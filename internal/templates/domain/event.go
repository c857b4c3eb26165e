package domain

import "time"

type EventType string

const (
	EventCreated       EventType = "created"
	EventStatusChanged EventType = "status_changed"
	EventUpdated       EventType = "updated"
	EventDeleted       EventType = "deleted"
)

// Event describes a change to one template.
type Event struct {
	Type       EventType   `json:"type"`
	ProjectID  string      `json:"project_id"`
	TemplateID string      `json:"template_id"`
	Alias      string      `json:"alias"`
	Status     BuildStatus `json:"status,omitempty"`
	Message    string      `json:"message,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NewEvent builds an event snapshot of t.
func NewEvent(typ EventType, t *Template) Event {
	return Event{
		Type:       typ,
		ProjectID:  t.ProjectID,
		TemplateID: t.ID,
		Alias:      t.Alias,
		Status:     t.BuildStatus,
		Message:    t.BuildError,
		Timestamp:  time.Now().UTC(),
	}
}
