package domain

import "time"

// BuildStatus is the lifecycle state of a template build.
type BuildStatus string

const (
	StatusPending  BuildStatus = "pending"
	StatusBuilding BuildStatus = "building"
	StatusReady    BuildStatus = "ready"
	StatusFailed   BuildStatus = "failed"
)

// MaxAliasLength matches the width of the alias column.
const MaxAliasLength = 255

// Template is a build artifact definition. The pair (ProjectID, Alias) is
// unique; Alias alone is not.
type Template struct {
	ID          string                 `json:"id"`
	Alias       string                 `json:"alias"`
	ProjectID   string                 `json:"project_id"`
	Config      map[string]interface{} `json:"config"`
	BuildFile   *string                `json:"build_file_content,omitempty"`
	BuildStatus BuildStatus            `json:"build_status"`
	BuildError  string                 `json:"build_error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// CreateTemplateRequest carries the caller input for a new template.
type CreateTemplateRequest struct {
	Alias     string
	Config    map[string]interface{}
	BuildFile *string
}

// BuildRequest is a CreateTemplateRequest that may supersede an existing
// template with the same alias.
type BuildRequest struct {
	CreateTemplateRequest
	ForceRebuild bool
}

// UpdateTemplateRequest holds optional field changes; nil means unchanged.
type UpdateTemplateRequest struct {
	Alias  *string
	Config map[string]interface{}
}

// TemplatePage is one page of a project's templates.
type TemplatePage struct {
	Templates  []Template `json:"templates"`
	TotalCount int64      `json:"total_count"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// IsTerminal reports whether no further transitions are allowed.
func (s BuildStatus) IsTerminal() bool {
	return s == StatusReady || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s BuildStatus) Valid() bool {
	switch s {
	case StatusPending, StatusBuilding, StatusReady, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo enforces pending -> building -> {ready, failed}. A pending
// build may also finish directly when the backend never reports building.
func (s BuildStatus) CanTransitionTo(next BuildStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusBuilding || next == StatusReady || next == StatusFailed
	case StatusBuilding:
		return next == StatusReady || next == StatusFailed
	}
	return false
}

// Clone returns a copy that shares no maps or pointers with t.
func (t Template) Clone() Template {
	out := t
	if t.Config != nil {
		out.Config = make(map[string]interface{}, len(t.Config))
		for k, v := range t.Config {
			out.Config[k] = v
		}
	}
	if t.BuildFile != nil {
		bf := *t.BuildFile
		out.BuildFile = &bf
	}
	return out
}
