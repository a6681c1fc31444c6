// Package models defines the domain types shared across the pipeline,
// store, and API layers.
package models

import "time"

// Run status values reported by the CI provider. A run enters the pipeline
// only once its status is terminal.
const (
	RunStatusSuccess   = "success"
	RunStatusFailure   = "failure"
	RunStatusCancelled = "cancelled"
)

// Repository is an imported CI repository, identified by its owner/name
// pair. InstallationID records the app installation the repository was last
// seen under; one installation covers many repositories.
type Repository struct {
	ID             string    `json:"id"`
	InstallationID int64     `json:"installation_id"`
	Owner          string    `json:"owner"`
	Name           string    `json:"name"`
	Private        bool      `json:"private"`
	UserID         string    `json:"user_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// FullName returns the provider-style "owner/name" identifier.
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// Run is a single terminal-state CI workflow run.
type Run struct {
	ID            string    `json:"id"`
	RepositoryID  string    `json:"repository_id"`
	ProviderRunID int64     `json:"provider_run_id"`
	WorkflowName  string    `json:"workflow_name"`
	Status        string    `json:"status"`
	Trigger       string    `json:"trigger,omitempty"`
	CommitSHA     string    `json:"commit_sha,omitempty"`
	Branch        string    `json:"branch,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	ProviderURL   string    `json:"provider_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
