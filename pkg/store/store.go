// Package store keeps render job state for the API.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/chicogong/slidegraph/pkg/schemas"
)

var (
	// ErrRenderNotFound is returned when a render does not exist
	ErrRenderNotFound = errors.New("render not found")

	// ErrRenderExists is returned when attempting to create a render that already exists
	ErrRenderExists = errors.New("render already exists")

	// ErrInvalidRenderID is returned for empty render IDs
	ErrInvalidRenderID = errors.New("invalid render ID")
)

// Store is the interface for render state persistence
type Store interface {
	// CreateRender stores a new render
	CreateRender(ctx context.Context, render *Render) error

	// GetRender retrieves a render by ID
	GetRender(ctx context.Context, renderID string) (*Render, error)

	// UpdateRender replaces an existing render
	UpdateRender(ctx context.Context, render *Render) error

	// DeleteRender deletes a render by ID
	DeleteRender(ctx context.Context, renderID string) error

	// ListRenders lists renders with optional filtering
	ListRenders(ctx context.Context, filter *ListFilter) ([]*Render, error)

	// UpdateRenderStatus moves a render to status, replacing its progress
	// when progress is not nil
	UpdateRenderStatus(ctx context.Context, renderID string, status schemas.RenderState, progress *schemas.Progress) error

	// UpdateRenderError marks a render failed with err
	UpdateRenderError(ctx context.Context, renderID string, err *schemas.ErrorInfo) error

	// CompleteRender records the compiled program and published output
	CompleteRender(ctx context.Context, renderID string, program *schemas.Program, output schemas.OutputFile) error

	// Close closes the store and releases resources
	Close() error
}

// Render is one render job: the submitted show, the program compiled from
// it, and where it stands.
type Render struct {
	RenderID string    `json:"render_id"`
	UserID   string    `json:"user_id,omitempty"`
	Created  time.Time `json:"created_at"`
	Updated  time.Time `json:"updated_at"`

	Spec    *schemas.ShowSpec `json:"spec"`
	Program *schemas.Program  `json:"program,omitempty"`

	Status      schemas.RenderState `json:"status"`
	Progress    *schemas.Progress   `json:"progress,omitempty"`
	Error       *schemas.ErrorInfo  `json:"error,omitempty"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`

	OutputFiles []schemas.OutputFile `json:"output_files,omitempty"`
}

// ListFilter defines filtering criteria for listing renders
type ListFilter struct {
	Status []schemas.RenderState `json:"status,omitempty"`
	UserID string                `json:"user_id,omitempty"`

	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`  // Max results (0 = no limit)
	Offset int `json:"offset,omitempty"` // Skip N results

	// Sorting: "created", "updated" or "status"; "asc" or "desc"
	SortBy    string `json:"sort_by,omitempty"`
	SortOrder string `json:"sort_order,omitempty"`
}

// ToRenderStatus converts a Render to its public status
func (r *Render) ToRenderStatus() *schemas.RenderStatus {
	return &schemas.RenderStatus{
		RenderID:    r.RenderID,
		Status:      r.Status,
		Progress:    r.Progress,
		Error:       r.Error,
		CreatedAt:   r.Created,
		UpdatedAt:   r.Updated,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		OutputFiles: r.OutputFiles,
	}
}

// IsTerminal returns true if the render can no longer change state
func (r *Render) IsTerminal() bool {
	return r.Status.Terminal()
}

// IsPending returns true if the render has not started
func (r *Render) IsPending() bool {
	return r.Status == schemas.RenderStatePending
}

// IsActive returns true while the render is being worked on
func (r *Render) IsActive() bool {
	return !r.IsPending() && !r.IsTerminal()
}
