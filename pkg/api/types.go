package api

import (
	"time"

	"github.com/chicogong/slidegraph/pkg/compiler/validator"
	"github.com/chicogong/slidegraph/pkg/schemas"
)

// CompileResponse is returned by POST /api/v1/compile.
type CompileResponse struct {
	Program  *schemas.Program        `json:"program"`
	Commands []schemas.FFmpegCommand `json:"commands"`
	Warnings []string                `json:"warnings,omitempty"`
}

// CreateRenderResponse is returned when a render is accepted.
type CreateRenderResponse struct {
	RenderID  string              `json:"render_id"`
	Status    schemas.RenderState `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
	Warnings  []string            `json:"warnings,omitempty"`
}

// RenderResponse is one render's status, with its program on request.
type RenderResponse struct {
	*schemas.RenderStatus
	Program *schemas.Program `json:"program,omitempty"`
}

// ListRendersResponse is returned by GET /api/v1/renders.
type ListRendersResponse struct {
	Renders []*schemas.RenderStatus `json:"renders"`
	Count   int                     `json:"count"`
}

// TransitionInfo describes one effect accepted in edges.
type TransitionInfo struct {
	Name   string `json:"name"`
	Effect string `json:"effect"`
	Alias  bool   `json:"alias,omitempty"`
}

// TransitionsResponse is returned by GET /api/v1/transitions.
type TransitionsResponse struct {
	Transitions   []TransitionInfo `json:"transitions"`
	DefaultEffect string           `json:"default_effect"`
	MinDuration   string           `json:"min_duration"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error  string                 `json:"error"`
	Code   string                 `json:"code"`
	Index  *int                   `json:"index,omitempty"`
	Fields []validator.FieldError `json:"fields,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	ActiveRenders int    `json:"active_renders"`
}
