package store

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/chicogong/slidegraph/pkg/schemas"
)

// MemoryStore is an in-memory implementation of Store
// Thread-safe for concurrent access
type MemoryStore struct {
	mu      sync.RWMutex
	renders map[string]*Render
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		renders: make(map[string]*Render),
		now:     time.Now,
	}
}

// CreateRender creates a new render
func (m *MemoryStore) CreateRender(ctx context.Context, render *Render) error {
	if render.RenderID == "" {
		return ErrInvalidRenderID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.renders[render.RenderID]; exists {
		return ErrRenderExists
	}

	m.renders[render.RenderID] = copyRender(render)
	return nil
}

// GetRender retrieves a render by ID
func (m *MemoryStore) GetRender(ctx context.Context, renderID string) (*Render, error) {
	if renderID == "" {
		return nil, ErrInvalidRenderID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	render, exists := m.renders[renderID]
	if !exists {
		return nil, ErrRenderNotFound
	}

	// Return a copy to prevent external modifications
	return copyRender(render), nil
}

// UpdateRender updates an existing render
func (m *MemoryStore) UpdateRender(ctx context.Context, render *Render) error {
	if render.RenderID == "" {
		return ErrInvalidRenderID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.renders[render.RenderID]; !exists {
		return ErrRenderNotFound
	}

	render.Updated = m.now()
	m.renders[render.RenderID] = copyRender(render)
	return nil
}

// DeleteRender deletes a render by ID
func (m *MemoryStore) DeleteRender(ctx context.Context, renderID string) error {
	if renderID == "" {
		return ErrInvalidRenderID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.renders[renderID]; !exists {
		return ErrRenderNotFound
	}

	delete(m.renders, renderID)
	return nil
}

// ListRenders lists renders with optional filtering
func (m *MemoryStore) ListRenders(ctx context.Context, filter *ListFilter) ([]*Render, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	renders := make([]*Render, 0, len(m.renders))
	for _, render := range m.renders {
		if matchesFilter(render, filter) {
			renders = append(renders, copyRender(render))
		}
	}

	sortRenders(renders, filter)
	return paginate(renders, filter), nil
}

// UpdateRenderStatus updates render status and progress
func (m *MemoryStore) UpdateRenderStatus(ctx context.Context, renderID string, status schemas.RenderState, progress *schemas.Progress) error {
	if renderID == "" {
		return ErrInvalidRenderID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	render, exists := m.renders[renderID]
	if !exists {
		return ErrRenderNotFound
	}

	m.transition(render, status)
	if progress != nil {
		render.Progress = copyProgress(progress)
	}
	return nil
}

// UpdateRenderError records an error and fails the render
func (m *MemoryStore) UpdateRenderError(ctx context.Context, renderID string, err *schemas.ErrorInfo) error {
	if renderID == "" {
		return ErrInvalidRenderID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	render, exists := m.renders[renderID]
	if !exists {
		return ErrRenderNotFound
	}

	if err != nil {
		render.Error = copyError(err)
	}
	m.transition(render, schemas.RenderStateFailed)
	return nil
}

// CompleteRender stores the result of a successful render
func (m *MemoryStore) CompleteRender(ctx context.Context, renderID string, program *schemas.Program, output schemas.OutputFile) error {
	if renderID == "" {
		return ErrInvalidRenderID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	render, exists := m.renders[renderID]
	if !exists {
		return ErrRenderNotFound
	}

	render.Program = program
	render.OutputFiles = []schemas.OutputFile{output}
	if render.Progress != nil {
		render.Progress.OverallPercent = 100
	}
	m.transition(render, schemas.RenderStateCompleted)
	return nil
}

// Close closes the store (no-op for memory store)
func (m *MemoryStore) Close() error {
	return nil
}

// transition sets status and the lifecycle timestamps that go with it.
func (m *MemoryStore) transition(render *Render, status schemas.RenderState) {
	now := m.now()
	render.Status = status
	render.Updated = now

	if status != schemas.RenderStatePending && render.StartedAt == nil && !status.Terminal() {
		render.StartedAt = &now
	}
	if status.Terminal() && render.CompletedAt == nil {
		render.CompletedAt = &now
	}
}

// Helper functions

func copyRender(render *Render) *Render {
	if render == nil {
		return nil
	}

	c := *render
	if render.StartedAt != nil {
		t := *render.StartedAt
		c.StartedAt = &t
	}
	if render.CompletedAt != nil {
		t := *render.CompletedAt
		c.CompletedAt = &t
	}
	c.Progress = copyProgress(render.Progress)
	c.Error = copyError(render.Error)
	c.OutputFiles = slices.Clone(render.OutputFiles)
	return &c
}

func copyProgress(p *schemas.Progress) *schemas.Progress {
	if p == nil {
		return nil
	}
	c := *p
	if p.FFmpeg != nil {
		ff := *p.FFmpeg
		c.FFmpeg = &ff
	}
	return &c
}

func copyError(e *schemas.ErrorInfo) *schemas.ErrorInfo {
	if e == nil {
		return nil
	}
	c := *e
	c.Details = maps.Clone(e.Details)
	return &c
}

func matchesFilter(render *Render, filter *ListFilter) bool {
	if filter == nil {
		return true
	}

	if len(filter.Status) > 0 && !slices.Contains(filter.Status, render.Status) {
		return false
	}
	if filter.UserID != "" && render.UserID != filter.UserID {
		return false
	}

	// Time range filters
	if filter.CreatedAfter != nil && render.Created.Before(*filter.CreatedAfter) {
		return false
	}
	if filter.CreatedBefore != nil && render.Created.After(*filter.CreatedBefore) {
		return false
	}

	return true
}

// sortRenders orders by the requested field. Without one it lists newest
// first; an explicit field sorts ascending unless SortOrder says otherwise.
// Ties are broken by ID so pages are stable.
func sortRenders(renders []*Render, filter *ListFilter) {
	by, descending := "created", true
	if filter != nil {
		if filter.SortBy != "" {
			by, descending = filter.SortBy, false
		}
		switch filter.SortOrder {
		case "asc":
			descending = false
		case "desc":
			descending = true
		}
	}

	compare := func(a, b *Render) int {
		switch by {
		case "updated":
			return a.Updated.Compare(b.Updated)
		case "status":
			switch {
			case a.Status < b.Status:
				return -1
			case a.Status > b.Status:
				return 1
			}
			return 0
		default:
			return a.Created.Compare(b.Created)
		}
	}

	sort.SliceStable(renders, func(i, j int) bool {
		c := compare(renders[i], renders[j])
		if c == 0 {
			return renders[i].RenderID < renders[j].RenderID
		}
		if descending {
			return c > 0
		}
		return c < 0
	})
}

func paginate(renders []*Render, filter *ListFilter) []*Render {
	if filter == nil {
		return renders
	}

	// Apply offset
	if filter.Offset > 0 {
		if filter.Offset >= len(renders) {
			return []*Render{}
		}
		renders = renders[filter.Offset:]
	}

	// Apply limit
	if filter.Limit > 0 && filter.Limit < len(renders) {
		renders = renders[:filter.Limit]
	}

	return renders
}
