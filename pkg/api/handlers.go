// Package api serves the slideshow compiler over HTTP: synchronous
// compilation to ffmpeg programs and asynchronous renders.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chicogong/slidegraph/pkg/auth"
	"github.com/chicogong/slidegraph/pkg/compiler"
	"github.com/chicogong/slidegraph/pkg/compiler/validator"
	"github.com/chicogong/slidegraph/pkg/executor"
	"github.com/chicogong/slidegraph/pkg/planner"
	"github.com/chicogong/slidegraph/pkg/schemas"
	"github.com/chicogong/slidegraph/pkg/storage"
	"github.com/chicogong/slidegraph/pkg/store"
	"github.com/chicogong/slidegraph/pkg/transitions"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 20

// Renderer runs a show end to end. *executor.Executor implements it.
type Renderer interface {
	Render(ctx context.Context, spec *schemas.ShowSpec, opts *executor.RenderOptions) (*executor.RenderResult, error)
}

// Server holds the API server dependencies
type Server struct {
	store     store.Store
	compiler  *compiler.Compiler
	planner   *planner.Planner
	builder   *executor.CommandBuilder
	renderer  Renderer
	validator *validator.Validator
	logger    *slog.Logger

	slots   chan struct{}
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

func WithStore(s store.Store) Option {
	return func(srv *Server) {
		srv.store = s
	}
}

func WithCompiler(c *compiler.Compiler) Option {
	return func(srv *Server) {
		srv.compiler = c
	}
}

func WithRenderer(r Renderer) Option {
	return func(srv *Server) {
		srv.renderer = r
	}
}

func WithValidator(v *validator.Validator) Option {
	return func(srv *Server) {
		srv.validator = v
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(srv *Server) {
		srv.logger = l
	}
}

// WithFFmpegPath sets the binary named in compiled commands.
func WithFFmpegPath(path string) Option {
	return func(srv *Server) {
		srv.builder = executor.NewCommandBuilder(path)
	}
}

// WithMaxConcurrentRenders bounds how many renders execute at once. Further
// renders wait in the pending state.
func WithMaxConcurrentRenders(n int) Option {
	return func(srv *Server) {
		if n > 0 {
			srv.slots = make(chan struct{}, n)
		}
	}
}

// NewServer creates a new API server
func NewServer(opts ...Option) *Server {
	s := &Server{
		store:     store.NewMemoryStore(),
		compiler:  compiler.New(),
		planner:   planner.NewPlanner(),
		builder:   executor.NewCommandBuilder(""),
		validator: validator.New(),
		logger:    slog.New(slog.DiscardHandler),
		slots:     make(chan struct{}, 2),
		cancels:   make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.renderer == nil {
		s.renderer = executor.NewExecutor(executor.WithCompiler(s.compiler), executor.WithLogger(s.logger))
	}
	return s
}

// Health handles GET /health
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	active := len(s.cancels)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", ActiveRenders: active})
}

// Transitions handles GET /api/v1/transitions
func (s *Server) Transitions(w http.ResponseWriter, r *http.Request) {
	var list []TransitionInfo
	for _, name := range transitions.Names() {
		list = append(list, TransitionInfo{Name: name, Effect: name})
	}
	for alias, target := range transitions.Aliases() {
		list = append(list, TransitionInfo{Name: alias, Effect: target, Alias: true})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	writeJSON(w, http.StatusOK, TransitionsResponse{
		Transitions:   list,
		DefaultEffect: transitions.DefaultEffect,
		MinDuration:   schemas.FormatSeconds(transitions.MinDuration),
	})
}

// Compile handles POST /api/v1/compile. It returns the program for a show
// and the ffmpeg invocation of every stage, without rendering anything.
func (s *Server) Compile(w http.ResponseWriter, r *http.Request) {
	spec, ok := s.decodeShow(w, r)
	if !ok {
		return
	}

	program, err := s.compiler.Compile(spec)
	if err != nil {
		s.writeCompileError(w, err)
		return
	}
	if _, err := s.planner.Plan(r.Context(), program, nil); err != nil {
		s.logger.Error("failed to plan program", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to plan program", "PLANNING_ERROR")
		return
	}

	paths := executor.Paths{WorkDir: "work", Output: outputPath(spec.Output, program.Target.OutputKind)}
	cmds, err := s.builder.BuildAll(program, paths, spec.Output)
	if err != nil {
		s.logger.Error("failed to build commands", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to build commands", "BUILD_ERROR")
		return
	}

	resp := CompileResponse{
		Program:  program,
		Commands: make([]schemas.FFmpegCommand, len(cmds)),
		Warnings: validator.Warnings(spec),
	}
	for i, c := range cmds {
		resp.Commands[i] = c.Schema(program.Stage(c.Stage).Filtergraph)
	}

	s.logger.Debug("show compiled",
		slog.Int("nodes", len(spec.Nodes)),
		slog.Int("stages", len(program.Stages)),
	)
	writeJSON(w, http.StatusOK, resp)
}

// CreateRender handles POST /api/v1/renders. The show is validated and
// compiled up front so that malformed graphs are rejected synchronously;
// the render itself runs in the background.
func (s *Server) CreateRender(w http.ResponseWriter, r *http.Request) {
	spec, ok := s.decodeShow(w, r)
	if !ok {
		return
	}
	if spec.Output == nil || spec.Output.Destination == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "output destination is required",
			Code:   "VALIDATION_ERROR",
			Fields: []validator.FieldError{{Field: "output.destination", Message: "is required"}},
		})
		return
	}

	// Clip durations may still be unknown here; probing happens in the
	// render, so only check what compiles without them.
	if !hasUnprobedClips(spec) {
		if _, err := s.compiler.Compile(spec); err != nil {
			s.writeCompileError(w, err)
			return
		}
	}

	now := time.Now()
	render := &store.Render{
		RenderID: uuid.NewString(),
		Created:  now,
		Updated:  now,
		Status:   schemas.RenderStatePending,
		Spec:     spec,
	}
	if userID, ok := auth.GetUserID(r); ok {
		render.UserID = userID
		spec.UserID = userID
	}
	spec.ShowID = render.RenderID
	spec.CreatedAt = now

	if err := s.store.CreateRender(r.Context(), render); err != nil {
		s.logger.Error("failed to create render", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create render", "RENDER_CREATION_FAILED")
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	s.mu.Lock()
	s.cancels[render.RenderID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runRender(ctx, render.RenderID, spec)

	s.logger.Info("render accepted",
		slog.String("render_id", render.RenderID),
		slog.Int("nodes", len(spec.Nodes)),
		slog.String("destination", spec.Output.Destination),
	)
	writeJSON(w, http.StatusAccepted, CreateRenderResponse{
		RenderID:  render.RenderID,
		Status:    render.Status,
		CreatedAt: render.Created,
		Warnings:  validator.Warnings(spec),
	})
}

// GetRender handles GET /api/v1/renders/{id}. ?include=program adds the
// compiled program once it exists.
func (s *Server) GetRender(w http.ResponseWriter, r *http.Request) {
	render, ok := s.lookupRender(w, r)
	if !ok {
		return
	}

	resp := RenderResponse{RenderStatus: render.ToRenderStatus()}
	if r.URL.Query().Get("include") == "program" {
		resp.Program = render.Program
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListRenders handles GET /api/v1/renders
func (s *Server) ListRenders(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_QUERY")
		return
	}
	if id, ok := auth.FromContext(r.Context()); ok && id.Role != auth.RoleAdmin {
		filter.UserID = id.UserID
	}

	renders, err := s.store.ListRenders(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list renders", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list renders", "STORE_ERROR")
		return
	}

	resp := ListRendersResponse{Renders: make([]*schemas.RenderStatus, len(renders)), Count: len(renders)}
	for i, render := range renders {
		resp.Renders[i] = render.ToRenderStatus()
	}
	writeJSON(w, http.StatusOK, resp)
}

// CancelRender handles DELETE /api/v1/renders/{id}
func (s *Server) CancelRender(w http.ResponseWriter, r *http.Request) {
	render, ok := s.lookupRender(w, r)
	if !ok {
		return
	}
	if render.IsTerminal() {
		writeError(w, http.StatusConflict, fmt.Sprintf("render is already %s", render.Status), "RENDER_TERMINAL")
		return
	}

	s.mu.Lock()
	cancel := s.cancels[render.RenderID]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if err := s.store.UpdateRenderStatus(r.Context(), render.RenderID, schemas.RenderStateCancelled, nil); err != nil {
		s.logger.Error("failed to cancel render", slog.String("render_id", render.RenderID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to cancel render", "STORE_ERROR")
		return
	}

	s.logger.Info("render cancelled", slog.String("render_id", render.RenderID))
	render.Status = schemas.RenderStateCancelled
	writeJSON(w, http.StatusAccepted, RenderResponse{RenderStatus: render.ToRenderStatus()})
}

// Close cancels running renders and waits for them to stop, then closes
// the store.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("renders still running: %w", ctx.Err())
	}
	return s.store.Close()
}

// decodeShow reads and validates the request body. It writes the error
// response itself and reports whether the handler may continue.
func (s *Server) decodeShow(w http.ResponseWriter, r *http.Request) (*schemas.ShowSpec, bool) {
	var spec schemas.ShowSpec
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		s.logger.Warn("failed to decode request body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), "INVALID_JSON")
		return nil, false
	}

	if err := s.validator.Validate(r.Context(), &spec); err != nil {
		s.logger.Warn("show validation failed", slog.String("error", err.Error()))
		resp := ErrorResponse{Error: err.Error(), Code: "VALIDATION_ERROR"}
		var verr *validator.Error
		if errors.As(err, &verr) {
			resp.Fields = verr.Fields
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return nil, false
	}
	return &spec, true
}

// lookupRender loads the render named in the path. Callers only see their
// own renders unless they are admins.
func (s *Server) lookupRender(w http.ResponseWriter, r *http.Request) (*store.Render, bool) {
	renderID := r.PathValue("id")
	if renderID == "" {
		writeError(w, http.StatusBadRequest, "render ID is required", "MISSING_RENDER_ID")
		return nil, false
	}

	render, err := s.store.GetRender(r.Context(), renderID)
	if err == nil {
		if id, ok := auth.FromContext(r.Context()); ok && id.Role != auth.RoleAdmin && render.UserID != id.UserID {
			err = store.ErrRenderNotFound
		}
	}
	if errors.Is(err, store.ErrRenderNotFound) {
		writeError(w, http.StatusNotFound, "render not found", "RENDER_NOT_FOUND")
		return nil, false
	}
	if err != nil {
		s.logger.Error("failed to get render", slog.String("render_id", renderID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get render", "STORE_ERROR")
		return nil, false
	}
	return render, true
}

func (s *Server) writeCompileError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error(), Code: compiler.Code(err)}
	var cerr *compiler.CompileError
	if errors.As(err, &cerr) && cerr.Index >= 0 {
		index := cerr.Index
		resp.Index = &index
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

func hasUnprobedClips(spec *schemas.ShowSpec) bool {
	for _, n := range spec.Nodes {
		switch strings.ToLower(n.Kind) {
		case schemas.NodeKindClip, "video":
			if n.Duration.Duration <= 0 {
				return true
			}
		}
	}
	return false
}

// outputPath is where the final stage writes in compiled commands: the
// destination itself when it is local, otherwise a file named after it.
func outputPath(out *schemas.OutputSpec, kind schemas.OutputKind) string {
	ext := ".mp4"
	if kind == schemas.OutputGIF {
		ext = ".gif"
	}
	if out == nil {
		return "output" + ext
	}
	scheme, path, err := storage.ParseURI(out.Destination)
	if err != nil {
		return "output" + ext
	}
	if scheme == "file" {
		return path
	}
	if e := filepath.Ext(path); e != "" {
		ext = e
	}
	return "output" + ext
}

func parseListFilter(r *http.Request) (*store.ListFilter, error) {
	q := r.URL.Query()
	filter := &store.ListFilter{
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}

	if status := q.Get("status"); status != "" {
		for _, st := range strings.Split(status, ",") {
			filter.Status = append(filter.Status, schemas.RenderState(strings.TrimSpace(st)))
		}
	}

	var err error
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil || filter.Limit < 0 {
			return nil, fmt.Errorf("invalid limit %q", v)
		}
	}
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil || filter.Offset < 0 {
			return nil, fmt.Errorf("invalid offset %q", v)
		}
	}

	switch filter.SortBy {
	case "", "created", "updated", "status":
	default:
		return nil, fmt.Errorf("invalid sort_by %q", filter.SortBy)
	}
	return filter, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
