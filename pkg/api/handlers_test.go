package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chicogong/slidegraph/pkg/auth"
	"github.com/chicogong/slidegraph/pkg/compiler"
	"github.com/chicogong/slidegraph/pkg/executor"
	"github.com/chicogong/slidegraph/pkg/schemas"
	"github.com/chicogong/slidegraph/pkg/store"
)

// mockRenderer implements Renderer for testing.
type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(ctx context.Context, spec *schemas.ShowSpec, opts *executor.RenderOptions) (*executor.RenderResult, error) {
	args := m.Called(ctx, spec, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*executor.RenderResult), args.Error(1)
}

// compilingRender walks through the render states and compiles the show
// the way the executor would, without running ffmpeg.
func compilingRender(args mock.Arguments) {
	opts := args.Get(2).(*executor.RenderOptions)
	opts.OnState(schemas.RenderStateFetchingInputs)
	opts.OnState(schemas.RenderStateCompiling)
	opts.OnState(schemas.RenderStateRendering)
	opts.OnProgress(&schemas.Progress{OverallPercent: 50, CurrentStage: "main", TotalStages: 1})
	opts.OnState(schemas.RenderStatePublishing)
}

func compiledResult(t *testing.T, spec *schemas.ShowSpec) *executor.RenderResult {
	t.Helper()
	program, err := compiler.Compile(spec)
	require.NoError(t, err)
	return &executor.RenderResult{
		Program: program,
		Output: schemas.OutputFile{
			Destination: spec.Output.Destination,
			FileSize:    1024,
			Duration:    program.Elapsed.Seconds(),
		},
		Took: time.Second,
	}
}

func testShow() *schemas.ShowSpec {
	return &schemas.ShowSpec{
		Nodes: []schemas.NodeSpec{
			{Source: "intro.jpg", Duration: schemas.Seconds(2)},
			{Source: "outro.jpg", Duration: schemas.Seconds(3)},
		},
		Edges:  []schemas.EdgeSpec{{AfterNodeIndex: 0, Effect: "dissolve", Duration: schemas.Seconds(1)}},
		Target: schemas.Target{Width: 1280, Height: 720, FrameRate: 30},
		Output: &schemas.OutputSpec{Destination: "file:///renders/show.mp4"},
	}
}

func newTestServer(t *testing.T, r Renderer, opts ...Option) (*Server, http.Handler) {
	t.Helper()
	s := NewServer(append([]Option{WithRenderer(r)}, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s, NewRouter(s, RouterConfig{})
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func waitForState(t *testing.T, s *Server, id string, want schemas.RenderState) *store.Render {
	t.Helper()
	var render *store.Render
	require.Eventually(t, func() bool {
		var err error
		render, err = s.store.GetRender(context.Background(), id)
		return err == nil && render.Status == want
	}, 2*time.Second, 10*time.Millisecond, "render %s never reached %s", id, want)
	return render
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, new(mockRenderer))

	rec := do(t, h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Zero(t, resp.ActiveRenders)
}

func TestTransitions(t *testing.T) {
	_, h := newTestServer(t, new(mockRenderer))

	rec := do(t, h, http.MethodGet, "/api/v1/transitions", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[TransitionsResponse](t, rec)
	assert.Equal(t, "fade", resp.DefaultEffect)
	assert.Equal(t, "0.100", resp.MinDuration)

	byName := map[string]TransitionInfo{}
	for _, info := range resp.Transitions {
		byName[info.Name] = info
	}
	assert.Equal(t, TransitionInfo{Name: "wipeleft", Effect: "wipeleft"}, byName["wipeleft"])
	assert.Equal(t, TransitionInfo{Name: "slide", Effect: "slideleft", Alias: true}, byName["slide"])
}

func TestCompile(t *testing.T) {
	_, h := newTestServer(t, new(mockRenderer))

	rec := do(t, h, http.MethodPost, "/api/v1/compile", testShow())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[CompileResponse](t, rec)
	require.NotNil(t, resp.Program)
	assert.Equal(t, "main", resp.Program.FinalStage)
	assert.Equal(t, 4*time.Second, resp.Program.Elapsed.Duration)
	assert.Equal(t, [][]string{{"main"}}, resp.Program.ExecutionStages)
	assert.Empty(t, resp.Warnings)

	require.Len(t, resp.Commands, 1)
	cmd := resp.Commands[0]
	assert.Equal(t, "main", cmd.Stage)
	assert.Equal(t, "/renders/show.mp4", cmd.Output)
	assert.Contains(t, cmd.Filtergraph, "xfade=transition=dissolve:duration=1.000:offset=1.000")
	assert.Contains(t, cmd.Args, "-filter_complex")
}

func TestCompile_Batched(t *testing.T) {
	_, h := newTestServer(t, new(mockRenderer))

	show := testShow()
	show.Output = nil
	show.Target.MaxBatchInputs = 2
	show.Nodes = append(show.Nodes, schemas.NodeSpec{Source: "credits.jpg", Duration: schemas.Seconds(1)})

	rec := do(t, h, http.MethodPost, "/api/v1/compile", show)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[CompileResponse](t, rec)
	require.Len(t, resp.Commands, 3)
	assert.Equal(t, []string{"w0-0", "w0-1"}, resp.Commands[2].DependsOn)
	assert.Equal(t, "output.mp4", resp.Commands[2].Output)
}

func TestCompile_Warnings(t *testing.T) {
	_, h := newTestServer(t, new(mockRenderer))

	show := testShow()
	show.Edges[0].Effect = "sparkle"

	rec := do(t, h, http.MethodPost, "/api/v1/compile", show)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[CompileResponse](t, rec)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], `unknown effect "sparkle"`)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      any
		wantCode  string
		wantIndex *int
	}{
		{
			name:     "malformed JSON",
			body:     json.RawMessage(`{"nodes": [`),
			wantCode: "INVALID_JSON",
		},
		{
			name: "no nodes",
			body: &schemas.ShowSpec{
				Target: schemas.Target{Width: 640, Height: 360, FrameRate: 25},
			},
			wantCode: "VALIDATION_ERROR",
		},
		{
			name: "edge out of range",
			body: func() *schemas.ShowSpec {
				show := testShow()
				show.Edges[0].AfterNodeIndex = 1
				return show
			}(),
			wantCode:  "GRAPH_INTEGRITY",
			wantIndex: func() *int { i := 0; return &i }(),
		},
		{
			name: "negative duration",
			body: func() *schemas.ShowSpec {
				show := testShow()
				show.Nodes[1].Duration = schemas.Seconds(-1)
				return show
			}(),
			wantCode: "INVALID_DESCRIPTOR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestServer(t, new(mockRenderer))

			var rec *httptest.ResponseRecorder
			if raw, ok := tt.body.(json.RawMessage); ok {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/compile", bytes.NewReader(raw))
				rec = httptest.NewRecorder()
				h.ServeHTTP(rec, req)
			} else {
				rec = do(t, h, http.MethodPost, "/api/v1/compile", tt.body)
			}

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.wantCode, resp.Code, resp.Error)
			if tt.wantIndex != nil {
				require.NotNil(t, resp.Index)
				assert.Equal(t, *tt.wantIndex, *resp.Index)
			}
		})
	}
}

func TestCompile_ValidationFields(t *testing.T) {
	_, h := newTestServer(t, new(mockRenderer))

	show := testShow()
	show.Nodes[0].Source = "ftp://example.com/a.jpg"
	show.Target.Width = 0

	rec := do(t, h, http.MethodPost, "/api/v1/compile", show)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)

	fields := map[string]bool{}
	for _, f := range resp.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["nodes[0].source"], "fields: %v", resp.Fields)
	assert.True(t, fields["target.width"], "fields: %v", resp.Fields)
}

func TestCreateRender_Completes(t *testing.T) {
	show := testShow()
	renderer := new(mockRenderer)
	renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).
		Run(compilingRender).
		Return(compiledResult(t, show), nil).
		Once()

	s, h := newTestServer(t, renderer)

	rec := do(t, h, http.MethodPost, "/api/v1/renders", show)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	created := decode[CreateRenderResponse](t, rec)
	require.NotEmpty(t, created.RenderID)
	assert.Equal(t, schemas.RenderStatePending, created.Status)

	render := waitForState(t, s, created.RenderID, schemas.RenderStateCompleted)
	require.NotNil(t, render.Progress)
	assert.Equal(t, 100.0, render.Progress.OverallPercent)
	require.Len(t, render.OutputFiles, 1)
	assert.Equal(t, "file:///renders/show.mp4", render.OutputFiles[0].Destination)
	assert.NotNil(t, render.StartedAt)
	assert.NotNil(t, render.CompletedAt)

	rendered := renderer.Calls[0].Arguments.Get(1).(*schemas.ShowSpec)
	assert.Equal(t, created.RenderID, rendered.ShowID)

	get := do(t, h, http.MethodGet, "/api/v1/renders/"+created.RenderID+"?include=program", nil)
	require.Equal(t, http.StatusOK, get.Code)
	resp := decode[RenderResponse](t, get)
	assert.Equal(t, schemas.RenderStateCompleted, resp.Status)
	require.NotNil(t, resp.Program)
	assert.Equal(t, "main", resp.Program.FinalStage)

	renderer.AssertExpectations(t)
}

func TestCreateRender_FFmpegFailure(t *testing.T) {
	renderer := new(mockRenderer)
	renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).
		Run(compilingRender).
		Return(nil, &executor.FFmpegError{
			Stage:    "w0-1",
			Stderr:   "Invalid data found when processing input",
			ExitCode: 1,
			Err:      errors.New("exit status 1"),
		})

	s, h := newTestServer(t, renderer)

	rec := do(t, h, http.MethodPost, "/api/v1/renders", testShow())
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode[CreateRenderResponse](t, rec).RenderID

	render := waitForState(t, s, id, schemas.RenderStateFailed)
	require.NotNil(t, render.Error)
	assert.Equal(t, "FFMPEG_ERROR", render.Error.Code)
	assert.Equal(t, "w0-1", render.Error.Stage)
	assert.Equal(t, 1, render.Error.FFmpegExitCode)
	assert.Equal(t, "exit status 1", render.Error.Message)
	assert.False(t, render.Error.Retryable)
}

func TestCreateRender_Validation(t *testing.T) {
	renderer := new(mockRenderer)
	_, h := newTestServer(t, renderer)

	t.Run("missing destination", func(t *testing.T) {
		show := testShow()
		show.Output = nil

		rec := do(t, h, http.MethodPost, "/api/v1/renders", show)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decode[ErrorResponse](t, rec)
		assert.Equal(t, "VALIDATION_ERROR", resp.Code)
		require.Len(t, resp.Fields, 1)
		assert.Equal(t, "output.destination", resp.Fields[0].Field)
	})

	t.Run("rejected before rendering", func(t *testing.T) {
		show := testShow()
		show.Edges = append(show.Edges, show.Edges[0])

		rec := do(t, h, http.MethodPost, "/api/v1/renders", show)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "GRAPH_INTEGRITY", decode[ErrorResponse](t, rec).Code)
	})

	renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelRender(t *testing.T) {
	started := make(chan struct{})
	renderer := new(mockRenderer)
	renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			args.Get(2).(*executor.RenderOptions).OnState(schemas.RenderStateRendering)
			close(started)
			<-ctx.Done()
		}).
		Return(nil, context.Canceled)

	s, h := newTestServer(t, renderer)

	rec := do(t, h, http.MethodPost, "/api/v1/renders", testShow())
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode[CreateRenderResponse](t, rec).RenderID

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("render never started")
	}
	waitForState(t, s, id, schemas.RenderStateRendering)

	rec = do(t, h, http.MethodDelete, "/api/v1/renders/"+id, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, schemas.RenderStateCancelled, decode[RenderResponse](t, rec).Status)

	require.Eventually(t, func() bool {
		return decode[HealthResponse](t, do(t, h, http.MethodGet, "/health", nil)).ActiveRenders == 0
	}, 2*time.Second, 10*time.Millisecond)

	render := waitForState(t, s, id, schemas.RenderStateCancelled)
	assert.Nil(t, render.Error)

	rec = do(t, h, http.MethodDelete, "/api/v1/renders/"+id, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "RENDER_TERMINAL", decode[ErrorResponse](t, rec).Code)
}

func TestGetRender_NotFound(t *testing.T) {
	_, h := newTestServer(t, new(mockRenderer))

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := do(t, h, method, "/api/v1/renders/missing", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
		assert.Equal(t, "RENDER_NOT_FOUND", decode[ErrorResponse](t, rec).Code)
	}
}

func TestListRenders(t *testing.T) {
	st := store.NewMemoryStore()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seed := []struct {
		id     string
		user   string
		status schemas.RenderState
	}{
		{"r1", "alice", schemas.RenderStateCompleted},
		{"r2", "bob", schemas.RenderStateFailed},
		{"r3", "alice", schemas.RenderStatePending},
		{"r4", "alice", schemas.RenderStateCompleted},
	}
	for i, r := range seed {
		require.NoError(t, st.CreateRender(context.Background(), &store.Render{
			RenderID: r.id,
			UserID:   r.user,
			Status:   r.status,
			Created:  base.Add(time.Duration(i) * time.Minute),
			Spec:     testShow(),
		}))
	}

	s, h := newTestServer(t, new(mockRenderer), WithStore(st))

	ids := func(rec *httptest.ResponseRecorder) []string {
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[ListRendersResponse](t, rec)
		var out []string
		for _, r := range resp.Renders {
			out = append(out, r.RenderID)
		}
		assert.Equal(t, len(out), resp.Count)
		return out
	}

	assert.Equal(t, []string{"r4", "r3", "r2", "r1"}, ids(do(t, h, http.MethodGet, "/api/v1/renders", nil)))
	assert.Equal(t, []string{"r4", "r2", "r1"}, ids(do(t, h, http.MethodGet, "/api/v1/renders?status=completed,failed", nil)))
	assert.Equal(t, []string{"r2", "r3"}, ids(do(t, h, http.MethodGet, "/api/v1/renders?sort_order=asc&limit=2&offset=1", nil)))

	rec := do(t, h, http.MethodGet, "/api/v1/renders?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/v1/renders?sort_by=size", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	t.Run("scoped to caller", func(t *testing.T) {
		keys := auth.NewAPIKeyManager()
		_, err := keys.Add("sg_alice", "alice", "alice", auth.RoleViewer, nil)
		require.NoError(t, err)
		_, err = keys.Add("sg_root", "root", "root", auth.RoleAdmin, nil)
		require.NoError(t, err)
		h := NewRouter(s, RouterConfig{Auth: auth.NewAuthMiddleware(nil, keys, false)})

		get := func(path, key string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.Header.Set("X-API-Key", key)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			return rec
		}

		assert.Equal(t, []string{"r4", "r3", "r1"}, ids(get("/api/v1/renders", "sg_alice")))
		assert.Equal(t, []string{"r4", "r3", "r2", "r1"}, ids(get("/api/v1/renders", "sg_root")))
		assert.Equal(t, http.StatusNotFound, get("/api/v1/renders/r2", "sg_alice").Code)
		assert.Equal(t, http.StatusOK, get("/api/v1/renders/r2", "sg_root").Code)
	})
}

func TestRouter_Auth(t *testing.T) {
	keys := auth.NewAPIKeyManager()
	_, err := keys.Add("sg_viewer", "vera", "vera", auth.RoleViewer, nil)
	require.NoError(t, err)
	s := NewServer(WithRenderer(new(mockRenderer)))
	h := NewRouter(s, RouterConfig{Auth: auth.NewAuthMiddleware(nil, keys, false)})

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		want   int
	}{
		{"health is open", http.MethodGet, "/health", "", http.StatusOK},
		{"transitions are open", http.MethodGet, "/api/v1/transitions", "", http.StatusOK},
		{"compile needs a credential", http.MethodPost, "/api/v1/compile", "", http.StatusUnauthorized},
		{"bad key", http.MethodGet, "/api/v1/renders", "sg_nope", http.StatusUnauthorized},
		{"viewer lists", http.MethodGet, "/api/v1/renders", "sg_viewer", http.StatusOK},
		{"viewer cannot render", http.MethodPost, "/api/v1/renders", "sg_viewer", http.StatusForbidden},
		{"viewer cannot cancel", http.MethodDelete, "/api/v1/renders/x", "sg_viewer", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewReader([]byte("{}")))
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	s := NewServer(WithRenderer(new(mockRenderer)))
	h := NewRouter(s, RouterConfig{AllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/renders", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set(RequestIDHeader, "req-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	s := NewServer(WithRenderer(new(mockRenderer)))
	h := ChainMiddleware(RecoveryMiddleware(s.logger))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decode[ErrorResponse](t, rec).Code)
}

func TestRenderErrorInfo(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		state     schemas.RenderState
		wantCode  string
		wantRetry bool
	}{
		{"compile", &compiler.CompileError{Kind: compiler.ErrGraphIntegrity, Index: 2, Message: "duplicate edge"}, schemas.RenderStateCompiling, "GRAPH_INTEGRITY", false},
		{"killed", &executor.FFmpegError{Stage: "main", ExitCode: -1, Err: errors.New("signal: killed")}, schemas.RenderStateRendering, "FFMPEG_ERROR", true},
		{"download", errors.New("failed to prepare inputs: 503"), schemas.RenderStateFetchingInputs, "STORAGE_ERROR", true},
		{"other", errors.New("disk full"), schemas.RenderStateRendering, "RENDER_ERROR", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := renderErrorInfo(tt.err, tt.state)
			assert.Equal(t, tt.wantCode, info.Code)
			assert.Equal(t, tt.wantRetry, info.Retryable)
		})
	}
}
