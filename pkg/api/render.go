package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/chicogong/slidegraph/pkg/compiler"
	"github.com/chicogong/slidegraph/pkg/executor"
	"github.com/chicogong/slidegraph/pkg/schemas"
)

// runRender executes one accepted render and records its outcome. It holds
// a concurrency slot for as long as the renderer runs.
func (s *Server) runRender(ctx context.Context, renderID string, spec *schemas.ShowSpec) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		if cancel, ok := s.cancels[renderID]; ok {
			cancel()
			delete(s.cancels, renderID)
		}
		s.mu.Unlock()
	}()

	logger := s.logger.With(slog.String("render_id", renderID))

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		logger.Info("render cancelled before start")
		return
	}

	// Updates from the renderer stop once the render is cancelled so they
	// cannot overwrite the cancelled state.
	update := func(state schemas.RenderState, progress *schemas.Progress) {
		if ctx.Err() != nil {
			return
		}
		if err := s.store.UpdateRenderStatus(context.WithoutCancel(ctx), renderID, state, progress); err != nil {
			logger.Warn("failed to update render status", slog.String("error", err.Error()))
		}
	}

	var state schemas.RenderState
	result, err := s.renderer.Render(ctx, spec, &executor.RenderOptions{
		OnState: func(st schemas.RenderState) {
			state = st
			logger.Debug("render state changed", slog.String("state", string(st)))
			update(st, nil)
		},
		OnProgress: func(p *schemas.Progress) {
			update(state, p)
		},
		OnLog: func(stage, line string) {
			logger.Debug("ffmpeg", slog.String("stage", stage), slog.String("line", line))
		},
	})

	storeCtx := context.WithoutCancel(ctx)
	switch {
	case err == nil:
		if err := s.store.CompleteRender(storeCtx, renderID, result.Program, result.Output); err != nil {
			logger.Error("failed to complete render", slog.String("error", err.Error()))
			return
		}
		logger.Info("render completed",
			slog.String("destination", result.Output.Destination),
			slog.Int64("size", result.Output.FileSize),
			slog.Duration("took", result.Took),
		)

	case ctx.Err() != nil:
		logger.Info("render cancelled", slog.String("state", string(state)))

	default:
		info := renderErrorInfo(err, state)
		logger.Error("render failed",
			slog.String("code", info.Code),
			slog.String("stage", info.Stage),
			slog.String("error", err.Error()),
		)
		if err := s.store.UpdateRenderError(storeCtx, renderID, info); err != nil {
			logger.Error("failed to record render error", slog.String("error", err.Error()))
		}
	}
}

// renderErrorInfo classifies a render failure. state is the last state the
// render reached.
func renderErrorInfo(err error, state schemas.RenderState) *schemas.ErrorInfo {
	info := &schemas.ErrorInfo{
		Code:    "RENDER_ERROR",
		Message: err.Error(),
		Stage:   string(state),
	}

	var ffErr *executor.FFmpegError
	var cerr *compiler.CompileError
	switch {
	case errors.As(err, &ffErr):
		info.Code = "FFMPEG_ERROR"
		if ffErr.Err != nil {
			info.Message = ffErr.Err.Error()
		}
		info.Stage = ffErr.Stage
		info.FFmpegStderr = ffErr.Stderr
		info.FFmpegExitCode = ffErr.ExitCode
		// A signal or I/O failure may succeed on a second attempt; a non-zero
		// exit from ffmpeg itself will not.
		info.Retryable = ffErr.ExitCode <= 0
	case errors.As(err, &cerr), compiler.Code(err) != "COMPILE_ERROR":
		info.Code = compiler.Code(err)
	case state == schemas.RenderStateFetchingInputs || state == schemas.RenderStatePublishing:
		info.Code = "STORAGE_ERROR"
		info.Retryable = true
	}
	return info
}
