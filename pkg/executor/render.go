package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chicogong/slidegraph/pkg/prober"
	"github.com/chicogong/slidegraph/pkg/schemas"
	"github.com/chicogong/slidegraph/pkg/storage"
)

// RenderOptions observe a render as it moves through its states.
type RenderOptions struct {
	// KeepWorkDir leaves the working directory in place for inspection.
	KeepWorkDir bool

	OnState    func(schemas.RenderState)
	OnProgress func(*schemas.Progress)
	OnLog      func(stage, line string)
}

// RenderResult describes a published render.
type RenderResult struct {
	Program *schemas.Program
	Output  schemas.OutputFile
	Took    time.Duration
}

func (o *RenderOptions) state(s schemas.RenderState) {
	if o.OnState != nil {
		o.OnState(s)
	}
}

// Render fetches the sources of spec, fills in clip durations, compiles and
// plans the show, renders every stage and publishes the result to
// spec.Output.Destination.
func (e *Executor) Render(ctx context.Context, spec *schemas.ShowSpec, opts *RenderOptions) (*RenderResult, error) {
	if opts == nil {
		opts = &RenderOptions{}
	}
	if spec.Output == nil || spec.Output.Destination == "" {
		return nil, fmt.Errorf("render needs an output destination")
	}
	start := time.Now()

	if e.workDir != "" {
		if err := os.MkdirAll(e.workDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create work directory: %w", err)
		}
	}
	tempDir, err := os.MkdirTemp(e.workDir, TempDirPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	if !opts.KeepWorkDir {
		defer func() {
			if err := e.storage.CleanupTempDir(tempDir); err != nil {
				e.logger.Warn("failed to remove work directory", "dir", tempDir, "error", err)
			}
		}()
	}

	opts.state(schemas.RenderStateFetchingInputs)
	inputs, err := e.storage.PrepareInputs(ctx, spec, tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare inputs: %w", err)
	}

	// Work on a copy so probed durations do not leak into the caller's spec.
	show := *spec
	show.Nodes = append([]schemas.NodeSpec(nil), spec.Nodes...)
	n, err := prober.FillClipDurations(ctx, e.prober, &show, inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to probe clips: %w", err)
	}
	if n > 0 {
		e.logger.Debug("clip durations probed", "clips", n)
	}

	opts.state(schemas.RenderStateCompiling)
	program, err := e.compiler.Compile(&show)
	if err != nil {
		return nil, err
	}
	if _, err := e.planner.Plan(ctx, program, nil); err != nil {
		return nil, fmt.Errorf("failed to plan program: %w", err)
	}
	if est := program.ResourceEstimate; est != nil {
		e.logger.Info("program planned",
			"stages", len(program.Stages),
			"levels", len(program.ExecutionStages),
			"elapsed", program.Elapsed.Duration,
			"estimated_render", est.TotalDuration.Round(time.Second),
			"estimated_disk_mb", est.TotalDiskMB)
	}

	opts.state(schemas.RenderStateRendering)
	_, destPath, _ := storage.ParseURI(spec.Output.Destination)
	local := filepath.Join(tempDir, "output"+outputExt(destPath, program.Target.OutputKind))
	err = e.Execute(ctx, program, &ExecuteOptions{
		Paths:      Paths{Sources: inputs, WorkDir: tempDir, Output: local},
		Output:     spec.Output,
		OnProgress: opts.OnProgress,
		OnLog:      opts.OnLog,
	})
	if err != nil {
		return nil, err
	}

	opts.state(schemas.RenderStatePublishing)
	if err := e.storage.UploadOutput(ctx, local, spec.Output.Destination); err != nil {
		return nil, err
	}

	info, err := os.Stat(local)
	if err != nil {
		return nil, fmt.Errorf("failed to stat render: %w", err)
	}

	return &RenderResult{
		Program: program,
		Output: schemas.OutputFile{
			Destination: spec.Output.Destination,
			FileSize:    info.Size(),
			Duration:    program.Elapsed.Seconds(),
			MediaInfo:   program.Final().Metadata,
		},
		Took: time.Since(start),
	}, nil
}

// outputExt keeps the destination's extension so ffmpeg picks the right
// muxer, falling back to the output kind.
func outputExt(dest string, kind schemas.OutputKind) string {
	if ext := filepath.Ext(dest); ext != "" {
		return ext
	}
	if kind == schemas.OutputGIF {
		return ".gif"
	}
	return ".mp4"
}
