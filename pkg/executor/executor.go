// Package executor renders compiled programs with ffmpeg: one process per
// stage, independent windows in parallel, with source fetching and
// publishing around it.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chicogong/slidegraph/pkg/compiler"
	"github.com/chicogong/slidegraph/pkg/planner"
	"github.com/chicogong/slidegraph/pkg/prober"
	"github.com/chicogong/slidegraph/pkg/schemas"
	"github.com/chicogong/slidegraph/pkg/storage"
)

// stderrTailLines is how much ffmpeg output an FFmpegError keeps.
const stderrTailLines = 20

// FFmpegError represents a failed stage, including the tail of ffmpeg's
// stderr output.
type FFmpegError struct {
	Stage    string
	Args     []string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("stage %s: ffmpeg error: %v\nargs: %v\nstderr: %s", e.Stage, e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Executor runs programs. It is safe for concurrent use by several renders.
type Executor struct {
	builder     *CommandBuilder
	storage     *StorageManager
	prober      prober.MediaProber
	compiler    *compiler.Compiler
	planner     *planner.Planner
	logger      *slog.Logger
	workDir     string
	parallelism int
}

// Option configures an Executor.
type Option func(*Executor)

// WithFFmpegPath sets the ffmpeg binary.
func WithFFmpegPath(path string) Option {
	return func(e *Executor) {
		e.builder = NewCommandBuilder(path)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithWorkDir sets where per-render working directories are created.
func WithWorkDir(dir string) Option {
	return func(e *Executor) {
		e.workDir = dir
	}
}

// WithParallelism bounds how many stages of one level render at once.
func WithParallelism(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

func WithStorageManager(sm *StorageManager) Option {
	return func(e *Executor) {
		e.storage = sm
	}
}

func WithProber(p prober.MediaProber) Option {
	return func(e *Executor) {
		e.prober = p
	}
}

func WithCompiler(c *compiler.Compiler) Option {
	return func(e *Executor) {
		e.compiler = c
	}
}

// NewExecutor creates a new executor. Without WithStorageManager only local
// files are reachable.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		builder:     NewCommandBuilder(""),
		compiler:    compiler.New(),
		planner:     planner.NewPlanner(),
		logger:      slog.New(slog.DiscardHandler),
		parallelism: 2,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.storage == nil {
		e.storage = &StorageManager{backends: map[string]storage.Storage{"file": storage.NewLocalStorage()}, logger: e.logger}
	}
	if e.prober == nil {
		e.prober = prober.NewProber()
	}
	return e
}

// ExecuteOptions contains options for execution
type ExecuteOptions struct {
	// Paths locates sources, intermediates and the final output.
	Paths Paths

	// Output carries encoder overrides for the final stage.
	Output *schemas.OutputSpec

	// OnProgress is called for progress updates
	OnProgress func(*schemas.Progress)

	// OnLog is called for FFmpeg log output
	OnLog func(stage, line string)
}

// BuildCommands builds the ffmpeg commands of a program without running them.
func (e *Executor) BuildCommands(program *schemas.Program, paths Paths, out *schemas.OutputSpec) ([]*Command, error) {
	return e.builder.BuildAll(program, paths, out)
}

// Execute renders every stage of program. Stages of one execution level
// run concurrently up to the configured parallelism; the first failure
// cancels the rest of the level.
func (e *Executor) Execute(ctx context.Context, program *schemas.Program, opts *ExecuteOptions) error {
	if opts == nil {
		opts = &ExecuteOptions{}
	}

	if len(program.ExecutionStages) == 0 {
		if _, err := e.planner.Plan(ctx, program, &planner.PlanOptions{SkipMetadataPropagation: true}); err != nil {
			return fmt.Errorf("failed to plan program: %w", err)
		}
	}

	cmds, err := e.builder.BuildAll(program, opts.Paths, opts.Output)
	if err != nil {
		return fmt.Errorf("failed to build commands: %w", err)
	}
	byStage := make(map[string]*Command, len(cmds))
	for _, c := range cmds {
		byStage[c.Stage] = c
	}

	if dir := filepath.Dir(opts.Paths.Output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tracker := NewTracker(cmds)
	for i, level := range program.ExecutionStages {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.parallelism)

		for _, id := range level {
			cmd, ok := byStage[id]
			if !ok {
				return fmt.Errorf("stage %s has no command", id)
			}
			g.Go(func() error {
				start := time.Now()
				e.logger.Debug("stage started", "stage", cmd.Stage, "level", i)
				if err := e.executeCommand(gctx, cmd, tracker, opts); err != nil {
					return err
				}
				e.logger.Info("stage rendered", "stage", cmd.Stage, "took", time.Since(start).Round(time.Millisecond))
				status := tracker.Complete(cmd.Stage)
				if opts.OnProgress != nil {
					opts.OnProgress(status)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	return nil
}

// executeCommand runs one stage and streams its stderr through the
// progress parser.
func (e *Executor) executeCommand(ctx context.Context, cmd *Command, tracker *Tracker, opts *ExecuteOptions) error {
	execCmd := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	if opts.Paths.WorkDir != "" {
		execCmd.Dir = opts.Paths.WorkDir
	}

	stderr, err := execCmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := execCmd.Start(); err != nil {
		return fmt.Errorf("stage %s: failed to start ffmpeg: %w", cmd.Stage, err)
	}

	tail := e.streamStderr(stderr, cmd, tracker, opts)

	if err := execCmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("stage %s cancelled: %w", cmd.Stage, ctx.Err())
		}
		ffErr := &FFmpegError{
			Stage:  cmd.Stage,
			Args:   cmd.Args,
			Stderr: strings.Join(tail, "\n"),
			Err:    err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			ffErr.ExitCode = exitErr.ExitCode()
		}
		return ffErr
	}
	return nil
}

// streamStderr consumes ffmpeg's stderr until EOF and returns its last
// non-progress lines.
func (e *Executor) streamStderr(reader io.Reader, cmd *Command, tracker *Tracker, opts *ExecuteOptions) []string {
	scanner := bufio.NewScanner(reader)
	scanner.Split(scanFFmpegLines)

	var tail []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if progress, ok := parseProgress(line); ok {
			status := tracker.Update(cmd.Stage, progress)
			if opts.OnProgress != nil {
				opts.OnProgress(status)
			}
			continue
		}

		tail = append(tail, line)
		if len(tail) > stderrTailLines {
			tail = tail[1:]
		}
		if opts.OnLog != nil {
			opts.OnLog(cmd.Stage, line)
		}
	}
	return tail
}
