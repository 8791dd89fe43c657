package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chicogong/slidegraph/pkg/executor"
	"github.com/chicogong/slidegraph/pkg/schemas"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var (
		output   string
		keepWork bool
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "render <show> -o <destination>",
		Short: "Render a show with ffmpeg",
		Long: `Fetch the show's sources, compile it and run every stage with ffmpeg.
The destination may be a local path or an s3:// URI; it overrides the show's
own output.destination.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			show, err := ctx.loadShow(cmd, args[0], false)
			if err != nil {
				return err
			}
			if output != "" {
				if show.spec.Output == nil {
					show.spec.Output = &schemas.OutputSpec{}
				}
				show.spec.Output.Destination = output
			}
			if show.spec.Output == nil || show.spec.Output.Destination == "" {
				return fmt.Errorf("no destination: pass --output or set output.destination")
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := show.config
			exec := executor.NewExecutor(
				executor.WithFFmpegPath(cfg.FFmpegPath),
				executor.WithWorkDir(cfg.WorkDir),
				executor.WithParallelism(cfg.Parallelism),
				executor.WithStorageManager(executor.NewStorageManager(runCtx, "", show.logger)),
				executor.WithProber(cfg.prober()),
				executor.WithCompiler(show.compiler()),
				executor.WithLogger(show.logger),
			)

			progress := newProgressPrinter(cmd.ErrOrStderr(), quiet)
			result, err := exec.Render(runCtx, show.spec, &executor.RenderOptions{
				KeepWorkDir: keepWork,
				OnState:     progress.state,
				OnProgress:  progress.update,
			})
			progress.done()
			if err != nil {
				if runCtx.Err() != nil && cmd.Context().Err() == nil {
					return fmt.Errorf("render interrupted: %w", context.Canceled)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %d bytes, rendered in %s\n",
				result.Output.Destination,
				schemas.FormatSeconds(result.Program.Elapsed.Duration),
				result.Output.FileSize,
				result.Took.Round(time.Millisecond),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination path or URI")
	cmd.Flags().BoolVar(&keepWork, "keep-work-dir", false, "Keep intermediate files")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress")
	return cmd
}

// progressPrinter redraws one status line on a terminal and prints state
// changes only when writing to a pipe. Stages of one level report
// concurrently.
type progressPrinter struct {
	mu          sync.Mutex
	w           io.Writer
	quiet       bool
	interactive bool
	last        time.Time
}

func newProgressPrinter(w io.Writer, quiet bool) *progressPrinter {
	return &progressPrinter{w: w, quiet: quiet, interactive: isTerminal(w)}
}

func (p *progressPrinter) state(s schemas.RenderState) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.interactive {
		fmt.Fprint(p.w, "\r\033[K")
	}
	fmt.Fprintf(p.w, "%s\n", s)
}

func (p *progressPrinter) update(pr *schemas.Progress) {
	if p.quiet || !p.interactive {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if time.Since(p.last) < 200*time.Millisecond {
		return
	}
	p.last = time.Now()

	line := fmt.Sprintf("%5.1f%%  stage %s (%d/%d)", pr.OverallPercent, pr.CurrentStage, pr.CompletedStages, pr.TotalStages)
	if ff := pr.FFmpeg; ff != nil && ff.Speed != "" {
		line += "  " + ff.Speed
	}
	fmt.Fprintf(p.w, "\r\033[K%s", line)
}

func (p *progressPrinter) done() {
	if !p.quiet && p.interactive {
		fmt.Fprint(p.w, "\r\033[K")
	}
}
