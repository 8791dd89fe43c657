package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chicogong/slidegraph/pkg/executor"
	"github.com/chicogong/slidegraph/pkg/planner"
	"github.com/chicogong/slidegraph/pkg/schemas"
)

func newArgsCommand(ctx *commandContext) *cobra.Command {
	var (
		output  string
		workDir string
		jsonOut bool
		probe   bool
	)

	cmd := &cobra.Command{
		Use:   "args <show>",
		Short: "Print the ffmpeg command line of every stage",
		Long: `Print one shell-quoted ffmpeg command per stage, in an order that can be
run top to bottom. Window stages write lossless .mkv files into --work-dir;
the last command writes --output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			show, err := ctx.loadShow(cmd, args[0], probe)
			if err != nil {
				return err
			}
			program, err := show.compile()
			if err != nil {
				return err
			}
			if _, err := planner.NewPlanner().Plan(cmd.Context(), program, nil); err != nil {
				return fmt.Errorf("plan: %w", err)
			}

			if output == "" {
				output = "output.mp4"
				if program.Target.OutputKind == schemas.OutputGIF {
					output = "output.gif"
				}
			}
			cmds, err := executor.NewCommandBuilder(show.config.FFmpegPath).BuildAll(program,
				executor.Paths{WorkDir: workDir, Output: output}, show.spec.Output)
			if err != nil {
				return err
			}

			if jsonOut {
				list := make([]schemas.FFmpegCommand, len(cmds))
				for i, c := range cmds {
					list[i] = c.Schema(program.Stage(c.Stage).Filtergraph)
				}
				return writeJSON(cmd, list)
			}

			out := cmd.OutOrStdout()
			for _, c := range cmds {
				fmt.Fprintf(out, "# %s\n%s\n", c.Stage, c.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Final output file (default output.mp4, or output.gif)")
	cmd.Flags().StringVar(&workDir, "work-dir", ".", "Directory for intermediate stage files")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print commands as JSON")
	cmd.Flags().BoolVar(&probe, "probe", false, "Probe clips without a duration using ffprobe")
	return cmd
}
