package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/chicogong/slidegraph/pkg/planner"
	"github.com/chicogong/slidegraph/pkg/schemas"
)

func newCompileCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOut bool
		summary bool
		probe   bool
	)

	cmd := &cobra.Command{
		Use:   "compile <show>",
		Short: "Compile a show and print the filtergraph of every stage",
		Long: `Compile a show description (.json, .yaml or .toml) into its ffmpeg
program. By default every stage's filtergraph is printed, earliest stage
first. --summary lists stages and transitions instead; --json prints the
whole program.`,
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

			switch {
			case jsonOut:
				return writeJSON(cmd, program)
			case summary:
				return printSummary(cmd, program)
			default:
				return printFiltergraphs(cmd, program)
			}
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the compiled program as JSON")
	cmd.Flags().BoolVar(&summary, "summary", false, "List stages and transitions")
	cmd.Flags().BoolVar(&probe, "probe", false, "Probe clips without a duration using ffprobe")
	return cmd
}

func printFiltergraphs(cmd *cobra.Command, program *schemas.Program) error {
	out := cmd.OutOrStdout()
	for i, stage := range program.Stages {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "# %s: %d inputs, %s -> [%s]\n",
			stage.ID, len(stage.Inputs), schemas.FormatSeconds(stage.Elapsed.Duration), stage.Output)
		fmt.Fprintln(out, stage.Filtergraph)
	}
	return nil
}

func printSummary(cmd *cobra.Command, program *schemas.Program) error {
	out := cmd.OutOrStdout()

	stageRows := make([][]string, 0, len(program.Stages))
	for _, stage := range program.Stages {
		stageRows = append(stageRows, []string{
			stage.ID,
			strconv.Itoa(stage.Level),
			strconv.Itoa(len(stage.Inputs)),
			schemas.FormatSeconds(stage.Elapsed.Duration),
			formatDependsOn(stage.DependsOn),
		})
	}
	if err := writeRows(out,
		[]string{"Stage", "Level", "Inputs", "Elapsed", "Depends On"},
		stageRows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
	); err != nil {
		return err
	}

	if len(program.Transitions) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(program.Transitions))
		for _, tr := range program.Transitions {
			effect := tr.Effect
			if tr.Cut {
				effect = "cut"
			}
			rows = append(rows, []string{
				strconv.Itoa(tr.After),
				effect,
				schemas.FormatSeconds(tr.Duration.Duration),
				schemas.FormatSeconds(tr.Offset.Duration),
				tr.Stage,
			})
		}
		if err := writeRows(out,
			[]string{"After", "Effect", "Duration", "Offset", "Stage"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft},
		); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "\nTotal: %s in %d stage(s)\n", schemas.FormatSeconds(program.Elapsed.Duration), len(program.Stages))
	if est := program.ResourceEstimate; est != nil {
		fmt.Fprintf(out, "Estimated render: %s, %d MB on disk\n", est.TotalDuration.Round(time.Second), est.TotalDiskMB)
	}
	return nil
}
