package executor_test

import (
	"context"
	"fmt"
	"log"

	"github.com/chicogong/slidegraph/pkg/compiler"
	"github.com/chicogong/slidegraph/pkg/executor"
	"github.com/chicogong/slidegraph/pkg/schemas"
)

// ExampleCommandBuilder builds the ffmpeg invocation of a two-slide show.
func ExampleCommandBuilder() {
	program, err := compiler.Compile(&schemas.ShowSpec{
		Nodes: []schemas.NodeSpec{
			{Source: "intro.jpg", Duration: schemas.Seconds(2)},
			{Source: "outro.jpg", Duration: schemas.Seconds(2)},
		},
		Target: schemas.Target{Width: 1280, Height: 720, FrameRate: 25},
	})
	if err != nil {
		log.Fatal(err)
	}

	builder := executor.NewCommandBuilder("ffmpeg")
	cmd, err := builder.Build(program, program.Final(), executor.Paths{Output: "show.mp4"}, nil)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Stage:", cmd.Stage)
	fmt.Println("Output:", cmd.Output)
	fmt.Println("Inputs:", cmd.Args[7:13])

	// Output:
	// Stage: main
	// Output: show.mp4
	// Inputs: [-loop 1 -t 2.000 -i intro.jpg]
}

// ExampleExecutor_Render renders a show with progress reporting. It needs
// ffmpeg on PATH, so it is compiled but not run.
func ExampleExecutor_Render() {
	exec := executor.NewExecutor(executor.WithParallelism(4))

	spec := &schemas.ShowSpec{
		Nodes: []schemas.NodeSpec{
			{Source: "photos/01.jpg", Duration: schemas.Seconds(3)},
			{Source: "photos/02.jpg", Duration: schemas.Seconds(3)},
		},
		Edges:  []schemas.EdgeSpec{{AfterNodeIndex: 0, Effect: "dissolve", Duration: schemas.Seconds(1)}},
		Target: schemas.Target{Width: 1920, Height: 1080, FrameRate: 30},
		Output: &schemas.OutputSpec{Destination: "out/show.mp4"},
	}

	result, err := exec.Render(context.Background(), spec, &executor.RenderOptions{
		OnState: func(s schemas.RenderState) {
			fmt.Println("state:", s)
		},
		OnProgress: func(p *schemas.Progress) {
			fmt.Printf("%.1f%% (%d/%d stages)\n", p.OverallPercent, p.CompletedStages, p.TotalStages)
		},
	})
	if err != nil {
		fmt.Println("render failed:", err)
		return
	}
	fmt.Printf("wrote %d bytes to %s\n", result.Output.FileSize, result.Output.Destination)
}
