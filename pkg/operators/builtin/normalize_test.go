package builtin

import (
	"strings"
	"testing"

	"github.com/chicogong/slidegraph/pkg/operators"
	"github.com/chicogong/slidegraph/pkg/schemas"
)

func TestNormalizeOperator_ValidateParams(t *testing.T) {
	op := &NormalizeOperator{}

	if err := op.ValidateParams(map[string]any{}); err == nil {
		t.Fatal("expected error for missing required params, got nil")
	}

	if err := op.ValidateParams(map[string]any{"width": 1281, "height": 720, "fps": 25}); err == nil {
		t.Fatal("expected error for odd width, got nil")
	}

	if err := op.ValidateParams(map[string]any{
		"width": 1280, "height": 720, "fps": 25, "filters": []string{"hflip;[x]"},
	}); err == nil {
		t.Fatal("expected error for filter that escapes the chain, got nil")
	}

	if err := op.ValidateParams(map[string]any{
		"width": 1280.0, "height": 720.0, "fps": 29.97, "filters": []any{"hflip"},
	}); err != nil {
		t.Fatalf("expected JSON-decoded params to validate, got: %v", err)
	}
}

func TestNormalizeOperator_Compile(t *testing.T) {
	op := &NormalizeOperator{}

	res, err := op.Compile(&operators.CompileContext{
		InputStreams: []operators.StreamRef{{Label: "3:v"}},
		Params: map[string]any{
			"width":   1280,
			"height":  720,
			"fps":     25.0,
			"filters": []string{"hflip", "eq=brightness=0.05"},
		},
		OutputLabels: []string{"v3"},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	want := "[3:v]scale='min(1280,iw)':'min(720,ih)':force_original_aspect_ratio=decrease," +
		"pad=1280:720:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1,setpts=PTS-STARTPTS," +
		"fps=25,format=yuv420p,hflip,eq=brightness=0.05[v3]"
	if res.FilterExpression != want {
		t.Fatalf("filter mismatch:\n got=%s\nwant=%s", res.FilterExpression, want)
	}
	if len(res.OutputLabels) != 1 || res.OutputLabels[0] != "[v3]" {
		t.Fatalf("unexpected output labels: %v", res.OutputLabels)
	}
}

func TestNormalizeOperator_FractionalRate(t *testing.T) {
	op := &NormalizeOperator{}

	res, err := op.Compile(&operators.CompileContext{
		InputStreams: []operators.StreamRef{{Label: "0:v"}},
		Params:       map[string]any{"width": 640, "height": 480, "fps": 29.97},
		OutputLabels: []string{"v0"},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !strings.Contains(res.FilterExpression, "fps=29.97,") {
		t.Fatalf("expected fractional rate, got: %q", res.FilterExpression)
	}
}

func TestNormalizeOperator_ComputeOutputMetadata_DoesNotMutateInput(t *testing.T) {
	op := &NormalizeOperator{}

	input := &schemas.MediaInfo{
		VideoStreams: []schemas.VideoStream{{Width: 4000, Height: 3000, FrameRate: 1}},
	}

	out, err := op.ComputeOutputMetadata(
		map[string]any{"width": 1280, "height": 720, "fps": 25},
		[]*schemas.MediaInfo{input},
	)
	if err != nil {
		t.Fatalf("ComputeOutputMetadata failed: %v", err)
	}

	if input.VideoStreams[0].Width != 4000 {
		t.Fatalf("input mutated: width=%d", input.VideoStreams[0].Width)
	}
	vs := out.VideoStreams[0]
	if vs.Width != 1280 || vs.Height != 720 || vs.FrameRate != 25 || vs.PixelFormat != "yuv420p" {
		t.Fatalf("unexpected output stream: %+v", vs)
	}
}
