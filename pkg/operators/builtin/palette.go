package builtin

import (
	"fmt"
	"strings"

	"github.com/chicogong/slidegraph/pkg/operators"
	"github.com/chicogong/slidegraph/pkg/schemas"
)

// The three operators below turn a finished video stream into a
// palette-quantized animated image: split the stream, build a palette from
// one copy, and map the other copy through it.

type SplitOperator struct{}

type PalettegenOperator struct{}

type PaletteuseOperator struct{}

func init() {
	operators.Register(&SplitOperator{})
	operators.Register(&PalettegenOperator{})
	operators.Register(&PaletteuseOperator{})
}

func (o *SplitOperator) Name() string                 { return "split" }
func (o *SplitOperator) Category() operators.Category { return operators.CategoryOutput }

func (o *SplitOperator) Describe() *operators.OperatorDescriptor {
	return &operators.OperatorDescriptor{
		Name:        "split",
		Category:    operators.CategoryOutput,
		Description: "Duplicate a stream",
		Params: []operators.Param{
			{Name: "outputs", Type: operators.TypeInt, Doc: "Number of copies, 2 when unset", Min: operators.Bound(2), Max: operators.Bound(16)},
		},
		MinInputs: 1,
		MaxInputs: 1,
	}
}

func (o *SplitOperator) ValidateParams(params map[string]any) error {
	return operators.ValidateParams(o, params)
}

func (o *SplitOperator) ComputeOutputMetadata(
	params map[string]any,
	inputs []*schemas.MediaInfo,
) (*schemas.MediaInfo, error) {
	return cloneInfo(inputs)
}

func (o *SplitOperator) EstimateResources(
	params map[string]any,
	inputs []*schemas.MediaInfo,
) (*schemas.NodeEstimates, error) {
	out, err := cloneInfo(inputs)
	if err != nil {
		return nil, err
	}
	return estimate(out, 0, 10), nil
}

func (o *SplitOperator) Compile(ctx *operators.CompileContext) (*operators.CompileResult, error) {
	n, err := intParam(ctx.Params, "outputs", 2)
	if err != nil {
		return nil, err
	}
	if n != len(ctx.OutputLabels) {
		return nil, fmt.Errorf("split: outputs=%d but %d labels", n, len(ctx.OutputLabels))
	}

	body := "split"
	if n != 2 {
		body = fmt.Sprintf("split=%d", n)
	}
	return operators.Expression(ctx, body), nil
}

func (o *PalettegenOperator) Name() string                 { return "palettegen" }
func (o *PalettegenOperator) Category() operators.Category { return operators.CategoryOutput }

func (o *PalettegenOperator) Describe() *operators.OperatorDescriptor {
	return &operators.OperatorDescriptor{
		Name:        "palettegen",
		Category:    operators.CategoryOutput,
		Description: "Compute a 256-colour palette for the whole stream",
		Params: []operators.Param{
			{Name: "max_colors", Type: operators.TypeInt, Doc: "Palette size", Min: operators.Bound(4), Max: operators.Bound(256)},
			{Name: "stats_mode", Type: operators.TypeEnum, Doc: "Which pixels drive the palette", OneOf: []string{"full", "diff", "single"}},
		},
		MinInputs: 1,
		MaxInputs: 1,
		Outputs:   1,
	}
}

func (o *PalettegenOperator) ValidateParams(params map[string]any) error {
	return operators.ValidateParams(o, params)
}

// ComputeOutputMetadata describes the palette: a single 16x16 frame.
func (o *PalettegenOperator) ComputeOutputMetadata(
	params map[string]any,
	inputs []*schemas.MediaInfo,
) (*schemas.MediaInfo, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input metadata")
	}
	return &schemas.MediaInfo{
		VideoStreams: []schemas.VideoStream{{Codec: "rawvideo", Width: 16, Height: 16, PixelFormat: "rgb32"}},
	}, nil
}

func (o *PalettegenOperator) EstimateResources(
	params map[string]any,
	inputs []*schemas.MediaInfo,
) (*schemas.NodeEstimates, error) {
	in, err := cloneInfo(inputs)
	if err != nil {
		return nil, err
	}
	return estimate(in, 0.3, 64), nil
}

func (o *PalettegenOperator) Compile(ctx *operators.CompileContext) (*operators.CompileResult, error) {
	var opts []string
	if _, ok := ctx.Params["max_colors"]; ok {
		n, err := intParam(ctx.Params, "max_colors", 256)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fmt.Sprintf("max_colors=%d", n))
	}
	if mode := stringParam(ctx.Params, "stats_mode", ""); mode != "" {
		opts = append(opts, "stats_mode="+mode)
	}
	return operators.Expression(ctx, withOptions("palettegen", opts)), nil
}

func (o *PaletteuseOperator) Name() string                 { return "paletteuse" }
func (o *PaletteuseOperator) Category() operators.Category { return operators.CategoryOutput }

func (o *PaletteuseOperator) Describe() *operators.OperatorDescriptor {
	return &operators.OperatorDescriptor{
		Name:        "paletteuse",
		Category:    operators.CategoryOutput,
		Description: "Map a stream through a palette (stream first, palette second)",
		Params: []operators.Param{
			{
				Name:  "dither",
				Type:  operators.TypeEnum,
				Doc:   "Dithering algorithm",
				OneOf: []string{"bayer", "heckbert", "floyd_steinberg", "sierra2", "sierra2_4a", "none"},
			},
		},
		MinInputs: 2,
		MaxInputs: 2,
		Outputs:   1,
	}
}

func (o *PaletteuseOperator) ValidateParams(params map[string]any) error {
	return operators.ValidateParams(o, params)
}

func (o *PaletteuseOperator) ComputeOutputMetadata(
	params map[string]any,
	inputs []*schemas.MediaInfo,
) (*schemas.MediaInfo, error) {
	output, err := cloneInfo(inputs)
	if err != nil {
		return nil, err
	}
	for i := range output.VideoStreams {
		output.VideoStreams[i].PixelFormat = "pal8"
	}
	return output, nil
}

func (o *PaletteuseOperator) EstimateResources(
	params map[string]any,
	inputs []*schemas.MediaInfo,
) (*schemas.NodeEstimates, error) {
	out, err := o.ComputeOutputMetadata(params, inputs)
	if err != nil {
		return nil, err
	}
	return estimate(out, 0.4, 64), nil
}

func (o *PaletteuseOperator) Compile(ctx *operators.CompileContext) (*operators.CompileResult, error) {
	var opts []string
	if dither := stringParam(ctx.Params, "dither", ""); dither != "" {
		opts = append(opts, "dither="+dither)
	}
	return operators.Expression(ctx, withOptions("paletteuse", opts)), nil
}

func withOptions(name string, opts []string) string {
	if len(opts) == 0 {
		return name
	}
	return name + "=" + strings.Join(opts, ":")
}
