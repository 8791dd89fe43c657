package builtin

import (
	"fmt"
	"strings"

	"github.com/chicogong/slidegraph/pkg/operators"
	"github.com/chicogong/slidegraph/pkg/schemas"
)

// NormalizeOperator brings one decoded input to the common geometry, frame
// rate and pixel format. It never upscales: smaller sources are centred on
// a black canvas.
type NormalizeOperator struct{}

func init() {
	operators.Register(&NormalizeOperator{})
}

func (o *NormalizeOperator) Name() string {
	return "normalize"
}

func (o *NormalizeOperator) Category() operators.Category {
	return operators.CategoryVideo
}

func evenDimension(v any) error {
	if v.(int)%2 != 0 {
		return fmt.Errorf("must be even for yuv420p, got %d", v)
	}
	return nil
}

func (o *NormalizeOperator) Describe() *operators.OperatorDescriptor {
	return &operators.OperatorDescriptor{
		Name:        "normalize",
		Category:    operators.CategoryVideo,
		Description: "Fit input inside the target canvas without upscaling, then fix SAR, PTS, frame rate and pixel format",
		Params: []operators.Param{
			{Name: "width", Type: operators.TypeInt, Required: true, Doc: "Canvas width", Min: operators.Bound(2), Max: operators.Bound(8192), Check: evenDimension},
			{Name: "height", Type: operators.TypeInt, Required: true, Doc: "Canvas height", Min: operators.Bound(2), Max: operators.Bound(8192), Check: evenDimension},
			{Name: "fps", Type: operators.TypeFloat, Required: true, Doc: "Output frame rate", Min: operators.Bound(0.001), Max: operators.Bound(240)},
			{Name: "filters", Type: operators.TypeStringList, Doc: "Extra filters appended to the chain in order"},
		},
		MinInputs: 1,
		MaxInputs: 1,
		Outputs:   1,
	}
}

func (o *NormalizeOperator) ValidateParams(params map[string]any) error {
	if err := operators.ValidateParams(o, params); err != nil {
		return err
	}

	filters, _ := operators.AsStringList(params["filters"])
	for i, f := range filters {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("filters[%d] is empty", i)
		}
		if strings.ContainsAny(f, "[];") {
			return fmt.Errorf("filters[%d] %q must be a single chain element", i, f)
		}
	}
	return nil
}

func (o *NormalizeOperator) ComputeOutputMetadata(
	params map[string]any,
	inputs []*schemas.MediaInfo,
) (*schemas.MediaInfo, error) {
	output, err := cloneInfo(inputs)
	if err != nil {
		return nil, err
	}

	width, _ := intParam(params, "width", 0)
	height, _ := intParam(params, "height", 0)
	fps, _ := operators.AsFloat(params["fps"])

	stream := schemas.VideoStream{Codec: "rawvideo", PixelFormat: "yuv420p"}
	if len(output.VideoStreams) > 0 {
		stream = output.VideoStreams[0]
		stream.PixelFormat = "yuv420p"
	}
	stream.Width = width
	stream.Height = height
	stream.FrameRate = fps
	stream.Duration = output.Format.Duration
	output.VideoStreams = []schemas.VideoStream{stream}

	return output, nil
}

func (o *NormalizeOperator) EstimateResources(
	params map[string]any,
	inputs []*schemas.MediaInfo,
) (*schemas.NodeEstimates, error) {
	out, err := o.ComputeOutputMetadata(params, inputs)
	if err != nil {
		return nil, err
	}
	// Scaling plus padding, roughly a fifth of realtime at 1080p.
	return estimate(out, 0.2, 150), nil
}

func (o *NormalizeOperator) Compile(ctx *operators.CompileContext) (*operators.CompileResult, error) {
	width, err := intParam(ctx.Params, "width", 0)
	if err != nil {
		return nil, err
	}
	height, err := intParam(ctx.Params, "height", 0)
	if err != nil {
		return nil, err
	}
	fps, err := operators.AsFloat(ctx.Params["fps"])
	if err != nil {
		return nil, err
	}
	extra, err := operators.AsStringList(ctx.Params["filters"])
	if err != nil {
		return nil, err
	}

	chain := []string{
		fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease", width, height),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black", width, height),
		"setsar=1",
		"setpts=PTS-STARTPTS",
		"fps=" + formatRate(fps),
		"format=yuv420p",
	}
	chain = append(chain, extra...)

	return operators.Expression(ctx, strings.Join(chain, ",")), nil
}
