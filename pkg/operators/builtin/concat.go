package builtin

import (
	"fmt"

	"github.com/chicogong/slidegraph/pkg/operators"
	"github.com/chicogong/slidegraph/pkg/schemas"
)

// ConcatOperator joins video streams back to back.
type ConcatOperator struct{}

func init() {
	operators.Register(&ConcatOperator{})
}

func (o *ConcatOperator) Name() string                 { return "concat" }
func (o *ConcatOperator) Category() operators.Category { return operators.CategoryTimeline }

func (o *ConcatOperator) Describe() *operators.OperatorDescriptor {
	return &operators.OperatorDescriptor{
		Name:        "concat",
		Category:    operators.CategoryTimeline,
		Description: "Concatenate video segments (no audio)",
		Params: []operators.Param{
			{Name: "n", Type: operators.TypeInt, Required: true, Doc: "Number of segments", Min: operators.Bound(2)},
		},
		MinInputs: 2,
		Outputs:   1,
	}
}

func (o *ConcatOperator) ValidateParams(params map[string]any) error {
	return operators.ValidateParams(o, params)
}

func (o *ConcatOperator) ComputeOutputMetadata(
	params map[string]any,
	inputs []*schemas.MediaInfo,
) (*schemas.MediaInfo, error) {
	output, err := cloneInfo(inputs)
	if err != nil {
		return nil, err
	}
	total := output.Format.Duration
	for _, in := range inputs[1:] {
		if in == nil {
			return nil, fmt.Errorf("concat: missing input metadata")
		}
		total += in.Format.Duration
	}
	setDuration(output, total)
	return output, nil
}

func (o *ConcatOperator) EstimateResources(
	params map[string]any,
	inputs []*schemas.MediaInfo,
) (*schemas.NodeEstimates, error) {
	out, err := o.ComputeOutputMetadata(params, inputs)
	if err != nil {
		return nil, err
	}
	return estimate(out, 0.01, 30), nil
}

func (o *ConcatOperator) Compile(ctx *operators.CompileContext) (*operators.CompileResult, error) {
	n, err := intParam(ctx.Params, "n", 0)
	if err != nil {
		return nil, err
	}
	if n != len(ctx.InputStreams) {
		return nil, fmt.Errorf("concat: n=%d but %d inputs", n, len(ctx.InputStreams))
	}

	return operators.Expression(ctx, fmt.Sprintf("concat=n=%d:v=1:a=0", n)), nil
}
