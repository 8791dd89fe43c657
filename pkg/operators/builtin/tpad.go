package builtin

import (
	"fmt"

	"github.com/chicogong/slidegraph/pkg/operators"
	"github.com/chicogong/slidegraph/pkg/schemas"
)

// TpadOperator extends a stream by holding its last frame.
type TpadOperator struct{}

func init() {
	operators.Register(&TpadOperator{})
}

func (o *TpadOperator) Name() string                 { return "tpad" }
func (o *TpadOperator) Category() operators.Category { return operators.CategoryTimeline }

func (o *TpadOperator) Describe() *operators.OperatorDescriptor {
	return &operators.OperatorDescriptor{
		Name:        "tpad",
		Category:    operators.CategoryTimeline,
		Description: "Pad the end of a stream",
		Params: []operators.Param{
			{Name: "stop_duration", Type: operators.TypeDuration, Required: true, Doc: "How long to extend the stream", Min: operators.Bound(0)},
			{Name: "stop_mode", Type: operators.TypeEnum, Doc: "clone repeats the last frame, add inserts black", OneOf: []string{"clone", "add"}},
		},
		MinInputs: 1,
		MaxInputs: 1,
		Outputs:   1,
	}
}

func (o *TpadOperator) ValidateParams(params map[string]any) error {
	return operators.ValidateParams(o, params)
}

func (o *TpadOperator) ComputeOutputMetadata(
	params map[string]any,
	inputs []*schemas.MediaInfo,
) (*schemas.MediaInfo, error) {
	output, err := cloneInfo(inputs)
	if err != nil {
		return nil, err
	}
	stop, err := durationParam(params, "stop_duration")
	if err != nil {
		return nil, err
	}
	setDuration(output, output.Format.Duration+stop)
	return output, nil
}

func (o *TpadOperator) EstimateResources(
	params map[string]any,
	inputs []*schemas.MediaInfo,
) (*schemas.NodeEstimates, error) {
	out, err := o.ComputeOutputMetadata(params, inputs)
	if err != nil {
		return nil, err
	}
	return estimate(out, 0.01, 20), nil
}

func (o *TpadOperator) Compile(ctx *operators.CompileContext) (*operators.CompileResult, error) {
	stop, err := durationParam(ctx.Params, "stop_duration")
	if err != nil {
		return nil, err
	}
	mode := stringParam(ctx.Params, "stop_mode", "clone")

	body := fmt.Sprintf("tpad=stop_mode=%s:stop_duration=%s", mode, schemas.FormatSeconds(stop))
	return operators.Expression(ctx, body), nil
}
