package builtin

import (
	"fmt"

	"github.com/chicogong/slidegraph/pkg/operators"
	"github.com/chicogong/slidegraph/pkg/schemas"
	"github.com/chicogong/slidegraph/pkg/transitions"
)

// XfadeOperator blends the end of one stream into the start of the next.
// The second stream starts at offset on the output timeline.
type XfadeOperator struct{}

func init() {
	operators.Register(&XfadeOperator{})
}

func (o *XfadeOperator) Name() string                 { return "xfade" }
func (o *XfadeOperator) Category() operators.Category { return operators.CategoryTransition }

func knownTransition(v any) error {
	name := v.(string)
	if canonical, ok := transitions.Lookup(name); !ok || canonical != name {
		return fmt.Errorf("unsupported transition %q", name)
	}
	return nil
}

func (o *XfadeOperator) Describe() *operators.OperatorDescriptor {
	return &operators.OperatorDescriptor{
		Name:        "xfade",
		Category:    operators.CategoryTransition,
		Description: "Cross-fade between two streams",
		Params: []operators.Param{
			{Name: "transition", Type: operators.TypeString, Required: true, Doc: "Canonical transition name", Check: knownTransition},
			{Name: "duration", Type: operators.TypeDuration, Required: true, Doc: "Transition length", Min: operators.Bound(0.001)},
			{Name: "offset", Type: operators.TypeDuration, Required: true, Doc: "Start of the blend on the first input's timeline", Min: operators.Bound(0)},
		},
		MinInputs: 2,
		MaxInputs: 2,
		Outputs:   1,
	}
}

func (o *XfadeOperator) ValidateParams(params map[string]any) error {
	return operators.ValidateParams(o, params)
}

func (o *XfadeOperator) ComputeOutputMetadata(
	params map[string]any,
	inputs []*schemas.MediaInfo,
) (*schemas.MediaInfo, error) {
	if len(inputs) != 2 || inputs[1] == nil {
		return nil, fmt.Errorf("xfade requires two inputs")
	}
	output, err := cloneInfo(inputs)
	if err != nil {
		return nil, err
	}
	offset, err := durationParam(params, "offset")
	if err != nil {
		return nil, err
	}
	setDuration(output, offset+inputs[1].Format.Duration)
	return output, nil
}

func (o *XfadeOperator) EstimateResources(
	params map[string]any,
	inputs []*schemas.MediaInfo,
) (*schemas.NodeEstimates, error) {
	out, err := o.ComputeOutputMetadata(params, inputs)
	if err != nil {
		return nil, err
	}
	d, err := durationParam(params, "duration")
	if err != nil {
		return nil, err
	}
	// Only the overlap is blended; the rest is passed through.
	blend := *out
	setDuration(&blend, d)
	est := estimate(&blend, 0.5, 100)
	est.Duration += estimate(out, 0.01, 0).Duration
	return est, nil
}

func (o *XfadeOperator) Compile(ctx *operators.CompileContext) (*operators.CompileResult, error) {
	transition := stringParam(ctx.Params, "transition", transitions.DefaultEffect)
	d, err := durationParam(ctx.Params, "duration")
	if err != nil {
		return nil, err
	}
	offset, err := durationParam(ctx.Params, "offset")
	if err != nil {
		return nil, err
	}

	body := fmt.Sprintf("xfade=transition=%s:duration=%s:offset=%s",
		transition, schemas.FormatSeconds(d), schemas.FormatSeconds(offset))
	return operators.Expression(ctx, body), nil
}
