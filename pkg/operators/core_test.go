package operators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chicogong/slidegraph/pkg/schemas"
)

type testOperator struct{}

func (testOperator) Name() string       { return "test" }
func (testOperator) Category() Category { return CategoryVideo }

func (testOperator) Describe() *OperatorDescriptor {
	return &OperatorDescriptor{
		Name:        "test",
		Category:    CategoryVideo,
		Description: "test operator",
		Params: []Param{
			{Name: "width", Type: TypeInt, Required: true, Min: Bound(0), Max: Bound(10)},
			{Name: "mode", Type: TypeEnum, OneOf: []string{"fast", "slow"}},
			{Name: "filters", Type: TypeStringList, MaxItems: 2},
			{Name: "label", Type: TypeString, Pattern: `^[a-z]+$`},
			{Name: "hold", Type: TypeDuration, Max: Bound(5)},
		},
		MinInputs: 1,
		MaxInputs: 2,
		Outputs:   1,
	}
}

func (o testOperator) ValidateParams(params map[string]any) error {
	return ValidateParams(o, params)
}
func (testOperator) ComputeOutputMetadata(map[string]any, []*schemas.MediaInfo) (*schemas.MediaInfo, error) {
	return nil, nil
}
func (testOperator) EstimateResources(map[string]any, []*schemas.MediaInfo) (*schemas.NodeEstimates, error) {
	return nil, nil
}
func (testOperator) Compile(ctx *CompileContext) (*CompileResult, error) {
	return Expression(ctx, "null"), nil
}

func TestConvert(t *testing.T) {
	durations := map[any]time.Duration{
		"00:00:01.5":         1500 * time.Millisecond,
		"750ms":              750 * time.Millisecond,
		schemas.Seconds(0.3): 300 * time.Millisecond,
		0.25:                 250 * time.Millisecond,
		2:                    2 * time.Second,
	}
	for in, want := range durations {
		got, err := Convert(in, TypeDuration)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	got, err := Convert([]any{"hflip", "vflip"}, TypeStringList)
	require.NoError(t, err)
	assert.Equal(t, []string{"hflip", "vflip"}, got)

	_, err = Convert([]any{"hflip", 3.0}, TypeStringList)
	assert.ErrorContains(t, err, "item 1")

	got, err = Convert(1280.0, TypeInt)
	require.NoError(t, err)
	assert.Equal(t, 1280, got)

	_, err = Convert(2.5, TypeInt)
	assert.Error(t, err)

	got, err = Convert(29.97, TypeEnum)
	require.NoError(t, err)
	assert.Equal(t, "29.97", got)
}

func TestValidateParams(t *testing.T) {
	op := testOperator{}

	tests := map[string]struct {
		params map[string]any
		errMsg string
	}{
		"missing required": {params: map[string]any{}, errMsg: `"width": required`},
		"numeric string":   {params: map[string]any{"width": "5"}},
		"above max":        {params: map[string]any{"width": 11}, errMsg: "above the maximum"},
		"not in enum":      {params: map[string]any{"width": 5, "mode": "nope"}, errMsg: "not one of"},
		"too many items":   {params: map[string]any{"width": 5, "filters": []string{"a", "b", "c"}}, errMsg: "at most 2"},
		"pattern":          {params: map[string]any{"width": 5, "label": "A1"}, errMsg: "does not match"},
		"duration bound":   {params: map[string]any{"width": 5, "hold": "6s"}, errMsg: "above the maximum"},
		"unknown":          {params: map[string]any{"width": 5, "extra": true}, errMsg: "unknown parameter"},
		"all set":          {params: map[string]any{"width": 5.0, "mode": "fast", "label": "abc", "hold": 1.5}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := ValidateParams(op, tc.params)
			if tc.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			var perr *ParamError
			require.ErrorAs(t, err, &perr)
			assert.ErrorContains(t, err, tc.errMsg)
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(testOperator{})

	_, err := r.Get("test")
	require.NoError(t, err)
	_, err = r.Get("missing")
	assert.ErrorContains(t, err, `unknown operator "missing"`)

	assert.Len(t, r.List(), 1)
	assert.Len(t, r.List(CategoryVideo, CategoryTimeline), 1)
	assert.Empty(t, r.List(CategoryOutput))
}

func TestRegistry_Render(t *testing.T) {
	r := NewRegistry()
	r.Register(testOperator{})

	text, err := r.Render(schemas.Statement{
		Inputs:  []string{"a", "b"},
		Op:      "test",
		Params:  map[string]any{"width": 1},
		Outputs: []string{"c"},
	})
	require.NoError(t, err)
	assert.Equal(t, "[a][b]null[c]", text)

	_, err = r.Render(schemas.Statement{Op: "test", Params: map[string]any{"width": 1}, Outputs: []string{"c"}})
	assert.Error(t, err, "too few inputs")

	_, err = r.Render(schemas.Statement{Inputs: []string{"a"}, Op: "test", Params: map[string]any{"width": 1}, Outputs: []string{"c", "d"}})
	assert.Error(t, err, "wrong output count")

	_, err = r.Render(schemas.Statement{Inputs: []string{"a"}, Op: "nope", Outputs: []string{"c"}})
	assert.Error(t, err)
}

func TestBracket(t *testing.T) {
	assert.Equal(t, "[0:v][v1]", Bracket([]string{"0:v", "v1"}))
	assert.Equal(t, "", Bracket(nil))
}
