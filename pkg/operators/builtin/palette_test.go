package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chicogong/slidegraph/pkg/operators"
)

func TestPaletteChain(t *testing.T) {
	registry := operators.Default()

	split, err := registry.Get("split")
	require.NoError(t, err)
	res, err := split.Compile(&operators.CompileContext{
		InputStreams: []operators.StreamRef{{Label: "vout"}},
		Params:       map[string]any{},
		OutputLabels: []string{"g0", "g1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "[vout]split[g0][g1]", res.FilterExpression)

	gen, err := registry.Get("palettegen")
	require.NoError(t, err)
	res, err = gen.Compile(&operators.CompileContext{
		InputStreams: []operators.StreamRef{{Label: "g0"}},
		Params:       map[string]any{"stats_mode": "diff"},
		OutputLabels: []string{"pal"},
	})
	require.NoError(t, err)
	assert.Equal(t, "[g0]palettegen=stats_mode=diff[pal]", res.FilterExpression)

	use, err := registry.Get("paletteuse")
	require.NoError(t, err)
	res, err = use.Compile(&operators.CompileContext{
		InputStreams: []operators.StreamRef{{Label: "g1"}, {Label: "pal"}},
		OutputLabels: []string{"gif"},
	})
	require.NoError(t, err)
	assert.Equal(t, "[g1][pal]paletteuse[gif]", res.FilterExpression)
}

func TestSplitOperator_LabelCount(t *testing.T) {
	op := &SplitOperator{}

	_, err := op.Compile(&operators.CompileContext{
		InputStreams: []operators.StreamRef{{Label: "a"}},
		Params:       map[string]any{"outputs": 3},
		OutputLabels: []string{"b", "c"},
	})
	assert.Error(t, err)

	res, err := op.Compile(&operators.CompileContext{
		InputStreams: []operators.StreamRef{{Label: "a"}},
		Params:       map[string]any{"outputs": 3},
		OutputLabels: []string{"b", "c", "d"},
	})
	require.NoError(t, err)
	assert.Equal(t, "[a]split=3[b][c][d]", res.FilterExpression)
}

func TestBuiltinsRegistered(t *testing.T) {
	for _, name := range []string{"normalize", "tpad", "xfade", "concat", "split", "palettegen", "paletteuse"} {
		_, err := operators.Get(name)
		assert.NoError(t, err, name)
	}
}
