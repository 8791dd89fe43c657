package operators

import (
	"strings"

	"github.com/chicogong/slidegraph/pkg/schemas"
)

// Operator is the interface all filter operators implement. An operator
// knows how to validate the parameters of one statement, render it as
// filtergraph text, and predict the media it produces.
type Operator interface {
	// Name returns the statement op this operator renders
	Name() string

	Category() Category

	// Describe returns operator description and parameter schema
	Describe() *OperatorDescriptor

	ValidateParams(params map[string]any) error

	// ComputeOutputMetadata predicts the output stream from the inputs
	ComputeOutputMetadata(params map[string]any, inputs []*schemas.MediaInfo) (*schemas.MediaInfo, error)

	// EstimateResources estimates encode time, memory, and disk usage
	EstimateResources(params map[string]any, inputs []*schemas.MediaInfo) (*schemas.NodeEstimates, error)

	// Compile renders the statement as filtergraph text
	Compile(ctx *CompileContext) (*CompileResult, error)
}

// Category represents operator category
type Category string

const (
	CategoryVideo      Category = "video"      // normalize
	CategoryTimeline   Category = "timeline"   // concat, tpad
	CategoryTransition Category = "transition" // xfade
	CategoryOutput     Category = "output"     // split, palettegen, paletteuse
)

// OperatorDescriptor describes an operator
type OperatorDescriptor struct {
	Name        string
	Category    Category
	Description string

	Params []Param

	// Input requirements. MaxInputs of 0 means unbounded.
	MinInputs int
	MaxInputs int

	// Number of labels written; 0 means one per the "outputs" parameter.
	Outputs int
}

// CompileContext carries one statement to an operator.
type CompileContext struct {
	InputStreams []StreamRef
	Params       map[string]any
	OutputLabels []string
}

// StreamRef references an input stream by filtergraph label
type StreamRef struct {
	Label string // bare label, e.g. "v0" or "0:v"
}

// CompileResult contains compilation result
type CompileResult struct {
	// Filtergraph fragment, e.g. "[v0][p1]xfade=...[x1]"
	FilterExpression string

	// Output stream labels, bracketed
	OutputLabels []string
}

// Bracket wraps each label in square brackets and joins them.
func Bracket(labels []string) string {
	var b strings.Builder
	for _, l := range labels {
		b.WriteByte('[')
		b.WriteString(l)
		b.WriteByte(']')
	}
	return b.String()
}

// Labels extracts the bare labels of streams.
func Labels(streams []StreamRef) []string {
	out := make([]string, len(streams))
	for i, s := range streams {
		out[i] = s.Label
	}
	return out
}

// Expression assembles "[in...]body[out...]" and the matching result.
func Expression(ctx *CompileContext, body string) *CompileResult {
	outs := make([]string, len(ctx.OutputLabels))
	for i, l := range ctx.OutputLabels {
		outs[i] = "[" + l + "]"
	}
	return &CompileResult{
		FilterExpression: Bracket(Labels(ctx.InputStreams)) + body + strings.Join(outs, ""),
		OutputLabels:     outs,
	}
}
