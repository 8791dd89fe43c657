package compiler

import (
	"strconv"

	"github.com/chicogong/slidegraph/pkg/schemas"
	"github.com/chicogong/slidegraph/pkg/timeline"
)

// Geometry is the canvas every node is normalized to.
type Geometry struct {
	Width     int
	Height    int
	FrameRate float64
}

// NormalizedLabel is the label of node i after normalization.
func NormalizedLabel(i int) string {
	return "v" + strconv.Itoa(i)
}

// InputLabel addresses the video stream of decoded input i.
func InputLabel(i int) string {
	return strconv.Itoa(i) + ":v"
}

// Normalize emits one normalize statement per node, in node order, and
// returns the statements with the label each node ends up under.
func Normalize(nodes []timeline.MediaNode, g Geometry) ([]schemas.Statement, []string) {
	statements := make([]schemas.Statement, 0, len(nodes))
	labels := make([]string, 0, len(nodes))

	for _, n := range nodes {
		params := map[string]interface{}{
			"width":  g.Width,
			"height": g.Height,
			"fps":    g.FrameRate,
		}
		if len(n.ExtraFilters) > 0 {
			params["filters"] = append([]string(nil), n.ExtraFilters...)
		}

		label := NormalizedLabel(n.InputIndex)
		statements = append(statements, schemas.Statement{
			Inputs:  []string{InputLabel(n.InputIndex)},
			Op:      "normalize",
			Params:  params,
			Outputs: []string{label},
		})
		labels = append(labels, label)
	}

	return statements, labels
}
